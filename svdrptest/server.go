// Package svdrptest runs scriptable SVDRP servers for tests.
package svdrptest

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/svdrp/protocol"
)

const (
	DefaultGreeting = "220 test server ready\r\n"
)

// Handler answers a single command, cmd has its line terminator removed. The
// returned text is written as is, keepOpen false closes the connection after
// the reply.
type Handler func(cmd string) (reply string, keepOpen bool)

type Options struct {
	// Greeting is written verbatim on connect, DefaultGreeting if empty
	Greeting string

	// CloseAfterGreeting drops every connection right after the greeting
	CloseAfterGreeting bool

	// Handler answers commands, DefaultHandler if nil
	Handler Handler

	Log *zap.Logger
}

// Server is an SVDRP server listening on a random local port.
type Server struct {
	listener net.Listener
	options  Options

	stopWaiter sync.WaitGroup

	mu          sync.Mutex
	activeConns map[net.Conn]struct{}
	commands    []string

	accepted atomic.Int32
	closed   atomic.Bool

	log *zap.Logger
}

func NewServer(options Options) (*Server, error) {
	if options.Greeting == "" {
		options.Greeting = DefaultGreeting
	}

	if options.Handler == nil {
		options.Handler = DefaultHandler
	}

	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	listener, err := reuseport.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener:    listener,
		options:     options,
		activeConns: make(map[net.Conn]struct{}),
		log:         options.Log.Named("svdrptest"),
	}

	s.stopWaiter.Add(1)
	go func() {
		defer s.stopWaiter.Done()
		s.listen()
	}()

	return s, nil
}

// DefaultHandler answers QUIT with 221 and closes, everything else gets
// `250 OK`.
func DefaultHandler(cmd string) (string, bool) {
	if strings.EqualFold(cmd, string(protocol.QUIT)) {
		return Reply(protocol.CodeClosing, "closing connection"), false
	}

	return Reply(250, "OK"), true
}

// Reply formats a reply the way the server sends it.
func Reply(code int, lines ...string) string {
	var b bytes.Buffer
	_ = protocol.WriteReply(&b, code, lines...)
	return b.String()
}

func (s *Server) Addr() string { return s.listener.Addr().String() }

func (s *Server) IP() string {
	return s.listener.Addr().(*net.TCPAddr).IP.String()
}

func (s *Server) Port() uint16 {
	return uint16(s.listener.Addr().(*net.TCPAddr).Port)
}

func (s *Server) PortString() string {
	return strconv.Itoa(int(s.Port()))
}

// Accepted returns how many connections the server has accepted so far.
func (s *Server) Accepted() int {
	return int(s.accepted.Load())
}

// Active returns how many connections are currently open.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.activeConns)
}

// Commands returns every command received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.commands...)
}

// Close stops accepting, drops every connection and waits for the handlers to
// exit.
func (s *Server) Close() (err error) {
	if s.closed.Swap(true) {
		return nil
	}

	err = multierr.Append(err, s.listener.Close())

	s.mu.Lock()
	for conn := range s.activeConns {
		err = multierr.Append(err, ignoreClosed(conn.Close()))
	}
	s.mu.Unlock()

	s.stopWaiter.Wait()

	return err
}

func (s *Server) listen() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Warn("Failed to accept", zap.Error(err))
			}

			return
		}

		s.accepted.Add(1)

		if !s.addConn(conn) {
			conn.Close()
			return
		}

		s.stopWaiter.Add(1)
		go func() {
			defer s.stopWaiter.Done()
			defer s.removeConn(conn)

			s.serve(conn)
		}()
	}
}

func (s *Server) serve(conn net.Conn) {
	log := s.log.With(zap.String("remote", conn.RemoteAddr().String()))

	if _, err := conn.Write([]byte(s.options.Greeting)); err != nil {
		log.Warn("Failed to greet", zap.Error(err))
		return
	}

	if s.options.CloseAfterGreeting {
		return
	}

	r := bufio.NewReader(conn)

	for {
		raw, err := r.ReadString('\n')
		if err != nil {
			return
		}

		cmd := strings.TrimRight(raw, "\r\n")

		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		s.mu.Unlock()

		reply, keepOpen := s.options.Handler(cmd)

		if reply != "" {
			if _, err := conn.Write([]byte(reply)); err != nil {
				log.Warn("Failed to reply", zap.String("cmd", cmd), zap.Error(err))
				return
			}
		}

		if !keepOpen {
			return
		}
	}
}

func (s *Server) addConn(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return false
	}

	s.activeConns[conn] = struct{}{}
	return true
}

func (s *Server) removeConn(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn.Close()
	delete(s.activeConns, conn)
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}
