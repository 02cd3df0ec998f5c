package client

import (
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/luma/svdrp/charset"
	"github.com/luma/svdrp/protocol"
)

const (
	DefaultPort           = 2001
	DefaultConnectTimeout = 2 * time.Second
	DefaultReadTimeout    = 5 * time.Second
)

// Conn is a connection to a single SVDRP server.
//
// SVDRP is strictly request/response, so a Conn runs one exchange at a time.
// Send, Receive and Execute are safe for concurrent use but callers that need
// a Send to be paired with its Receive must use Execute.
type Conn struct {
	mu sync.Mutex

	serverIP   string
	serverPort uint16
	addr       string
	shared     bool

	connectTimeout time.Duration
	readTimeout    time.Duration
	localCharset   string
	maxLineLength  int

	conn   net.Conn
	reader *protocol.LineReader

	// convIn turns server text into local text, convOut the reverse. Both
	// are nil when no transcoding is needed.
	convIn        *charset.Transcoder
	convOut       *charset.Transcoder
	serverCharset string

	// closing is set while Close talks to the server
	closing bool

	// released is set once the owner gave the connection up, it never
	// reconnects afterwards
	released bool

	refCount atomic.Int32

	log *zap.Logger
}

func New(options Options) *Conn {
	options.setDefaults()

	addr := net.JoinHostPort(options.ServerIP, strconv.Itoa(int(options.ServerPort)))

	return &Conn{
		serverIP:       options.ServerIP,
		serverPort:     options.ServerPort,
		addr:           addr,
		shared:         options.Shared,
		connectTimeout: options.ConnectTimeout,
		readTimeout:    options.ReadTimeout,
		localCharset:   options.Charset,
		maxLineLength:  options.MaxLineLength,
		log:            options.Log.Named("conn").With(zap.String("server", addr)),
	}
}

func (c *Conn) Addr() string { return c.addr }

func (c *Conn) IsShared() bool { return c.shared }

// HasDestination reports whether c talks to ip:port.
func (c *Conn) HasDestination(ip string, port uint16) bool {
	return ip != "" && c.serverIP == ip && c.serverPort == port
}

func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn != nil
}

// ServerCharset returns the character set announced by the server if text
// is being transcoded, and "" otherwise.
func (c *Conn) ServerCharset() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.serverCharset
}

func (c *Conn) AddRef() int { return int(c.refCount.Add(1)) }

func (c *Conn) DelRef() int { return int(c.refCount.Add(-1)) }

func (c *Conn) RefCount() int { return int(c.refCount.Load()) }

// Open connects to the server and waits for its greeting. It does nothing if
// the connection is already open.
func (c *Conn) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.open()
}

// Close says QUIT to the server, if it still listens, and closes the
// connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.close()
}

// Release closes the connection for good. Later calls that would reconnect
// fail instead.
func (c *Conn) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.released = true

	return c.close()
}

// IsReleased reports whether Release was called.
func (c *Conn) IsReleased() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.released
}

// Abort closes the connection without saying goodbye.
func (c *Conn) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.abort()
}

// Send writes cmd as is, the caller supplies the `\r\n` terminator. With
// reconnect set a closed connection is opened first.
func (c *Conn) Send(cmd string, reconnect bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.send(cmd, reconnect)
}

// Receive reads the next reply. On failure the reply has code 0 and no lines.
func (c *Conn) Receive() (*protocol.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.receive(false)
}

// Execute sends cmd, reconnecting if needed, and reads its reply.
func (c *Conn) Execute(cmd string) (*protocol.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(cmd, true); err != nil {
		return &protocol.Reply{}, err
	}

	return c.receive(false)
}

func (c *Conn) open() error {
	if c.conn != nil {
		return nil
	}

	if c.released {
		return newError(ErrIO, c.addr, errReleased)
	}

	c.convIn, c.convOut, c.serverCharset = nil, nil, ""

	if err := c.connect(); err != nil {
		c.log.Error("Failed to connect", zap.Error(err))
		return err
	}

	greeting, err := c.receive(true)
	if err != nil {
		c.abort()
		return newError(ErrHandshake, c.addr, err)
	}

	if greeting.Code != protocol.CodeGreeting {
		c.log.Error("Unexpected greeting",
			zap.Int("code", greeting.Code),
			zap.Strings("lines", greeting.Lines))

		c.abort()
		return newError(ErrHandshake, c.addr,
			errors.Errorf("expected code %d, got %d", protocol.CodeGreeting, greeting.Code))
	}

	c.negotiateCharset(greeting.Lines[0])

	if c.serverCharset != "" {
		c.log.Info("Connected",
			zap.String("serverCharset", c.serverCharset),
			zap.String("localCharset", c.localCharset))
	} else {
		c.log.Info("Connected")
	}

	return nil
}

func (c *Conn) connect() error {
	if c.serverIP == "" {
		return newError(ErrConfig, c.addr, errNoServer)
	}

	if net.ParseIP(c.serverIP) == nil {
		return newError(ErrConfig, c.addr, errors.Errorf("'%s' is not an ip address", c.serverIP))
	}

	dialer := net.Dialer{Timeout: c.connectTimeout}

	conn, err := dialer.Dial("tcp", c.addr)
	if err != nil {
		return newError(ErrConnect, c.addr, err)
	}

	c.conn = conn
	c.reader = protocol.NewLineReader(conn, c.maxLineLength)

	return nil
}

// negotiateCharset installs transcoders if the greeting announces a character
// set other than the local one. The announcement is the last of at least
// three `;` separated fields, without its leading spaces.
func (c *Conn) negotiateCharset(greeting string) {
	fields := strings.Split(greeting, ";")
	if len(fields) < 3 {
		return
	}

	server := strings.TrimLeft(fields[len(fields)-1], " ")
	if server == "" || charset.Equal(server, c.localCharset) {
		return
	}

	convIn, err := charset.New(server, c.localCharset)
	if err != nil {
		c.log.Warn("Cannot transcode server replies", zap.String("serverCharset", server), zap.Error(err))
		return
	}

	convOut, err := charset.New(c.localCharset, server)
	if err != nil {
		c.log.Warn("Cannot transcode commands", zap.String("serverCharset", server), zap.Error(err))
		return
	}

	c.convIn, c.convOut, c.serverCharset = convIn, convOut, server
}

func (c *Conn) send(cmd string, reconnect bool) error {
	if c.conn == nil && reconnect {
		if err := c.open(); err != nil {
			return err
		}
	}

	if c.conn == nil {
		return newError(ErrIO, c.addr, errNotConnected)
	}

	if c.convOut != nil {
		cmd = c.convOut.Convert(cmd)
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.readTimeout)); err != nil {
		c.abort()
		return newError(ErrIO, c.addr, err)
	}

	if err := protocol.WriteString(c.conn, cmd); err != nil {
		c.log.Error("Failed to send command", zap.Error(err))
		c.abort()
		return newError(ErrIO, c.addr, err)
	}

	return nil
}

func (c *Conn) receive(handshake bool) (*protocol.Reply, error) {
	if c.conn == nil {
		return &protocol.Reply{}, newError(ErrIO, c.addr, errNotConnected)
	}

	timeout := c.readTimeout
	if handshake {
		timeout = c.connectTimeout
	}

	reply, err := protocol.ReadReply(c.reader, timeout, c.convIn.Convert)
	if err == nil {
		return reply, nil
	}

	if errors.Is(err, protocol.ErrMalformedReply) {
		c.log.Error("Invalid reply", zap.Error(err))

		if handshake || c.closing {
			c.abort()
		} else {
			c.close()
		}

		return reply, newError(ErrProtocol, c.addr, err)
	}

	kind := ErrIO

	switch {
	case errors.Is(err, protocol.ErrLineTooLong):
		kind = ErrProtocol
		c.log.Error("Line too long in reply", zap.Int("maxLineLength", c.maxLineLength))

	case os.IsTimeout(err):
		c.log.Error("Timeout waiting for reply", zap.Duration("timeout", timeout))

	case errors.Is(err, io.EOF), errors.Is(err, protocol.ErrEndOfStream):
		c.log.Error("Lost connection")

	default:
		c.log.Error("Failed to read reply", zap.Error(err))
	}

	c.abort()

	return reply, newError(kind, c.addr, err)
}

func (c *Conn) close() error {
	if c.conn == nil {
		return nil
	}

	c.closing = true
	defer func() { c.closing = false }()

	if err := c.send(protocol.QUIT.Line(), false); err == nil {
		_, _ = c.receive(false)
	}

	return c.abort()
}

func (c *Conn) abort() error {
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	c.reader = nil

	return err
}
