// Package service is the entry point for components that talk to SVDRP
// servers. It hands out pooled connections and runs commands on them.
package service

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/luma/svdrp/pool"
	"github.com/luma/svdrp/protocol"
)

var (
	ErrUnknownRequest = errors.New("Unknown request")
)

type Options struct {
	Pool *pool.Pool

	// DefaultServerIP and DefaultServerPort are used by requests that do
	// not name a server
	DefaultServerIP   string
	DefaultServerPort uint16

	Log *zap.Logger
}

type Service struct {
	pool *pool.Pool

	defaultIP   string
	defaultPort uint16

	log *zap.Logger
}

func New(options Options) *Service {
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	p := options.Pool
	if p == nil {
		p = pool.New(pool.Options{Log: log})
	}

	return &Service{
		pool:        p,
		defaultIP:   options.DefaultServerIP,
		defaultPort: options.DefaultServerPort,
		log:         log.Named("service"),
	}
}

func (s *Service) Pool() *pool.Pool { return s.pool }

// Dispatch runs a single request.
func (s *Service) Dispatch(req Request) (Response, error) {
	switch r := req.(type) {
	case AcquireConnection:
		h, err := s.Acquire(r.ServerIP, r.ServerPort, r.Shared)
		return Acquired{Handle: h}, err

	case ReleaseConnection:
		destroyed, err := s.Release(r.Handle)
		return Released{Destroyed: destroyed}, err

	case ExecuteCommand:
		reply, err := s.Execute(r.Handle, r.Command)
		return Executed{Reply: reply}, err

	default:
		return nil, errors.Wrapf(ErrUnknownRequest, "%T", req)
	}
}

// Acquire returns a handle to an open connection to ip:port, sharing an
// existing one if shared is set.
func (s *Service) Acquire(ip string, port uint16, shared bool) (pool.Handle, error) {
	ip, port = s.destination(ip, port)

	h, conn, err := s.pool.Reserve(ip, port, shared)
	if err != nil {
		return pool.None, err
	}

	if err := conn.Open(); err != nil {
		if _, derr := s.pool.DelRef(h); derr != nil {
			s.log.Warn("Failed to release reservation", zap.Int("handle", int(h)), zap.Error(derr))
		}

		return pool.None, err
	}

	s.log.Debug("Acquired connection",
		zap.Int("handle", int(h)),
		zap.String("server", conn.Addr()),
		zap.Bool("shared", shared),
		zap.Int("refCount", conn.RefCount()))

	return h, nil
}

// Release drops a reference to h and reports whether that closed the
// connection.
func (s *Service) Release(h pool.Handle) (bool, error) {
	count, err := s.pool.DelRef(h)
	if err != nil {
		return false, err
	}

	return count == 0, nil
}

// Execute runs cmd, a single `\r\n` terminated line, on the connection behind
// h. The reply is never nil, its code is 0 if the exchange failed.
func (s *Service) Execute(h pool.Handle, cmd string) (*protocol.Reply, error) {
	if err := protocol.CheckLine(cmd); err != nil {
		return &protocol.Reply{}, err
	}

	conn, err := s.pool.Get(h)
	if err != nil {
		return &protocol.Reply{}, err
	}

	return conn.Execute(cmd)
}

// Close closes every pooled connection.
func (s *Service) Close() error {
	return s.pool.Close()
}

func (s *Service) destination(ip string, port uint16) (string, uint16) {
	if ip == "" {
		ip = s.defaultIP
	}

	if port == 0 {
		port = s.defaultPort
	}

	return ip, port
}
