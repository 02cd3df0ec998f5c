// Package pool keeps track of the live SVDRP connections of a process and
// shares them between callers that talk to the same server.
package pool

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luma/svdrp/client"
)

// Capacity is the number of connections a pool holds at most.
const Capacity = 8

// Handle identifies a connection within a pool. It stays valid until the
// last reference to the connection is dropped.
type Handle int

// None is the handle of no connection.
const None Handle = -1

var (
	ErrPoolExhausted = errors.New("Too many open connections")
	ErrInvalidHandle = errors.New("Invalid handle")
)

type Options struct {
	// Conn is the template for new connections, the destination and the
	// shared flag are filled in per connection.
	Conn client.Options

	Log *zap.Logger
}

// Pool is a fixed size table of connections addressed by Handle. All methods
// are safe for concurrent use.
type Pool struct {
	mu    sync.Mutex
	slots [Capacity]*client.Conn

	template client.Options

	log *zap.Logger
}

func New(options Options) *Pool {
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	template := options.Conn
	if template.Log == nil {
		template.Log = log
	}

	return &Pool{
		template: template,
		log:      log.Named("pool"),
	}
}

// FindShared returns the first shared connection to ip:port, or None.
func (p *Pool) FindShared(ip string, port uint16) Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.findShared(ip, port)
}

// Add installs a new, not yet opened, connection in the first free slot.
func (p *Pool) Add(ip string, port uint16, shared bool) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.add(ip, port, shared)
}

// Reserve hands out a reference to a connection to ip:port. Shared requests
// reuse an existing shared connection, anything else gets a new one. The
// returned connection may still need to be opened.
func (p *Pool) Reserve(ip string, port uint16, shared bool) (Handle, *client.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := None
	if shared {
		h = p.findShared(ip, port)
	}

	if h == None {
		var err error
		if h, err = p.add(ip, port, shared); err != nil {
			return None, nil, err
		}
	}

	conn := p.slots[h]
	conn.AddRef()

	return h, conn, nil
}

// Get returns the connection behind h.
func (p *Pool) Get(h Handle) (*client.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.get(h)
}

// AddRef adds a reference to the connection behind h and returns the new
// count.
func (p *Pool) AddRef(h Handle) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := p.get(h)
	if err != nil {
		return 0, err
	}

	return conn.AddRef(), nil
}

// DelRef drops a reference to the connection behind h and returns the new
// count. When the count reaches zero the slot is freed, the connection
// closed, and h becomes invalid.
func (p *Pool) DelRef(h Handle) (int, error) {
	p.mu.Lock()

	conn, err := p.get(h)
	if err != nil {
		p.mu.Unlock()
		return 0, err
	}

	count := conn.DelRef()
	if count > 0 {
		p.mu.Unlock()
		return count, nil
	}

	p.slots[h] = nil
	p.mu.Unlock()

	p.log.Debug("Releasing connection", zap.Int("handle", int(h)), zap.String("server", conn.Addr()))

	if err := conn.Release(); err != nil {
		p.log.Warn("Connection did not close cleanly",
			zap.String("server", conn.Addr()),
			zap.Error(err))
	}

	return 0, nil
}

// Len returns the number of occupied slots.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, conn := range p.slots {
		if conn != nil {
			n++
		}
	}

	return n
}

// Close closes and removes every connection regardless of its references.
func (p *Pool) Close() error {
	p.mu.Lock()
	conns := make([]*client.Conn, 0, Capacity)
	for i, conn := range p.slots {
		if conn != nil {
			conns = append(conns, conn)
			p.slots[i] = nil
		}
	}
	p.mu.Unlock()

	if len(conns) == 0 {
		return nil
	}

	p.log.Info("Closing connections", zap.Int("count", len(conns)))

	errs := make([]error, len(conns))

	var g errgroup.Group
	for i, conn := range conns {
		i, conn := i, conn
		g.Go(func() error {
			errs[i] = conn.Release()
			return nil
		})
	}

	_ = g.Wait()

	return multierr.Combine(errs...)
}

func (p *Pool) findShared(ip string, port uint16) Handle {
	for i, conn := range p.slots {
		if conn != nil && conn.IsShared() && conn.HasDestination(ip, port) {
			return Handle(i)
		}
	}

	return None
}

func (p *Pool) add(ip string, port uint16, shared bool) (Handle, error) {
	for i, conn := range p.slots {
		if conn == nil {
			options := p.template
			options.ServerIP = ip
			options.ServerPort = port
			options.Shared = shared

			p.slots[i] = client.New(options)
			return Handle(i), nil
		}
	}

	p.log.Error("Too many open connections",
		zap.String("serverIp", ip),
		zap.Uint16("serverPort", port),
		zap.Int("capacity", Capacity))

	return None, ErrPoolExhausted
}

func (p *Pool) get(h Handle) (*client.Conn, error) {
	if h < 0 || h >= Capacity || p.slots[h] == nil {
		p.log.Error("Invalid handle", zap.Int("handle", int(h)))
		return nil, errors.Wrapf(ErrInvalidHandle, "handle %d", h)
	}

	return p.slots[h], nil
}
