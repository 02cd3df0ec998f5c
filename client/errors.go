package client

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds, match them with errors.Is.
var (
	ErrConfig    = errors.New("invalid destination")
	ErrConnect   = errors.New("connect failed")
	ErrHandshake = errors.New("handshake failed")
	ErrProtocol  = errors.New("protocol violation")
	ErrIO        = errors.New("i/o failure")
)

var (
	errNoServer     = errors.New("no server ip")
	errNotConnected = errors.New("not connected")
	errReleased     = errors.New("connection was released")
)

// Error describes a failure on the connection to one server.
type Error struct {
	Kind error
	Addr string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("svdrp %s: %s: %v", e.Addr, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newError(kind error, addr string, err error) error {
	return errors.WithStack(&Error{Kind: kind, Addr: addr, Err: err})
}
