package service

import (
	"github.com/luma/svdrp/pool"
	"github.com/luma/svdrp/protocol"
)

// Request is one of AcquireConnection, ReleaseConnection or ExecuteCommand.
type Request interface {
	isRequest()
}

// AcquireConnection asks for a handle to a server. An empty ServerIP selects
// the default server, a zero ServerPort the default port.
type AcquireConnection struct {
	ServerIP   string
	ServerPort uint16
	Shared     bool
}

// ReleaseConnection gives back a handle obtained by AcquireConnection.
type ReleaseConnection struct {
	Handle pool.Handle
}

// ExecuteCommand sends Command, which must carry its `\r\n` terminator, and
// waits for the reply.
type ExecuteCommand struct {
	Handle  pool.Handle
	Command string
}

func (AcquireConnection) isRequest() {}
func (ReleaseConnection) isRequest() {}
func (ExecuteCommand) isRequest()    {}

// Response is one of Acquired, Released or Executed.
type Response interface {
	isResponse()
}

type Acquired struct {
	Handle pool.Handle
}

type Released struct {
	// Destroyed is set when the last reference was dropped and the
	// connection closed.
	Destroyed bool
}

type Executed struct {
	// Reply has code 0 and no lines if the exchange failed
	Reply *protocol.Reply
}

func (Acquired) isResponse() {}
func (Released) isResponse() {}
func (Executed) isResponse() {}

var _ Request = AcquireConnection{}
var _ Request = ReleaseConnection{}
var _ Request = ExecuteCommand{}
var _ Response = Acquired{}
var _ Response = Released{}
var _ Response = Executed{}
