package client

import (
	"time"

	"go.uber.org/zap"

	"github.com/luma/svdrp/charset"
	"github.com/luma/svdrp/protocol"
)

type Options struct {
	// ServerIP and ServerPort are the destination, they never change
	ServerIP   string
	ServerPort uint16

	// Shared connections may be handed out to unrelated callers
	Shared bool

	// ConnectTimeout bounds the connect and the wait for the greeting
	ConnectTimeout time.Duration

	// ReadTimeout bounds every wait for reply data
	ReadTimeout time.Duration

	// Charset is the local character set, replies are converted to it
	Charset string

	MaxLineLength int

	Log *zap.Logger
}

func (o *Options) setDefaults() {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}

	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}

	if o.Charset == "" {
		o.Charset = charset.UTF8
	}

	if o.MaxLineLength <= 0 {
		o.MaxLineLength = protocol.DefaultMaxLineLength
	}

	if o.Log == nil {
		o.Log = zap.NewNop()
	}
}
