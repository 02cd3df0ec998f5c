package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"time"
)

const (
	// lineChunk is the step the line buffer grows by.
	lineChunk = 256

	// DefaultMaxLineLength bounds a single line received from the server.
	DefaultMaxLineLength = 1024 * 1024

	eot = 0x04
)

var (
	ErrLineTooLong = errors.New("Line is too long, it exceeds the maximum line length")
	ErrEndOfStream = errors.New("Server signalled the end of the stream")
)

// Deadliner is implemented by streams that support read deadlines, such as
// net.Conn.
type Deadliner interface {
	SetReadDeadline(t time.Time) error
}

// LineReader turns a byte stream from an SVDRP server into lines.
//
// The line buffer is reused between calls, a LineReader must not be used by
// more than one goroutine at a time.
type LineReader struct {
	r        *bufio.Reader
	deadline Deadliner

	line bytes.Buffer
	max  int
}

// NewLineReader reads from rd. If rd implements Deadliner every wait for new
// data is bounded by the timeout passed to ReadLine.
func NewLineReader(rd io.Reader, maxLineLength int) *LineReader {
	if maxLineLength <= 0 {
		maxLineLength = DefaultMaxLineLength
	}

	l := &LineReader{
		r:   bufio.NewReaderSize(rd, lineChunk),
		max: maxLineLength,
	}

	if d, ok := rd.(Deadliner); ok {
		l.deadline = d
	}

	l.line.Grow(lineChunk)

	return l
}

// ReadLine returns the next line without its terminator. Control bytes other
// than TAB are dropped. A timeout of zero waits forever.
//
// On error the partial line is discarded, the stream should be considered
// unusable afterwards.
func (l *LineReader) ReadLine(timeout time.Duration) (string, error) {
	l.line.Reset()

	for {
		if err := l.waitReady(timeout); err != nil {
			return "", err
		}

		c, err := l.r.ReadByte()
		if err != nil {
			l.line.Reset()
			return "", err
		}

		switch {
		case c == '\n' || c == 0x00:
			line := l.line.String()
			l.line.Reset()
			return line, nil

		case c == eot && l.line.Len() == 0:
			return "", ErrEndOfStream

		case (c <= 0x1F || c == 0x7F) && c != '\t':
			// Ignore control characters

		default:
			if l.line.Len() >= l.max {
				l.line.Reset()
				return "", ErrLineTooLong
			}

			if l.line.Available() == 0 {
				l.line.Grow(lineChunk)
			}

			l.line.WriteByte(c)
		}
	}
}

// waitReady arms the read deadline when the next byte has to come from the
// underlying stream.
func (l *LineReader) waitReady(timeout time.Duration) error {
	if l.deadline == nil || l.r.Buffered() > 0 {
		return nil
	}

	if timeout <= 0 {
		return l.deadline.SetReadDeadline(time.Time{})
	}

	return l.deadline.SetReadDeadline(time.Now().Add(timeout))
}
