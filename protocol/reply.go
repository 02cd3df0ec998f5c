package protocol

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/sjson"
)

var (
	ErrMalformedReply = errors.New("Reply is malformed, expected a three digit code followed by ' ' or '-'")
)

// Reply is the full answer of an SVDRP server to one command.
type Reply struct {
	// Code is the status code of the final line, 0 if the exchange failed.
	Code int

	// Lines holds the text of every reply line with the status prefix
	// stripped, the final line last.
	Lines []string
}

// Last returns the text of the final reply line.
func (r *Reply) Last() string {
	if r == nil || len(r.Lines) == 0 {
		return ""
	}

	return r.Lines[len(r.Lines)-1]
}

// String renders the reply in its wire form without line terminators.
func (r *Reply) String() string {
	if r == nil {
		return ""
	}

	var sb strings.Builder
	for i, line := range r.Lines {
		sep := '-'
		if i == len(r.Lines)-1 {
			sep = ' '
		}

		if i > 0 {
			sb.WriteByte('\n')
		}

		fmt.Fprintf(&sb, "%03d%c%s", r.Code, sep, line)
	}

	return sb.String()
}

// JSON renders the reply as `{"code":250,"lines":["..."]}`.
func (r *Reply) JSON() ([]byte, error) {
	b, err := sjson.SetBytes([]byte(`{}`), "code", r.Code)
	if err != nil {
		return nil, err
	}

	b, err = sjson.SetRawBytes(b, "lines", []byte(`[]`))
	if err != nil {
		return nil, err
	}

	for _, line := range r.Lines {
		if b, err = sjson.SetBytes(b, "lines.-1", line); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// ParseLine splits a single reply line into its status code, whether it is the
// final line of the reply and its text.
func ParseLine(line string) (code int, final bool, text string, err error) {
	if len(line) < 4 {
		return 0, false, "", fmt.Errorf("Failed to parse '%s': %w", line, ErrMalformedReply)
	}

	for i := 0; i < 3; i++ {
		if line[i] < '0' || line[i] > '9' {
			return 0, false, "", fmt.Errorf("Failed to parse '%s': %w", line, ErrMalformedReply)
		}

		code = code*10 + int(line[i]-'0')
	}

	if code < MinCode || code > MaxCode {
		return 0, false, "", fmt.Errorf("Failed to parse '%s': %w", line, ErrMalformedReply)
	}

	switch line[3] {
	case ' ':
		final = true
	case '-':
		final = false
	default:
		return 0, false, "", fmt.Errorf("Failed to parse '%s': %w", line, ErrMalformedReply)
	}

	return code, final, line[4:], nil
}

// ReadReply reads lines until the final line of a reply. Each line's text is
// passed through decode when it is not nil.
//
// A failed read is returned as is, a line that does not follow the reply
// grammar yields an error wrapping ErrMalformedReply. In both cases the
// returned reply has Code 0 and no lines.
func ReadReply(l *LineReader, timeout time.Duration, decode func(string) string) (*Reply, error) {
	reply := &Reply{}

	for {
		line, err := l.ReadLine(timeout)
		if err != nil {
			return &Reply{}, err
		}

		code, final, text, err := ParseLine(line)
		if err != nil {
			return &Reply{}, err
		}

		if decode != nil {
			text = decode(text)
		}

		reply.Lines = append(reply.Lines, text)

		if final {
			reply.Code = code
			return reply, nil
		}
	}
}
