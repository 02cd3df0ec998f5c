package protocol

import (
	"io"
)

var (
	Terminal = []byte("\r\n")
)

// WriteString writes s verbatim. Commands are expected to carry their own
// terminator.
func WriteString(w io.Writer, s string) error {
	return writeAll(w, []byte(s))
}

// WriteCommand writes cmd followed by `\r\n`.
func WriteCommand(w io.Writer, cmd Command, args ...string) error {
	return WriteString(w, cmd.Line(args...))
}

// WriteReply serialises a reply the way a server would send it. Every line
// but the last uses the `-` separator.
func WriteReply(w io.Writer, code int, lines ...string) error {
	if len(lines) == 0 {
		lines = []string{""}
	}

	var b []byte
	for i, line := range lines {
		sep := byte('-')
		if i == len(lines)-1 {
			sep = ' '
		}

		b = appendCode(b, code)
		b = append(b, sep)
		b = append(b, line...)
		b = append(b, Terminal...)
	}

	return writeAll(w, b)
}

func appendCode(b []byte, code int) []byte {
	return append(b, byte('0'+code/100%10), byte('0'+code/10%10), byte('0'+code%10))
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}

		if n == 0 {
			return io.ErrShortWrite
		}

		b = b[n:]
	}

	return nil
}
