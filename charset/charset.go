// Package charset converts text between the character set of an SVDRP server
// and the local one.
package charset

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	// UTF8 is used when a side of the conversion is not known.
	UTF8 = "UTF-8"

	// Placeholder replaces characters that have no representation in the
	// target character set.
	Placeholder = '?'
)

var (
	ErrUnknownCharset = errors.New("Unknown or unsupported character set")
)

// Transcoder converts text from one character set to another.
//
// The output buffers are reused between calls, a Transcoder must not be used
// by more than one goroutine at a time.
type Transcoder struct {
	from string
	to   string

	// decode turns from into UTF-8, encode turns UTF-8 into to. Either is nil
	// when its side already is UTF-8.
	decode transform.Transformer
	encode transform.Transformer

	mid []byte
	out []byte
}

// New creates a Transcoder from one character set to another. A missing name
// is treated as UTF-8, two equal names yield the identity.
func New(from, to string) (*Transcoder, error) {
	if from == "" {
		from = UTF8
	}

	if to == "" {
		to = UTF8
	}

	t := &Transcoder{from: from, to: to}

	if Equal(from, to) {
		return t, nil
	}

	fromEnc, err := Lookup(from)
	if err != nil {
		return nil, err
	}

	toEnc, err := Lookup(to)
	if err != nil {
		return nil, err
	}

	if fromEnc != unicode.UTF8 {
		t.decode = fromEnc.NewDecoder()
	}

	if toEnc != unicode.UTF8 {
		t.encode = toEnc.NewEncoder()
	}

	return t, nil
}

// Lookup resolves a character set name, IANA names first and WHATWG labels
// second.
func Lookup(name string) (encoding.Encoding, error) {
	if Equal(name, UTF8) {
		return unicode.UTF8, nil
	}

	if enc, err := ianaindex.IANA.Encoding(name); err == nil && enc != nil {
		return enc, nil
	}

	if enc, err := htmlindex.Get(name); err == nil && enc != nil {
		return enc, nil
	}

	return nil, fmt.Errorf("Failed to resolve '%s': %w", name, ErrUnknownCharset)
}

// Equal compares two character set names ignoring case and anything that is
// not a letter or a digit, so "utf8" equals "UTF-8".
func Equal(a, b string) bool {
	return normalize(a) == normalize(b)
}

func normalize(name string) string {
	var sb strings.Builder

	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}

	return sb.String()
}

func (t *Transcoder) From() string { return t.from }

func (t *Transcoder) To() string { return t.to }

// Identity reports whether Convert returns its input unchanged.
func (t *Transcoder) Identity() bool {
	return t == nil || (t.decode == nil && t.encode == nil)
}

// Convert converts text in one go. Characters that cannot be represented are
// replaced by Placeholder, any other failure returns text unchanged. A nil
// Transcoder is the identity.
func (t *Transcoder) Convert(text string) string {
	if t.Identity() || text == "" {
		return text
	}

	src := []byte(text)

	if t.decode != nil {
		var ok bool
		if t.mid, ok = run(t.decode, src, t.mid, skipByte); !ok {
			return text
		}

		src = t.mid
	}

	if t.encode != nil {
		var ok bool
		if t.out, ok = run(t.encode, src, t.out, skipRune); !ok {
			return text
		}

		src = t.out
	}

	return string(src)
}

// run transforms all of src into dst, growing dst as needed.
func run(tr transform.Transformer, src, dst []byte, skip func([]byte) int) ([]byte, bool) {
	tr.Reset()

	dst = dst[:0]
	if cap(dst) < len(src) {
		dst = make([]byte, 0, len(src)+utf8.UTFMax)
	}

	for {
		if len(dst) == cap(dst) {
			dst = grow(dst)
		}

		nDst, nSrc, err := tr.Transform(dst[len(dst):cap(dst)], src, true)
		dst = dst[:len(dst)+nDst]
		src = src[nSrc:]

		switch {
		case err == nil:
			return dst, true

		case errors.Is(err, transform.ErrShortDst):
			dst = grow(dst)

		case unconvertible(err) && len(src) > 0:
			dst = append(dst, Placeholder)
			src = src[skip(src):]

		default:
			return nil, false
		}
	}
}

func grow(b []byte) []byte {
	n := make([]byte, len(b), 2*cap(b)+utf8.UTFMax)
	copy(n, b)
	return n
}

// unconvertible reports whether err is about a single input unit, rather than
// the conversion as a whole.
func unconvertible(err error) bool {
	if errors.Is(err, encoding.ErrInvalidUTF8) {
		return true
	}

	var repertoire interface{ Replacement() byte }
	return errors.As(err, &repertoire)
}

func skipByte(src []byte) int {
	return 1
}

func skipRune(src []byte) int {
	_, size := utf8.DecodeRune(src)
	return size
}
