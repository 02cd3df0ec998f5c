package protocol_test

import (
	"bytes"
	"io"
	"net"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/svdrp/protocol"
)

var _ = Describe("LineReader", func() {
	readAll := func(data string) []string {
		r := protocol.NewLineReader(strings.NewReader(data), 0)

		var lines []string
		for {
			line, err := r.ReadLine(time.Second)
			if err != nil {
				Expect(err).To(MatchError(io.EOF))
				return lines
			}
			lines = append(lines, line)
		}
	}

	It("splits on newlines and NUL bytes", func() {
		Expect(readAll("first\nsecond\x00third\n")).To(Equal([]string{"first", "second", "third"}))
	})

	It("drops CR and other control bytes but keeps tabs", func() {
		Expect(readAll("a\rb\x01c\td\x7fe\r\n")).To(Equal([]string{"abc\tde"}))
	})

	It("does not strip trailing whitespace", func() {
		Expect(readAll("250 OK  \t\r\n")).To(Equal([]string{"250 OK  \t"}))
	})

	It("returns an empty line for a bare terminator", func() {
		Expect(readAll("\r\n")).To(Equal([]string{""}))
	})

	It("reconstructs lines longer than the initial buffer", func() {
		long := strings.Repeat("0123456789", 200)
		Expect(readAll(long + "\n" + long + "\n")).To(Equal([]string{long, long}))
	})

	It("treats EOT at the start of a line as the end of the stream", func() {
		r := protocol.NewLineReader(strings.NewReader("\x04250 OK\n"), 0)

		_, err := r.ReadLine(time.Second)
		Expect(err).To(MatchError(protocol.ErrEndOfStream))
	})

	It("drops EOT in the middle of a line", func() {
		Expect(readAll("25\x040 OK\n")).To(Equal([]string{"250 OK"}))
	})

	It("fails with EOF if the stream ends mid line", func() {
		r := protocol.NewLineReader(strings.NewReader("250 O"), 0)

		line, err := r.ReadLine(time.Second)
		Expect(err).To(MatchError(io.EOF))
		Expect(line).To(BeEmpty())
	})

	It("fails when a line exceeds the maximum length", func() {
		r := protocol.NewLineReader(bytes.NewReader([]byte("0123456789\n")), 4)

		_, err := r.ReadLine(time.Second)
		Expect(err).To(MatchError(protocol.ErrLineTooLong))
	})

	It("times out when the server stays silent", func() {
		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		r := protocol.NewLineReader(client, 0)

		start := time.Now()
		_, err := r.ReadLine(50 * time.Millisecond)
		Expect(err).To(HaveOccurred())
		Expect(os.IsTimeout(err)).To(BeTrue())
		Expect(time.Since(start)).To(BeNumerically("<", time.Second))
	})

	It("reads lines that arrive in pieces", func() {
		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		go func() {
			defer GinkgoRecover()
			_, _ = server.Write([]byte("220 hel"))
			time.Sleep(10 * time.Millisecond)
			_, _ = server.Write([]byte("lo\r\n"))
		}()

		r := protocol.NewLineReader(client, 0)
		Expect(r.ReadLine(time.Second)).To(Equal("220 hello"))
	})
})
