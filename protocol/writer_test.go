package protocol_test

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/svdrp/protocol"
)

var _ = Describe("Writer", func() {
	Describe("WriteString", func() {
		It("writes the command verbatim", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteString(w, "LSTC\r\n")).To(Succeed())
			Expect(w.String()).To(Equal("LSTC\r\n"))
		})

		It("does not add a terminator", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteString(w, "LSTC")).To(Succeed())
			Expect(w.String()).To(Equal("LSTC"))
		})
	})

	Describe("WriteCommand", func() {
		It("ends in \r\n", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteCommand(w, protocol.QUIT)).To(Succeed())
			Expect(w.String()).To(Equal("QUIT\r\n"))
		})

		It("separates arguments with spaces", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteCommand(w, protocol.LSTC, "1", "2")).To(Succeed())
			Expect(w.String()).To(Equal("LSTC 1 2\r\n"))
		})
	})

	Describe("WriteReply", func() {
		It("writes a single line reply", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteReply(w, 250, "OK")).To(Succeed())
			Expect(w.String()).To(Equal("250 OK\r\n"))
		})

		It("marks every line but the last as a continuation", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteReply(w, 214, "first", "second", "done")).To(Succeed())
			Expect(w.String()).To(Equal("214-first\r\n214-second\r\n214 done\r\n"))
		})

		It("writes a bare code line when there is no text", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteReply(w, 221)).To(Succeed())
			Expect(w.String()).To(Equal("221 \r\n"))
		})
	})
})
