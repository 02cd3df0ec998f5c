package protocol

import (
	"errors"
	"strings"
)

var (
	ErrMultiLineCommand = errors.New("Command spans more than one line")
)

type Command string

const (
	QUIT Command = "QUIT"
	LSTC Command = "LSTC"
	HELP Command = "HELP"
	STAT Command = "STAT"
)

const (
	// CodeGreeting is the status code of the reply sent on connect.
	CodeGreeting = 220

	// CodeClosing is the usual reply to QUIT.
	CodeClosing = 221

	MinCode = 100
	MaxCode = 999
)

// Line returns the command terminated by `\r\n`, ready to be sent.
func (c Command) Line(args ...string) string {
	line := string(c)
	for _, arg := range args {
		line += " " + arg
	}

	return line + string(Terminal)
}

// CheckLine fails if cmd holds a line break before its optional trailing
// `\r\n`. Such a command would be read as several by the server while only
// one reply is read back.
func CheckLine(cmd string) error {
	if strings.ContainsAny(strings.TrimSuffix(cmd, string(Terminal)), "\r\n") {
		return ErrMultiLineCommand
	}

	return nil
}
