//go:build !windows

package config

import (
	"os"

	"golang.org/x/term"
)

// forbiddenNameChars cannot appear in file names in addition to path
// separators.
const forbiddenNameChars = ""

func platformFileName(name string) string {
	return name
}

// EnableColorOutput checks if colorized output is possible.
func EnableColorOutput(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}
