package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// TerminalUI writes progress messages for a single machine and asks
// yes/no questions on the terminal.
type TerminalUI struct {
	// Prefix is printed before every line, typically "==> default: ".
	Prefix string

	Out io.Writer
	Err io.Writer
	In  io.Reader

	mu     sync.Mutex
	reader *bufio.Reader
}

// NewTerminalUI returns a UI prefixed with the machine name.
func NewTerminalUI(machine string, in io.Reader, out, errOut io.Writer) *TerminalUI {
	return &TerminalUI{
		Prefix: fmt.Sprintf("==> %s: ", machine),
		Out:    out,
		Err:    errOut,
		In:     in,
	}
}

// Info prints an informational line.
func (u *TerminalUI) Info(message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, _ = fmt.Fprintf(u.Out, "%s%s\n", u.Prefix, message)
}

// Warn prints a warning line to the error stream.
func (u *TerminalUI) Warn(message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, _ = fmt.Fprintf(u.Err, "%sWARNING: %s\n", u.Prefix, message)
}

// Confirm asks a yes/no question. Only "y" and "yes" (any case) confirm;
// end of input declines.
func (u *TerminalUI) Confirm(prompt string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.reader == nil {
		u.reader = bufio.NewReader(u.In)
	}

	_, _ = fmt.Fprintf(u.Out, "%s%s [y/N] ", u.Prefix, prompt)
	line, err := u.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
