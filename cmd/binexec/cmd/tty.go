package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// terminal is a pseudo terminal relayed to the standard files
type terminal struct {
	ptmx, tty *os.File
	oldState  *term.State
}

func openTerminal() (*terminal, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		if err := pty.InheritSize(os.Stdin, ptmx); err != nil {
			ptmx.Close()
			tty.Close()
			return nil, fmt.Errorf("pty size: %w", err)
		}
	}
	return &terminal{ptmx: ptmx, tty: tty}, nil
}

// Attach puts the local terminal in raw mode and relays the pty until it is
// closed by the task or ctx is done. The task side is closed first so that
// the relay ends with the task.
func (t *terminal) Attach(ctx context.Context) error {
	t.tty.Close()
	t.tty = nil

	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		st, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		t.oldState = st
	}

	go io.Copy(t.ptmx, os.Stdin)
	done := make(chan struct{})
	go func() {
		defer close(done)
		io.Copy(os.Stdout, t.ptmx)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	return nil
}

// Close restores the local terminal and closes the pty
func (t *terminal) Close() error {
	if t.oldState != nil {
		term.Restore(int(os.Stdin.Fd()), t.oldState)
		t.oldState = nil
	}
	if t.tty != nil {
		t.tty.Close()
	}
	return t.ptmx.Close()
}
