package sched

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/criyle/go-binfmt/pkg/binfmt"
)

// ErrImageKind is returned by a starter given an image it cannot run
var ErrImageKind = fmt.Errorf("sched: unsupported image: %w", syscall.ENOEXEC)

// Chain is a starter trying each starter in order until one accepts the
// image kind
type Chain []binfmt.Starter

// Start implements binfmt.Starter
func (c Chain) Start(bin *binfmt.Binary) (int, error) {
	for _, s := range c {
		pid, err := s.Start(bin)
		if errors.Is(err, ErrImageKind) {
			continue
		}
		return pid, err
	}
	return binfmt.ErrorPID, fmt.Errorf("%w: %s image", ErrImageKind, bin.Format)
}
