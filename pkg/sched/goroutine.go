package sched

import (
	"fmt"
	"io"
	"path"
	"runtime/debug"
	"syscall"

	"github.com/criyle/go-binfmt/pkg/binfmt"
	"github.com/criyle/go-binfmt/pkg/binfmt/builtin"
)

type entryImage interface {
	Entry() builtin.Entry
}

// GoroutineStarter runs builtin images in goroutines of the calling process
type GoroutineStarter struct {
	Sched  *Scheduler
	Stdout io.Writer
	Stderr io.Writer
}

var _ binfmt.Starter = &GoroutineStarter{}

// Start implements binfmt.Starter. The task sees the arguments of bin and
// its export table.
func (g *GoroutineStarter) Start(bin *binfmt.Binary) (int, error) {
	img, ok := bin.Image.(entryImage)
	if !ok {
		return binfmt.ErrorPID, ErrImageKind
	}
	entry := img.Entry()
	args := bin.Args()
	exports := bin.Exports
	stdout, stderr := g.Stdout, g.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	s := g.Sched
	return s.spawn(path.Base(bin.Filename), "goroutine", s.allocID, func(pid int) {
		env := &builtin.Env{
			PID:     pid,
			Args:    args,
			Exports: exports,
			Stdout:  stdout,
			Stderr:  stderr,
		}
		s.exit(pid, s.runEntry(entry, env))
	})
}

func (s *Scheduler) runEntry(entry builtin.Entry, env *builtin.Env) (r Result) {
	defer func() {
		if err := recover(); err != nil {
			s.logger.Error("task panicked", "pid", env.PID, "error", err, "stack", string(debug.Stack()))
			fmt.Fprintf(env.Stderr, "panic: %v\n", err)
			r = signalledResult(syscall.SIGABRT)
		}
	}()
	return exitedResult(entry(env))
}
