package sched

import (
	"errors"
	"io"
	"os"
	"syscall"
	"testing"

	"github.com/criyle/go-binfmt/pkg/argv"
	"github.com/criyle/go-binfmt/pkg/binfmt"
	"github.com/criyle/go-binfmt/pkg/binfmt/builtin"
	"github.com/criyle/go-binfmt/pkg/binfmt/native"
	"github.com/criyle/go-binfmt/pkg/kmem"
	"github.com/criyle/go-binfmt/pkg/seccomp"
)

func newExecutor(t *testing.T, s *Scheduler, p *ProcessStarter) *binfmt.Executor {
	t.Helper()
	p.Sched = s
	e, err := binfmt.New(binfmt.Config{
		Caps:    binfmt.Caps{Isolated: true, AutoUnload: true},
		Alloc:   kmem.NewPool(1 << 20),
		Loader:  binfmt.NewRegistry(native.Format{}, builtin.Defaults()),
		Starter: Chain{p, &GoroutineStarter{Sched: s}},
		Exits:   s,
		Preempt: s,
	})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestProcessTrue(t *testing.T) {
	t.Parallel()
	if _, err := os.Stat("/bin/true"); err != nil {
		t.Skip(err)
	}
	s := New(Config{KeepExited: true})
	e := newExecutor(t, s, &ProcessStarter{})

	res, err := e.Exec("/bin/true", []string{"true", "-x"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Warning != nil {
		t.Fatal(res.Warning)
	}
	r := waitResult(t, s, res.PID)
	if !r.Success() {
		t.Fatalf("unexpected result %v", r)
	}
	if info := s.Tasks()[0]; info.Kind != "process" || info.Name != "true" {
		t.Fatalf("unexpected task %+v", info)
	}
}

func TestProcessArgs(t *testing.T) {
	t.Parallel()
	if _, err := os.Stat("/bin/echo"); err != nil {
		t.Skip(err)
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer pr.Close()

	s := New(Config{KeepExited: true})
	e := newExecutor(t, s, &ProcessStarter{Files: []uintptr{0, pw.Fd(), 2}})

	res, err := e.Exec("/bin/echo", []string{"echo", "a b", "c"}, nil)
	pw.Close()
	if err != nil {
		t.Fatal(err)
	}
	out, err := io.ReadAll(pr)
	if err != nil {
		t.Fatal(err)
	}
	waitResult(t, s, res.PID)
	if string(out) != "a b c\n" {
		t.Fatalf("output %q", out)
	}
}

func TestProcessExitStatus(t *testing.T) {
	t.Parallel()
	if _, err := os.Stat("/bin/false"); err != nil {
		t.Skip(err)
	}
	s := New(Config{KeepExited: true})
	e := newExecutor(t, s, &ProcessStarter{})

	res, err := e.Exec("/bin/false", []string{"false"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r := waitResult(t, s, res.PID); r.Status != StatusNonzeroExitStatus || r.Code() != 1 {
		t.Fatalf("unexpected result %v", r)
	}
}

func TestProcessSeccompDenied(t *testing.T) {
	t.Parallel()
	if _, err := os.Stat("/bin/true"); err != nil {
		t.Skip(err)
	}
	p := seccomp.Policy{
		Syscalls: []seccomp.Rule{{Action: "errno", Names: []string{"execve", "execveat"}}},
	}
	filter, err := p.Build()
	if err != nil {
		t.Fatal(err)
	}
	s := New(Config{})
	e := newExecutor(t, s, &ProcessStarter{Seccomp: filter})

	res, err := e.Exec("/bin/true", []string{"true"}, nil)
	if !errors.Is(err, binfmt.ErrStart) || !errors.Is(err, syscall.EPERM) {
		t.Fatalf("expected start failure with EPERM, got %v", err)
	}
	if res.PID != binfmt.ErrorPID || s.Running() != 0 {
		t.Fatalf("unexpected task state %v %d", res, s.Running())
	}
}

func TestProcessRunsBuiltinFallback(t *testing.T) {
	t.Parallel()
	s := New(Config{KeepExited: true})
	e := newExecutor(t, s, &ProcessStarter{})

	res, err := e.Exec("/no/such/dir/true", []string{"true"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if info := s.Tasks()[0]; info.Kind != "goroutine" {
		t.Fatalf("unexpected task %+v", info)
	}
	waitResult(t, s, res.PID)
}

func TestProcessTooManyArgs(t *testing.T) {
	t.Parallel()
	s := New(Config{})
	e := newExecutor(t, s, &ProcessStarter{})

	args := make([]string, argv.MaxArgs+1)
	for i := range args {
		args[i] = "x"
	}
	if _, err := e.Exec("/bin/true", args, nil); !errors.Is(err, syscall.E2BIG) {
		t.Fatalf("expected E2BIG, got %v", err)
	}
	if s.Running() != 0 {
		t.Fatal("task started")
	}
}
