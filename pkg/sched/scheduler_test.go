package sched

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/criyle/go-binfmt/pkg/binfmt"
	"github.com/criyle/go-binfmt/pkg/binfmt/builtin"
)

func loadBuiltin(t *testing.T, name string, entry builtin.Entry, args []string) *binfmt.Binary {
	t.Helper()
	f := builtin.New()
	if err := f.Add(name, entry); err != nil {
		t.Fatal(err)
	}
	bin := binfmt.NewBinary(name, args, nil)
	if err := binfmt.NewRegistry(f).Load(bin); err != nil {
		t.Fatal(err)
	}
	return bin
}

func waitResult(t *testing.T, s *Scheduler, pid int) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := s.Wait(ctx, pid)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestGoroutineTask(t *testing.T) {
	t.Parallel()
	s := New(Config{KeepExited: true})
	var out bytes.Buffer
	g := &GoroutineStarter{Sched: s, Stdout: &out}

	bin := loadBuiltin(t, "echo", func(env *builtin.Env) int {
		env.Stdout.Write([]byte(env.Args[1]))
		return 3
	}, []string{"echo", "hi"})

	pid, err := g.Start(bin)
	if err != nil {
		t.Fatal(err)
	}
	if pid <= firstTaskID {
		t.Fatalf("unexpected pid %d", pid)
	}
	r := waitResult(t, s, pid)
	if r.Status != StatusNonzeroExitStatus || r.ExitStatus != 3 || r.Code() != 3 {
		t.Fatalf("unexpected result %v", r)
	}
	if out.String() != "hi" {
		t.Fatalf("unexpected output %q", out.String())
	}
	tasks := s.Tasks()
	if len(tasks) != 1 || tasks[0].State != TaskExited || tasks[0].Name != "echo" {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
	if err := s.OnExit(pid, func(int) {}); !errors.Is(err, ErrNoTask) {
		t.Fatalf("expected ErrNoTask for exited task, got %v", err)
	}
}

func TestOnExitUnknown(t *testing.T) {
	t.Parallel()
	s := New(Config{})
	if err := s.OnExit(12345, func(int) {}); !errors.Is(err, syscall.ESRCH) {
		t.Fatalf("expected ESRCH, got %v", err)
	}
	if _, err := s.Wait(context.Background(), 12345); !errors.Is(err, ErrNoTask) {
		t.Fatalf("expected ErrNoTask, got %v", err)
	}
}

func TestExitHooksOrder(t *testing.T) {
	t.Parallel()
	s := New(Config{MaxExitHooks: 3, KeepExited: true})
	g := &GoroutineStarter{Sched: s}

	release := make(chan struct{})
	bin := loadBuiltin(t, "block", func(*builtin.Env) int {
		<-release
		return 0
	}, nil)
	pid, err := g.Start(bin)
	if err != nil {
		t.Fatal(err)
	}

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 1; i <= 3; i++ {
		i := i
		if err := s.OnExit(pid, func(p int) {
			if p != pid {
				t.Errorf("hook called with %d, want %d", p, pid)
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.OnExit(pid, func(int) {}); !errors.Is(err, syscall.ENOSPC) {
		t.Fatalf("expected ENOSPC, got %v", err)
	}

	waiter := make(chan Result)
	go func() {
		r, _ := s.Wait(context.Background(), pid)
		waiter <- r
	}()
	close(release)
	if r := <-waiter; !r.Success() {
		t.Fatalf("unexpected result %v", r)
	}

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]int{3, 2, 1}, order); diff != "" {
		t.Fatalf("hook order (-want +got):\n%s", diff)
	}
	if s.Running() != 0 || s.Tasks()[0].State != TaskExited {
		t.Fatalf("unexpected tasks %+v", s.Tasks())
	}
}

func TestExitedTaskRemoved(t *testing.T) {
	t.Parallel()
	s := New(Config{})
	g := &GoroutineStarter{Sched: s}

	release := make(chan struct{})
	bin := loadBuiltin(t, "block", func(*builtin.Env) int {
		<-release
		return 0
	}, nil)
	pid, err := g.Start(bin)
	if err != nil {
		t.Fatal(err)
	}
	called := make(chan struct{})
	if err := s.OnExit(pid, func(int) { close(called) }); err != nil {
		t.Fatal(err)
	}
	close(release)
	<-called
	if s.Running() != 0 || len(s.Tasks()) != 0 {
		t.Fatal("exited task kept in table")
	}
	if err := s.OnExit(pid, func(int) {}); !errors.Is(err, ErrNoTask) {
		t.Fatalf("expected ErrNoTask, got %v", err)
	}
}

func TestPreemptionDefersExit(t *testing.T) {
	t.Parallel()
	s := New(Config{KeepExited: true})
	g := &GoroutineStarter{Sched: s}

	s.Disable()
	s.Disable()
	bin := loadBuiltin(t, "true", func(*builtin.Env) int { return 0 }, nil)
	pid, err := g.Start(bin)
	if err != nil {
		t.Fatal(err)
	}

	// the task finishes but its exit is not dispatched
	deadline := time.Now().Add(5 * time.Second)
	for s.Tasks()[0].State != TaskExiting {
		if time.Now().After(deadline) {
			t.Fatal("task did not reach exiting state")
		}
		time.Sleep(time.Millisecond)
	}

	called := make(chan int, 1)
	if err := s.OnExit(pid, func(p int) { called <- p }); err != nil {
		t.Fatalf("register hook on exiting task: %v", err)
	}
	s.Enable()
	select {
	case <-called:
		t.Fatal("hook ran with preemption disabled")
	case <-time.After(20 * time.Millisecond):
	}
	s.Enable()

	if p := <-called; p != pid {
		t.Fatalf("hook called with %d", p)
	}
	waitResult(t, s, pid)
}

func TestEnableWithoutDisable(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New(Config{}).Enable()
}

func TestTaskTableFull(t *testing.T) {
	t.Parallel()
	s := New(Config{MaxTasks: 2, KeepExited: true})
	g := &GoroutineStarter{Sched: s}

	release := make(chan struct{})
	bin := loadBuiltin(t, "block", func(*builtin.Env) int {
		<-release
		return 0
	}, nil)
	var pids []int
	for i := 0; i < 2; i++ {
		pid, err := g.Start(bin)
		if err != nil {
			t.Fatal(err)
		}
		pids = append(pids, pid)
	}
	if _, err := g.Start(bin); !errors.Is(err, syscall.EAGAIN) {
		t.Fatalf("expected EAGAIN, got %v", err)
	}
	if s.Running() != 2 {
		t.Fatalf("running %d", s.Running())
	}

	waiters := make(chan struct{}, len(pids))
	for _, pid := range pids {
		go func(pid int) {
			s.Wait(context.Background(), pid)
			waiters <- struct{}{}
		}(pid)
	}
	close(release)
	for range pids {
		<-waiters
	}
}

func TestPanicAborts(t *testing.T) {
	t.Parallel()
	s := New(Config{KeepExited: true})
	var stderr bytes.Buffer
	g := &GoroutineStarter{Sched: s, Stderr: &stderr}

	bin := loadBuiltin(t, "crash", func(*builtin.Env) int { panic("boom") }, nil)
	pid, err := g.Start(bin)
	if err != nil {
		t.Fatal(err)
	}
	r := waitResult(t, s, pid)
	if r.Status != StatusSignalled || r.ExitStatus != int(syscall.SIGABRT) {
		t.Fatalf("unexpected result %v", r)
	}
	if r.Code() != 128+int(syscall.SIGABRT) {
		t.Fatalf("unexpected code %d", r.Code())
	}
}

func TestWaitCanceled(t *testing.T) {
	t.Parallel()
	s := New(Config{})
	g := &GoroutineStarter{Sched: s}

	release := make(chan struct{})
	defer close(release)
	bin := loadBuiltin(t, "block", func(*builtin.Env) int {
		<-release
		return 0
	}, nil)
	pid, err := g.Start(bin)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Wait(ctx, pid); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

type rejectStarter struct{ calls int }

func (r *rejectStarter) Start(*binfmt.Binary) (int, error) {
	r.calls++
	return binfmt.ErrorPID, ErrImageKind
}

func TestChain(t *testing.T) {
	t.Parallel()
	s := New(Config{})
	rej := &rejectStarter{}
	c := Chain{rej, &GoroutineStarter{Sched: s}}

	bin := loadBuiltin(t, "true", func(*builtin.Env) int { return 0 }, nil)
	pid, err := c.Start(bin)
	if err != nil {
		t.Fatal(err)
	}
	if rej.calls != 1 {
		t.Fatalf("first starter called %d times", rej.calls)
	}
	s.Wait(context.Background(), pid)

	if _, err := (Chain{rej}).Start(bin); !errors.Is(err, syscall.ENOEXEC) {
		t.Fatalf("expected ENOEXEC, got %v", err)
	}
}

func TestStatusString(t *testing.T) {
	t.Parallel()
	if StatusDisallowedSyscall.String() != "Disallowed Syscall" || Status(100).String() != "Invalid" {
		t.Fatal("unexpected status names")
	}
	if r := signalledResult(syscall.SIGXCPU); r.Status != StatusTimeLimitExceeded {
		t.Fatalf("unexpected status %v", r.Status)
	}
	if TaskExiting.String() != "exiting" || State(9).String() != "unknown" {
		t.Fatal("unexpected state names")
	}
}
