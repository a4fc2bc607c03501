// Package sched tracks started tasks and dispatches their exit hooks.
//
// Exits are dispatched only while preemption is enabled. A task that
// terminates while preemption is disabled stays in the exiting state, and
// hooks registered meanwhile still run, once the last Enable is called.
package sched

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Errors reported by the scheduler
var (
	ErrNoTask       = fmt.Errorf("sched: no such task: %w", syscall.ESRCH)
	ErrTooManyHooks = fmt.Errorf("sched: too many exit hooks: %w", syscall.ENOSPC)
	ErrTooManyTasks = fmt.Errorf("sched: task table full: %w", syscall.EAGAIN)
)

// Default limits
const (
	DefaultMaxTasks     = 64
	DefaultMaxExitHooks = 4
)

// first id of goroutine tasks, above the Linux pid_max limit so that they
// never collide with process ids
const firstTaskID = 1 << 22

// State is the life cycle state of a task
type State int

// Task states
const (
	TaskRunning State = iota
	TaskExiting
	TaskExited
)

var stateString = []string{"running", "exiting", "exited"}

func (s State) String() string {
	if s >= TaskRunning && s <= TaskExited {
		return stateString[s]
	}
	return "unknown"
}

// Config is the configuration of a scheduler
type Config struct {
	MaxTasks     int  `mapstructure:"max_tasks"`
	MaxExitHooks int  `mapstructure:"max_exit_hooks"`
	KeepExited   bool `mapstructure:"keep_exited"`

	Logger hclog.Logger `mapstructure:"-"`
}

// Info describes a task
type Info struct {
	PID     int
	Name    string
	Kind    string
	State   State
	Started time.Time
	Result  Result
}

type task struct {
	Info
	hooks []func(pid int)
	done  chan struct{}
}

// Scheduler is the task table. It is safe for concurrent use.
type Scheduler struct {
	cfg    Config
	logger hclog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	depth   int
	tasks   map[int]*task
	running int
	pending int

	nextID atomic.Int64
}

// New creates a scheduler
func New(c Config) *Scheduler {
	if c.MaxTasks <= 0 {
		c.MaxTasks = DefaultMaxTasks
	}
	if c.MaxExitHooks <= 0 {
		c.MaxExitHooks = DefaultMaxExitHooks
	}
	if c.Logger == nil {
		c.Logger = hclog.NewNullLogger()
	}
	s := &Scheduler{
		cfg:    c,
		logger: c.Logger.Named("sched"),
		tasks:  make(map[int]*task),
	}
	s.cond = sync.NewCond(&s.mu)
	s.nextID.Store(firstTaskID)
	return s
}

// Disable holds back the dispatch of task exits. Calls nest.
func (s *Scheduler) Disable() {
	s.mu.Lock()
	s.depth++
	s.mu.Unlock()
}

// Enable undoes one Disable. Pending exits are dispatched when the last one
// is undone.
func (s *Scheduler) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.depth == 0 {
		panic("sched: enable without disable")
	}
	s.depth--
	if s.depth == 0 {
		s.cond.Broadcast()
	}
}

// OnExit registers fn to be called with pid after the task pid terminates.
// Hooks of a task run in reverse registration order.
func (s *Scheduler) OnExit(pid int, fn func(pid int)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[pid]
	if !ok || t.State == TaskExited {
		return ErrNoTask
	}
	if len(t.hooks) >= s.cfg.MaxExitHooks {
		return ErrTooManyHooks
	}
	t.hooks = append(t.hooks, fn)
	return nil
}

// Wait waits for the task pid to finish and returns its result. Exit hooks
// have run when Wait returns.
func (s *Scheduler) Wait(ctx context.Context, pid int) (Result, error) {
	s.mu.Lock()
	t, ok := s.tasks[pid]
	s.mu.Unlock()
	if !ok {
		return Result{}, ErrNoTask
	}

	select {
	case <-t.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return t.Result, nil
}

// Tasks returns the task table ordered by pid
func (s *Scheduler) Tasks() []Info {
	s.mu.Lock()
	ret := make([]Info, 0, len(s.tasks))
	for _, t := range s.tasks {
		ret = append(ret, t.Info)
	}
	s.mu.Unlock()

	sort.Slice(ret, func(i, j int) bool { return ret[i].PID < ret[j].PID })
	return ret
}

// Running returns the number of tasks not exited yet
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// spawn admits a task, starts it and registers it under the pid returned by
// start. run is then called in a new goroutine and must report the exit.
func (s *Scheduler) spawn(name, kind string, start func() (int, error), run func(pid int)) (int, error) {
	s.mu.Lock()
	if s.running+s.pending >= s.cfg.MaxTasks {
		s.mu.Unlock()
		return -1, ErrTooManyTasks
	}
	s.pending++
	s.mu.Unlock()

	pid, err := start()

	s.mu.Lock()
	s.pending--
	if err != nil {
		s.mu.Unlock()
		return -1, err
	}
	s.tasks[pid] = &task{
		Info: Info{
			PID:     pid,
			Name:    name,
			Kind:    kind,
			State:   TaskRunning,
			Started: time.Now(),
		},
		done: make(chan struct{}),
	}
	s.running++
	s.mu.Unlock()

	s.logger.Debug("task started", "pid", pid, "name", name, "kind", kind)
	go run(pid)
	return pid, nil
}

func (s *Scheduler) allocID() (int, error) {
	return int(s.nextID.Add(1)), nil
}

// exit records the result of pid and runs its hooks once preemption is
// enabled
func (s *Scheduler) exit(pid int, r Result) {
	s.mu.Lock()
	t, ok := s.tasks[pid]
	if !ok || t.State != TaskRunning {
		s.mu.Unlock()
		s.logger.Error("exit reported for unknown task", "pid", pid)
		return
	}
	r.RunningTime = time.Since(t.Started)
	t.Result = r
	t.State = TaskExiting
	for s.depth > 0 {
		s.cond.Wait()
	}
	hooks := t.hooks
	t.hooks = nil
	t.State = TaskExited
	s.running--
	if !s.cfg.KeepExited {
		delete(s.tasks, pid)
	}
	s.mu.Unlock()

	s.logger.Debug("task exited", "pid", pid, "name", t.Name, "result", r)
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i](pid)
	}
	close(t.done)
}
