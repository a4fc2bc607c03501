package binfmt

import (
	"errors"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/criyle/go-binfmt/pkg/argv"
	"github.com/criyle/go-binfmt/pkg/kmem"
	"github.com/criyle/go-binfmt/pkg/metrics"
	"github.com/criyle/go-binfmt/pkg/symtab"
)

// ErrorPID is the task identifier returned by a failed launch
const ErrorPID = -1

// Capabilities describes the platform the tasks are started on
type Capabilities interface {
	// NeedsArgumentCopy reports whether started tasks are isolated from the
	// caller's memory
	NeedsArgumentCopy() bool

	// SupportsAutoUnload reports whether exit hooks can unload the image
	// when its task terminates
	SupportsAutoUnload() bool
}

// Caps is a fixed set of capabilities
type Caps struct {
	Isolated   bool
	AutoUnload bool
}

// NeedsArgumentCopy implements Capabilities
func (c Caps) NeedsArgumentCopy() bool { return c.Isolated }

// SupportsAutoUnload implements Capabilities
func (c Caps) SupportsAutoUnload() bool { return c.AutoUnload }

// Loader loads and unloads images
type Loader interface {
	Load(bin *Binary) error

	// Unload releases the resources of a successful Load, at most once
	Unload(bin *Binary) error
}

// Starter starts a loaded binary as a task and returns its identifier
type Starter interface {
	Start(bin *Binary) (int, error)
}

// ExitNotifier calls fn once after the task pid terminates
type ExitNotifier interface {
	OnExit(pid int, fn func(pid int)) error
}

// Preemption suspends and resumes the dispatch of task exits. Calls nest.
type Preemption interface {
	Disable()
	Enable()
}

// Config is the collaborators of an Executor
type Config struct {
	Caps    Capabilities
	Alloc   kmem.Allocator // defaults to kmem.Heap
	Loader  Loader
	Starter Starter

	// Exits and Preempt are required when Caps.SupportsAutoUnload
	Exits   ExitNotifier
	Preempt Preemption

	Logger  hclog.Logger       // optional
	Metrics *metrics.Collector // optional
}

// Executor launches programs
type Executor struct {
	caps    Capabilities
	alloc   kmem.Allocator
	loader  Loader
	starter Starter
	exits   ExitNotifier
	preempt Preemption
	logger  hclog.Logger
	metrics *metrics.Collector
}

// Result is the outcome of a launch
type Result struct {
	// PID is the task identifier or ErrorPID
	PID int

	// Warning is set when the task runs but automatic unload could not be
	// arranged. The image then stays loaded after the task exits.
	Warning error
}

// New creates an executor from c
func New(c Config) (*Executor, error) {
	if c.Caps == nil {
		return nil, errors.New("binfmt: capabilities are required")
	}
	if c.Loader == nil || c.Starter == nil {
		return nil, errors.New("binfmt: loader and starter are required")
	}
	if c.Caps.SupportsAutoUnload() && (c.Exits == nil || c.Preempt == nil) {
		return nil, errors.New("binfmt: auto unload requires exit notifier and preemption control")
	}
	if c.Alloc == nil {
		c.Alloc = kmem.Heap
	}
	if c.Logger == nil {
		c.Logger = hclog.NewNullLogger()
	}
	return &Executor{
		caps:    c.Caps,
		alloc:   c.Alloc,
		loader:  c.Loader,
		starter: c.Starter,
		exits:   c.Exits,
		preempt: c.Preempt,
		logger:  c.Logger.Named("exec"),
		metrics: c.Metrics,
	}, nil
}

// Exec loads the program at filename and starts it with args. exports is
// made available to formats that resolve symbols.
//
// If the arguments are not copied (Capabilities.NeedsArgumentCopy is false),
// args must stay valid and unmodified for as long as the task may read them.
//
// On failure there is no running task, every resource acquired during the
// call has been released, PID is ErrorPID and the error is an *ExecError.
func (e *Executor) Exec(filename string, args []string, exports symtab.Table) (res Result, err error) {
	logger := e.logger.With("path", filename)

	bin, err := e.newBinary(filename, exports)
	if err != nil {
		logger.Error("failed to allocate binary", "error", err)
		return e.fail(StageAlloc, filename, err)
	}
	defer func() {
		if err != nil {
			e.freeBinary(bin)
		}
	}()

	if err = e.copyArgv(bin, args); err != nil {
		logger.Error("failed to copy argv", "error", err)
		return e.fail(StageCopyArgs, filename, err)
	}
	defer func() {
		if err != nil {
			e.freeArgv(bin)
		}
	}()

	if err = e.loader.Load(bin); err != nil {
		logger.Error("failed to load program", "error", err)
		return e.fail(StageLoad, filename, err)
	}
	defer func() {
		if err == nil {
			return
		}
		if uerr := e.loader.Unload(bin); uerr != nil {
			logger.Error("failed to unload program", "error", uerr)
			var ee *ExecError
			if errors.As(err, &ee) {
				ee.Err = multierror.Append(ee.Err, uerr)
			}
		}
	}()
	logger.Trace("program loaded", "format", bin.Format)

	pid, warn, err := e.startTask(bin, logger)
	if err != nil {
		logger.Error("failed to execute program", "error", err)
		return e.fail(StageStart, filename, err)
	}

	switch {
	case warn != nil:
		logger.Warn("failed to schedule unload", "pid", pid, "error", warn)
		e.metrics.Degraded()
		return Result{PID: pid, Warning: &ExecError{Stage: StageScheduleUnload, Path: filename, Err: warn}}, nil

	case !e.caps.SupportsAutoUnload():
		logger.Debug("program started without unload on exit", "pid", pid)

	default:
		logger.Debug("program started", "pid", pid)
	}
	e.metrics.Succeeded()
	return Result{PID: pid}, nil
}

// startTask starts bin and registers its unload hook. Task exits are held
// back from the start until the hook is registered or abandoned, so that the
// task cannot finish before its cleanup is in place.
func (e *Executor) startTask(bin *Binary, logger hclog.Logger) (pid int, warn error, err error) {
	if e.caps.SupportsAutoUnload() {
		g := disablePreemption(e.preempt)
		defer g.Release()
	}

	pid, err = e.starter.Start(bin)
	if err != nil {
		return ErrorPID, nil, err
	}
	if !e.caps.SupportsAutoUnload() {
		return pid, nil, nil
	}
	return pid, e.scheduleUnload(pid, bin, logger), nil
}

// scheduleUnload arranges for bin to be unloaded and released when pid
// terminates. On success the hook owns bin.
func (e *Executor) scheduleUnload(pid int, bin *Binary, logger hclog.Logger) error {
	return e.exits.OnExit(pid, func(pid int) {
		if err := e.loader.Unload(bin); err != nil {
			logger.Error("failed to unload program on exit", "pid", pid, "error", err)
		}
		e.freeArgv(bin)
		e.freeBinary(bin)
		e.metrics.Unloaded()
		logger.Debug("program unloaded on exit", "pid", pid)
	})
}

func (e *Executor) fail(stage Stage, filename string, err error) (Result, error) {
	e.metrics.Failed(stage.String())
	return Result{PID: ErrorPID}, &ExecError{Stage: stage, Path: filename, Err: err}
}

// newBinary creates the launch record. A record that outlives Exec is charged
// to the allocator.
func (e *Executor) newBinary(filename string, exports symtab.Table) (*Binary, error) {
	bin := NewBinary(filename, nil, exports)
	if e.caps.SupportsAutoUnload() {
		mem, err := e.alloc.Alloc(recordSize)
		if err != nil {
			return nil, err
		}
		bin.record = mem
	}
	return bin, nil
}

func (e *Executor) freeBinary(bin *Binary) {
	if bin.record != nil {
		e.alloc.Free(bin.record)
		bin.record = nil
	}
}

// copyArgv copies args into an owned buffer when the task cannot reach
// the caller's memory and borrows them otherwise
func (e *Executor) copyArgv(bin *Binary, args []string) error {
	if !e.caps.NeedsArgumentCopy() {
		bin.borrowed = args
		return nil
	}
	buf, err := argv.Copy(e.alloc, args)
	if err != nil {
		return err
	}
	bin.args = buf
	e.metrics.ArgsCopied(buf.Size())
	return nil
}

func (e *Executor) freeArgv(bin *Binary) {
	bin.args.Free(e.alloc)
	bin.args = nil
	bin.borrowed = nil
}

// preemptGuard re-enables preemption exactly once
type preemptGuard struct {
	p    Preemption
	once sync.Once
}

func disablePreemption(p Preemption) *preemptGuard {
	p.Disable()
	return &preemptGuard{p: p}
}

// Release re-enables preemption. Calls after the first are no-ops.
func (g *preemptGuard) Release() {
	g.once.Do(g.p.Enable)
}
