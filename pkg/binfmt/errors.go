package binfmt

import (
	"errors"
	"fmt"

	"github.com/criyle/go-binfmt/pkg/argv"
	"github.com/criyle/go-binfmt/pkg/kmem"
)

// Error conditions reported by Exec
var (
	// ErrTooManyArgs means the argument list exceeded argv.MaxArgs
	ErrTooManyArgs = argv.ErrTooManyArgs
	// ErrNoMemory means the launch record or argument buffer could not be allocated
	ErrNoMemory = kmem.ErrNoMemory
	// ErrLoad means no format could load the image
	ErrLoad = errors.New("binfmt: failed to load program")
	// ErrStart means the loaded image could not be started as a task
	ErrStart = errors.New("binfmt: failed to execute program")
	// ErrScheduleUnload means the task runs but will not be unloaded on exit
	ErrScheduleUnload = errors.New("binfmt: failed to schedule unload")
)

// Errors reported by formats and the registry
var (
	// ErrNotRecognized is returned by a Format that does not handle the file
	ErrNotRecognized = errors.New("binfmt: format not recognized")
	// ErrNotLoaded is returned when unloading a binary that holds no image
	ErrNotLoaded = errors.New("binfmt: binary is not loaded")
)

// Stage is the launch step an error comes from
type Stage int

// Launch stages in execution order
const (
	StageAlloc Stage = iota + 1
	StageCopyArgs
	StageLoad
	StageStart
	StageScheduleUnload
)

var stageToString = []string{
	"unknown",
	"alloc",
	"copyargv",
	"load",
	"start",
	"schedule_unload",
}

func (s Stage) String() string {
	if s >= StageAlloc && s <= StageScheduleUnload {
		return stageToString[s]
	}
	return "unknown"
}

func (s Stage) sentinel() error {
	switch s {
	case StageLoad:
		return ErrLoad
	case StageStart:
		return ErrStart
	case StageScheduleUnload:
		return ErrScheduleUnload
	}
	return nil
}

// ExecError defines the stage and the cause of a launch failure
type ExecError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("exec %s: %s: %v", e.Path, e.Stage, e.Err)
}

// Unwrap exposes both the stage condition (ErrLoad, ErrStart, ...) and the
// underlying cause to errors.Is / errors.As
func (e *ExecError) Unwrap() []error {
	if s := e.Stage.sentinel(); s != nil {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}
