package sched

import (
	"fmt"
	"syscall"
	"time"

	"github.com/criyle/go-binfmt/pkg/kmem"
)

// Status is the exit Status of a task
type Status int

// Exit Status of tasks
const (
	StatusInvalid Status = iota // 0 not exited
	// Normal
	StatusNormal // 1 normal

	// Resource Limit Exceeded
	StatusTimeLimitExceeded   // 2 SIGXCPU
	StatusOutputLimitExceeded // 3 SIGXFSZ

	// Unauthorized Access
	StatusDisallowedSyscall // 4 SIGSYS

	// Runtime Error
	StatusSignalled         // 5 signalled
	StatusNonzeroExitStatus // 6 nonzero exit status
)

var statusString = []string{
	"Invalid",
	"",
	"Time Limit Exceeded",
	"Output Limit Exceeded",
	"Disallowed Syscall",
	"Signalled",
	"Nonzero Exit Status",
}

func (t Status) String() string {
	i := int(t)
	if i >= 0 && i < len(statusString) {
		return statusString[i]
	}
	return statusString[0]
}

// Result is the exit result of a task
type Result struct {
	Status
	ExitStatus int // exit status (signal number if signalled)

	Time        time.Duration // used user CPU time
	Memory      kmem.Size     // max resident memory
	RunningTime time.Duration // wall time from start to exit
}

// Success reports a normal exit with status 0
func (r Result) Success() bool {
	return r.Status == StatusNormal
}

// Code is the exit code in shell convention (128+signal if signalled)
func (r Result) Code() int {
	switch r.Status {
	case StatusNormal:
		return 0
	case StatusNonzeroExitStatus:
		return r.ExitStatus
	default:
		return 128 + r.ExitStatus
	}
}

func (r Result) String() string {
	switch r.Status {
	case StatusNormal:
		return fmt.Sprintf("Result[%v %v][%v]", r.Time, r.Memory, r.RunningTime)

	case StatusNonzeroExitStatus:
		return fmt.Sprintf("Result[ExitStatus(%d)][%v %v][%v]", r.ExitStatus, r.Time, r.Memory, r.RunningTime)

	default:
		return fmt.Sprintf("Result[%v(%v)][%v %v][%v]", r.Status, syscall.Signal(r.ExitStatus), r.Time, r.Memory, r.RunningTime)
	}
}

func exitedResult(code int) Result {
	if code == 0 {
		return Result{Status: StatusNormal}
	}
	return Result{Status: StatusNonzeroExitStatus, ExitStatus: code}
}

func signalledResult(sig syscall.Signal) Result {
	status := StatusSignalled
	switch sig {
	case syscall.SIGXCPU:
		status = StatusTimeLimitExceeded
	case syscall.SIGXFSZ:
		status = StatusOutputLimitExceeded
	case syscall.SIGSYS:
		status = StatusDisallowedSyscall
	}
	return Result{Status: status, ExitStatus: int(sig)}
}
