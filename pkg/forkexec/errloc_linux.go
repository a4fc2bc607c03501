package forkexec

import (
	"fmt"
	"syscall"
)

// ErrorLocation is the child step that failed before execve replaced the image
type ErrorLocation int

// ChildError is reported by the child through the status pipe. Index is the
// file slot for dup3 / fcntl and the resource for setrlimit.
type ChildError struct {
	Err      syscall.Errno
	Location ErrorLocation
	Index    int
}

// Child steps in the order they run
const (
	LocClone ErrorLocation = iota + 1
	LocCloseRead
	LocDup3
	LocFcntl
	LocSetSid
	LocIoctl
	LocChdir
	LocSetRlimit
	LocSetNoNewPrivs
	LocSeccomp
	LocExecve
)

var locNames = map[ErrorLocation]string{
	LocClone:         "clone",
	LocCloseRead:     "close_read",
	LocDup3:          "dup3",
	LocFcntl:         "fcntl",
	LocSetSid:        "setsid",
	LocIoctl:         "ioctl",
	LocChdir:         "chdir",
	LocSetRlimit:     "setrlimit",
	LocSetNoNewPrivs: "set_no_new_privs",
	LocSeccomp:       "seccomp",
	LocExecve:        "execve",
}

func (e ErrorLocation) String() string {
	if n, ok := locNames[e]; ok {
		return n
	}
	return "unknown"
}

func (e ChildError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("%v(%d): %v", e.Location, e.Index, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Location, e.Err)
}

// Unwrap returns the errno of the failed call
func (e ChildError) Unwrap() error {
	return e.Err
}
