package forkexec

import (
	"syscall"

	"github.com/criyle/go-binfmt/pkg/rlimit"
)

// Runner is the configuration of a task start including the exec file,
// argv and resource limits
type Runner struct {
	// Args is the argument vector of the task. It is ignored by execve when
	// Argv is set, but Args[0] still names the file when ExecFile is not set.
	Args []string

	// Argv is a prepared nil terminated argument vector passed to execve
	// as is. It must stay valid until Start returns.
	Argv []*byte

	// Env is the environment for execve
	Env []string

	// if exec_fd is defined, then at the end, execveat(fd, "", AT_EMPTY_PATH)
	// is called
	ExecFile uintptr

	// POSIX Resource limit set by prlimit
	RLimits []rlimit.RLimit

	// file descriptors map for new process, from 0 to len - 1
	Files []uintptr

	// work path set by chdir(dir) (current working directory for child)
	WorkDir string

	// seccomp syscall filter applied to child
	Seccomp *syscall.SockFprog

	// no_new_privs calls prctl(PR_SET_NO_NEW_PRIVS) to disable calls to
	// setuid processes. It is automatically enabled when seccomp filter is provided
	NoNewPrivs bool

	// CTTY specifies if set the fd 0 as controlling TTY
	CTTY bool
}
