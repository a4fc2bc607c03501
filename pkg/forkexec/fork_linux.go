package forkexec

import (
	"errors"
	"syscall"
	"unsafe" // required for go:linkname.

	"golang.org/x/sys/unix"
)

//go:linkname beforeFork syscall.runtime_BeforeFork
func beforeFork()

//go:linkname afterFork syscall.runtime_AfterFork
func afterFork()

//go:linkname afterForkInChild syscall.runtime_AfterForkInChild
func afterForkInChild()

var errNoFile = errors.New("forkexec: neither exec file nor argv[0] is provided")

// Start will fork, apply limits and seccomp filter and execve.
// Return pid and potential error. A failure inside the child is returned
// as ChildError after the child has been reaped.
func (r *Runner) Start() (int, error) {
	argv0, argv, env, err := prepareExec(r.Args, r.Argv, r.Env)
	if err != nil {
		return 0, err
	}
	if r.ExecFile == 0 && argv0 == nil {
		return 0, errNoFile
	}

	// prepare work dir
	workdir, err := syscallStringFromString(r.WorkDir)
	if err != nil {
		return 0, err
	}

	fd, nextfd := prepareFds(r.Files)

	// pipe p reports child errors, EOF means execve succeeded
	// p[0] is used by parent and p[1] is used by child
	var p [2]int
	if err := syscall.Pipe2(p[:], syscall.O_CLOEXEC); err != nil {
		return 0, err
	}

	// Acquire the fork lock so that no other threads create new fds that
	// are not yet close-on-exec before we fork.
	syscall.ForkLock.Lock()
	pid, err1 := forkAndExecInChild(r, argv0, argv, env, workdir, fd, nextfd, p)

	// restore all signals
	afterFork()
	syscall.ForkLock.Unlock()

	return waitExec(p, int(pid), err1)
}

func waitExec(p [2]int, pid int, err1 syscall.Errno) (int, error) {
	unix.Close(p[1])

	// clone syscall failed
	if err1 != 0 {
		unix.Close(p[0])
		return 0, ChildError{Err: err1, Location: LocClone}
	}

	var childErr ChildError
	n, err := readFull(p[0], unsafe.Slice((*byte)(unsafe.Pointer(&childErr)), unsafe.Sizeof(childErr)))
	unix.Close(p[0])
	if err == nil && n == 0 {
		return pid, nil
	}

	handleChildFailed(pid)
	switch {
	case err != nil:
		return 0, err
	case n == int(unsafe.Sizeof(childErr)):
		return 0, childErr
	default:
		return 0, syscall.EPIPE
	}
}

// readFull reads until b is full or EOF
func readFull(fd int, b []byte) (int, error) {
	n := 0
	for n < len(b) {
		r, err := syscall.Read(fd, b[n:])
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return n, err
		}
		if r == 0 {
			break
		}
		n += r
	}
	return n, nil
}

func handleChildFailed(pid int) {
	var wstatus syscall.WaitStatus
	// make sure not blocked
	syscall.Kill(pid, syscall.SIGKILL)
	// child failed; wait for it to exit, to make sure the zombies don't accumulate
	_, err := syscall.Wait4(pid, &wstatus, 0, nil)
	for err == syscall.EINTR {
		_, err = syscall.Wait4(pid, &wstatus, 0, nil)
	}
}
