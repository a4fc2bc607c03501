package sched

import (
	"os"
	"path"
	"runtime"
	"time"

	"golang.org/x/sys/unix"

	"github.com/criyle/go-binfmt/pkg/binfmt"
	"github.com/criyle/go-binfmt/pkg/forkexec"
	"github.com/criyle/go-binfmt/pkg/kmem"
	"github.com/criyle/go-binfmt/pkg/rlimit"
	"github.com/criyle/go-binfmt/pkg/seccomp"
)

type fileImage interface {
	File() *os.File
}

// ProcessStarter starts images exposing an executable file as child
// processes
type ProcessStarter struct {
	Sched *Scheduler

	Env        []string
	WorkDir    string
	Files      []uintptr // defaults to 0, 1, 2
	RLimits    []rlimit.RLimit
	Seccomp    seccomp.Filter
	NoNewPrivs bool
	CTTY       bool
}

var _ binfmt.Starter = &ProcessStarter{}

// Start implements binfmt.Starter. The owned argument buffer of bin is
// passed to execve as is.
func (p *ProcessStarter) Start(bin *binfmt.Binary) (int, error) {
	img, ok := bin.Image.(fileImage)
	if !ok {
		return binfmt.ErrorPID, ErrImageKind
	}
	exe := img.File()

	files := p.Files
	if files == nil {
		files = []uintptr{0, 1, 2}
	}
	r := &forkexec.Runner{
		Env:        p.Env,
		ExecFile:   exe.Fd(),
		RLimits:    p.RLimits,
		Files:      files,
		WorkDir:    p.WorkDir,
		Seccomp:    p.Seccomp.SockFprog(),
		NoNewPrivs: p.NoNewPrivs,
		CTTY:       p.CTTY,
	}
	buf := bin.ArgBuffer()
	if buf != nil {
		r.Argv = buf.Pointers()
	} else {
		r.Args = bin.Args()
	}

	s := p.Sched
	pid, err := s.spawn(path.Base(bin.Filename), "process", func() (int, error) {
		defer runtime.KeepAlive(exe)
		defer runtime.KeepAlive(buf)
		return r.Start()
	}, s.reap)
	if err != nil {
		return binfmt.ErrorPID, err
	}
	return pid, nil
}

// reap waits for the process pid and reports its exit
func (s *Scheduler) reap(pid int) {
	var (
		ws     unix.WaitStatus
		rusage unix.Rusage
	)
	for {
		_, err := unix.Wait4(pid, &ws, 0, &rusage)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			s.logger.Error("wait4 failed", "pid", pid, "error", err)
			s.exit(pid, signalledResult(unix.SIGKILL))
			return
		}
		if ws.Exited() || ws.Signaled() {
			break
		}
	}

	var r Result
	if ws.Exited() {
		r = exitedResult(ws.ExitStatus())
	} else {
		r = signalledResult(ws.Signal())
	}
	r.Time = time.Duration(rusage.Utime.Nano())
	r.Memory = kmem.Size(rusage.Maxrss << 10)
	s.exit(pid, r)
}
