package platform

import (
	"github.com/criyle/go-binfmt/pkg/binfmt"
	"github.com/criyle/go-binfmt/pkg/binfmt/native"
	"github.com/criyle/go-binfmt/pkg/sched"
	"github.com/criyle/go-binfmt/pkg/seccomp"
)

func nativeFormat() binfmt.Format {
	return native.Format{}
}

func newProcessStarter(cfg *Config, s *sched.Scheduler) (*sched.ProcessStarter, error) {
	var filter seccomp.Filter
	if !cfg.Seccomp.Empty() {
		f, err := cfg.Seccomp.Build()
		if err != nil {
			return nil, err
		}
		filter = f
	}
	stdin, stdout, stderr := cfg.stdio()
	return &sched.ProcessStarter{
		Sched:      s,
		Env:        cfg.Env,
		WorkDir:    cfg.WorkDir,
		Files:      []uintptr{stdin.Fd(), stdout.Fd(), stderr.Fd()},
		RLimits:    cfg.RLimits.PrepareRLimit(),
		Seccomp:    filter,
		NoNewPrivs: true,
		CTTY:       cfg.CTTY,
	}, nil
}
