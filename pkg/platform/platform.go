package platform

import (
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/criyle/go-binfmt/pkg/binfmt"
	"github.com/criyle/go-binfmt/pkg/binfmt/builtin"
	"github.com/criyle/go-binfmt/pkg/kmem"
	"github.com/criyle/go-binfmt/pkg/metrics"
	"github.com/criyle/go-binfmt/pkg/sched"
)

// Platform is an executor together with the components it was built from
type Platform struct {
	*binfmt.Executor

	Caps     binfmt.Caps
	Pool     *kmem.Pool
	Registry *binfmt.Registry
	Builtins *builtin.Format
	Sched    *sched.Scheduler
	Metrics  *metrics.Collector
}

// New assembles the platform described by cfg. Metrics are registered on
// reg if it is not nil.
func New(cfg Config, logger hclog.Logger, reg prometheus.Registerer) (*Platform, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	p := &Platform{
		Caps:     binfmt.Caps{Isolated: cfg.Isolated, AutoUnload: cfg.AutoUnload},
		Pool:     kmem.NewPool(cfg.MemoryLimit),
		Registry: binfmt.NewRegistry(),
		Builtins: builtin.Defaults(),
		Sched: sched.New(sched.Config{
			MaxTasks:     cfg.MaxTasks,
			MaxExitHooks: cfg.MaxExitHooks,
			KeepExited:   cfg.KeepExited,
			Logger:       logger,
		}),
	}
	if reg != nil {
		p.Metrics = metrics.New(reg)
		p.Metrics.WatchTasks(p.Sched.Running)
		p.Metrics.WatchMemory(func() uint64 { return p.Pool.Stats().InUse.Byte() })
	}

	_, stdout, stderr := cfg.stdio()
	goroutines := &sched.GoroutineStarter{Sched: p.Sched, Stdout: stdout, Stderr: stderr}

	var starter binfmt.Starter = goroutines
	if cfg.Isolated {
		proc, err := newProcessStarter(&cfg, p.Sched)
		if err != nil {
			return nil, err
		}
		p.Registry.Register(nativeFormat())
		starter = sched.Chain{proc, goroutines}
	}
	p.Registry.Register(p.Builtins)

	e, err := binfmt.New(binfmt.Config{
		Caps:    p.Caps,
		Alloc:   p.Pool,
		Loader:  p.Registry,
		Starter: starter,
		Exits:   p.Sched,
		Preempt: p.Sched,
		Logger:  logger,
		Metrics: p.Metrics,
	})
	if err != nil {
		return nil, err
	}
	p.Executor = e

	logger.Debug("platform ready", "isolated", cfg.Isolated, "auto_unload", cfg.AutoUnload,
		"memory_limit", cfg.MemoryLimit, "max_tasks", cfg.MaxTasks)
	return p, nil
}
