// Package platform assembles an executor from configuration.
package platform

import (
	"fmt"
	"os"
	"runtime"

	"github.com/criyle/go-binfmt/pkg/kmem"
	"github.com/criyle/go-binfmt/pkg/rlimit"
	"github.com/criyle/go-binfmt/pkg/sched"
	"github.com/criyle/go-binfmt/pkg/seccomp"
)

// Config is the platform configuration
type Config struct {
	// Isolated starts native images as child processes with copied
	// arguments. Otherwise only builtin programs run, in goroutines.
	Isolated bool `mapstructure:"isolated"`

	// AutoUnload unloads images when their task exits
	AutoUnload bool `mapstructure:"auto_unload"`

	// MemoryLimit bounds launch records and argument buffers, 0 for no limit
	MemoryLimit kmem.Size `mapstructure:"memory_limit"`

	MaxTasks     int  `mapstructure:"max_tasks"`
	MaxExitHooks int  `mapstructure:"max_exit_hooks"`
	KeepExited   bool `mapstructure:"keep_exited"`

	// process tasks only
	Env     []string       `mapstructure:"env"`
	WorkDir string         `mapstructure:"work_dir"`
	RLimits rlimit.RLimits `mapstructure:"rlimits"`
	Seccomp seccomp.Policy `mapstructure:"seccomp"`

	LogLevel        string `mapstructure:"log_level"`
	MetricsTextfile string `mapstructure:"metrics_textfile"`

	// Stdio of the tasks, defaults to the standard files of the caller
	Stdin  *os.File `mapstructure:"-"`
	Stdout *os.File `mapstructure:"-"`
	Stderr *os.File `mapstructure:"-"`

	// CTTY makes Stdin the controlling terminal of process tasks
	CTTY bool `mapstructure:"-"`
}

// Default returns the default configuration of the running OS
func Default() Config {
	isolated := runtime.GOOS == "linux"
	return Config{
		Isolated:     isolated,
		AutoUnload:   true,
		MemoryLimit:  16 << 20,
		MaxTasks:     sched.DefaultMaxTasks,
		MaxExitHooks: sched.DefaultMaxExitHooks,
		Env:          []string{"PATH=/usr/local/bin:/usr/bin:/bin"},
		LogLevel:     "info",
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.MaxTasks < 0 || c.MaxExitHooks < 0 {
		return fmt.Errorf("platform: negative task limits (max_tasks=%d, max_exit_hooks=%d)", c.MaxTasks, c.MaxExitHooks)
	}
	if c.CTTY && !c.Isolated {
		return fmt.Errorf("platform: controlling terminal requires isolated tasks")
	}
	return nil
}

func (c *Config) stdio() (stdin, stdout, stderr *os.File) {
	stdin, stdout, stderr = c.Stdin, c.Stdout, c.Stderr
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return
}
