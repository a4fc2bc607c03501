package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/criyle/go-binfmt/pkg/binfmt"
	"github.com/criyle/go-binfmt/pkg/platform"
	"github.com/criyle/go-binfmt/pkg/sched"
	"github.com/criyle/go-binfmt/pkg/symtab"
)

var (
	runWait    bool
	runTTY     bool
	runExports string
	runArgv0   string
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <path> [args...]",
	Short: "Load and start a program",
	Long: `Load the program at path with the first format that recognizes it and start it.
The program receives its base name (or --argv0) followed by args as argument vector.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().SetInterspersed(false)
	runCmd.Flags().BoolVarP(&runWait, "wait", "w", false, "wait for the task and exit with its status")
	runCmd.Flags().BoolVarP(&runTTY, "tty", "t", false, "run the task on a pseudo terminal (implies --wait)")
	runCmd.Flags().StringVar(&runExports, "exports", "", "YAML file with the symbols exported to the program")
	runCmd.Flags().StringVar(&runArgv0, "argv0", "", "argument 0 of the program (default is the base name of path)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(&cfg)

	exports, err := loadExports(runExports)
	if err != nil {
		return err
	}

	// goroutine tasks cannot outlive the command
	wait := runWait || runTTY || !cfg.Isolated
	cfg.KeepExited = cfg.KeepExited || wait

	var term *terminal
	if runTTY {
		if term, err = openTerminal(); err != nil {
			return err
		}
		defer term.Close()
		cfg.Stdin, cfg.Stdout, cfg.Stderr = term.tty, term.tty, term.tty
		cfg.CTTY = true
	}

	reg := prometheus.NewRegistry()
	p, err := platform.New(cfg, logger, reg)
	if err != nil {
		return err
	}
	defer writeMetrics(cfg.MetricsTextfile, reg, logger)

	path := args[0]
	argv0 := runArgv0
	if argv0 == "" {
		argv0 = filepath.Base(path)
	}
	argv := append([]string{argv0}, args[1:]...)

	res, err := p.Exec(path, argv, exports)
	if err != nil {
		return err
	}
	if res.Warning != nil {
		logger.Warn("program will stay loaded after exit", "pid", res.PID, "error", res.Warning)
	}

	if !wait {
		printSnapshot(p.Sched, res.PID)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if term != nil {
		if err := term.Attach(ctx); err != nil {
			return err
		}
	}
	r, err := p.Sched.Wait(ctx, res.PID)
	if err != nil {
		return fmt.Errorf("wait %d: %w", res.PID, err)
	}
	logger.Debug("program exited", "pid", res.PID, "result", r)
	exitStatus = r.Code()
	return nil
}

func loadExports(path string) (symtab.Table, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return symtab.Load(f)
}

func writeMetrics(path string, reg *prometheus.Registry, logger hclog.Logger) {
	if path == "" {
		return
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		logger.Error("failed to write metrics", "path", path, "error", err)
	}
}

// exitCode maps launch errors to shell exit codes
func exitCode(err error) int {
	switch {
	case errors.Is(err, binfmt.ErrLoad):
		return 127
	case errors.Is(err, binfmt.ErrStart):
		return 126
	default:
		return 1
	}
}

func printSnapshot(s *sched.Scheduler, pid int) {
	fmt.Println(pid)
	for _, t := range s.Tasks() {
		if t.PID == pid && t.Kind == "process" {
			printProcess(pid)
		}
	}
}
