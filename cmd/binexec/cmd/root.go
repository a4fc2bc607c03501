// Package cmd implements the binexec commands.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/criyle/go-binfmt/pkg/platform"
)

var (
	cfgFile    string
	exitStatus int
)

var rootCmd = &cobra.Command{
	Use:           "binexec",
	Short:         "Load and start programs",
	Long:          `binexec loads program images through the registered binary formats and starts them as tasks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command line and returns the process exit code
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "binexec:", err)
		return exitCode(err)
	}
	return exitStatus
}

func init() {
	cobra.OnInitialize(initConfig)

	def := platform.Default()
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default is ./binexec.yaml or /etc/binexec/binexec.yaml)")
	f.String("log-level", def.LogLevel, "log level: trace, debug, info, warn, error")
	f.Bool("isolated", def.Isolated, "start native images as processes with copied arguments")
	f.Bool("auto-unload", def.AutoUnload, "unload images when their task exits")
	f.String("memory-limit", def.MemoryLimit.String(), "limit of launch records and argument buffers, e.g. 16m")
	f.Int("max-tasks", def.MaxTasks, "size of the task table")
	f.Int("max-exit-hooks", def.MaxExitHooks, "exit hooks per task")
	f.String("metrics-textfile", "", "write metrics in text format to this file on exit")

	for key, flag := range map[string]string{
		"log_level":        "log-level",
		"isolated":         "isolated",
		"auto_unload":      "auto-unload",
		"memory_limit":     "memory-limit",
		"max_tasks":        "max-tasks",
		"max_exit_hooks":   "max-exit-hooks",
		"metrics_textfile": "metrics-textfile",
	} {
		if err := viper.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("binexec")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/binexec")
	}
	viper.SetEnvPrefix("BINEXEC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// loadConfig merges defaults, the config file, environment and flags
func loadConfig() (platform.Config, error) {
	cfg := platform.Default()
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}
	err := viper.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *platform.Config) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "binexec",
		Level:  hclog.LevelFromString(cfg.LogLevel),
		Output: os.Stderr,
	})
}
