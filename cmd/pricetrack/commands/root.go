package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"pricetrack/internal/source"
	"pricetrack/internal/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "pricetrack",
	Short:         "pricetrack scrapes price tables and keeps a deduplicated history per source.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json5", "The config file to read, a .local override next to it is merged in.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug events and dump http exchanges to .dev/resty.")
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func loadConfig() (source.Config, error) {
	config, err := source.Load(configPath)
	if err != nil {
		return source.Config{}, fmt.Errorf("load config: %w", err)
	}
	return config, nil
}

// ExecuteContext runs the cli and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}
