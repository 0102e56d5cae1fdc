// Package cmd implements the marvin command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/touchthesun/marvin-sub002/internal/config"
	"github.com/touchthesun/marvin-sub002/internal/observability"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected via -ldflags.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	flagLogLevel   string
	flagLogJSON    bool
	flagGatewayURL string
)

var rootCmd = &cobra.Command{
	Use:   "marvin",
	Short: "Track and control asynchronous page-processing jobs",
	Long: `marvin submits capture, analysis, and assistant jobs to a backend
orchestrator and tracks their lifecycle: polling for status, monitoring
individual jobs to completion, and surfacing terminal transitions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		logging := map[string]any{}
		if flagLogLevel != "" {
			logging["level"] = flagLogLevel
		}
		if cmd.Flags().Changed("log-json") {
			logging["json"] = flagLogJSON
		}
		if len(logging) > 0 {
			overrides["logging"] = logging
		}
		if flagGatewayURL != "" {
			overrides["gateway"] = map[string]any{"url": flagGatewayURL}
		}

		cfg, err := config.Load(cmd.Context(), overrides)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		observability.InitCLILogger(cfg.Logging.Level, cfg.Logging.JSON)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().StringVar(&flagGatewayURL, "gateway", "", "Job orchestrator base URL")
}

// codedError carries a process exit code alongside the underlying error.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return fmt.Sprintf("%s (exit code %d)", e.err, e.code) }
func (e *codedError) Unwrap() error { return e.err }

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &codedError{code: code, err: fmt.Errorf("%s: %w", message, err)}
}

// exitCode extracts the exit code from err, defaulting to 1.
func exitCode(err error) int {
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	return 1
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCode(err)
	}
	return 0
}
