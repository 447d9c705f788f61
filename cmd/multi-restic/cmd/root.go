package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bianoble/multi-restic/internal/remote"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	configPath     string
	envFilePath    string
	knownHostsFile string
	verbose        bool
	quiet          bool
	noColor        bool
)

// logger is configured from the global flags before any command runs.
var logger = zerolog.Nop()

var rootCmd = &cobra.Command{
	Use:   "multi-restic",
	Short: "Manage restic backups on a fleet of machines over SSH",
	Long: `multi-restic drives restic on remote agents from one central.yaml file.
It generates a backup script and per-repository environment files for each
agent, installs them over SSH together with a daily cron or systemd schedule,
and lists or downloads snapshots on demand.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("multi-restic %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "central.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&envFilePath, "env-file", ".env", "dotenv file holding values for env: directives")
	rootCmd.PersistentFlags().StringVar(&knownHostsFile, "known-hosts", remote.DefaultKnownHostsFile(), "known_hosts file used to verify agents")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "detailed output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimal output (errors only)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case quiet:
		level = zerolog.ErrorLevel
	case verbose:
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor, TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		return err
	}
	return nil
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return 1
}

// printError reports err on stderr, followed by the output of the remote
// command that caused it, if any.
func printError(err error) {
	var se *statusError
	if errors.As(err, &se) {
		// The remote shell already printed its own diagnostics.
		logger.Debug().Int("status", se.status).Msg("remote shell exited")
		return
	}
	errorf("%s", err)

	var exitErr *remote.ExitError
	if !errors.As(err, &exitErr) {
		return
	}
	if out := strings.TrimSpace(exitErr.Stdout); out != "" {
		fmt.Fprintf(os.Stderr, "--- stdout ---\n%s\n", out)
	}
	if out := strings.TrimSpace(exitErr.Stderr); out != "" {
		fmt.Fprintf(os.Stderr, "--- stderr ---\n%s\n", out)
	}
}
