package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bianoble/multi-restic/internal/engine"
)

var sshShell string

var sshCmd = &cobra.Command{
	Use:   "ssh AGENT [REPOSITORY] [COMMAND...]",
	Short: "Open an SSH session to an agent",
	Long: `Opens a shell on the agent with restic on PATH and the backup root as the
working directory. When a REPOSITORY is given its environment is loaded, so
restic commands operate on that repository.

Any further arguments are run as a command instead of an interactive shell.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		opts := engine.ShellOptions{
			Agent:  args[0],
			Shell:  sshShell,
			Stdin:  os.Stdin,
			Stdout: os.Stdout,
			Stderr: os.Stderr,
		}
		if len(args) > 1 {
			opts.Repository = args[1]
		}
		if len(args) > 2 {
			opts.Command = args[2:]
		}

		eng := &engine.ShellEngine{Dialer: newDialer(), Logger: logger}
		status, err := eng.Run(cmd.Context(), *cfg, opts)
		if err != nil {
			return err
		}
		if status != 0 {
			return &statusError{status: status}
		}
		return nil
	},
}

// statusError carries a remote exit status out to the process exit code.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("remote shell exited with status %d", e.status)
}

func init() {
	sshCmd.Flags().StringVar(&sshShell, "shell", engine.DefaultShell, "shell to use on the agent")
	rootCmd.AddCommand(sshCmd)
}
