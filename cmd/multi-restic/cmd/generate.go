package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bianoble/multi-restic/internal/engine"
)

var generateOutput string

var generateCmd = &cobra.Command{
	Use:   "generate AGENT",
	Short: "Write an agent's backup script and env files locally",
	Long: `Renders backup.sh and the per-repository .env files for AGENT into
<output>/<AGENT>/ without contacting the agent. Useful to review what install
would upload.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		gen, err := newGenerator()
		if err != nil {
			return err
		}

		written, err := engine.Generate(gen, *cfg, args[0], generateOutput)
		if err != nil {
			return err
		}
		for _, p := range written {
			info("Wrote %s", p)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", ".", "directory to write into")
	rootCmd.AddCommand(generateCmd)
}
