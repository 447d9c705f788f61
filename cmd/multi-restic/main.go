package main

import (
	"os"

	"github.com/bianoble/multi-restic/cmd/multi-restic/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
