package main

import (
	"os"

	"github.com/relaxlab/qexp/agent/cmd/qexp/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
