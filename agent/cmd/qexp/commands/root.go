package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

// Execute runs the qexp command tree against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the qexp command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "qexp",
		Short:         "Offline analysis for qubit characterization sweeps",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(fitCmd(), simulateCmd(), xebCmd(), crosstalkCmd())
	return root
}
