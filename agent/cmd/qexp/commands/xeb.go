package commands

import (
	"github.com/spf13/cobra"

	"github.com/relaxlab/qexp/pkg/xeb"
)

// xeb: score measured counts against an ideal output distribution.
func xebCmd() *cobra.Command {
	var (
		idealPath  string
		countsPath string
		qubits     int
	)

	cmd := &cobra.Command{
		Use:   "xeb",
		Short: "Linear cross-entropy benchmark of measured counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ideal map[string]float64
			if err := readJSONFile(idealPath, &ideal); err != nil {
				return err
			}
			var counts map[string]int
			if err := readJSONFile(countsPath, &counts); err != nil {
				return err
			}
			score, err := xeb.Evaluate(ideal, counts, qubits)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), score)
		},
	}

	cmd.Flags().StringVar(&idealPath, "ideal", "", "JSON map of bitstring to ideal probability")
	cmd.Flags().StringVar(&countsPath, "counts", "", "JSON map of bitstring to measured count")
	cmd.Flags().IntVar(&qubits, "qubits", 0, "number of qubits (default: bitstring width)")
	_ = cmd.MarkFlagRequired("ideal")
	_ = cmd.MarkFlagRequired("counts")
	return cmd
}
