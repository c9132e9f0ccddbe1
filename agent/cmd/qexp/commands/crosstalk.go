package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaxlab/qexp/pkg/readout"
)

type crosstalkReport struct {
	Reference map[int]float64     `json:"reference"`
	Operation map[int]float64     `json:"operation"`
	Crosstalk map[int]float64     `json:"crosstalk"`
	Summary   readout.RateSummary `json:"summary"`
}

// crosstalk: per-qubit excitation added by an operation on a neighbour.
func crosstalkCmd() *cobra.Command {
	var (
		refPath string
		opPath  string
		qubits  []int
	)

	cmd := &cobra.Command{
		Use:   "crosstalk",
		Short: "Compare idle and operation readout to estimate crosstalk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ref, op map[string]int
			if err := readJSONFile(refPath, &ref); err != nil {
				return err
			}
			if err := readJSONFile(opPath, &op); err != nil {
				return err
			}
			if len(qubits) == 0 {
				qubits = allQubits(ref)
			}
			if len(qubits) == 0 {
				return fmt.Errorf("reference counts are empty")
			}

			refRates, err := readout.QubitErrorRates(ref, qubits)
			if err != nil {
				return fmt.Errorf("reference: %w", err)
			}
			opRates, err := readout.QubitErrorRates(op, qubits)
			if err != nil {
				return fmt.Errorf("operation: %w", err)
			}
			ct := readout.CrosstalkRates(refRates, opRates)

			return writeJSON(cmd.OutOrStdout(), crosstalkReport{
				Reference: refRates,
				Operation: opRates,
				Crosstalk: ct,
				Summary:   readout.Summarize(ct),
			})
		},
	}

	cmd.Flags().StringVar(&refPath, "reference", "", "JSON counts with every qubit idle")
	cmd.Flags().StringVar(&opPath, "operation", "", "JSON counts with the operation applied")
	cmd.Flags().IntSliceVar(&qubits, "qubits", nil, "qubits to report (default: all)")
	_ = cmd.MarkFlagRequired("reference")
	_ = cmd.MarkFlagRequired("operation")
	return cmd
}

// allQubits returns 0..w-1 for the width w of the first bitstring in counts.
func allQubits(counts map[string]int) []int {
	for b := range counts {
		qs := make([]int, len(b))
		for i := range qs {
			qs[i] = i
		}
		return qs
	}
	return nil
}
