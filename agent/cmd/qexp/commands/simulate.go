package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaxlab/qexp/agent/internal/scraper"
	"github.com/relaxlab/qexp/agent/internal/synth"
)

// simulate: write a synthetic T1 sweep as JSON sweep records.
func simulateCmd() *cobra.Command {
	var (
		cfg    = synth.DefaultSweepConfig()
		qubits []int
		seed   uint64
		out    string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a synthetic T1 sweep with Gaussian and shot noise",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var recs []scraper.FileRecord
			for _, q := range qubits {
				if q < 0 {
					return fmt.Errorf("negative qubit %d", q)
				}
				samples, err := synth.Sweep(cfg, seed+uint64(q))
				if err != nil {
					return err
				}
				for _, s := range samples {
					p := s.Probability
					recs = append(recs, scraper.FileRecord{
						Qubit:       q,
						Delay:       s.Delay,
						Probability: &p,
						Shots:       s.Shots,
					})
				}
			}

			if out == "" || out == "-" {
				return writeJSON(cmd.OutOrStdout(), recs)
			}
			if err := writeJSONFile(out, recs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d records to %s\n", len(recs), out)
			return nil
		},
	}

	cmd.Flags().Float64Var(&cfg.T1, "t1", cfg.T1, "true T1, in seconds")
	cmd.Flags().Float64Var(&cfg.Amplitude, "amplitude", cfg.Amplitude, "decay amplitude")
	cmd.Flags().Float64Var(&cfg.Offset, "offset", cfg.Offset, "baseline population")
	cmd.Flags().Float64Var(&cfg.MaxDelay, "max-delay", cfg.MaxDelay, "longest delay, in seconds")
	cmd.Flags().IntVar(&cfg.Points, "points", cfg.Points, "number of delays")
	cmd.Flags().IntVar(&cfg.Shots, "shots", cfg.Shots, "shots per delay")
	cmd.Flags().Float64Var(&cfg.NoiseLevel, "noise", cfg.NoiseLevel, "relative Gaussian noise before shot sampling")
	cmd.Flags().IntSliceVar(&qubits, "qubits", []int{0}, "qubits to simulate")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().StringVarP(&out, "out", "f", "", "output file (default stdout)")
	return cmd
}
