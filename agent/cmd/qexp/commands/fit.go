package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaxlab/qexp/pkg/decay"
)

// fit <file>: fit A·exp(−t/T)+B to a sweep and print the result.
func fitCmd() *cobra.Command {
	var (
		qubit  int
		unit   string
		output string
		opts   = decay.DefaultOptions()
		t1Min  float64
		t1Max  float64
	)

	cmd := &cobra.Command{
		Use:   "fit <file|->",
		Short: "Fit a T1 relaxation sweep (CSV or JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scale, err := timeScale(unit)
			if err != nil {
				return err
			}
			obs, err := readObservations(args[0], qubit, scale)
			if err != nil {
				return err
			}

			res, err := decay.Fit(obs, opts)
			if err != nil {
				return err
			}

			switch output {
			case "json":
				return writeJSON(cmd.OutOrStdout(), res)
			case "text":
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "T1        = %.3f ± %.3f µs\n", res.DecayConstant*1e6, res.DecayConstantStderr*1e6)
				fmt.Fprintf(w, "amplitude = %.4f ± %.4f\n", res.Amplitude, res.AmplitudeStderr)
				fmt.Fprintf(w, "offset    = %.4f ± %.4f\n", res.Offset, res.OffsetStderr)
				fmt.Fprintf(w, "points    = %d, rss = %.3g, iterations = %d\n",
					len(obs), res.ResidualSumSquares, res.Iterations)
				if res.DecayConstant < t1Min || res.DecayConstant > t1Max {
					fmt.Fprintf(w, "warning: T1 outside the expected range [%g, %g] µs\n", t1Min*1e6, t1Max*1e6)
				}
				return nil
			default:
				return fmt.Errorf("unknown output %q (want json or text)", output)
			}
		},
	}

	cmd.Flags().IntVar(&qubit, "qubit", 0, "qubit to fit when the JSON input holds several")
	cmd.Flags().StringVar(&unit, "time-unit", "s", "unit of the delay column: s, ms, us or ns")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or text")
	cmd.Flags().Float64Var(&opts.Initial.Amplitude, "initial-amplitude", decay.DefaultAmplitude, "initial amplitude guess")
	cmd.Flags().Float64Var(&opts.Initial.DecayConstant, "initial-decay", decay.DefaultDecayConstant, "initial decay constant guess, in seconds")
	cmd.Flags().Float64Var(&opts.Initial.Offset, "initial-offset", decay.DefaultOffset, "initial offset guess")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", decay.DefaultMaxIterations, "iteration budget")
	cmd.Flags().Float64Var(&opts.Tolerance, "tolerance", decay.DefaultTolerance, "convergence tolerance")
	cmd.Flags().Float64Var(&t1Min, "t1-min", 10e-6, "lower end of the expected T1 range, in seconds (text output)")
	cmd.Flags().Float64Var(&t1Max, "t1-max", 200e-6, "upper end of the expected T1 range, in seconds (text output)")
	return cmd
}
