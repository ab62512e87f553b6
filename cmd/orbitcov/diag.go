package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/escapeSeq/spacecore-orbits/internal/config"
	"github.com/escapeSeq/spacecore-orbits/internal/propagation"
	"github.com/spf13/cobra"
)

var (
	diagHours  float64
	diagStep   time.Duration
	diagFormat string
)

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Report two-body drift against SGP4",
	Long: "diag propagates a TLE file with both the two-body model and SGP4 from the " +
		"earliest catalog epoch onward and reports the position and velocity differences.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		if cfg.TLEFile == "" {
			return errors.New("no TLE file: pass --tle or set tle_file")
		}
		if diagStep <= 0 || diagHours < 0 {
			return errors.New("--step must be positive and --hours non-negative")
		}

		eng := newCLIEngine(cfg)
		cat, err := loadCatalogFile(eng, cfg.TLEFile)
		if err != nil {
			return err
		}

		drifts, err := driftReport(cmd.Context(), eng.Propagator(), cat.EpochRange.Min, time.Duration(diagHours*float64(time.Hour)), diagStep)
		if err != nil {
			return err
		}

		if diagFormat != "table" {
			return writeOutput(cmd.OutOrStdout(), diagFormat, drifts)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NORAD\tNAME\tTIME\tPOS_KM\tVEL_KM_S\tRADIUS_KM")
		for _, d := range drifts {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%.3f\t%.5f\t%.3f\n",
				d.CatalogNumber, d.Name, d.Time.Format(time.RFC3339), d.PositionKm, d.VelocityKmS, d.RadiusKm)
		}
		return tw.Flush()
	},
}

func init() {
	diagCmd.Flags().Float64Var(&diagHours, "hours", 24, "Hours after the earliest epoch to cover")
	diagCmd.Flags().DurationVar(&diagStep, "step", time.Hour, "Time between samples")
	diagCmd.Flags().StringVar(&diagFormat, "format", "table", "Output format: table, json or yaml")
}

// driftReport compares the propagators at start, start+step, ... up to
// start+span inclusive.
func driftReport(ctx context.Context, prop *propagation.Propagator, start time.Time, span, step time.Duration) ([]propagation.Drift, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var out []propagation.Drift
	for off := time.Duration(0); off <= span; off += step {
		drifts, err := prop.CompareSGP4(ctx, start.Add(off))
		if err != nil {
			return nil, err
		}
		out = append(out, drifts...)
	}
	return out, nil
}
