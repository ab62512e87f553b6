package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/escapeSeq/spacecore-orbits/internal/config"
	"github.com/escapeSeq/spacecore-orbits/internal/coverage"
	"github.com/escapeSeq/spacecore-orbits/internal/engine"
	"github.com/escapeSeq/spacecore-orbits/internal/logging"
	"github.com/escapeSeq/spacecore-orbits/internal/tle"
	"github.com/spf13/cobra"
)

var (
	snapAt     string
	snapFormat string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Compute one coverage snapshot from a TLE file",
	Long: "snapshot propagates every satellite in a TLE file to one instant and prints " +
		"per-satellite coverage records and the union coverage estimate.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		if cfg.TLEFile == "" {
			return errors.New("no TLE file: pass --tle or set tle_file")
		}

		at := time.Now().UTC()
		if snapAt != "" {
			if at, err = time.Parse(time.RFC3339, snapAt); err != nil {
				return fmt.Errorf("invalid --at: %w", err)
			}
		}

		eng := newCLIEngine(cfg)
		if _, err := loadCatalogFile(eng, cfg.TLEFile); err != nil {
			return err
		}

		snap, err := eng.Snapshot(context.Background(), at, cfg.MinElevationDeg)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), snapFormat, snap)
	},
}

func init() {
	snapshotCmd.Flags().Float64("min-elevation", 10, "Minimum elevation angle in degrees")
	v.BindPFlag("min_elevation_deg", snapshotCmd.Flags().Lookup("min-elevation"))
	snapshotCmd.Flags().StringVar(&snapAt, "at", "", "Snapshot time (RFC 3339); defaults to now")
	snapshotCmd.Flags().StringVar(&snapFormat, "format", "json", "Output format: json or yaml")
}

// newCLIEngine builds an engine that logs to stderr so stdout stays
// machine-readable.
func newCLIEngine(cfg *config.Config) *engine.Engine {
	logger := logging.New(os.Stderr, cfg.LogLevel)
	return engine.New(tle.NewStore(), coverage.NewGridCache(), engine.Config{
		Workers:         cfg.Workers,
		MinElevationDeg: cfg.MinElevationDeg,
		ShowCoverage:    true,
	}, logger)
}
