package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/escapeSeq/spacecore-orbits/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile string
	v       = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "orbitcov",
	Short: "Satellite coverage toolkit",
	Long: "orbitcov propagates TLE catalogs with a two-body model and estimates " +
		"the Earth surface fraction covered by the satellites' visibility caps.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	rootCmd.PersistentFlags().String("tle", "", "TLE catalog file")
	v.BindPFlag("tle_file", rootCmd.PersistentFlags().Lookup("tle"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(diagCmd)
}

// writeOutput encodes out as indented JSON or YAML.
func writeOutput(w io.Writer, format string, out any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}
