package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/escapeSeq/spacecore-orbits/internal/api"
	"github.com/escapeSeq/spacecore-orbits/internal/auth"
	"github.com/escapeSeq/spacecore-orbits/internal/config"
	"github.com/escapeSeq/spacecore-orbits/internal/coverage"
	"github.com/escapeSeq/spacecore-orbits/internal/engine"
	"github.com/escapeSeq/spacecore-orbits/internal/logging"
	"github.com/escapeSeq/spacecore-orbits/internal/metrics"
	"github.com/escapeSeq/spacecore-orbits/internal/tle"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coverage HTTP service",
	Long:  "serve loads a catalog and exposes satellite state and union coverage over a JSON HTTP API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		logger := logging.New(os.Stdout, cfg.LogLevel)
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, logger)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "HTTP listen address")
	v.BindPFlag("http_addr", serveCmd.Flags().Lookup("addr"))
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store := tle.NewStore()
	eng := engine.New(store, coverage.NewGridCache(), engine.Config{
		Workers:         cfg.Workers,
		MinElevationDeg: cfg.MinElevationDeg,
		ShowCoverage:    cfg.ShowCoverage,
	}, logger)

	var archive *tle.Archive
	if cfg.ArchiveDir != "" {
		archive = tle.NewArchive(cfg.ArchiveDir, cfg.ArchiveKeep)
	}

	var fetcher *tle.Fetcher
	if cfg.TLEURL != "" {
		fetcher = tle.NewFetcher(cfg.TLEURL)
	}

	if err := loadInitialCatalog(ctx, cfg, eng, archive, fetcher, logger); err != nil {
		return fmt.Errorf("loading initial catalog: %w", err)
	}
	if fetcher != nil && cfg.TLERefreshMinutes > 0 {
		go refreshCatalog(ctx, fetcher, eng, archive, time.Duration(cfg.TLERefreshMinutes)*time.Minute, logger)
	}

	srv := api.NewServer(api.Config{
		Addr:             cfg.HTTPAddr,
		Auth:             auth.Config{Enabled: cfg.Auth.Enabled, Token: cfg.Auth.Token},
		TrustProxy:       cfg.TrustProxy,
		MaxCoveragePerIP: cfg.MaxCoveragePerIP,
		MaxStreamsPerIP:  cfg.MaxStreamsPerIP,
	}, eng, archive, logger)

	// Background goroutine to update the catalog age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SetCatalogAge(store.AgeSeconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTPAddr,
			"auth_enabled", cfg.Auth.Enabled,
			"workers", cfg.Workers,
			"min_elevation_deg", cfg.MinElevationDeg,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
