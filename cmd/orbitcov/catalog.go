package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/escapeSeq/spacecore-orbits/internal/config"
	"github.com/escapeSeq/spacecore-orbits/internal/engine"
	"github.com/escapeSeq/spacecore-orbits/internal/tle"
)

// loadCatalogFile loads a TLE file into eng.
func loadCatalogFile(eng *engine.Engine, path string) (*tle.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading TLE file: %w", err)
	}
	return eng.LoadCatalog(bytes.NewReader(data), path)
}

// loadInitialCatalog installs the first catalog for the service. Sources in
// order: the configured file, the newest archived catalog, then fetcher
// (nil when no URL is configured). Having no source is not an error; the
// service starts unready and waits for an upload.
func loadInitialCatalog(ctx context.Context, cfg *config.Config, eng *engine.Engine, archive *tle.Archive, fetcher *tle.Fetcher, logger *slog.Logger) error {
	if cfg.TLEFile != "" {
		_, err := loadCatalogFile(eng, cfg.TLEFile)
		return err
	}

	if archive != nil {
		data, ts, err := archive.Latest()
		switch {
		case err == nil:
			if _, err := eng.LoadCatalog(bytes.NewReader(data), "archive"); err != nil {
				logger.Warn("archived catalog unusable", "error", err, "archived_at", ts.Format(time.RFC3339))
			} else {
				return nil
			}
		case errors.Is(err, tle.ErrArchiveEmpty):
			logger.Info("no archived catalog", "dir", archive.Dir())
		default:
			logger.Warn("reading catalog archive failed", "error", err)
		}
	}

	if fetcher != nil {
		if _, err := fetchCatalog(ctx, fetcher, eng, archive, logger); err != nil {
			return fmt.Errorf("fetching catalog: %w", err)
		}
		return nil
	}

	logger.Info("starting without a catalog; upload one to POST /api/v1/tle")
	return nil
}

// fetchCatalog downloads, loads and archives one catalog. It reports false
// without error when the source is unchanged.
func fetchCatalog(ctx context.Context, fetcher *tle.Fetcher, eng *engine.Engine, archive *tle.Archive, logger *slog.Logger) (bool, error) {
	data, err := fetcher.Fetch(ctx)
	if errors.Is(err, tle.ErrNotModified) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	cat, err := eng.LoadCatalog(bytes.NewReader(data), fetcher.SourceURL())
	if err != nil {
		return false, err
	}
	if archive != nil {
		if err := archive.Save(data, cat.LoadedAt); err != nil {
			logger.Warn("archiving fetched catalog failed", "error", err)
		}
	}
	return true, nil
}

// refreshCatalog re-fetches the catalog every interval until ctx is done.
// Failures keep the catalog in service and are retried on the next tick.
func refreshCatalog(ctx context.Context, fetcher *tle.Fetcher, eng *engine.Engine, archive *tle.Archive, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updated, err := fetchCatalog(ctx, fetcher, eng, archive, logger)
			switch {
			case err != nil:
				if ctx.Err() == nil {
					logger.Warn("catalog refresh failed", "source", fetcher.SourceURL(), "error", err)
				}
			case !updated:
				logger.Debug("catalog unchanged", "source", fetcher.SourceURL())
			}
		}
	}
}
