// Package etl drives one extract-transform-load run.
package etl

import (
	"context"
	"time"

	"github.com/Sternrassler/otx-pulse-etl/pkg/pagination"
	"github.com/Sternrassler/otx-pulse-etl/pkg/pulse"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PageSource yields pages until the feed ends.
type PageSource interface {
	Next(ctx context.Context) (pagination.Page, bool)
}

// BatchLoader upserts one page of records and returns the new-insert count.
type BatchLoader interface {
	Load(ctx context.Context, records []pulse.RawPulse) (int, error)
}

// Summary describes a finished run.
type Summary struct {
	Pages    int
	Inserted int
	Duration time.Duration
}

// Runner wires a page source to a loader.
type Runner struct {
	source PageSource
	loader BatchLoader
	logger zerolog.Logger
}

// NewRunner creates a runner.
func NewRunner(source PageSource, loader BatchLoader) *Runner {
	return &Runner{
		source: source,
		loader: loader,
		logger: log.With().Str("component", "etl").Logger(),
	}
}

// Run loads every page the source yields. Fetch problems only shorten the
// run; a loader error stops it and is returned with the partial summary.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	var summary Summary

	for {
		page, ok := r.source.Next(ctx)
		if !ok {
			break
		}
		summary.Pages++

		inserted, err := r.loader.Load(ctx, page.Records)
		summary.Inserted += inserted
		if err != nil {
			summary.Duration = time.Since(start)
			r.logger.Error().
				Err(err).
				Int("page", page.Number).
				Int("inserted", summary.Inserted).
				Msg("Load failed, aborting run")
			return summary, err
		}

		r.logger.Info().
			Int("page", page.Number).
			Int("records", len(page.Records)).
			Int("inserted", inserted).
			Msg("Upserted pulses for page")
	}

	summary.Duration = time.Since(start)
	r.logger.Info().
		Int("pages", summary.Pages).
		Int("inserted", summary.Inserted).
		Dur("duration", summary.Duration).
		Msg("ETL finished")

	return summary, nil
}
