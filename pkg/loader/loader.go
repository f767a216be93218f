// Package loader normalizes raw pulses and upserts them into a collection.
package loader

import (
	"context"
	"fmt"

	"github.com/Sternrassler/otx-pulse-etl/pkg/pulse"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Upsert results recorded in otx_pulses_upserted_total.
const (
	ResultInserted = "inserted"
	ResultUpdated  = "updated"
	ResultSkipped  = "skipped"
)

var otxPulsesUpsertedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "otx_pulses_upserted_total",
	Help: "Total pulses processed by the loader by result",
}, []string{"result"})

// Upserter writes one normalized pulse keyed by its id. inserted reports
// whether a new document was created.
type Upserter interface {
	Upsert(ctx context.Context, p pulse.Pulse) (inserted bool, err error)
}

// Loader transforms and upserts pulse batches.
type Loader struct {
	store  Upserter
	logger zerolog.Logger
}

// New creates a loader writing to store.
func New(store Upserter) *Loader {
	return &Loader{
		store:  store,
		logger: log.With().Str("component", "loader").Logger(),
	}
}

// WithLogger replaces the loader's logger.
func (l *Loader) WithLogger(logger zerolog.Logger) *Loader {
	l.logger = logger.With().Str("component", "loader").Logger()
	return l
}

// Load upserts every record with an id and returns how many were new.
// Records without an id are skipped with a warning. The first store error
// aborts the batch and is returned with the count so far.
func (l *Loader) Load(ctx context.Context, records []pulse.RawPulse) (int, error) {
	inserted := 0

	for i, raw := range records {
		p := pulse.Transform(raw)
		if !p.HasID() {
			otxPulsesUpsertedTotal.WithLabelValues(ResultSkipped).Inc()
			l.logger.Warn().Int("index", i).Msg("Skipping pulse with no ID")
			continue
		}

		isNew, err := l.store.Upsert(ctx, p)
		if err != nil {
			return inserted, fmt.Errorf("load pulse %s: %w", p.ID, err)
		}

		if isNew {
			inserted++
			otxPulsesUpsertedTotal.WithLabelValues(ResultInserted).Inc()
		} else {
			otxPulsesUpsertedTotal.WithLabelValues(ResultUpdated).Inc()
		}
	}

	return inserted, nil
}
