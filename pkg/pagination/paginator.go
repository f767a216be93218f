package pagination

import (
	"context"
	"iter"

	"github.com/Sternrassler/otx-pulse-etl/pkg/pulse"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultMaxPages is the page ceiling for a single run.
const DefaultMaxPages = 5

// Payload field names.
const (
	FieldResults = "results"
	FieldNext    = "next"
)

// Page outcomes recorded in otx_pages_total.
const (
	OutcomeOK             = "ok"
	OutcomeFetchFailed    = "fetch_failed"
	OutcomeInvalidPayload = "invalid_payload"
	OutcomeInvalidResults = "invalid_results"
)

var otxPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "otx_pages_total",
	Help: "Total OTX pages requested by outcome",
}, []string{"outcome"})

// PageFetcher retrieves one decoded JSON payload. ok is false when the
// fetch failed terminally.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (payload any, ok bool)
}

// Page is one page of raw pulses.
type Page struct {
	// Number is 1-based.
	Number int
	// URL the page was fetched from.
	URL     string
	Records []pulse.RawPulse
	// Next is the continuation cursor, empty on the last page.
	Next string
}

// Paginator produces pages lazily. It is not safe for concurrent use.
type Paginator struct {
	fetcher  PageFetcher
	url      string
	count    int
	maxPages int
	done     bool
	logger   zerolog.Logger
}

// New creates a paginator starting at baseURL. A non-positive maxPages
// selects DefaultMaxPages.
func New(fetcher PageFetcher, baseURL string, maxPages int) *Paginator {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Paginator{
		fetcher:  fetcher,
		url:      baseURL,
		maxPages: maxPages,
		logger:   log.With().Str("component", "paginator").Logger(),
	}
}

// WithLogger replaces the paginator's logger.
func (p *Paginator) WithLogger(logger zerolog.Logger) *Paginator {
	p.logger = logger.With().Str("component", "paginator").Logger()
	return p
}

// Count returns the number of pages yielded so far.
func (p *Paginator) Count() int {
	return p.count
}

// Next fetches the next page. It returns false once the sequence has ended;
// every later call also returns false without fetching.
func (p *Paginator) Next(ctx context.Context) (Page, bool) {
	if p.done {
		return Page{}, false
	}

	if p.url == "" || p.count >= p.maxPages {
		return p.finish()
	}

	p.logger.Info().
		Int("page", p.count+1).
		Str("url", p.url).
		Msg("Fetching page")

	payload, ok := p.fetcher.Fetch(ctx, p.url)
	if !ok {
		otxPagesTotal.WithLabelValues(OutcomeFetchFailed).Inc()
		p.logger.Error().Int("page", p.count+1).Msg("Fetch failed, stopping pagination")
		return p.finish()
	}

	body, ok := payload.(map[string]any)
	if !ok {
		otxPagesTotal.WithLabelValues(OutcomeInvalidPayload).Inc()
		p.logger.Error().Int("page", p.count+1).Msg("Invalid response structure, stopping pagination")
		return p.finish()
	}

	results, ok := body[FieldResults].([]any)
	if !ok {
		otxPagesTotal.WithLabelValues(OutcomeInvalidResults).Inc()
		p.logger.Error().Int("page", p.count+1).Msg("'results' is missing or not a list, stopping pagination")
		return p.finish()
	}

	records := make([]pulse.RawPulse, 0, len(results))
	for _, item := range results {
		// Non-object elements carry no id; the loader skips them.
		rec, _ := item.(map[string]any)
		records = append(records, pulse.RawPulse(rec))
	}

	next, _ := body[FieldNext].(string)
	page := Page{
		Number:  p.count + 1,
		URL:     p.url,
		Records: records,
		Next:    next,
	}

	otxPagesTotal.WithLabelValues(OutcomeOK).Inc()
	p.url = next
	p.count++

	return page, true
}

// Pages returns a single-use iterator over the remaining pages.
func (p *Paginator) Pages(ctx context.Context) iter.Seq[Page] {
	return func(yield func(Page) bool) {
		for {
			page, ok := p.Next(ctx)
			if !ok || !yield(page) {
				return
			}
		}
	}
}

func (p *Paginator) finish() (Page, bool) {
	p.done = true
	p.logger.Info().Int("pages", p.count).Msg("Pagination stopped")
	return Page{}, false
}
