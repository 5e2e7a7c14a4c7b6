// Package refresh reconciles externally sourced prices into the
// portfolio store and drives the periodic refresh cycle.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-tracker/internal/events"
	"github.com/aristath/portfolio-tracker/internal/modules/portfolio"
	"github.com/aristath/portfolio-tracker/internal/quotes"
)

// ErrSourceUnavailable wraps any failure of the external quote source.
// Prices are left untouched; the next scheduled tick is the retry.
var ErrSourceUnavailable = errors.New("quote source unavailable")

// Result describes one completed reconciliation pass.
type Result struct {
	RunID          uuid.UUID `json:"run_id"`
	UpdatedSymbols []string  `json:"updated_symbols"`
	AsOf           time.Time `json:"as_of"`
}

// Reconciler keeps every holding's current price reasonably fresh. One
// pass collects the distinct symbols across all portfolios, fetches
// them in a single batched call and merges the answers back into the
// store. A failed call changes nothing.
type Reconciler struct {
	store   *portfolio.Store
	source  quotes.Source
	events  *events.Manager
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	last    *Result
	lastErr error
}

// New creates a reconciler. The timeout bounds the external call of
// each pass.
func New(store *portfolio.Store, source quotes.Source, ev *events.Manager, timeout time.Duration, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		source:  source,
		events:  ev,
		timeout: timeout,
		log:     log.With().Str("component", "reconciler").Logger(),
	}
}

// Refresh runs one reconciliation pass.
//
// With no holdings anywhere the external source is not called at all;
// the pass still succeeds with an empty update set. On success the
// result's AsOf is always fresh, even when no price moved.
func (r *Reconciler) Refresh(ctx context.Context) (Result, error) {
	runID := uuid.New()
	log := r.log.With().Str("run_id", runID.String()).Logger()

	symbols := r.store.DistinctSymbols()
	if len(symbols) == 0 {
		result := Result{RunID: runID, UpdatedSymbols: []string{}, AsOf: time.Now()}
		r.record(result, nil)
		log.Debug().Msg("No holdings, skipping quote fetch")
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	prices, err := r.source.GetQuotes(ctx, symbols)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		r.record(Result{}, wrapped)
		r.emitFailed(wrapped)
		log.Warn().Err(err).Int("symbols", len(symbols)).Msg("Quote fetch failed, prices unchanged")
		return Result{}, wrapped
	}

	// Missing quotes stay silent per the contract, but log which
	// symbols came back unanswered so staleness is observable.
	if len(prices) < len(symbols) {
		var missing []string
		for _, symbol := range symbols {
			if _, ok := prices[symbol]; !ok {
				missing = append(missing, symbol)
			}
		}
		log.Debug().Strs("symbols", missing).Msg("No quote returned, prices left unchanged")
	}

	updated, err := r.store.ApplyQuotes(prices)
	if err != nil {
		r.record(Result{}, err)
		r.emitFailed(err)
		return Result{}, err
	}
	if updated == nil {
		updated = []string{}
	}

	result := Result{RunID: runID, UpdatedSymbols: updated, AsOf: time.Now()}
	r.record(result, nil)

	if len(updated) > 0 && r.events != nil {
		r.events.Emit(events.RefreshCompleted, "refresh", map[string]interface{}{
			"run_id":  runID.String(),
			"updated": updated,
		})
	}

	log.Info().
		Int("symbols", len(symbols)).
		Int("updated", len(updated)).
		Msg("Reconciliation pass completed")

	return result, nil
}

// Last returns the most recent successful result and the most recent
// error, for status reporting.
func (r *Reconciler) Last() (result *Result, lastErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last != nil {
		c := *r.last
		result = &c
	}
	return result, r.lastErr
}

func (r *Reconciler) record(result Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.lastErr = err
		return
	}
	r.last = &result
	r.lastErr = nil
}

func (r *Reconciler) emitFailed(err error) {
	if r.events == nil {
		return
	}
	r.events.Emit(events.RefreshFailed, "refresh", map[string]interface{}{
		"error": err.Error(),
	})
}
