// Package tracker maintains the tracked currency conversion state, refreshed
// on a timer from an external price-quote source.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/copperexchange/controllers/internal/metrics"
	"github.com/copperexchange/controllers/internal/provider"
)

// ErrEmptyCurrency is returned when a setter receives a blank currency code.
var ErrEmptyCurrency = errors.New("currency code must not be empty")

// ErrFetcherRequired is returned by New when no rate fetcher is supplied.
var ErrFetcherRequired = errors.New("rate fetcher is required")

// Options configures a RateTracker.
type Options struct {
	// Fetcher is the injected rate source. Required.
	Fetcher provider.RateFetcher
	// IncludeUSDRate requests the USD rate alongside every refresh.
	IncludeUSDRate bool
	// Interval is the polling interval. Defaults to DefaultInterval.
	Interval time.Duration
	// InitialState is merged over the default state. Zero-valued currency
	// fields keep their defaults.
	InitialState *ConversionState
	// DisablePolling skips the automatic polling loop. Callers that drive
	// refreshes themselves (and tests) set this.
	DisablePolling bool

	Logger  *zap.SugaredLogger
	Metrics *metrics.Metrics
}

// RateTracker holds the conversion state and keeps it fresh by polling the
// injected rate fetcher. At most one refresh runs its fetch and commit at a
// time; overlapping requests queue on the refresh mutex and each commits a
// whole state, in lock-acquisition order.
type RateTracker struct {
	fetcher        provider.RateFetcher
	includeUSDRate bool
	interval       time.Duration
	log            *zap.SugaredLogger
	metrics        *metrics.Metrics

	// refreshMu serializes the fetch-then-commit critical section.
	refreshMu sync.Mutex

	stateMu sync.RWMutex
	state   ConversionState

	timerMu  sync.Mutex
	timer    *time.Timer
	disposed bool

	listenerMu sync.RWMutex
	listeners  []Listener
}

// New creates a RateTracker and, unless polling is disabled, immediately
// starts the polling loop in the background.
func New(opts Options) (*RateTracker, error) {
	if opts.Fetcher == nil {
		return nil, ErrFetcherRequired
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	t := &RateTracker{
		fetcher:        opts.Fetcher,
		includeUSDRate: opts.IncludeUSDRate,
		interval:       interval,
		log:            logger,
		metrics:        opts.Metrics,
		state:          mergeInitialState(opts.InitialState),
	}

	if !opts.DisablePolling {
		go t.StartPolling()
	}
	return t, nil
}

// State returns a copy of the current conversion state.
func (t *RateTracker) State() ConversionState {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	return t.state
}

// Subscribe registers a listener that is called synchronously on every state
// commit with the full new state and a diff against the previous one.
func (t *RateTracker) Subscribe(fn Listener) {
	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// SetCurrentCurrency records a pending quote currency change and performs one
// refresh attempt. On fetch failure the pending request is kept so the next
// poll retries the same target.
func (t *RateTracker) SetCurrentCurrency(ctx context.Context, currencyCode string) error {
	code := strings.TrimSpace(currencyCode)
	if code == "" {
		return ErrEmptyCurrency
	}

	t.metrics.IncPairChange("currency")
	t.mutateState(func(s *ConversionState) {
		s.PendingCurrentCurrency = code
	})
	return t.UpdateExchangeRate(ctx)
}

// SetNativeCurrency records a pending native asset change and performs one
// refresh attempt, symmetric to SetCurrentCurrency.
func (t *RateTracker) SetNativeCurrency(ctx context.Context, symbol string) error {
	asset := strings.TrimSpace(symbol)
	if asset == "" {
		return ErrEmptyCurrency
	}

	t.metrics.IncPairChange("native_currency")
	t.mutateState(func(s *ConversionState) {
		s.PendingNativeCurrency = asset
	})
	return t.UpdateExchangeRate(ctx)
}

// UpdateExchangeRate fetches a fresh rate for the pending (or current) pair
// and commits it as a whole-state replacement. On failure the state,
// including any pending request, is left untouched and the error is returned.
func (t *RateTracker) UpdateExchangeRate(ctx context.Context) error {
	t.refreshMu.Lock()
	defer t.refreshMu.Unlock()

	snap := t.State()
	currency := snap.CurrentCurrency
	if snap.PendingCurrentCurrency != "" {
		currency = snap.PendingCurrentCurrency
	}
	asset := snap.NativeCurrency
	if snap.PendingNativeCurrency != "" {
		asset = snap.PendingNativeCurrency
	}

	started := time.Now()
	quote, err := t.fetcher.FetchRate(ctx, currency, asset, t.includeUSDRate)
	if err != nil {
		t.metrics.ObserveRefresh("error", time.Since(started))
		return fmt.Errorf("update exchange rate for %s/%s: %w", asset, currency, err)
	}
	t.metrics.ObserveRefresh("success", time.Since(started))

	t.commit(currency, asset, quote)
	t.log.Debugw("Exchange rate updated",
		"currency", currency,
		"native_currency", asset,
		"rate", quote.ConversionRate,
	)
	return nil
}

// commit replaces the whole conversion state with the refresh result,
// promoting the pending pair that this refresh used. A pending request that
// arrived after this refresh snapshotted its target survives the commit, so
// it is cleared only by a refresh that actually used its value.
func (t *RateTracker) commit(currency, asset string, quote *provider.Quote) {
	t.stateMu.Lock()
	prev := t.state

	next := ConversionState{
		ConversionDate:  quote.ConversionDate,
		ConversionRate:  quote.ConversionRate,
		CurrentCurrency: currency,
		NativeCurrency:  asset,
	}
	if t.includeUSDRate && quote.USDConversionRate != nil {
		usd := *quote.USDConversionRate
		next.USDConversionRate = &usd
	}
	if prev.PendingCurrentCurrency != "" && prev.PendingCurrentCurrency != currency {
		next.PendingCurrentCurrency = prev.PendingCurrentCurrency
	}
	if prev.PendingNativeCurrency != "" && prev.PendingNativeCurrency != asset {
		next.PendingNativeCurrency = prev.PendingNativeCurrency
	}

	t.state = next
	t.stateMu.Unlock()

	t.notify(prev, next)
}

// mutateState applies fn to the state under the state lock and notifies
// subscribers of the change.
func (t *RateTracker) mutateState(fn func(*ConversionState)) {
	t.stateMu.Lock()
	prev := t.state
	next := t.state
	fn(&next)
	t.state = next
	t.stateMu.Unlock()

	t.notify(prev, next)
}

func (t *RateTracker) notify(prev, next ConversionState) {
	changed := diffFields(prev, next)
	if len(changed) == 0 {
		return
	}

	change := StateChange{Previous: prev, Current: next, Changed: changed}
	t.listenerMu.RLock()
	listeners := t.listeners
	t.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(change)
	}
}

// StartPolling cancels any scheduled tick, performs one refresh attempt with
// the error logged and discarded, then schedules itself to run again after
// the configured interval. Calling it on an already polling tracker restarts
// the schedule without producing duplicate timers.
func (t *RateTracker) StartPolling() {
	t.timerMu.Lock()
	if t.disposed {
		t.timerMu.Unlock()
		return
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.timerMu.Unlock()

	// Polling must never die from one bad response.
	if err := t.UpdateExchangeRate(context.Background()); err != nil {
		t.log.Warnw("Scheduled rate refresh failed", "error", err)
	}

	t.timerMu.Lock()
	defer t.timerMu.Unlock()
	if t.disposed {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.interval, t.StartPolling)
}

// Dispose stops future automatic refreshes. A refresh already past its lock
// acquisition is allowed to complete. Idempotent.
func (t *RateTracker) Dispose() {
	t.timerMu.Lock()
	defer t.timerMu.Unlock()
	if t.disposed {
		return
	}
	t.disposed = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
