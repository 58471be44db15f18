package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copperexchange/controllers/internal/provider"
)

type fetchArgs struct {
	currency       string
	nativeCurrency string
	includeUSDRate bool
}

// stubFetcher records every call and delegates to a swappable fetch func.
type stubFetcher struct {
	mu    sync.Mutex
	calls []fetchArgs
	fetch func(ctx context.Context, currency, nativeCurrency string, includeUSDRate bool) (*provider.Quote, error)
}

func (s *stubFetcher) FetchRate(ctx context.Context, currency, nativeCurrency string, includeUSDRate bool) (*provider.Quote, error) {
	s.mu.Lock()
	s.calls = append(s.calls, fetchArgs{currency, nativeCurrency, includeUSDRate})
	s.mu.Unlock()
	return s.fetch(ctx, currency, nativeCurrency, includeUSDRate)
}

func (s *stubFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubFetcher) lastCall() fetchArgs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}

func quoteFetcher(rate float64, date int64) *stubFetcher {
	return &stubFetcher{
		fetch: func(context.Context, string, string, bool) (*provider.Quote, error) {
			return &provider.Quote{ConversionDate: date, ConversionRate: rate}, nil
		},
	}
}

func newTestTracker(t *testing.T, opts Options) *RateTracker {
	t.Helper()
	opts.DisablePolling = true
	tr, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(tr.Dispose)
	return tr
}

func TestNew_RequiresFetcher(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrFetcherRequired)
}

func TestNew_DefaultState(t *testing.T) {
	tr := newTestTracker(t, Options{Fetcher: quoteFetcher(10, 1)})

	state := tr.State()
	assert.Equal(t, "usd", state.CurrentCurrency)
	assert.Equal(t, "ETH", state.NativeCurrency)
	assert.Zero(t, state.ConversionRate)
	assert.Zero(t, state.ConversionDate)
	assert.Empty(t, state.PendingCurrentCurrency)
	assert.Empty(t, state.PendingNativeCurrency)
	assert.Nil(t, state.USDConversionRate)
}

func TestNew_PartialInitialStateOverridesOnlyGivenFields(t *testing.T) {
	tr := newTestTracker(t, Options{
		Fetcher:      quoteFetcher(10, 1),
		InitialState: &ConversionState{CurrentCurrency: "rep"},
	})

	state := tr.State()
	assert.Equal(t, "rep", state.CurrentCurrency)
	assert.Equal(t, "ETH", state.NativeCurrency)
	assert.Zero(t, state.ConversionRate)
	assert.Zero(t, state.ConversionDate)
}

func TestUpdateExchangeRate_CommitsQuote(t *testing.T) {
	tr := newTestTracker(t, Options{Fetcher: quoteFetcher(10, 1700000000000)})

	require.NoError(t, tr.UpdateExchangeRate(context.Background()))

	state := tr.State()
	assert.Equal(t, 10.0, state.ConversionRate)
	assert.Equal(t, int64(1700000000000), state.ConversionDate)
	// Read-back stays stable.
	assert.Equal(t, 10.0, tr.State().ConversionRate)
}

func TestUpdateExchangeRate_FailureLeavesStateUntouched(t *testing.T) {
	failing := &stubFetcher{
		fetch: func(context.Context, string, string, bool) (*provider.Quote, error) {
			return nil, &provider.FetchError{Provider: "stub", Err: errors.New("boom")}
		},
	}
	tr := newTestTracker(t, Options{Fetcher: failing})
	before := tr.State()

	err := tr.UpdateExchangeRate(context.Background())
	require.Error(t, err)
	assert.True(t, provider.IsFetchError(err))
	assert.Equal(t, before, tr.State())
}

func TestSetCurrentCurrency_PromotesPendingOnSuccess(t *testing.T) {
	fetcher := quoteFetcher(18.75, 42)
	tr := newTestTracker(t, Options{Fetcher: fetcher})

	require.NoError(t, tr.SetCurrentCurrency(context.Background(), "CAD"))

	state := tr.State()
	assert.Equal(t, "CAD", state.CurrentCurrency)
	assert.Empty(t, state.PendingCurrentCurrency)
	assert.Equal(t, 18.75, state.ConversionRate)
	assert.Equal(t, "CAD", fetcher.lastCall().currency)
}

func TestSetNativeCurrency_PromotesPendingOnSuccess(t *testing.T) {
	fetcher := quoteFetcher(1.0002, 42)
	tr := newTestTracker(t, Options{Fetcher: fetcher})

	require.NoError(t, tr.SetNativeCurrency(context.Background(), "xDAI"))

	state := tr.State()
	assert.Equal(t, "xDAI", state.NativeCurrency)
	assert.Empty(t, state.PendingNativeCurrency)
	assert.Equal(t, "xDAI", fetcher.lastCall().nativeCurrency)
}

func TestSetters_RejectEmptyCodes(t *testing.T) {
	tr := newTestTracker(t, Options{Fetcher: quoteFetcher(10, 1)})

	assert.ErrorIs(t, tr.SetCurrentCurrency(context.Background(), "  "), ErrEmptyCurrency)
	assert.ErrorIs(t, tr.SetNativeCurrency(context.Background(), ""), ErrEmptyCurrency)
}

func TestSetCurrentCurrency_FailureKeepsPendingForRetry(t *testing.T) {
	var fail bool
	fetcher := &stubFetcher{}
	fetcher.fetch = func(context.Context, string, string, bool) (*provider.Quote, error) {
		if fail {
			return nil, &provider.FetchError{Provider: "stub", Err: errors.New("down")}
		}
		return &provider.Quote{ConversionDate: 42, ConversionRate: 18.75}, nil
	}
	tr := newTestTracker(t, Options{Fetcher: fetcher})

	fail = true
	err := tr.SetCurrentCurrency(context.Background(), "CAD")
	require.Error(t, err)

	state := tr.State()
	assert.Equal(t, "usd", state.CurrentCurrency)
	assert.Equal(t, "CAD", state.PendingCurrentCurrency)

	// The next attempt retries the same pending target and completes it.
	fail = false
	require.NoError(t, tr.UpdateExchangeRate(context.Background()))

	state = tr.State()
	assert.Equal(t, "CAD", state.CurrentCurrency)
	assert.Empty(t, state.PendingCurrentCurrency)
	assert.Equal(t, "CAD", fetcher.lastCall().currency)
}

func TestUpdateExchangeRate_ForwardsFetchArguments(t *testing.T) {
	fetcher := quoteFetcher(10, 1)
	tr := newTestTracker(t, Options{
		Fetcher:        fetcher,
		IncludeUSDRate: true,
		InitialState:   &ConversionState{CurrentCurrency: "xyz"},
	})

	require.NoError(t, tr.UpdateExchangeRate(context.Background()))

	assert.Equal(t, fetchArgs{currency: "xyz", nativeCurrency: "ETH", includeUSDRate: true}, fetcher.lastCall())
}

func TestUpdateExchangeRate_IncludeUSDRate(t *testing.T) {
	usd := 2942.17
	fetcher := &stubFetcher{
		fetch: func(context.Context, string, string, bool) (*provider.Quote, error) {
			return &provider.Quote{ConversionDate: 42, ConversionRate: 4012.55, USDConversionRate: &usd}, nil
		},
	}
	tr := newTestTracker(t, Options{Fetcher: fetcher, IncludeUSDRate: true})

	require.NoError(t, tr.UpdateExchangeRate(context.Background()))

	state := tr.State()
	require.NotNil(t, state.USDConversionRate)
	assert.Equal(t, usd, *state.USDConversionRate)
}

func TestPolling_BoundedTickCounts(t *testing.T) {
	fetcher := quoteFetcher(10, 1)
	tr, err := New(Options{Fetcher: fetcher, Interval: 200 * time.Millisecond})
	require.NoError(t, err)
	defer tr.Dispose()

	// One immediate refresh on start, exactly one more per interval.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, fetcher.callCount())

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestStartPolling_RestartCancelsScheduledTimer(t *testing.T) {
	fetcher := quoteFetcher(10, 1)
	tr := newTestTracker(t, Options{Fetcher: fetcher, Interval: 300 * time.Millisecond})

	tr.StartPolling()
	tr.StartPolling()
	assert.Equal(t, 2, fetcher.callCount())

	// Only the second schedule survives: one tick at ~300ms, the next not
	// before ~600ms. Two live timers would produce four calls by now.
	time.Sleep(450 * time.Millisecond)
	assert.Equal(t, 3, fetcher.callCount())
}

func TestDispose_StopsPollingAndIsIdempotent(t *testing.T) {
	fetcher := quoteFetcher(10, 1)
	tr, err := New(Options{Fetcher: fetcher, Interval: 100 * time.Millisecond})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	tr.Dispose()
	tr.Dispose()

	calls := fetcher.callCount()
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, calls, fetcher.callCount())

	// StartPolling after disposal is a no-op.
	tr.StartPolling()
	assert.Equal(t, calls, fetcher.callCount())
}

func TestSubscribe_EmitsStateAndDiffOnEveryCommit(t *testing.T) {
	fetcher := quoteFetcher(18.75, 42)
	tr := newTestTracker(t, Options{Fetcher: fetcher})

	var mu sync.Mutex
	var changes []StateChange
	tr.Subscribe(func(c StateChange) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	require.NoError(t, tr.SetCurrentCurrency(context.Background(), "CAD"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 2)

	// First commit: the pending request.
	assert.Equal(t, []string{"pendingCurrentCurrency"}, changes[0].Changed)
	assert.Equal(t, "CAD", changes[0].Current.PendingCurrentCurrency)

	// Second commit: the refresh result promoting the pending currency.
	assert.Contains(t, changes[1].Changed, "conversionRate")
	assert.Contains(t, changes[1].Changed, "currentCurrency")
	assert.Contains(t, changes[1].Changed, "pendingCurrentCurrency")
	assert.Equal(t, "CAD", changes[1].Current.CurrentCurrency)
	assert.Empty(t, changes[1].Current.PendingCurrentCurrency)
	assert.Equal(t, changes[0].Current, changes[1].Previous)
}

func TestOverlappingRefreshes_CommitWholeStatesInLockOrder(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	fetcher := &stubFetcher{}
	fetcher.fetch = func(_ context.Context, currency, _ string, _ bool) (*provider.Quote, error) {
		if currency == "usd" {
			close(started)
			<-release // hold the first refresh in its fetch
			return &provider.Quote{ConversionDate: 1, ConversionRate: 1}, nil
		}
		return &provider.Quote{ConversionDate: 2, ConversionRate: 2}, nil
	}
	tr := newTestTracker(t, Options{Fetcher: fetcher})

	firstDone := make(chan error, 1)
	go func() { firstDone <- tr.UpdateExchangeRate(context.Background()) }()
	<-started

	// A currency change races the in-flight refresh: its pending write lands
	// now, its refresh queues on the lock.
	secondDone := make(chan error, 1)
	go func() { secondDone <- tr.SetCurrentCurrency(context.Background(), "cad") }()

	// Wait for the pending request to be visible, then let the first finish.
	require.Eventually(t, func() bool {
		return tr.State().PendingCurrentCurrency == "cad"
	}, time.Second, 5*time.Millisecond)
	close(release)

	require.NoError(t, <-firstDone)

	// The first commit is a complete usd-state; the still-unserved pending
	// request survives it.
	require.Eventually(t, func() bool { return fetcher.callCount() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, <-secondDone)

	state := tr.State()
	assert.Equal(t, "cad", state.CurrentCurrency)
	assert.Equal(t, 2.0, state.ConversionRate)
	assert.Empty(t, state.PendingCurrentCurrency)

	// Lock order: the usd refresh fetched first, the cad refresh second.
	require.Equal(t, 2, fetcher.callCount())
	assert.Equal(t, "usd", fetcher.calls[0].currency)
	assert.Equal(t, "cad", fetcher.calls[1].currency)
}
