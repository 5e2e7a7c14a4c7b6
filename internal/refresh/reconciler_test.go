package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfolio-tracker/internal/modules/portfolio"
)

// stubRepo satisfies portfolio.Repository; state lives in the store.
type stubRepo struct {
	nextID int64
}

func (r *stubRepo) LoadPortfolios() ([]*portfolio.Portfolio, error) { return nil, nil }
func (r *stubRepo) CreatePortfolio(string, time.Time) (int64, error) {
	r.nextID++
	return r.nextID, nil
}
func (r *stubRepo) RenamePortfolio(int64, string) error { return nil }
func (r *stubRepo) DeletePortfolio(int64) error         { return nil }
func (r *stubRepo) InsertHolding(_ int64, _ *portfolio.Holding) (int64, error) {
	r.nextID++
	return r.nextID, nil
}
func (r *stubRepo) DeleteHolding(int64) error                            { return nil }
func (r *stubRepo) UpdateCurrentPrices(map[int64]decimal.Decimal) error  { return nil }
func (r *stubRepo) ActivePortfolioID() (int64, bool, error)              { return 0, false, nil }
func (r *stubRepo) SetActivePortfolioID(int64) error                     { return nil }

// fakeSource records every batch it is asked for.
type fakeSource struct {
	mu     sync.Mutex
	calls  [][]string
	prices map[string]decimal.Decimal
	err    error
}

func (f *fakeSource) GetQuotes(_ context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	batch := make([]string, len(symbols))
	copy(batch, symbols)
	f.calls = append(f.calls, batch)

	if f.err != nil {
		return nil, f.err
	}
	return f.prices, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestStore(t *testing.T) *portfolio.Store {
	t.Helper()
	store := portfolio.NewStore(&stubRepo{}, nil, zerolog.Nop())
	require.NoError(t, store.Load())
	return store
}

func addHolding(t *testing.T, store *portfolio.Store, portfolioID int64, symbol, shares, price string) {
	t.Helper()
	_, err := store.AddHolding(portfolioID, symbol,
		decimal.RequireFromString(shares), decimal.RequireFromString(price),
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
}

func TestReconciler_EmptyStore_SkipsSourceCall(t *testing.T) {
	store := newTestStore(t)
	source := &fakeSource{}
	r := New(store, source, nil, time.Second, zerolog.Nop())

	result, err := r.Refresh(context.Background())
	require.NoError(t, err)

	// Zero symbols means zero external calls.
	assert.Equal(t, 0, source.callCount())
	assert.Empty(t, result.UpdatedSymbols)
	assert.False(t, result.AsOf.IsZero())
}

func TestReconciler_Refresh_UpdatesPrices(t *testing.T) {
	store := newTestStore(t)
	id := store.Portfolios()[0].ID
	addHolding(t, store, id, "AAPL", "50", "150.25")
	addHolding(t, store, id, "MSFT", "10", "300")

	source := &fakeSource{prices: map[string]decimal.Decimal{
		"AAPL": decimal.RequireFromString("175.30"),
		"MSFT": decimal.RequireFromString("310"),
	}}
	r := New(store, source, nil, time.Second, zerolog.Nop())

	result, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, result.UpdatedSymbols)
	assert.NotEqual(t, result.RunID.String(), "00000000-0000-0000-0000-000000000000")

	p, err := store.Get(id)
	require.NoError(t, err)
	assert.True(t, p.Holdings[0].CurrentPrice.Equal(decimal.RequireFromString("175.30")))
	assert.True(t, p.Holdings[1].CurrentPrice.Equal(decimal.RequireFromString("310")))
}

func TestReconciler_Refresh_IdempotentOnUnchangedPrices(t *testing.T) {
	store := newTestStore(t)
	id := store.Portfolios()[0].ID
	addHolding(t, store, id, "AAPL", "50", "150.25")

	source := &fakeSource{prices: map[string]decimal.Decimal{
		"AAPL": decimal.RequireFromString("175.30"),
	}}
	r := New(store, source, nil, time.Second, zerolog.Nop())

	first, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"AAPL"}, first.UpdatedSymbols)

	time.Sleep(5 * time.Millisecond)

	// Identical prices: no further change, but asOf still advances.
	second, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.UpdatedSymbols)
	assert.True(t, second.AsOf.After(first.AsOf))
}

func TestReconciler_Refresh_MissingSymbolLeftUnchanged(t *testing.T) {
	store := newTestStore(t)
	id := store.Portfolios()[0].ID
	addHolding(t, store, id, "AAPL", "50", "150.25")
	addHolding(t, store, id, "MSFT", "10", "300")

	// Source only answers for AAPL.
	source := &fakeSource{prices: map[string]decimal.Decimal{
		"AAPL": decimal.RequireFromString("175.30"),
	}}
	r := New(store, source, nil, time.Second, zerolog.Nop())

	result, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, result.UpdatedSymbols)

	p, err := store.Get(id)
	require.NoError(t, err)
	// Not an error, not zeroed: bit-for-bit unchanged.
	assert.Equal(t, "300", p.Holdings[1].CurrentPrice.String())
}

func TestReconciler_Refresh_DeduplicatesSymbols(t *testing.T) {
	store := newTestStore(t)
	first := store.Portfolios()[0].ID
	second, err := store.CreatePortfolio("Second")
	require.NoError(t, err)

	addHolding(t, store, first, "AAPL", "50", "150.25")
	addHolding(t, store, second.ID, "AAPL", "5", "160")

	source := &fakeSource{prices: map[string]decimal.Decimal{
		"AAPL": decimal.RequireFromString("175.30"),
	}}
	r := New(store, source, nil, time.Second, zerolog.Nop())

	_, err = r.Refresh(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, source.callCount())
	// The batch carries the symbol once even though two holdings use it.
	assert.Equal(t, []string{"AAPL"}, source.calls[0])
}

func TestReconciler_Refresh_SourceFailureLeavesPricesUntouched(t *testing.T) {
	store := newTestStore(t)
	id := store.Portfolios()[0].ID
	addHolding(t, store, id, "AAPL", "50", "150.25")

	source := &fakeSource{err: errors.New("rate limited")}
	r := New(store, source, nil, time.Second, zerolog.Nop())

	_, err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	p, err := store.Get(id)
	require.NoError(t, err)
	assert.True(t, p.Holdings[0].CurrentPrice.Equal(decimal.RequireFromString("150.25")))

	last, lastErr := r.Last()
	assert.Nil(t, last)
	assert.ErrorIs(t, lastErr, ErrSourceUnavailable)
}

func TestReconciler_Last(t *testing.T) {
	store := newTestStore(t)
	id := store.Portfolios()[0].ID
	addHolding(t, store, id, "AAPL", "50", "150.25")

	source := &fakeSource{prices: map[string]decimal.Decimal{
		"AAPL": decimal.RequireFromString("175.30"),
	}}
	r := New(store, source, nil, time.Second, zerolog.Nop())

	last, lastErr := r.Last()
	assert.Nil(t, last)
	assert.NoError(t, lastErr)

	result, err := r.Refresh(context.Background())
	require.NoError(t, err)

	last, lastErr = r.Last()
	require.NotNil(t, last)
	assert.NoError(t, lastErr)
	assert.Equal(t, result.RunID, last.RunID)

	// A later failure keeps the last good result around.
	source.mu.Lock()
	source.err = errors.New("down")
	source.mu.Unlock()

	_, err = r.Refresh(context.Background())
	require.Error(t, err)

	last, lastErr = r.Last()
	require.NotNil(t, last)
	assert.Equal(t, result.RunID, last.RunID)
	assert.Error(t, lastErr)
}
