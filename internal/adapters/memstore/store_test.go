package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marginledger/internal/domain"
	"marginledger/internal/ports"
)

func newTestTrade(pair string) *domain.Trade {
	return &domain.Trade{
		Pair:         pair,
		Exchange:     "binance",
		Direction:    domain.DirectionShort,
		Amount:       10,
		OpenRate:     1.0,
		StakeAmount:  10,
		Leverage:     1.0,
		FeeOpen:      0.0025,
		FeeClose:     0.0025,
		InterestRate: 0.0005,
		InterestMode: domain.InterestHoursPerDay,
		OpenDate:     time.Now().UTC(),
		IsOpen:       true,
	}
}

func closeTrade(t *testing.T, trade *domain.Trade, profitPct float64, closedAt time.Time) {
	t.Helper()
	profit := profitPct * trade.StakeAmount
	trade.CloseProfit = &profit
	trade.CloseProfitPct = &profitPct
	trade.CloseDate = &closedAt
	trade.IsOpen = false
}

func TestCreateAndFindByID(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	trade := newTestTrade("ETH/BTC")
	id, err := store.Create(ctx, trade)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, id, trade.ID)

	found, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "ETH/BTC", found.Pair)
	assert.Equal(t, domain.DirectionShort, found.Direction)

	missing, err := store.FindByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// Committed state must not alias caller-held pointers in either direction.
func TestSnapshotIsolation(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	trade := newTestTrade("ETH/BTC")
	id, err := store.Create(ctx, trade)
	require.NoError(t, err)

	// Mutating the caller's copy after Create must not leak into the store.
	trade.Amount = 999

	found, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10.0, found.Amount)

	// Mutating a read result must not leak either.
	found.Amount = 555
	pct := 0.5
	found.CloseProfitPct = &pct

	again, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10.0, again.Amount)
	assert.Nil(t, again.CloseProfitPct)
}

func TestUpdateNotFound(t *testing.T) {
	store := NewStore()
	trade := newTestTrade("ETH/BTC")
	trade.ID = 42

	err := store.Update(context.Background(), trade)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestOpenAndClosedQueries(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	open := newTestTrade("ETH/BTC")
	open.StakeAmount = 7
	_, err := store.Create(ctx, open)
	require.NoError(t, err)

	older := newTestTrade("ETH/BTC")
	closeTrade(t, older, 0.02, now.Add(-2*time.Hour))
	_, err = store.Create(ctx, older)
	require.NoError(t, err)

	newer := newTestTrade("ETH/USDT")
	closeTrade(t, newer, -0.01, now.Add(-time.Hour))
	_, err = store.Create(ctx, newer)
	require.NoError(t, err)

	openTrades, err := store.GetOpenTrades(ctx)
	require.NoError(t, err)
	require.Len(t, openTrades, 1)
	assert.Equal(t, open.ID, openTrades[0].ID)

	closed, err := store.GetClosedTrades(ctx)
	require.NoError(t, err)
	require.Len(t, closed, 2)
	// Newest close first.
	assert.Equal(t, newer.ID, closed[0].ID)
	assert.Equal(t, older.ID, closed[1].ID)

	total, err := store.TotalOpenTradesStakes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7.0, total)
}

func TestGetBestPair(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	best, err := store.GetBestPair(ctx)
	require.NoError(t, err)
	assert.Nil(t, best)

	for _, tc := range []struct {
		pair string
		pct  float64
	}{
		{"ETH/BTC", 0.05},
		{"ETH/BTC", -0.01},
		{"XRP/BTC", 0.03},
	} {
		trade := newTestTrade(tc.pair)
		closeTrade(t, trade, tc.pct, now)
		_, err := store.Create(ctx, trade)
		require.NoError(t, err)
	}

	best, err = store.GetBestPair(ctx)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "XRP/BTC", best.Pair)
	assert.InDelta(t, 0.03, best.ProfitPct, 1e-9)
}
