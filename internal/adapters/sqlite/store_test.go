package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marginledger/internal/domain"
	"marginledger/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestStore creates a temporary database for testing
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "marginledger-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	store, err := NewStore(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

func testTrade(pair string) *domain.Trade {
	return &domain.Trade{
		Pair:         pair,
		Exchange:     "kraken",
		Direction:    domain.DirectionShort,
		Amount:       15,
		OpenRate:     0.02,
		StakeAmount:  0.1,
		Leverage:     3.0,
		Borrowed:     15,
		FeeOpen:      0.0025,
		FeeClose:     0.0025,
		InterestRate: 0.0005,
		InterestMode: domain.InterestHoursPer4,
		OpenDate:     time.Now().UTC().Truncate(time.Second),
		IsOpen:       true,
	}
}

func TestStore_CreateAndFindByID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	trade := testTrade("ETH/BTC")
	orderID := "mocked_limit_sell"
	trade.OpenOrderID = &orderID

	id, err := store.Create(ctx, trade)
	require.NoError(t, err)
	assert.Equal(t, id, trade.ID)

	found, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "ETH/BTC", found.Pair)
	assert.Equal(t, "kraken", found.Exchange)
	assert.Equal(t, domain.DirectionShort, found.Direction)
	assert.Equal(t, domain.InterestHoursPer4, found.InterestMode)
	assert.Equal(t, 15.0, found.Amount)
	assert.Equal(t, 15.0, found.Borrowed)
	assert.Equal(t, 3.0, found.Leverage)
	require.NotNil(t, found.OpenOrderID)
	assert.Equal(t, "mocked_limit_sell", *found.OpenOrderID)
	assert.Nil(t, found.CloseDate)
	assert.Nil(t, found.CloseProfit)
	assert.Nil(t, found.LiquidationPrice)
	assert.True(t, found.IsOpen)
	assert.True(t, found.OpenDate.Equal(trade.OpenDate))

	missing, err := store.FindByID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_UpdateRoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	trade := testTrade("ETH/BTC")
	id, err := store.Create(ctx, trade)
	require.NoError(t, err)

	// Settle the trade and round-trip the nullable columns.
	closedAt := time.Now().UTC().Truncate(time.Second)
	profit := 0.1486494375
	profitPct := 1.4902199248
	liquidation := 0.065
	trade.CloseRate = 0.01
	trade.CloseDate = &closedAt
	trade.CloseProfit = &profit
	trade.CloseProfitPct = &profitPct
	trade.LiquidationPrice = &liquidation
	trade.StopLoss = 0.022
	trade.StopLossPct = 0.1
	trade.InitialStopLoss = 0.021
	trade.InitialStopLossPct = 0.05
	trade.MaxRate = 0.025
	trade.MinRate = 0.009
	trade.OpenOrderID = nil
	trade.IsOpen = false

	require.NoError(t, store.Update(ctx, trade))

	found, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.False(t, found.IsOpen)
	assert.Equal(t, 0.01, found.CloseRate)
	require.NotNil(t, found.CloseDate)
	assert.True(t, found.CloseDate.Equal(closedAt))
	require.NotNil(t, found.CloseProfit)
	assert.Equal(t, profit, *found.CloseProfit)
	require.NotNil(t, found.CloseProfitPct)
	assert.Equal(t, profitPct, *found.CloseProfitPct)
	require.NotNil(t, found.LiquidationPrice)
	assert.Equal(t, liquidation, *found.LiquidationPrice)
	assert.Nil(t, found.OpenOrderID)
	assert.Equal(t, 0.022, found.StopLoss)
	assert.Equal(t, 0.021, found.InitialStopLoss)
	assert.Equal(t, 0.025, found.MaxRate)
	assert.Equal(t, 0.009, found.MinRate)
}

func TestStore_UpdateNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	trade := testTrade("ETH/BTC")
	trade.ID = 12345
	err := store.Update(context.Background(), trade)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestStore_OpenAndClosedQueries(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	open := testTrade("ETH/BTC")
	open.StakeAmount = 0.25
	_, err := store.Create(ctx, open)
	require.NoError(t, err)

	mkClosed := func(pair string, pct float64, closedAt time.Time) *domain.Trade {
		trade := testTrade(pair)
		profit := pct * trade.StakeAmount
		trade.CloseRate = 0.01
		trade.CloseDate = &closedAt
		trade.CloseProfit = &profit
		trade.CloseProfitPct = &pct
		trade.IsOpen = false
		return trade
	}

	older := mkClosed("ETH/BTC", 0.02, now.Add(-2*time.Hour))
	_, err = store.Create(ctx, older)
	require.NoError(t, err)
	newer := mkClosed("XRP/BTC", 0.07, now.Add(-time.Hour))
	_, err = store.Create(ctx, newer)
	require.NoError(t, err)

	openTrades, err := store.GetOpenTrades(ctx)
	require.NoError(t, err)
	require.Len(t, openTrades, 1)
	assert.Equal(t, open.ID, openTrades[0].ID)

	closed, err := store.GetClosedTrades(ctx)
	require.NoError(t, err)
	require.Len(t, closed, 2)
	assert.Equal(t, newer.ID, closed[0].ID)
	assert.Equal(t, older.ID, closed[1].ID)

	total, err := store.TotalOpenTradesStakes(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, total, 1e-9)
}

func TestStore_GetBestPair(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
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
		{"ETH/BTC", -0.03},
		{"XRP/BTC", 0.04},
	} {
		trade := testTrade(tc.pair)
		pct := tc.pct
		profit := pct * trade.StakeAmount
		closedAt := now
		trade.CloseRate = 0.01
		trade.CloseDate = &closedAt
		trade.CloseProfit = &profit
		trade.CloseProfitPct = &pct
		trade.IsOpen = false
		_, err := store.Create(ctx, trade)
		require.NoError(t, err)
	}

	best, err = store.GetBestPair(ctx)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "XRP/BTC", best.Pair)
	assert.InDelta(t, 0.04, best.ProfitPct, 1e-9)
}

func TestStore_CorruptStateDetection(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	trade := testTrade("ETH/BTC")
	id, err := store.Create(ctx, trade)
	require.NoError(t, err)

	// A closed row without a close_date is rejected on read.
	_, err = store.db.ExecContext(ctx, `UPDATE trades SET is_open = 0 WHERE id = ?`, id)
	require.NoError(t, err)
	_, err = store.FindByID(ctx, id)
	assert.ErrorIs(t, err, ports.ErrCorruptState)

	// So is an unparseable direction.
	_, err = store.db.ExecContext(ctx, `UPDATE trades SET is_open = 1, direction = 'sideways' WHERE id = ?`, id)
	require.NoError(t, err)
	_, err = store.FindByID(ctx, id)
	assert.ErrorIs(t, err, ports.ErrCorruptState)
}
