package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marginledger/internal/domain"
)

func closedTrade(pair string, profit, profitPct float64, opened time.Time, held time.Duration) *domain.Trade {
	closed := opened.Add(held)
	return &domain.Trade{
		Pair:           pair,
		Direction:      domain.DirectionShort,
		Amount:         10,
		OpenRate:       1.0,
		OpenDate:       opened,
		CloseDate:      &closed,
		CloseProfit:    &profit,
		CloseProfitPct: &profitPct,
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	report := Analyze(nil)
	assert.Equal(t, 0, report.TotalTrades)
	assert.Equal(t, 0.0, report.WinRate)
	assert.Empty(t, report.Pairs)
}

func TestAnalyze(t *testing.T) {
	opened := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)

	trades := []*domain.Trade{
		closedTrade("ETH/BTC", 0.10, 0.05, opened, time.Hour),
		closedTrade("ETH/BTC", -0.04, -0.02, opened, 3*time.Hour),
		closedTrade("XRP/BTC", 0.06, 0.06, opened, 2*time.Hour),
		// Open trades and trades without cached figures are skipped.
		{Pair: "ETH/BTC", IsOpen: true},
		{Pair: "ETH/BTC"},
	}

	report := Analyze(trades)
	assert.Equal(t, 3, report.TotalTrades)
	assert.Equal(t, 2, report.WinningTrades)
	assert.Equal(t, 1, report.LosingTrades)
	assert.InDelta(t, 2.0/3.0, report.WinRate, 1e-9)
	assert.InDelta(t, 0.12, report.TotalProfit, 1e-9)
	assert.InDelta(t, 0.03, report.AvgProfitPct, 1e-9)
	assert.Equal(t, 2*time.Hour, report.AvgDuration)

	require.Len(t, report.Pairs, 2)
	// Sorted by average profit ratio, best first.
	assert.Equal(t, "XRP/BTC", report.Pairs[0].Pair)
	assert.Equal(t, 1, report.Pairs[0].Trades)
	assert.InDelta(t, 0.06, report.Pairs[0].AvgProfitPct, 1e-9)
	assert.Equal(t, "ETH/BTC", report.Pairs[1].Pair)
	assert.Equal(t, 2, report.Pairs[1].Trades)
	assert.InDelta(t, 0.06, report.Pairs[1].TotalProfit, 1e-9)
	assert.InDelta(t, 0.015, report.Pairs[1].AvgProfitPct, 1e-9)
}
