package ports

import (
	"context"

	"marginledger/internal/domain"
)

// PairPerformance is the aggregate result of the best-pair query.
type PairPerformance struct {
	Pair      string
	ProfitPct float64 // average close_profit_pct over closed trades
}

// PositionStore defines the persistence contract for trades. Two backends
// implement it: a durable sqlite store and a volatile in-process collection
// for dry-run/backtesting. The backend is a startup-time decision; both must
// present identical read/write behavior to the engine.
//
// Trades are never deleted, only marked closed; history feeds the
// performance queries.
type PositionStore interface {
	// Create saves a new trade and returns its assigned ID.
	Create(ctx context.Context, trade *domain.Trade) (int64, error)
	// Update commits all fields of an existing trade atomically.
	Update(ctx context.Context, trade *domain.Trade) error
	// FindByID retrieves a trade by its unique ID.
	// Returns nil, nil if not found.
	FindByID(ctx context.Context, id int64) (*domain.Trade, error)
	// GetOpenTrades retrieves all trades with is_open == true.
	GetOpenTrades(ctx context.Context) ([]*domain.Trade, error)
	// GetClosedTrades retrieves all settled trades, newest first.
	GetClosedTrades(ctx context.Context) ([]*domain.Trade, error)
	// TotalOpenTradesStakes sums stake_amount over open trades.
	TotalOpenTradesStakes(ctx context.Context) (float64, error)
	// GetBestPair returns the pair with the highest average close profit
	// ratio over closed trades, or nil, nil when nothing has closed yet.
	GetBestPair(ctx context.Context) (*PairPerformance, error)
	// Close releases any underlying resources.
	Close() error
}
