package ports

import (
	"context"

	"marginledger/internal/domain"
)

// ExchangeClient is the exchange collaborator surface the ledger consumes.
// Order placement strategy lives outside the accounting engine; the engine
// only needs prices, balances and the ability to resolve in-flight orders
// into fills.
type ExchangeClient interface {
	// GetCurrentRate retrieves the last ticker price for a pair.
	GetCurrentRate(ctx context.Context, pair string) (float64, error)

	// GetBalance retrieves the free balance for an asset (e.g. "BTC").
	GetBalance(ctx context.Context, asset string) (float64, error)

	// GetOrder fetches the current state of an order as a domain fill.
	// Returns nil, ErrOrderNotFound when the exchange no longer knows it.
	GetOrder(ctx context.Context, pair, orderID string) (*domain.Fill, error)

	// CancelOrder cancels an open order by its ID.
	CancelOrder(ctx context.Context, pair, orderID string) error

	// Ping checks connectivity to the exchange API.
	Ping(ctx context.Context) error
}
