package ports

import (
	"context"

	"marginledger/internal/domain"
)

// Notifier consumes structured event payloads emitted after each committed
// position state change. Delivery failures must not roll back the committed
// state; the service logs and moves on.
type Notifier interface {
	Notify(ctx context.Context, event domain.TradeEvent) error
}
