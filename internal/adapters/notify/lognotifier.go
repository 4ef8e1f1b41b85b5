package notify

import (
	"context"

	"marginledger/internal/domain"
	"marginledger/internal/ports"
)

// LogNotifier implements ports.Notifier by writing event payloads to the
// application log. It stands in for messaging backends (telegram, webhooks)
// which consume the same payload shape.
type LogNotifier struct {
	logger ports.Logger
}

// NewLogNotifier creates a Notifier backed by the given logger.
func NewLogNotifier(logger ports.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the structured trade event.
func (n *LogNotifier) Notify(ctx context.Context, event domain.TradeEvent) error {
	fields := map[string]interface{}{
		"type":          string(event.Type),
		"tradeID":       event.TradeID,
		"pair":          event.Pair,
		"amount":        event.Amount,
		"rate":          event.Rate,
		"stakeCurrency": event.StakeCurrency,
	}
	if event.Type == domain.EventClose {
		fields["profit"] = event.Profit
		fields["profitPct"] = event.ProfitPct
	}
	n.logger.Info(ctx, "Trade event", fields)
	return nil
}
