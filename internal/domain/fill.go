package domain

import (
	"fmt"
	"strings"
)

// Fill is an order notification received from the exchange adapter.
// Only fills with status "closed" settle position state; anything else just
// records the in-flight order id.
type Fill struct {
	OrderID  string
	Side     OrderSide
	Status   OrderStatus
	Type     OrderType
	Amount   float64
	Rate     float64
	Fee      float64 // fractional fee rate reported with the fill; 0 keeps the configured fee
	Leverage float64 // leverage reported with the opening fill; 0 keeps the configured leverage
}

func (f Fill) validate() error {
	if f.Side != Buy && f.Side != Sell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, string(f.Side))
	}
	if f.Status != OrderStatusClosed {
		return nil // unfilled orders carry no settled quantities to check
	}
	if f.Amount <= 0 {
		return fmt.Errorf("%w: non-positive amount %v", ErrInvalidOrder, f.Amount)
	}
	if f.Rate <= 0 {
		return fmt.Errorf("%w: non-positive rate %v", ErrInvalidOrder, f.Rate)
	}
	return nil
}

// label renders the side/type pair the way fulfillment logs report it,
// e.g. "MARKET_SELL" or "LIMIT_BUY".
func (f Fill) label() string {
	t := f.Type
	if t == "" {
		t = OrderTypeMarket
	}
	return strings.ToUpper(string(t)) + "_" + string(f.Side)
}

// TradeEvent describes a committed state change for the notification
// collaborator. Delivery failures must not roll back the trade.
type TradeEvent struct {
	Type          EventType
	TradeID       int64
	Pair          string
	Label         string // e.g. MARKET_SELL
	Amount        float64
	Rate          float64
	Profit        float64 // set on CLOSE
	ProfitPct     float64 // set on CLOSE
	StakeCurrency string  // filled in by the service
	OpenSince     string
}
