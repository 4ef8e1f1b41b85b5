package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderStatus represents the lifecycle state of an exchange order.
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusClosed   OrderStatus = "closed"
	OrderStatusCanceled OrderStatus = "canceled"
)

// OrderType represents the execution type of an order.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// Direction is the side of a position. It stays unknown until the first
// filled order fixes it for the life of the trade.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionLong
	DirectionShort
)

// String returns the string representation of the Direction.
func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return "unknown"
	}
}

// ParseDirection converts a stored string back into a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "long":
		return DirectionLong, true
	case "short":
		return DirectionShort, true
	case "unknown":
		return DirectionUnknown, true
	default:
		return DirectionUnknown, false
	}
}

// EventType classifies a committed ledger state change for notification.
type EventType string

const (
	EventOpen   EventType = "OPEN"
	EventClose  EventType = "CLOSE"
	EventUpdate EventType = "UPDATE"
)
