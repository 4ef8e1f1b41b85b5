package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Trade represents one leveraged (or unleveraged) position, long or short.
//
// The entity is exclusively owned by the accounting engine. Mutating methods
// (Update, Close, AdjustStopLoss, ...) are not safe for concurrent callers on
// the same trade; the caller serializes writes per position. Valuation methods
// are pure functions of the stored state plus their explicit arguments.
type Trade struct {
	ID       int64
	Pair     string // e.g. "ETH/BTC"
	Exchange string // e.g. "kraken"

	Direction Direction // unknown until the first fill

	Amount      float64 // position size in base currency
	OpenRate    float64
	CloseRate   float64 // 0 until a closing fill or Close()
	StakeAmount float64 // margin committed by the trader
	Leverage    float64 // >= 1.0; 1.0 means no borrowing
	Borrowed    float64 // base currency funded by margin debt

	FeeOpen  float64 // fractional, e.g. 0.0025
	FeeClose float64

	InterestRate float64 // fractional, per interest period
	InterestMode InterestMode

	OpenDate  time.Time
	CloseDate *time.Time // set iff the trade is closed

	OpenOrderID *string // non-nil while an order is in flight and unfilled

	StopLoss           float64
	StopLossPct        float64
	InitialStopLoss    float64 // set exactly once, never mutated afterwards
	InitialStopLossPct float64
	MaxRate            float64 // highest price seen since open
	MinRate            float64 // lowest price seen since open
	LiquidationPrice   *float64

	CloseProfit    *float64 // absolute profit, cached at close
	CloseProfitPct *float64 // profit ratio, cached at close
	IsOpen         bool
}

// IsShort reports whether the trade direction is short.
func (t *Trade) IsShort() bool {
	return t.Direction == DirectionShort
}

func (t *Trade) leverage() float64 {
	if t.Leverage <= 0 {
		return 1.0
	}
	return t.Leverage
}

// setDirection fixes the trade direction from the first filled order.
// Once set it is immutable for the life of the position.
func (t *Trade) setDirection(d Direction) error {
	if t.Direction == d {
		return nil
	}
	if t.Direction != DirectionUnknown {
		return fmt.Errorf("%w: is %s, got %s", ErrDirectionConflict, t.Direction, d)
	}
	t.Direction = d
	return nil
}

// borrowedAmount is the leveraged-but-unstaked portion of the position.
// A short borrows the full base amount regardless of leverage; a long at
// leverage L borrows the (L-1)/L share. Leverage 1 longs borrow nothing.
func borrowedAmount(d Direction, amount, leverage float64) float64 {
	if d == DirectionShort {
		return amount
	}
	if leverage <= 1 {
		return 0
	}
	return amount * (leverage - 1) / leverage
}

// RecalculateBorrowed derives the borrowed amount from the current
// direction, amount and leverage. Update does this automatically when the
// opening fill settles.
func (t *Trade) RecalculateBorrowed() {
	t.Borrowed = borrowedAmount(t.Direction, t.Amount, t.leverage())
}

// openingSide is the order side that opens a position of the given direction.
func openingSide(d Direction) OrderSide {
	if d == DirectionShort {
		return Sell
	}
	return Buy
}

// Update applies an order notification to the trade. It either records a
// pending order, settles the opening fill, or settles the closing fill and
// freezes the cached profit figures. The returned event describes the
// committed change (nil when nothing settled). Validation failures leave the
// trade untouched.
func (t *Trade) Update(f Fill, now time.Time) (*TradeEvent, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	if f.Status != OrderStatusClosed {
		id := f.OrderID
		t.OpenOrderID = &id
		return nil, nil
	}

	if t.Direction == DirectionUnknown {
		// Sell-to-open implies a short, buy-to-open a long.
		d := DirectionLong
		if f.Side == Sell {
			d = DirectionShort
		}
		if err := t.setDirection(d); err != nil {
			return nil, err
		}
	}

	if f.Side == openingSide(t.Direction) {
		if f.Leverage > 0 {
			t.Leverage = f.Leverage
		}
		t.OpenRate = f.Rate
		t.Amount = f.Amount
		if f.Fee > 0 {
			t.FeeOpen = f.Fee
		}
		t.RecalculateBorrowed()
		t.OpenOrderID = nil
		t.IsOpen = true
		return t.event(EventOpen, f), nil
	}

	// Opposite side of the opening direction: the exit fill.
	if t.CloseDate != nil {
		return nil, nil // already settled; never overwrite a close
	}
	if f.Fee > 0 {
		t.FeeClose = f.Fee
	}
	if err := t.Close(f.Rate, now); err != nil {
		return nil, err
	}
	t.OpenOrderID = nil
	ev := t.event(EventClose, f)
	if t.CloseProfit != nil {
		ev.Profit = *t.CloseProfit
		ev.ProfitPct = *t.CloseProfitPct
	}
	return ev, nil
}

func (t *Trade) event(typ EventType, f Fill) *TradeEvent {
	return &TradeEvent{
		Type:      typ,
		TradeID:   t.ID,
		Pair:      t.Pair,
		Label:     f.label(),
		Amount:    t.Amount,
		Rate:      f.Rate,
		OpenSince: t.OpenDate.UTC().Format(time.RFC3339),
	}
}

// Close settles the trade at the given rate: close_rate and close_date are
// set once, the profit figures are computed and frozen, and the trade is
// marked closed. A second call is a no-op; an existing close_date is never
// overwritten, since re-closing would corrupt historical profit reporting.
func (t *Trade) Close(rate float64, now time.Time) error {
	if t.CloseDate != nil {
		return nil
	}
	if rate <= 0 {
		return fmt.Errorf("%w: non-positive close rate %v", ErrInvalidOrder, rate)
	}
	t.CloseRate = rate

	profit, err := t.Profit(Valuation{Rate: rate, Now: now})
	if err != nil {
		return err
	}
	ratio, err := t.ProfitRatio(Valuation{Rate: rate, Now: now})
	if err != nil {
		return err
	}
	t.CloseProfit = &profit
	t.CloseProfitPct = &ratio

	closed := now
	t.CloseDate = &closed
	t.IsOpen = false
	return nil
}

// CalculateInterest accrues borrowing interest from open_date up to now (or
// up to close_date once the trade is closed) using the trade's stored rate.
// Unleveraged spot positions always accrue zero.
func (t *Trade) CalculateInterest(now time.Time) (float64, error) {
	return t.CalculateInterestWithRate(now, t.InterestRate)
}

// CalculateInterestWithRate recomputes the accrual with an overridden
// interest rate, e.g. for historical scenarios. A zero rate override falls
// back to the stored rate.
func (t *Trade) CalculateInterestWithRate(now time.Time, interestRate float64) (float64, error) {
	d, err := t.interest(now, interestRate)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

func (t *Trade) interest(now time.Time, interestRate float64) (decimal.Decimal, error) {
	rate := interestRate
	if rate == 0 {
		rate = t.InterestRate
	}
	until := now
	if t.CloseDate != nil {
		until = *t.CloseDate
	}
	hours := until.Sub(t.OpenDate).Hours()
	return accrueInterest(t.Borrowed, rate, hours, t.InterestMode)
}

// Valuation carries the optional overrides for the close-side calculations.
// Zero values fall back to the trade's stored fields (and Now to wall clock),
// matching the per-call override contract of the reporting callers.
type Valuation struct {
	Rate         float64 // close rate; 0 = stored close_rate
	Fee          float64 // fractional fee; 0 = stored fee_close
	InterestRate float64 // 0 = stored interest_rate
	Now          time.Time
}

func (v Valuation) at() time.Time {
	if v.Now.IsZero() {
		return time.Now().UTC()
	}
	return v.Now
}

// OpenTradeValue is the quote-currency value locked in by the opening fill.
// The open fee increases a long's cost and reduces a short's proceeds.
func (t *Trade) OpenTradeValue() float64 {
	return t.openTradeValue(t.FeeOpen).InexactFloat64()
}

// OpenTradeValueWithFee recomputes the open value with an overridden fee
// rate; 0 falls back to the stored open fee.
func (t *Trade) OpenTradeValueWithFee(fee float64) float64 {
	if fee == 0 {
		fee = t.FeeOpen
	}
	return t.openTradeValue(fee).InexactFloat64()
}

func (t *Trade) openTradeValue(fee float64) decimal.Decimal {
	open := dec(t.Amount).Mul(dec(t.OpenRate))
	fees := open.Mul(dec(fee))
	if t.IsShort() {
		return open.Sub(fees)
	}
	return open.Add(fees)
}

// CloseTradeValue is the quote-currency value of unwinding the position at
// the valuation rate, including the close fee and the interest accrued so
// far. Shorts repay the borrowed base plus interest when buying back; longs
// already own the base, so interest reduces the proceeds instead. Returns 0
// when no closing rate is known yet (reporting on an in-flight exit must not
// crash).
func (t *Trade) CloseTradeValue(v Valuation) (float64, error) {
	rate := v.Rate
	if rate == 0 {
		rate = t.CloseRate
	}
	if rate == 0 {
		return 0, nil
	}
	fee := v.Fee
	if fee == 0 {
		fee = t.FeeClose
	}
	interest, err := t.interest(v.at(), v.InterestRate)
	if err != nil {
		return 0, err
	}

	if t.IsShort() {
		amount := dec(t.Amount).Add(interest)
		value := amount.Mul(dec(rate))
		return value.Add(value.Mul(dec(fee))).InexactFloat64(), nil
	}
	value := dec(t.Amount).Mul(dec(rate))
	return value.Sub(value.Mul(dec(fee))).Sub(interest).InexactFloat64(), nil
}

// Profit is the absolute profit of the trade in quote currency, rounded to
// 8 digits. Shorts gain when the close value falls below the open value.
func (t *Trade) Profit(v Valuation) (float64, error) {
	open := t.openTradeValue(t.FeeOpen)
	cv, err := t.CloseTradeValue(v)
	if err != nil {
		return 0, err
	}
	closeValue := decimal.NewFromFloat(cv)
	if t.IsShort() {
		return round8d(open.Sub(closeValue)), nil
	}
	return round8d(closeValue.Sub(open)), nil
}

// ProfitRatio is the leverage-adjusted profit as a fraction of the stake,
// rounded to 8 digits. Returns 0 before any opening fill has been recorded.
func (t *Trade) ProfitRatio(v Valuation) (float64, error) {
	open := t.openTradeValue(t.FeeOpen)
	if open.IsZero() {
		return 0, nil
	}
	cv, err := t.CloseTradeValue(v)
	if err != nil {
		return 0, err
	}
	lev := decimal.NewFromFloat(t.leverage())
	rel := decimal.NewFromFloat(cv).Div(open)
	one := decimal.NewFromInt(1)
	if t.IsShort() {
		return round8d(one.Sub(rel).Mul(lev)), nil
	}
	return round8d(rel.Sub(one).Mul(lev)), nil
}

// StakeValue is the margin-equivalent open value, the percentage base for
// leveraged profit ratios.
func (t *Trade) StakeValue() float64 {
	return t.openTradeValue(t.FeeOpen).Div(decimal.NewFromFloat(t.leverage())).InexactFloat64()
}

// AdjustMinMaxRates records the price extremes seen since the position was
// opened. Invoked on every price tick.
func (t *Trade) AdjustMinMaxRates(currentRate float64) {
	if currentRate > t.MaxRate {
		t.MaxRate = currentRate
	}
	if t.MinRate == 0 || currentRate < t.MinRate {
		t.MinRate = currentRate
	}
}

// AdjustStopLoss places or trails the protective stop.
//
// With initial=true it sets the stop exactly once; later initial calls are
// no-ops. Trailing calls compute a candidate stop from the current rate and
// apply it only when it moves in the favorable-to-trade direction (down for
// shorts, up for longs). A set liquidation price caps every candidate.
func (t *Trade) AdjustStopLoss(currentRate, stoploss float64, initial bool) {
	if initial && t.StopLoss != 0 {
		return
	}
	frac := math.Abs(stoploss)

	var newLoss float64
	if t.IsShort() {
		newLoss = currentRate * (1 + frac)
		if t.LiquidationPrice != nil {
			newLoss = math.Min(*t.LiquidationPrice, newLoss)
		}
	} else {
		newLoss = currentRate * (1 - frac)
		if t.LiquidationPrice != nil {
			newLoss = math.Max(*t.LiquidationPrice, newLoss)
		}
	}

	if t.StopLoss == 0 {
		t.StopLoss = newLoss
		t.StopLossPct = frac
		t.InitialStopLoss = newLoss
		t.InitialStopLossPct = frac
		return
	}

	favorable := newLoss > t.StopLoss
	if t.IsShort() {
		favorable = newLoss < t.StopLoss
	}
	if favorable {
		t.StopLoss = newLoss
		t.StopLossPct = frac
	}
}

// SetLiquidationPrice stores the forced-exit boundary and immediately clamps
// an already-set stop that sits beyond it.
func (t *Trade) SetLiquidationPrice(price float64) {
	p := price
	t.LiquidationPrice = &p
	if t.StopLoss == 0 {
		return
	}
	if t.IsShort() {
		t.StopLoss = math.Min(t.StopLoss, p)
	} else {
		t.StopLoss = math.Max(t.StopLoss, p)
	}
}

// StopLossHit reports whether the given price has reached the stop.
func (t *Trade) StopLossHit(currentRate float64) bool {
	if t.StopLoss == 0 {
		return false
	}
	if t.IsShort() {
		return currentRate >= t.StopLoss
	}
	return currentRate <= t.StopLoss
}

// String renders the trade the way fulfillment logs report it.
func (t *Trade) String() string {
	return fmt.Sprintf("Trade(id=%d, pair=%s, amount=%.8f, open_rate=%.8f, open_since=%s)",
		t.ID, t.Pair, t.Amount, t.OpenRate, t.OpenDate.UTC().Format(time.RFC3339))
}
