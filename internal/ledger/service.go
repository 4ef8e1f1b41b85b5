package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marginledger/internal/analytics"
	"marginledger/internal/domain"
	"marginledger/internal/ports"
	"marginledger/internal/risk"
)

// Config holds the service-level trading parameters.
type Config struct {
	Exchange      string  // exchange name stamped on new trades
	StakeCurrency string  // quote currency reported in events
	FeeOpen       float64 // default fractional open fee
	FeeClose      float64 // default fractional close fee
	InterestRate  float64 // default fractional rate per interest period
	InterestMode  domain.InterestMode
	Stoploss      float64 // trailing stop fraction applied on price ticks
}

// Service is the accounting engine around the position store: it opens
// positions, applies fills, maintains trailing stops on price ticks and
// answers the aggregate queries.
//
// Mutation is single-writer per position: callers serialize ProcessFill and
// OnPriceTick for a given trade. Queries may run concurrently with each
// other against committed store state.
type Service struct {
	cfg      Config
	logger   ports.Logger
	store    ports.PositionStore
	notifier ports.Notifier
	riskMgr  *risk.Manager
	now      func() time.Time
}

// New creates the ledger service.
func New(cfg Config, logger ports.Logger, store ports.PositionStore, notifier ports.Notifier, riskMgr *risk.Manager) (*Service, error) {
	if logger == nil || store == nil || notifier == nil || riskMgr == nil {
		return nil, fmt.Errorf("missing required dependencies for ledger service")
	}
	if cfg.Stoploss <= 0 || cfg.Stoploss >= 1 {
		return nil, fmt.Errorf("configuration Stoploss must be between 0 and 1")
	}
	if cfg.InterestMode != "" && !cfg.InterestMode.Valid() {
		return nil, fmt.Errorf("unknown interest mode %q", cfg.InterestMode)
	}
	return &Service{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		notifier: notifier,
		riskMgr:  riskMgr,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// OpenParams describes a position to be created with an in-flight order.
// The direction stays unknown until the first fill arrives.
type OpenParams struct {
	Pair         string
	StakeAmount  float64
	Leverage     float64
	OpenOrderID  string
	FeeOpen      float64 // 0 = service default
	FeeClose     float64 // 0 = service default
	InterestRate float64 // 0 = service default
}

// OpenPosition creates a pending position after risk validation. The trade
// carries the pending order id until a fill settles it.
func (s *Service) OpenPosition(ctx context.Context, p OpenParams) (*domain.Trade, error) {
	if p.Pair == "" || p.OpenOrderID == "" {
		return nil, fmt.Errorf("%w: pair and open order id are required", ports.ErrInvalidRequest)
	}
	leverage := p.Leverage
	if leverage == 0 {
		leverage = 1.0
	}

	orderID := p.OpenOrderID
	trade := &domain.Trade{
		Pair:         p.Pair,
		Exchange:     s.cfg.Exchange,
		StakeAmount:  p.StakeAmount,
		Leverage:     leverage,
		FeeOpen:      orDefault(p.FeeOpen, s.cfg.FeeOpen),
		FeeClose:     orDefault(p.FeeClose, s.cfg.FeeClose),
		InterestRate: orDefault(p.InterestRate, s.cfg.InterestRate),
		InterestMode: s.cfg.InterestMode,
		OpenDate:     s.now(),
		OpenOrderID:  &orderID,
		IsOpen:       true,
	}

	open, err := s.store.GetOpenTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count open trades: %w", err)
	}
	stakes, err := s.store.TotalOpenTradesStakes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sum open stakes: %w", err)
	}
	if err := s.riskMgr.ValidateOpen(ctx, trade, len(open), stakes); err != nil {
		return nil, fmt.Errorf("position rejected by risk checks: %w", err)
	}

	if _, err := s.store.Create(ctx, trade); err != nil {
		return nil, fmt.Errorf("failed to persist new position: %w", err)
	}
	s.logger.Info(ctx, "Position opened (pending fill)", map[string]interface{}{
		"tradeID": trade.ID, "pair": trade.Pair, "stake": trade.StakeAmount, "leverage": trade.Leverage,
	})
	return trade, nil
}

// ProcessFill applies an order notification to a position and commits the
// result. Validation failures leave the stored position untouched. The
// committed change is forwarded to the notifier; notifier failures are
// logged and never roll back the commit.
func (s *Service) ProcessFill(ctx context.Context, tradeID int64, fill domain.Fill) (*domain.Trade, error) {
	trade, err := s.store.FindByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, fmt.Errorf("trade %d: %w", tradeID, ports.ErrNotFound)
	}

	event, err := trade.Update(fill, s.now())
	if err != nil {
		// The fill is dropped; the position was not mutated.
		s.logger.Warn(ctx, "Fill rejected", map[string]interface{}{
			"tradeID": tradeID, "side": string(fill.Side), "amount": fill.Amount, "rate": fill.Rate, "reason": err.Error(),
		})
		return nil, err
	}

	if err := s.store.Update(ctx, trade); err != nil {
		return nil, fmt.Errorf("failed to commit fill for trade %d: %w", tradeID, err)
	}

	if event != nil {
		s.logger.Info(ctx, fmt.Sprintf("%s has been fulfilled for %s.", event.Label, trade))
		event.StakeCurrency = s.cfg.StakeCurrency
		if err := s.notifier.Notify(ctx, *event); err != nil {
			s.logger.Warn(ctx, "Notifier delivery failed", map[string]interface{}{
				"tradeID": trade.ID, "eventType": string(event.Type), "reason": err.Error(),
			})
		}
	}
	return trade, nil
}

// OnPriceTick updates min/max rates and the trailing stop for every open
// trade of the pair, and returns the trades whose stop the price has
// reached. Acting on a hit stop (placing the exit order) is the caller's
// job.
func (s *Service) OnPriceTick(ctx context.Context, pair string, rate float64) ([]*domain.Trade, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: non-positive tick rate %v", ports.ErrInvalidRequest, rate)
	}
	open, err := s.store.GetOpenTrades(ctx)
	if err != nil {
		return nil, err
	}

	var stopped []*domain.Trade
	for _, trade := range open {
		if trade.Pair != pair || trade.Direction == domain.DirectionUnknown {
			continue
		}
		trade.AdjustMinMaxRates(rate)
		trade.AdjustStopLoss(rate, s.cfg.Stoploss, false)
		if err := s.store.Update(ctx, trade); err != nil {
			return nil, fmt.Errorf("failed to commit stop adjustment for trade %d: %w", trade.ID, err)
		}
		if trade.StopLossHit(rate) {
			s.logger.Info(ctx, "Stop-loss reached", map[string]interface{}{
				"tradeID": trade.ID, "pair": trade.Pair, "stopLoss": trade.StopLoss, "rate": rate,
			})
			stopped = append(stopped, trade)
		}
	}
	return stopped, nil
}

// ReinitializeStopLoss re-anchors the stop of every open trade that is still
// at its initial value to the given fraction of its open rate. Trades whose
// stop has already trailed away from the initial value keep the trailed stop.
func (s *Service) ReinitializeStopLoss(ctx context.Context, stoploss float64) error {
	open, err := s.store.GetOpenTrades(ctx)
	if err != nil {
		return err
	}
	for _, trade := range open {
		if trade.StopLoss != 0 && trade.StopLoss != trade.InitialStopLoss {
			continue
		}
		trade.StopLoss = 0
		trade.InitialStopLoss = 0
		trade.AdjustStopLoss(trade.OpenRate, stoploss, true)
		if err := s.store.Update(ctx, trade); err != nil {
			return fmt.Errorf("failed to commit stop reinitialization for trade %d: %w", trade.ID, err)
		}
		s.logger.Debug(ctx, "Stop-loss reinitialized", map[string]interface{}{
			"tradeID": trade.ID, "stopLoss": trade.StopLoss,
		})
	}
	return nil
}

// GetOpenTrades returns all open positions.
func (s *Service) GetOpenTrades(ctx context.Context) ([]*domain.Trade, error) {
	return s.store.GetOpenTrades(ctx)
}

// TotalOpenTradesStakes sums the stake committed to open positions.
func (s *Service) TotalOpenTradesStakes(ctx context.Context) (float64, error) {
	return s.store.TotalOpenTradesStakes(ctx)
}

// GetBestPair returns the best-performing pair over closed trades, or
// nil, nil when nothing has closed yet.
func (s *Service) GetBestPair(ctx context.Context) (*ports.PairPerformance, error) {
	return s.store.GetBestPair(ctx)
}

// PerformanceReport aggregates the closed-trade history.
func (s *Service) PerformanceReport(ctx context.Context) (*analytics.Report, error) {
	closed, err := s.store.GetClosedTrades(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.Analyze(closed), nil
}

// SyncOrder resolves an in-flight order through the exchange adapter and
// applies the result. Orders the exchange no longer knows are surfaced as
// ports.ErrOrderNotFound for the caller to decide on.
func (s *Service) SyncOrder(ctx context.Context, exchange ports.ExchangeClient, tradeID int64) (*domain.Trade, error) {
	trade, err := s.store.FindByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, fmt.Errorf("trade %d: %w", tradeID, ports.ErrNotFound)
	}
	if trade.OpenOrderID == nil {
		return trade, nil // nothing in flight
	}
	fill, err := exchange.GetOrder(ctx, trade.Pair, *trade.OpenOrderID)
	if err != nil {
		if errors.Is(err, ports.ErrOrderNotFound) {
			s.logger.Warn(ctx, "In-flight order unknown to exchange", map[string]interface{}{
				"tradeID": trade.ID, "orderID": *trade.OpenOrderID,
			})
		}
		return nil, err
	}
	return s.ProcessFill(ctx, tradeID, *fill)
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
