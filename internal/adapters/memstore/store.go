package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"marginledger/internal/domain"
	"marginledger/internal/ports"
)

// Store implements ports.PositionStore with a volatile in-process collection.
// It backs dry-run and backtesting modes: same read/write contract as the
// durable store, no cross-process durability.
//
// Trades are copied on the way in and out, so a commit is atomic from the
// point of view of concurrent readers.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	trades map[int64]*domain.Trade
}

// NewStore creates an empty in-memory position store.
func NewStore() *Store {
	return &Store{
		nextID: 1,
		trades: make(map[int64]*domain.Trade),
	}
}

// Create saves a new trade and returns its assigned ID.
func (s *Store) Create(ctx context.Context, trade *domain.Trade) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	trade.ID = id
	s.trades[id] = snapshot(trade)
	return id, nil
}

// Update commits all fields of an existing trade atomically.
func (s *Store) Update(ctx context.Context, trade *domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trades[trade.ID]; !ok {
		return fmt.Errorf("trade ID %d not found for update: %w", trade.ID, ports.ErrNotFound)
	}
	s.trades[trade.ID] = snapshot(trade)
	return nil
}

// FindByID retrieves a trade by its unique ID. Returns nil, nil if not found.
func (s *Store) FindByID(ctx context.Context, id int64) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trade, ok := s.trades[id]
	if !ok {
		return nil, nil
	}
	return snapshot(trade), nil
}

// GetOpenTrades retrieves all trades with is_open == true.
func (s *Store) GetOpenTrades(ctx context.Context) ([]*domain.Trade, error) {
	return s.filter(func(t *domain.Trade) bool { return t.IsOpen }), nil
}

// GetClosedTrades retrieves all settled trades, newest first.
func (s *Store) GetClosedTrades(ctx context.Context) ([]*domain.Trade, error) {
	trades := s.filter(func(t *domain.Trade) bool { return !t.IsOpen })
	sort.Slice(trades, func(i, j int) bool {
		ti, tj := trades[i].CloseDate, trades[j].CloseDate
		if ti == nil || tj == nil {
			return tj == nil
		}
		return ti.After(*tj)
	})
	return trades, nil
}

// TotalOpenTradesStakes sums stake_amount over open trades.
func (s *Store) TotalOpenTradesStakes(ctx context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	for _, t := range s.trades {
		if t.IsOpen {
			total += t.StakeAmount
		}
	}
	return total, nil
}

// GetBestPair returns the pair with the highest average close profit ratio
// over closed trades, or nil, nil when nothing has closed yet.
func (s *Store) GetBestPair(ctx context.Context) (*ports.PairPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, t := range s.trades {
		if t.IsOpen || t.CloseProfitPct == nil {
			continue
		}
		sums[t.Pair] += *t.CloseProfitPct
		counts[t.Pair]++
	}
	if len(sums) == 0 {
		return nil, nil
	}

	var best *ports.PairPerformance
	for pair, sum := range sums {
		avg := sum / float64(counts[pair])
		if best == nil || avg > best.ProfitPct {
			best = &ports.PairPerformance{Pair: pair, ProfitPct: avg}
		}
	}
	return best, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) filter(keep func(*domain.Trade) bool) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Trade, 0)
	for _, t := range s.trades {
		if keep(t) {
			out = append(out, snapshot(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// snapshot deep-copies a trade so callers never share pointers with the
// stored committed state.
func snapshot(t *domain.Trade) *domain.Trade {
	cp := *t
	if t.CloseDate != nil {
		v := *t.CloseDate
		cp.CloseDate = &v
	}
	if t.OpenOrderID != nil {
		v := *t.OpenOrderID
		cp.OpenOrderID = &v
	}
	if t.LiquidationPrice != nil {
		v := *t.LiquidationPrice
		cp.LiquidationPrice = &v
	}
	if t.CloseProfit != nil {
		v := *t.CloseProfit
		cp.CloseProfit = &v
	}
	if t.CloseProfitPct != nil {
		v := *t.CloseProfitPct
		cp.CloseProfitPct = &v
	}
	return &cp
}
