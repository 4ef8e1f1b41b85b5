package risk

import (
	"context"
	"fmt"

	"marginledger/internal/domain"
)

// Config holds the limits applied before a position may be opened.
type Config struct {
	MaxLeverage    float64 // highest leverage accepted, e.g. 5.0
	MaxStakeAmount float64 // largest stake committed to a single position
	MaxOpenTrades  int     // concurrent open position cap
	MaxTotalStake  float64 // cap on the sum of open stakes, 0 disables
}

// Manager validates new positions against the configured limits.
type Manager struct {
	cfg Config
}

// NewManager creates a risk manager instance.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// ValidateOpen checks whether a new trade may be opened given the currently
// committed open-trade count and stake total.
func (m *Manager) ValidateOpen(ctx context.Context, trade *domain.Trade, openTrades int, openStakes float64) error {
	if trade.StakeAmount <= 0 {
		return fmt.Errorf("stake amount must be positive, got %v", trade.StakeAmount)
	}
	if trade.Leverage < 1.0 {
		return fmt.Errorf("leverage %v is below 1.0", trade.Leverage)
	}
	if m.cfg.MaxLeverage > 0 && trade.Leverage > m.cfg.MaxLeverage {
		return fmt.Errorf("leverage %v exceeds maximum allowed %v", trade.Leverage, m.cfg.MaxLeverage)
	}
	if m.cfg.MaxStakeAmount > 0 && trade.StakeAmount > m.cfg.MaxStakeAmount {
		return fmt.Errorf("stake amount %v exceeds maximum allowed %v", trade.StakeAmount, m.cfg.MaxStakeAmount)
	}
	if m.cfg.MaxOpenTrades > 0 && openTrades >= m.cfg.MaxOpenTrades {
		return fmt.Errorf("number of open trades %d exceeds maximum allowed %d", openTrades, m.cfg.MaxOpenTrades)
	}
	if m.cfg.MaxTotalStake > 0 && openStakes+trade.StakeAmount > m.cfg.MaxTotalStake {
		return fmt.Errorf("total open stake %v would exceed maximum allowed %v",
			openStakes+trade.StakeAmount, m.cfg.MaxTotalStake)
	}
	if !trade.InterestMode.Valid() && trade.Leverage > 1.0 {
		return fmt.Errorf("leverage above 1.0 requires a configured interest mode, got %q", trade.InterestMode)
	}
	return nil
}
