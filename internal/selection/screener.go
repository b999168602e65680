package selection

import (
	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/pkg/logger"
)

// LiquidityConfig defines hard cut conditions; zero disables a bound
type LiquidityConfig struct {
	MinPrice  float64 `yaml:"min_price" json:"min_price"`
	MaxPrice  float64 `yaml:"max_price" json:"max_price"`
	MinVolume int64   `yaml:"min_volume" json:"min_volume"`
}

// Enabled reports whether any bound is set
func (c LiquidityConfig) Enabled() bool {
	return c.MinPrice > 0 || c.MaxPrice > 0 || c.MinVolume > 0
}

// Screener drops illiquid or out-of-range symbols before scoring
type Screener struct {
	config LiquidityConfig
	logger *logger.Logger
}

// NewScreener creates a new screener
func NewScreener(config LiquidityConfig, log *logger.Logger) *Screener {
	return &Screener{config: config, logger: log}
}

// Check returns the filter reason for a snapshot, or "" when it passes
func (s *Screener) Check(snap *contracts.MarketSnapshot) string {
	q := snap.Quote
	if s.config.MinPrice > 0 && q.Price < s.config.MinPrice {
		return "price_below_min"
	}
	if s.config.MaxPrice > 0 && q.Price > s.config.MaxPrice {
		return "price_above_max"
	}
	if s.config.MinVolume > 0 && lastVolume(snap) < s.config.MinVolume {
		return "volume_below_min"
	}
	return ""
}

// Screen keeps passing snapshots in input order and counts filter reasons
func (s *Screener) Screen(snaps []*contracts.MarketSnapshot) ([]*contracts.MarketSnapshot, map[string]int) {
	filtered := make(map[string]int)
	if !s.config.Enabled() {
		return snaps, filtered
	}

	passed := make([]*contracts.MarketSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		if reason := s.Check(snap); reason != "" {
			filtered[reason]++
			s.logger.WithFields(map[string]interface{}{
				"symbol": snap.Quote.Symbol,
				"reason": reason,
			}).Debug("Symbol screened out")
			continue
		}
		passed = append(passed, snap)
	}

	s.logger.WithFields(map[string]interface{}{
		"total_input":  len(snaps),
		"passed":       len(passed),
		"filtered_out": len(snaps) - len(passed),
		"filters":      filtered,
	}).Info("Screening completed")

	return passed, filtered
}

// lastVolume prefers the latest bar volume; quote volume covers bar-less tiers
func lastVolume(snap *contracts.MarketSnapshot) int64 {
	if n := len(snap.Bars); n > 0 && snap.Bars[n-1].Volume > 0 {
		return snap.Bars[n-1].Volume
	}
	return snap.Quote.Volume
}
