package strategyconfig

import (
	"github.com/wonny/tradecycle/internal/sector"
	"github.com/wonny/tradecycle/internal/selection"
	"github.com/wonny/tradecycle/internal/signals"
)

// Symbols returns the universe tickers in file order
func (c *Config) Symbols() []string {
	out := make([]string, len(c.Universe))
	for i, s := range c.Universe {
		out[i] = s.Symbol
	}
	return out
}

// SignalConfig maps the signals section onto evaluator parameters
func (c *Config) SignalConfig() signals.Config {
	s := c.Signals
	minConf := signals.DefaultConfig().MinConfirmations
	if s.MinConfirmations != nil {
		minConf = *s.MinConfirmations
	}
	return signals.Config{
		Window:           s.Window,
		MomentumPeriod:   s.MomentumPeriod,
		BaselinePeriod:   s.BaselinePeriod,
		VolumePeriod:     s.VolumePeriod,
		BreakoutPeriod:   s.BreakoutPeriod,
		MomentumScale:    s.MomentumScale,
		VolumeSaturation: s.VolumeSaturation,
		Threshold:        s.Threshold,
		MinConfirmations: minConf,
		Weights: signals.Weights{
			Momentum:    s.Weights.Momentum,
			VolumeSpike: s.Weights.VolumeSpike,
			Breakout:    s.Weights.Breakout,
		},
	}
}

// SectorConfig maps the sector section; symbol → sector comes from the universe
func (c *Config) SectorConfig() sector.Config {
	s := c.Sector
	cfg := sector.Config{
		Benchmark:     s.Benchmark,
		Window:        s.Window,
		Sensitivity:   s.Sensitivity,
		MinMultiplier: s.MinMultiplier,
		MaxMultiplier: s.MaxMultiplier,
		CacheTTL:      s.CacheTTL,
		ETFs:          s.ETFs,
		Symbols:       make(map[string]string, len(c.Universe)),
	}
	if len(cfg.ETFs) == 0 {
		cfg.ETFs = sector.DefaultETFs
	}
	for _, st := range c.Universe {
		if st.Sector != "" {
			cfg.Symbols[st.Symbol] = st.Sector
		}
	}
	return cfg
}

// Windows returns configured time-of-day windows, or the defaults when none are set
func (c *Config) Windows() []selection.Window {
	if len(c.TimeOfDay.Windows) == 0 {
		return selection.DefaultWindows()
	}
	out := make([]selection.Window, len(c.TimeOfDay.Windows))
	for i, w := range c.TimeOfDay.Windows {
		out[i] = selection.Window{Name: w.Name, Start: w.Start, End: w.End, Factor: w.Factor}
	}
	return out
}

// Schedule builds the time-of-day schedule in the strategy time zone
func (c *Config) Schedule() (*selection.Schedule, error) {
	return selection.NewSchedule(c.Meta.Timezone, c.Windows())
}

// SelectionConfig maps ranking and screening onto selector parameters
func (c *Config) SelectionConfig() selection.Config {
	r := c.Ranking
	return selection.Config{
		TopK:             r.TopK,
		SentimentWorkers: r.SentimentWorkers,
		SentimentTimeout: r.SentimentTimeout,
		Weights: selection.WeightConfig{
			Technical: r.Weights.Technical,
			Sentiment: r.Weights.Sentiment,
		},
		Liquidity: selection.LiquidityConfig{
			MinPrice:  c.Screening.MinPrice,
			MaxPrice:  c.Screening.MaxPrice,
			MinVolume: c.Screening.MinVolume,
		},
	}
}
