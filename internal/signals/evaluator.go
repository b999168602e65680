package signals

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/pkg/logger"
)

// Weights combine the three sub-signals; they must sum to 1.0
type Weights struct {
	Momentum    float64 `yaml:"momentum" json:"momentum"`
	VolumeSpike float64 `yaml:"volume_spike" json:"volume_spike"`
	Breakout    float64 `yaml:"breakout" json:"breakout"`
}

// Sum returns the total weight
func (w Weights) Sum() float64 {
	return w.Momentum + w.VolumeSpike + w.Breakout
}

// Config holds evaluator parameters
type Config struct {
	Window           int     // 최근 N개 봉만 사용
	MomentumPeriod   int     // 최근 변화율 기간
	BaselinePeriod   int     // 기준 변화율 기간
	VolumePeriod     int     // 평균 거래량 기간
	BreakoutPeriod   int     // 고가/저가 밴드 기간
	MomentumScale    float64 // tanh 정규화 스케일 (%p)
	VolumeSaturation float64 // 이 배율에서 10점
	Threshold        float64 // 하위 시그널 통과 기준
	MinConfirmations int
	Weights          Weights
}

// DefaultConfig returns the evaluator defaults
func DefaultConfig() Config {
	return Config{
		Window:           50,
		MomentumPeriod:   5,
		BaselinePeriod:   20,
		VolumePeriod:     20,
		BreakoutPeriod:   20,
		MomentumScale:    5.0,
		VolumeSaturation: 3.0,
		Threshold:        6.0,
		MinConfirmations: 2,
		Weights:          Weights{Momentum: 0.4, VolumeSpike: 0.3, Breakout: 0.3},
	}
}

// Validate checks the evaluator configuration
func (c Config) Validate() error {
	if math.Abs(c.Weights.Sum()-1.0) > 0.001 {
		return fmt.Errorf("signal weights must sum to 1.0, got %.3f", c.Weights.Sum())
	}
	if c.Weights.Momentum < 0 || c.Weights.VolumeSpike < 0 || c.Weights.Breakout < 0 {
		return fmt.Errorf("signal weights must not be negative")
	}
	if c.MomentumPeriod <= 0 || c.BaselinePeriod <= c.MomentumPeriod {
		return fmt.Errorf("baseline period (%d) must exceed momentum period (%d)", c.BaselinePeriod, c.MomentumPeriod)
	}
	if c.VolumePeriod <= 0 || c.BreakoutPeriod <= 0 {
		return fmt.Errorf("volume and breakout periods must be positive")
	}
	if c.MinConfirmations < 0 || c.MinConfirmations > 3 {
		return fmt.Errorf("min confirmations must be within [0,3], got %d", c.MinConfirmations)
	}
	if c.Threshold < 0 || c.Threshold > 10 {
		return fmt.Errorf("signal threshold must be within [0,10], got %.2f", c.Threshold)
	}
	if c.MomentumScale <= 0 || c.VolumeSaturation <= 1 {
		return fmt.Errorf("momentum scale must be positive and volume saturation above 1")
	}
	if c.Window < c.minBars() {
		return fmt.Errorf("window %d shorter than required %d bars", c.Window, c.minBars())
	}
	return nil
}

func (c Config) minBars() int {
	n := c.BaselinePeriod
	if c.VolumePeriod > n {
		n = c.VolumePeriod
	}
	if c.BreakoutPeriod > n {
		n = c.BreakoutPeriod
	}
	return n + 1
}

// Evaluator scores momentum, volume spike and breakout for one symbol
// ⭐ SSOT: 기술적 점수 계산은 여기서만
type Evaluator struct {
	cfg    Config
	logger *logger.Logger
}

// NewEvaluator creates an evaluator
func NewEvaluator(cfg Config, log *logger.Logger) *Evaluator {
	return &Evaluator{cfg: cfg, logger: log.WithComponent("signals")}
}

// Config returns the evaluator configuration
func (e *Evaluator) Config() Config {
	return e.cfg
}

// Evaluate computes the technical score from bars ordered oldest first
func (e *Evaluator) Evaluate(symbol string, bars []contracts.Bar) (contracts.TechnicalScore, error) {
	ts := contracts.TechnicalScore{Symbol: symbol}

	if len(bars) > e.cfg.Window {
		bars = bars[len(bars)-e.cfg.Window:]
	}
	if len(bars) < e.cfg.minBars() {
		return ts, fmt.Errorf("%s: have %d bars, need %d: %w", symbol, len(bars), e.cfg.minBars(), contracts.ErrInsufficientBars)
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i], highs[i], lows[i], volumes[i] = b.Close, b.High, b.Low, float64(b.Volume)
	}

	ts.Momentum = e.momentum(closes)
	ts.VolumeSpike = e.volumeSpike(volumes)
	ts.Breakout = e.breakout(closes, highs, lows)

	w := e.cfg.Weights
	ts.Score = clamp(w.Momentum*ts.Momentum+w.VolumeSpike*ts.VolumeSpike+w.Breakout*ts.Breakout, 0, 10)

	for _, s := range []float64{ts.Momentum, ts.VolumeSpike, ts.Breakout} {
		if s >= e.cfg.Threshold {
			ts.Confirmations++
		}
	}
	ts.Confirmed = ts.Confirmations >= e.cfg.MinConfirmations

	e.logger.WithFields(map[string]interface{}{
		"symbol":        symbol,
		"momentum":      ts.Momentum,
		"volume_spike":  ts.VolumeSpike,
		"breakout":      ts.Breakout,
		"score":         ts.Score,
		"confirmations": ts.Confirmations,
	}).Debug("Evaluated technical signals")

	return ts, nil
}

// momentum compares the recent rate of change with the baseline rate scaled to the same horizon.
// 5 = 기준과 동일, 10에 가까울수록 가속
func (e *Evaluator) momentum(closes []float64) float64 {
	last := len(closes) - 1
	recent := talib.Roc(closes, e.cfg.MomentumPeriod)[last]
	baseline := talib.Roc(closes, e.cfg.BaselinePeriod)[last]

	scaled := baseline * float64(e.cfg.MomentumPeriod) / float64(e.cfg.BaselinePeriod)
	return clamp(5+5*math.Tanh((recent-scaled)/e.cfg.MomentumScale), 0, 10)
}

// volumeSpike maps current volume over the trailing average (excluding today) to [0,10]
func (e *Evaluator) volumeSpike(volumes []float64) float64 {
	last := len(volumes) - 1
	avg := talib.Sma(volumes, e.cfg.VolumePeriod)[last-1]
	if avg <= 0 {
		return 0
	}

	ratio := volumes[last] / avg
	if ratio <= 1 {
		return clamp(5*ratio, 0, 5)
	}
	return clamp(5+5*(ratio-1)/(e.cfg.VolumeSaturation-1), 5, 10)
}

// breakout positions the last close in the prior high/low band; above the band scores 10
func (e *Evaluator) breakout(closes, highs, lows []float64) float64 {
	last := len(closes) - 1
	bandHigh := talib.Max(highs, e.cfg.BreakoutPeriod)[last-1]
	bandLow := talib.Min(lows, e.cfg.BreakoutPeriod)[last-1]
	price := closes[last]

	switch {
	case price > bandHigh:
		return 10
	case price <= bandLow:
		return 0
	case bandHigh <= bandLow:
		return 5
	}
	return 9 * (price - bandLow) / (bandHigh - bandLow)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
