package sector

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/pkg/logger"
	"github.com/wonny/tradecycle/pkg/redis"
)

type stubFetcher struct {
	returns map[string]float64 // 구간 수익률
	calls   int32
}

func (s *stubFetcher) FetchSnapshot(_ context.Context, symbol string) (*contracts.MarketSnapshot, error) {
	atomic.AddInt32(&s.calls, 1)
	ret, ok := s.returns[symbol]
	if !ok {
		return nil, contracts.ErrDataUnavailable
	}
	bars := make([]contracts.Bar, 21)
	for i := range bars {
		bars[i].Close = 100
	}
	bars[len(bars)-1].Close = 100 * (1 + ret)
	return &contracts.MarketSnapshot{Quote: contracts.Quote{Symbol: symbol, Price: bars[20].Close}, Bars: bars}, nil
}

func newWeighting(f SnapshotFetcher) *Weighting {
	cfg := DefaultConfig()
	cfg.Symbols = map[string]string{
		"AAPL": "Technology",
		"XOM":  "Energy",
		"JPM":  "Financials",
		"SPY":  "Broad",
	}
	cfg.ETFs = map[string]string{
		"Technology": "XLK",
		"Energy":     "XLE",
		"Financials": "XLF",
		"Broad":      "SPY",
	}
	return NewWeighting(cfg, f, redis.NewCache(redis.Disabled(), "test"), logger.NewNop())
}

func TestMultiplier(t *testing.T) {
	f := &stubFetcher{returns: map[string]float64{
		"SPY": 0.02,
		"XLK": 0.04,  // +2%p → 1.10
		"XLE": -0.10, // -12%p → clamp 0.8
	}}
	w := newWeighting(f)
	ctx := context.Background()

	tests := []struct {
		symbol string
		want   float64
	}{
		{"AAPL", 1.10},
		{"XOM", 0.8},
		{"JPM", 1.0}, // XLF 데이터 없음
		{"SPY", 1.0}, // 벤치마크 자체
		{"ZZZZ", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			m := w.Multiplier(ctx, tt.symbol)
			assert.InDelta(t, tt.want, m, 1e-9)
			assert.Greater(t, m, 0.0)
		})
	}
}

func TestMultiplier_ClampsHigh(t *testing.T) {
	w := newWeighting(&stubFetcher{returns: map[string]float64{"SPY": 0, "XLK": 0.5}})
	assert.Equal(t, 1.3, w.Multiplier(context.Background(), "AAPL"))
}

func TestTrailingReturn_UsesLocalCache(t *testing.T) {
	f := &stubFetcher{returns: map[string]float64{"SPY": 0.01, "XLK": 0.02}}
	w := newWeighting(f)

	w.Multiplier(context.Background(), "AAPL")
	w.Multiplier(context.Background(), "aapl")
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.calls))
}

func TestStrengths(t *testing.T) {
	w := newWeighting(&stubFetcher{returns: map[string]float64{"SPY": 0.0, "XLK": 0.02}})
	out := w.Strengths(context.Background())
	require.Len(t, out, 4)

	assert.Equal(t, "Broad", out[0].Sector)
	assert.Equal(t, "Technology", out[3].Sector)
	assert.True(t, out[3].Available)
	assert.InDelta(t, 0.02, out[3].RelativeReturn, 1e-9)
	assert.False(t, out[1].Available, "XLE has no data")
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.MinMultiplier = 1.1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxMultiplier = 0.9
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MinMultiplier = 0
	assert.Error(t, cfg.Validate())
}
