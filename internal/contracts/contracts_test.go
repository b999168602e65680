package contracts

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketSnapshot_Validate(t *testing.T) {
	bars := []Bar{{Time: time.Now(), Close: 10, Volume: 100}}

	tests := []struct {
		name    string
		snap    *MarketSnapshot
		wantErr bool
	}{
		{"nil", nil, true},
		{"zero price", &MarketSnapshot{Quote: Quote{Price: 0}, Bars: bars}, true},
		{"no bars", &MarketSnapshot{Quote: Quote{Price: 10}}, true},
		{"valid", &MarketSnapshot{Quote: Quote{Price: 10}, Bars: bars}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snap.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedPayload)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" buy ")
	require.NoError(t, err)
	assert.Equal(t, ActionBuy, a)

	_, err = ParseAction("short")
	assert.Error(t, err)

	side, ok := SideFor(ActionSell)
	assert.True(t, ok)
	assert.Equal(t, OrderSideSell, side)

	_, ok = SideFor(ActionHold)
	assert.False(t, ok)
}

func TestRiskParams(t *testing.T) {
	r := RiskParams{StopLossPct: 5, TakeProfitPct: 10}

	assert.InDelta(t, 95.0, r.StopLoss(100), 1e-9)
	assert.InDelta(t, 110.0, r.TakeProfit(100), 1e-9)

	p := Position{Quantity: 4, EntryPrice: 50}
	assert.InDelta(t, 20.0, p.UnrealizedPL(55), 1e-9)
	assert.InDelta(t, 10.0, p.ReturnPct(55), 1e-9)
}

func TestRiskParams_MaxRiskShares(t *testing.T) {
	tests := []struct {
		name   string
		risk   RiskParams
		price  float64
		shares int
		ok     bool
	}{
		{"2% of 10k with 5% stop", RiskParams{MaxPositionSize: 10_000, RiskPercentage: 2, StopLossPct: 5}, 100, 40, true},
		{"tight budget", RiskParams{MaxPositionSize: 10_000, RiskPercentage: 0.1, StopLossPct: 5}, 100, 2, true},
		{"budget below one share", RiskParams{MaxPositionSize: 1_000, RiskPercentage: 0.1, StopLossPct: 5}, 100, 0, true},
		{"no risk percentage", RiskParams{MaxPositionSize: 10_000, StopLossPct: 5}, 100, 0, false},
		{"no stop loss", RiskParams{MaxPositionSize: 10_000, RiskPercentage: 2}, 100, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, ok := tt.risk.MaxRiskShares(tt.price)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.shares, shares)
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	symErr := &SymbolError{Symbol: "AAPL", Stage: PhaseFetching, Err: ErrDataUnavailable}
	wrapped := fmt.Errorf("cycle: %w", symErr)

	assert.True(t, errors.Is(wrapped, ErrDataUnavailable))
	assert.Contains(t, symErr.Error(), "AAPL [FETCHING]")

	fault := &CycleFault{CycleID: "c1", Phase: PhaseSelecting, Err: errors.New("boom")}
	assert.True(t, IsCycleFault(fmt.Errorf("wrap: %w", fault)))
	assert.False(t, IsCycleFault(symErr))
}
