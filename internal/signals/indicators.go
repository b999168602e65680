package signals

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/wonny/tradecycle/internal/contracts"
)

// Indicators is the indicator context handed to decision advisors
type Indicators struct {
	Price          float64 `json:"price"`
	MA20           float64 `json:"ma_20"`
	MA50           float64 `json:"ma_50"`
	RSI            float64 `json:"rsi"`
	PriceChangePct float64 `json:"price_change_pct"` // 전일 대비
	Momentum5Pct   float64 `json:"momentum_5_pct"`
	Volatility     float64 `json:"volatility"` // 일간 수익률 표준편차
	Volume         int64   `json:"volume"`
}

// ComputeIndicators derives moving averages, RSI and volatility from a snapshot.
// Short histories fall back to neutral values (MA = price, RSI = 50).
func ComputeIndicators(snap *contracts.MarketSnapshot) Indicators {
	ind := Indicators{
		Price:  snap.Quote.Price,
		Volume: snap.Quote.Volume,
		MA20:   snap.Quote.Price,
		MA50:   snap.Quote.Price,
		RSI:    50,
	}

	closes := snap.Closes()
	n := len(closes)
	if n == 0 {
		return ind
	}

	if n >= 20 {
		ind.MA20 = talib.Sma(closes, 20)[n-1]
	}
	if n >= 50 {
		ind.MA50 = talib.Sma(closes, 50)[n-1]
	}
	if n > 14 {
		ind.RSI = talib.Rsi(closes, 14)[n-1]
	}
	if n >= 2 && closes[n-2] > 0 {
		ind.PriceChangePct = (ind.Price - closes[n-2]) / closes[n-2] * 100
	}
	if n > 5 {
		ind.Momentum5Pct = talib.Roc(closes, 5)[n-1]
	}

	if n >= 3 {
		returns := make([]float64, 0, n-1)
		for i := 1; i < n; i++ {
			if closes[i-1] > 0 {
				returns = append(returns, closes[i]/closes[i-1]-1)
			}
		}
		if len(returns) >= 2 {
			ind.Volatility = talib.StdDev(returns, len(returns), 1.0)[len(returns)-1]
		}
	}

	if math.IsNaN(ind.RSI) {
		ind.RSI = 50
	}
	return ind
}
