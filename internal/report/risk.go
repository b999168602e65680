package report

import (
	"math"
	"sort"
)

// tailConfidence is the confidence level for closed-trade VaR
const tailConfidence = 0.95

// TailRisk is the historical VaR of closed-trade returns
// ⭐ SSOT: VaR/CVaR는 손실을 양수로 표현
// - VaR=0.05 → 95% 신뢰수준에서 청산 1건당 최대 5% 손실
// - CVaR=0.07 → 5% tail 평균 7% 손실
type TailRisk struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
	Samples    int     `json:"samples"`
}

// historicalTailRisk computes VaR and CVaR by historical simulation over
// per-close returns (pl / cost). Gains in the tail report zero loss.
func historicalTailRisk(returns []float64, confidence float64) TailRisk {
	tr := TailRisk{Confidence: confidence, Samples: len(returns)}
	if len(returns) == 0 {
		return tr
	}

	// 오름차순: 손실이 앞에
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	// 부동소수 오차로 인덱스가 하나 밀리지 않도록 epsilon 보정
	idx := int(math.Floor((1-confidence)*float64(len(sorted)) + 1e-9))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	if sorted[idx] < 0 {
		tr.VaR = -sorted[idx]
	}

	var sum float64
	for _, r := range sorted[:idx+1] {
		sum += r
	}
	if avg := sum / float64(idx+1); avg < 0 {
		tr.CVaR = -avg
	}
	return tr
}
