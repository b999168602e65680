package contracts

// TechnicalScore is the SignalEvaluator output for one symbol.
// 하위 시그널은 모두 0~10
type TechnicalScore struct {
	Symbol        string  `json:"symbol"`
	Momentum      float64 `json:"momentum"`
	VolumeSpike   float64 `json:"volume_spike"`
	Breakout      float64 `json:"breakout"`
	Score         float64 `json:"score"`
	Confirmations int     `json:"confirmations"`
	Confirmed     bool    `json:"confirmed"`
}

// CandidateScore is one ranked entry produced by the stock selector
// ⭐ SSOT: CompositeScore가 유일한 정렬 키
type CandidateScore struct {
	Symbol              string         `json:"symbol"`
	Sector              string         `json:"sector"`
	TechnicalScore      float64        `json:"technical_score"`
	AdjustedTechnical   float64        `json:"adjusted_technical"`
	SentimentScore      float64        `json:"sentiment_score"`
	SentimentRequested  bool           `json:"sentiment_requested"`
	SectorMultiplier    float64        `json:"sector_multiplier"`
	TimeOfDayMultiplier float64        `json:"time_of_day_multiplier"`
	CompositeScore      float64        `json:"composite_score"`
	Price               float64        `json:"price"`
	Source              string         `json:"source"`
	Signals             TechnicalScore `json:"signals"`
	Reasoning           []string       `json:"reasoning"`
}

// Symbols extracts symbols in ranking order
func Symbols(candidates []CandidateScore) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Symbol
	}
	return out
}
