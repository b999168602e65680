package contracts

import "time"

// TradeRecord is an append-only journal entry created after a confirmed fill
// ⭐ SSOT: 성과 지표의 유일한 원천, 생성 후 변경 금지
type TradeRecord struct {
	ID         string    `json:"id"`
	CycleID    string    `json:"cycle_id"`
	Timestamp  time.Time `json:"timestamp"`
	Symbol     string    `json:"symbol"`
	Action     Action    `json:"action"`
	Quantity   int       `json:"quantity"`
	Price      float64   `json:"price"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
}
