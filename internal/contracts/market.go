package contracts

import (
	"strings"
	"time"
)

// Bar is one OHLCV period of price history
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Quote is the normalized latest price of a symbol
// ⭐ SSOT: Source는 응답한 fallback tier 이름
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// MarketSnapshot is what a data tier returns: latest quote plus recent bars.
// Bars are ordered oldest first.
type MarketSnapshot struct {
	Quote Quote `json:"quote"`
	Bars  []Bar `json:"bars"`
}

// Closes returns the close series of the snapshot's bars
func (s *MarketSnapshot) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the volume series as float64 for indicator math
func (s *MarketSnapshot) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = float64(b.Volume)
	}
	return out
}

// Validate reports why a snapshot is malformed, or nil
func (s *MarketSnapshot) Validate() error {
	if s == nil {
		return ErrMalformedPayload
	}
	if s.Quote.Price <= 0 {
		return ErrMalformedPayload
	}
	if len(s.Bars) == 0 {
		return ErrMalformedPayload
	}
	return nil
}

// NormalizeSymbol upper-cases and trims a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
