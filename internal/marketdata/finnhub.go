package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wonny/tradecycle/internal/contracts"
)

// FinnhubSource reads /quote and /stock/candle from Finnhub
type FinnhubSource struct {
	client *resty.Client
	apiKey string
	now    func() time.Time
}

// NewFinnhubSource creates the Finnhub tier
func NewFinnhubSource(baseURL, apiKey string) *FinnhubSource {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(15 * time.Second)

	return &FinnhubSource{client: client, apiKey: apiKey, now: time.Now}
}

// Name returns the tier name
func (s *FinnhubSource) Name() string { return "finnhub" }

type finnhubQuote struct {
	C  float64 `json:"c"`  // current
	PC float64 `json:"pc"` // previous close
	T  int64   `json:"t"`
}

type finnhubCandles struct {
	C []float64 `json:"c"`
	H []float64 `json:"h"`
	L []float64 `json:"l"`
	O []float64 `json:"o"`
	T []int64   `json:"t"`
	V []float64 `json:"v"`
	S string    `json:"s"`
}

// Fetch implements Source
func (s *FinnhubSource) Fetch(ctx context.Context, symbol string, bars int) (*contracts.MarketSnapshot, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("finnhub API key not configured")
	}

	var q finnhubQuote
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"symbol": symbol, "token": s.apiKey}).
		SetResult(&q).
		Get("/quote")
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("quote: API error %d", resp.StatusCode())
	}

	end := s.now()
	start := end.AddDate(0, 0, -bars*2)

	var c finnhubCandles
	resp, err = s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":     symbol,
			"resolution": "D",
			"from":       strconv.FormatInt(start.Unix(), 10),
			"to":         strconv.FormatInt(end.Unix(), 10),
			"token":      s.apiKey,
		}).
		SetResult(&c).
		Get("/stock/candle")
	if err != nil {
		return nil, fmt.Errorf("candles: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("candles: API error %d", resp.StatusCode())
	}
	if c.S != "ok" {
		return nil, fmt.Errorf("candles status %q: %w", c.S, contracts.ErrMalformedPayload)
	}

	n := len(c.C)
	if len(c.H) != n || len(c.L) != n || len(c.O) != n || len(c.T) != n || len(c.V) != n {
		return nil, fmt.Errorf("candles length mismatch: %w", contracts.ErrMalformedPayload)
	}

	snap := &contracts.MarketSnapshot{Bars: make([]contracts.Bar, n)}
	for i := 0; i < n; i++ {
		snap.Bars[i] = contracts.Bar{
			Time:   time.Unix(c.T[i], 0),
			Open:   c.O[i],
			High:   c.H[i],
			Low:    c.L[i],
			Close:  c.C[i],
			Volume: int64(c.V[i]),
		}
	}

	snap.Quote = contracts.Quote{Symbol: symbol, Price: q.C, Timestamp: time.Unix(q.T, 0)}
	if n > 0 {
		snap.Quote.Volume = snap.Bars[n-1].Volume
	}
	return snap, nil
}
