package marketdata

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"

	"github.com/wonny/tradecycle/internal/contracts"
)

// YahooSource reads quotes and daily history through finance-go.
// The SDK is not context aware; the provider enforces the tier deadline.
type YahooSource struct {
	getQuote func(symbol string) (*finance.Quote, error)
	getChart func(params *chart.Params) *chart.Iter
	now      func() time.Time
}

// NewYahooSource creates the Yahoo Finance tier
func NewYahooSource() *YahooSource {
	return &YahooSource{getQuote: quote.Get, getChart: chart.Get, now: time.Now}
}

// Name returns the tier name
func (s *YahooSource) Name() string { return "yahoo" }

// Fetch implements Source
func (s *YahooSource) Fetch(ctx context.Context, symbol string, bars int) (*contracts.MarketSnapshot, error) {
	q, err := s.getQuote(symbol)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}
	if q == nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, contracts.ErrMalformedPayload)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	end := s.now()
	start := end.AddDate(0, 0, -bars*2)
	iter := s.getChart(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	snap := &contracts.MarketSnapshot{}
	for iter.Next() {
		b := iter.Bar()
		snap.Bars = append(snap.Bars, contracts.Bar{
			Time:   time.Unix(int64(b.Timestamp), 0),
			Open:   b.Open.InexactFloat64(),
			High:   b.High.InexactFloat64(),
			Low:    b.Low.InexactFloat64(),
			Close:  b.Close.InexactFloat64(),
			Volume: int64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("chart %s: %w", symbol, err)
	}

	ts := end
	if q.RegularMarketTime > 0 {
		ts = time.Unix(int64(q.RegularMarketTime), 0)
	}
	snap.Quote = contracts.Quote{
		Symbol:    symbol,
		Price:     q.RegularMarketPrice,
		Volume:    int64(q.RegularMarketVolume),
		Timestamp: ts,
	}
	return snap, nil
}
