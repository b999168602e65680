package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/pkg/httputil"
)

// AlpacaSource reads daily bars and the latest trade from the Alpaca data API
type AlpacaSource struct {
	client  *httputil.Client
	dataURL string
	feed    string
	now     func() time.Time
}

// NewAlpacaSource creates the Alpaca tier. client must carry the APCA key headers.
func NewAlpacaSource(client *httputil.Client, dataURL, feed string) *AlpacaSource {
	return &AlpacaSource{client: client, dataURL: dataURL, feed: feed, now: time.Now}
}

// Name returns the tier name
func (s *AlpacaSource) Name() string { return "alpaca" }

type alpacaBar struct {
	T time.Time `json:"t"`
	O float64   `json:"o"`
	H float64   `json:"h"`
	L float64   `json:"l"`
	C float64   `json:"c"`
	V int64     `json:"v"`
}

type alpacaBarsResponse struct {
	Bars []alpacaBar `json:"bars"`
}

type alpacaTradeResponse struct {
	Trade struct {
		T time.Time `json:"t"`
		P float64   `json:"p"`
	} `json:"trade"`
}

type alpacaQuoteResponse struct {
	Quote struct {
		T  time.Time `json:"t"`
		AP float64   `json:"ap"`
		BP float64   `json:"bp"`
	} `json:"quote"`
}

// Fetch implements Source
func (s *AlpacaSource) Fetch(ctx context.Context, symbol string, bars int) (*contracts.MarketSnapshot, error) {
	// 휴장일을 감안해 달력일 기준으로 넉넉히 조회
	start := s.now().AddDate(0, 0, -bars*2)

	q := url.Values{}
	q.Set("timeframe", "1Day")
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("limit", strconv.Itoa(bars))
	q.Set("adjustment", "split")
	if s.feed != "" {
		q.Set("feed", s.feed)
	}

	var barsResp alpacaBarsResponse
	barsURL := fmt.Sprintf("%s/v2/stocks/%s/bars?%s", s.dataURL, url.PathEscape(symbol), q.Encode())
	if err := s.client.GetJSON(ctx, barsURL, &barsResp); err != nil {
		return nil, fmt.Errorf("bars: %w", err)
	}

	snap := &contracts.MarketSnapshot{Bars: make([]contracts.Bar, 0, len(barsResp.Bars))}
	for _, b := range barsResp.Bars {
		snap.Bars = append(snap.Bars, contracts.Bar{Time: b.T, Open: b.O, High: b.H, Low: b.L, Close: b.C, Volume: b.V})
	}

	price, ts, err := s.latestPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	snap.Quote = contracts.Quote{Symbol: symbol, Price: price, Timestamp: ts}
	if n := len(snap.Bars); n > 0 {
		snap.Quote.Volume = snap.Bars[n-1].Volume
	}
	return snap, nil
}

// latestPrice prefers the last trade and falls back to the bid/ask midpoint
func (s *AlpacaSource) latestPrice(ctx context.Context, symbol string) (float64, time.Time, error) {
	feed := ""
	if s.feed != "" {
		feed = "?feed=" + url.QueryEscape(s.feed)
	}

	var trade alpacaTradeResponse
	tradeURL := fmt.Sprintf("%s/v2/stocks/%s/trades/latest%s", s.dataURL, url.PathEscape(symbol), feed)
	if err := s.client.GetJSON(ctx, tradeURL, &trade); err == nil && trade.Trade.P > 0 {
		return trade.Trade.P, trade.Trade.T, nil
	}

	var quote alpacaQuoteResponse
	quoteURL := fmt.Sprintf("%s/v2/stocks/%s/quotes/latest%s", s.dataURL, url.PathEscape(symbol), feed)
	if err := s.client.GetJSON(ctx, quoteURL, &quote); err != nil {
		return 0, time.Time{}, fmt.Errorf("latest quote: %w", err)
	}

	bid, ask := quote.Quote.BP, quote.Quote.AP
	switch {
	case bid > 0 && ask > 0:
		return (bid + ask) / 2, quote.Quote.T, nil
	case bid > 0:
		return bid, quote.Quote.T, nil
	case ask > 0:
		return ask, quote.Quote.T, nil
	}
	return 0, time.Time{}, fmt.Errorf("latest quote: %w", contracts.ErrMalformedPayload)
}
