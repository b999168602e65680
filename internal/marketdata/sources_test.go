package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradecycle/pkg/httputil"
	"github.com/wonny/tradecycle/pkg/logger"
)

func TestAlpacaSource_Fetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/stocks/AAPL/bars", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1Day", r.URL.Query().Get("timeframe"))
		assert.Equal(t, "iex", r.URL.Query().Get("feed"))
		w.Write([]byte(`{"bars":[
			{"t":"2026-10-13T04:00:00Z","o":180,"h":185,"l":179,"c":184,"v":1000000},
			{"t":"2026-10-14T04:00:00Z","o":184,"h":190,"l":183,"c":189,"v":2500000}
		],"symbol":"AAPL"}`))
	})
	mux.HandleFunc("/v2/stocks/AAPL/trades/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"AAPL","trade":{"t":"2026-10-15T14:30:00Z","p":189.42}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	src := NewAlpacaSource(httputil.New(logger.NewNop()).DisableRetry(), server.URL, "iex")

	snap, err := src.Fetch(context.Background(), "AAPL", 50)
	require.NoError(t, err)

	require.Len(t, snap.Bars, 2)
	assert.Equal(t, 189.0, snap.Bars[1].Close)
	assert.Equal(t, 189.42, snap.Quote.Price)
	assert.Equal(t, int64(2500000), snap.Quote.Volume)
}

func TestAlpacaSource_MidpointFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/stocks/MSFT/bars", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bars":[{"t":"2026-10-14T04:00:00Z","o":400,"h":405,"l":398,"c":402,"v":900000}]}`))
	})
	mux.HandleFunc("/v2/stocks/MSFT/trades/latest", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/v2/stocks/MSFT/quotes/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quote":{"t":"2026-10-15T14:30:00Z","ap":402.5,"bp":401.5}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	src := NewAlpacaSource(httputil.New(logger.NewNop()).DisableRetry(), server.URL, "")

	snap, err := src.Fetch(context.Background(), "MSFT", 50)
	require.NoError(t, err)
	assert.Equal(t, 402.0, snap.Quote.Price)
}

func TestFinnhubSource_Fetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"c":251.3,"pc":248.0,"t":1760536800}`))
	})
	mux.HandleFunc("/stock/candle", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "D", r.URL.Query().Get("resolution"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"s":"ok","c":[248,251],"h":[250,252],"l":[245,247],"o":[246,249],"t":[1760400000,1760486400],"v":[3000000,3500000]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	src := NewFinnhubSource(server.URL, "secret")

	snap, err := src.Fetch(context.Background(), "TSLA", 50)
	require.NoError(t, err)
	require.Len(t, snap.Bars, 2)
	assert.Equal(t, 251.3, snap.Quote.Price)
	assert.Equal(t, int64(3500000), snap.Quote.Volume)
}

func TestFinnhubSource_NoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/quote" {
			w.Write([]byte(`{"c":10,"t":1760536800}`))
			return
		}
		w.Write([]byte(`{"s":"no_data"}`))
	}))
	defer server.Close()

	_, err := NewFinnhubSource(server.URL, "secret").Fetch(context.Background(), "ZZZZ", 50)
	assert.Error(t, err)

	_, err = NewFinnhubSource(server.URL, "").Fetch(context.Background(), "AAPL", 50)
	assert.Error(t, err, "missing key is a tier failure")
}

func TestYahooSource_QuoteError(t *testing.T) {
	src := NewYahooSource()
	src.getQuote = func(symbol string) (*finance.Quote, error) {
		return nil, errors.New("remote error")
	}
	src.now = func() time.Time { return time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC) }

	_, err := src.Fetch(context.Background(), "AAPL", 50)
	assert.Error(t, err)

	src.getQuote = func(symbol string) (*finance.Quote, error) { return nil, nil }
	_, err = src.Fetch(context.Background(), "AAPL", 50)
	assert.Error(t, err)
}
