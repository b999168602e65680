package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/internal/metrics"
	"github.com/wonny/tradecycle/pkg/httputil"
	"github.com/wonny/tradecycle/pkg/logger"
)

type failingSink struct{ calls atomic.Int32 }

func (s *failingSink) Name() string { return "broken" }
func (s *failingSink) Send(context.Context, contracts.Event) error {
	s.calls.Add(1)
	return errors.New("sink down")
}

type blockingSink struct{}

func (blockingSink) Name() string { return "slow" }
func (blockingSink) Send(ctx context.Context, _ contracts.Event) error {
	<-ctx.Done()
	return ctx.Err()
}

type panickingSink struct{}

func (panickingSink) Name() string                                { return "panicky" }
func (panickingSink) Send(context.Context, contracts.Event) error { panic("boom") }

func TestMulti_FanOutIsolatesFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := &Recorder{}
	broken := &failingSink{}

	m := NewMulti(50*time.Millisecond, metrics.New(reg), logger.NewNop(), broken, blockingSink{}, panickingSink{}, rec)

	m.Emit(context.Background(), contracts.NewEvent(contracts.EventCycleStarted, "cycle started"))
	m.Flush()

	assert.Len(t, rec.Events(), 1)
	assert.Equal(t, int32(1), broken.calls.Load())

	failures, err := testutil.GatherAndCount(reg, "tradecycle_notify_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 2, failures, "broken and slow sinks each get a series")
}

func TestMulti_CancelledCallerStillDelivers(t *testing.T) {
	rec := &Recorder{}
	m := NewMulti(time.Second, nil, logger.NewNop(), rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Emit(ctx, contracts.Event{Type: contracts.EventError, Message: "x"})
	m.Flush()

	events := rec.Events()
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.IsZero(), "timestamp is filled in")
}

func TestRecorder_OfType(t *testing.T) {
	rec := &Recorder{}
	rec.Emit(context.Background(), contracts.NewEvent(contracts.EventTradeExecuted, "a"))
	rec.Emit(context.Background(), contracts.NewEvent(contracts.EventError, "b"))
	rec.Emit(context.Background(), contracts.NewEvent(contracts.EventTradeExecuted, "c"))

	assert.Len(t, rec.OfType(contracts.EventTradeExecuted), 2)
	assert.Len(t, rec.OfType(contracts.EventReport), 0)
}

func TestTelegramSink(t *testing.T) {
	var got sendMessageRequest
	var reply atomic.Value
	reply.Store(`{"ok":true}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply.Load().(string)))
	}))
	defer srv.Close()

	client := httputil.New(logger.NewNop()).DisableRetry()
	sink := NewTelegramSink(client, "token", "42", nil).WithAPIURL(srv.URL)

	ev := contracts.NewEvent(contracts.EventTradeExecuted, "bought <3> shares")
	ev.Symbol = "AAPL"
	ev.Data = map[string]interface{}{"price": 150.25, "quantity": 3}

	require.NoError(t, sink.Send(context.Background(), ev))
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.Contains(t, got.Text, "<b>TRADE EXECUTED</b>")
	assert.Contains(t, got.Text, "<code>AAPL</code>")
	assert.Contains(t, got.Text, "bought &lt;3&gt; shares")
	assert.Less(t, strings.Index(got.Text, "price"), strings.Index(got.Text, "quantity"))

	reply.Store(`{"ok":false,"description":"chat not found"}`)
	err := sink.Send(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramSink_FiltersTypes(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := httputil.New(logger.NewNop()).DisableRetry()
	sink := NewTelegramSink(client, "token", "42", nil, contracts.EventReport).WithAPIURL(srv.URL)

	require.NoError(t, sink.Send(context.Background(), contracts.NewEvent(contracts.EventCycleStarted, "skip")))
	require.NoError(t, sink.Send(context.Background(), contracts.NewEvent(contracts.EventReport, "send")))
	assert.Equal(t, 1, calls)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSink(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSink(w, "trading-events")

	trade := contracts.NewEvent(contracts.EventTradeExecuted, "filled")
	trade.Symbol = "MSFT"
	require.NoError(t, sink.Send(context.Background(), trade))
	require.NoError(t, sink.Send(context.Background(), contracts.NewEvent(contracts.EventReport, "daily")))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "trading-events", w.msgs[0].Topic)
	assert.Equal(t, "MSFT", string(w.msgs[0].Key))
	assert.Equal(t, "report", string(w.msgs[1].Key))

	var decoded contracts.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, contracts.EventTradeExecuted, decoded.Type)

	w.err = errors.New("broker unavailable")
	assert.Error(t, sink.Send(context.Background(), trade))
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(logger.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	ev := contracts.NewEvent(contracts.EventSelectionUpdated, "5 symbols")
	require.NoError(t, hub.Send(context.Background(), ev))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got contracts.Event
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, contracts.EventSelectionUpdated, got.Type)
	assert.Equal(t, "5 symbols", got.Message)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_NoClients(t *testing.T) {
	hub := NewHub(logger.NewNop())
	assert.NoError(t, hub.Send(context.Background(), contracts.NewEvent(contracts.EventReport, "nobody listening")))
}
