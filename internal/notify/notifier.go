package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/internal/metrics"
	"github.com/wonny/tradecycle/pkg/logger"
)

// Notifier receives cycle events
type Notifier interface {
	Emit(ctx context.Context, ev contracts.Event)
}

// Sink is one delivery channel; errors are reported to the fan-out
type Sink interface {
	Name() string
	Send(ctx context.Context, ev contracts.Event) error
}

// Multi fans events out to sinks. Each sink runs on its own goroutine with a
// timeout and can never block or fail the caller.
// ⭐ SSOT: 알림 전송은 Multi를 통해서만
type Multi struct {
	sinks   []Sink
	timeout time.Duration
	metrics *metrics.Recorder
	logger  *logger.Logger
	wg      sync.WaitGroup
}

// NewMulti creates a fan-out notifier
func NewMulti(timeout time.Duration, rec *metrics.Recorder, log *logger.Logger, sinks ...Sink) *Multi {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Multi{sinks: sinks, timeout: timeout, metrics: rec, logger: log.WithComponent("notify")}
}

// Add registers another sink
func (m *Multi) Add(s Sink) {
	m.sinks = append(m.sinks, s)
}

// SinkNames lists the registered sinks
func (m *Multi) SinkNames() []string {
	out := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		out[i] = s.Name()
	}
	return out
}

// Emit implements Notifier. The caller's ctx only carries values; cancellation
// does not abort in-flight deliveries.
func (m *Multi) Emit(ctx context.Context, ev contracts.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	base := context.WithoutCancel(ctx)

	for _, s := range m.sinks {
		m.wg.Add(1)
		go func(s Sink) {
			defer m.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					m.logger.WithField("sink", s.Name()).Errorf("Notifier sink panicked: %v", r)
				}
			}()

			sendCtx, cancel := context.WithTimeout(base, m.timeout)
			defer cancel()

			if err := s.Send(sendCtx, ev); err != nil {
				m.metrics.RecordNotifyFailure(s.Name())
				m.logger.WithFields(map[string]interface{}{
					"sink":  s.Name(),
					"event": ev.Type,
				}).WithError(err).Warn("Notification delivery failed")
			}
		}(s)
	}
}

// Flush waits for in-flight deliveries
func (m *Multi) Flush() {
	m.wg.Wait()
}

// LogSink writes events to the structured log
type LogSink struct {
	logger *logger.Logger
}

// NewLogSink creates a log sink
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{logger: log.WithComponent("events")}
}

// Name returns the sink name
func (s *LogSink) Name() string { return "log" }

// Send logs the event
func (s *LogSink) Send(_ context.Context, ev contracts.Event) error {
	fields := map[string]interface{}{"event": ev.Type}
	if ev.CycleID != "" {
		fields["cycle_id"] = ev.CycleID
	}
	if ev.Symbol != "" {
		fields["symbol"] = ev.Symbol
	}
	if ev.Stage != "" {
		fields["stage"] = ev.Stage
	}
	for k, v := range ev.Data {
		fields[k] = v
	}

	l := s.logger.WithFields(fields)
	if ev.Type == contracts.EventError {
		l.Warn(ev.Message)
	} else {
		l.Info(ev.Message)
	}
	return nil
}

// Nop discards events
type Nop struct{}

// Emit implements Notifier
func (Nop) Emit(context.Context, contracts.Event) {}

// Recorder keeps events in memory; used by tests and the dashboard backlog
type Recorder struct {
	mu     sync.Mutex
	events []contracts.Event
}

// Name returns the sink name
func (r *Recorder) Name() string { return "recorder" }

// Send records the event
func (r *Recorder) Send(_ context.Context, ev contracts.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Emit implements Notifier synchronously
func (r *Recorder) Emit(ctx context.Context, ev contracts.Event) {
	_ = r.Send(ctx, ev)
}

// Events returns a copy of recorded events
func (r *Recorder) Events() []contracts.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]contracts.Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events of one type
func (r *Recorder) OfType(t contracts.EventType) []contracts.Event {
	var out []contracts.Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func describe(ev contracts.Event) string {
	if ev.Symbol != "" {
		return fmt.Sprintf("%s %s", ev.Type, ev.Symbol)
	}
	return string(ev.Type)
}
