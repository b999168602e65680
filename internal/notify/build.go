package notify

import (
	"github.com/wonny/tradecycle/internal/metrics"
	"github.com/wonny/tradecycle/pkg/config"
	"github.com/wonny/tradecycle/pkg/httputil"
	"github.com/wonny/tradecycle/pkg/logger"
	"github.com/wonny/tradecycle/pkg/redis"
)

// FromConfig assembles the fan-out from configured sinks. The log sink is
// always present; hub may be nil when no dashboard is served.
func FromConfig(cfg *config.Config, rec *metrics.Recorder, limiter *redis.RateLimiter, hub *Hub, log *logger.Logger) (*Multi, func()) {
	m := NewMulti(cfg.Trading.NotifyTimeout, rec, log, NewLogSink(log))
	closers := []func(){}

	if cfg.Telegram.Enabled() {
		client := httputil.NewWithTimeout(log, cfg.Trading.NotifyTimeout).DisableRetry()
		m.Add(NewTelegramSink(client, cfg.Telegram.BotToken, cfg.Telegram.ChatID, limiter))
	}
	if cfg.Kafka.Enabled() {
		sink := NewKafkaSink(NewKafkaWriter(cfg.Kafka.Brokers), cfg.Kafka.Topic)
		m.Add(sink)
		closers = append(closers, func() {
			if err := sink.Close(); err != nil {
				log.WithError(err).Warn("Failed to close Kafka writer")
			}
		})
	}
	if hub != nil {
		m.Add(hub)
		closers = append(closers, hub.Close)
	}

	log.WithField("sinks", m.SinkNames()).Info("Notifier ready")

	return m, func() {
		m.Flush()
		for _, c := range closers {
			c()
		}
	}
}
