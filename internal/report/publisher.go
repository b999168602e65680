package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/tradecycle/internal/notify"
	"github.com/wonny/tradecycle/pkg/logger"
	"github.com/wonny/tradecycle/pkg/redis"
)

// Publisher sends each periodic report at most once per period
type Publisher struct {
	analyzer *Analyzer
	notifier notify.Notifier
	cache    *redis.Cache // 여러 인스턴스 간 중복 방지, nil 허용
	loc      *time.Location

	mu   sync.Mutex
	sent map[string]bool
	log  *logger.Logger
}

// NewPublisher creates a report publisher
func NewPublisher(analyzer *Analyzer, n notify.Notifier, cache *redis.Cache, loc *time.Location, log *logger.Logger) *Publisher {
	if loc == nil {
		loc = time.UTC
	}
	return &Publisher{
		analyzer: analyzer,
		notifier: n,
		cache:    cache,
		loc:      loc,
		sent:     make(map[string]bool),
		log:      log.WithComponent("report"),
	}
}

// Publish analyzes the period for kind at now and emits it. It reports false
// when the period was already published.
func (p *Publisher) Publish(ctx context.Context, kind Kind, now time.Time) (*Summary, bool, error) {
	period := PeriodFor(kind, now, p.loc)
	key := redis.ReportSentKey(string(kind), period.Label)

	p.mu.Lock()
	if p.sent[key] {
		p.mu.Unlock()
		return nil, false, nil
	}
	p.sent[key] = true
	p.mu.Unlock()

	if p.cache != nil {
		first, err := p.cache.SetOnce(ctx, key, ttlFor(kind))
		if err != nil {
			p.log.WithError(err).Warn("Report dedupe unavailable, sending anyway")
		} else if !first {
			p.log.WithField("period", period.Label).Info("Report already sent by another instance")
			return nil, false, nil
		}
	}

	summary, err := p.analyzer.Analyze(ctx, period)
	if err != nil {
		p.unmark(ctx, key)
		return nil, false, fmt.Errorf("%s report %s: %w", kind, period.Label, err)
	}

	p.notifier.Emit(ctx, Event(summary))
	return summary, true, nil
}

// unmark allows a failed period to be retried
func (p *Publisher) unmark(ctx context.Context, key string) {
	p.mu.Lock()
	delete(p.sent, key)
	p.mu.Unlock()
	if p.cache != nil {
		if err := p.cache.Delete(ctx, key); err != nil {
			p.log.WithError(err).Warn("Failed to clear report marker")
		}
	}
}

func ttlFor(kind Kind) time.Duration {
	switch kind {
	case Weekly:
		return 2 * redis.TTLWeek
	case Monthly:
		return 5 * redis.TTLWeek
	default:
		return 2 * 24 * time.Hour
	}
}
