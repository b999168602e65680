package redis

import (
	"context"
	"testing"
	"time"

	"github.com/wonny/tradecycle/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{Redis: config.RedisConfig{Enabled: false}}

	client, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on disabled client error = %v", err)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), "test")

	allowed, remaining, err := limiter.Allow(context.Background(), AlpacaRateLimit)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Error("Expected request to be allowed when Redis disabled")
	}
	if remaining != AlpacaRateLimit.Limit {
		t.Errorf("Expected remaining = %d, got %d", AlpacaRateLimit.Limit, remaining)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := limiter.Wait(ctx, FinnhubRateLimit); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "test")
	ctx := context.Background()

	if err := cache.Set(ctx, "key", 1.5, TTLShort); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var result float64
	found, err := cache.Get(ctx, "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected cache miss when Redis disabled")
	}

	stored, err := cache.SetOnce(ctx, ReportSentKey("daily", "2026-10-15"), TTLWeek)
	if err != nil || !stored {
		t.Errorf("SetOnce() = %v, %v; want true, nil", stored, err)
	}
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"SectorReturnKey", SectorReturnKey("XLK", 20, "2026-10-15"), "sector:return:XLK:20:2026-10-15"},
		{"ReportSentKey", ReportSentKey("weekly", "2026-W42"), "report:sent:weekly:2026-W42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}
