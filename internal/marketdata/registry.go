package marketdata

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/tradecycle/pkg/config"
	"github.com/wonny/tradecycle/pkg/httputil"
	"github.com/wonny/tradecycle/pkg/logger"
	"github.com/wonny/tradecycle/pkg/redis"
)

// BuildTiers turns the configured source priority list into tiers.
// Reordering DATA_SOURCES changes fallback order without code changes.
func BuildTiers(cfg *config.Config, limiter *redis.RateLimiter, log *logger.Logger) ([]Tier, error) {
	tiers := make([]Tier, 0, len(cfg.Trading.DataSources))

	for _, name := range cfg.Trading.DataSources {
		var tier Tier
		switch strings.ToLower(name) {
		case "alpaca":
			client := httputil.NewWithTimeout(log, cfg.Trading.DataTimeout).
				WithRetry(1, 250*time.Millisecond).
				WithHeader("APCA-API-KEY-ID", cfg.Alpaca.APIKey).
				WithHeader("APCA-API-SECRET-KEY", cfg.Alpaca.SecretKey).
				WithRateLimiter(limiter, redis.AlpacaRateLimit)
			tier = Tier{
				Source:  NewAlpacaSource(client, cfg.Alpaca.DataURL, cfg.Alpaca.Feed),
				Limiter: rate.NewLimiter(rate.Limit(3), 3),
			}
		case "yahoo":
			tier = Tier{
				Source:  NewYahooSource(),
				Limiter: rate.NewLimiter(rate.Limit(2), 2),
			}
		case "finnhub":
			tier = Tier{
				Source:  NewFinnhubSource(cfg.Finnhub.BaseURL, cfg.Finnhub.APIKey),
				Limiter: rate.NewLimiter(rate.Every(time.Second), 1), // 분당 60회
			}
		default:
			return nil, fmt.Errorf("unknown data source %q", name)
		}

		tier.Timeout = cfg.Trading.DataTimeout
		tiers = append(tiers, tier)
	}

	return tiers, nil
}
