package sentiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/tradecycle/internal/llm"
	"github.com/wonny/tradecycle/pkg/config"
	"github.com/wonny/tradecycle/pkg/logger"
)

// Neutral is the score used whenever sentiment is missing
const Neutral = 5.0

// Context is the market context handed to a sentiment advisor
type Context struct {
	Sector         string
	Price          float64
	PriceChangePct float64
	TechnicalScore float64
}

// Advisor scores market sentiment for a symbol in [0,10]
type Advisor interface {
	Name() string
	Score(ctx context.Context, symbol string, sc Context) (float64, error)
}

// NeutralAdvisor always answers 5
type NeutralAdvisor struct{}

// Name returns the advisor name
func (NeutralAdvisor) Name() string { return "neutral" }

// Score returns the neutral score
func (NeutralAdvisor) Score(context.Context, string, Context) (float64, error) {
	return Neutral, nil
}

// New builds the advisor named by SENTIMENT_ADVISOR
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (Advisor, error) {
	switch strings.ToLower(cfg.Trading.SentimentAdvisor) {
	case "", "neutral":
		return NeutralAdvisor{}, nil
	case "llm":
		cm, err := llm.NewChatModel(ctx, cfg.LLM)
		if err != nil {
			return nil, err
		}
		return NewLLMAdvisor(cm, log), nil
	case "headline", "headlines":
		return NewHeadlineAdvisor(DefaultHeadlineConfig(), log), nil
	default:
		return nil, fmt.Errorf("unknown sentiment advisor %q", cfg.Trading.SentimentAdvisor)
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
