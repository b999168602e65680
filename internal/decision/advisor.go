package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/internal/llm"
	"github.com/wonny/tradecycle/internal/signals"
	"github.com/wonny/tradecycle/pkg/config"
	"github.com/wonny/tradecycle/pkg/logger"
)

// Input is everything an advisor sees for one symbol
type Input struct {
	Symbol     string
	Quote      contracts.Quote
	Indicators signals.Indicators
	Position   *contracts.Position // nil when flat
}

// NewInput builds advisor input from a snapshot
func NewInput(snap *contracts.MarketSnapshot, pos *contracts.Position) Input {
	return Input{
		Symbol:     snap.Quote.Symbol,
		Quote:      snap.Quote,
		Indicators: signals.ComputeIndicators(snap),
		Position:   pos,
	}
}

// Advisor judges BUY/SELL/HOLD for one symbol
type Advisor interface {
	Name() string
	Judge(ctx context.Context, in Input) (contracts.Decision, error)
}

// New builds the advisor named by DECISION_ADVISOR
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (Advisor, error) {
	risk := contracts.RiskParams{
		MaxPositionSize: cfg.Trading.MaxPositionSize,
		RiskPercentage:  cfg.Trading.RiskPercentage,
		StopLossPct:     cfg.Trading.StopLossPct,
		TakeProfitPct:   cfg.Trading.TakeProfitPct,
	}

	switch strings.ToLower(cfg.Trading.DecisionAdvisor) {
	case "", "rules", "technical":
		return NewRuleAdvisor(DefaultRuleConfig(risk), log), nil
	case "llm":
		cm, err := llm.NewChatModel(ctx, cfg.LLM)
		if err != nil {
			return nil, err
		}
		return NewLLMAdvisor(cm, risk, log), nil
	default:
		return nil, fmt.Errorf("unknown decision advisor %q", cfg.Trading.DecisionAdvisor)
	}
}
