package decision

import (
	"context"
	"math"
	"strings"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/pkg/logger"
)

// RuleConfig holds technical rule thresholds
type RuleConfig struct {
	RSIOversold   float64 // 기본 30
	RSIOverbought float64 // 기본 70
	MinStrength   int     // 방향 확정에 필요한 최소 강도
	BaseQuantity  int
	Risk          contracts.RiskParams
}

// DefaultRuleConfig returns the rule defaults
func DefaultRuleConfig(risk contracts.RiskParams) RuleConfig {
	return RuleConfig{
		RSIOversold:   30,
		RSIOverbought: 70,
		MinStrength:   2,
		BaseQuantity:  1,
		Risk:          risk,
	}
}

type vote struct {
	action   contracts.Action
	strength int
	reason   string
}

// RuleAdvisor decides from moving-average trend, RSI, daily momentum and exits
// ⭐ SSOT: 규칙 기반 매매 판단은 여기서만
type RuleAdvisor struct {
	cfg    RuleConfig
	logger *logger.Logger
}

// NewRuleAdvisor creates a rule-based advisor
func NewRuleAdvisor(cfg RuleConfig, log *logger.Logger) *RuleAdvisor {
	return &RuleAdvisor{cfg: cfg, logger: log.WithComponent("decision.rules")}
}

// Name returns the advisor name
func (a *RuleAdvisor) Name() string { return "rules" }

// Judge sums buy and sell strengths; the stronger side wins at confidence min(10, strength+3)
func (a *RuleAdvisor) Judge(_ context.Context, in Input) (contracts.Decision, error) {
	ind := in.Indicators
	price := in.Quote.Price
	var votes []vote

	// 이동평균 추세
	switch {
	case price > ind.MA20 && ind.MA20 > ind.MA50:
		votes = append(votes, vote{contracts.ActionBuy, 2, "price above moving averages, uptrend"})
	case price < ind.MA20 && ind.MA20 < ind.MA50:
		votes = append(votes, vote{contracts.ActionSell, 2, "price below moving averages, downtrend"})
	}

	switch {
	case ind.RSI < a.cfg.RSIOversold:
		votes = append(votes, vote{contracts.ActionBuy, 3, "RSI oversold"})
	case ind.RSI > a.cfg.RSIOverbought:
		votes = append(votes, vote{contracts.ActionSell, 3, "RSI overbought"})
	}

	// 일간 모멘텀
	chg := ind.PriceChangePct
	switch {
	case chg > 3:
		votes = append(votes, vote{contracts.ActionBuy, 3, "strong positive momentum"})
	case chg < -3:
		votes = append(votes, vote{contracts.ActionSell, 3, "strong negative momentum"})
	case chg > 1:
		votes = append(votes, vote{contracts.ActionBuy, 2, "positive momentum"})
	case chg < -1:
		votes = append(votes, vote{contracts.ActionSell, 2, "negative momentum"})
	case chg > 0.5:
		votes = append(votes, vote{contracts.ActionBuy, 1, "mild positive momentum"})
	case chg < -0.5:
		votes = append(votes, vote{contracts.ActionSell, 1, "mild negative momentum"})
	}

	// 보유 포지션 청산 규칙
	if pos := in.Position; pos != nil && pos.EntryPrice > 0 {
		ret := pos.ReturnPct(price)
		switch {
		case a.cfg.Risk.TakeProfitPct > 0 && ret > a.cfg.Risk.TakeProfitPct:
			votes = append(votes, vote{contracts.ActionSell, 4, "take profit reached"})
		case a.cfg.Risk.StopLossPct > 0 && ret < -a.cfg.Risk.StopLossPct:
			votes = append(votes, vote{contracts.ActionSell, 5, "stop loss reached"})
		}
	}

	d := a.combine(in.Symbol, votes)
	a.logger.WithFields(map[string]interface{}{
		"symbol":     in.Symbol,
		"action":     d.Action,
		"confidence": d.Confidence,
		"rsi":        ind.RSI,
		"change_pct": chg,
	}).Debug("Rule decision")
	return d, nil
}

func (a *RuleAdvisor) combine(symbol string, votes []vote) contracts.Decision {
	var buy, sell int
	var buyReasons, sellReasons []string
	for _, v := range votes {
		if v.action == contracts.ActionBuy {
			buy += v.strength
			buyReasons = append(buyReasons, v.reason)
		} else {
			sell += v.strength
			sellReasons = append(sellReasons, v.reason)
		}
	}

	d := contracts.Decision{Symbol: symbol, Action: contracts.ActionHold, Confidence: 5, Quantity: a.cfg.BaseQuantity}
	switch {
	case buy > sell && buy >= a.cfg.MinStrength:
		d.Action = contracts.ActionBuy
		d.Confidence = math.Min(10, float64(buy+3))
		d.Rationale = strings.Join(buyReasons, "; ")
	case sell > buy && sell >= a.cfg.MinStrength:
		d.Action = contracts.ActionSell
		d.Confidence = math.Min(10, float64(sell+3))
		d.Rationale = strings.Join(sellReasons, "; ")
	case len(votes) == 0:
		d.Rationale = "neutral market conditions"
	default:
		d.Rationale = "mixed signals"
	}
	return d
}
