package decision

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/internal/llm"
	"github.com/wonny/tradecycle/pkg/logger"
)

const decisionSystemPrompt = "You are a professional trading assistant with expertise in technical analysis and risk management."

var reasoningPattern = regexp.MustCompile(`(?is)REASONING\**\s*:\s*(.+?)(?:\n\s*\**(?:ACTION|CONFIDENCE|QUANTITY)\**\s*:|$)`)

// LLMAdvisor asks a chat model for ACTION/CONFIDENCE/QUANTITY/REASONING lines
type LLMAdvisor struct {
	model  llm.ChatModel
	risk   contracts.RiskParams
	logger *logger.Logger
}

// NewLLMAdvisor creates an LLM-backed decision advisor
func NewLLMAdvisor(cm llm.ChatModel, risk contracts.RiskParams, log *logger.Logger) *LLMAdvisor {
	return &LLMAdvisor{model: cm, risk: risk, logger: log.WithComponent("decision.llm")}
}

// Name returns the advisor name
func (a *LLMAdvisor) Name() string { return "llm" }

// Judge asks the model and parses its reply
func (a *LLMAdvisor) Judge(ctx context.Context, in Input) (contracts.Decision, error) {
	reply, err := llm.Ask(ctx, a.model, decisionSystemPrompt, a.buildPrompt(in))
	if err != nil {
		return contracts.Hold(in.Symbol, "advisor unavailable"), fmt.Errorf("%s decision: %v: %w", in.Symbol, err, contracts.ErrAdvisorFailure)
	}

	d, err := ParseDecision(in.Symbol, reply)
	if err != nil {
		return contracts.Hold(in.Symbol, "unparseable advice"), fmt.Errorf("%s decision: %v: %w", in.Symbol, err, contracts.ErrAdvisorFailure)
	}

	a.logger.WithFields(map[string]interface{}{
		"symbol":     in.Symbol,
		"action":     d.Action,
		"confidence": d.Confidence,
		"quantity":   d.Quantity,
	}).Info("LLM decision")
	return d, nil
}

func (a *LLMAdvisor) buildPrompt(in Input) string {
	ind := in.Indicators
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze %s for a short-term trade.\n\n", in.Symbol)
	fmt.Fprintf(&b, "Current price: $%.2f (%+.2f%% today)\n", in.Quote.Price, ind.PriceChangePct)
	fmt.Fprintf(&b, "Volume: %d\n", in.Quote.Volume)
	fmt.Fprintf(&b, "RSI(14): %.1f\nMA20: $%.2f\nMA50: $%.2f\n", ind.RSI, ind.MA20, ind.MA50)
	fmt.Fprintf(&b, "Daily volatility: %.2f%%\n\n", ind.Volatility*100)

	if p := in.Position; p != nil {
		fmt.Fprintf(&b, "Current position: %d shares at $%.2f, unrealized P&L $%.2f (%.2f%%)\n",
			p.Quantity, p.EntryPrice, p.UnrealizedPL(in.Quote.Price), p.ReturnPct(in.Quote.Price))
	} else {
		b.WriteString("No current position in this symbol.\n")
	}
	fmt.Fprintf(&b, "Risk limits: max $%.0f per position, stop loss %.1f%%, take profit %.1f%%.\n",
		a.risk.MaxPositionSize, a.risk.StopLossPct, a.risk.TakeProfitPct)
	if shares, ok := a.risk.MaxRiskShares(in.Quote.Price); ok {
		fmt.Fprintf(&b, "Risk per trade: %.1f%% of max position ($%.0f), at most %d shares at the stop.\n",
			a.risk.RiskPercentage, a.risk.RiskBudget(), shares)
	}
	b.WriteString("\n")

	b.WriteString("Respond exactly in this format:\n")
	b.WriteString("ACTION: BUY|SELL|HOLD\nCONFIDENCE: <1-10>\nQUANTITY: <shares>\nREASONING: <brief explanation>")
	return b.String()
}

// ParseDecision reads the structured reply. ACTION is required; confidence
// defaults to 5 and quantity to 1.
func ParseDecision(symbol, reply string) (contracts.Decision, error) {
	raw, ok := llm.Field(reply, "ACTION")
	if !ok {
		return contracts.Decision{}, fmt.Errorf("no ACTION in reply")
	}
	word := strings.Fields(strings.Trim(raw, "*"))
	if len(word) == 0 {
		return contracts.Decision{}, fmt.Errorf("empty ACTION")
	}
	action, err := contracts.ParseAction(strings.Trim(word[0], "*.,"))
	if err != nil {
		return contracts.Decision{}, err
	}

	d := contracts.Decision{Symbol: symbol, Action: action, Confidence: 5, Quantity: 1}
	if c, ok := llm.Number(reply, "CONFIDENCE"); ok {
		d.Confidence = clamp(c, 0, 10)
	}
	if q, ok := llm.Number(reply, "QUANTITY"); ok && q >= 1 {
		d.Quantity = int(q)
	}
	if m := reasoningPattern.FindStringSubmatch(reply); m != nil {
		d.Rationale = strings.TrimSpace(m[1])
	} else {
		d.Rationale = "no reasoning provided"
	}
	return d, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
