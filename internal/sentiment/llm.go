package sentiment

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/internal/llm"
	"github.com/wonny/tradecycle/pkg/logger"
)

const sentimentSystemPrompt = "You are a market analyst scoring short-term sentiment for US equities."

var moodPattern = regexp.MustCompile(`(?i)\b(BULLISH|BEARISH|NEUTRAL)\b`)

// LLMAdvisor asks a chat model for a SENTIMENT: <0-10> line
type LLMAdvisor struct {
	model  llm.ChatModel
	logger *logger.Logger
}

// NewLLMAdvisor creates an LLM-backed sentiment advisor
func NewLLMAdvisor(cm llm.ChatModel, log *logger.Logger) *LLMAdvisor {
	return &LLMAdvisor{model: cm, logger: log.WithComponent("sentiment.llm")}
}

// Name returns the advisor name
func (a *LLMAdvisor) Name() string { return "llm" }

// Score asks the model and parses its answer
func (a *LLMAdvisor) Score(ctx context.Context, symbol string, sc Context) (float64, error) {
	reply, err := llm.Ask(ctx, a.model, sentimentSystemPrompt, buildPrompt(symbol, sc))
	if err != nil {
		return Neutral, fmt.Errorf("%s sentiment: %v: %w", symbol, err, contracts.ErrAdvisorFailure)
	}

	score, err := parseSentiment(reply)
	if err != nil {
		return Neutral, fmt.Errorf("%s sentiment: %v: %w", symbol, err, contracts.ErrAdvisorFailure)
	}

	a.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"score":  score,
	}).Debug("LLM sentiment scored")
	return score, nil
}

func buildPrompt(symbol string, sc Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rate the current market sentiment for %s", symbol)
	if sc.Sector != "" {
		fmt.Fprintf(&b, " (%s sector)", sc.Sector)
	}
	b.WriteString(".\n")
	fmt.Fprintf(&b, "Last price: $%.2f (%+.2f%% today). Technical score: %.1f/10.\n", sc.Price, sc.PriceChangePct, sc.TechnicalScore)
	b.WriteString("Consider recent news, sector momentum and overall market tone.\n")
	b.WriteString("Answer with one line: SENTIMENT: <number 0-10> where 0 is very bearish and 10 very bullish, ")
	b.WriteString("then one line REASONING: <short explanation>.")
	return b.String()
}

// parseSentiment reads SENTIMENT: <n>, falling back to a BULLISH/BEARISH/NEUTRAL word
func parseSentiment(reply string) (float64, error) {
	if v, ok := llm.Number(reply, "SENTIMENT"); ok {
		return clampScore(v), nil
	}

	if m := moodPattern.FindString(reply); m != "" {
		switch strings.ToUpper(m) {
		case "BULLISH":
			return 7.5, nil
		case "BEARISH":
			return 2.5, nil
		default:
			return Neutral, nil
		}
	}
	return Neutral, fmt.Errorf("no sentiment in reply")
}
