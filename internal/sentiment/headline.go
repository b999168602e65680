package sentiment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/pkg/logger"
)

// HeadlineConfig describes where headlines come from and how they are scored
type HeadlineConfig struct {
	URLTemplate  string // %s = symbol
	Selector     string
	MaxHeadlines int
	Timeout      time.Duration
	Positive     []string
	Negative     []string
}

// DefaultHeadlineConfig scrapes the finviz news table
func DefaultHeadlineConfig() HeadlineConfig {
	return HeadlineConfig{
		URLTemplate:  "https://finviz.com/quote.ashx?t=%s",
		Selector:     "#news-table a.tab-link-news",
		MaxHeadlines: 20,
		Timeout:      10 * time.Second,
		Positive: []string{
			"beat", "beats", "surge", "soar", "rally", "upgrade", "record", "growth",
			"raises", "strong", "gain", "jumps", "bullish", "outperform", "buyback",
		},
		Negative: []string{
			"miss", "misses", "plunge", "slump", "downgrade", "lawsuit", "probe", "cut",
			"weak", "loss", "falls", "drops", "bearish", "recall", "layoffs",
		},
	}
}

// HeadlineAdvisor scores sentiment by counting keywords in scraped headlines
type HeadlineAdvisor struct {
	cfg    HeadlineConfig
	client *resty.Client
	logger *logger.Logger
}

// NewHeadlineAdvisor creates a keyword headline advisor
func NewHeadlineAdvisor(cfg HeadlineConfig, log *logger.Logger) *HeadlineAdvisor {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")

	return &HeadlineAdvisor{
		cfg:    cfg,
		client: client,
		logger: log.WithComponent("sentiment.headline"),
	}
}

// Name returns the advisor name
func (a *HeadlineAdvisor) Name() string { return "headline" }

// Score fetches headlines and maps the keyword balance to [0,10]
func (a *HeadlineAdvisor) Score(ctx context.Context, symbol string, _ Context) (float64, error) {
	headlines, err := a.Headlines(ctx, symbol)
	if err != nil {
		return Neutral, fmt.Errorf("%s headlines: %v: %w", symbol, err, contracts.ErrAdvisorFailure)
	}

	score, pos, neg := a.scoreHeadlines(headlines)
	a.logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"headlines": len(headlines),
		"positive":  pos,
		"negative":  neg,
		"score":     score,
	}).Debug("Headline sentiment scored")
	return score, nil
}

// Headlines scrapes up to MaxHeadlines titles for a symbol
func (a *HeadlineAdvisor) Headlines(ctx context.Context, symbol string) ([]string, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(fmt.Sprintf(a.cfg.URLTemplate, symbol))
	if err != nil {
		return nil, err
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("status %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse headlines: %w", err)
	}

	var out []string
	doc.Find(a.cfg.Selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Text()); t != "" {
			out = append(out, t)
		}
		return a.cfg.MaxHeadlines <= 0 || len(out) < a.cfg.MaxHeadlines
	})
	return out, nil
}

// scoreHeadlines returns 5 + 5·(pos−neg)/(pos+neg); no keyword hits is neutral
func (a *HeadlineAdvisor) scoreHeadlines(headlines []string) (float64, int, int) {
	pos, neg := 0, 0
	for _, h := range headlines {
		words := strings.FieldsFunc(strings.ToLower(h), func(r rune) bool {
			return !(r >= 'a' && r <= 'z' || r == '-')
		})
		for _, w := range words {
			if contains(a.cfg.Positive, w) {
				pos++
			}
			if contains(a.cfg.Negative, w) {
				neg++
			}
		}
	}
	if pos+neg == 0 {
		return Neutral, 0, 0
	}
	return clampScore(Neutral + 5*float64(pos-neg)/float64(pos+neg)), pos, neg
}

func contains(list []string, w string) bool {
	for _, x := range list {
		if x == w {
			return true
		}
	}
	return false
}
