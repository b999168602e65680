package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/internal/journal"
	"github.com/wonny/tradecycle/pkg/logger"
)

// highConfidence is the confidence at which a trade counts toward the win rate
const highConfidence = 7.0

// Summary is a performance report for one period
type Summary struct {
	Period Period `json:"period"`

	TradeCount int      `json:"trade_count"`
	Buys       int      `json:"buys"`
	Sells      int      `json:"sells"`
	Symbols    []string `json:"symbols"`

	// 신뢰도 7 이상 거래 비율
	WinRate float64 `json:"win_rate"`

	// FIFO로 매칭된 청산 기준
	RealizedPL    decimal.Decimal `json:"realized_pl"`
	ClosedLots    int             `json:"closed_lots"`
	HitRate       float64         `json:"hit_rate"`
	AvgWin        decimal.Decimal `json:"avg_win"`
	AvgLoss       decimal.Decimal `json:"avg_loss"`
	ProfitFactor  float64         `json:"profit_factor"`
	GrossNotional decimal.Decimal `json:"gross_notional"`

	// 청산 수익률 분포의 꼬리 위험
	TailRisk TailRisk `json:"tail_risk"`

	OpenPositions int `json:"open_positions"`
}

// PositionCounter reports how many positions are open
type PositionCounter interface {
	Count() int
}

// Analyzer builds performance summaries from the trade journal
// ⭐ SSOT: 성과 집계는 여기서만
type Analyzer struct {
	journal   journal.Journal
	positions PositionCounter
	logger    *logger.Logger
}

// NewAnalyzer creates an analyzer. positions may be nil.
func NewAnalyzer(j journal.Journal, positions PositionCounter, log *logger.Logger) *Analyzer {
	return &Analyzer{journal: j, positions: positions, logger: log.WithComponent("report")}
}

// Analyze summarizes the trades inside p
func (a *Analyzer) Analyze(ctx context.Context, p Period) (*Summary, error) {
	// 기간 이전 매수도 FIFO 원가 계산에 필요
	history, err := a.journal.Between(ctx, time.Time{}, p.To)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}

	s := &Summary{
		Period:        p,
		RealizedPL:    decimal.Zero,
		AvgWin:        decimal.Zero,
		AvgLoss:       decimal.Zero,
		GrossNotional: decimal.Zero,
	}
	if a.positions != nil {
		s.OpenPositions = a.positions.Count()
	}

	symbols := make(map[string]bool)
	highConf := 0
	var closes []closed

	book := newLotBook()
	for _, rec := range history {
		inPeriod := !rec.Timestamp.Before(p.From)
		qty := decimal.NewFromInt(int64(rec.Quantity))
		price := decimal.NewFromFloat(rec.Price)

		switch rec.Action {
		case contracts.ActionBuy:
			book.buy(rec.Symbol, qty, price)
		case contracts.ActionSell:
			c := book.sell(rec.Symbol, qty, price)
			if inPeriod && c != nil {
				closes = append(closes, *c)
			}
		}

		if !inPeriod {
			continue
		}
		s.TradeCount++
		if rec.Action == contracts.ActionBuy {
			s.Buys++
		} else {
			s.Sells++
		}
		if rec.Confidence >= highConfidence {
			highConf++
		}
		symbols[rec.Symbol] = true
		s.GrossNotional = s.GrossNotional.Add(qty.Mul(price))
	}

	if s.TradeCount > 0 {
		s.WinRate = float64(highConf) / float64(s.TradeCount)
	}
	for sym := range symbols {
		s.Symbols = append(s.Symbols, sym)
	}
	sort.Strings(s.Symbols)

	a.scoreCloses(s, closes)

	a.logger.WithFields(map[string]interface{}{
		"period":      p.Label,
		"kind":        p.Kind,
		"trades":      s.TradeCount,
		"realized_pl": s.RealizedPL.StringFixed(2),
		"win_rate":    s.WinRate,
	}).Info("Performance summary completed")

	return s, nil
}

// scoreCloses fills the realised P&L statistics from per-sell results
func (a *Analyzer) scoreCloses(s *Summary, closes []closed) {
	s.ClosedLots = len(closes)
	if len(closes) == 0 {
		return
	}

	sumWin, sumLoss := decimal.Zero, decimal.Zero
	wins, losses := 0, 0
	returns := make([]float64, 0, len(closes))
	for _, c := range closes {
		pl := c.pl
		s.RealizedPL = s.RealizedPL.Add(pl)
		if c.cost.IsPositive() {
			returns = append(returns, pl.Div(c.cost).InexactFloat64())
		}
		switch {
		case pl.IsPositive():
			sumWin = sumWin.Add(pl)
			wins++
		case pl.IsNegative():
			sumLoss = sumLoss.Add(pl)
			losses++
		}
	}

	s.HitRate = float64(wins) / float64(len(closes))
	if wins > 0 {
		s.AvgWin = sumWin.Div(decimal.NewFromInt(int64(wins))).Round(2)
	}
	if losses > 0 {
		s.AvgLoss = sumLoss.Div(decimal.NewFromInt(int64(losses))).Round(2)
		s.ProfitFactor = sumWin.Div(sumLoss.Abs()).InexactFloat64()
	}
	s.RealizedPL = s.RealizedPL.Round(2)
	s.TailRisk = historicalTailRisk(returns, tailConfidence)
}

// Event renders a summary as a notifier event
func Event(s *Summary) contracts.Event {
	title := map[Kind]string{Daily: "Daily", Weekly: "Weekly", Monthly: "Monthly"}[s.Period.Kind]
	ev := contracts.NewEvent(contracts.EventReport,
		fmt.Sprintf("%s report %s: %d trades, realized P&L %s", title, s.Period.Label, s.TradeCount, s.RealizedPL.StringFixed(2)))
	ev.Data = map[string]interface{}{
		"period":         s.Period.Label,
		"trades":         s.TradeCount,
		"buys":           s.Buys,
		"sells":          s.Sells,
		"win_rate":       fmt.Sprintf("%.1f%%", s.WinRate*100),
		"hit_rate":       fmt.Sprintf("%.1f%%", s.HitRate*100),
		"realized_pl":    s.RealizedPL.StringFixed(2),
		"profit_factor":  fmt.Sprintf("%.2f", s.ProfitFactor),
		"var_95":         fmt.Sprintf("%.2f%%", s.TailRisk.VaR*100),
		"open_positions": s.OpenPositions,
	}
	return ev
}

type lot struct {
	qty   decimal.Decimal
	price decimal.Decimal
}

// closed is one sell matched against held lots
type closed struct {
	pl   decimal.Decimal
	cost decimal.Decimal // 매칭된 수량의 매수 원가
}

// lotBook matches sells against earlier buys first-in first-out
type lotBook struct {
	lots map[string][]lot
}

func newLotBook() *lotBook {
	return &lotBook{lots: make(map[string][]lot)}
}

func (b *lotBook) buy(symbol string, qty, price decimal.Decimal) {
	b.lots[symbol] = append(b.lots[symbol], lot{qty: qty, price: price})
}

// sell consumes lots and returns realised P&L for the matched quantity, or
// nil when nothing was held. Quantity beyond the held lots is ignored.
func (b *lotBook) sell(symbol string, qty, price decimal.Decimal) *closed {
	queue := b.lots[symbol]
	if len(queue) == 0 {
		return nil
	}

	c := closed{pl: decimal.Zero, cost: decimal.Zero}
	remaining := qty
	for len(queue) > 0 && remaining.IsPositive() {
		head := &queue[0]
		matched := decimal.Min(head.qty, remaining)
		c.pl = c.pl.Add(price.Sub(head.price).Mul(matched))
		c.cost = c.cost.Add(head.price.Mul(matched))
		head.qty = head.qty.Sub(matched)
		remaining = remaining.Sub(matched)
		if head.qty.IsZero() {
			queue = queue[1:]
		}
	}
	b.lots[symbol] = queue
	return &c
}
