package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/wonny/tradecycle/internal/contracts"
	"github.com/wonny/tradecycle/pkg/httputil"
	"github.com/wonny/tradecycle/pkg/redis"
)

const telegramAPIURL = "https://api.telegram.org/bot%s/sendMessage"

// TelegramSink posts HTML messages through the Bot API
type TelegramSink struct {
	client *httputil.Client
	apiURL string // bot 토큰 포함, 로그에 남기지 않는다
	chatID string
	types  map[contracts.EventType]bool
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// NewTelegramSink creates a Telegram sink. types limits which events are sent; empty sends all.
func NewTelegramSink(client *httputil.Client, botToken, chatID string, limiter *redis.RateLimiter, types ...contracts.EventType) *TelegramSink {
	client = client.WithRateLimiter(limiter, redis.TelegramRateLimit)
	s := &TelegramSink{
		client: client,
		apiURL: fmt.Sprintf(telegramAPIURL, botToken),
		chatID: chatID,
	}
	if len(types) > 0 {
		s.types = make(map[contracts.EventType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
	return s
}

// WithAPIURL overrides the sendMessage endpoint
func (s *TelegramSink) WithAPIURL(url string) *TelegramSink {
	s.apiURL = url
	return s
}

// Name returns the sink name
func (s *TelegramSink) Name() string { return "telegram" }

// Send implements Sink
func (s *TelegramSink) Send(ctx context.Context, ev contracts.Event) error {
	if s.types != nil && !s.types[ev.Type] {
		return nil
	}

	var resp sendMessageResponse
	err := s.client.SendJSON(ctx, s.apiURL, sendMessageRequest{
		ChatID:    s.chatID,
		Text:      FormatHTML(ev),
		ParseMode: "HTML",
	}, &resp)
	var se *httputil.StatusError
	if errors.As(err, &se) {
		// URL에 bot 토큰이 있으므로 상태와 본문만 남긴다
		return fmt.Errorf("telegram send %s: status %d: %s", describe(ev), se.StatusCode, se.Body)
	}
	if err != nil {
		return fmt.Errorf("telegram send %s: %w", describe(ev), err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram API error: %s", resp.Description)
	}
	return nil
}

var eventIcons = map[contracts.EventType]string{
	contracts.EventCycleStarted:     "🔄",
	contracts.EventCycleCompleted:   "✅",
	contracts.EventTradeExecuted:    "💰",
	contracts.EventSelectionUpdated: "📋",
	contracts.EventError:            "⚠️",
	contracts.EventReport:           "📊",
}

// FormatHTML renders an event as a Telegram HTML message
func FormatHTML(ev contracts.Event) string {
	var b strings.Builder

	title := strings.ReplaceAll(string(ev.Type), "_", " ")
	fmt.Fprintf(&b, "%s <b>%s</b>", eventIcons[ev.Type], html.EscapeString(strings.ToUpper(title)))
	if ev.Symbol != "" {
		fmt.Fprintf(&b, " <code>%s</code>", html.EscapeString(ev.Symbol))
	}
	b.WriteString("\n")

	if ev.Message != "" {
		b.WriteString(html.EscapeString(ev.Message))
		b.WriteString("\n")
	}

	keys := make([]string, 0, len(ev.Data))
	for k := range ev.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "• %s: %s\n", html.EscapeString(k), html.EscapeString(fmt.Sprint(ev.Data[k])))
	}

	if ev.CycleID != "" {
		fmt.Fprintf(&b, "<i>cycle %s</i>\n", html.EscapeString(ev.CycleID))
	}
	fmt.Fprintf(&b, "<i>%s</i>", ev.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	return b.String()
}
