package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/wonny/tradecycle/pkg/config"
)

// ChatModel is the part of an eino chat model the advisors use
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// NewChatModel builds an OpenAI-compatible eino chat model from config
func NewChatModel(ctx context.Context, cfg config.LLMConfig) (ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required for LLM advisors")
	}

	maxTokens := cfg.MaxTokens
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return cm, nil
}

// Ask sends one system+user exchange and returns the trimmed reply
func Ask(ctx context.Context, cm ChatModel, system, user string) (string, error) {
	msg, err := cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	})
	if err != nil {
		return "", err
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("empty completion")
	}
	return strings.TrimSpace(msg.Content), nil
}

// Field extracts a "KEY: value" line from a completion (case-insensitive key)
func Field(text, key string) (string, bool) {
	re := regexp.MustCompile(`(?im)^\s*\**` + regexp.QuoteMeta(key) + `\**\s*:\s*(.+)$`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

var leadingNumber = regexp.MustCompile(`^-?\d+(\.\d+)?`)

// Number extracts a "KEY: <number>" field
func Number(text, key string) (float64, bool) {
	v, ok := Field(text, key)
	if !ok {
		return 0, false
	}
	m := leadingNumber.FindString(v)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
