package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional: empty URL → in-memory journal)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	Alpaca  AlpacaConfig
	Finnhub FinnhubConfig
	LLM     LLMConfig

	// Notification sinks
	Telegram TelegramConfig
	Kafka    KafkaConfig

	// Trading
	Trading TradingConfig

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string // 비어 있으면 stdout만 사용

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a PostgreSQL URL was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// AlpacaConfig holds Alpaca brokerage and market data configuration
type AlpacaConfig struct {
	APIKey    string
	SecretKey string
	BaseURL   string // trading API (paper or live)
	DataURL   string // market data API
	Feed      string // iex, sip

	UseBrackets bool // 매수 시 손절/익절 브래킷 주문
}

// FinnhubConfig holds Finnhub API configuration
type FinnhubConfig struct {
	APIKey  string
	BaseURL string
}

// LLMConfig holds the OpenAI-compatible chat model configuration
type LLMConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// Enabled reports whether the Telegram sink has credentials
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// KafkaConfig holds event stream configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether any broker is configured
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// TradingConfig holds cycle, risk and advisor settings
type TradingConfig struct {
	Universe          []string
	MaxStocksToTrade  int
	CycleInterval     time.Duration
	SelectionInterval time.Duration

	// Market hours (America/New_York 기준)
	Timezone    string
	MarketOpen  string // HH:MM
	MarketClose string // HH:MM
	Holidays    []string

	// Risk parameters
	MaxPositionSize float64
	RiskPercentage  float64
	StopLossPct     float64
	TakeProfitPct   float64
	MinConfidence   float64

	// Fallback tier priority
	DataSources []string

	// Concurrency & timeouts
	Workers          int
	DataTimeout      time.Duration
	AdvisorTimeout   time.Duration
	ExecutionTimeout time.Duration
	NotifyTimeout    time.Duration

	// Advisors / gateway
	SentimentAdvisor string // llm, headline, neutral
	DecisionAdvisor  string // rules, llm
	PaperTrading     bool

	StrategyFile string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// External APIs
		Alpaca: AlpacaConfig{
			APIKey:    getEnv("ALPACA_API_KEY", ""),
			SecretKey: getEnv("ALPACA_SECRET_KEY", ""),
			BaseURL:   getEnv("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),
			DataURL:   getEnv("ALPACA_DATA_URL", "https://data.alpaca.markets"),
			Feed:      getEnv("ALPACA_FEED", "iex"),

			UseBrackets: getEnvAsBool("ALPACA_USE_BRACKETS", true),
		},

		Finnhub: FinnhubConfig{
			APIKey:  getEnv("FINNHUB_API_KEY", ""),
			BaseURL: getEnv("FINNHUB_BASE_URL", "https://finnhub.io/api/v1"),
		},

		LLM: LLMConfig{
			APIKey:    getEnv("OPENAI_API_KEY", ""),
			BaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens: getEnvAsInt("OPENAI_MAX_TOKENS", 500),
		},

		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		},

		Kafka: KafkaConfig{
			Brokers: getEnvAsSlice("KAFKA_BROKERS", ""),
			Topic:   getEnv("KAFKA_TOPIC", "trading.events"),
		},

		Trading: TradingConfig{
			Universe:          getEnvAsSlice("TRADING_UNIVERSE", "AAPL,MSFT,GOOGL,TSLA,AMZN"),
			MaxStocksToTrade:  getEnvAsInt("MAX_STOCKS_TO_TRADE", 5),
			CycleInterval:     getEnvAsDuration("CYCLE_INTERVAL", "5m"),
			SelectionInterval: getEnvAsDuration("SELECTION_INTERVAL", "30m"),

			Timezone:    getEnv("MARKET_TIMEZONE", "America/New_York"),
			MarketOpen:  getEnv("MARKET_OPEN", "09:30"),
			MarketClose: getEnv("MARKET_CLOSE", "16:00"),
			Holidays:    getEnvAsSlice("MARKET_HOLIDAYS", ""),

			MaxPositionSize: getEnvAsFloat("MAX_POSITION_SIZE", 1000),
			RiskPercentage:  getEnvAsFloat("RISK_PERCENTAGE", 2.0),
			StopLossPct:     getEnvAsFloat("STOP_LOSS_PERCENTAGE", 5.0),
			TakeProfitPct:   getEnvAsFloat("TAKE_PROFIT_PERCENTAGE", 10.0),
			MinConfidence:   getEnvAsFloat("MIN_CONFIDENCE", 6.0),

			DataSources: getEnvAsSlice("DATA_SOURCES", "alpaca,yahoo,finnhub"),

			Workers:          getEnvAsInt("CYCLE_WORKERS", 4),
			DataTimeout:      getEnvAsDuration("DATA_TIMEOUT", "10s"),
			AdvisorTimeout:   getEnvAsDuration("ADVISOR_TIMEOUT", "30s"),
			ExecutionTimeout: getEnvAsDuration("EXECUTION_TIMEOUT", "15s"),
			NotifyTimeout:    getEnvAsDuration("NOTIFY_TIMEOUT", "5s"),

			SentimentAdvisor: getEnv("SENTIMENT_ADVISOR", "neutral"),
			DecisionAdvisor:  getEnv("DECISION_ADVISOR", "rules"),
			PaperTrading:     getEnvAsBool("PAPER_TRADING", true),

			StrategyFile: getEnv("STRATEGY_FILE", ""),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogFile:   getEnv("LOG_FILE", ""),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	t := c.Trading
	if len(t.Universe) == 0 {
		return fmt.Errorf("TRADING_UNIVERSE must not be empty")
	}
	if len(t.DataSources) == 0 {
		return fmt.Errorf("DATA_SOURCES must list at least one source")
	}
	if t.CycleInterval <= 0 || t.SelectionInterval <= 0 {
		return fmt.Errorf("CYCLE_INTERVAL and SELECTION_INTERVAL must be positive")
	}
	if t.MaxStocksToTrade <= 0 {
		return fmt.Errorf("MAX_STOCKS_TO_TRADE must be positive")
	}
	if t.Workers <= 0 {
		return fmt.Errorf("CYCLE_WORKERS must be positive")
	}
	if t.MinConfidence < 0 || t.MinConfidence > 10 {
		return fmt.Errorf("MIN_CONFIDENCE must be within [0,10], got %.2f", t.MinConfidence)
	}
	if t.MaxPositionSize <= 0 {
		return fmt.Errorf("MAX_POSITION_SIZE must be positive")
	}
	if t.StopLossPct < 0 || t.TakeProfitPct < 0 {
		return fmt.Errorf("STOP_LOSS_PERCENTAGE and TAKE_PROFIT_PERCENTAGE must not be negative")
	}
	if _, err := time.LoadLocation(t.Timezone); err != nil {
		return fmt.Errorf("MARKET_TIMEZONE %q: %w", t.Timezone, err)
	}

	// 실거래는 Alpaca 키가 필수
	if !t.PaperTrading && (c.Alpaca.APIKey == "" || c.Alpaca.SecretKey == "") {
		return fmt.Errorf("ALPACA_API_KEY and ALPACA_SECRET_KEY are required when PAPER_TRADING=false")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsSlice splits a comma-separated value, trimming blanks
func getEnvAsSlice(key string, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
