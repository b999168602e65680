package strategyconfig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/wonny/tradecycle/internal/selection"
)

var validate = validator.New()

// ValidationError represents a config validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s: %s", e.Field, e.Message)
}

// Warning represents a non-fatal config warning
type Warning struct {
	Code    string
	Message string
}

// Validate fills defaults, then checks field tags and cross-field constraints
// ⭐ SSOT: 전략 설정 검증은 여기서만
func Validate(cfg *Config) error {
	if err := defaults.Set(cfg); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}

	// === Universe ===
	seen := make(map[string]bool, len(cfg.Universe))
	for i, s := range cfg.Universe {
		if seen[s.Symbol] {
			return ValidationError{fmt.Sprintf("universe[%d].symbol", i), fmt.Sprintf("duplicate symbol %s", s.Symbol)}
		}
		seen[s.Symbol] = true
	}

	// === Signals ===
	if err := cfg.SignalConfig().Validate(); err != nil {
		return ValidationError{"signals", err.Error()}
	}

	// === TimeOfDay ===
	if _, err := cfg.Schedule(); err != nil {
		return ValidationError{"time_of_day", err.Error()}
	}

	// === Sector ===
	if err := cfg.SectorConfig().Validate(); err != nil {
		return ValidationError{"sector", err.Error()}
	}
	if cfg.Sector.MinMultiplier > cfg.Sector.MaxMultiplier {
		return ValidationError{"sector", "min_multiplier must be <= max_multiplier"}
	}

	// === Ranking ===
	w := selection.WeightConfig{Technical: cfg.Ranking.Weights.Technical, Sentiment: cfg.Ranking.Weights.Sentiment}
	if err := w.Validate(); err != nil {
		return ValidationError{"ranking.weights", err.Error()}
	}

	// === Screening ===
	sc := cfg.Screening
	if sc.MinPrice > 0 && sc.MaxPrice > 0 && sc.MinPrice >= sc.MaxPrice {
		return ValidationError{"screening", "min_price must be < max_price"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 섹터 미지정 종목은 배수 1.0
	var unmapped []string
	etfs := cfg.SectorConfig().ETFs
	for _, s := range cfg.Universe {
		if _, ok := etfs[s.Sector]; !ok {
			unmapped = append(unmapped, s.Symbol)
		}
	}
	if len(unmapped) > 0 {
		warnings = append(warnings, Warning{
			Code:    "UNMAPPED_SECTOR",
			Message: "no sector ETF for " + strings.Join(unmapped, ", "),
		})
	}

	if cfg.Ranking.TopK < len(cfg.Universe)/4 {
		warnings = append(warnings, Warning{
			Code:    "NARROW_SENTIMENT",
			Message: "top_k covers under a quarter of the universe",
		})
	}

	if cfg.SignalConfig().MinConfirmations == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_CONFIRMATION_GATE",
			Message: "min_confirmations=0 lets every scored symbol through",
		})
	}

	return warnings
}

// fieldError maps a validator failure onto a yaml-ish path
func fieldError(fe validator.FieldError) ValidationError {
	field := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "required"
	case "min":
		msg = fmt.Sprintf("must have at least %s entries", fe.Param())
	case "gt":
		msg = fmt.Sprintf("must be > %s", fe.Param())
	case "gte":
		msg = fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		msg = fmt.Sprintf("must be <= %s", fe.Param())
	case "gtfield":
		msg = fmt.Sprintf("must be greater than %s", strings.ToLower(fe.Param()))
	case "uppercase":
		msg = "must be uppercase"
	case "max":
		msg = fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		msg = fmt.Sprintf("failed %s check", fe.Tag())
	}
	return ValidationError{Field: field, Message: msg}
}
