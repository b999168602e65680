package strategyconfig

import "time"

// Config는 종목 선정 전략의 전체 설정
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Universe  []Stock   `yaml:"universe" json:"universe" validate:"required,min=1,dive"`
	Signals   Signals   `yaml:"signals" json:"signals"`
	TimeOfDay TimeOfDay `yaml:"time_of_day" json:"time_of_day"`
	Sector    Sector    `yaml:"sector" json:"sector"`
	Ranking   Ranking   `yaml:"ranking" json:"ranking"`
	Screening Screening `yaml:"screening" json:"screening"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id" validate:"required"`
	Version    string `yaml:"version" json:"version" default:"1"`
	Timezone   string `yaml:"timezone" json:"timezone" default:"America/New_York" validate:"required"`
}

// Stock is one universe member; Sector maps it to a sector ETF
type Stock struct {
	Symbol string `yaml:"symbol" json:"symbol" validate:"required,uppercase,max=7"`
	Sector string `yaml:"sector" json:"sector"`
}

// Signals 기술적 시그널 파라미터
type Signals struct {
	Window           int           `yaml:"window" json:"window" default:"50" validate:"gte=21"`
	MomentumPeriod   int           `yaml:"momentum_period" json:"momentum_period" default:"5" validate:"gt=0"`
	BaselinePeriod   int           `yaml:"baseline_period" json:"baseline_period" default:"20" validate:"gtfield=MomentumPeriod"`
	VolumePeriod     int           `yaml:"volume_period" json:"volume_period" default:"20" validate:"gt=0"`
	BreakoutPeriod   int           `yaml:"breakout_period" json:"breakout_period" default:"20" validate:"gt=0"`
	MomentumScale    float64       `yaml:"momentum_scale" json:"momentum_scale" default:"5" validate:"gt=0"`
	VolumeSaturation float64       `yaml:"volume_saturation" json:"volume_saturation" default:"3" validate:"gt=1"`
	Threshold        float64       `yaml:"threshold" json:"threshold" default:"6" validate:"gte=0,lte=10"`
	MinConfirmations *int          `yaml:"min_confirmations" json:"min_confirmations" default:"2" validate:"gte=0,lte=3"` // 0 허용: 포인터
	Weights          SignalWeights `yaml:"weights" json:"weights"`
}

// SignalWeights 하위 시그널 가중치 (합계 1.0)
type SignalWeights struct {
	Momentum    float64 `yaml:"momentum" json:"momentum" default:"0.4" validate:"gte=0,lte=1"`
	VolumeSpike float64 `yaml:"volume_spike" json:"volume_spike" default:"0.3" validate:"gte=0,lte=1"`
	Breakout    float64 `yaml:"breakout" json:"breakout" default:"0.3" validate:"gte=0,lte=1"`
}

// TimeOfDay 장중 시간대 가중치. 비어 있으면 기본 시간대 사용
type TimeOfDay struct {
	Windows []Window `yaml:"windows" json:"windows" validate:"dive"`
}

// Window is an intraday boost window in market local time
type Window struct {
	Name   string  `yaml:"name" json:"name" validate:"required"`
	Start  string  `yaml:"start" json:"start" validate:"required"` // HH:MM
	End    string  `yaml:"end" json:"end" validate:"required"`     // HH:MM
	Factor float64 `yaml:"factor" json:"factor" validate:"gt=0,lte=3"`
}

// Sector 섹터 상대강도 파라미터
type Sector struct {
	Benchmark     string            `yaml:"benchmark" json:"benchmark" default:"SPY" validate:"required"`
	Window        int               `yaml:"window" json:"window" default:"20" validate:"gt=0"`
	Sensitivity   float64           `yaml:"sensitivity" json:"sensitivity" default:"5" validate:"gte=0"`
	MinMultiplier float64           `yaml:"min_multiplier" json:"min_multiplier" default:"0.8" validate:"gt=0,lte=1"`
	MaxMultiplier float64           `yaml:"max_multiplier" json:"max_multiplier" default:"1.3" validate:"gte=1"`
	CacheTTL      time.Duration     `yaml:"cache_ttl" json:"cache_ttl" default:"30m"`
	ETFs          map[string]string `yaml:"etfs" json:"etfs"` // 비어 있으면 기본 ETF
}

// Ranking 복합 점수 및 선정 파라미터
type Ranking struct {
	TopK             int           `yaml:"top_k" json:"top_k" default:"10" validate:"gt=0"`
	SentimentWorkers int           `yaml:"sentiment_workers" json:"sentiment_workers" default:"4" validate:"gt=0"`
	SentimentTimeout time.Duration `yaml:"sentiment_timeout" json:"sentiment_timeout" default:"10s"`
	Weights          BlendWeights  `yaml:"weights" json:"weights"`
}

// BlendWeights 기술적/감성 가중치 (합계 1.0)
type BlendWeights struct {
	Technical float64 `yaml:"technical" json:"technical" default:"0.7" validate:"gte=0,lte=1"`
	Sentiment float64 `yaml:"sentiment" json:"sentiment" default:"0.3" validate:"gte=0,lte=1"`
}

// Screening 유동성 필터. 0이면 해당 조건 미적용
type Screening struct {
	MinPrice  float64 `yaml:"min_price" json:"min_price" validate:"gte=0"`
	MaxPrice  float64 `yaml:"max_price" json:"max_price" validate:"gte=0"`
	MinVolume int64   `yaml:"min_volume" json:"min_volume" validate:"gte=0"`
}

// DecisionSnapshot 감사용 설정 스냅샷
type DecisionSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}
