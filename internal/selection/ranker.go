package selection

import (
	"fmt"
	"math"
	"sort"

	"github.com/wonny/tradecycle/internal/contracts"
)

// WeightConfig blends adjusted technical and sentiment scores
type WeightConfig struct {
	Technical float64 `yaml:"technical" json:"technical"` // 기본: 0.7
	Sentiment float64 `yaml:"sentiment" json:"sentiment"` // 기본: 0.3
}

// DefaultWeightConfig returns the 70/30 blend
func DefaultWeightConfig() WeightConfig {
	return WeightConfig{Technical: 0.7, Sentiment: 0.3}
}

// Validate checks the weights are non-negative and sum to 1.0
func (w WeightConfig) Validate() error {
	if w.Technical < 0 || w.Sentiment < 0 {
		return fmt.Errorf("composite weights must not be negative")
	}
	if sum := w.Technical + w.Sentiment; math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("composite weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}

// Composite returns technical·adjusted + sentiment·score
func (w WeightConfig) Composite(adjusted, sentiment float64) float64 {
	return w.Technical*adjusted + w.Sentiment*sentiment
}

// sortByAdjusted orders sentiment candidates: adjusted desc, technical desc, symbol asc
func sortByAdjusted(c []contracts.CandidateScore) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].AdjustedTechnical != c[j].AdjustedTechnical {
			return c[i].AdjustedTechnical > c[j].AdjustedTechnical
		}
		if c[i].TechnicalScore != c[j].TechnicalScore {
			return c[i].TechnicalScore > c[j].TechnicalScore
		}
		return c[i].Symbol < c[j].Symbol
	})
}

// sortByComposite is the final ranking: composite desc, technical desc, symbol asc
func sortByComposite(c []contracts.CandidateScore) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].CompositeScore != c[j].CompositeScore {
			return c[i].CompositeScore > c[j].CompositeScore
		}
		if c[i].TechnicalScore != c[j].TechnicalScore {
			return c[i].TechnicalScore > c[j].TechnicalScore
		}
		return c[i].Symbol < c[j].Symbol
	})
}
