package measures

import (
	"errors"
	"fmt"
	"math"

	"quality-backend/internal/issues"
)

var ErrInvalidDebtConfig = errors.New("invalid debt config")

// Ratings are numeric so gate conditions can compare them; A is best.
var ratingLetters = []string{"A", "B", "C", "D", "E"}

// DebtConfig drives remediation cost, debt ratio and the maintainability rating.
type DebtConfig struct {
	// RemediationMinutes is the cost of fixing one open issue per severity.
	RemediationMinutes map[issues.Severity]float64 `yaml:"remediationMinutes" json:"remediationMinutes"`
	// DevCostPerLine is the estimated minutes needed to write one line.
	DevCostPerLine float64 `yaml:"developmentCostPerLine" json:"developmentCostPerLine"`
	// RatingThresholds are the inclusive upper debt ratios of ratings A to D.
	// Anything above the last threshold rates E.
	RatingThresholds []float64 `yaml:"ratingThresholds" json:"ratingThresholds"`
}

// DefaultDebtConfig returns the built-in remediation weights and rating bands.
func DefaultDebtConfig() DebtConfig {
	return DebtConfig{
		RemediationMinutes: map[issues.Severity]float64{
			issues.SeverityInfo:     0,
			issues.SeverityMinor:    5,
			issues.SeverityMajor:    10,
			issues.SeverityCritical: 20,
			issues.SeverityBlocker:  30,
		},
		DevCostPerLine:   30,
		RatingThresholds: []float64{0.05, 0.10, 0.20, 0.50},
	}
}

// Validate rejects unknown severities, negative costs and rating thresholds
// that are not strictly increasing.
func (c DebtConfig) Validate() error {
	for sev, minutes := range c.RemediationMinutes {
		if !sev.Valid() {
			return fmt.Errorf("%w: unknown severity %q", ErrInvalidDebtConfig, sev)
		}
		if minutes < 0 || math.IsNaN(minutes) {
			return fmt.Errorf("%w: remediation minutes for %s must be >= 0", ErrInvalidDebtConfig, sev)
		}
	}
	if c.DevCostPerLine <= 0 {
		return fmt.Errorf("%w: developmentCostPerLine must be > 0", ErrInvalidDebtConfig)
	}
	if len(c.RatingThresholds) != len(ratingLetters)-1 {
		return fmt.Errorf("%w: expected %d rating thresholds, got %d", ErrInvalidDebtConfig, len(ratingLetters)-1, len(c.RatingThresholds))
	}
	prev := 0.0
	for i, th := range c.RatingThresholds {
		if th <= prev || math.IsNaN(th) {
			return fmt.Errorf("%w: rating thresholds must be positive and strictly increasing (index %d)", ErrInvalidDebtConfig, i)
		}
		prev = th
	}
	return nil
}

// RemediationCost sums the weighted cost of open issues in minutes.
func (c DebtConfig) RemediationCost(list []issues.Issue) float64 {
	var total float64
	for _, i := range list {
		if i.Status != issues.StatusOpen {
			continue
		}
		total += c.RemediationMinutes[i.Severity]
	}
	return total
}

// DebtRatio is remediation cost over the estimated development cost of size
// lines, rounded to four decimals. Zero size yields 0.
func (c DebtConfig) DebtRatio(cost float64, size int) float64 {
	if size <= 0 || c.DevCostPerLine <= 0 {
		return 0
	}
	ratio := cost / (float64(size) * c.DevCostPerLine)
	return math.Round(ratio*10000) / 10000
}

// Rating maps a debt ratio to 1 (A) through 5 (E). Lower ratios never rate worse.
func (c DebtConfig) Rating(ratio float64) int {
	for i, th := range c.RatingThresholds {
		if ratio <= th {
			return i + 1
		}
	}
	return len(c.RatingThresholds) + 1
}

// RatingLetter renders a numeric rating as A to E.
func RatingLetter(rating int) string {
	if rating < 1 || rating > len(ratingLetters) {
		return ""
	}
	return ratingLetters[rating-1]
}
