package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Category bands a single performance percentage.
type Category string

const (
	CategoryExcellent Category = "excellent"
	CategoryGood      Category = "good"
	CategoryFair      Category = "fair"
	CategoryPoor      Category = "poor"
)

// TrendDirection is the sign of a year-over-year change.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// DataPoint is the scoring view of one performance data row.
type DataPoint struct {
	Period     time.Time
	Percentage float64
}

// Metrics summarizes the data points of one indicator over a year.
type Metrics struct {
	AveragePerformance float64 `json:"average_performance"`
	MinPerformance     float64 `json:"min_performance"`
	MaxPerformance     float64 `json:"max_performance"`
	AchievementRate    float64 `json:"achievement_rate"`
	ConsistencyScore   float64 `json:"consistency_score"`
	DataPoints         int     `json:"data_points"`
}

// Rounded returns a copy with every field rounded to two places.
func (m Metrics) Rounded() Metrics {
	return Metrics{
		AveragePerformance: Round2(m.AveragePerformance),
		MinPerformance:     Round2(m.MinPerformance),
		MaxPerformance:     Round2(m.MaxPerformance),
		AchievementRate:    Round2(m.AchievementRate),
		ConsistencyScore:   Round2(m.ConsistencyScore),
		DataPoints:         m.DataPoints,
	}
}

type TrendResult struct {
	Value     float64        `json:"value"`
	Direction TrendDirection `json:"direction"`
}

var hundred = decimal.NewFromInt(100)

// PercentageOf returns actual as a percentage of target, rounded to two places.
// A non-positive target yields 0. Values above 100 are kept.
func PercentageOf(actual, target float64) float64 {
	if target <= 0 || math.IsNaN(target) || math.IsInf(target, 0) || math.IsNaN(actual) || math.IsInf(actual, 0) {
		return 0
	}
	pct := decimal.NewFromFloat(actual).
		Div(decimal.NewFromFloat(target)).
		Mul(hundred).
		Round(2)
	return pct.InexactFloat64()
}

func Categorize(pct float64) Category {
	switch {
	case pct >= 120:
		return CategoryExcellent
	case pct >= 100:
		return CategoryGood
	case pct >= 80:
		return CategoryFair
	default:
		return CategoryPoor
	}
}

func percentages(points []DataPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Percentage
	}
	return out
}

// achievedFraction is the share of points at or above 100%.
func achievedFraction(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	achieved := 0
	for _, v := range values {
		if v >= 100 {
			achieved++
		}
	}
	return float64(achieved) / float64(len(values))
}

// AggregateMetrics computes unrounded summary statistics. Empty input
// returns the zero Metrics.
func AggregateMetrics(points []DataPoint) Metrics {
	if len(points) == 0 {
		return Metrics{}
	}
	values := percentages(points)

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	return Metrics{
		AveragePerformance: mean(values),
		MinPerformance:     lo,
		MaxPerformance:     hi,
		AchievementRate:    achievedFraction(values) * 100,
		ConsistencyScore:   math.Max(0, 100-populationStdDev(values)/10),
		DataPoints:         len(values),
	}
}

// ImprovementScore rewards a higher average in the later half of the year.
// The result is in [0, 30]; fewer than two points score 0.
func ImprovementScore(points []DataPoint) float64 {
	n := len(points)
	if n < 2 {
		return 0
	}

	sorted := make([]DataPoint, n)
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Period.Before(sorted[j].Period)
	})

	values := percentages(sorted)
	split := (n + 1) / 2
	delta := mean(values[split:]) - mean(values[:split])

	return clamp(delta/10*30, 0, 30)
}

// Trend compares this year's average against last year's.
func Trend(current, last float64) TrendResult {
	if last == 0 {
		return TrendResult{Value: 0, Direction: TrendStable}
	}

	value := Round2((current - last) / last * 100)
	switch {
	case value > 0:
		return TrendResult{Value: value, Direction: TrendUp}
	case value < 0:
		return TrendResult{Value: value, Direction: TrendDown}
	default:
		return TrendResult{Value: 0, Direction: TrendStable}
	}
}
