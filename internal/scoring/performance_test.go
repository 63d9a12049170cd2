package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPercentageOf(t *testing.T) {
	tests := []struct {
		name   string
		actual float64
		target float64
		want   float64
	}{
		{"zero target", 500, 0, 0},
		{"negative target", 500, -10, 0},
		{"exact", 1000, 1000, 100},
		{"over achievement kept", 1100, 1000, 110},
		{"under", 900, 1000, 90},
		{"rounds to two places", 1, 3, 33.33},
		{"rounds half up", 1, 32, 3.13},
		{"tiny ratio", 1, 8000, 0.01},
		{"two thirds", 2, 3, 66.67},
		{"far above target", 5000, 100, 5000},
		{"zero actual", 0, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PercentageOf(tt.actual, tt.target))
		})
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		pct  float64
		want Category
	}{
		{150, CategoryExcellent},
		{120, CategoryExcellent},
		{119.99, CategoryGood},
		{110, CategoryGood},
		{100, CategoryGood},
		{99.99, CategoryFair},
		{90, CategoryFair},
		{80, CategoryFair},
		{79.99, CategoryPoor},
		{0, CategoryPoor},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Categorize(tt.pct), "Categorize(%v)", tt.pct)
	}
}

func TestAggregateMetrics_Empty(t *testing.T) {
	assert.Equal(t, Metrics{}, AggregateMetrics(nil))
	assert.Equal(t, Metrics{}, AggregateMetrics([]DataPoint{}))
}

func TestAggregateMetrics_QuarterlyExample(t *testing.T) {
	points := []DataPoint{
		{Period: day(2024, 1, 1), Percentage: PercentageOf(1100, 1000)},
		{Period: day(2024, 4, 1), Percentage: PercentageOf(900, 1000)},
	}

	m := AggregateMetrics(points).Rounded()
	assert.Equal(t, 100.0, m.AveragePerformance)
	assert.Equal(t, 50.0, m.AchievementRate)
	assert.Equal(t, 90.0, m.MinPerformance)
	assert.Equal(t, 110.0, m.MaxPerformance)
	// population stddev of {110, 90} is 10
	assert.Equal(t, 99.0, m.ConsistencyScore)
	assert.Equal(t, 2, m.DataPoints)
}

func TestAggregateMetrics_ConsistencyFloor(t *testing.T) {
	points := []DataPoint{
		{Period: day(2024, 1, 1), Percentage: 0},
		{Period: day(2024, 2, 1), Percentage: 5000},
	}

	m := AggregateMetrics(points)
	// stddev 2500 -> 100 - 250 clamps to 0
	assert.Equal(t, 0.0, m.ConsistencyScore)
}

func TestAggregateMetrics_SinglePoint(t *testing.T) {
	m := AggregateMetrics([]DataPoint{{Period: day(2024, 1, 1), Percentage: 75}})
	assert.Equal(t, 75.0, m.AveragePerformance)
	assert.Equal(t, 0.0, m.AchievementRate)
	assert.Equal(t, 100.0, m.ConsistencyScore)
}

func TestImprovementScore(t *testing.T) {
	tests := []struct {
		name   string
		points []DataPoint
		want   float64
	}{
		{"no points", nil, 0},
		{"single point", []DataPoint{{day(2024, 1, 1), 50}}, 0},
		{
			"large improvement clamps to 30",
			[]DataPoint{{day(2024, 1, 1), 10}, {day(2024, 7, 1), 200}},
			30,
		},
		{
			"decline clamps to 0",
			[]DataPoint{{day(2024, 1, 1), 120}, {day(2024, 7, 1), 80}},
			0,
		},
		{
			"moderate improvement",
			[]DataPoint{{day(2024, 1, 1), 90}, {day(2024, 7, 1), 95}},
			15,
		},
		{
			// first half takes the extra point: [90, 90] vs [96]
			"odd count",
			[]DataPoint{{day(2024, 1, 1), 90}, {day(2024, 5, 1), 90}, {day(2024, 9, 1), 96}},
			18,
		},
		{
			"sorted by period before splitting",
			[]DataPoint{{day(2024, 10, 1), 100}, {day(2024, 1, 1), 98}, {day(2024, 7, 1), 100}, {day(2024, 4, 1), 98}},
			6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ImprovementScore(tt.points), 1e-9)
		})
	}
}

func TestImprovementScore_DoesNotReorderInput(t *testing.T) {
	points := []DataPoint{{day(2024, 7, 1), 100}, {day(2024, 1, 1), 90}}
	ImprovementScore(points)
	assert.Equal(t, day(2024, 7, 1), points[0].Period)
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		last    float64
		want    TrendResult
	}{
		{"no prior year", 95, 0, TrendResult{0, TrendStable}},
		{"up", 110, 100, TrendResult{10, TrendUp}},
		{"down", 90, 100, TrendResult{-10, TrendDown}},
		{"flat", 100, 100, TrendResult{0, TrendStable}},
		{"rounded", 100, 30, TrendResult{233.33, TrendUp}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Trend(tt.current, tt.last))
		})
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.01, Round2(1.005))
	assert.Equal(t, 2.5, Round2(2.499999))
	assert.Equal(t, -1.01, Round2(-1.005))
	assert.Equal(t, 77.0, Round2(77))
}
