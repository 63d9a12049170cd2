package scoring

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput marks a value the caller must reject before scoring.
var ErrInvalidInput = errors.New("invalid input")

type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeE Grade = "E"
)

// Grades lists every grade from best to worst.
var Grades = []Grade{GradeA, GradeB, GradeC, GradeD, GradeE}

// CriterionScore is one rubric line as entered by an assessor.
type CriterionScore struct {
	CriterionID uint
	Score       float64
	MaxScore    float64
	Weight      float64
}

// Components is the yearly indicator rubric: achievement (0-40),
// consistency (0-30) and improvement (0-30).
type Components struct {
	Achievement float64 `json:"achievement_score"`
	Consistency float64 `json:"consistency_score"`
	Improvement float64 `json:"improvement_score"`
	Overall     float64 `json:"overall_score"`
}

// WeightedScore normalizes each criterion to 0-100 and returns the weighted
// mean. Criteria with a non-positive max score or weight are skipped.
func WeightedScore(scores []CriterionScore) float64 {
	var weighted, totalWeight float64
	for _, s := range scores {
		if s.MaxScore <= 0 || s.Weight <= 0 {
			continue
		}
		weighted += s.Score / s.MaxScore * 100 * s.Weight
		totalWeight += s.Weight
	}
	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight
}

func ScoreComponents(points []DataPoint) Components {
	if len(points) == 0 {
		return Components{}
	}
	values := percentages(points)

	c := Components{
		Achievement: achievedFraction(values) * 40,
		Consistency: math.Max(0, 30-populationStdDev(values)/10),
		Improvement: ImprovementScore(points),
	}
	c.Overall = c.Achievement + c.Consistency + c.Improvement
	return c
}

func GradeOf(score float64) Grade {
	switch {
	case score >= 90:
		return GradeA
	case score >= 80:
		return GradeB
	case score >= 70:
		return GradeC
	case score >= 60:
		return GradeD
	default:
		return GradeE
	}
}

// ValidateCriterionScore rejects a score outside [0, max].
func ValidateCriterionScore(score, max float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Errorf("%w: score is not a number", ErrInvalidInput)
	}
	if score < 0 || score > max {
		return fmt.Errorf("%w: score %.2f outside [0, %.2f]", ErrInvalidInput, score, max)
	}
	return nil
}
