package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/internal/scoring"
	"github.com/kwanter/sakip-sub003/internal/workflow"
	"github.com/kwanter/sakip-sub003/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoScoringData means the indicator has no validated data for the year.
var ErrNoScoringData = fmt.Errorf("no validated data to score: %w", ErrNotFound)

type ScoreService struct {
	db    *gorm.DB
	audit *SystemLogService
}

func NewScoreService(db *gorm.DB, audit *SystemLogService) *ScoreService {
	return &ScoreService{db: db, audit: audit}
}

type ScoreListRequest struct {
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PageSize      int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Year          int    `form:"year" binding:"required"`
	InstitutionID uint   `form:"institution_id"`
	Grade         string `form:"grade" binding:"omitempty,oneof=A B C D E"`
}

type ScoreListResponse struct {
	Total    int64                   `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
	Items    []models.IndicatorScore `json:"items"`
}

type RecalculateRequest struct {
	Year        int  `json:"year" binding:"required,min=2000,max=2100"`
	IndicatorID uint `json:"indicator_id"`
}

// RecalculateSummary reports a whole-year run.
type RecalculateSummary struct {
	Year    int `json:"year"`
	Scored  int `json:"scored"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// RecalculateIndicator grades the validated data of one indicator-year and
// upserts the snapshot. Without validated data any stale snapshot is
// removed and ErrNoScoringData is returned.
func (s *ScoreService) RecalculateIndicator(ctx context.Context, p Principal, indicatorID uint, year int) (*models.IndicatorScore, error) {
	var snapshot models.IndicatorScore
	empty := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ind models.Indicator
		if err := tx.First(&ind, indicatorID).Error; err != nil {
			return wrapNotFound(err, "indicator", indicatorID)
		}

		var rows []models.PerformanceData
		if err := tx.Where("indicator_id = ? AND year = ? AND status = ?", indicatorID, year, workflow.StatusValidated).
			Order("period ASC").Find(&rows).Error; err != nil {
			return err
		}

		var previous models.IndicatorScore
		prevErr := tx.Where("indicator_id = ? AND year = ?", indicatorID, year).First(&previous).Error
		hadPrevious := prevErr == nil
		if prevErr != nil && !errors.Is(prevErr, gorm.ErrRecordNotFound) {
			return prevErr
		}

		if len(rows) == 0 {
			empty = true
			if !hadPrevious {
				return nil
			}
			if err := tx.Delete(&previous).Error; err != nil {
				return err
			}
			return s.audit.Record(tx, AuditEntry{
				Actor:      p,
				Module:     "score",
				Action:     "clear",
				Message:    fmt.Sprintf("removed %d score of indicator %s: no validated data", year, ind.Code),
				EntityType: "indicator_score",
				EntityID:   previous.ID,
				Old:        previous,
			})
		}

		points := toDataPoints(rows)
		comp := scoring.ScoreComponents(points)
		metrics := scoring.AggregateMetrics(points).Rounded()
		overall := scoring.Round2(comp.Overall)

		snapshot = models.IndicatorScore{
			IndicatorID:        indicatorID,
			Year:               year,
			AchievementScore:   scoring.Round2(comp.Achievement),
			ConsistencyScore:   scoring.Round2(comp.Consistency),
			ImprovementScore:   scoring.Round2(comp.Improvement),
			OverallScore:       overall,
			Grade:              string(scoring.GradeOf(overall)),
			AveragePerformance: metrics.AveragePerformance,
			MinPerformance:     metrics.MinPerformance,
			MaxPerformance:     metrics.MaxPerformance,
			AchievementRate:    metrics.AchievementRate,
			DataPoints:         metrics.DataPoints,
			CalculatedAt:       time.Now(),
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "indicator_id"}, {Name: "year"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"achievement_score", "consistency_score", "improvement_score", "overall_score", "grade",
				"average_performance", "min_performance", "max_performance", "achievement_rate",
				"data_points", "calculated_at", "updated_at",
			}),
		}).Create(&snapshot).Error; err != nil {
			return err
		}
		if err := tx.Where("indicator_id = ? AND year = ?", indicatorID, year).First(&snapshot).Error; err != nil {
			return err
		}

		var old interface{}
		if hadPrevious {
			old = previous
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "score",
			Action:     "recalculate",
			Message:    fmt.Sprintf("graded indicator %s for %d: %.2f (%s) from %d data points", ind.Code, year, snapshot.OverallScore, snapshot.Grade, snapshot.DataPoints),
			EntityType: "indicator_score",
			EntityID:   snapshot.ID,
			Old:        old,
			New:        snapshot,
		})
	})
	if err != nil {
		ScoreRecalculations.WithLabelValues("failed").Inc()
		return nil, err
	}
	if empty {
		ScoreRecalculations.WithLabelValues("skipped").Inc()
		return nil, ErrNoScoringData
	}
	ScoreRecalculations.WithLabelValues("scored").Inc()
	return &snapshot, nil
}

// RecalculateYear regrades every active indicator. Failures are logged and
// counted; the run continues.
func (s *ScoreService) RecalculateYear(ctx context.Context, p Principal, year int) (*RecalculateSummary, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Indicator{}).Where("is_active = ?", true).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	summary := &RecalculateSummary{Year: year}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		_, err := s.RecalculateIndicator(ctx, p, id, year)
		switch {
		case err == nil:
			summary.Scored++
		case errors.Is(err, ErrNoScoringData):
			summary.Skipped++
		default:
			summary.Failed++
			logger.Error().Err(err).Uint("indicator_id", id).Int("year", year).Msg("score recalculation failed")
		}
	}
	logger.Info().Int("year", year).Int("scored", summary.Scored).Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).Msg("yearly score recalculation finished")
	return summary, nil
}

// Ranking lists yearly snapshots, best first.
func (s *ScoreService) Ranking(req *ScoreListRequest) (*ScoreListResponse, error) {
	offset := normalizePage(&req.Page, &req.PageSize, 20)

	var items []models.IndicatorScore
	var total int64

	query := s.db.Model(&models.IndicatorScore{}).Where("indicator_scores.year = ?", req.Year)
	if req.InstitutionID != 0 {
		query = query.Joins("JOIN indicators ON indicators.id = indicator_scores.indicator_id").
			Where("indicators.institution_id = ?", req.InstitutionID)
	}
	if req.Grade != "" {
		query = query.Where("indicator_scores.grade = ?", req.Grade)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	if err := query.Preload("Indicator").Offset(offset).Limit(req.PageSize).
		Order("indicator_scores.overall_score DESC, indicator_scores.indicator_id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return &ScoreListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: items}, nil
}

func (s *ScoreService) Get(indicatorID uint, year int) (*models.IndicatorScore, error) {
	var snap models.IndicatorScore
	if err := s.db.Preload("Indicator").Where("indicator_id = ? AND year = ?", indicatorID, year).First(&snap).Error; err != nil {
		return nil, wrapNotFound(err, "score for indicator", indicatorID)
	}
	return &snap, nil
}

// ProcessTask is the queue entry point.
func (s *ScoreService) ProcessTask(ctx context.Context, task *RecalculateTask) error {
	if task.IndicatorID == 0 {
		_, err := s.RecalculateYear(ctx, SystemPrincipal, task.Year)
		return err
	}
	_, err := s.RecalculateIndicator(ctx, SystemPrincipal, task.IndicatorID, task.Year)
	if errors.Is(err, ErrNoScoringData) {
		return nil
	}
	return err
}
