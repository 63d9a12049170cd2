package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/internal/scoring"
	"github.com/kwanter/sakip-sub003/internal/workflow"
	"github.com/kwanter/sakip-sub003/pkg/logger"
	"gorm.io/gorm"
)

type PerformanceDataService struct {
	db    *gorm.DB
	queue TaskQueue
	transitioner
}

func NewPerformanceDataService(db *gorm.DB, machine *workflow.Machine, audit *SystemLogService, queue TaskQueue) *PerformanceDataService {
	return &PerformanceDataService{
		db:           db,
		queue:        queue,
		transitioner: transitioner{machine: machine, audit: audit},
	}
}

const dateLayout = "2006-01-02"

type PerformanceDataListRequest struct {
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PageSize      int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	IndicatorID   uint   `form:"indicator_id"`
	InstitutionID uint   `form:"institution_id"`
	Year          int    `form:"year"`
	Status        string `form:"status"`
	Category      string `form:"category" binding:"omitempty,oneof=excellent good fair poor"`
}

type PerformanceDataListResponse struct {
	Total    int64                    `json:"total"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"page_size"`
	Items    []models.PerformanceData `json:"items"`
}

type CreatePerformanceDataRequest struct {
	IndicatorID uint    `json:"indicator_id" binding:"required"`
	Period      string  `json:"period" binding:"required"` // YYYY-MM-DD, normalized to the bucket start
	ActualValue float64 `json:"actual_value"`
	Notes       string  `json:"notes"`
}

type UpdatePerformanceDataRequest struct {
	ActualValue *float64 `json:"actual_value"`
	Notes       *string  `json:"notes"`
}

// DataChange reports the persisted data point and any status demotion.
type DataChange struct {
	Data    *models.PerformanceData `json:"data"`
	Outcome workflow.Outcome        `json:"outcome"`
}

// IndicatorMetrics is the yearly picture of one indicator.
type IndicatorMetrics struct {
	IndicatorID      uint                 `json:"indicator_id"`
	Year             int                  `json:"year"`
	Metrics          scoring.Metrics      `json:"metrics"`
	ImprovementScore float64              `json:"improvement_score"`
	LastYearAverage  float64              `json:"last_year_average"`
	Trend            scoring.TrendResult  `json:"trend"`
	Points           []MetricsPeriodPoint `json:"points"`
}

type MetricsPeriodPoint struct {
	Period     string           `json:"period"`
	Percentage float64          `json:"percentage"`
	Category   scoring.Category `json:"category"`
	Status     workflow.Status  `json:"status"`
}

func (s *PerformanceDataService) List(req *PerformanceDataListRequest) (*PerformanceDataListResponse, error) {
	offset := normalizePage(&req.Page, &req.PageSize, 20)

	var items []models.PerformanceData
	var total int64

	query := s.db.Model(&models.PerformanceData{})
	if req.IndicatorID != 0 {
		query = query.Where("performance_data.indicator_id = ?", req.IndicatorID)
	}
	if req.InstitutionID != 0 {
		query = query.Joins("JOIN indicators ON indicators.id = performance_data.indicator_id").
			Where("indicators.institution_id = ?", req.InstitutionID)
	}
	if req.Year != 0 {
		query = query.Where("performance_data.year = ?", req.Year)
	}
	if req.Status != "" {
		if !workflow.ValidStatus(workflow.KindPerformanceData, workflow.Status(req.Status)) {
			return nil, invalidf("unknown performance data status %q", req.Status)
		}
		query = query.Where("performance_data.status = ?", req.Status)
	}
	if req.Category != "" {
		query = query.Where("performance_data.category = ?", req.Category)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	if err := query.Preload("Indicator").Offset(offset).Limit(req.PageSize).
		Order("performance_data.period DESC, performance_data.indicator_id ASC").Find(&items).Error; err != nil {
		return nil, err
	}

	return &PerformanceDataListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: items}, nil
}

func (s *PerformanceDataService) GetByID(id uint) (*models.PerformanceData, error) {
	var d models.PerformanceData
	if err := s.db.Preload("Indicator").First(&d, id).Error; err != nil {
		return nil, wrapNotFound(err, "performance data", id)
	}
	return &d, nil
}

// resolveTarget finds the target for an indicator-year. A missing target
// yields a nil target and a zero value.
func resolveTarget(tx *gorm.DB, indicatorID uint, year int) (*models.Target, error) {
	var t models.Target
	err := tx.Where("indicator_id = ? AND year = ?", indicatorID, year).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// score fills the target link and derived fields of d.
func score(tx *gorm.DB, d *models.PerformanceData) error {
	target, err := resolveTarget(tx, d.IndicatorID, d.Year)
	if err != nil {
		return err
	}
	d.TargetID = nil
	d.TargetValue = 0
	if target != nil {
		d.TargetID = &target.ID
		d.TargetValue = target.TargetValue
	}
	d.PerformancePercentage = scoring.PercentageOf(d.ActualValue, d.TargetValue)
	d.Category = string(scoring.Categorize(d.PerformancePercentage))
	ScoredDataPoints.Inc()
	return nil
}

func (s *PerformanceDataService) Create(p Principal, req *CreatePerformanceDataRequest) (*DataChange, error) {
	raw, err := time.Parse(dateLayout, req.Period)
	if err != nil {
		return nil, invalidf("period must be YYYY-MM-DD")
	}
	if req.ActualValue < 0 {
		return nil, invalidf("actual value must not be negative")
	}

	var data models.PerformanceData
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var ind models.Indicator
		if err := tx.First(&ind, req.IndicatorID).Error; err != nil {
			return wrapNotFound(err, "indicator", req.IndicatorID)
		}
		if !ind.IsActive {
			return invalidf("indicator %s is inactive", ind.Code)
		}

		freq := scoring.Frequency(ind.Frequency)
		period, err := scoring.PeriodStart(freq, raw)
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.PerformanceData{}).
			Where("indicator_id = ? AND period = ?", ind.ID, period).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return conflictf("indicator %s already has data for %s", ind.Code, scoring.PeriodLabel(freq, period))
		}

		data = models.PerformanceData{
			IndicatorID: ind.ID,
			Period:      period,
			PeriodLabel: scoring.PeriodLabel(freq, period),
			Year:        period.Year(),
			ActualValue: req.ActualValue,
			Status:      workflow.StatusDraft,
			Notes:       req.Notes,
			CreatedBy:   p.UserID,
		}
		if err := score(tx, &data); err != nil {
			return err
		}
		if err := tx.Create(&data).Error; err != nil {
			return wrapDuplicate(err, "data already exists for this indicator period")
		}

		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "performance_data",
			Action:     "create",
			Message:    fmt.Sprintf("recorded %s for indicator %s: %.2f%% (%s)", data.PeriodLabel, ind.Code, data.PerformancePercentage, data.Category),
			EntityType: string(workflow.KindPerformanceData),
			EntityID:   data.ID,
			New:        data,
		})
	})
	if err != nil {
		return nil, err
	}
	return &DataChange{
		Data:    &data,
		Outcome: workflow.Outcome{Kind: workflow.KindPerformanceData, NewStatus: data.Status},
	}, nil
}

// Update changes the actual value and recomputes derived fields. Editing
// validated data demotes it to draft and schedules a score recalculation.
func (s *PerformanceDataService) Update(p Principal, id uint, req *UpdatePerformanceDataRequest) (*DataChange, error) {
	if req.ActualValue != nil && *req.ActualValue < 0 {
		return nil, invalidf("actual value must not be negative")
	}

	var change DataChange
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var data models.PerformanceData
		if err := tx.First(&data, id).Error; err != nil {
			return wrapNotFound(err, "performance data", id)
		}
		before := data

		out, err := s.machine.Apply(workflow.Request{
			Kind:   workflow.KindPerformanceData,
			From:   data.Status,
			Action: workflow.ActionEdit,
			Actor:  p.Actor(),
		})
		if err != nil {
			return err
		}

		if req.ActualValue != nil {
			data.ActualValue = *req.ActualValue
		}
		if req.Notes != nil {
			data.Notes = *req.Notes
		}
		if err := score(tx, &data); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"actual_value":           data.ActualValue,
			"notes":                  data.Notes,
			"target_id":              data.TargetID,
			"target_value":           data.TargetValue,
			"performance_percentage": data.PerformancePercentage,
			"category":               data.Category,
			"status":                 out.NewStatus,
		}
		if out.Demoted {
			updates["validated_by"] = nil
			updates["validated_at"] = nil
		}
		if err := guardedUpdate(tx, &models.PerformanceData{}, id, before.Status, updates); err != nil {
			return err
		}
		if out.Demoted {
			if err := s.demoteAssessment(tx, p, id); err != nil {
				return err
			}
		}

		msg := fmt.Sprintf("updated %s data point %d: %.2f%% (%s)", data.PeriodLabel, id, data.PerformancePercentage, data.Category)
		if out.Demoted {
			msg += "; " + out.SideEffect
		}
		if err := s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "performance_data",
			Action:     "update",
			Message:    msg,
			EntityType: string(workflow.KindPerformanceData),
			EntityID:   id,
			Old:        before,
			New:        updates,
		}); err != nil {
			return err
		}

		if err := tx.First(&data, id).Error; err != nil {
			return err
		}
		change = DataChange{Data: &data, Outcome: out}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if change.Outcome.Demoted {
		s.scheduleRecalculation(change.Data.IndicatorID, change.Data.Year)
	}
	return &change, nil
}

func (s *PerformanceDataService) Submit(p Principal, id uint) (*models.PerformanceData, error) {
	return s.act(p, id, workflow.ActionSubmit, "")
}

// Validate accepts submitted data and schedules the indicator's yearly
// score recalculation.
func (s *PerformanceDataService) Validate(p Principal, id uint) (*models.PerformanceData, error) {
	data, err := s.act(p, id, workflow.ActionValidate, "")
	if err != nil {
		return nil, err
	}
	s.scheduleRecalculation(data.IndicatorID, data.Year)
	return data, nil
}

func (s *PerformanceDataService) Reject(p Principal, id uint, reason string) (*models.PerformanceData, error) {
	return s.act(p, id, workflow.ActionReject, reason)
}

func (s *PerformanceDataService) act(p Principal, id uint, action workflow.Action, reason string) (*models.PerformanceData, error) {
	var out workflow.Outcome
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var data models.PerformanceData
		if err := tx.First(&data, id).Error; err != nil {
			return wrapNotFound(err, "performance data", id)
		}
		var err error
		out, err = s.run(tx, p, transition{
			kind:   workflow.KindPerformanceData,
			module: "performance_data",
			table:  &models.PerformanceData{},
			id:     id,
			from:   data.Status,
			action: action,
			reason: reason,
			columns: func(out workflow.Outcome, now time.Time) map[string]interface{} {
				switch out.Action {
				case workflow.ActionSubmit:
					return map[string]interface{}{"submitted_by": userRef(p), "submitted_at": now, "rejection_reason": ""}
				case workflow.ActionValidate:
					return map[string]interface{}{"validated_by": userRef(p), "validated_at": now}
				case workflow.ActionReject:
					return map[string]interface{}{"rejection_reason": out.Reason}
				}
				return nil
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	committed(out)
	return s.GetByID(id)
}

// Delete removes draft or rejected data together with its assessment.
// An assessment that may not be deleted on its own blocks the delete.
func (s *PerformanceDataService) Delete(p Principal, id uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var data models.PerformanceData
		if err := tx.First(&data, id).Error; err != nil {
			return wrapNotFound(err, "performance data", id)
		}
		if _, err := s.machine.Apply(workflow.Request{
			Kind:   workflow.KindPerformanceData,
			From:   data.Status,
			Action: workflow.ActionDelete,
			Actor:  p.Actor(),
		}); err != nil {
			return err
		}

		var linked []models.Assessment
		if err := tx.Where("performance_data_id = ?", id).Find(&linked).Error; err != nil {
			return err
		}
		assessmentIDs := make([]uint, 0, len(linked))
		for _, a := range linked {
			if err := s.machine.CanDelete(workflow.KindAssessment, a.Status); err != nil {
				return err
			}
			assessmentIDs = append(assessmentIDs, a.ID)
		}
		if len(assessmentIDs) > 0 {
			if err := tx.Where("assessment_id IN ?", assessmentIDs).Delete(&models.AssessmentCriterionScore{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", assessmentIDs).Delete(&models.Assessment{}).Error; err != nil {
				return err
			}
		}

		if err := guardedDelete(tx, &models.PerformanceData{}, id, data.Status); err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "performance_data",
			Action:     "delete",
			Message:    fmt.Sprintf("deleted %s data point for indicator %d", data.PeriodLabel, data.IndicatorID),
			EntityType: string(workflow.KindPerformanceData),
			EntityID:   id,
			Old:        data,
		})
	})
	if err == nil {
		committed(workflow.Outcome{Kind: workflow.KindPerformanceData, Action: workflow.ActionDelete})
	}
	return err
}

// demoteAssessment returns an approved assessment of data that just lost
// its validation to draft. An assessment under review blocks the edit.
func (s *PerformanceDataService) demoteAssessment(tx *gorm.DB, p Principal, dataID uint) error {
	var a models.Assessment
	err := tx.Where("performance_data_id = ?", dataID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	out, err := s.machine.Edit(workflow.KindAssessment, a.Status)
	if err != nil {
		return err
	}
	if !out.Demoted {
		return nil
	}
	updates := map[string]interface{}{
		"status":      out.NewStatus,
		"reviewed_by": nil,
		"reviewed_at": nil,
	}
	if err := guardedUpdate(tx, &models.Assessment{}, a.ID, a.Status, updates); err != nil {
		return err
	}
	return s.audit.Record(tx, AuditEntry{
		Actor:      p,
		Module:     "assessment",
		Action:     "update",
		Message:    fmt.Sprintf("assessment %d returned to %s: data point %d was edited", a.ID, out.NewStatus, dataID),
		EntityType: string(workflow.KindAssessment),
		EntityID:   a.ID,
		Old:        a,
		New:        updates,
	})
}

// Metrics aggregates an indicator's validated data for a year and
// compares the average with the previous year.
func (s *PerformanceDataService) Metrics(indicatorID uint, year int) (*IndicatorMetrics, error) {
	var ind models.Indicator
	if err := s.db.First(&ind, indicatorID).Error; err != nil {
		return nil, wrapNotFound(err, "indicator", indicatorID)
	}

	rows, err := s.loadPoints(indicatorID, year)
	if err != nil {
		return nil, err
	}
	lastRows, err := s.loadPoints(indicatorID, year-1)
	if err != nil {
		return nil, err
	}

	points := toDataPoints(rows)
	current := scoring.AggregateMetrics(points)
	last := scoring.AggregateMetrics(toDataPoints(lastRows))

	result := &IndicatorMetrics{
		IndicatorID:      indicatorID,
		Year:             year,
		Metrics:          current.Rounded(),
		ImprovementScore: scoring.Round2(scoring.ImprovementScore(points)),
		LastYearAverage:  scoring.Round2(last.AveragePerformance),
		Trend:            scoring.Trend(current.AveragePerformance, last.AveragePerformance),
		Points:           make([]MetricsPeriodPoint, 0, len(rows)),
	}
	for _, r := range rows {
		result.Points = append(result.Points, MetricsPeriodPoint{
			Period:     r.PeriodLabel,
			Percentage: r.PerformancePercentage,
			Category:   scoring.Category(r.Category),
			Status:     r.Status,
		})
	}
	return result, nil
}

func (s *PerformanceDataService) loadPoints(indicatorID uint, year int) ([]models.PerformanceData, error) {
	var rows []models.PerformanceData
	err := s.db.Where("indicator_id = ? AND year = ? AND status = ?", indicatorID, year, workflow.StatusValidated).
		Order("period ASC").
		Find(&rows).Error
	return rows, err
}

func toDataPoints(rows []models.PerformanceData) []scoring.DataPoint {
	points := make([]scoring.DataPoint, len(rows))
	for i, r := range rows {
		points[i] = scoring.DataPoint{Period: r.Period, Percentage: r.PerformancePercentage}
	}
	return points
}

func (s *PerformanceDataService) scheduleRecalculation(indicatorID uint, year int) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(&RecalculateTask{IndicatorID: indicatorID, Year: year}); err != nil {
		logger.Error().Err(err).Uint("indicator_id", indicatorID).Int("year", year).Msg("failed to enqueue score recalculation")
	}
}
