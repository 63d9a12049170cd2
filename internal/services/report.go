package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/internal/scoring"
	"github.com/kwanter/sakip-sub003/internal/workflow"
	"gorm.io/gorm"
)

type ReportService struct {
	db *gorm.DB
	transitioner
}

func NewReportService(db *gorm.DB, machine *workflow.Machine, audit *SystemLogService) *ReportService {
	return &ReportService{db: db, transitioner: transitioner{machine: machine, audit: audit}}
}

type ReportListRequest struct {
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PageSize      int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	InstitutionID uint   `form:"institution_id"`
	Year          int    `form:"year"`
	Status        string `form:"status"`
}

type ReportListResponse struct {
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Items    []models.Report `json:"items"`
}

type CreateReportRequest struct {
	InstitutionID uint   `json:"institution_id" binding:"required"`
	Title         string `json:"title" binding:"required,max=255"`
	Year          int    `json:"year" binding:"required,min=2000,max=2100"`
	PeriodStart   string `json:"period_start"` // YYYY-MM-DD, defaults to Jan 1 of Year
	PeriodEnd     string `json:"period_end"`   // YYYY-MM-DD, defaults to Dec 31 of Year
	Notes         string `json:"notes"`
}

type UpdateReportRequest struct {
	Title *string `json:"title" binding:"omitempty,max=255"`
	Notes *string `json:"notes"`
}

// ReportChange reports the persisted report and any status demotion.
type ReportChange struct {
	Report  *models.Report   `json:"report"`
	Outcome workflow.Outcome `json:"outcome"`
}

// ReportDetail adds the per-indicator breakdown behind the summary.
type ReportDetail struct {
	Report     *models.Report    `json:"report"`
	Indicators []IndicatorDigest `json:"indicators"`
}

type IndicatorDigest struct {
	IndicatorID uint            `json:"indicator_id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Metrics     scoring.Metrics `json:"metrics"`
	Category    string          `json:"category"`
}

// reportSummary holds the derived columns of a report.
type reportSummary struct {
	IndicatorCount     int
	DataPointCount     int
	AveragePerformance float64
	AchievementRate    float64
	ConsistencyScore   float64
}

func (r reportSummary) columns() map[string]interface{} {
	return map[string]interface{}{
		"indicator_count":     r.IndicatorCount,
		"data_point_count":    r.DataPointCount,
		"average_performance": r.AveragePerformance,
		"achievement_rate":    r.AchievementRate,
		"consistency_score":   r.ConsistencyScore,
	}
}

// periodData loads the validated data of an institution's indicators
// whose period falls inside [start, end].
func periodData(tx *gorm.DB, institutionID uint, start, end time.Time) ([]models.PerformanceData, error) {
	var rows []models.PerformanceData
	err := tx.Model(&models.PerformanceData{}).
		Joins("JOIN indicators ON indicators.id = performance_data.indicator_id").
		Where("indicators.institution_id = ?", institutionID).
		Where("performance_data.status = ?", workflow.StatusValidated).
		Where("performance_data.period >= ? AND performance_data.period <= ?", start, end).
		Order("performance_data.indicator_id ASC, performance_data.period ASC").
		Find(&rows).Error
	return rows, err
}

func summarize(rows []models.PerformanceData) reportSummary {
	indicators := make(map[uint]bool)
	for _, r := range rows {
		indicators[r.IndicatorID] = true
	}
	m := scoring.AggregateMetrics(toDataPoints(rows)).Rounded()
	return reportSummary{
		IndicatorCount:     len(indicators),
		DataPointCount:     len(rows),
		AveragePerformance: m.AveragePerformance,
		AchievementRate:    m.AchievementRate,
		ConsistencyScore:   m.ConsistencyScore,
	}
}

func parseReportPeriod(year int, startRaw, endRaw string) (time.Time, time.Time, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	if startRaw != "" {
		t, err := time.Parse(dateLayout, startRaw)
		if err != nil {
			return start, end, invalidf("period_start must be YYYY-MM-DD")
		}
		start = t
	}
	if endRaw != "" {
		t, err := time.Parse(dateLayout, endRaw)
		if err != nil {
			return start, end, invalidf("period_end must be YYYY-MM-DD")
		}
		end = t
	}
	if end.Before(start) {
		return start, end, invalidf("period_end is before period_start")
	}
	return start, end, nil
}

func (s *ReportService) List(req *ReportListRequest) (*ReportListResponse, error) {
	offset := normalizePage(&req.Page, &req.PageSize, 20)

	var items []models.Report
	var total int64

	query := s.db.Model(&models.Report{})
	if req.InstitutionID != 0 {
		query = query.Where("institution_id = ?", req.InstitutionID)
	}
	if req.Year != 0 {
		query = query.Where("year = ?", req.Year)
	}
	if req.Status != "" {
		if !workflow.ValidStatus(workflow.KindReport, workflow.Status(req.Status)) {
			return nil, invalidf("unknown report status %q", req.Status)
		}
		query = query.Where("status = ?", req.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	if err := query.Preload("Institution").Offset(offset).Limit(req.PageSize).
		Order("year DESC, id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return &ReportListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: items}, nil
}

func (s *ReportService) GetByID(id uint) (*models.Report, error) {
	var r models.Report
	if err := s.db.Preload("Institution").First(&r, id).Error; err != nil {
		return nil, wrapNotFound(err, "report", id)
	}
	return &r, nil
}

// Detail returns the report with a per-indicator breakdown computed from
// the data currently in its period.
func (s *ReportService) Detail(id uint) (*ReportDetail, error) {
	r, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	rows, err := periodData(s.db, r.InstitutionID, r.PeriodStart, r.PeriodEnd)
	if err != nil {
		return nil, err
	}

	byIndicator := make(map[uint][]models.PerformanceData)
	var order []uint
	for _, row := range rows {
		if _, ok := byIndicator[row.IndicatorID]; !ok {
			order = append(order, row.IndicatorID)
		}
		byIndicator[row.IndicatorID] = append(byIndicator[row.IndicatorID], row)
	}

	detail := &ReportDetail{Report: r, Indicators: make([]IndicatorDigest, 0, len(order))}
	if len(order) == 0 {
		return detail, nil
	}
	var indicators []models.Indicator
	if err := s.db.Where("id IN ?", order).Find(&indicators).Error; err != nil {
		return nil, err
	}
	names := make(map[uint]models.Indicator, len(indicators))
	for _, ind := range indicators {
		names[ind.ID] = ind
	}
	for _, indID := range order {
		m := scoring.AggregateMetrics(toDataPoints(byIndicator[indID]))
		detail.Indicators = append(detail.Indicators, IndicatorDigest{
			IndicatorID: indID,
			Code:        names[indID].Code,
			Name:        names[indID].Name,
			Metrics:     m.Rounded(),
			Category:    string(scoring.Categorize(scoring.Round2(m.AveragePerformance))),
		})
	}
	return detail, nil
}

func (s *ReportService) Create(p Principal, req *CreateReportRequest) (*models.Report, error) {
	start, end, err := parseReportPeriod(req.Year, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}

	var r models.Report
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var inst models.Institution
		if err := tx.First(&inst, req.InstitutionID).Error; err != nil {
			return wrapNotFound(err, "institution", req.InstitutionID)
		}

		rows, err := periodData(tx, inst.ID, start, end)
		if err != nil {
			return err
		}
		sum := summarize(rows)

		r = models.Report{
			InstitutionID:      inst.ID,
			Title:              strings.TrimSpace(req.Title),
			Year:               req.Year,
			PeriodStart:        start,
			PeriodEnd:          end,
			Status:             workflow.StatusDraft,
			IndicatorCount:     sum.IndicatorCount,
			DataPointCount:     sum.DataPointCount,
			AveragePerformance: sum.AveragePerformance,
			AchievementRate:    sum.AchievementRate,
			ConsistencyScore:   sum.ConsistencyScore,
			Notes:              req.Notes,
			CreatedBy:          p.UserID,
		}
		if err := tx.Create(&r).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "report",
			Action:     "create",
			Message:    fmt.Sprintf("created report %q for %s: %d data points, average %.2f%%", r.Title, inst.Code, r.DataPointCount, r.AveragePerformance),
			EntityType: string(workflow.KindReport),
			EntityID:   r.ID,
			New:        r,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(r.ID)
}

// Update edits the descriptive fields. Editing an approved report demotes
// it to draft.
func (s *ReportService) Update(p Principal, id uint, req *UpdateReportRequest) (*ReportChange, error) {
	return s.edit(p, id, "update", func(tx *gorm.DB, r *models.Report, updates map[string]interface{}) error {
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return invalidf("title must not be empty")
			}
			updates["title"] = title
		}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
		}
		return nil
	})
}

// Refresh recomputes the summary from the data currently validated in the
// report's period.
func (s *ReportService) Refresh(p Principal, id uint) (*ReportChange, error) {
	return s.edit(p, id, "refresh", func(tx *gorm.DB, r *models.Report, updates map[string]interface{}) error {
		rows, err := periodData(tx, r.InstitutionID, r.PeriodStart, r.PeriodEnd)
		if err != nil {
			return err
		}
		for k, v := range summarize(rows).columns() {
			updates[k] = v
		}
		return nil
	})
}

func (s *ReportService) edit(p Principal, id uint, action string, apply func(tx *gorm.DB, r *models.Report, updates map[string]interface{}) error) (*ReportChange, error) {
	var out workflow.Outcome
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var r models.Report
		if err := tx.First(&r, id).Error; err != nil {
			return wrapNotFound(err, "report", id)
		}
		before := r

		var err error
		out, err = s.machine.Apply(workflow.Request{
			Kind:   workflow.KindReport,
			From:   r.Status,
			Action: workflow.ActionEdit,
			Actor:  p.Actor(),
		})
		if err != nil {
			return err
		}

		updates := map[string]interface{}{"status": out.NewStatus}
		if err := apply(tx, &r, updates); err != nil {
			return err
		}
		if out.Demoted {
			updates["approved_by"] = nil
			updates["approved_at"] = nil
		}
		if err := guardedUpdate(tx, &models.Report{}, id, before.Status, updates); err != nil {
			return err
		}

		msg := fmt.Sprintf("%s report %d", action, id)
		if out.Demoted {
			msg += "; " + out.SideEffect
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "report",
			Action:     action,
			Message:    msg,
			EntityType: string(workflow.KindReport),
			EntityID:   id,
			Old:        before,
			New:        updates,
		})
	})
	if err != nil {
		return nil, err
	}
	r, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	return &ReportChange{Report: r, Outcome: out}, nil
}

func (s *ReportService) Submit(p Principal, id uint) (*models.Report, error) {
	return s.act(p, id, workflow.ActionSubmit, "")
}

func (s *ReportService) Approve(p Principal, id uint) (*models.Report, error) {
	return s.act(p, id, workflow.ActionApprove, "")
}

func (s *ReportService) Reject(p Principal, id uint, reason string) (*models.Report, error) {
	return s.act(p, id, workflow.ActionReject, reason)
}

func (s *ReportService) act(p Principal, id uint, action workflow.Action, reason string) (*models.Report, error) {
	var out workflow.Outcome
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var r models.Report
		if err := tx.First(&r, id).Error; err != nil {
			return wrapNotFound(err, "report", id)
		}
		var err error
		out, err = s.run(tx, p, transition{
			kind:   workflow.KindReport,
			module: "report",
			table:  &models.Report{},
			id:     id,
			from:   r.Status,
			action: action,
			reason: reason,
			columns: func(out workflow.Outcome, now time.Time) map[string]interface{} {
				switch out.Action {
				case workflow.ActionSubmit:
					return map[string]interface{}{"submitted_by": userRef(p), "submitted_at": now, "rejection_reason": ""}
				case workflow.ActionApprove:
					return map[string]interface{}{"approved_by": userRef(p), "approved_at": now}
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

func (s *ReportService) Delete(p Principal, id uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var r models.Report
		if err := tx.First(&r, id).Error; err != nil {
			return wrapNotFound(err, "report", id)
		}
		if _, err := s.machine.Apply(workflow.Request{
			Kind:   workflow.KindReport,
			From:   r.Status,
			Action: workflow.ActionDelete,
			Actor:  p.Actor(),
		}); err != nil {
			return err
		}
		if err := guardedDelete(tx, &models.Report{}, id, r.Status); err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "report",
			Action:     "delete",
			Message:    fmt.Sprintf("deleted report %q", r.Title),
			EntityType: string(workflow.KindReport),
			EntityID:   id,
			Old:        r,
		})
	})
	if err == nil {
		committed(workflow.Outcome{Kind: workflow.KindReport, Action: workflow.ActionDelete})
	}
	return err
}
