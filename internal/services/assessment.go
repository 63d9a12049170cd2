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

type AssessmentService struct {
	db *gorm.DB
	transitioner
}

func NewAssessmentService(db *gorm.DB, machine *workflow.Machine, audit *SystemLogService) *AssessmentService {
	return &AssessmentService{db: db, transitioner: transitioner{machine: machine, audit: audit}}
}

type CreateCriterionRequest struct {
	Code        string  `json:"code" binding:"required,max=50"`
	Name        string  `json:"name" binding:"required,max=255"`
	Description string  `json:"description"`
	MaxScore    float64 `json:"max_score" binding:"required,gt=0"`
	Weight      float64 `json:"weight" binding:"required,gt=0"`
	SortOrder   int     `json:"sort_order"`
}

type UpdateCriterionRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	MaxScore    *float64 `json:"max_score" binding:"omitempty,gt=0"`
	Weight      *float64 `json:"weight" binding:"omitempty,gt=0"`
	SortOrder   *int     `json:"sort_order"`
	IsActive    *bool    `json:"is_active"`
}

type AssessmentListRequest struct {
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	IndicatorID uint   `form:"indicator_id"`
	Year        int    `form:"year"`
	Status      string `form:"status"`
	Grade       string `form:"grade" binding:"omitempty,oneof=A B C D E"`
}

type AssessmentListResponse struct {
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
	Items    []models.Assessment `json:"items"`
}

type CriterionScoreInput struct {
	CriterionID uint    `json:"criterion_id" binding:"required"`
	Score       float64 `json:"score"`
	Comment     string  `json:"comment"`
}

type CreateAssessmentRequest struct {
	PerformanceDataID uint                  `json:"performance_data_id" binding:"required"`
	Notes             string                `json:"notes"`
	Scores            []CriterionScoreInput `json:"scores" binding:"required,min=1,dive"`
}

type UpdateAssessmentRequest struct {
	Notes  *string               `json:"notes"`
	Scores []CriterionScoreInput `json:"scores" binding:"omitempty,dive"`
}

// AssessmentChange reports the persisted assessment and any status demotion.
type AssessmentChange struct {
	Assessment *models.Assessment `json:"assessment"`
	Outcome    workflow.Outcome   `json:"outcome"`
}

// --- rubric ---

func (s *AssessmentService) ListCriteria(activeOnly bool) ([]models.AssessmentCriterion, error) {
	var items []models.AssessmentCriterion
	query := s.db.Model(&models.AssessmentCriterion{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("sort_order ASC, id ASC").Find(&items).Error
	return items, err
}

func (s *AssessmentService) CreateCriterion(p Principal, req *CreateCriterionRequest) (*models.AssessmentCriterion, error) {
	if req.MaxScore <= 0 || req.Weight <= 0 {
		return nil, invalidf("max score and weight must be positive")
	}
	c := models.AssessmentCriterion{
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		MaxScore:    req.MaxScore,
		Weight:      req.Weight,
		SortOrder:   req.SortOrder,
		IsActive:    true,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&c).Error; err != nil {
			return wrapDuplicate(err, "criterion code already exists")
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "assessment",
			Action:     "create_criterion",
			Message:    "created criterion " + c.Code,
			EntityType: "assessment_criterion",
			EntityID:   c.ID,
			New:        c,
		})
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCriterion changes a rubric line. Existing assessments keep the max
// score and weight they were scored with.
func (s *AssessmentService) UpdateCriterion(p Principal, id uint, req *UpdateCriterionRequest) (*models.AssessmentCriterion, error) {
	var c models.AssessmentCriterion
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, id).Error; err != nil {
			return wrapNotFound(err, "criterion", id)
		}
		before := c

		updates := map[string]interface{}{}
		if req.Name != nil {
			updates["name"] = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.MaxScore != nil {
			if *req.MaxScore <= 0 {
				return invalidf("max score must be positive")
			}
			updates["max_score"] = *req.MaxScore
		}
		if req.Weight != nil {
			if *req.Weight <= 0 {
				return invalidf("weight must be positive")
			}
			updates["weight"] = *req.Weight
		}
		if req.SortOrder != nil {
			updates["sort_order"] = *req.SortOrder
		}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&c).Updates(updates).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "assessment",
			Action:     "update_criterion",
			Message:    "updated criterion " + c.Code,
			EntityType: "assessment_criterion",
			EntityID:   c.ID,
			Old:        before,
			New:        updates,
		})
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// --- assessments ---

func (s *AssessmentService) List(req *AssessmentListRequest) (*AssessmentListResponse, error) {
	offset := normalizePage(&req.Page, &req.PageSize, 20)

	var items []models.Assessment
	var total int64

	query := s.db.Model(&models.Assessment{})
	if req.IndicatorID != 0 || req.Year != 0 {
		query = query.Joins("JOIN performance_data ON performance_data.id = assessments.performance_data_id")
		if req.IndicatorID != 0 {
			query = query.Where("performance_data.indicator_id = ?", req.IndicatorID)
		}
		if req.Year != 0 {
			query = query.Where("performance_data.year = ?", req.Year)
		}
	}
	if req.Status != "" {
		if !workflow.ValidStatus(workflow.KindAssessment, workflow.Status(req.Status)) {
			return nil, invalidf("unknown assessment status %q", req.Status)
		}
		query = query.Where("assessments.status = ?", req.Status)
	}
	if req.Grade != "" {
		query = query.Where("assessments.grade = ?", req.Grade)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	if err := query.Preload("PerformanceData.Indicator").Offset(offset).Limit(req.PageSize).
		Order("assessments.created_at DESC, assessments.id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return &AssessmentListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: items}, nil
}

func (s *AssessmentService) GetByID(id uint) (*models.Assessment, error) {
	var a models.Assessment
	err := s.db.Preload("PerformanceData.Indicator").
		Preload("CriterionScores", func(db *gorm.DB) *gorm.DB { return db.Order("criterion_id ASC") }).
		Preload("CriterionScores.Criterion").
		First(&a, id).Error
	if err != nil {
		return nil, wrapNotFound(err, "assessment", id)
	}
	return &a, nil
}

// buildScores validates the inputs against the rubric and snapshots each
// criterion's max score and weight.
func buildScores(tx *gorm.DB, inputs []CriterionScoreInput) ([]models.AssessmentCriterionScore, []scoring.CriterionScore, error) {
	if len(inputs) == 0 {
		return nil, nil, invalidf("at least one criterion score is required")
	}

	ids := make([]uint, 0, len(inputs))
	seen := make(map[uint]bool, len(inputs))
	for _, in := range inputs {
		if seen[in.CriterionID] {
			return nil, nil, invalidf("criterion %d scored twice", in.CriterionID)
		}
		seen[in.CriterionID] = true
		ids = append(ids, in.CriterionID)
	}

	var criteria []models.AssessmentCriterion
	if err := tx.Where("id IN ?", ids).Find(&criteria).Error; err != nil {
		return nil, nil, err
	}
	byID := make(map[uint]models.AssessmentCriterion, len(criteria))
	for _, c := range criteria {
		byID[c.ID] = c
	}

	rows := make([]models.AssessmentCriterionScore, 0, len(inputs))
	typed := make([]scoring.CriterionScore, 0, len(inputs))
	for _, in := range inputs {
		c, ok := byID[in.CriterionID]
		if !ok {
			return nil, nil, invalidf("criterion %d does not exist", in.CriterionID)
		}
		if !c.IsActive {
			return nil, nil, invalidf("criterion %s is inactive", c.Code)
		}
		if err := scoring.ValidateCriterionScore(in.Score, c.MaxScore); err != nil {
			return nil, nil, fmt.Errorf("criterion %s: %w", c.Code, err)
		}
		rows = append(rows, models.AssessmentCriterionScore{
			CriterionID: c.ID,
			Score:       in.Score,
			MaxScore:    c.MaxScore,
			Weight:      c.Weight,
			Comment:     in.Comment,
		})
		typed = append(typed, scoring.CriterionScore{
			CriterionID: c.ID,
			Score:       in.Score,
			MaxScore:    c.MaxScore,
			Weight:      c.Weight,
		})
	}
	return rows, typed, nil
}

// Create scores validated performance data against the rubric.
func (s *AssessmentService) Create(p Principal, req *CreateAssessmentRequest) (*AssessmentChange, error) {
	var a models.Assessment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var data models.PerformanceData
		if err := tx.First(&data, req.PerformanceDataID).Error; err != nil {
			return wrapNotFound(err, "performance data", req.PerformanceDataID)
		}
		if data.Status != workflow.StatusValidated {
			return invalidf("only validated performance data can be assessed (status %s)", data.Status)
		}

		var existing int64
		if err := tx.Model(&models.Assessment{}).Where("performance_data_id = ?", data.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return conflictf("performance data %d is already assessed", data.ID)
		}

		rows, typed, err := buildScores(tx, req.Scores)
		if err != nil {
			return err
		}
		overall := scoring.Round2(scoring.WeightedScore(typed))

		a = models.Assessment{
			PerformanceDataID: data.ID,
			OverallScore:      overall,
			Grade:             string(scoring.GradeOf(overall)),
			Status:            workflow.StatusDraft,
			Notes:             req.Notes,
			AssessedBy:        p.UserID,
		}
		if err := tx.Create(&a).Error; err != nil {
			return wrapDuplicate(err, "performance data is already assessed")
		}
		for i := range rows {
			rows[i].AssessmentID = a.ID
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}

		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "assessment",
			Action:     "create",
			Message:    fmt.Sprintf("assessed data point %d: %.2f (%s)", data.ID, a.OverallScore, a.Grade),
			EntityType: string(workflow.KindAssessment),
			EntityID:   a.ID,
			New:        map[string]interface{}{"assessment": a, "scores": rows},
		})
	})
	if err != nil {
		return nil, err
	}
	full, err := s.GetByID(a.ID)
	if err != nil {
		return nil, err
	}
	return &AssessmentChange{
		Assessment: full,
		Outcome:    workflow.Outcome{Kind: workflow.KindAssessment, NewStatus: full.Status},
	}, nil
}

// Update rescoring replaces every criterion score. Editing an approved
// assessment demotes it to draft.
func (s *AssessmentService) Update(p Principal, id uint, req *UpdateAssessmentRequest) (*AssessmentChange, error) {
	var out workflow.Outcome
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var a models.Assessment
		if err := tx.Preload("CriterionScores").First(&a, id).Error; err != nil {
			return wrapNotFound(err, "assessment", id)
		}
		before := a

		var err error
		out, err = s.machine.Apply(workflow.Request{
			Kind:   workflow.KindAssessment,
			From:   a.Status,
			Action: workflow.ActionEdit,
			Actor:  p.Actor(),
		})
		if err != nil {
			return err
		}

		updates := map[string]interface{}{"status": out.NewStatus}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
		}
		if out.Demoted {
			updates["reviewed_by"] = nil
			updates["reviewed_at"] = nil
		}

		var rows []models.AssessmentCriterionScore
		if len(req.Scores) > 0 {
			var typed []scoring.CriterionScore
			rows, typed, err = buildScores(tx, req.Scores)
			if err != nil {
				return err
			}
			overall := scoring.Round2(scoring.WeightedScore(typed))
			updates["overall_score"] = overall
			updates["grade"] = string(scoring.GradeOf(overall))
		}

		if err := guardedUpdate(tx, &models.Assessment{}, id, a.Status, updates); err != nil {
			return err
		}
		if rows != nil {
			if err := tx.Where("assessment_id = ?", id).Delete(&models.AssessmentCriterionScore{}).Error; err != nil {
				return err
			}
			for i := range rows {
				rows[i].AssessmentID = id
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		msg := fmt.Sprintf("updated assessment %d", id)
		if score, ok := updates["overall_score"]; ok {
			msg += fmt.Sprintf(": %.2f (%s)", score, updates["grade"])
		}
		if out.Demoted {
			msg += "; " + out.SideEffect
		}
		newValues := map[string]interface{}{"changes": updates}
		if rows != nil {
			newValues["scores"] = rows
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "assessment",
			Action:     "update",
			Message:    msg,
			EntityType: string(workflow.KindAssessment),
			EntityID:   id,
			Old:        before,
			New:        newValues,
		})
	})
	if err != nil {
		return nil, err
	}
	full, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	return &AssessmentChange{Assessment: full, Outcome: out}, nil
}

func (s *AssessmentService) Submit(p Principal, id uint) (*models.Assessment, error) {
	return s.act(p, id, workflow.ActionSubmit, "")
}

func (s *AssessmentService) Approve(p Principal, id uint) (*models.Assessment, error) {
	return s.act(p, id, workflow.ActionApprove, "")
}

func (s *AssessmentService) Reject(p Principal, id uint, reason string) (*models.Assessment, error) {
	return s.act(p, id, workflow.ActionReject, reason)
}

func (s *AssessmentService) RequestRevision(p Principal, id uint, notes string) (*models.Assessment, error) {
	return s.act(p, id, workflow.ActionRequestRevision, notes)
}

func (s *AssessmentService) act(p Principal, id uint, action workflow.Action, reason string) (*models.Assessment, error) {
	var out workflow.Outcome
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var a models.Assessment
		if err := tx.First(&a, id).Error; err != nil {
			return wrapNotFound(err, "assessment", id)
		}
		var err error
		out, err = s.run(tx, p, transition{
			kind:   workflow.KindAssessment,
			module: "assessment",
			table:  &models.Assessment{},
			id:     id,
			from:   a.Status,
			action: action,
			reason: reason,
			columns: func(out workflow.Outcome, now time.Time) map[string]interface{} {
				switch out.Action {
				case workflow.ActionSubmit:
					return map[string]interface{}{"submitted_at": now, "rejection_reason": "", "review_notes": ""}
				case workflow.ActionApprove:
					return map[string]interface{}{"reviewed_by": userRef(p), "reviewed_at": now}
				case workflow.ActionReject:
					return map[string]interface{}{"reviewed_by": userRef(p), "reviewed_at": now, "rejection_reason": out.Reason}
				case workflow.ActionRequestRevision:
					return map[string]interface{}{"reviewed_by": userRef(p), "reviewed_at": now, "review_notes": out.Reason}
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

func (s *AssessmentService) Delete(p Principal, id uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var a models.Assessment
		if err := tx.Preload("CriterionScores").First(&a, id).Error; err != nil {
			return wrapNotFound(err, "assessment", id)
		}
		if _, err := s.machine.Apply(workflow.Request{
			Kind:   workflow.KindAssessment,
			From:   a.Status,
			Action: workflow.ActionDelete,
			Actor:  p.Actor(),
		}); err != nil {
			return err
		}
		if err := tx.Where("assessment_id = ?", id).Delete(&models.AssessmentCriterionScore{}).Error; err != nil {
			return err
		}
		if err := guardedDelete(tx, &models.Assessment{}, id, a.Status); err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "assessment",
			Action:     "delete",
			Message:    fmt.Sprintf("deleted assessment %d of data point %d", id, a.PerformanceDataID),
			EntityType: string(workflow.KindAssessment),
			EntityID:   id,
			Old:        a,
		})
	})
	if err == nil {
		committed(workflow.Outcome{Kind: workflow.KindAssessment, Action: workflow.ActionDelete})
	}
	return err
}
