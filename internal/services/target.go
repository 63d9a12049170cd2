package services

import (
	"fmt"
	"time"

	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/internal/scoring"
	"github.com/kwanter/sakip-sub003/internal/workflow"
	"gorm.io/gorm"
)

type TargetService struct {
	db *gorm.DB
	transitioner
}

func NewTargetService(db *gorm.DB, machine *workflow.Machine, audit *SystemLogService) *TargetService {
	return &TargetService{db: db, transitioner: transitioner{machine: machine, audit: audit}}
}

type TargetListRequest struct {
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PageSize      int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	IndicatorID   uint   `form:"indicator_id"`
	InstitutionID uint   `form:"institution_id"`
	Year          int    `form:"year"`
	Status        string `form:"status"`
}

type TargetListResponse struct {
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Items    []models.Target `json:"items"`
}

type CreateTargetRequest struct {
	IndicatorID  uint     `json:"indicator_id" binding:"required"`
	Year         int      `json:"year" binding:"required,min=2000,max=2100"`
	TargetValue  float64  `json:"target_value" binding:"min=0"`
	MinimumValue *float64 `json:"minimum_value"`
	Notes        string   `json:"notes"`
}

type UpdateTargetRequest struct {
	TargetValue  *float64 `json:"target_value" binding:"omitempty,min=0"`
	MinimumValue *float64 `json:"minimum_value"`
	Notes        *string  `json:"notes"`
}

// TargetChange reports the persisted target and any status demotion.
type TargetChange struct {
	Target     *models.Target   `json:"target"`
	Outcome    workflow.Outcome `json:"outcome"`
	Recomputed int              `json:"recomputed_data_points"`
}

func validateTargetValues(target float64, minimum *float64) error {
	if target < 0 {
		return invalidf("target value must not be negative")
	}
	if minimum != nil && (*minimum < 0 || *minimum > target) {
		return invalidf("minimum value must be between 0 and the target value")
	}
	return nil
}

func (s *TargetService) List(req *TargetListRequest) (*TargetListResponse, error) {
	offset := normalizePage(&req.Page, &req.PageSize, 20)

	var items []models.Target
	var total int64

	query := s.db.Model(&models.Target{})
	if req.IndicatorID != 0 {
		query = query.Where("targets.indicator_id = ?", req.IndicatorID)
	}
	if req.InstitutionID != 0 {
		query = query.Joins("JOIN indicators ON indicators.id = targets.indicator_id").
			Where("indicators.institution_id = ?", req.InstitutionID)
	}
	if req.Year != 0 {
		query = query.Where("targets.year = ?", req.Year)
	}
	if req.Status != "" {
		if !workflow.ValidStatus(workflow.KindTarget, workflow.Status(req.Status)) {
			return nil, invalidf("unknown target status %q", req.Status)
		}
		query = query.Where("targets.status = ?", req.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	if err := query.Preload("Indicator").Offset(offset).Limit(req.PageSize).
		Order("targets.year DESC, targets.indicator_id ASC").Find(&items).Error; err != nil {
		return nil, err
	}

	return &TargetListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: items}, nil
}

func (s *TargetService) GetByID(id uint) (*models.Target, error) {
	var t models.Target
	if err := s.db.Preload("Indicator").First(&t, id).Error; err != nil {
		return nil, wrapNotFound(err, "target", id)
	}
	return &t, nil
}

func (s *TargetService) Create(p Principal, req *CreateTargetRequest) (*TargetChange, error) {
	if err := validateTargetValues(req.TargetValue, req.MinimumValue); err != nil {
		return nil, err
	}

	target := models.Target{
		IndicatorID:  req.IndicatorID,
		Year:         req.Year,
		TargetValue:  req.TargetValue,
		MinimumValue: req.MinimumValue,
		Status:       workflow.StatusDraft,
		Notes:        req.Notes,
		CreatedBy:    p.UserID,
	}

	var recomputed int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ind models.Indicator
		if err := tx.First(&ind, req.IndicatorID).Error; err != nil {
			return wrapNotFound(err, "indicator", req.IndicatorID)
		}

		var existing int64
		if err := tx.Model(&models.Target{}).
			Where("indicator_id = ? AND year = ?", req.IndicatorID, req.Year).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return conflictf("indicator %s already has a target for %d", ind.Code, req.Year)
		}

		if err := tx.Create(&target).Error; err != nil {
			return wrapDuplicate(err, "target already exists for this indicator and year")
		}

		n, err := refreshDataPoints(tx, &target)
		if err != nil {
			return err
		}
		recomputed = n

		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "target",
			Action:     "create",
			Message:    fmt.Sprintf("created %d target for indicator %s (%d data points recomputed)", target.Year, ind.Code, n),
			EntityType: string(workflow.KindTarget),
			EntityID:   target.ID,
			New:        target,
		})
	})
	if err != nil {
		return nil, err
	}
	return &TargetChange{
		Target:     &target,
		Outcome:    workflow.Outcome{Kind: workflow.KindTarget, NewStatus: target.Status},
		Recomputed: recomputed,
	}, nil
}

// Update edits the target values. Editing an approved target demotes it to
// draft, and every non-validated data point of the indicator-year is
// recomputed against the new value.
func (s *TargetService) Update(p Principal, id uint, req *UpdateTargetRequest) (*TargetChange, error) {
	var change TargetChange
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var target models.Target
		if err := tx.First(&target, id).Error; err != nil {
			return wrapNotFound(err, "target", id)
		}
		before := target

		out, err := s.machine.Apply(workflow.Request{
			Kind:   workflow.KindTarget,
			From:   target.Status,
			Action: workflow.ActionEdit,
			Actor:  p.Actor(),
		})
		if err != nil {
			return err
		}

		value := target.TargetValue
		if req.TargetValue != nil {
			value = *req.TargetValue
		}
		minimum := target.MinimumValue
		if req.MinimumValue != nil {
			minimum = req.MinimumValue
		}
		if err := validateTargetValues(value, minimum); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"target_value":  value,
			"minimum_value": minimum,
			"status":        out.NewStatus,
		}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
		}
		if out.Demoted {
			updates["approved_by"] = nil
			updates["approved_at"] = nil
		}

		if err := guardedUpdate(tx, &models.Target{}, id, target.Status, updates); err != nil {
			return err
		}
		if err := tx.First(&target, id).Error; err != nil {
			return err
		}

		n, err := refreshDataPoints(tx, &target)
		if err != nil {
			return err
		}

		msg := fmt.Sprintf("updated target %d (%d data points recomputed)", id, n)
		if out.Demoted {
			msg += "; " + out.SideEffect
		}
		if err := s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "target",
			Action:     "update",
			Message:    msg,
			EntityType: string(workflow.KindTarget),
			EntityID:   id,
			Old:        before,
			New:        updates,
		}); err != nil {
			return err
		}

		change = TargetChange{Target: &target, Outcome: out, Recomputed: n}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

func (s *TargetService) Submit(p Principal, id uint) (*models.Target, error) {
	return s.act(p, id, workflow.ActionSubmit, "")
}

func (s *TargetService) Approve(p Principal, id uint) (*models.Target, error) {
	return s.act(p, id, workflow.ActionApprove, "")
}

func (s *TargetService) Reject(p Principal, id uint, reason string) (*models.Target, error) {
	return s.act(p, id, workflow.ActionReject, reason)
}

func (s *TargetService) RequestRevision(p Principal, id uint, notes string) (*models.Target, error) {
	return s.act(p, id, workflow.ActionRequestRevision, notes)
}

func (s *TargetService) act(p Principal, id uint, action workflow.Action, reason string) (*models.Target, error) {
	var out workflow.Outcome
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var target models.Target
		if err := tx.First(&target, id).Error; err != nil {
			return wrapNotFound(err, "target", id)
		}
		var err error
		out, err = s.run(tx, p, transition{
			kind:    workflow.KindTarget,
			module:  "target",
			table:   &models.Target{},
			id:      id,
			from:    target.Status,
			action:  action,
			reason:  reason,
			columns: targetColumns(p),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	committed(out)
	return s.GetByID(id)
}

func targetColumns(p Principal) func(workflow.Outcome, time.Time) map[string]interface{} {
	return func(out workflow.Outcome, now time.Time) map[string]interface{} {
		switch out.Action {
		case workflow.ActionSubmit:
			return map[string]interface{}{"submitted_by": userRef(p), "submitted_at": now, "rejection_reason": "", "revision_notes": ""}
		case workflow.ActionApprove:
			return map[string]interface{}{"approved_by": userRef(p), "approved_at": now}
		case workflow.ActionReject:
			return map[string]interface{}{"rejection_reason": out.Reason}
		case workflow.ActionRequestRevision:
			return map[string]interface{}{"revision_notes": out.Reason}
		}
		return nil
	}
}

// Delete removes a draft or rejected target. Data points keep their copied
// target value but lose the link.
func (s *TargetService) Delete(p Principal, id uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var target models.Target
		if err := tx.First(&target, id).Error; err != nil {
			return wrapNotFound(err, "target", id)
		}
		if _, err := s.machine.Apply(workflow.Request{
			Kind:   workflow.KindTarget,
			From:   target.Status,
			Action: workflow.ActionDelete,
			Actor:  p.Actor(),
		}); err != nil {
			return err
		}

		if err := tx.Model(&models.PerformanceData{}).Where("target_id = ?", id).
			Update("target_id", nil).Error; err != nil {
			return err
		}
		if err := guardedDelete(tx, &models.Target{}, id, target.Status); err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "target",
			Action:     "delete",
			Message:    fmt.Sprintf("deleted %d target for indicator %d", target.Year, target.IndicatorID),
			EntityType: string(workflow.KindTarget),
			EntityID:   id,
			Old:        target,
		})
	})
	if err == nil {
		committed(workflow.Outcome{Kind: workflow.KindTarget, Action: workflow.ActionDelete})
	}
	return err
}

// refreshDataPoints copies the target value into every non-validated data
// point of the target's indicator-year and recomputes the derived fields.
func refreshDataPoints(tx *gorm.DB, target *models.Target) (int, error) {
	var points []models.PerformanceData
	if err := tx.Where("indicator_id = ? AND year = ? AND status <> ?",
		target.IndicatorID, target.Year, workflow.StatusValidated).
		Find(&points).Error; err != nil {
		return 0, err
	}

	for _, pt := range points {
		pct := scoring.PercentageOf(pt.ActualValue, target.TargetValue)
		if err := tx.Model(&models.PerformanceData{}).Where("id = ?", pt.ID).Updates(map[string]interface{}{
			"target_id":              target.ID,
			"target_value":           target.TargetValue,
			"performance_percentage": pct,
			"category":               string(scoring.Categorize(pct)),
		}).Error; err != nil {
			return 0, err
		}
		ScoredDataPoints.Inc()
	}
	return len(points), nil
}
