package services

import (
	"strings"

	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/internal/scoring"
	"gorm.io/gorm"
)

type IndicatorService struct {
	db    *gorm.DB
	audit *SystemLogService
}

func NewIndicatorService(db *gorm.DB, audit *SystemLogService) *IndicatorService {
	return &IndicatorService{db: db, audit: audit}
}

type IndicatorListRequest struct {
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PageSize      int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	InstitutionID uint   `form:"institution_id"`
	Frequency     string `form:"frequency" binding:"omitempty,oneof=monthly quarterly semester annual"`
	Search        string `form:"search"`
	Active        *bool  `form:"active"`
}

type IndicatorListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.Indicator `json:"items"`
}

type CreateIndicatorRequest struct {
	InstitutionID      uint   `json:"institution_id" binding:"required"`
	Code               string `json:"code" binding:"required,max=50"`
	Name               string `json:"name" binding:"required,max=255"`
	Description        string `json:"description"`
	MeasurementUnit    string `json:"measurement_unit" binding:"max=50"`
	CalculationFormula string `json:"calculation_formula" binding:"max=255"`
	Frequency          string `json:"frequency" binding:"required,oneof=monthly quarterly semester annual"`
	Program            string `json:"program"`
	IsActive           *bool  `json:"is_active"`
}

type UpdateIndicatorRequest struct {
	Name               *string `json:"name" binding:"omitempty,max=255"`
	Description        *string `json:"description"`
	MeasurementUnit    *string `json:"measurement_unit" binding:"omitempty,max=50"`
	CalculationFormula *string `json:"calculation_formula" binding:"omitempty,max=255"`
	Frequency          *string `json:"frequency" binding:"omitempty,oneof=monthly quarterly semester annual"`
	Program            *string `json:"program"`
	IsActive           *bool   `json:"is_active"`
}

// List returns paginated indicators
func (s *IndicatorService) List(req *IndicatorListRequest) (*IndicatorListResponse, error) {
	offset := normalizePage(&req.Page, &req.PageSize, 20)

	var items []models.Indicator
	var total int64

	query := s.db.Model(&models.Indicator{})

	if req.InstitutionID != 0 {
		query = query.Where("institution_id = ?", req.InstitutionID)
	}
	if req.Frequency != "" {
		query = query.Where("frequency = ?", req.Frequency)
	}
	if req.Search != "" {
		like := "%" + req.Search + "%"
		query = query.Where("name LIKE ? OR code LIKE ?", like, like)
	}
	if req.Active != nil {
		query = query.Where("is_active = ?", *req.Active)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	if err := query.Preload("Institution").Offset(offset).Limit(req.PageSize).Order("code ASC").Find(&items).Error; err != nil {
		return nil, err
	}

	return &IndicatorListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

func (s *IndicatorService) GetByID(id uint) (*models.Indicator, error) {
	var ind models.Indicator
	if err := s.db.Preload("Institution").First(&ind, id).Error; err != nil {
		return nil, wrapNotFound(err, "indicator", id)
	}
	return &ind, nil
}

func (s *IndicatorService) Create(p Principal, req *CreateIndicatorRequest) (*models.Indicator, error) {
	if !scoring.ValidFrequency(req.Frequency) {
		return nil, invalidf("unknown frequency %q", req.Frequency)
	}

	formula := strings.TrimSpace(req.CalculationFormula)
	if formula == "" {
		formula = models.DefaultCalculationFormula
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	ind := models.Indicator{
		InstitutionID:      req.InstitutionID,
		Code:               strings.TrimSpace(req.Code),
		Name:               strings.TrimSpace(req.Name),
		Description:        req.Description,
		MeasurementUnit:    req.MeasurementUnit,
		CalculationFormula: formula,
		Frequency:          req.Frequency,
		Program:            req.Program,
		IsActive:           active,
		CreatedBy:          p.UserID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var inst models.Institution
		if err := tx.First(&inst, req.InstitutionID).Error; err != nil {
			return wrapNotFound(err, "institution", req.InstitutionID)
		}
		if err := tx.Create(&ind).Error; err != nil {
			return wrapDuplicate(err, "indicator code already exists for this institution")
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "indicator",
			Action:     "create",
			Message:    "created indicator " + ind.Code,
			EntityType: "indicator",
			EntityID:   ind.ID,
			New:        ind,
		})
	})
	if err != nil {
		return nil, err
	}
	return &ind, nil
}

// Update changes indicator attributes. The frequency is locked once
// performance data exists, because stored periods are bucketed by it.
func (s *IndicatorService) Update(p Principal, id uint, req *UpdateIndicatorRequest) (*models.Indicator, error) {
	var ind models.Indicator
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&ind, id).Error; err != nil {
			return wrapNotFound(err, "indicator", id)
		}
		before := ind

		updates := map[string]interface{}{}
		if req.Name != nil {
			updates["name"] = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.MeasurementUnit != nil {
			updates["measurement_unit"] = *req.MeasurementUnit
		}
		if req.CalculationFormula != nil {
			formula := strings.TrimSpace(*req.CalculationFormula)
			if formula == "" {
				formula = models.DefaultCalculationFormula
			}
			updates["calculation_formula"] = formula
		}
		if req.Program != nil {
			updates["program"] = *req.Program
		}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}
		if req.Frequency != nil && *req.Frequency != ind.Frequency {
			if !scoring.ValidFrequency(*req.Frequency) {
				return invalidf("unknown frequency %q", *req.Frequency)
			}
			var dataCount int64
			if err := tx.Model(&models.PerformanceData{}).Where("indicator_id = ?", id).Count(&dataCount).Error; err != nil {
				return err
			}
			if dataCount > 0 {
				return conflictf("frequency cannot change once performance data exists")
			}
			updates["frequency"] = *req.Frequency
		}
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&ind).Updates(updates).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "indicator",
			Action:     "update",
			Message:    "updated indicator " + ind.Code,
			EntityType: "indicator",
			EntityID:   ind.ID,
			Old:        before,
			New:        updates,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// Delete removes an indicator that has no targets or performance data.
func (s *IndicatorService) Delete(p Principal, id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var ind models.Indicator
		if err := tx.First(&ind, id).Error; err != nil {
			return wrapNotFound(err, "indicator", id)
		}

		var targets, data int64
		if err := tx.Model(&models.Target{}).Where("indicator_id = ?", id).Count(&targets).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.PerformanceData{}).Where("indicator_id = ?", id).Count(&data).Error; err != nil {
			return err
		}
		if targets > 0 || data > 0 {
			return conflictf("indicator has %d targets and %d data points", targets, data)
		}

		if err := tx.Where("indicator_id = ?", id).Delete(&models.IndicatorScore{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ind).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "indicator",
			Action:     "delete",
			Message:    "deleted indicator " + ind.Code,
			EntityType: "indicator",
			EntityID:   ind.ID,
			Old:        ind,
		})
	})
}
