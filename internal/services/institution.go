package services

import (
	"strings"

	"github.com/kwanter/sakip-sub003/internal/models"
	"gorm.io/gorm"
)

type InstitutionService struct {
	db    *gorm.DB
	audit *SystemLogService
}

func NewInstitutionService(db *gorm.DB, audit *SystemLogService) *InstitutionService {
	return &InstitutionService{db: db, audit: audit}
}

type CreateInstitutionRequest struct {
	Code string `json:"code" binding:"required,max=50"`
	Name string `json:"name" binding:"required,max=255"`
}

func (s *InstitutionService) List() ([]models.Institution, error) {
	var items []models.Institution
	err := s.db.Order("code").Find(&items).Error
	return items, err
}

func (s *InstitutionService) GetByID(id uint) (*models.Institution, error) {
	var inst models.Institution
	if err := s.db.First(&inst, id).Error; err != nil {
		return nil, wrapNotFound(err, "institution", id)
	}
	return &inst, nil
}

func (s *InstitutionService) Create(p Principal, req *CreateInstitutionRequest) (*models.Institution, error) {
	inst := models.Institution{
		Code: strings.ToUpper(strings.TrimSpace(req.Code)),
		Name: strings.TrimSpace(req.Name),
	}
	if inst.Code == "" || inst.Name == "" {
		return nil, invalidf("code and name are required")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&inst).Error; err != nil {
			return wrapDuplicate(err, "institution code already exists")
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "institution",
			Action:     "create",
			Message:    "created institution " + inst.Code,
			EntityType: "institution",
			EntityID:   inst.ID,
			New:        inst,
		})
	})
	if err != nil {
		return nil, err
	}
	return &inst, nil
}
