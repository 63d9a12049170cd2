package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/internal/workflow"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	LogRetentionKey         = "log_retention_days"
	DefaultLogRetentionDays = 90
)

// Principal identifies the caller of a mutating operation.
type Principal struct {
	UserID    uint
	Role      string
	IP        string
	UserAgent string
}

func (p Principal) Actor() workflow.Actor {
	return workflow.Actor{ID: p.UserID, Role: p.Role}
}

func (p Principal) userID() *uint {
	if p.UserID == 0 {
		return nil
	}
	id := p.UserID
	return &id
}

// SystemPrincipal is used for scheduled and queued work.
var SystemPrincipal = Principal{Role: workflow.RoleAdmin, IP: "system"}

// AuditEntry describes one change to a scored or workflow entity.
type AuditEntry struct {
	Actor      Principal
	Level      string
	Module     string
	Action     string
	Message    string
	EntityType string
	EntityID   uint
	Old        interface{}
	New        interface{}
}

type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

func toJSON(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// Record writes one audit row using tx, so it commits or rolls back with
// the change it describes.
func (s *SystemLogService) Record(tx *gorm.DB, e AuditEntry) error {
	oldValues, err := toJSON(e.Old)
	if err != nil {
		return fmt.Errorf("encode old values: %w", err)
	}
	newValues, err := toJSON(e.New)
	if err != nil {
		return fmt.Errorf("encode new values: %w", err)
	}

	level := e.Level
	if level == "" {
		level = "info"
	}
	var entityID *uint
	if e.EntityID != 0 {
		id := e.EntityID
		entityID = &id
	}

	row := &models.SystemLog{
		Level:      level,
		Module:     e.Module,
		Action:     e.Action,
		Message:    e.Message,
		UserID:     e.Actor.userID(),
		EntityType: e.EntityType,
		EntityID:   entityID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IP:         e.Actor.IP,
		UserAgent:  e.Actor.UserAgent,
		CreatedAt:  time.Now(),
	}
	return tx.Create(row).Error
}

// RecordDetached writes an audit row outside any business transaction.
// Used for refused requests, which have no change to attach to.
func (s *SystemLogService) RecordDetached(e AuditEntry) error {
	return s.Record(s.db, e)
}

type SystemLogListRequest struct {
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Level      string `form:"level"`
	Module     string `form:"module"`
	Action     string `form:"action"`
	EntityType string `form:"entity_type"`
	EntityID   uint   `form:"entity_id"`
	UserID     uint   `form:"user_id"`
	StartDate  string `form:"start_date"`
	EndDate    string `form:"end_date"`
	Search     string `form:"search"`
}

type SystemLogListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.SystemLog `json:"items"`
}

func (s *SystemLogService) List(req *SystemLogListRequest) (*SystemLogListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var logs []models.SystemLog
	var total int64

	query := s.db.Model(&models.SystemLog{})

	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.EntityType != "" {
		query = query.Where("entity_type = ?", req.EntityType)
	}
	if req.EntityID != 0 {
		query = query.Where("entity_id = ?", req.EntityID)
	}
	if req.UserID != 0 {
		query = query.Where("user_id = ?", req.UserID)
	}
	if req.StartDate != "" {
		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return nil, invalidf("start_date must be YYYY-MM-DD")
		}
		query = query.Where("created_at >= ?", start)
	}
	if req.EndDate != "" {
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			return nil, invalidf("end_date must be YYYY-MM-DD")
		}
		query = query.Where("created_at < ?", end.AddDate(0, 0, 1))
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, err
	}

	return &SystemLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

func (s *SystemLogService) GetModules() ([]string, error) {
	var modules []string
	if err := s.db.Model(&models.SystemLog{}).Distinct("module").Order("module").Pluck("module", &modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

// History returns the audit trail of one entity, oldest first.
func (s *SystemLogService) History(entityType string, entityID uint) ([]models.SystemLog, error) {
	var logs []models.SystemLog
	err := s.db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC, id ASC").
		Find(&logs).Error
	return logs, err
}

// CleanupOldLogs deletes logs older than the specified number of days
// Returns the number of deleted records
func (s *SystemLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoffTime := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoffTime).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// GetRetentionDays gets the log retention days from system config
func (s *SystemLogService) GetRetentionDays() int {
	value := NewSystemConfigService(s.db).GetWithDefault(LogRetentionKey, strconv.Itoa(DefaultLogRetentionDays))
	days, err := strconv.Atoi(value)
	if err != nil {
		return DefaultLogRetentionDays
	}
	return days
}

// SetRetentionDays sets the log retention days in system config
func (s *SystemLogService) SetRetentionDays(days int) error {
	if days < 0 {
		return invalidf("retention days must not be negative")
	}
	return NewSystemConfigService(s.db).Set(LogRetentionKey, strconv.Itoa(days))
}
