package models

import (
	"time"

	"github.com/kwanter/sakip-sub003/internal/workflow"
)

// Report is a compliance report for one institution over a date range.
// Summary columns are derived from validated performance data.
type Report struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	InstitutionID      uint            `gorm:"index;not null" json:"institution_id"`
	Title              string          `gorm:"size:255;not null" json:"title"`
	Year               int             `gorm:"index;not null" json:"year"`
	PeriodStart        time.Time       `json:"period_start"`
	PeriodEnd          time.Time       `json:"period_end"`
	Status             workflow.Status `gorm:"size:30;default:draft;index" json:"status"`
	IndicatorCount     int             `json:"indicator_count"`
	DataPointCount     int             `json:"data_point_count"`
	AveragePerformance float64         `gorm:"type:decimal(18,2)" json:"average_performance"`
	AchievementRate    float64         `gorm:"type:decimal(8,2)" json:"achievement_rate"`
	ConsistencyScore   float64         `gorm:"type:decimal(8,2)" json:"consistency_score"`
	Notes              string          `gorm:"type:text" json:"notes"`
	RejectionReason    string          `gorm:"type:text" json:"rejection_reason"`
	CreatedBy          uint            `json:"created_by"`
	SubmittedBy        *uint           `json:"submitted_by"`
	SubmittedAt        *time.Time      `json:"submitted_at"`
	ApprovedBy         *uint           `json:"approved_by"`
	ApprovedAt         *time.Time      `json:"approved_at"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	Institution *Institution `gorm:"foreignKey:InstitutionID" json:"institution,omitempty"`
}

func (Report) TableName() string { return "reports" }
