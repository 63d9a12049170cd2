package models

import (
	"time"

	"github.com/kwanter/sakip-sub003/internal/workflow"
)

// Target is the yearly goal for an indicator. One per (indicator, year).
type Target struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	IndicatorID     uint            `gorm:"uniqueIndex:idx_target_indicator_year;not null" json:"indicator_id"`
	Year            int             `gorm:"uniqueIndex:idx_target_indicator_year;not null" json:"year"`
	TargetValue     float64         `gorm:"type:decimal(18,2);not null" json:"target_value"`
	MinimumValue    *float64        `gorm:"type:decimal(18,2)" json:"minimum_value"`
	Status          workflow.Status `gorm:"size:30;default:draft;index" json:"status"`
	Notes           string          `gorm:"type:text" json:"notes"`
	RejectionReason string          `gorm:"type:text" json:"rejection_reason"`
	RevisionNotes   string          `gorm:"type:text" json:"revision_notes"`
	CreatedBy       uint            `json:"created_by"`
	SubmittedBy     *uint           `json:"submitted_by"`
	SubmittedAt     *time.Time      `json:"submitted_at"`
	ApprovedBy      *uint           `json:"approved_by"`
	ApprovedAt      *time.Time      `json:"approved_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Indicator *Indicator `gorm:"foreignKey:IndicatorID" json:"indicator,omitempty"`
}

func (Target) TableName() string { return "targets" }
