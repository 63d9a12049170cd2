package models

import (
	"time"

	"github.com/kwanter/sakip-sub003/internal/workflow"
)

// PerformanceData is one actual-value observation for an indicator period.
// Period is normalized to the start of the indicator's reporting bucket.
type PerformanceData struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	IndicatorID           uint            `gorm:"uniqueIndex:idx_data_indicator_period;not null" json:"indicator_id"`
	TargetID              *uint           `gorm:"index" json:"target_id"`
	Period                time.Time       `gorm:"uniqueIndex:idx_data_indicator_period;not null" json:"period"`
	PeriodLabel           string          `gorm:"size:20" json:"period_label"`
	Year                  int             `gorm:"index;not null" json:"year"`
	ActualValue           float64         `gorm:"type:decimal(18,2);not null" json:"actual_value"`
	TargetValue           float64         `gorm:"type:decimal(18,2)" json:"target_value"`
	PerformancePercentage float64         `gorm:"type:decimal(18,2)" json:"performance_percentage"`
	Category              string          `gorm:"size:20;index" json:"category"`
	Status                workflow.Status `gorm:"size:30;default:draft;index" json:"status"`
	Notes                 string          `gorm:"type:text" json:"notes"`
	RejectionReason       string          `gorm:"type:text" json:"rejection_reason"`
	CreatedBy             uint            `json:"created_by"`
	SubmittedBy           *uint           `json:"submitted_by"`
	SubmittedAt           *time.Time      `json:"submitted_at"`
	ValidatedBy           *uint           `json:"validated_by"`
	ValidatedAt           *time.Time      `json:"validated_at"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`

	Indicator *Indicator `gorm:"foreignKey:IndicatorID" json:"indicator,omitempty"`
}

func (PerformanceData) TableName() string { return "performance_data" }
