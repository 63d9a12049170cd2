package models

import (
	"time"

	"github.com/kwanter/sakip-sub003/internal/workflow"
)

// AssessmentCriterion is one weighted rubric line.
type AssessmentCriterion struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Code        string    `gorm:"uniqueIndex;size:50;not null" json:"code"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	MaxScore    float64   `gorm:"type:decimal(8,2);not null" json:"max_score"`
	Weight      float64   `gorm:"type:decimal(8,2);not null" json:"weight"`
	SortOrder   int       `gorm:"default:0" json:"sort_order"`
	IsActive    bool      `gorm:"index" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (AssessmentCriterion) TableName() string { return "assessment_criteria" }

// Assessment grades one performance data point against the rubric.
type Assessment struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	PerformanceDataID uint            `gorm:"uniqueIndex;not null" json:"performance_data_id"`
	OverallScore      float64         `gorm:"type:decimal(8,2)" json:"overall_score"`
	Grade             string          `gorm:"size:2;index" json:"grade"`
	Status            workflow.Status `gorm:"size:30;default:draft;index" json:"status"`
	Notes             string          `gorm:"type:text" json:"notes"`
	ReviewNotes       string          `gorm:"type:text" json:"review_notes"`
	RejectionReason   string          `gorm:"type:text" json:"rejection_reason"`
	AssessedBy        uint            `json:"assessed_by"`
	SubmittedAt       *time.Time      `json:"submitted_at"`
	ReviewedBy        *uint           `json:"reviewed_by"`
	ReviewedAt        *time.Time      `json:"reviewed_at"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	PerformanceData *PerformanceData           `gorm:"foreignKey:PerformanceDataID" json:"performance_data,omitempty"`
	CriterionScores []AssessmentCriterionScore `gorm:"foreignKey:AssessmentID" json:"criterion_scores,omitempty"`
}

func (Assessment) TableName() string { return "assessments" }

// AssessmentCriterionScore snapshots the criterion's max score and weight
// at the time of scoring.
type AssessmentCriterionScore struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AssessmentID uint      `gorm:"uniqueIndex:idx_assessment_criterion;not null" json:"assessment_id"`
	CriterionID  uint      `gorm:"uniqueIndex:idx_assessment_criterion;not null" json:"criterion_id"`
	Score        float64   `gorm:"type:decimal(8,2)" json:"score"`
	MaxScore     float64   `gorm:"type:decimal(8,2)" json:"max_score"`
	Weight       float64   `gorm:"type:decimal(8,2)" json:"weight"`
	Comment      string    `gorm:"type:text" json:"comment"`
	CreatedAt    time.Time `json:"created_at"`

	Criterion *AssessmentCriterion `gorm:"foreignKey:CriterionID" json:"criterion,omitempty"`
}

func (AssessmentCriterionScore) TableName() string { return "assessment_criterion_scores" }
