package models

import "time"

// IndicatorScore is the yearly graded snapshot of an indicator.
type IndicatorScore struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	IndicatorID        uint      `gorm:"uniqueIndex:idx_score_indicator_year;not null" json:"indicator_id"`
	Year               int       `gorm:"uniqueIndex:idx_score_indicator_year;not null;index" json:"year"`
	AchievementScore   float64   `gorm:"type:decimal(8,2)" json:"achievement_score"`
	ConsistencyScore   float64   `gorm:"type:decimal(8,2)" json:"consistency_score"`
	ImprovementScore   float64   `gorm:"type:decimal(8,2)" json:"improvement_score"`
	OverallScore       float64   `gorm:"type:decimal(8,2);index" json:"overall_score"`
	Grade              string    `gorm:"size:2;index" json:"grade"`
	AveragePerformance float64   `gorm:"type:decimal(18,2)" json:"average_performance"`
	MinPerformance     float64   `gorm:"type:decimal(18,2)" json:"min_performance"`
	MaxPerformance     float64   `gorm:"type:decimal(18,2)" json:"max_performance"`
	AchievementRate    float64   `gorm:"type:decimal(8,2)" json:"achievement_rate"`
	DataPoints         int       `json:"data_points"`
	CalculatedAt       time.Time `json:"calculated_at"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	Indicator *Indicator `gorm:"foreignKey:IndicatorID" json:"indicator,omitempty"`
}

func (IndicatorScore) TableName() string { return "indicator_scores" }
