package models

import "time"

// DefaultCalculationFormula is stored on new indicators. Only the plain
// actual/target ratio is ever computed, whatever the field holds.
const DefaultCalculationFormula = "ratio"

// Indicator is a measurable performance metric owned by an institution.
type Indicator struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	InstitutionID      uint      `gorm:"uniqueIndex:idx_indicator_institution_code;not null" json:"institution_id"`
	Code               string    `gorm:"uniqueIndex:idx_indicator_institution_code;size:50;not null" json:"code"`
	Name               string    `gorm:"size:255;not null" json:"name"`
	Description        string    `gorm:"type:text" json:"description"`
	MeasurementUnit    string    `gorm:"size:50" json:"measurement_unit"`
	CalculationFormula string    `gorm:"size:255" json:"calculation_formula"`
	Frequency          string    `gorm:"size:20;not null;index" json:"frequency"` // monthly, quarterly, semester, annual
	Program            string    `gorm:"size:255" json:"program"`
	IsActive           bool      `gorm:"index" json:"is_active"`
	CreatedBy          uint      `json:"created_by"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	Institution *Institution `gorm:"foreignKey:InstitutionID" json:"institution,omitempty"`
}

func (Indicator) TableName() string { return "indicators" }
