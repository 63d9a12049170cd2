package models

import (
	"time"

	"gorm.io/datatypes"
)

// SystemLog is an operational log line or, when EntityType is set, the
// audit record of one change to a scored entity.
type SystemLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Level      string         `gorm:"size:20;index" json:"level"` // info, warning, error
	Module     string         `gorm:"size:100;index" json:"module"`
	Action     string         `gorm:"size:200;index" json:"action"`
	Message    string         `gorm:"type:text" json:"message"`
	UserID     *uint          `gorm:"index" json:"user_id"`
	EntityType string         `gorm:"size:50;index:idx_log_entity" json:"entity_type"`
	EntityID   *uint          `gorm:"index:idx_log_entity" json:"entity_id"`
	OldValues  datatypes.JSON `json:"old_values,omitempty"`
	NewValues  datatypes.JSON `json:"new_values,omitempty"`
	IP         string         `gorm:"size:50" json:"ip"`
	UserAgent  string         `gorm:"size:500" json:"user_agent"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (SystemLog) TableName() string { return "system_logs" }
