package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a system user
type User struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Username      string         `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Password      string         `gorm:"size:255" json:"-"` // bcrypt hash
	Name          string         `gorm:"size:200" json:"name"`
	Email         string         `gorm:"size:255" json:"email"`
	Role          string         `gorm:"size:50;default:viewer;index" json:"role"` // admin, approver, operator, viewer
	InstitutionID *uint          `gorm:"index" json:"institution_id"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	LastLogin     *time.Time     `json:"last_login"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	Institution *Institution `gorm:"foreignKey:InstitutionID" json:"institution,omitempty"`
}

func (User) TableName() string { return "users" }
