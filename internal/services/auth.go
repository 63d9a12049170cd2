package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/kwanter/sakip-sub003/internal/config"
	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/internal/utils"
	"github.com/kwanter/sakip-sub003/internal/workflow"
	"gorm.io/gorm"
)

type AuthService struct {
	db        *gorm.DB
	jwtConfig *config.JWTConfig
	audit     *SystemLogService
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, audit *SystemLogService) *AuthService {
	return &AuthService{db: db, jwtConfig: jwtCfg, audit: audit}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token    string       `json:"token"`
	User     *models.User `json:"user"`
	ExpireAt time.Time    `json:"expire_at"`
}

// Login checks local credentials and issues an access token.
func (s *AuthService) Login(req *LoginRequest, clientIP, userAgent string) (*LoginResponse, error) {
	var user models.User
	if err := s.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidLogin
		}
		return nil, err
	}
	if !user.IsActive || !utils.CheckPassword(req.Password, user.Password) {
		return nil, ErrInvalidLogin
	}

	hours := s.jwtConfig.ExpireHour
	if hours <= 0 {
		hours = 24
	}
	token, err := utils.GenerateToken(user.ID, user.Username, user.Role, hours)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("last_login", now).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      Principal{UserID: user.ID, Role: user.Role, IP: clientIP, UserAgent: userAgent},
			Module:     "auth",
			Action:     "login",
			Message:    fmt.Sprintf("user %s logged in", user.Username),
			EntityType: "user",
			EntityID:   user.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	user.LastLogin = &now

	return &LoginResponse{
		Token:    token,
		User:     &user,
		ExpireAt: now.Add(time.Duration(hours) * time.Hour),
	}, nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Institution").First(&user, id).Error; err != nil {
		return nil, wrapNotFound(err, "user", id)
	}
	return &user, nil
}

// EnsureAdmin creates the first administrator when no admin exists.
func (s *AuthService) EnsureAdmin(username, password string) error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("role = ?", workflow.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	admin := models.User{
		Username: username,
		Password: hashed,
		Name:     "Administrator",
		Role:     workflow.RoleAdmin,
		IsActive: true,
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&admin).Error; err != nil {
			return wrapDuplicate(err, "username already exists")
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      SystemPrincipal,
			Module:     "user",
			Action:     "create",
			Message:    "seeded administrator " + admin.Username,
			EntityType: "user",
			EntityID:   admin.ID,
			New:        admin,
		})
	})
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

func (s *AuthService) ChangePassword(p Principal, req *ChangePasswordRequest) error {
	var user models.User
	if err := s.db.First(&user, p.UserID).Error; err != nil {
		return wrapNotFound(err, "user", p.UserID)
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return invalidf("incorrect old password")
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("password", hashed).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "auth",
			Action:     "change_password",
			Message:    fmt.Sprintf("user %s changed password", user.Username),
			EntityType: "user",
			EntityID:   user.ID,
		})
	})
}
