package services

import (
	"fmt"
	"strings"

	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/internal/utils"
	"github.com/kwanter/sakip-sub003/internal/workflow"
	"gorm.io/gorm"
)

type UserService struct {
	db    *gorm.DB
	audit *SystemLogService
}

func NewUserService(db *gorm.DB, audit *SystemLogService) *UserService {
	return &UserService{db: db, audit: audit}
}

type UserListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Role     string `form:"role"`
	Search   string `form:"search"`
}

type UserListResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []models.User `json:"items"`
}

type CreateUserRequest struct {
	Username      string `json:"username" binding:"required,max=100"`
	Password      string `json:"password" binding:"required,min=6"`
	Name          string `json:"name"`
	Email         string `json:"email" binding:"omitempty,email"`
	Role          string `json:"role" binding:"required"`
	InstitutionID *uint  `json:"institution_id"`
}

type UpdateUserRequest struct {
	Name          *string `json:"name"`
	Email         *string `json:"email" binding:"omitempty,email"`
	Role          *string `json:"role"`
	InstitutionID *uint   `json:"institution_id"`
	IsActive      *bool   `json:"is_active"`
	Password      *string `json:"password" binding:"omitempty,min=6"`
}

func (s *UserService) List(req *UserListRequest) (*UserListResponse, error) {
	offset := normalizePage(&req.Page, &req.PageSize, 20)

	var items []models.User
	var total int64

	query := s.db.Model(&models.User{})
	if req.Role != "" {
		query = query.Where("role = ?", req.Role)
	}
	if req.Search != "" {
		like := "%" + req.Search + "%"
		query = query.Where("username LIKE ? OR name LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	if err := query.Preload("Institution").Offset(offset).Limit(req.PageSize).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return &UserListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: items}, nil
}

func (s *UserService) Create(p Principal, req *CreateUserRequest) (*models.User, error) {
	if !workflow.ValidRole(req.Role) {
		return nil, invalidf("unknown role %q", req.Role)
	}
	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Username:      strings.TrimSpace(req.Username),
		Password:      hashed,
		Name:          req.Name,
		Email:         req.Email,
		Role:          req.Role,
		InstitutionID: req.InstitutionID,
		IsActive:      true,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if user.InstitutionID != nil {
			if err := tx.First(&models.Institution{}, *user.InstitutionID).Error; err != nil {
				return wrapNotFound(err, "institution", *user.InstitutionID)
			}
		}
		if err := tx.Create(&user).Error; err != nil {
			return wrapDuplicate(err, "username already exists")
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "user",
			Action:     "create",
			Message:    fmt.Sprintf("created user %s (%s)", user.Username, user.Role),
			EntityType: "user",
			EntityID:   user.ID,
			New:        user,
		})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) Update(p Principal, id uint, req *UpdateUserRequest) (*models.User, error) {
	var user models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			return wrapNotFound(err, "user", id)
		}
		before := user

		updates := map[string]interface{}{}
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.Email != nil {
			updates["email"] = *req.Email
		}
		if req.Role != nil {
			if !workflow.ValidRole(*req.Role) {
				return invalidf("unknown role %q", *req.Role)
			}
			updates["role"] = *req.Role
		}
		if req.InstitutionID != nil {
			updates["institution_id"] = *req.InstitutionID
		}
		if req.IsActive != nil {
			if !*req.IsActive && id == p.UserID {
				return invalidf("cannot deactivate your own account")
			}
			updates["is_active"] = *req.IsActive
		}
		if req.Password != nil {
			hashed, err := utils.HashPassword(*req.Password)
			if err != nil {
				return err
			}
			updates["password"] = hashed
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return err
		}

		logged := make(map[string]interface{}, len(updates))
		for k, v := range updates {
			if k == "password" {
				v = "***"
			}
			logged[k] = v
		}
		return s.audit.Record(tx, AuditEntry{
			Actor:      p,
			Module:     "user",
			Action:     "update",
			Message:    "updated user " + user.Username,
			EntityType: "user",
			EntityID:   id,
			Old:        before,
			New:        logged,
		})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
