package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/pengaduan/backend/internal/workflow"
)

// User is an internal actor: administrator, supervisor, agent or management
// viewer. The complaint core only reads users; it never creates or edits them
// outside the admin user-management surface.
type User struct {
	ID       uuid.UUID     `gorm:"type:uuid;primary_key" json:"id"`
	Username string        `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Password string        `gorm:"not null" json:"-"`
	Name     string        `gorm:"size:100;not null" json:"name"`
	Email    string        `gorm:"size:100;uniqueIndex" json:"email"`
	Role     workflow.Role `gorm:"size:20;index;not null" json:"role"`

	// Service types this supervisor/agent handles; empty for admin and
	// management.
	ServiceTypesHandled pq.StringArray `gorm:"type:text[]" json:"service_types_handled"`

	IsActive    bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Actor wraps the user as a workflow actor.
func (u *User) Actor() workflow.Actor {
	return workflow.UserActor(u.ID, u.Name, u.Role, []string(u.ServiceTypesHandled))
}

// HandlesServiceType reports whether the user covers the given service type.
func (u *User) HandlesServiceType(serviceType ServiceType) bool {
	for _, st := range u.ServiceTypesHandled {
		if st == string(serviceType) {
			return true
		}
	}
	return false
}

// Request types

type UserLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type UserCreateRequest struct {
	Username            string   `json:"username" validate:"required,min=3,max=50"`
	Password            string   `json:"password" validate:"required,min=6"`
	Name                string   `json:"name" validate:"required,max=100"`
	Email               string   `json:"email" validate:"omitempty,email,max=100"`
	Role                string   `json:"role" validate:"required,oneof=admin supervisor agent management"`
	ServiceTypesHandled []string `json:"service_types_handled"`
}

type UserUpdateRequest struct {
	Name                *string  `json:"name" validate:"omitempty,max=100"`
	Email               *string  `json:"email" validate:"omitempty,email,max=100"`
	Role                *string  `json:"role" validate:"omitempty,oneof=admin supervisor agent management"`
	ServiceTypesHandled []string `json:"service_types_handled"`
	IsActive            *bool    `json:"is_active"`
	NewPassword         *string  `json:"new_password" validate:"omitempty,min=6"`
}

// Response types

type UserResponse struct {
	ID                  uuid.UUID     `json:"id"`
	Username            string        `json:"username"`
	Name                string        `json:"name"`
	Email               string        `json:"email"`
	Role                workflow.Role `json:"role"`
	ServiceTypesHandled []string      `json:"service_types_handled"`
	IsActive            bool          `json:"is_active"`
	LastLoginAt         *time.Time    `json:"last_login_at"`
	CreatedAt           time.Time     `json:"created_at"`
}

// UserBrief is the embedded user reference on complaint responses.
type UserBrief struct {
	ID       uuid.UUID     `json:"id"`
	Username string        `json:"username"`
	Name     string        `json:"name"`
	Role     workflow.Role `json:"role"`
}

type AuthResponse struct {
	User         UserResponse `json:"user"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresIn    int64        `json:"expires_in,omitempty"`
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:                  u.ID,
		Username:            u.Username,
		Name:                u.Name,
		Email:               u.Email,
		Role:                u.Role,
		ServiceTypesHandled: []string(u.ServiceTypesHandled),
		IsActive:            u.IsActive,
		LastLoginAt:         u.LastLoginAt,
		CreatedAt:           u.CreatedAt,
	}
}

func ToUserBrief(u *User) UserBrief {
	return UserBrief{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Role:     u.Role,
	}
}
