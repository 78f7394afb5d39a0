package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/pengaduan/backend/internal/apperrors"
	"github.com/pengaduan/backend/internal/database"
	"github.com/pengaduan/backend/internal/models"
	"github.com/pengaduan/backend/internal/repository"
	"github.com/pengaduan/backend/internal/workflow"
	"github.com/pengaduan/backend/pkg/utils"
)

type UserService interface {
	Login(ctx context.Context, req *models.UserLoginRequest) (*models.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error)
	Logout(ctx context.Context, token string, userID uuid.UUID) error

	CreateUser(ctx context.Context, req *models.UserCreateRequest) (*models.UserResponse, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req *models.UserUpdateRequest) (*models.UserResponse, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.UserResponse, error)
	ListUsers(ctx context.Context, role *workflow.Role) ([]models.UserResponse, error)
}

type userService struct {
	userRepo   repository.UserRepository
	jwtManager *utils.JWTManager
	sessions   *database.SessionStore
}

func NewUserService(userRepo repository.UserRepository, jwtManager *utils.JWTManager, sessions *database.SessionStore) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		sessions:   sessions,
	}
}

// Login verifies credentials and issues an access/refresh token pair. A
// disabled account fails the same way as a bad password.
func (s *userService) Login(ctx context.Context, req *models.UserLoginRequest) (*models.AuthResponse, error) {
	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", apperrors.ErrPermission)
		}
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}
	if !user.IsActive || !utils.CheckPassword(user.Password, req.Password) {
		return nil, fmt.Errorf("invalid credentials: %w", apperrors.ErrPermission)
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}

	return s.issueTokens(ctx, user)
}

func (s *userService) issueTokens(ctx context.Context, user *models.User) (*models.AuthResponse, error) {
	token, expiresAt, err := s.jwtManager.GenerateToken(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}

	session := map[string]interface{}{
		"user_id":  user.ID.String(),
		"username": user.Username,
		"role":     string(user.Role),
	}
	if err := s.sessions.SetUserSession(ctx, user.ID.String(), session, time.Until(expiresAt)); err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}

	return &models.AuthResponse{
		User:         models.ToUserResponse(user),
		Token:        token,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(time.Until(expiresAt).Seconds()),
	}, nil
}

func (s *userService) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	userID, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", apperrors.ErrPermission)
	}

	blacklisted, err := s.sessions.IsTokenBlacklisted(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}
	if blacklisted {
		return nil, fmt.Errorf("refresh token revoked: %w", apperrors.ErrPermission)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", apperrors.ErrPermission)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("account disabled: %w", apperrors.ErrPermission)
	}

	return s.issueTokens(ctx, user)
}

// Logout blacklists the presented access token for the remainder of its
// lifetime and drops the server-side session.
func (s *userService) Logout(ctx context.Context, token string, userID uuid.UUID) error {
	if err := s.sessions.BlacklistToken(ctx, token, s.jwtManager.TokenTTL()); err != nil {
		return fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}
	if err := s.sessions.DeleteUserSession(ctx, userID.String()); err != nil {
		return fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}
	return nil
}

func validateServiceTypes(serviceTypes []string) error {
	for _, st := range serviceTypes {
		if !models.ServiceType(st).Valid() {
			return fmt.Errorf("unknown service type %q: %w", st, apperrors.ErrValidation)
		}
	}
	return nil
}

func (s *userService) CreateUser(ctx context.Context, req *models.UserCreateRequest) (*models.UserResponse, error) {
	if err := validateServiceTypes(req.ServiceTypesHandled); err != nil {
		return nil, err
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}

	user := &models.User{
		Username:            req.Username,
		Password:            hashed,
		Name:                req.Name,
		Email:               req.Email,
		Role:                workflow.Role(req.Role),
		ServiceTypesHandled: pq.StringArray(req.ServiceTypesHandled),
		IsActive:            true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("username or email already taken: %w", apperrors.ErrConflict)
		}
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}

	resp := models.ToUserResponse(user)
	return &resp, nil
}

func (s *userService) UpdateUser(ctx context.Context, id uuid.UUID, req *models.UserUpdateRequest) (*models.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user: %w", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Role != nil {
		user.Role = workflow.Role(*req.Role)
	}
	if req.ServiceTypesHandled != nil {
		if err := validateServiceTypes(req.ServiceTypesHandled); err != nil {
			return nil, err
		}
		user.ServiceTypesHandled = pq.StringArray(req.ServiceTypesHandled)
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.NewPassword != nil {
		hashed, err := utils.HashPassword(*req.NewPassword)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
		}
		user.Password = hashed
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("email already taken: %w", apperrors.ErrConflict)
		}
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}

	resp := models.ToUserResponse(user)
	return &resp, nil
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*models.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user: %w", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}
	resp := models.ToUserResponse(user)
	return &resp, nil
}

func (s *userService) ListUsers(ctx context.Context, role *workflow.Role) ([]models.UserResponse, error) {
	users, err := s.userRepo.List(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}
	responses := make([]models.UserResponse, len(users))
	for i := range users {
		responses[i] = models.ToUserResponse(&users[i])
	}
	return responses, nil
}
