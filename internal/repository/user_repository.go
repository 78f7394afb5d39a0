package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pengaduan/backend/internal/models"
	"github.com/pengaduan/backend/internal/workflow"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, role *workflow.Role) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error

	// Assignment resolution
	FindSupervisorsByServiceType(ctx context.Context, serviceType models.ServiceType) ([]models.User, error)
	FindAgentsByServiceType(ctx context.Context, serviceType models.ServiceType) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, role *workflow.Role) ([]models.User, error) {
	var users []models.User
	query := r.db.WithContext(ctx).Model(&models.User{})
	if role != nil {
		query = query.Where("role = ?", *role)
	}
	err := query.Order("created_at ASC").Find(&users).Error
	return users, err
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("last_login_at", gorm.Expr("NOW()")).Error
}

// Assignment resolution

func (r *userRepository) FindSupervisorsByServiceType(ctx context.Context, serviceType models.ServiceType) ([]models.User, error) {
	return r.findActiveByRoleAndServiceType(ctx, workflow.RoleSupervisor, serviceType)
}

func (r *userRepository) FindAgentsByServiceType(ctx context.Context, serviceType models.ServiceType) ([]models.User, error) {
	return r.findActiveByRoleAndServiceType(ctx, workflow.RoleAgent, serviceType)
}

func (r *userRepository) findActiveByRoleAndServiceType(ctx context.Context, role workflow.Role, serviceType models.ServiceType) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", role, true).
		Where("? = ANY(service_types_handled)", string(serviceType)).
		Order("id ASC"). // deterministic tie-break for routing
		Find(&users).Error
	return users, err
}
