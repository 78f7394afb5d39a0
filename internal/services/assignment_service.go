package services

import (
	"context"
	"fmt"

	"github.com/pengaduan/backend/internal/apperrors"
	"github.com/pengaduan/backend/internal/models"
	"github.com/pengaduan/backend/internal/repository"
)

// AssignmentResolver answers routing questions: which supervisor receives a
// new complaint of a given service type, and which agents are eligible for
// assignment. An empty pool is a normal answer, not an error.
type AssignmentResolver interface {
	ResolveSupervisor(ctx context.Context, serviceType models.ServiceType) (*models.User, error)
	EligibleAgents(ctx context.Context, serviceType models.ServiceType) ([]models.UserResponse, error)
}

type assignmentResolver struct {
	userRepo repository.UserRepository
}

func NewAssignmentResolver(userRepo repository.UserRepository) AssignmentResolver {
	return &assignmentResolver{userRepo: userRepo}
}

// ResolveSupervisor picks the supervisor bound to complaints of this service
// type. The repository orders candidates by id, so routing is deterministic
// when several supervisors cover the same type. Returns nil when nobody does.
func (r *assignmentResolver) ResolveSupervisor(ctx context.Context, serviceType models.ServiceType) (*models.User, error) {
	supervisors, err := r.userRepo.FindSupervisorsByServiceType(ctx, serviceType)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}
	if len(supervisors) == 0 {
		return nil, nil
	}
	return &supervisors[0], nil
}

func (r *assignmentResolver) EligibleAgents(ctx context.Context, serviceType models.ServiceType) ([]models.UserResponse, error) {
	if !serviceType.Valid() {
		return nil, fmt.Errorf("unknown service type %q: %w", serviceType, apperrors.ErrValidation)
	}
	agents, err := r.userRepo.FindAgentsByServiceType(ctx, serviceType)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}
	responses := make([]models.UserResponse, len(agents))
	for i := range agents {
		responses[i] = models.ToUserResponse(&agents[i])
	}
	return responses, nil
}
