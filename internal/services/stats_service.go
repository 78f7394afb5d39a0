package services

import (
	"context"
	"fmt"

	"github.com/pengaduan/backend/internal/apperrors"
	"github.com/pengaduan/backend/internal/models"
	"github.com/pengaduan/backend/internal/repository"
	"github.com/pengaduan/backend/internal/workflow"
)

// StatsService serves the management dashboard: derived counts only, no write
// path into the complaint tables.
type StatsService interface {
	GetStats(ctx context.Context, actor workflow.Actor) (*models.StatsResponse, error)
}

type statsService struct {
	complaintRepo repository.ComplaintRepository
}

func NewStatsService(complaintRepo repository.ComplaintRepository) StatsService {
	return &statsService{complaintRepo: complaintRepo}
}

func (s *statsService) GetStats(ctx context.Context, actor workflow.Actor) (*models.StatsResponse, error) {
	if actor.Kind != workflow.ActorUser {
		return nil, fmt.Errorf("stats require an authenticated user: %w", apperrors.ErrPermission)
	}
	switch actor.Role {
	case workflow.RoleAdmin, workflow.RoleManagement, workflow.RoleSupervisor:
	default:
		return nil, fmt.Errorf("stats not available to %s: %w", actor.Role, apperrors.ErrPermission)
	}

	stats, err := s.complaintRepo.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}
	return stats, nil
}
