package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pengaduan/backend/internal/models"
)

type ComplaintRepository interface {
	// WithTx returns a repository bound to the given transaction. The
	// complaint service opens one transaction per transition and runs every
	// read and write of that transition through the bound repository.
	WithTx(tx *gorm.DB) ComplaintRepository

	Create(ctx context.Context, complaint *models.Complaint) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Complaint, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*models.Complaint, error)
	// FindByIDForUpdate locks the complaint row for the duration of the
	// surrounding transaction. Transitions re-check status after this read.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Complaint, error)
	FindByTrackingID(ctx context.Context, trackingID string) (*models.Complaint, error)
	List(ctx context.Context, filter *models.ComplaintFilter, scope models.VisibilityScope) ([]models.Complaint, int64, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Tracking identifier issuance
	TrackingIDsForYear(ctx context.Context, year int) ([]string, error)

	// History ledger
	AppendHistory(ctx context.Context, entry *models.ComplaintHistory) error
	ListHistory(ctx context.Context, complaintID uuid.UUID) ([]models.ComplaintHistory, error)

	// Attachments
	CreateAttachment(ctx context.Context, attachment *models.ComplaintAttachment) error
	FindAttachmentByID(ctx context.Context, id uuid.UUID) (*models.ComplaintAttachment, error)

	// Stats (derived, read-only)
	GetStats(ctx context.Context) (*models.StatsResponse, error)
}

type complaintRepository struct {
	db *gorm.DB
}

func NewComplaintRepository(db *gorm.DB) ComplaintRepository {
	return &complaintRepository{db: db}
}

func (r *complaintRepository) WithTx(tx *gorm.DB) ComplaintRepository {
	return &complaintRepository{db: tx}
}

func (r *complaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	return r.db.WithContext(ctx).Create(complaint).Error
}

func (r *complaintRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	var complaint models.Complaint
	err := r.db.WithContext(ctx).First(&complaint, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &complaint, nil
}

func (r *complaintRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	var complaint models.Complaint
	err := r.db.WithContext(ctx).
		Preload("AssignedAgent").
		Preload("Supervisor").
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&complaint, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &complaint, nil
}

func (r *complaintRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	var complaint models.Complaint
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&complaint, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &complaint, nil
}

func (r *complaintRepository) FindByTrackingID(ctx context.Context, trackingID string) (*models.Complaint, error) {
	var complaint models.Complaint
	err := r.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("tracking_id = ?", trackingID).
		First(&complaint).Error
	if err != nil {
		return nil, err
	}
	return &complaint, nil
}

// applyScope narrows a query to what the acting role may see. Write
// permission is not the repository's job; this is read scoping only.
func applyScope(query *gorm.DB, scope models.VisibilityScope) *gorm.DB {
	if scope.All {
		return query
	}
	if scope.AgentID != nil {
		return query.Where("assigned_agent_id = ?", *scope.AgentID)
	}
	if scope.SupervisorID != nil {
		if len(scope.TriageServiceTypes) > 0 {
			return query.Where(
				"supervisor_id = ? OR (supervisor_id IS NULL AND status IN ? AND service_type IN ?)",
				*scope.SupervisorID,
				[]string{"new", "under_verification"},
				scope.TriageServiceTypes,
			)
		}
		return query.Where("supervisor_id = ?", *scope.SupervisorID)
	}
	// Unscoped actors (public, system) see nothing through List.
	return query.Where("1 = 0")
}

func (r *complaintRepository) List(ctx context.Context, filter *models.ComplaintFilter, scope models.VisibilityScope) ([]models.Complaint, int64, error) {
	var complaints []models.Complaint
	var total int64

	query := applyScope(r.db.WithContext(ctx).Model(&models.Complaint{}), scope)

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ServiceType != nil {
		query = query.Where("service_type = ?", *filter.ServiceType)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("tracking_id ILIKE ? OR reporter_name ILIKE ? OR description ILIKE ?", pattern, pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	offset := (filter.Page - 1) * filter.Limit

	err := query.
		Preload("AssignedAgent").
		Preload("Supervisor").
		Order("created_at DESC").
		Offset(offset).
		Limit(filter.Limit).
		Find(&complaints).Error
	if err != nil {
		return nil, 0, err
	}

	return complaints, total, nil
}

func (r *complaintRepository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Complaint{}).Where("id = ?", id).Updates(updates).Error
}

func (r *complaintRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// History and attachment rows go with the complaint via ON DELETE CASCADE.
	return r.db.WithContext(ctx).Delete(&models.Complaint{}, "id = ?", id).Error
}

// Tracking identifier issuance

func (r *complaintRepository) TrackingIDsForYear(ctx context.Context, year int) ([]string, error) {
	var ids []string
	prefix := models.BuildTrackingID(year, 0)
	// BuildTrackingID(year, 0) yields PEN-<year>-000; trim the suffix to get
	// the LIKE prefix.
	prefix = prefix[:len(prefix)-3]
	err := r.db.WithContext(ctx).Model(&models.Complaint{}).
		Where("tracking_id LIKE ?", prefix+"%").
		Pluck("tracking_id", &ids).Error
	return ids, err
}

// History ledger

func (r *complaintRepository) AppendHistory(ctx context.Context, entry *models.ComplaintHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *complaintRepository) ListHistory(ctx context.Context, complaintID uuid.UUID) ([]models.ComplaintHistory, error) {
	var history []models.ComplaintHistory
	err := r.db.WithContext(ctx).
		Where("complaint_id = ?", complaintID).
		Order("created_at ASC").
		Find(&history).Error
	return history, err
}

// Attachments

func (r *complaintRepository) CreateAttachment(ctx context.Context, attachment *models.ComplaintAttachment) error {
	return r.db.WithContext(ctx).Create(attachment).Error
}

func (r *complaintRepository) FindAttachmentByID(ctx context.Context, id uuid.UUID) (*models.ComplaintAttachment, error) {
	var attachment models.ComplaintAttachment
	err := r.db.WithContext(ctx).First(&attachment, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &attachment, nil
}

// Stats

func (r *complaintRepository) GetStats(ctx context.Context) (*models.StatsResponse, error) {
	stats := &models.StatsResponse{
		ByStatus:      map[string]int64{},
		ByServiceType: map[string]int64{},
	}

	if err := r.db.WithContext(ctx).Model(&models.Complaint{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var byStatus []bucket
	err := r.db.WithContext(ctx).Model(&models.Complaint{}).
		Select("status AS key, COUNT(*) AS count").
		Group("status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, err
	}
	for _, b := range byStatus {
		stats.ByStatus[b.Key] = b.Count
	}

	var byService []bucket
	err = r.db.WithContext(ctx).Model(&models.Complaint{}).
		Select("service_type AS key, COUNT(*) AS count").
		Group("service_type").
		Scan(&byService).Error
	if err != nil {
		return nil, err
	}
	for _, b := range byService {
		stats.ByServiceType[b.Key] = b.Count
	}

	var resolved struct {
		Count   int64
		AvgDays *float64
	}
	err = r.db.WithContext(ctx).Model(&models.Complaint{}).
		Select("COUNT(*) AS count, AVG(EXTRACT(EPOCH FROM updated_at - created_at) / 86400) AS avg_days").
		Where("status = ?", "resolved").
		Scan(&resolved).Error
	if err != nil {
		return nil, err
	}
	stats.Resolved = resolved.Count
	if resolved.AvgDays != nil {
		stats.AverageResolutionDays = *resolved.AvgDays
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Resolved) / float64(stats.Total) * 100
	}
	stats.LastCalculated = time.Now()

	return stats, nil
}
