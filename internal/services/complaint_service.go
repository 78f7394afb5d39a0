package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pengaduan/backend/internal/apperrors"
	"github.com/pengaduan/backend/internal/models"
	"github.com/pengaduan/backend/internal/repository"
	"github.com/pengaduan/backend/internal/workflow"
)

// trackingRetries bounds the transparent retry on tracking-id collisions.
const trackingRetries = 2

// AttachmentInput describes bytes already placed in object storage; the
// service only records the reference.
type AttachmentInput struct {
	FileName   string
	FileSize   int64
	MimeType   string
	ObjectPath string
}

// FileStore resolves stored object paths to download URLs.
type FileStore interface {
	GetFileURL(ctx context.Context, objectName string) (string, error)
}

type ComplaintService interface {
	CreateComplaint(ctx context.Context, req *models.ComplaintCreateRequest, attachments []AttachmentInput) (*models.ComplaintResponse, error)
	GetComplaint(ctx context.Context, id uuid.UUID, actor workflow.Actor) (*models.ComplaintResponse, error)
	GetComplaintByTrackingID(ctx context.Context, trackingID string) (*models.PublicComplaintResponse, error)
	ListComplaints(ctx context.Context, filter *models.ComplaintFilter, actor workflow.Actor) ([]models.ComplaintResponse, int64, error)
	GetHistory(ctx context.Context, id uuid.UUID, actor workflow.Actor) ([]models.HistoryResponse, error)

	VerifyComplaint(ctx context.Context, id uuid.UUID, actor workflow.Actor) (*models.ComplaintResponse, error)
	AssignAgent(ctx context.Context, id, agentID uuid.UUID, actor workflow.Actor) (*models.ComplaintResponse, error)
	AddNote(ctx context.Context, id uuid.UUID, actor workflow.Actor, note, actionLabel string) (*models.ComplaintResponse, error)
	RequestStatusChange(ctx context.Context, id uuid.UUID, actor workflow.Actor, target workflow.Status, notes string, attachment *AttachmentInput) (*models.ComplaintResponse, error)
	ReviewRequest(ctx context.Context, id uuid.UUID, actor workflow.Actor, approve bool, notes string) (*models.ComplaintResponse, error)
	RejectComplaint(ctx context.Context, id uuid.UUID, actor workflow.Actor, notes string) (*models.ComplaintResponse, error)
	UpdateComplaint(ctx context.Context, id uuid.UUID, req *models.ComplaintUpdateRequest, actor workflow.Actor) (*models.ComplaintResponse, error)
	DeleteComplaint(ctx context.Context, id uuid.UUID, actor workflow.Actor) error

	AttachmentURL(ctx context.Context, complaintID, attachmentID uuid.UUID, actor workflow.Actor) (string, error)
}

type complaintService struct {
	tx            TxRunner
	complaintRepo repository.ComplaintRepository
	userRepo      repository.UserRepository
	assignment    AssignmentResolver
	files         FileStore
}

func NewComplaintService(tx TxRunner, complaintRepo repository.ComplaintRepository, userRepo repository.UserRepository, assignment AssignmentResolver, files FileStore) ComplaintService {
	return &complaintService{
		tx:            tx,
		complaintRepo: complaintRepo,
		userRepo:      userRepo,
		assignment:    assignment,
		files:         files,
	}
}

// guard runs the two fail-fast checks every transition starts with: the
// permission evaluator, then the state machine. Nothing is written when
// either fails.
func guard(actor workflow.Actor, c *models.Complaint, action workflow.Action) error {
	if !workflow.CanPerform(actor, c.Ref(), action) {
		return fmt.Errorf("%s not allowed for this actor: %w", action, apperrors.ErrPermission)
	}
	if !workflow.AllowedFrom(action, c.Status) {
		return fmt.Errorf("%s not legal from status %s: %w", action, c.Status, apperrors.ErrInvalidTransition)
	}
	return nil
}

func mapFindErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("complaint: %w", apperrors.ErrNotFound)
	}
	return fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
}

// runTransition is the engine's single write path: permission and
// state-machine checks on a fresh read, then one transaction that locks the
// complaint row, verifies the status has not moved underneath us, and runs
// apply (field mutation plus exactly one ledger append). A status that moved
// between the read and the lock is a lost race and surfaces ErrConflict.
func (s *complaintService) runTransition(ctx context.Context, id uuid.UUID, actor workflow.Actor, action workflow.Action,
	apply func(repo repository.ComplaintRepository, c *models.Complaint) error) error {

	pre, err := s.complaintRepo.FindByID(ctx, id)
	if err != nil {
		return mapFindErr(err)
	}
	if err := guard(actor, pre, action); err != nil {
		return err
	}

	return s.tx.InTransaction(ctx, func(tx *gorm.DB) error {
		repo := s.complaintRepo.WithTx(tx)

		c, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// It existed a moment ago; a concurrent delete won.
				return fmt.Errorf("complaint deleted concurrently: %w", apperrors.ErrConflict)
			}
			return fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
		}

		if c.Status != pre.Status || !uuidPtrEqual(c.AssignedAgentID, pre.AssignedAgentID) {
			return fmt.Errorf("complaint changed concurrently: %w", apperrors.ErrConflict)
		}
		// Re-run the guard under the lock; the admin catch-all may have
		// changed ownership fields without moving the status.
		if err := guard(actor, c, action); err != nil {
			return err
		}

		return apply(repo, c)
	})
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// historyEntry builds a ledger entry attributed to the actor.
func historyEntry(complaintID uuid.UUID, actor workflow.Actor, action, notes string) *models.ComplaintHistory {
	entry := &models.ComplaintHistory{
		ComplaintID: complaintID,
		ActorKind:   actor.Kind,
		UserName:    actor.DisplayName(),
		Action:      action,
		Notes:       notes,
	}
	if actor.Kind == workflow.ActorUser {
		id := actor.UserID
		entry.UserID = &id
		entry.UserRole = actor.Role
	}
	return entry
}

func statusPtr(s workflow.Status) *workflow.Status { return &s }

// CreateComplaint is the public intake: allocate a tracking id, route a
// supervisor by service type, persist complaint, attachments and the first
// ledger entry in one transaction. Tracking-id collisions under concurrency
// retry once with a recomputed sequence.
func (s *complaintService) CreateComplaint(ctx context.Context, req *models.ComplaintCreateRequest, attachments []AttachmentInput) (*models.ComplaintResponse, error) {
	serviceType := models.ServiceType(req.ServiceType)
	if !serviceType.Valid() {
		return nil, fmt.Errorf("unknown service type %q: %w", req.ServiceType, apperrors.ErrValidation)
	}

	incidentTime, err := time.Parse(time.RFC3339, req.IncidentTime)
	if err != nil {
		return nil, fmt.Errorf("incident_time must be RFC 3339: %w", apperrors.ErrValidation)
	}

	complaint := &models.Complaint{
		IsAnonymous:     req.IsAnonymous,
		ServiceType:     serviceType,
		IncidentTime:    incidentTime,
		Description:     req.Description,
		CustomFieldData: req.CustomFieldData,
		Status:          workflow.StatusNew,
	}
	if !req.IsAnonymous {
		complaint.ReporterName = req.ReporterName
		complaint.ReporterEmail = req.ReporterEmail
		complaint.ReporterWhatsApp = req.ReporterWhatsApp
	}

	// Route a supervisor by service type. An empty pool leaves the complaint
	// unbound (the admin picks it up); a lookup failure aborts the intake.
	supervisor, err := s.assignment.ResolveSupervisor(ctx, serviceType)
	if err != nil {
		return nil, err
	}
	if supervisor != nil {
		complaint.SupervisorID = &supervisor.ID
	}

	reporter := workflow.PublicActor()
	if !req.IsAnonymous && req.ReporterName != nil {
		reporter.Name = *req.ReporterName
	}

	var lastErr error
	for attempt := 0; attempt < trackingRetries; attempt++ {
		year := time.Now().Year()

		txErr := s.tx.InTransaction(ctx, func(tx *gorm.DB) error {
			repo := s.complaintRepo.WithTx(tx)

			existing, err := repo.TrackingIDsForYear(ctx, year)
			if err != nil {
				return fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
			}
			complaint.TrackingID = models.BuildTrackingID(year, models.NextTrackingSequence(existing, year))
			complaint.ID = uuid.Nil

			if err := repo.Create(ctx, complaint); err != nil {
				return err
			}

			for _, a := range attachments {
				att := &models.ComplaintAttachment{
					ComplaintID: complaint.ID,
					FileName:    a.FileName,
					FileSize:    a.FileSize,
					MimeType:    a.MimeType,
					ObjectPath:  a.ObjectPath,
				}
				if err := repo.CreateAttachment(ctx, att); err != nil {
					return fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
				}
			}

			entry := historyEntry(complaint.ID, reporter, "Complaint created", "")
			entry.NewStatus = statusPtr(workflow.StatusNew)
			return repo.AppendHistory(ctx, entry)
		})

		if txErr == nil {
			return s.reload(ctx, complaint.ID)
		}
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			// Another intake won the sequence; recompute and try again.
			lastErr = txErr
			continue
		}
		if apperrors.IsUserFacing(txErr) {
			return nil, txErr
		}
		return nil, fmt.Errorf("%v: %w", txErr, apperrors.ErrInternal)
	}

	return nil, fmt.Errorf("tracking id allocation kept colliding (%v): %w", lastErr, apperrors.ErrConflict)
}

func (s *complaintService) reload(ctx context.Context, id uuid.UUID) (*models.ComplaintResponse, error) {
	c, err := s.complaintRepo.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, mapFindErr(err)
	}
	resp := models.ToComplaintResponse(c)
	return &resp, nil
}

func (s *complaintService) GetComplaint(ctx context.Context, id uuid.UUID, actor workflow.Actor) (*models.ComplaintResponse, error) {
	c, err := s.complaintRepo.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, mapFindErr(err)
	}
	if !workflow.CanPerform(actor, c.Ref(), workflow.ActionView) {
		return nil, fmt.Errorf("view not allowed: %w", apperrors.ErrPermission)
	}
	resp := models.ToComplaintResponse(c)
	return &resp, nil
}

func (s *complaintService) GetComplaintByTrackingID(ctx context.Context, trackingID string) (*models.PublicComplaintResponse, error) {
	if !models.ValidTrackingID(trackingID) {
		return nil, fmt.Errorf("malformed tracking id: %w", apperrors.ErrValidation)
	}
	c, err := s.complaintRepo.FindByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, mapFindErr(err)
	}
	resp := models.ToPublicComplaintResponse(c)
	return &resp, nil
}

func (s *complaintService) ListComplaints(ctx context.Context, filter *models.ComplaintFilter, actor workflow.Actor) ([]models.ComplaintResponse, int64, error) {
	if actor.Kind != workflow.ActorUser {
		return nil, 0, fmt.Errorf("listing requires an authenticated user: %w", apperrors.ErrPermission)
	}
	scope := models.ScopeForActor(actor)

	complaints, total, err := s.complaintRepo.List(ctx, filter, scope)
	if err != nil {
		return nil, 0, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}

	responses := make([]models.ComplaintResponse, len(complaints))
	for i := range complaints {
		responses[i] = models.ToComplaintResponse(&complaints[i])
	}
	return responses, total, nil
}

func (s *complaintService) GetHistory(ctx context.Context, id uuid.UUID, actor workflow.Actor) ([]models.HistoryResponse, error) {
	c, err := s.complaintRepo.FindByID(ctx, id)
	if err != nil {
		return nil, mapFindErr(err)
	}
	if !workflow.CanPerform(actor, c.Ref(), workflow.ActionView) {
		return nil, fmt.Errorf("view not allowed: %w", apperrors.ErrPermission)
	}

	history, err := s.complaintRepo.ListHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}
	responses := make([]models.HistoryResponse, len(history))
	for i := range history {
		responses[i] = models.ToHistoryResponse(&history[i])
	}
	return responses, nil
}

func (s *complaintService) VerifyComplaint(ctx context.Context, id uuid.UUID, actor workflow.Actor) (*models.ComplaintResponse, error) {
	err := s.runTransition(ctx, id, actor, workflow.ActionVerify, func(repo repository.ComplaintRepository, c *models.Complaint) error {
		updates := map[string]interface{}{
			"status":     workflow.StatusUnderVerification,
			"updated_at": time.Now(),
		}
		if err := repo.UpdateFields(ctx, id, updates); err != nil {
			return fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
		}

		entry := historyEntry(id, actor, "Verification started", "")
		entry.OldStatus = statusPtr(c.Status)
		entry.NewStatus = statusPtr(workflow.StatusUnderVerification)
		return repo.AppendHistory(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, id)
}

func (s *complaintService) AssignAgent(ctx context.Context, id, agentID uuid.UUID, actor workflow.Actor) (*models.ComplaintResponse, error) {
	agent, err := s.userRepo.FindByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("agent: %w", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}
	if agent.Role != workflow.RoleAgent || !agent.IsActive {
		return nil, fmt.Errorf("user %s is not an active agent: %w", agentID, apperrors.ErrValidation)
	}

	err = s.runTransition(ctx, id, actor, workflow.ActionAssign, func(repo repository.ComplaintRepository, c *models.Complaint) error {
		updates := map[string]interface{}{
			"assigned_agent_id": agentID,
			"status":            workflow.StatusInProgress,
			"updated_at":        time.Now(),
		}
		// Bind the supervisor at assignment time if intake routing left the
		// complaint unbound.
		if c.SupervisorID == nil && actor.Role == workflow.RoleSupervisor {
			updates["supervisor_id"] = actor.UserID
		}
		if err := repo.UpdateFields(ctx, id, updates); err != nil {
			return fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
		}

		entry := historyEntry(id, actor, fmt.Sprintf("Assigned to %s", agent.Name), "")
		// Re-assignment in progress swaps the agent without a status change,
		// so the old/new pair is recorded only when the status actually moves.
		if c.Status != workflow.StatusInProgress {
			entry.OldStatus = statusPtr(c.Status)
			entry.NewStatus = statusPtr(workflow.StatusInProgress)
		}
		entry.AssignedAgentID = &agent.ID
		entry.AssignedAgentName = agent.Name
		return repo.AppendHistory(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, id)
}

func (s *complaintService) AddNote(ctx context.Context, id uuid.UUID, actor workflow.Actor, note, actionLabel string) (*models.ComplaintResponse, error) {
	if note == "" {
		return nil, fmt.Errorf("note must not be empty: %w", apperrors.ErrValidation)
	}
	if actionLabel == "" {
		actionLabel = "Note added"
	}

	err := s.runTransition(ctx, id, actor, workflow.ActionAddNote, func(repo repository.ComplaintRepository, c *models.Complaint) error {
		updates := map[string]interface{}{"updated_at": time.Now()}
		if actor.Role == workflow.RoleAgent {
			followUp := note
			if c.AgentFollowUpNotes != "" {
				followUp = c.AgentFollowUpNotes + "\n" + note
			}
			updates["agent_follow_up_notes"] = followUp
		}
		if err := repo.UpdateFields(ctx, id, updates); err != nil {
			return fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
		}

		return repo.AppendHistory(ctx, historyEntry(id, actor, actionLabel, note))
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, id)
}

func (s *complaintService) RequestStatusChange(ctx context.Context, id uuid.UUID, actor workflow.Actor, target workflow.Status, notes string, attachment *AttachmentInput) (*models.ComplaintResponse, error) {
	if !workflow.RequestableStatus(target) {
		return nil, fmt.Errorf("agents may only propose resolved or rejected, got %s: %w", target, apperrors.ErrValidation)
	}
	if notes == "" {
		return nil, fmt.Errorf("closure request needs notes: %w", apperrors.ErrValidation)
	}

	err := s.runTransition(ctx, id, actor, workflow.ActionRequestClosure, func(repo repository.ComplaintRepository, c *models.Complaint) error {
		updates := map[string]interface{}{
			"status":                      workflow.StatusAwaitingApproval,
			"requested_status_change":     target,
			"status_change_request_notes": notes,
			"updated_at":                  time.Now(),
		}
		if err := repo.UpdateFields(ctx, id, updates); err != nil {
			return fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
		}

		if attachment != nil {
			actorID := actor.UserID
			att := &models.ComplaintAttachment{
				ComplaintID:  id,
				FileName:     attachment.FileName,
				FileSize:     attachment.FileSize,
				MimeType:     attachment.MimeType,
				ObjectPath:   attachment.ObjectPath,
				UploadedByID: &actorID,
			}
			if err := repo.CreateAttachment(ctx, att); err != nil {
				return fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
			}
		}

		entry := historyEntry(id, actor, fmt.Sprintf("Closure requested (%s)", target), notes)
		entry.OldStatus = statusPtr(c.Status)
		entry.NewStatus = statusPtr(workflow.StatusAwaitingApproval)
		return repo.AppendHistory(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, id)
}

// ReviewRequest settles a pending closure request. Approval moves the
// complaint to the requested terminal status; rejection of the request (not
// of the complaint) returns it to in_progress. Both clear the request fields.
func (s *complaintService) ReviewRequest(ctx context.Context, id uuid.UUID, actor workflow.Actor, approve bool, notes string) (*models.ComplaintResponse, error) {
	err := s.runTransition(ctx, id, actor, workflow.ActionReviewRequest, func(repo repository.ComplaintRepository, c *models.Complaint) error {
		pending := c.PendingRequest()
		if pending == nil {
			return fmt.Errorf("no pending request on %s: %w", c.TrackingID, apperrors.ErrInvalidTransition)
		}

		newStatus := workflow.StatusInProgress
		action := "Closure request rejected"
		if approve {
			newStatus = pending.TargetStatus
			action = fmt.Sprintf("Closure request approved (%s)", pending.TargetStatus)
		}

		updates := map[string]interface{}{
			"status":                      newStatus,
			"requested_status_change":     nil,
			"status_change_request_notes": "",
			"supervisor_review_notes":     notes,
			"updated_at":                  time.Now(),
		}
		if err := repo.UpdateFields(ctx, id, updates); err != nil {
			return fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
		}

		entry := historyEntry(id, actor, action, notes)
		entry.OldStatus = statusPtr(c.Status)
		entry.NewStatus = statusPtr(newStatus)
		return repo.AppendHistory(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, id)
}

// RejectComplaint is the supervisor's summary rejection from the intake
// states, terminal and distinct from rejecting a closure request.
func (s *complaintService) RejectComplaint(ctx context.Context, id uuid.UUID, actor workflow.Actor, notes string) (*models.ComplaintResponse, error) {
	if notes == "" {
		return nil, fmt.Errorf("rejection needs notes: %w", apperrors.ErrValidation)
	}

	err := s.runTransition(ctx, id, actor, workflow.ActionReject, func(repo repository.ComplaintRepository, c *models.Complaint) error {
		updates := map[string]interface{}{
			"status":                  workflow.StatusRejected,
			"supervisor_review_notes": notes,
			"updated_at":              time.Now(),
		}
		if err := repo.UpdateFields(ctx, id, updates); err != nil {
			return fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
		}

		entry := historyEntry(id, actor, "Complaint rejected", notes)
		entry.OldStatus = statusPtr(c.Status)
		entry.NewStatus = statusPtr(workflow.StatusRejected)
		return repo.AppendHistory(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, id)
}

// UpdateComplaint is the administrative catch-all patch, including forced
// status overrides. Request fields are cleared whenever the status leaves
// awaiting_supervisor_approval by this path.
func (s *complaintService) UpdateComplaint(ctx context.Context, id uuid.UUID, req *models.ComplaintUpdateRequest, actor workflow.Actor) (*models.ComplaintResponse, error) {
	var newStatus *workflow.Status
	if req.Status != nil {
		st := workflow.Status(*req.Status)
		if !st.Valid() {
			return nil, fmt.Errorf("unknown status %q: %w", *req.Status, apperrors.ErrValidation)
		}
		if st == workflow.StatusAwaitingApproval {
			// Only an agent's closure request may enter this state; forcing
			// it would leave the pending-request fields inconsistent.
			return nil, fmt.Errorf("cannot force status %s: %w", st, apperrors.ErrValidation)
		}
		newStatus = &st
	}
	if req.ServiceType != nil && !models.ServiceType(*req.ServiceType).Valid() {
		return nil, fmt.Errorf("unknown service type %q: %w", *req.ServiceType, apperrors.ErrValidation)
	}

	err := s.runTransition(ctx, id, actor, workflow.ActionUpdate, func(repo repository.ComplaintRepository, c *models.Complaint) error {
		updates := map[string]interface{}{"updated_at": time.Now()}

		if req.ReporterName != nil {
			updates["reporter_name"] = *req.ReporterName
		}
		if req.ReporterEmail != nil {
			updates["reporter_email"] = *req.ReporterEmail
		}
		if req.ReporterWhatsApp != nil {
			updates["reporter_whatsapp"] = *req.ReporterWhatsApp
		}
		if req.ServiceType != nil {
			updates["service_type"] = *req.ServiceType
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.CustomFieldData != nil {
			updates["custom_field_data"] = *req.CustomFieldData
		}
		if req.SupervisorReviewNotes != nil {
			updates["supervisor_review_notes"] = *req.SupervisorReviewNotes
		}
		if req.AssignedAgentID != nil {
			agentID, err := uuid.Parse(*req.AssignedAgentID)
			if err != nil {
				return fmt.Errorf("bad assigned_agent_id: %w", apperrors.ErrValidation)
			}
			updates["assigned_agent_id"] = agentID
		}
		if req.SupervisorID != nil {
			supervisorID, err := uuid.Parse(*req.SupervisorID)
			if err != nil {
				return fmt.Errorf("bad supervisor_id: %w", apperrors.ErrValidation)
			}
			updates["supervisor_id"] = supervisorID
		}

		statusChanged := newStatus != nil && *newStatus != c.Status
		if statusChanged {
			updates["status"] = *newStatus
			if c.Status == workflow.StatusAwaitingApproval {
				updates["requested_status_change"] = nil
				updates["status_change_request_notes"] = ""
			}
		}

		if err := repo.UpdateFields(ctx, id, updates); err != nil {
			return fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
		}

		entry := historyEntry(id, actor, req.ActionDescription, req.NoteForHistory)
		if statusChanged {
			entry.OldStatus = statusPtr(c.Status)
			entry.NewStatus = newStatus
		}
		return repo.AppendHistory(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, id)
}

// AttachmentURL returns a presigned download URL for one attachment. Access
// follows complaint view permission.
func (s *complaintService) AttachmentURL(ctx context.Context, complaintID, attachmentID uuid.UUID, actor workflow.Actor) (string, error) {
	c, err := s.complaintRepo.FindByID(ctx, complaintID)
	if err != nil {
		return "", mapFindErr(err)
	}
	if !workflow.CanPerform(actor, c.Ref(), workflow.ActionView) {
		return "", fmt.Errorf("view not allowed: %w", apperrors.ErrPermission)
	}

	attachment, err := s.complaintRepo.FindAttachmentByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("attachment: %w", apperrors.ErrNotFound)
		}
		return "", fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}
	if attachment.ComplaintID != complaintID {
		return "", fmt.Errorf("attachment: %w", apperrors.ErrNotFound)
	}

	url, err := s.files.GetFileURL(ctx, attachment.ObjectPath)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
	}
	return url, nil
}

// DeleteComplaint removes the complaint and, through the cascade, its entire
// ledger and attachment references. Admin only.
func (s *complaintService) DeleteComplaint(ctx context.Context, id uuid.UUID, actor workflow.Actor) error {
	return s.runTransition(ctx, id, actor, workflow.ActionDelete, func(repo repository.ComplaintRepository, c *models.Complaint) error {
		if err := repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("%v: %w", err, apperrors.ErrInternal)
		}
		return nil
	})
}
