package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pengaduan/backend/internal/apperrors"
	"github.com/pengaduan/backend/internal/models"
	"github.com/pengaduan/backend/internal/repository"
	"github.com/pengaduan/backend/internal/workflow"
)

// In-memory fakes. The repository contract is small enough that a map-backed
// implementation keeps these tests honest without a database.

type fakeTxRunner struct{}

func (fakeTxRunner) InTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeFileStore struct{}

func (fakeFileStore) GetFileURL(ctx context.Context, objectName string) (string, error) {
	return "https://files.local/" + objectName, nil
}

type fakeComplaintRepo struct {
	complaints  map[uuid.UUID]*models.Complaint
	history     []models.ComplaintHistory
	attachments []models.ComplaintAttachment

	// failNextCreate makes the next Create fail once, simulating a unique
	// violation lost to a concurrent intake.
	failNextCreate error
	// beforeLock runs just before FindByIDForUpdate reads, simulating a
	// concurrent writer that commits between the pre-read and the lock.
	beforeLock func(r *fakeComplaintRepo)
}

func newFakeComplaintRepo() *fakeComplaintRepo {
	return &fakeComplaintRepo{complaints: map[uuid.UUID]*models.Complaint{}}
}

func (r *fakeComplaintRepo) WithTx(tx *gorm.DB) repository.ComplaintRepository { return r }

func copyComplaint(c *models.Complaint) *models.Complaint {
	dup := *c
	return &dup
}

func (r *fakeComplaintRepo) Create(ctx context.Context, complaint *models.Complaint) error {
	if r.failNextCreate != nil {
		err := r.failNextCreate
		r.failNextCreate = nil
		return err
	}
	for _, existing := range r.complaints {
		if existing.TrackingID == complaint.TrackingID {
			return gorm.ErrDuplicatedKey
		}
	}
	if complaint.ID == uuid.Nil {
		complaint.ID = uuid.New()
	}
	complaint.CreatedAt = time.Now()
	complaint.UpdatedAt = complaint.CreatedAt
	r.complaints[complaint.ID] = copyComplaint(complaint)
	return nil
}

func (r *fakeComplaintRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	c, ok := r.complaints[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return copyComplaint(c), nil
}

func (r *fakeComplaintRepo) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	c, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.History, _ = r.ListHistory(ctx, id)
	for _, a := range r.attachments {
		if a.ComplaintID == id {
			c.Attachments = append(c.Attachments, a)
		}
	}
	return c, nil
}

func (r *fakeComplaintRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	if r.beforeLock != nil {
		hook := r.beforeLock
		r.beforeLock = nil
		hook(r)
	}
	return r.FindByID(ctx, id)
}

func (r *fakeComplaintRepo) FindByTrackingID(ctx context.Context, trackingID string) (*models.Complaint, error) {
	for id, c := range r.complaints {
		if c.TrackingID == trackingID {
			return r.FindByIDWithRelations(ctx, id)
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeComplaintRepo) List(ctx context.Context, filter *models.ComplaintFilter, scope models.VisibilityScope) ([]models.Complaint, int64, error) {
	var out []models.Complaint
	for _, c := range r.complaints {
		if !r.inScope(c, scope) {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.ServiceType != nil && c.ServiceType != *filter.ServiceType {
			continue
		}
		out = append(out, *copyComplaint(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackingID < out[j].TrackingID })
	return out, int64(len(out)), nil
}

func (r *fakeComplaintRepo) inScope(c *models.Complaint, scope models.VisibilityScope) bool {
	if scope.All {
		return true
	}
	if scope.AgentID != nil {
		return c.AssignedAgentID != nil && *c.AssignedAgentID == *scope.AgentID
	}
	if scope.SupervisorID != nil {
		if c.SupervisorID != nil && *c.SupervisorID == *scope.SupervisorID {
			return true
		}
		if c.SupervisorID == nil &&
			(c.Status == workflow.StatusNew || c.Status == workflow.StatusUnderVerification) {
			for _, st := range scope.TriageServiceTypes {
				if st == string(c.ServiceType) {
					return true
				}
			}
		}
		return false
	}
	return false
}

func (r *fakeComplaintRepo) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	c, ok := r.complaints[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for column, value := range updates {
		switch column {
		case "status":
			c.Status = value.(workflow.Status)
		case "service_type":
			c.ServiceType = models.ServiceType(value.(string))
		case "assigned_agent_id":
			agentID := value.(uuid.UUID)
			c.AssignedAgentID = &agentID
		case "supervisor_id":
			supervisorID := value.(uuid.UUID)
			c.SupervisorID = &supervisorID
		case "agent_follow_up_notes":
			c.AgentFollowUpNotes = value.(string)
		case "requested_status_change":
			if value == nil {
				c.RequestedStatusChange = nil
			} else {
				status := value.(workflow.Status)
				c.RequestedStatusChange = &status
			}
		case "status_change_request_notes":
			c.StatusChangeRequestNotes = value.(string)
		case "supervisor_review_notes":
			c.SupervisorReviewNotes = value.(string)
		case "reporter_name":
			name := value.(string)
			c.ReporterName = &name
		case "reporter_email":
			email := value.(string)
			c.ReporterEmail = &email
		case "reporter_whatsapp":
			wa := value.(string)
			c.ReporterWhatsApp = &wa
		case "description":
			c.Description = value.(string)
		case "custom_field_data":
			c.CustomFieldData = value.(string)
		case "updated_at":
			c.UpdatedAt = value.(time.Time)
		}
	}
	return nil
}

func (r *fakeComplaintRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.complaints[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.complaints, id)
	var history []models.ComplaintHistory
	for _, h := range r.history {
		if h.ComplaintID != id {
			history = append(history, h)
		}
	}
	r.history = history
	var attachments []models.ComplaintAttachment
	for _, a := range r.attachments {
		if a.ComplaintID != id {
			attachments = append(attachments, a)
		}
	}
	r.attachments = attachments
	return nil
}

func (r *fakeComplaintRepo) TrackingIDsForYear(ctx context.Context, year int) ([]string, error) {
	prefix := fmt.Sprintf("%s-%d-", models.TrackingPrefix, year)
	var ids []string
	for _, c := range r.complaints {
		if strings.HasPrefix(c.TrackingID, prefix) {
			ids = append(ids, c.TrackingID)
		}
	}
	return ids, nil
}

func (r *fakeComplaintRepo) AppendHistory(ctx context.Context, entry *models.ComplaintHistory) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	r.history = append(r.history, *entry)
	return nil
}

func (r *fakeComplaintRepo) ListHistory(ctx context.Context, complaintID uuid.UUID) ([]models.ComplaintHistory, error) {
	var out []models.ComplaintHistory
	for _, h := range r.history {
		if h.ComplaintID == complaintID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *fakeComplaintRepo) CreateAttachment(ctx context.Context, attachment *models.ComplaintAttachment) error {
	if attachment.ID == uuid.Nil {
		attachment.ID = uuid.New()
	}
	attachment.CreatedAt = time.Now()
	r.attachments = append(r.attachments, *attachment)
	return nil
}

func (r *fakeComplaintRepo) FindAttachmentByID(ctx context.Context, id uuid.UUID) (*models.ComplaintAttachment, error) {
	for _, a := range r.attachments {
		if a.ID == id {
			dup := a
			return &dup, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeComplaintRepo) GetStats(ctx context.Context) (*models.StatsResponse, error) {
	stats := &models.StatsResponse{
		ByStatus:       map[string]int64{},
		ByServiceType:  map[string]int64{},
		LastCalculated: time.Now(),
	}
	for _, c := range r.complaints {
		stats.Total++
		stats.ByStatus[string(c.Status)]++
		stats.ByServiceType[string(c.ServiceType)]++
		if c.Status == workflow.StatusResolved {
			stats.Resolved++
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Resolved) / float64(stats.Total) * 100
	}
	return stats, nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*models.User

	// supervisorLookupErr makes supervisor resolution fail, simulating a
	// storage error during intake routing.
	supervisorLookupErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]*models.User{}}
}

func (r *fakeUserRepo) add(name string, role workflow.Role, serviceTypes ...string) *models.User {
	user := &models.User{
		ID:                  uuid.New(),
		Username:            strings.ToLower(strings.ReplaceAll(name, " ", ".")),
		Name:                name,
		Role:                role,
		ServiceTypesHandled: pq.StringArray(serviceTypes),
		IsActive:            true,
	}
	r.users[user.ID] = user
	return user
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) List(ctx context.Context, role *workflow.Role) ([]models.User, error) {
	var out []models.User
	for _, user := range r.users {
		if role == nil || user.Role == *role {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID) error { return nil }

func (r *fakeUserRepo) FindSupervisorsByServiceType(ctx context.Context, serviceType models.ServiceType) ([]models.User, error) {
	if r.supervisorLookupErr != nil {
		return nil, r.supervisorLookupErr
	}
	return r.findByRoleAndServiceType(workflow.RoleSupervisor, serviceType), nil
}

func (r *fakeUserRepo) FindAgentsByServiceType(ctx context.Context, serviceType models.ServiceType) ([]models.User, error) {
	return r.findByRoleAndServiceType(workflow.RoleAgent, serviceType), nil
}

func (r *fakeUserRepo) findByRoleAndServiceType(role workflow.Role, serviceType models.ServiceType) []models.User {
	var out []models.User
	for _, user := range r.users {
		if user.Role == role && user.IsActive && user.HandlesServiceType(serviceType) {
			out = append(out, *user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// Fixture

type engineFixture struct {
	repo       *fakeComplaintRepo
	users      *fakeUserRepo
	svc        ComplaintService
	supervisor *models.User
	agent      *models.User
	admin      *models.User
	management *models.User
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	repo := newFakeComplaintRepo()
	users := newFakeUserRepo()

	f := &engineFixture{
		repo:       repo,
		users:      users,
		supervisor: users.add("Dewi Lestari", workflow.RoleSupervisor, "consular", "immigration"),
		agent:      users.add("Andi Wijaya", workflow.RoleAgent, "consular"),
		admin:      users.add("Admin", workflow.RoleAdmin),
		management: users.add("Management", workflow.RoleManagement),
	}
	f.svc = NewComplaintService(fakeTxRunner{}, repo, users, NewAssignmentResolver(users), fakeFileStore{})
	return f
}

func validCreateRequest() *models.ComplaintCreateRequest {
	name := "Budi Santoso"
	email := "budi@example.com"
	return &models.ComplaintCreateRequest{
		ReporterName:  &name,
		ReporterEmail: &email,
		ServiceType:   "consular",
		IncidentTime:  time.Now().Add(-24 * time.Hour).Format(time.RFC3339),
		Description:   "Passport application stalled for three months",
	}
}

func (f *engineFixture) create(t *testing.T) *models.ComplaintResponse {
	t.Helper()
	resp, err := f.svc.CreateComplaint(context.Background(), validCreateRequest(), nil)
	require.NoError(t, err)
	return resp
}

func (f *engineFixture) historyOf(t *testing.T, id uuid.UUID) []models.ComplaintHistory {
	t.Helper()
	history, err := f.repo.ListHistory(context.Background(), id)
	require.NoError(t, err)
	return history
}

// Intake

func TestCreateComplaint(t *testing.T) {
	f := newEngineFixture(t)

	resp := f.create(t)

	year := time.Now().Year()
	assert.Equal(t, fmt.Sprintf("PEN-%d-001", year), resp.TrackingID)
	assert.Equal(t, workflow.StatusNew, resp.Status)
	require.NotNil(t, resp.ReporterName)
	assert.Equal(t, "Budi Santoso", *resp.ReporterName)

	stored := f.repo.complaints[resp.ID]
	require.NotNil(t, stored.SupervisorID)
	assert.Equal(t, f.supervisor.ID, *stored.SupervisorID)

	history := f.historyOf(t, resp.ID)
	require.Len(t, history, 1)
	assert.Equal(t, "Complaint created", history[0].Action)
	assert.Equal(t, workflow.ActorPublic, history[0].ActorKind)
	assert.Equal(t, "Budi Santoso", history[0].UserName)
	require.NotNil(t, history[0].NewStatus)
	assert.Equal(t, workflow.StatusNew, *history[0].NewStatus)
}

func TestCreateComplaintAnonymousDropsContact(t *testing.T) {
	f := newEngineFixture(t)

	req := validCreateRequest()
	req.IsAnonymous = true

	resp, err := f.svc.CreateComplaint(context.Background(), req, nil)
	require.NoError(t, err)

	assert.True(t, resp.IsAnonymous)
	assert.Nil(t, resp.ReporterName)
	assert.Nil(t, resp.ReporterEmail)

	history := f.historyOf(t, resp.ID)
	require.Len(t, history, 1)
	assert.Equal(t, "Anonymous Reporter", history[0].UserName)
}

func TestCreateComplaintSequencesPerYear(t *testing.T) {
	f := newEngineFixture(t)

	first := f.create(t)
	second := f.create(t)

	year := time.Now().Year()
	assert.Equal(t, fmt.Sprintf("PEN-%d-001", year), first.TrackingID)
	assert.Equal(t, fmt.Sprintf("PEN-%d-002", year), second.TrackingID)
}

func TestCreateComplaintRetriesOnDuplicateTrackingID(t *testing.T) {
	f := newEngineFixture(t)
	f.repo.failNextCreate = gorm.ErrDuplicatedKey

	resp, err := f.svc.CreateComplaint(context.Background(), validCreateRequest(), nil)
	require.NoError(t, err)

	assert.Len(t, f.repo.complaints, 1)
	history := f.historyOf(t, resp.ID)
	assert.Len(t, history, 1)
}

func TestCreateComplaintValidation(t *testing.T) {
	f := newEngineFixture(t)

	req := validCreateRequest()
	req.ServiceType = "visa"
	_, err := f.svc.CreateComplaint(context.Background(), req, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	req = validCreateRequest()
	req.IncidentTime = "yesterday"
	_, err = f.svc.CreateComplaint(context.Background(), req, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	assert.Empty(t, f.repo.complaints)
	assert.Empty(t, f.repo.history)
}

func TestCreateComplaintSupervisorLookupFailure(t *testing.T) {
	f := newEngineFixture(t)
	f.users.supervisorLookupErr = errors.New("connection reset by peer")

	_, err := f.svc.CreateComplaint(context.Background(), validCreateRequest(), nil)
	assert.ErrorIs(t, err, apperrors.ErrInternal)

	// A routing failure aborts the intake; nothing commits unrouted.
	assert.Empty(t, f.repo.complaints)
	assert.Empty(t, f.repo.history)
}

func TestCreateComplaintStoresIntakeAttachments(t *testing.T) {
	f := newEngineFixture(t)

	attachments := []AttachmentInput{
		{FileName: "photo.jpg", FileSize: 2048, MimeType: "image/jpeg", ObjectPath: "complaints/a.jpg"},
	}
	resp, err := f.svc.CreateComplaint(context.Background(), validCreateRequest(), attachments)
	require.NoError(t, err)

	require.Len(t, f.repo.attachments, 1)
	assert.Equal(t, resp.ID, f.repo.attachments[0].ComplaintID)
	// Intake uploads carry no uploader; only staff uploads do.
	assert.Nil(t, f.repo.attachments[0].UploadedByID)
}

// Verification

func TestVerifyComplaint(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)

	resp, err := f.svc.VerifyComplaint(context.Background(), created.ID, f.supervisor.Actor())
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusUnderVerification, resp.Status)

	history := f.historyOf(t, created.ID)
	require.Len(t, history, 2)
	latest := history[1]
	assert.Equal(t, "Verification started", latest.Action)
	require.NotNil(t, latest.OldStatus)
	require.NotNil(t, latest.NewStatus)
	assert.Equal(t, workflow.StatusNew, *latest.OldStatus)
	assert.Equal(t, workflow.StatusUnderVerification, *latest.NewStatus)
	assert.Equal(t, workflow.RoleSupervisor, latest.UserRole)
}

func TestVerifyFromWrongStatus(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)

	_, err := f.svc.VerifyComplaint(context.Background(), created.ID, f.supervisor.Actor())
	require.NoError(t, err)

	_, err = f.svc.VerifyComplaint(context.Background(), created.ID, f.supervisor.Actor())
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	// The failed attempt left no trace.
	assert.Len(t, f.historyOf(t, created.ID), 2)
}

func TestVerifyPermissionDeniedLeavesNoTrace(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)

	for _, actor := range []workflow.Actor{
		f.agent.Actor(),
		f.management.Actor(),
		workflow.PublicActor(),
	} {
		_, err := f.svc.VerifyComplaint(context.Background(), created.ID, actor)
		assert.ErrorIs(t, err, apperrors.ErrPermission)
	}

	assert.Equal(t, workflow.StatusNew, f.repo.complaints[created.ID].Status)
	assert.Len(t, f.historyOf(t, created.ID), 1)
}

// Assignment

func TestAssignAgent(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)

	resp, err := f.svc.AssignAgent(context.Background(), created.ID, f.agent.ID, f.supervisor.Actor())
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusInProgress, resp.Status)
	stored := f.repo.complaints[created.ID]
	require.NotNil(t, stored.AssignedAgentID)
	assert.Equal(t, f.agent.ID, *stored.AssignedAgentID)

	history := f.historyOf(t, created.ID)
	require.Len(t, history, 2)
	latest := history[1]
	assert.Equal(t, "Assigned to Andi Wijaya", latest.Action)
	require.NotNil(t, latest.AssignedAgentID)
	assert.Equal(t, f.agent.ID, *latest.AssignedAgentID)
	assert.Equal(t, "Andi Wijaya", latest.AssignedAgentName)
	require.NotNil(t, latest.OldStatus)
	assert.Equal(t, workflow.StatusNew, *latest.OldStatus)
	require.NotNil(t, latest.NewStatus)
	assert.Equal(t, workflow.StatusInProgress, *latest.NewStatus)
}

func TestReassignInProgressRecordsNoStatusChange(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)
	_, err := f.svc.AssignAgent(context.Background(), created.ID, f.agent.ID, f.supervisor.Actor())
	require.NoError(t, err)

	replacement := f.users.add("Citra Dewi", workflow.RoleAgent, "consular")
	_, err = f.svc.AssignAgent(context.Background(), created.ID, replacement.ID, f.supervisor.Actor())
	require.NoError(t, err)

	stored := f.repo.complaints[created.ID]
	require.NotNil(t, stored.AssignedAgentID)
	assert.Equal(t, replacement.ID, *stored.AssignedAgentID)

	// Swapping the agent while in progress is not a status change.
	history := f.historyOf(t, created.ID)
	latest := history[len(history)-1]
	assert.Equal(t, "Assigned to Citra Dewi", latest.Action)
	assert.Nil(t, latest.OldStatus)
	assert.Nil(t, latest.NewStatus)
}

func TestAssignBindsSupervisorWhenUnrouted(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)
	// Simulate a complaint that intake could not route.
	f.repo.complaints[created.ID].SupervisorID = nil

	_, err := f.svc.AssignAgent(context.Background(), created.ID, f.agent.ID, f.supervisor.Actor())
	require.NoError(t, err)

	stored := f.repo.complaints[created.ID]
	require.NotNil(t, stored.SupervisorID)
	assert.Equal(t, f.supervisor.ID, *stored.SupervisorID)
}

func TestAssignRejectsNonAgents(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)

	_, err := f.svc.AssignAgent(context.Background(), created.ID, f.supervisor.ID, f.supervisor.Actor())
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	inactive := f.users.add("Gone Agent", workflow.RoleAgent, "consular")
	inactive.IsActive = false
	_, err = f.svc.AssignAgent(context.Background(), created.ID, inactive.ID, f.supervisor.Actor())
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.AssignAgent(context.Background(), created.ID, uuid.New(), f.supervisor.Actor())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// Notes

func TestAddNoteAgentAppendsFollowUp(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)
	_, err := f.svc.AssignAgent(context.Background(), created.ID, f.agent.ID, f.supervisor.Actor())
	require.NoError(t, err)

	_, err = f.svc.AddNote(context.Background(), created.ID, f.agent.Actor(), "Called the reporter", "")
	require.NoError(t, err)
	resp, err := f.svc.AddNote(context.Background(), created.ID, f.agent.Actor(), "Documents received", "")
	require.NoError(t, err)

	assert.Equal(t, "Called the reporter\nDocuments received", resp.AgentFollowUpNotes)

	history := f.historyOf(t, created.ID)
	require.Len(t, history, 4)
	assert.Equal(t, "Note added", history[2].Action)
	assert.Equal(t, "Called the reporter", history[2].Notes)
}

func TestAddNoteSupervisorLedgerOnly(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)

	resp, err := f.svc.AddNote(context.Background(), created.ID, f.supervisor.Actor(), "Checked with consulate", "Internal check")
	require.NoError(t, err)

	// Supervisor notes live in the ledger, not in the agent follow-up field.
	assert.Empty(t, resp.AgentFollowUpNotes)
	history := f.historyOf(t, created.ID)
	require.Len(t, history, 2)
	assert.Equal(t, "Internal check", history[1].Action)
}

// Closure requests and review

func inProgressFixture(t *testing.T) (*engineFixture, uuid.UUID) {
	t.Helper()
	f := newEngineFixture(t)
	created := f.create(t)
	_, err := f.svc.AssignAgent(context.Background(), created.ID, f.agent.ID, f.supervisor.Actor())
	require.NoError(t, err)
	return f, created.ID
}

func TestRequestClosure(t *testing.T) {
	f, id := inProgressFixture(t)

	attachment := &AttachmentInput{FileName: "evidence.pdf", FileSize: 512, MimeType: "application/pdf", ObjectPath: "complaints/e.pdf"}
	resp, err := f.svc.RequestStatusChange(context.Background(), id, f.agent.Actor(), workflow.StatusResolved, "Issue fixed, reporter confirmed", attachment)
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusAwaitingApproval, resp.Status)
	require.NotNil(t, resp.RequestedStatusChange)
	assert.Equal(t, workflow.StatusResolved, *resp.RequestedStatusChange)
	assert.Equal(t, "Issue fixed, reporter confirmed", resp.StatusChangeRequestNotes)

	require.Len(t, f.repo.attachments, 1)
	require.NotNil(t, f.repo.attachments[0].UploadedByID)
	assert.Equal(t, f.agent.ID, *f.repo.attachments[0].UploadedByID)

	history := f.historyOf(t, id)
	latest := history[len(history)-1]
	assert.Equal(t, "Closure requested (resolved)", latest.Action)
	require.NotNil(t, latest.NewStatus)
	assert.Equal(t, workflow.StatusAwaitingApproval, *latest.NewStatus)
}

func TestRequestClosureValidation(t *testing.T) {
	f, id := inProgressFixture(t)

	_, err := f.svc.RequestStatusChange(context.Background(), id, f.agent.Actor(), workflow.StatusInProgress, "notes", nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.RequestStatusChange(context.Background(), id, f.agent.Actor(), workflow.StatusResolved, "", nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// Supervisors cannot file closure requests, even on their own complaints.
	_, err = f.svc.RequestStatusChange(context.Background(), id, f.supervisor.Actor(), workflow.StatusResolved, "notes", nil)
	assert.ErrorIs(t, err, apperrors.ErrPermission)
}

func TestReviewApprove(t *testing.T) {
	f, id := inProgressFixture(t)
	_, err := f.svc.RequestStatusChange(context.Background(), id, f.agent.Actor(), workflow.StatusResolved, "done", nil)
	require.NoError(t, err)

	resp, err := f.svc.ReviewRequest(context.Background(), id, f.supervisor.Actor(), true, "Good work")
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusResolved, resp.Status)
	assert.Nil(t, resp.RequestedStatusChange)
	assert.Empty(t, resp.StatusChangeRequestNotes)
	assert.Equal(t, "Good work", resp.SupervisorReviewNotes)

	history := f.historyOf(t, id)
	latest := history[len(history)-1]
	assert.Equal(t, "Closure request approved (resolved)", latest.Action)
	require.NotNil(t, latest.OldStatus)
	assert.Equal(t, workflow.StatusAwaitingApproval, *latest.OldStatus)
	require.NotNil(t, latest.NewStatus)
	assert.Equal(t, workflow.StatusResolved, *latest.NewStatus)
}

func TestReviewReject(t *testing.T) {
	f, id := inProgressFixture(t)
	_, err := f.svc.RequestStatusChange(context.Background(), id, f.agent.Actor(), workflow.StatusRejected, "cannot verify claim", nil)
	require.NoError(t, err)

	resp, err := f.svc.ReviewRequest(context.Background(), id, f.supervisor.Actor(), false, "Need more evidence")
	require.NoError(t, err)

	// Rejecting the request reopens the complaint; it does not reject the
	// complaint itself.
	assert.Equal(t, workflow.StatusInProgress, resp.Status)
	assert.Nil(t, resp.RequestedStatusChange)
	assert.Equal(t, "Need more evidence", resp.SupervisorReviewNotes)
}

func TestReviewRequiresPendingState(t *testing.T) {
	f, id := inProgressFixture(t)

	_, err := f.svc.ReviewRequest(context.Background(), id, f.supervisor.Actor(), true, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestReviewDeniedForAgent(t *testing.T) {
	f, id := inProgressFixture(t)
	_, err := f.svc.RequestStatusChange(context.Background(), id, f.agent.Actor(), workflow.StatusResolved, "done", nil)
	require.NoError(t, err)

	_, err = f.svc.ReviewRequest(context.Background(), id, f.agent.Actor(), true, "")
	assert.ErrorIs(t, err, apperrors.ErrPermission)
	assert.Equal(t, workflow.StatusAwaitingApproval, f.repo.complaints[id].Status)
}

// Summary rejection

func TestRejectComplaint(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)

	resp, err := f.svc.RejectComplaint(context.Background(), created.ID, f.supervisor.Actor(), "Duplicate of PEN-2026-000")
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusRejected, resp.Status)
	assert.Equal(t, "Duplicate of PEN-2026-000", resp.SupervisorReviewNotes)
	assert.True(t, resp.Status.Terminal())
}

func TestRejectRequiresNotes(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)

	_, err := f.svc.RejectComplaint(context.Background(), created.ID, f.supervisor.Actor(), "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

// Concurrency

func TestConcurrentTransitionConflict(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)

	// A concurrent writer moves the status between the pre-read and the lock.
	f.repo.beforeLock = func(r *fakeComplaintRepo) {
		r.complaints[created.ID].Status = workflow.StatusUnderVerification
	}

	_, err := f.svc.VerifyComplaint(context.Background(), created.ID, f.supervisor.Actor())
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Len(t, f.historyOf(t, created.ID), 1)
}

func TestConcurrentDeleteConflict(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)

	f.repo.beforeLock = func(r *fakeComplaintRepo) {
		delete(r.complaints, created.ID)
	}

	_, err := f.svc.VerifyComplaint(context.Background(), created.ID, f.supervisor.Actor())
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

// Administrative updates and deletion

func TestUpdateCannotForceAwaitingApproval(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)

	status := string(workflow.StatusAwaitingApproval)
	req := &models.ComplaintUpdateRequest{Status: &status, ActionDescription: "Force status"}
	_, err := f.svc.UpdateComplaint(context.Background(), created.ID, req, f.admin.Actor())
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdateClearsRequestFieldsWhenLeavingApproval(t *testing.T) {
	f, id := inProgressFixture(t)
	_, err := f.svc.RequestStatusChange(context.Background(), id, f.agent.Actor(), workflow.StatusResolved, "done", nil)
	require.NoError(t, err)

	status := string(workflow.StatusInProgress)
	req := &models.ComplaintUpdateRequest{Status: &status, ActionDescription: "Reopened by admin"}
	resp, err := f.svc.UpdateComplaint(context.Background(), id, req, f.admin.Actor())
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusInProgress, resp.Status)
	assert.Nil(t, resp.RequestedStatusChange)
	assert.Empty(t, resp.StatusChangeRequestNotes)

	history := f.historyOf(t, id)
	latest := history[len(history)-1]
	assert.Equal(t, "Reopened by admin", latest.Action)
	require.NotNil(t, latest.OldStatus)
	assert.Equal(t, workflow.StatusAwaitingApproval, *latest.OldStatus)
}

func TestUpdateDeniedForNonAdmins(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)

	desc := "new description of the incident"
	req := &models.ComplaintUpdateRequest{Description: &desc, ActionDescription: "Edited description"}

	for _, actor := range []workflow.Actor{f.supervisor.Actor(), f.agent.Actor(), f.management.Actor()} {
		_, err := f.svc.UpdateComplaint(context.Background(), created.ID, req, actor)
		assert.ErrorIs(t, err, apperrors.ErrPermission)
	}
}

func TestDeleteCascades(t *testing.T) {
	f := newEngineFixture(t)
	attachments := []AttachmentInput{{FileName: "a.jpg", ObjectPath: "complaints/a.jpg"}}
	resp, err := f.svc.CreateComplaint(context.Background(), validCreateRequest(), attachments)
	require.NoError(t, err)

	err = f.svc.DeleteComplaint(context.Background(), resp.ID, f.admin.Actor())
	require.NoError(t, err)

	assert.Empty(t, f.repo.complaints)
	assert.Empty(t, f.repo.history)
	assert.Empty(t, f.repo.attachments)
}

func TestDeleteDeniedForSupervisor(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)

	err := f.svc.DeleteComplaint(context.Background(), created.ID, f.supervisor.Actor())
	assert.ErrorIs(t, err, apperrors.ErrPermission)
	assert.Len(t, f.repo.complaints, 1)
}

// Reads

func TestGetComplaintByTrackingID(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)

	resp, err := f.svc.GetComplaintByTrackingID(context.Background(), created.TrackingID)
	require.NoError(t, err)
	assert.Equal(t, created.TrackingID, resp.TrackingID)
	assert.Equal(t, workflow.StatusNew, resp.Status)
	assert.Len(t, resp.History, 1)

	_, err = f.svc.GetComplaintByTrackingID(context.Background(), "not-a-tracking-id")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.GetComplaintByTrackingID(context.Background(), "PEN-2020-999")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetComplaintVisibility(t *testing.T) {
	f := newEngineFixture(t)
	created := f.create(t)

	// Unassigned agent cannot see it; management can.
	_, err := f.svc.GetComplaint(context.Background(), created.ID, f.agent.Actor())
	assert.ErrorIs(t, err, apperrors.ErrPermission)

	_, err = f.svc.GetComplaint(context.Background(), created.ID, f.management.Actor())
	require.NoError(t, err)

	// After assignment the agent sees it.
	_, err = f.svc.AssignAgent(context.Background(), created.ID, f.agent.ID, f.supervisor.Actor())
	require.NoError(t, err)
	_, err = f.svc.GetComplaint(context.Background(), created.ID, f.agent.Actor())
	require.NoError(t, err)
}

func TestListComplaintsScopedToAgent(t *testing.T) {
	f := newEngineFixture(t)
	mine := f.create(t)
	f.create(t)

	_, err := f.svc.AssignAgent(context.Background(), mine.ID, f.agent.ID, f.supervisor.Actor())
	require.NoError(t, err)

	list, total, err := f.svc.ListComplaints(context.Background(), &models.ComplaintFilter{Page: 1, Limit: 20}, f.agent.Actor())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	_, total, err = f.svc.ListComplaints(context.Background(), &models.ComplaintFilter{Page: 1, Limit: 20}, f.admin.Actor())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, _, err = f.svc.ListComplaints(context.Background(), &models.ComplaintFilter{}, workflow.PublicActor())
	assert.ErrorIs(t, err, apperrors.ErrPermission)
}

func TestAttachmentURL(t *testing.T) {
	f := newEngineFixture(t)
	attachments := []AttachmentInput{{FileName: "a.jpg", ObjectPath: "complaints/a.jpg"}}
	resp, err := f.svc.CreateComplaint(context.Background(), validCreateRequest(), attachments)
	require.NoError(t, err)
	attachmentID := f.repo.attachments[0].ID

	url, err := f.svc.AttachmentURL(context.Background(), resp.ID, attachmentID, f.admin.Actor())
	require.NoError(t, err)
	assert.Equal(t, "https://files.local/complaints/a.jpg", url)

	// An attachment hanging off another complaint is invisible through this id.
	other := f.create(t)
	_, err = f.svc.AttachmentURL(context.Background(), other.ID, attachmentID, f.admin.Actor())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.AttachmentURL(context.Background(), resp.ID, attachmentID, f.agent.Actor())
	assert.ErrorIs(t, err, apperrors.ErrPermission)
}

// Full lifecycle smoke test: intake through approval with a coherent ledger.

func TestLifecycleLedger(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	created := f.create(t)
	_, err := f.svc.VerifyComplaint(ctx, created.ID, f.supervisor.Actor())
	require.NoError(t, err)
	_, err = f.svc.AssignAgent(ctx, created.ID, f.agent.ID, f.supervisor.Actor())
	require.NoError(t, err)
	_, err = f.svc.AddNote(ctx, created.ID, f.agent.Actor(), "Reporter contacted", "")
	require.NoError(t, err)
	_, err = f.svc.RequestStatusChange(ctx, created.ID, f.agent.Actor(), workflow.StatusResolved, "All done", nil)
	require.NoError(t, err)
	final, err := f.svc.ReviewRequest(ctx, created.ID, f.supervisor.Actor(), true, "Confirmed")
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusResolved, final.Status)

	history := f.historyOf(t, created.ID)
	require.Len(t, history, 6)

	// Every status-changing entry carries a consistent old/new pair, and the
	// chain of statuses is contiguous.
	var previous *workflow.Status
	for _, entry := range history {
		if entry.NewStatus == nil {
			continue
		}
		if previous != nil {
			require.NotNil(t, entry.OldStatus)
			assert.Equal(t, *previous, *entry.OldStatus)
		}
		previous = entry.NewStatus
	}
	require.NotNil(t, previous)
	assert.Equal(t, workflow.StatusResolved, *previous)
}

func TestErrTaxonomyIsUserFacing(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.svc.GetComplaint(context.Background(), uuid.New(), f.admin.Actor())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.True(t, apperrors.IsUserFacing(err))
	assert.False(t, errors.Is(err, apperrors.ErrInternal))
}
