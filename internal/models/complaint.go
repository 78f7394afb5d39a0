package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pengaduan/backend/internal/workflow"
)

// ServiceType is the fixed category that routes a complaint to a supervisor
// and agent pool.
type ServiceType string

const (
	ServiceImmigration    ServiceType = "immigration"
	ServiceConsular       ServiceType = "consular"
	ServiceSocialCultural ServiceType = "social_cultural"
	ServiceEconomic       ServiceType = "economic"
	ServiceOther          ServiceType = "other"
)

var AllServiceTypes = []ServiceType{
	ServiceImmigration,
	ServiceConsular,
	ServiceSocialCultural,
	ServiceEconomic,
	ServiceOther,
}

func (s ServiceType) Valid() bool {
	for _, v := range AllServiceTypes {
		if v == s {
			return true
		}
	}
	return false
}

// Complaint is a grievance filed by the public. All mutation goes through the
// complaint service; nothing else writes these rows.
type Complaint struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TrackingID string    `gorm:"size:20;uniqueIndex;not null" json:"tracking_id"`

	IsAnonymous      bool    `gorm:"default:false" json:"is_anonymous"`
	ReporterName     *string `gorm:"size:100" json:"reporter_name,omitempty"`
	ReporterEmail    *string `gorm:"size:100" json:"reporter_email,omitempty"`
	ReporterWhatsApp *string `gorm:"column:reporter_whatsapp;size:20" json:"reporter_whatsapp,omitempty"`

	ServiceType  ServiceType `gorm:"size:30;index;not null" json:"service_type"`
	IncidentTime time.Time   `gorm:"not null" json:"incident_time"`
	Description  string      `gorm:"type:text;not null" json:"description"`

	// Raw JSON of custom form field responses; never interpreted here.
	CustomFieldData string `gorm:"type:text" json:"custom_field_data,omitempty"`

	Status workflow.Status `gorm:"size:40;index;not null;default:'new'" json:"status"`

	AssignedAgentID *uuid.UUID `gorm:"type:uuid;index" json:"assigned_agent_id"`
	AssignedAgent   *User      `gorm:"foreignKey:AssignedAgentID" json:"assigned_agent,omitempty"`
	SupervisorID    *uuid.UUID `gorm:"type:uuid;index" json:"supervisor_id"`
	Supervisor      *User      `gorm:"foreignKey:SupervisorID" json:"supervisor,omitempty"`

	// Workflow-transient fields. RequestedStatusChange is non-nil exactly
	// while Status == awaiting_supervisor_approval.
	AgentFollowUpNotes       string           `gorm:"type:text" json:"agent_follow_up_notes,omitempty"`
	RequestedStatusChange    *workflow.Status `gorm:"size:40" json:"requested_status_change,omitempty"`
	StatusChangeRequestNotes string           `gorm:"type:text" json:"status_change_request_notes,omitempty"`
	SupervisorReviewNotes    string           `gorm:"type:text" json:"supervisor_review_notes,omitempty"`

	Attachments []ComplaintAttachment `gorm:"foreignKey:ComplaintID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
	History     []ComplaintHistory    `gorm:"foreignKey:ComplaintID;constraint:OnDelete:CASCADE" json:"history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Complaint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Ref projects the complaint onto the state the permission evaluator needs.
func (c *Complaint) Ref() workflow.ComplaintRef {
	return workflow.ComplaintRef{
		Status:          c.Status,
		ServiceType:     string(c.ServiceType),
		SupervisorID:    c.SupervisorID,
		AssignedAgentID: c.AssignedAgentID,
	}
}

// PendingRequest is the agent's proposed closure awaiting supervisor sign-off.
// It exists only while the complaint is in awaiting_supervisor_approval.
type PendingRequest struct {
	TargetStatus workflow.Status
	Notes        string
}

// PendingRequest returns the pending closure request, or nil when the
// complaint is not awaiting approval.
func (c *Complaint) PendingRequest() *PendingRequest {
	if c.Status != workflow.StatusAwaitingApproval || c.RequestedStatusChange == nil {
		return nil
	}
	return &PendingRequest{
		TargetStatus: *c.RequestedStatusChange,
		Notes:        c.StatusChangeRequestNotes,
	}
}

// ComplaintAttachment is an opaque reference to bytes held in object storage.
type ComplaintAttachment struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ComplaintID uuid.UUID `gorm:"type:uuid;index;not null" json:"complaint_id"`

	FileName   string `gorm:"size:255;not null" json:"file_name"`
	FileSize   int64  `json:"file_size"`
	MimeType   string `gorm:"size:100" json:"mime_type"`
	ObjectPath string `gorm:"size:500;not null" json:"-"`

	// Nil when the reporter uploaded it at intake.
	UploadedByID *uuid.UUID `gorm:"type:uuid" json:"uploaded_by_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (a *ComplaintAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ComplaintHistory is one entry of the append-only ledger. Entries are never
// edited or deleted except when the owning complaint is deleted.
type ComplaintHistory struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ComplaintID uuid.UUID `gorm:"type:uuid;index;not null" json:"complaint_id"`

	ActorKind workflow.ActorKind `gorm:"size:10;not null" json:"actor_kind"`
	UserID    *uuid.UUID         `gorm:"type:uuid" json:"user_id,omitempty"`
	UserName  string             `gorm:"size:100;not null" json:"user_name"`
	UserRole  workflow.Role      `gorm:"size:20" json:"user_role,omitempty"`

	Action string `gorm:"size:200;not null" json:"action"`
	Notes  string `gorm:"type:text" json:"notes,omitempty"`

	OldStatus *workflow.Status `gorm:"size:40" json:"old_status,omitempty"`
	NewStatus *workflow.Status `gorm:"size:40" json:"new_status,omitempty"`

	AssignedAgentID   *uuid.UUID `gorm:"type:uuid" json:"assigned_agent_id,omitempty"`
	AssignedAgentName string     `gorm:"size:100" json:"assigned_agent_name,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (h *ComplaintHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// Request types

type ComplaintCreateRequest struct {
	IsAnonymous      bool    `json:"is_anonymous" form:"is_anonymous"`
	ReporterName     *string `json:"reporter_name" form:"reporter_name" validate:"omitempty,max=100"`
	ReporterEmail    *string `json:"reporter_email" form:"reporter_email" validate:"omitempty,email,max=100"`
	ReporterWhatsApp *string `json:"reporter_whatsapp" form:"reporter_whatsapp" validate:"omitempty,max=20"`
	ServiceType      string  `json:"service_type" form:"service_type" validate:"required"`
	IncidentTime     string  `json:"incident_time" form:"incident_time" validate:"required"`
	Description      string  `json:"description" form:"description" validate:"required,min=10"`
	CustomFieldData  string  `json:"custom_field_data" form:"custom_field_data"`
}

type AssignAgentRequest struct {
	AgentID string `json:"agent_id" validate:"required,uuid"`
}

type AddNoteRequest struct {
	Note        string `json:"note" validate:"required,min=1"`
	ActionLabel string `json:"action_label" validate:"max=200"`
}

type ClosureRequest struct {
	TargetStatus string `json:"target_status" form:"target_status" validate:"required,oneof=resolved rejected"`
	Notes        string `json:"notes" form:"notes" validate:"required,min=1"`
}

type ReviewRequest struct {
	Approve *bool  `json:"approve" validate:"required"`
	Notes   string `json:"notes" validate:"max=5000"`
}

type RejectComplaintRequest struct {
	Notes string `json:"notes" validate:"required,min=1"`
}

// ComplaintUpdateRequest is the administrative catch-all patch. Nil pointers
// leave fields untouched; Status forces an override recorded with old/new.
type ComplaintUpdateRequest struct {
	ReporterName          *string `json:"reporter_name" validate:"omitempty,max=100"`
	ReporterEmail         *string `json:"reporter_email" validate:"omitempty,email,max=100"`
	ReporterWhatsApp      *string `json:"reporter_whatsapp" validate:"omitempty,max=20"`
	ServiceType           *string `json:"service_type"`
	Description           *string `json:"description" validate:"omitempty,min=10"`
	CustomFieldData       *string `json:"custom_field_data"`
	Status                *string `json:"status"`
	AssignedAgentID       *string `json:"assigned_agent_id" validate:"omitempty,uuid"`
	SupervisorID          *string `json:"supervisor_id" validate:"omitempty,uuid"`
	SupervisorReviewNotes *string `json:"supervisor_review_notes"`
	ActionDescription     string  `json:"action_description" validate:"required,max=200"`
	NoteForHistory        string  `json:"note_for_history"`
}

type ComplaintFilter struct {
	Status      *workflow.Status `json:"status"`
	ServiceType *ServiceType     `json:"service_type"`
	Search      string           `json:"search"`
	Page        int              `json:"page"`
	Limit       int              `json:"limit"`
}

// VisibilityScope narrows list/get reads per the acting role. The zero value
// sees nothing; All sees everything.
type VisibilityScope struct {
	All bool
	// AgentID limits to complaints assigned to this agent.
	AgentID *uuid.UUID
	// SupervisorID limits to complaints bound to this supervisor, plus the
	// unassigned triage pool for TriageServiceTypes.
	SupervisorID       *uuid.UUID
	TriageServiceTypes []string
}

// ScopeForActor derives the read scope from the acting role. This is query
// narrowing, not a permission check: write gating happens in the service.
func ScopeForActor(actor workflow.Actor) VisibilityScope {
	if actor.Kind != workflow.ActorUser {
		return VisibilityScope{}
	}
	switch actor.Role {
	case workflow.RoleAdmin, workflow.RoleManagement:
		return VisibilityScope{All: true}
	case workflow.RoleSupervisor:
		id := actor.UserID
		return VisibilityScope{SupervisorID: &id, TriageServiceTypes: actor.ServiceTypes}
	case workflow.RoleAgent:
		id := actor.UserID
		return VisibilityScope{AgentID: &id}
	}
	return VisibilityScope{}
}

// Response types

type ComplaintResponse struct {
	ID               uuid.UUID       `json:"id"`
	TrackingID       string          `json:"tracking_id"`
	IsAnonymous      bool            `json:"is_anonymous"`
	ReporterName     *string         `json:"reporter_name,omitempty"`
	ReporterEmail    *string         `json:"reporter_email,omitempty"`
	ReporterWhatsApp *string         `json:"reporter_whatsapp,omitempty"`
	ServiceType      ServiceType     `json:"service_type"`
	IncidentTime     time.Time       `json:"incident_time"`
	Description      string          `json:"description"`
	CustomFieldData  string          `json:"custom_field_data,omitempty"`
	Status           workflow.Status `json:"status"`

	AssignedAgent *UserBrief `json:"assigned_agent,omitempty"`
	Supervisor    *UserBrief `json:"supervisor,omitempty"`

	AgentFollowUpNotes       string           `json:"agent_follow_up_notes,omitempty"`
	RequestedStatusChange    *workflow.Status `json:"requested_status_change,omitempty"`
	StatusChangeRequestNotes string           `json:"status_change_request_notes,omitempty"`
	SupervisorReviewNotes    string           `json:"supervisor_review_notes,omitempty"`

	Attachments []AttachmentResponse `json:"attachments,omitempty"`
	History     []HistoryResponse    `json:"history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PublicComplaintResponse is the tracking-lookup view: status and ledger only,
// never reporter contact details.
type PublicComplaintResponse struct {
	ID          uuid.UUID         `json:"id"`
	TrackingID  string            `json:"tracking_id"`
	ServiceType ServiceType       `json:"service_type"`
	Status      workflow.Status   `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	History     []HistoryResponse `json:"history"`
}

type AttachmentResponse struct {
	ID        uuid.UUID `json:"id"`
	FileName  string    `json:"file_name"`
	FileSize  int64     `json:"file_size"`
	MimeType  string    `json:"mime_type"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryResponse struct {
	ID                uuid.UUID          `json:"id"`
	ActorKind         workflow.ActorKind `json:"actor_kind"`
	UserID            *uuid.UUID         `json:"user_id,omitempty"`
	UserName          string             `json:"user_name"`
	UserRole          workflow.Role      `json:"user_role,omitempty"`
	Action            string             `json:"action"`
	Notes             string             `json:"notes,omitempty"`
	OldStatus         *workflow.Status   `json:"old_status,omitempty"`
	NewStatus         *workflow.Status   `json:"new_status,omitempty"`
	AssignedAgentID   *uuid.UUID         `json:"assigned_agent_id,omitempty"`
	AssignedAgentName string             `json:"assigned_agent_name,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// Converter functions

func ToComplaintResponse(c *Complaint) ComplaintResponse {
	resp := ComplaintResponse{
		ID:                       c.ID,
		TrackingID:               c.TrackingID,
		IsAnonymous:              c.IsAnonymous,
		ReporterName:             c.ReporterName,
		ReporterEmail:            c.ReporterEmail,
		ReporterWhatsApp:         c.ReporterWhatsApp,
		ServiceType:              c.ServiceType,
		IncidentTime:             c.IncidentTime,
		Description:              c.Description,
		CustomFieldData:          c.CustomFieldData,
		Status:                   c.Status,
		AgentFollowUpNotes:       c.AgentFollowUpNotes,
		RequestedStatusChange:    c.RequestedStatusChange,
		StatusChangeRequestNotes: c.StatusChangeRequestNotes,
		SupervisorReviewNotes:    c.SupervisorReviewNotes,
		CreatedAt:                c.CreatedAt,
		UpdatedAt:                c.UpdatedAt,
	}

	if c.AssignedAgent != nil {
		brief := ToUserBrief(c.AssignedAgent)
		resp.AssignedAgent = &brief
	}
	if c.Supervisor != nil {
		brief := ToUserBrief(c.Supervisor)
		resp.Supervisor = &brief
	}

	if len(c.Attachments) > 0 {
		resp.Attachments = make([]AttachmentResponse, len(c.Attachments))
		for i, a := range c.Attachments {
			resp.Attachments[i] = ToAttachmentResponse(&a, "")
		}
	}

	if len(c.History) > 0 {
		resp.History = make([]HistoryResponse, len(c.History))
		for i, h := range c.History {
			resp.History[i] = ToHistoryResponse(&h)
		}
	}

	return resp
}

func ToPublicComplaintResponse(c *Complaint) PublicComplaintResponse {
	resp := PublicComplaintResponse{
		ID:          c.ID,
		TrackingID:  c.TrackingID,
		ServiceType: c.ServiceType,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		History:     make([]HistoryResponse, len(c.History)),
	}
	for i, h := range c.History {
		resp.History[i] = ToHistoryResponse(&h)
	}
	return resp
}

func ToAttachmentResponse(a *ComplaintAttachment, url string) AttachmentResponse {
	return AttachmentResponse{
		ID:        a.ID,
		FileName:  a.FileName,
		FileSize:  a.FileSize,
		MimeType:  a.MimeType,
		URL:       url,
		CreatedAt: a.CreatedAt,
	}
}

func ToHistoryResponse(h *ComplaintHistory) HistoryResponse {
	return HistoryResponse{
		ID:                h.ID,
		ActorKind:         h.ActorKind,
		UserID:            h.UserID,
		UserName:          h.UserName,
		UserRole:          h.UserRole,
		Action:            h.Action,
		Notes:             h.Notes,
		OldStatus:         h.OldStatus,
		NewStatus:         h.NewStatus,
		AssignedAgentID:   h.AssignedAgentID,
		AssignedAgentName: h.AssignedAgentName,
		CreatedAt:         h.CreatedAt,
	}
}
