package handlers

import (
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pengaduan/backend/internal/middleware"
	"github.com/pengaduan/backend/internal/models"
	"github.com/pengaduan/backend/internal/services"
	"github.com/pengaduan/backend/internal/storage"
	"github.com/pengaduan/backend/internal/workflow"
	"github.com/pengaduan/backend/pkg/utils"
)

const attachmentFolder = "complaints"

type ComplaintHandler struct {
	complaintService services.ComplaintService
	assignment       services.AssignmentResolver
	storage          *storage.MinIOStorage
}

func NewComplaintHandler(complaintService services.ComplaintService, assignment services.AssignmentResolver, st *storage.MinIOStorage) *ComplaintHandler {
	return &ComplaintHandler{
		complaintService: complaintService,
		assignment:       assignment,
		storage:          st,
	}
}

func parseComplaintID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid complaint ID")
	}
	return id, nil
}

// uploadAll pushes every file of the multipart field to object storage and
// returns the attachment inputs for the service.
func (h *ComplaintHandler) uploadAll(c *fiber.Ctx, headers []*multipart.FileHeader) ([]services.AttachmentInput, error) {
	attachments := make([]services.AttachmentInput, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, err
		}
		objectPath, err := h.storage.UploadFile(c.Context(), file, header, attachmentFolder)
		file.Close()
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, services.AttachmentInput{
			FileName:   header.Filename,
			FileSize:   header.Size,
			MimeType:   header.Header.Get("Content-Type"),
			ObjectPath: objectPath,
		})
	}
	return attachments, nil
}

// Create is the public intake endpoint. It accepts JSON or multipart
// form-data; evidence files ride in the "attachments" field.
func (h *ComplaintHandler) Create(c *fiber.Ctx) error {
	var req models.ComplaintCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}

	var attachments []services.AttachmentInput
	if form, err := c.MultipartForm(); err == nil && form != nil {
		uploaded, err := h.uploadAll(c, form.File["attachments"])
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to store attachment")
		}
		attachments = uploaded
	}

	complaint, err := h.complaintService.CreateComplaint(c.Context(), &req, attachments)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "Complaint submitted successfully", complaint)
}

// Track is the public status lookup by tracking id.
func (h *ComplaintHandler) Track(c *fiber.Ctx) error {
	complaint, err := h.complaintService.GetComplaintByTrackingID(c.Context(), c.Params("tracking_id"))
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Complaint found", complaint)
}

func (h *ComplaintHandler) List(c *fiber.Ctx) error {
	filter := &models.ComplaintFilter{
		Search: c.Query("search"),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 20),
	}
	if status := c.Query("status"); status != "" {
		st := workflow.Status(status)
		if !st.Valid() {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown status filter")
		}
		filter.Status = &st
	}
	if serviceType := c.Query("service_type"); serviceType != "" {
		st := models.ServiceType(serviceType)
		if !st.Valid() {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown service type filter")
		}
		filter.ServiceType = &st
	}

	complaints, total, err := h.complaintService.ListComplaints(c.Context(), filter, middleware.CurrentActor(c))
	if err != nil {
		return serviceError(c, err)
	}
	return utils.PaginatedSuccessResponse(c, complaints, filter.Page, filter.Limit, total)
}

func (h *ComplaintHandler) Get(c *fiber.Ctx) error {
	id, err := parseComplaintID(c)
	if err != nil {
		return err
	}
	complaint, err := h.complaintService.GetComplaint(c.Context(), id, middleware.CurrentActor(c))
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Complaint retrieved", complaint)
}

func (h *ComplaintHandler) History(c *fiber.Ctx) error {
	id, err := parseComplaintID(c)
	if err != nil {
		return err
	}
	history, err := h.complaintService.GetHistory(c.Context(), id, middleware.CurrentActor(c))
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "History retrieved", history)
}

func (h *ComplaintHandler) Verify(c *fiber.Ctx) error {
	id, err := parseComplaintID(c)
	if err != nil {
		return err
	}
	complaint, err := h.complaintService.VerifyComplaint(c.Context(), id, middleware.CurrentActor(c))
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Verification started", complaint)
}

func (h *ComplaintHandler) Assign(c *fiber.Ctx) error {
	id, err := parseComplaintID(c)
	if err != nil {
		return err
	}

	var req models.AssignAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}
	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid agent ID")
	}

	complaint, err := h.complaintService.AssignAgent(c.Context(), id, agentID, middleware.CurrentActor(c))
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Agent assigned", complaint)
}

func (h *ComplaintHandler) AddNote(c *fiber.Ctx) error {
	id, err := parseComplaintID(c)
	if err != nil {
		return err
	}

	var req models.AddNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}

	complaint, err := h.complaintService.AddNote(c.Context(), id, middleware.CurrentActor(c), req.Note, req.ActionLabel)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Note added", complaint)
}

// RequestClosure is the agent's proposal to resolve or reject. Accepts an
// optional evidence file in the "attachment" multipart field.
func (h *ComplaintHandler) RequestClosure(c *fiber.Ctx) error {
	id, err := parseComplaintID(c)
	if err != nil {
		return err
	}

	var req models.ClosureRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}

	var attachment *services.AttachmentInput
	if header, err := c.FormFile("attachment"); err == nil && header != nil {
		uploaded, err := h.uploadAll(c, []*multipart.FileHeader{header})
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to store attachment")
		}
		attachment = &uploaded[0]
	}

	complaint, err := h.complaintService.RequestStatusChange(
		c.Context(), id, middleware.CurrentActor(c),
		workflow.Status(req.TargetStatus), req.Notes, attachment,
	)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Closure requested", complaint)
}

func (h *ComplaintHandler) Review(c *fiber.Ctx) error {
	id, err := parseComplaintID(c)
	if err != nil {
		return err
	}

	var req models.ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}

	complaint, err := h.complaintService.ReviewRequest(c.Context(), id, middleware.CurrentActor(c), *req.Approve, req.Notes)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Request reviewed", complaint)
}

func (h *ComplaintHandler) Reject(c *fiber.Ctx) error {
	id, err := parseComplaintID(c)
	if err != nil {
		return err
	}

	var req models.RejectComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}

	complaint, err := h.complaintService.RejectComplaint(c.Context(), id, middleware.CurrentActor(c), req.Notes)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Complaint rejected", complaint)
}

func (h *ComplaintHandler) Update(c *fiber.Ctx) error {
	id, err := parseComplaintID(c)
	if err != nil {
		return err
	}

	var req models.ComplaintUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}

	complaint, err := h.complaintService.UpdateComplaint(c.Context(), id, &req, middleware.CurrentActor(c))
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Complaint updated", complaint)
}

func (h *ComplaintHandler) Delete(c *fiber.Ctx) error {
	id, err := parseComplaintID(c)
	if err != nil {
		return err
	}
	if err := h.complaintService.DeleteComplaint(c.Context(), id, middleware.CurrentActor(c)); err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Complaint deleted", nil)
}

// DownloadAttachment redirects to a short-lived presigned URL for one
// attachment. Access follows complaint view permission.
func (h *ComplaintHandler) DownloadAttachment(c *fiber.Ctx) error {
	id, err := parseComplaintID(c)
	if err != nil {
		return err
	}

	attachmentID, err := uuid.Parse(c.Params("attachment_id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid attachment ID")
	}

	url, err := h.complaintService.AttachmentURL(c.Context(), id, attachmentID, middleware.CurrentActor(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.Redirect(url, fiber.StatusFound)
}

// EligibleAgents lists active agents that handle the given service type.
func (h *ComplaintHandler) EligibleAgents(c *fiber.Ctx) error {
	serviceType := models.ServiceType(c.Query("service_type"))
	agents, err := h.assignment.EligibleAgents(c.Context(), serviceType)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Eligible agents retrieved", agents)
}
