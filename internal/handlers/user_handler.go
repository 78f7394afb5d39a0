package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pengaduan/backend/internal/middleware"
	"github.com/pengaduan/backend/internal/models"
	"github.com/pengaduan/backend/internal/services"
	"github.com/pengaduan/backend/internal/workflow"
	"github.com/pengaduan/backend/pkg/utils"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) Login(c *fiber.Ctx) error {
	var req models.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}

	auth, err := h.userService.Login(c.Context(), &req)
	if err != nil {
		// Credential failures deliberately map to 401, not 403.
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid username or password")
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Login successful", auth)
}

func (h *UserHandler) Refresh(c *fiber.Ctx) error {
	var req models.RefreshTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}

	auth, err := h.userService.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid refresh token")
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Token refreshed", auth)
}

func (h *UserHandler) Logout(c *fiber.Ctx) error {
	user, ok := c.Locals(middleware.LocalUser).(*models.User)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required")
	}
	token, _ := c.Locals(middleware.LocalToken).(string)

	if err := h.userService.Logout(c.Context(), token, user.ID); err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Logged out successfully", nil)
}

func (h *UserHandler) Me(c *fiber.Ctx) error {
	user, ok := c.Locals(middleware.LocalUser).(*models.User)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required")
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Profile retrieved", models.ToUserResponse(user))
}

func (h *UserHandler) Create(c *fiber.Ctx) error {
	var req models.UserCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}

	user, err := h.userService.CreateUser(c.Context(), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "User created", user)
}

func (h *UserHandler) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	var req models.UserUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}

	user, err := h.userService.UpdateUser(c.Context(), id, &req)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "User updated", user)
}

func (h *UserHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid user ID")
	}
	user, err := h.userService.GetUser(c.Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "User retrieved", user)
}

func (h *UserHandler) List(c *fiber.Ctx) error {
	var role *workflow.Role
	if roleQuery := c.Query("role"); roleQuery != "" {
		r := workflow.Role(roleQuery)
		if !r.Valid() {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown role filter")
		}
		role = &r
	}

	users, err := h.userService.ListUsers(c.Context(), role)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Users retrieved", users)
}
