package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/futuretek/lms-service/internal/repositories"
	"github.com/futuretek/lms-service/internal/utils"
)

// UserHandler exposes read-only user lookups backed by Casdoor.
type UserHandler struct {
	BaseHandler
	userRepo repositories.UserRepository
}

func NewUserHandler(userRepo repositories.UserRepository, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		userRepo:    userRepo,
	}
}

// GetUser retrieves a user by ID
// @Summary Get user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message:   "User not found",
			Timestamp: time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, user)
}

// ListUsers lists users, optionally filtered by a search query
// @Summary List users
// @Tags users
// @Produce json
// @Param q query string false "Search query (name or email)"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} map[string]interface{}
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)

	filters := repositories.UserFilters{
		Query:  strings.TrimSpace(c.Query("q")),
		Limit:  size,
		Offset: (page - 1) * size,
	}

	users, total, err := h.userRepo.List(c.Request.Context(), filters)
	if err != nil {
		h.LogError(c, err, "Failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message:   "Failed to list users",
			Timestamp: time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, paginatedResponse(users, total, filters.Limit, filters.Offset))
}
