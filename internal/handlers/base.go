package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/services"
	"github.com/futuretek/lms-service/internal/utils"
	"github.com/futuretek/lms-service/internal/validator"
)

type ErrorResponse = models.ErrorResponse
type SuccessResponse = models.SuccessResponse

// BaseHandler carries the shared handler plumbing: logging and the
// service-error to HTTP-status mapping.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.GetLogger(c).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	utils.GetLogger(c).Error(msg, append(args, "error", err)...)
}

func (h *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	idStr := c.Param(param)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message:   "Invalid " + param,
			Timestamp: time.Now(),
		})
		return 0
	}
	return uint(id)
}

func (h *BaseHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// ParseStringIDParam reads a non-numeric path parameter, writing a 400
// and returning "" when it is missing.
func ParseStringIDParam(c *gin.Context, param string) string {
	id := c.Param(param)
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message:   "Missing " + param,
			Timestamp: time.Now(),
		})
	}
	return id
}

func (h *BaseHandler) getUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message:   "User not authenticated",
			Timestamp: time.Now(),
		})
		return "", false
	}
	id, ok := userID.(string)
	if !ok || id == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message:   "User not authenticated",
			Timestamp: time.Now(),
		})
		return "", false
	}
	return id, true
}

// handleServiceError translates service-layer errors into HTTP responses.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		responses := make([]models.ValidationErrorResponse, len(validationErrors))
		for i, ve := range validationErrors {
			responses[i] = models.ValidationErrorResponse{
				Field:   ve.Field,
				Message: ve.Message,
				Value:   ve.Value,
				Rule:    ve.Rule,
			}
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message:          "Validation failed",
			ValidationErrors: responses,
			Timestamp:        time.Now(),
		})
		return
	}

	var serviceValidationError *services.ValidationError
	if errors.As(err, &serviceValidationError) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: map[string]interface{}{
				"field": serviceValidationError.Field,
				"error": serviceValidationError.Message,
			},
			Timestamp: time.Now(),
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Code:    businessRuleError.Rule,
			Details: businessRuleError.Details,
			Timestamp: time.Now(),
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
			Timestamp: time.Now(),
		})
		return
	}

	switch {
	// Not found
	case errors.Is(err, services.ErrAssessmentNotFound),
		errors.Is(err, services.ErrAttemptNotFound),
		errors.Is(err, services.ErrAnswerNotFound),
		errors.Is(err, services.ErrCourseNotFound),
		errors.Is(err, services.ErrLessonNotFound),
		errors.Is(err, services.ErrProgressNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message:   err.Error(),
			Timestamp: time.Now(),
		})

	// Conflict
	case errors.Is(err, services.ErrAttemptAlreadySubmitted),
		errors.Is(err, services.ErrAttemptInProgress),
		errors.Is(err, services.ErrAttemptNotActive),
		errors.Is(err, services.ErrAttemptCannotStart),
		errors.Is(err, services.ErrMaxAttemptsReached),
		errors.Is(err, services.ErrProgressAlreadyCompleted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message:   err.Error(),
			Timestamp: time.Now(),
		})

	// Gone: the window for the action has closed
	case errors.Is(err, services.ErrAttemptTimeExpired),
		errors.Is(err, services.ErrAssessmentHasExpired):
		c.JSON(http.StatusGone, ErrorResponse{
			Message:   err.Error(),
			Timestamp: time.Now(),
		})

	// Unprocessable: domain rules rejected the request
	case errors.Is(err, services.ErrAssessmentNotActive),
		errors.Is(err, services.ErrGradingNotAllowed),
		errors.Is(err, services.ErrNothingToGrade),
		errors.Is(err, services.ErrAttemptNotCompleted),
		errors.Is(err, services.ErrQuestionNotInAttempt),
		errors.Is(err, services.ErrCompletionRequirementsNotMet):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message:   err.Error(),
			Timestamp: time.Now(),
		})

	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message:   "Internal server error",
			Timestamp: time.Now(),
		})
	}
}
