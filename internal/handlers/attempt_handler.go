package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/repositories"
	"github.com/futuretek/lms-service/internal/services"
	"github.com/futuretek/lms-service/internal/utils"
	"github.com/futuretek/lms-service/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	gradingService services.GradingService
	reportService  services.ReportService
	validator      *validator.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	gradingService services.GradingService,
	reportService services.ReportService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		gradingService: gradingService,
		reportService:  reportService,
		validator:      validator,
	}
}

// StartAttempt starts a new assessment attempt, or resumes the open one
// @Summary Start assessment attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body services.StartAttemptRequest true "Start attempt data"
// @Success 201 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	h.LogRequest(c, "Starting assessment attempt")

	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message:   "Invalid request payload",
			Details:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

// GetAttempt retrieves an attempt by ID
// @Summary Get attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// SaveAnswer records one answer on an in-progress attempt
// @Summary Save answer
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param answer body services.SaveAnswerRequest true "Answer data"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /attempts/{id}/answers [put]
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Saving answer", "attempt_id", attemptID)

	var req services.SaveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message:   "Invalid request payload",
			Details:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), attemptID, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message:   "Answer saved successfully",
		Timestamp: time.Now(),
	})
}

// SaveAndExit persists answers and leaves the attempt open
// @Summary Save and exit attempt
// @Description Saves answers without submitting; the attempt stays in
// progress and the timer keeps running.
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param attempt body services.SaveAttemptRequest true "Answers to save"
// @Success 200 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Router /attempts/{id}/save-exit [post]
func (h *AttemptHandler) SaveAndExit(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Saving and exiting attempt", "attempt_id", attemptID)

	var req services.SaveAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message:   "Invalid request payload",
			Details:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.SaveAndExit(c.Request.Context(), attemptID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// SubmitAttempt finalizes an attempt and grades it
// @Summary Submit assessment attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param attempt body services.SubmitAttemptRequest true "Submit attempt data"
// @Success 200 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Submitting assessment attempt", "attempt_id", attemptID)

	var req services.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message:   "Invalid request payload",
			Details:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Submit(c.Request.Context(), attemptID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetResults returns the computed results of a finalized attempt
// @Summary Get attempt results
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResults
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/results [get]
func (h *AttemptHandler) GetResults(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	results, err := h.attemptService.GetResults(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

// GetTimeRemaining gets the remaining time for an attempt in seconds
// @Summary Get time remaining
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse{data=int}
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id}/time-remaining [get]
func (h *AttemptHandler) GetTimeRemaining(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	remaining, err := h.attemptService.GetTimeRemaining(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message:   "Time remaining retrieved successfully",
		Data:      remaining,
		Timestamp: time.Now(),
	})
}

// GradeAttempt records manual grades for essay answers
// @Summary Grade attempt manually
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param grades body services.ManualGradeRequest true "Manual grades"
// @Success 200 {object} services.AttemptResults
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /attempts/{id}/grade [put]
func (h *AttemptHandler) GradeAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Grading attempt manually", "attempt_id", attemptID)

	var req services.ManualGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message:   "Invalid request payload",
			Details:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	results, err := h.gradingService.GradeManually(c.Request.Context(), attemptID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

// GetMyAttempts lists the caller's own attempts
// @Summary List own attempts
// @Tags attempts
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Param status query string false "Attempt status"
// @Success 200 {object} map[string]interface{}
// @Router /attempts [get]
func (h *AttemptHandler) GetMyAttempts(c *gin.Context) {
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	filters := h.parseAttemptFilters(c)
	attempts, total, err := h.attemptService.GetByStudent(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, paginatedResponse(attempts, total, filters.Limit, filters.Offset))
}

// GetAttemptsByAssessment lists attempts for an assessment (owner or admin)
// @Summary Get attempts by assessment
// @Tags attempts
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} ErrorResponse
// @Router /assessments/{id}/attempts [get]
func (h *AttemptHandler) GetAttemptsByAssessment(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	filters := h.parseAttemptFilters(c)
	attempts, total, err := h.attemptService.GetByAssessment(c.Request.Context(), assessmentID, filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, paginatedResponse(attempts, total, filters.Limit, filters.Offset))
}

// GetAttemptStats retrieves attempt statistics for an assessment
// @Summary Get attempt statistics
// @Tags attempts
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 200 {object} SuccessResponse{data=repositories.AttemptStats}
// @Failure 403 {object} ErrorResponse
// @Router /assessments/{id}/attempts/stats [get]
func (h *AttemptHandler) GetAttemptStats(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	stats, err := h.attemptService.GetStats(c.Request.Context(), assessmentID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message:   "Attempt stats retrieved successfully",
		Data:      stats,
		Timestamp: time.Now(),
	})
}

// ExportAttempts streams an XLSX workbook of all attempts on an assessment
// @Summary Export attempts
// @Tags attempts
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Assessment ID"
// @Success 200 {file} binary
// @Failure 403 {object} ErrorResponse
// @Router /assessments/{id}/attempts/export [get]
func (h *AttemptHandler) ExportAttempts(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}

	h.LogRequest(c, "Exporting attempts", "assessment_id", assessmentID)

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	data, filename, err := h.reportService.ExportAttempts(c.Request.Context(), assessmentID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// Helper methods

func (h *AttemptHandler) parseAttemptFilters(c *gin.Context) repositories.AttemptFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)

	filters := repositories.AttemptFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if status := c.Query("status"); status != "" {
		attemptStatus := models.AttemptStatus(status)
		filters.Status = &attemptStatus
	}

	if studentID := strings.TrimSpace(c.Query("student_id")); studentID != "" {
		filters.StudentID = &studentID
	}

	return filters
}

func paginatedResponse(data interface{}, total int64, limit, offset int) map[string]interface{} {
	page := (offset / max(limit, 1)) + 1
	totalPages := (int(total) + limit - 1) / max(limit, 1)
	return map[string]interface{}{
		"data":        data,
		"total":       total,
		"page":        page,
		"size":        limit,
		"total_pages": totalPages,
	}
}
