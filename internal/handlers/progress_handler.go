package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/futuretek/lms-service/internal/services"
	"github.com/futuretek/lms-service/internal/utils"
	"github.com/futuretek/lms-service/internal/validator"
)

type ProgressHandler struct {
	BaseHandler
	progressService services.ProgressService
	validator       *validator.Validator
}

func NewProgressHandler(
	progressService services.ProgressService,
	validator *validator.Validator,
	logger utils.Logger,
) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler:     NewBaseHandler(logger),
		progressService: progressService,
		validator:       validator,
	}
}

// GetLesson retrieves a lesson with the caller's progress
// @Summary Get lesson
// @Description Returns the lesson content, its video source classification
// and the caller's saved progress for resume.
// @Tags lessons
// @Produce json
// @Param id path uint true "Lesson ID"
// @Success 200 {object} services.LessonResponse
// @Failure 404 {object} ErrorResponse
// @Router /lessons/{id} [get]
func (h *ProgressHandler) GetLesson(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	lesson, err := h.progressService.GetLesson(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, lesson)
}

// UpdateProgress records playback telemetry for a lesson
// @Summary Update lesson progress
// @Description Last write wins on the resume position; the watched
// percentage never decreases.
// @Tags progress
// @Accept json
// @Produce json
// @Param progress body services.UpdateProgressRequest true "Progress data"
// @Success 200 {object} services.ProgressResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /progress [put]
func (h *ProgressHandler) UpdateProgress(c *gin.Context) {
	var req services.UpdateProgressRequest
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

	progress, err := h.progressService.UpdateProgress(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// MarkComplete marks a lesson completed for the caller
// @Summary Complete lesson
// @Tags progress
// @Produce json
// @Param lesson_id path uint true "Lesson ID"
// @Success 200 {object} services.ProgressResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /progress/{lesson_id}/complete [post]
func (h *ProgressHandler) MarkComplete(c *gin.Context) {
	lessonID := h.parseIDParam(c, "lesson_id")
	if lessonID == 0 {
		return
	}

	h.LogRequest(c, "Completing lesson", "lesson_id", lessonID)

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	progress, err := h.progressService.MarkComplete(c.Request.Context(), lessonID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// GetCourseProgress returns the caller's rollup for a course
// @Summary Get course progress
// @Tags progress
// @Produce json
// @Param course_id path uint true "Course ID"
// @Success 200 {object} models.CourseProgress
// @Failure 404 {object} ErrorResponse
// @Router /courses/{course_id}/progress [get]
func (h *ProgressHandler) GetCourseProgress(c *gin.Context) {
	courseID := h.parseIDParam(c, "course_id")
	if courseID == 0 {
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	progress, err := h.progressService.GetCourseProgress(c.Request.Context(), courseID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}
