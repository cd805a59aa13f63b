package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/futuretek/lms-service/internal/services"
	"github.com/futuretek/lms-service/internal/utils"
	"github.com/futuretek/lms-service/internal/validator"
)

// LessonHandler serves the teacher-side lesson authoring endpoints. The
// student-facing lesson view lives on ProgressHandler.
type LessonHandler struct {
	BaseHandler
	lessonService services.LessonService
	validator     *validator.Validator
}

func NewLessonHandler(
	lessonService services.LessonService,
	validator *validator.Validator,
	logger utils.Logger,
) *LessonHandler {
	return &LessonHandler{
		BaseHandler:   NewBaseHandler(logger),
		lessonService: lessonService,
		validator:     validator,
	}
}

// CreateLesson creates a new lesson in a course
// @Summary Create lesson
// @Tags lessons
// @Accept json
// @Produce json
// @Param lesson body services.CreateLessonRequest true "Lesson data"
// @Success 201 {object} services.LessonResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /lessons [post]
func (h *LessonHandler) CreateLesson(c *gin.Context) {
	h.LogRequest(c, "Creating lesson")

	var req services.CreateLessonRequest
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

	lesson, err := h.lessonService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, lesson)
}

// UpdateLesson updates an existing lesson
// @Summary Update lesson
// @Tags lessons
// @Accept json
// @Produce json
// @Param id path uint true "Lesson ID"
// @Param lesson body services.UpdateLessonRequest true "Lesson data"
// @Success 200 {object} services.LessonResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /lessons/{id} [put]
func (h *LessonHandler) UpdateLesson(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Updating lesson", "lesson_id", id)

	var req services.UpdateLessonRequest
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

	lesson, err := h.lessonService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, lesson)
}

// DeleteLesson deletes a lesson
// @Summary Delete lesson
// @Tags lessons
// @Produce json
// @Param id path uint true "Lesson ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /lessons/{id} [delete]
func (h *LessonHandler) DeleteLesson(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting lesson", "lesson_id", id)

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	if err := h.lessonService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message:   "Lesson deleted successfully",
		Timestamp: time.Now(),
	})
}

// ListCourseLessons lists the lessons of a course in display order
// @Summary List course lessons
// @Tags lessons
// @Produce json
// @Param course_id path uint true "Course ID"
// @Success 200 {array} services.LessonResponse
// @Failure 404 {object} ErrorResponse
// @Router /courses/{course_id}/lessons [get]
func (h *LessonHandler) ListCourseLessons(c *gin.Context) {
	courseID := h.parseIDParam(c, "course_id")
	if courseID == 0 {
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	lessons, err := h.lessonService.ListByCourse(c.Request.Context(), courseID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, lessons)
}
