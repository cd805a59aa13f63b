package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/futuretek/lms-service/internal/config"
	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/repositories"
	"github.com/futuretek/lms-service/internal/services"
	"github.com/futuretek/lms-service/internal/utils"
	"github.com/futuretek/lms-service/internal/validator"
)

type HandlerManager struct {
	assessmentHandler *AssessmentHandler
	attemptHandler    *AttemptHandler
	lessonHandler     *LessonHandler
	progressHandler   *ProgressHandler
	userHandler       *UserHandler
	authMiddleware    *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		assessmentHandler: NewAssessmentHandler(serviceManager.Assessment(), validator, logger),
		attemptHandler:    NewAttemptHandler(serviceManager.Attempt(), serviceManager.Grading(), serviceManager.Report(), validator, logger),
		lessonHandler:     NewLessonHandler(serviceManager.Lesson(), validator, logger),
		progressHandler:   NewProgressHandler(serviceManager.Progress(), validator, logger),
		userHandler:       NewUserHandler(userRepo, logger),
		authMiddleware:    authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		teacherOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)

		// Assessment routes
		assessments := v1.Group("/assessments")
		{
			// Create/modify assessments - Teachers and Admins only
			assessments.POST("", teacherOnly, hm.assessmentHandler.CreateAssessment)
			assessments.PUT("/:id", teacherOnly, hm.assessmentHandler.UpdateAssessment)
			assessments.DELETE("/:id", teacherOnly, hm.assessmentHandler.DeleteAssessment)
			assessments.POST("/:id/publish", teacherOnly, hm.assessmentHandler.PublishAssessment)
			assessments.POST("/:id/archive", teacherOnly, hm.assessmentHandler.ArchiveAssessment)

			// View assessments - all authenticated users
			assessments.GET("", hm.assessmentHandler.ListAssessments)
			assessments.GET("/:id", hm.assessmentHandler.GetAssessment)
			assessments.GET("/:id/details", hm.assessmentHandler.GetAssessmentWithDetails)

			// Attempt reporting - Teachers and Admins only
			assessments.GET("/:id/attempts", teacherOnly, hm.attemptHandler.GetAttemptsByAssessment)
			assessments.GET("/:id/attempts/stats", teacherOnly, hm.attemptHandler.GetAttemptStats)
			assessments.GET("/:id/attempts/export", teacherOnly, hm.attemptHandler.ExportAttempts)
		}

		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.GET("", hm.attemptHandler.GetMyAttempts)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.PUT("/:id/answers", hm.attemptHandler.SaveAnswer)
			attempts.POST("/:id/save-exit", hm.attemptHandler.SaveAndExit)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.GET("/:id/results", hm.attemptHandler.GetResults)
			attempts.GET("/:id/time-remaining", hm.attemptHandler.GetTimeRemaining)

			// Manual grading - Teachers and Admins only
			attempts.PUT("/:id/grade", teacherOnly, hm.attemptHandler.GradeAttempt)
		}

		// Lesson routes
		lessons := v1.Group("/lessons")
		{
			lessons.GET("/:id", hm.progressHandler.GetLesson)

			// Lesson authoring - Teachers and Admins only
			lessons.POST("", teacherOnly, hm.lessonHandler.CreateLesson)
			lessons.PUT("/:id", teacherOnly, hm.lessonHandler.UpdateLesson)
			lessons.DELETE("/:id", teacherOnly, hm.lessonHandler.DeleteLesson)
		}

		// Progress routes
		progress := v1.Group("/progress")
		{
			progress.PUT("", hm.progressHandler.UpdateProgress)
			progress.POST("/:lesson_id/complete", hm.progressHandler.MarkComplete)
		}

		// Course routes
		courses := v1.Group("/courses")
		{
			courses.GET("/:course_id/lessons", hm.lessonHandler.ListCourseLessons)
			courses.GET("/:course_id/progress", hm.progressHandler.GetCourseProgress)
		}

		// User routes
		users := v1.Group("/users")
		{
			users.GET("", hm.userHandler.ListUsers)
			users.GET("/:id", hm.userHandler.GetUser)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "lms-service",
		})
	})
}
