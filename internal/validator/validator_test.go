package validator

import (
	"testing"
	"time"

	"github.com/futuretek/lms-service/internal/models"
)

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

func hasFieldError(errs ValidationErrors, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func validAssessmentRequest() AssessmentCreateRequest {
	return AssessmentCreateRequest{
		Title:        "Planetary Dignities Quiz",
		TimeLimit:    intPtr(45),
		PassingScore: 60,
		MaxAttempts:  3,
	}
}

func TestValidator_AssessmentCreateRequest(t *testing.T) {
	v := New()

	t.Run("Valid_Request", func(t *testing.T) {
		if errs := v.Validate(validAssessmentRequest()); errs != nil {
			t.Errorf("expected no errors, got %v", errs)
		}
	})

	t.Run("Missing_Title", func(t *testing.T) {
		req := validAssessmentRequest()
		req.Title = ""
		errs := v.Validate(req)
		if !hasFieldError(errs, "title") {
			t.Errorf("expected error on title, got %v", errs)
		}
	})

	t.Run("Time_Limit_Bounds", func(t *testing.T) {
		req := validAssessmentRequest()
		req.TimeLimit = intPtr(301)
		if errs := v.Validate(req); !hasFieldError(errs, "time_limit") {
			t.Errorf("time limit 301 should be rejected, got %v", errs)
		}

		req = validAssessmentRequest()
		req.TimeLimit = nil // untimed
		if errs := v.Validate(req); errs != nil {
			t.Errorf("untimed assessment should validate, got %v", errs)
		}
	})

	t.Run("Passing_Score_Bounds", func(t *testing.T) {
		req := validAssessmentRequest()
		req.PassingScore = 101
		if errs := v.Validate(req); !hasFieldError(errs, "passing_score") {
			t.Errorf("passing score 101 should be rejected, got %v", errs)
		}
	})

	t.Run("Max_Attempts_Bounds", func(t *testing.T) {
		req := validAssessmentRequest()
		req.MaxAttempts = 11
		if errs := v.Validate(req); !hasFieldError(errs, "max_attempts") {
			t.Errorf("max attempts 11 should be rejected, got %v", errs)
		}

		req.MaxAttempts = 0 // unlimited
		if errs := v.Validate(req); errs != nil {
			t.Errorf("unlimited attempts should validate, got %v", errs)
		}
	})

	t.Run("Due_Date_Must_Be_Future", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		req := validAssessmentRequest()
		req.DueDate = &past
		if errs := v.Validate(req); !hasFieldError(errs, "due_date") {
			t.Errorf("past due date should be rejected, got %v", errs)
		}

		future := time.Now().Add(24 * time.Hour)
		req.DueDate = &future
		if errs := v.Validate(req); errs != nil {
			t.Errorf("future due date should validate, got %v", errs)
		}
	})

	t.Run("Nested_Question_Validation", func(t *testing.T) {
		req := validAssessmentRequest()
		req.Questions = []QuestionCreateRequest{
			{
				Type:    models.QuestionType("matching"),
				Text:    "Match the planets to their exaltation signs",
				Content: map[string]interface{}{},
				Points:  5,
			},
		}
		errs := v.Validate(req)
		if errs == nil {
			t.Fatal("unknown question type should be rejected")
		}
	})
}

func TestValidator_QuestionCreateRequest(t *testing.T) {
	v := New()

	valid := QuestionCreateRequest{
		Type:       models.MultipleChoice,
		Text:       "Which planet rules Scorpio in traditional astrology?",
		Content:    map[string]interface{}{"options": []string{"Mars", "Pluto"}},
		Points:     5,
		Difficulty: models.DifficultyMedium,
	}
	if errs := v.Validate(valid); errs != nil {
		t.Errorf("expected no errors, got %v", errs)
	}

	t.Run("Invalid_Difficulty", func(t *testing.T) {
		req := valid
		req.Difficulty = models.DifficultyLevel("brutal")
		if errs := v.Validate(req); !hasFieldError(errs, "difficulty") {
			t.Errorf("unknown difficulty should be rejected, got %v", errs)
		}
	})

	t.Run("Points_Required", func(t *testing.T) {
		req := valid
		req.Points = 0
		if errs := v.Validate(req); !hasFieldError(errs, "points") {
			t.Errorf("zero points should be rejected, got %v", errs)
		}
	})

	t.Run("Negative_Points_Nonnegative", func(t *testing.T) {
		req := valid
		req.NegativePoints = -1
		if errs := v.Validate(req); !hasFieldError(errs, "negative_points") {
			t.Errorf("negative penalty should be rejected, got %v", errs)
		}
	})
}

func TestValidator_LessonCreateRequest(t *testing.T) {
	v := New()

	valid := LessonCreateRequest{
		CourseID:      1,
		Title:         "The Twelve Houses",
		ContentType:   models.ContentVideo,
		VideoURL:      strPtr("https://cdn.example.com/lectures/houses.mp4"),
		VideoDuration: 1800,
	}
	if errs := v.Validate(valid); errs != nil {
		t.Errorf("expected no errors, got %v", errs)
	}

	t.Run("Invalid_Content_Type", func(t *testing.T) {
		req := valid
		req.ContentType = models.ContentType("webinar")
		if errs := v.Validate(req); !hasFieldError(errs, "content_type") {
			t.Errorf("unknown content type should be rejected, got %v", errs)
		}
	})

	t.Run("Invalid_Video_URL", func(t *testing.T) {
		req := valid
		req.VideoURL = strPtr("not a url")
		if errs := v.Validate(req); !hasFieldError(errs, "video_url") {
			t.Errorf("malformed url should be rejected, got %v", errs)
		}
	})

	t.Run("Watch_Percentage_Bounds", func(t *testing.T) {
		req := valid
		req.CompletionRules = &CompletionRulesRequest{
			RequireVideoWatched:     true,
			MinVideoWatchPercentage: intPtr(130),
		}
		errs := v.Validate(req)
		if errs == nil {
			t.Fatal("watch percentage over 100 should be rejected")
		}

		req.CompletionRules.MinVideoWatchPercentage = intPtr(80)
		if errs := v.Validate(req); errs != nil {
			t.Errorf("expected no errors, got %v", errs)
		}
	})
}
