package validator

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/futuretek/lms-service/internal/models"
)

// Validator wraps go-playground/validator with the service's custom rules.
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with all custom rules registered.
func New() *Validator {
	validate := validator.New()

	// Use json tags for field names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v := &Validator{validate: validate}
	v.registerRules()

	return v
}

// Validate validates any struct and returns accumulated errors, or nil.
func (v *Validator) Validate(s interface{}) ValidationErrors {
	err := v.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

func (v *Validator) registerRules() {
	// Time limit in minutes, untimed assessments leave the field nil
	v.validate.RegisterValidation("time_limit", func(fl validator.FieldLevel) bool {
		limit := fl.Field().Int()
		return limit >= 1 && limit <= 300
	})

	// Passing score as a percentage
	v.validate.RegisterValidation("passing_score", func(fl validator.FieldLevel) bool {
		score := fl.Field().Int()
		return score >= 0 && score <= 100
	})

	// Max attempts (0 means unlimited)
	v.validate.RegisterValidation("max_attempts", func(fl validator.FieldLevel) bool {
		attempts := fl.Field().Int()
		return attempts >= 0 && attempts <= 10
	})

	// Video watch percentage threshold
	v.validate.RegisterValidation("watch_percentage", func(fl validator.FieldLevel) bool {
		pct := fl.Field().Int()
		return pct >= 0 && pct <= 100
	})

	v.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		switch models.QuestionType(fl.Field().String()) {
		case models.MultipleChoice, models.TrueFalse, models.ShortAnswer, models.Essay:
			return true
		}
		return false
	})

	v.validate.RegisterValidation("difficulty_level", func(fl validator.FieldLevel) bool {
		switch models.DifficultyLevel(fl.Field().String()) {
		case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
			return true
		}
		return false
	})

	v.validate.RegisterValidation("content_type", func(fl validator.FieldLevel) bool {
		switch models.ContentType(fl.Field().String()) {
		case models.ContentVideo, models.ContentArticle, models.ContentQuiz:
			return true
		}
		return false
	})

	// Due date must be in the future when set
	v.validate.RegisterValidation("future_date", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() == reflect.Ptr && field.IsNil() {
			return true
		}

		var t time.Time
		if field.Kind() == reflect.Ptr {
			t = field.Elem().Interface().(time.Time)
		} else {
			t = field.Interface().(time.Time)
		}
		return t.After(time.Now())
	})
}
