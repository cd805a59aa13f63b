package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/validator"
)

const scoreTolerance = 0.001

func mustJSON(t *testing.T, v interface{}) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func answerWith(t *testing.T, v interface{}) *models.StudentAnswer {
	t.Helper()
	return &models.StudentAnswer{Answer: mustJSON(t, v)}
}

func TestGradingService_ScoreAnswer_MultipleChoice(t *testing.T) {
	s := &gradingService{logger: testLogger()}

	zodiacContent := models.MultipleChoiceContent{
		Options: []models.MCOption{
			{ID: "opt-a", Text: "Mars"},
			{ID: "opt-b", Text: "Jupiter"},
			{ID: "opt-c", Text: "Saturn"},
		},
		CorrectOptionIDs: []string{"opt-b"},
	}

	// Two options sharing the same text; only the ID decides correctness.
	duplicateTextContent := models.MultipleChoiceContent{
		Options: []models.MCOption{
			{ID: "opt-a", Text: "The Moon"},
			{ID: "opt-b", Text: "The Moon"},
		},
		CorrectOptionIDs: []string{"opt-b"},
	}

	multiContent := models.MultipleChoiceContent{
		Options: []models.MCOption{
			{ID: "opt-a", Text: "Aries"},
			{ID: "opt-b", Text: "Leo"},
			{ID: "opt-c", Text: "Sagittarius"},
			{ID: "opt-d", Text: "Pisces"},
		},
		CorrectOptionIDs: []string{"opt-a", "opt-b", "opt-c"},
		MultipleCorrect:  true,
		PartialCredit:    true,
	}

	tests := []struct {
		name        string
		content     models.MultipleChoiceContent
		points      int
		negative    int
		selected    interface{}
		wantScore   float64
		wantCorrect bool
	}{
		{
			name:        "correct single selection",
			content:     zodiacContent,
			points:      10,
			selected:    []string{"opt-b"},
			wantScore:   10,
			wantCorrect: true,
		},
		{
			name:        "correct selection sent as plain string",
			content:     zodiacContent,
			points:      10,
			selected:    "opt-b",
			wantScore:   10,
			wantCorrect: true,
		},
		{
			name:      "wrong selection without negative marking",
			content:   zodiacContent,
			points:    10,
			selected:  []string{"opt-a"},
			wantScore: 0,
		},
		{
			name:      "wrong selection with negative marking",
			content:   zodiacContent,
			points:    10,
			negative:  3,
			selected:  []string{"opt-c"},
			wantScore: -3,
		},
		{
			name:        "duplicate option text, correct id wins",
			content:     duplicateTextContent,
			points:      5,
			selected:    []string{"opt-b"},
			wantScore:   5,
			wantCorrect: true,
		},
		{
			name:      "duplicate option text, wrong id loses",
			content:   duplicateTextContent,
			points:    5,
			negative:  1,
			selected:  []string{"opt-a"},
			wantScore: -1,
		},
		{
			name:        "multi select exact match",
			content:     multiContent,
			points:      9,
			selected:    []string{"opt-c", "opt-a", "opt-b"},
			wantScore:   9,
			wantCorrect: true,
		},
		{
			name:      "partial credit two right one wrong",
			content:   multiContent,
			points:    9,
			selected:  []string{"opt-a", "opt-b", "opt-d"},
			wantScore: 3, // (2-1)/3 of 9
		},
		{
			name:      "partial credit net negative falls back to penalty",
			content:   multiContent,
			points:    9,
			negative:  2,
			selected:  []string{"opt-d"},
			wantScore: -2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &models.Question{
				Type:           models.MultipleChoice,
				Points:         tt.points,
				NegativePoints: tt.negative,
				Content:        mustJSON(t, tt.content),
			}
			score, correct := s.scoreAnswer(q, answerWith(t, tt.selected))
			if math.Abs(score-tt.wantScore) > scoreTolerance {
				t.Errorf("score = %v, want %v", score, tt.wantScore)
			}
			if correct != tt.wantCorrect {
				t.Errorf("correct = %v, want %v", correct, tt.wantCorrect)
			}
		})
	}
}

func TestGradingService_ScoreAnswer_TrueFalse(t *testing.T) {
	s := &gradingService{logger: testLogger()}
	q := &models.Question{
		Type:           models.TrueFalse,
		Points:         4,
		NegativePoints: 1,
		Content:        mustJSON(t, models.TrueFalseContent{CorrectAnswer: true}),
	}

	score, correct := s.scoreAnswer(q, answerWith(t, true))
	if score != 4 || !correct {
		t.Errorf("correct answer: score = %v correct = %v, want 4 true", score, correct)
	}

	score, correct = s.scoreAnswer(q, answerWith(t, false))
	if score != -1 || correct {
		t.Errorf("wrong answer: score = %v correct = %v, want -1 false", score, correct)
	}
}

func TestGradingService_ScoreAnswer_ShortAnswer(t *testing.T) {
	s := &gradingService{logger: testLogger()}

	tests := []struct {
		name        string
		content     models.ShortAnswerContent
		points      int
		negative    int
		given       string
		wantScore   float64
		wantCorrect bool
	}{
		{
			name:        "exact match case insensitive",
			content:     models.ShortAnswerContent{AcceptedAnswers: []string{"Jupiter"}},
			points:      10,
			given:       "  jupiter ",
			wantScore:   10,
			wantCorrect: true,
		},
		{
			name:      "case sensitive mismatch",
			content:   models.ShortAnswerContent{AcceptedAnswers: []string{"Jupiter"}, CaseSensitive: true},
			points:    10,
			given:     "jupiter",
			wantScore: 0,
		},
		{
			name:    "fuzzy match above threshold earns proportional credit",
			content: models.ShortAnswerContent{AcceptedAnswers: []string{"jupiter"}, FuzzyMatching: true},
			points:  7,
			given:   "jupitr",
			// similarity 6/7 of 7 points
			wantScore: 6,
		},
		{
			name:      "fuzzy match below threshold is wrong",
			content:   models.ShortAnswerContent{AcceptedAnswers: []string{"jupiter"}, FuzzyMatching: true},
			points:    7,
			negative:  2,
			given:     "jup",
			wantScore: -2,
		},
		{
			name:      "no fuzzy matching means near miss is wrong",
			content:   models.ShortAnswerContent{AcceptedAnswers: []string{"jupiter"}},
			points:    7,
			given:     "jupitr",
			wantScore: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &models.Question{
				Type:           models.ShortAnswer,
				Points:         tt.points,
				NegativePoints: tt.negative,
				Content:        mustJSON(t, tt.content),
			}
			score, correct := s.scoreAnswer(q, answerWith(t, tt.given))
			if math.Abs(score-tt.wantScore) > scoreTolerance {
				t.Errorf("score = %v, want %v", score, tt.wantScore)
			}
			if correct != tt.wantCorrect {
				t.Errorf("correct = %v, want %v", correct, tt.wantCorrect)
			}
		})
	}
}

func TestGradingService_ScoreAnswer_EmptyAndEssay(t *testing.T) {
	s := &gradingService{logger: testLogger()}

	empty := &models.StudentAnswer{}
	q := &models.Question{Type: models.TrueFalse, Points: 5, NegativePoints: 5}
	if score, correct := s.scoreAnswer(q, empty); score != 0 || correct {
		t.Errorf("unanswered question scored %v, want 0 without penalty", score)
	}

	essay := &models.Question{Type: models.Essay, Points: 20}
	if score, correct := s.scoreAnswer(essay, answerWith(t, "The trine aspect forms at 120 degrees")); score != 0 || correct {
		t.Errorf("essay auto-scored %v, want 0", score)
	}
}

func TestStringSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"jupiter", "jupiter", 1.0},
		{"Jupiter", " jupiter ", 1.0},
		{"jupiter", "jupitr", 1.0 - 1.0/7.0},
		{"", "", 1.0},
		{"mars", "", 0.0},
	}
	for _, tt := range tests {
		if got := stringSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > scoreTolerance {
			t.Errorf("stringSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"saturn", "", 6},
		{"", "mars", 4},
		{"jupiter", "jupitr", 1},
		{"aries", "pisces", 4},
		{"taurus", "taurus", 0},
	}
	for _, tt := range tests {
		if got := levenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

// ===== FULL GRADING FLOW =====

// seedGradedAssessment creates a teacher, an active assessment with the given
// questions and a completed attempt with the given raw answers keyed by
// question index.
func seedGradedAssessment(t *testing.T, f *fakeRepository, passingScore int, questions []*models.Question, rawAnswers map[int]interface{}) *models.AssessmentAttempt {
	t.Helper()
	ctx := context.Background()

	f.users["teacher-1"] = &models.User{ID: "teacher-1", FullName: "Vera Orlova", Role: models.RoleTeacher}
	f.users["student-1"] = &models.User{ID: "student-1", FullName: "Ira Belova", Role: models.RoleStudent}

	assessment := &models.Assessment{
		Title:        "Natal Chart Fundamentals",
		Status:       models.AssessmentActive,
		PassingScore: passingScore,
		MaxAttempts:  3,
		CreatedBy:    "teacher-1",
	}
	if err := f.Assessment().Create(ctx, nil, assessment); err != nil {
		t.Fatalf("seed assessment: %v", err)
	}

	total := 0
	for i, q := range questions {
		q.AssessmentID = assessment.ID
		q.DisplayOrder = i + 1
		total += q.Points
		if err := f.Question().Create(ctx, nil, q); err != nil {
			t.Fatalf("seed question: %v", err)
		}
	}

	now := time.Now()
	attempt := &models.AssessmentAttempt{
		AssessmentID:   assessment.ID,
		StudentID:      "student-1",
		AttemptNumber:  1,
		Status:         models.AttemptCompleted,
		StartedAt:      &now,
		CompletedAt:    &now,
		TotalQuestions: len(questions),
	}
	if err := f.Attempt().Create(ctx, nil, attempt); err != nil {
		t.Fatalf("seed attempt: %v", err)
	}

	for i, q := range questions {
		answer := &models.StudentAnswer{
			AttemptID:  attempt.ID,
			QuestionID: q.ID,
			MaxScore:   q.Points,
		}
		if raw, ok := rawAnswers[i]; ok {
			answer.Answer = mustJSON(t, raw)
		}
		if err := f.Answer().Create(ctx, nil, answer); err != nil {
			t.Fatalf("seed answer: %v", err)
		}
	}

	return attempt
}

func TestGradingService_GradeAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("mixed auto gradable attempt", func(t *testing.T) {
		f := newFakeRepository()
		questions := []*models.Question{
			{
				Type:   models.MultipleChoice,
				Text:   "Which planet rules Sagittarius?",
				Points: 10,
				Content: mustJSON(t, models.MultipleChoiceContent{
					Options:          []models.MCOption{{ID: "a", Text: "Jupiter"}, {ID: "b", Text: "Mercury"}},
					CorrectOptionIDs: []string{"a"},
				}),
			},
			{
				Type:    models.TrueFalse,
				Text:    "A retrograde planet appears to move backwards.",
				Points:  10,
				Content: mustJSON(t, models.TrueFalseContent{CorrectAnswer: true}),
			},
		}
		attempt := seedGradedAssessment(t, f, 60, questions, map[int]interface{}{
			0: []string{"a"},
			1: false,
		})

		s := NewGradingService(nil, f, testLogger(), validator.New())
		results, err := s.GradeAttempt(ctx, attempt.ID)
		if err != nil {
			t.Fatalf("GradeAttempt: %v", err)
		}

		if results.Score != 10 {
			t.Errorf("score = %v, want 10", results.Score)
		}
		if results.MaxScore != 20 {
			t.Errorf("max score = %v, want 20", results.MaxScore)
		}
		if math.Abs(results.Percentage-50) > scoreTolerance {
			t.Errorf("percentage = %v, want 50", results.Percentage)
		}
		if results.Passed {
			t.Error("50%% should not pass a 60%% threshold")
		}
		if results.PendingManualGrading {
			t.Error("nothing should be pending manual grading")
		}
		if len(results.Questions) != 2 {
			t.Fatalf("questions in results = %d, want 2", len(results.Questions))
		}
	})

	t.Run("total is floored at zero", func(t *testing.T) {
		f := newFakeRepository()
		questions := []*models.Question{
			{
				Type:           models.TrueFalse,
				Text:           "Saturn rules Aries.",
				Points:         5,
				NegativePoints: 3,
				Content:        mustJSON(t, models.TrueFalseContent{CorrectAnswer: false}),
			},
			{
				Type:    models.TrueFalse,
				Text:    "The Sun sign changes roughly monthly.",
				Points:  5,
				Content: mustJSON(t, models.TrueFalseContent{CorrectAnswer: true}),
			},
		}
		// First wrong (-3), second unanswered (0). Attempt total must clamp.
		attempt := seedGradedAssessment(t, f, 50, questions, map[int]interface{}{
			0: true,
		})

		s := NewGradingService(nil, f, testLogger(), validator.New())
		results, err := s.GradeAttempt(ctx, attempt.ID)
		if err != nil {
			t.Fatalf("GradeAttempt: %v", err)
		}

		if results.Score != 0 {
			t.Errorf("score = %v, want 0 after clamping", results.Score)
		}
		if results.Passed {
			t.Error("clamped zero score should not pass")
		}
	})

	t.Run("essay answer leaves attempt pending", func(t *testing.T) {
		f := newFakeRepository()
		questions := []*models.Question{
			{
				Type:    models.TrueFalse,
				Text:    "Vimshottari dasha spans 120 years.",
				Points:  10,
				Content: mustJSON(t, models.TrueFalseContent{CorrectAnswer: true}),
			},
			{
				Type:    models.Essay,
				Text:    "Interpret a Moon-Saturn conjunction in the fourth house.",
				Points:  10,
				Content: mustJSON(t, models.EssayContent{}),
			},
		}
		attempt := seedGradedAssessment(t, f, 50, questions, map[int]interface{}{
			0: true,
			1: "Such a conjunction often signals emotional restraint rooted in family patterns.",
		})

		s := NewGradingService(nil, f, testLogger(), validator.New())
		results, err := s.GradeAttempt(ctx, attempt.ID)
		if err != nil {
			t.Fatalf("GradeAttempt: %v", err)
		}

		if !results.PendingManualGrading {
			t.Error("essay answer should leave the attempt pending manual grading")
		}
		if results.Passed {
			t.Error("attempt cannot pass while grading is pending")
		}

		stored, _ := f.Attempt().GetByID(ctx, nil, attempt.ID)
		if stored.IsGraded {
			t.Error("attempt should not be marked graded while pending")
		}
	})

	t.Run("in progress attempt cannot be graded", func(t *testing.T) {
		f := newFakeRepository()
		questions := []*models.Question{
			{
				Type:    models.TrueFalse,
				Text:    "Mercury rules Gemini.",
				Points:  10,
				Content: mustJSON(t, models.TrueFalseContent{CorrectAnswer: true}),
			},
		}
		attempt := seedGradedAssessment(t, f, 50, questions, nil)
		attempt.Status = models.AttemptInProgress
		if err := f.Attempt().Update(ctx, nil, attempt); err != nil {
			t.Fatalf("update attempt: %v", err)
		}

		s := NewGradingService(nil, f, testLogger(), validator.New())
		if _, err := s.GradeAttempt(ctx, attempt.ID); !errors.Is(err, ErrAttemptNotCompleted) {
			t.Errorf("err = %v, want ErrAttemptNotCompleted", err)
		}
	})
}

func TestGradingService_GradeManually(t *testing.T) {
	ctx := context.Background()

	newEssayFixture := func(t *testing.T) (*fakeRepository, *models.AssessmentAttempt, []*models.Question) {
		f := newFakeRepository()
		questions := []*models.Question{
			{
				Type:    models.TrueFalse,
				Text:    "The ascendant changes sign about every two hours.",
				Points:  10,
				Content: mustJSON(t, models.TrueFalseContent{CorrectAnswer: true}),
			},
			{
				Type:    models.Essay,
				Text:    "Describe how progressions differ from transits.",
				Points:  10,
				Content: mustJSON(t, models.EssayContent{}),
			},
		}
		attempt := seedGradedAssessment(t, f, 50, questions, map[int]interface{}{
			0: true,
			1: "Progressions unfold the natal promise symbolically, transits act in real time.",
		})
		return f, attempt, questions
	}

	t.Run("manual grade finalizes attempt", func(t *testing.T) {
		f, attempt, questions := newEssayFixture(t)
		s := NewGradingService(nil, f, testLogger(), validator.New())

		if _, err := s.GradeAttempt(ctx, attempt.ID); err != nil {
			t.Fatalf("auto grade: %v", err)
		}

		feedback := "Clear distinction, well argued."
		results, err := s.GradeManually(ctx, attempt.ID, &ManualGradeRequest{
			Grades: []ManualAnswerGrade{{QuestionID: questions[1].ID, Score: 8, Feedback: &feedback}},
		}, "teacher-1")
		if err != nil {
			t.Fatalf("GradeManually: %v", err)
		}

		if results.PendingManualGrading {
			t.Error("nothing should be pending after manual grading")
		}
		if results.Score != 18 {
			t.Errorf("score = %v, want 18", results.Score)
		}
		if !results.Passed {
			t.Error("90%% should pass a 50%% threshold")
		}

		stored, _ := f.Attempt().GetByID(ctx, nil, attempt.ID)
		if !stored.IsGraded {
			t.Error("attempt should be graded after the rollup")
		}
	})

	t.Run("score above question points is rejected", func(t *testing.T) {
		f, attempt, questions := newEssayFixture(t)
		s := NewGradingService(nil, f, testLogger(), validator.New())

		_, err := s.GradeManually(ctx, attempt.ID, &ManualGradeRequest{
			Grades: []ManualAnswerGrade{{QuestionID: questions[1].ID, Score: 15}},
		}, "teacher-1")

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("err = %v, want ValidationError", err)
		}
	})

	t.Run("auto gradable question cannot be graded manually", func(t *testing.T) {
		f, attempt, questions := newEssayFixture(t)
		s := NewGradingService(nil, f, testLogger(), validator.New())

		_, err := s.GradeManually(ctx, attempt.ID, &ManualGradeRequest{
			Grades: []ManualAnswerGrade{{QuestionID: questions[0].ID, Score: 5}},
		}, "teacher-1")
		if !errors.Is(err, ErrGradingNotAllowed) {
			t.Errorf("err = %v, want ErrGradingNotAllowed", err)
		}
	})

	t.Run("students cannot grade", func(t *testing.T) {
		f, attempt, questions := newEssayFixture(t)
		s := NewGradingService(nil, f, testLogger(), validator.New())

		_, err := s.GradeManually(ctx, attempt.ID, &ManualGradeRequest{
			Grades: []ManualAnswerGrade{{QuestionID: questions[1].ID, Score: 5}},
		}, "student-1")

		var pErr *PermissionError
		if !errors.As(err, &pErr) {
			t.Errorf("err = %v, want PermissionError", err)
		}
	})
}
