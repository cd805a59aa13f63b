package services

import (
	"context"
	"errors"
	"testing"

	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/repositories"
	"github.com/futuretek/lms-service/internal/validator"
)

func newAssessmentService(f *fakeRepository) AssessmentService {
	return NewAssessmentService(f, nil, testLogger(), validator.New())
}

func seedRoles(f *fakeRepository) {
	f.users["teacher-1"] = &models.User{ID: "teacher-1", FullName: "Vera Orlova", Role: models.RoleTeacher}
	f.users["teacher-2"] = &models.User{ID: "teacher-2", FullName: "Maks Sobol", Role: models.RoleTeacher}
	f.users["admin-1"] = &models.User{ID: "admin-1", FullName: "Dana Kovach", Role: models.RoleAdmin}
	f.users["student-1"] = &models.User{ID: "student-1", FullName: "Ira Belova", Role: models.RoleStudent}
}

func TestAssessmentService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates draft with settings and questions", func(t *testing.T) {
		f := newFakeRepository()
		seedRoles(f)
		s := newAssessmentService(f)

		showAnswers := true
		resp, err := s.Create(ctx, &CreateAssessmentRequest{
			Title:        "Synastry Basics",
			PassingScore: 60,
			MaxAttempts:  3,
			Settings:     &AssessmentSettingsRequest{ShowCorrectAnswers: &showAnswers},
			Questions: []CreateQuestionRequest{
				{
					Type:    models.TrueFalse,
					Text:    "A composite chart averages two natal charts.",
					Content: models.TrueFalseContent{CorrectAnswer: true},
					Points:  10,
				},
			},
		}, "teacher-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		if resp.Status != models.AssessmentDraft {
			t.Errorf("status = %v, new assessments start as drafts", resp.Status)
		}
		if !resp.CanEdit {
			t.Error("creator should be able to edit")
		}
		if len(resp.Questions) != 1 {
			t.Errorf("questions = %d, want 1", len(resp.Questions))
		}
		if !resp.Settings.ShowCorrectAnswers {
			t.Error("settings override was not applied")
		}
		if !resp.Settings.ShowResults {
			t.Error("default ShowResults should be true")
		}
	})

	t.Run("max attempts defaults to one", func(t *testing.T) {
		f := newFakeRepository()
		seedRoles(f)
		s := newAssessmentService(f)

		resp, err := s.Create(ctx, &CreateAssessmentRequest{Title: "Transit Timing", PassingScore: 50}, "teacher-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if resp.MaxAttempts != 1 {
			t.Errorf("max attempts = %d, want 1", resp.MaxAttempts)
		}
	})

	t.Run("students cannot create", func(t *testing.T) {
		f := newFakeRepository()
		seedRoles(f)
		s := newAssessmentService(f)

		_, err := s.Create(ctx, &CreateAssessmentRequest{Title: "Nope", PassingScore: 50}, "student-1")
		var pErr *PermissionError
		if !errors.As(err, &pErr) {
			t.Errorf("err = %v, want PermissionError", err)
		}
	})

	t.Run("missing title fails validation", func(t *testing.T) {
		f := newFakeRepository()
		seedRoles(f)
		s := newAssessmentService(f)

		if _, err := s.Create(ctx, &CreateAssessmentRequest{PassingScore: 50}, "teacher-1"); err == nil {
			t.Error("expected a validation error for an empty title")
		}
	})
}

func TestAssessmentService_PublishAndArchive(t *testing.T) {
	ctx := context.Background()

	newDraft := func(t *testing.T, f *fakeRepository, withQuestion bool) *AssessmentResponse {
		t.Helper()
		s := newAssessmentService(f)
		req := &CreateAssessmentRequest{Title: "Lunar Nodes", PassingScore: 50}
		if withQuestion {
			req.Questions = []CreateQuestionRequest{{
				Type:    models.TrueFalse,
				Text:    "The nodes are always exactly opposite each other.",
				Content: models.TrueFalseContent{CorrectAnswer: true},
				Points:  5,
			}}
		}
		resp, err := s.Create(ctx, req, "teacher-1")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		return resp
	}

	t.Run("publishing an empty assessment is blocked", func(t *testing.T) {
		f := newFakeRepository()
		seedRoles(f)
		draft := newDraft(t, f, false)
		s := newAssessmentService(f)

		err := s.Publish(ctx, draft.ID, "teacher-1")
		var bErr *BusinessRuleError
		if !errors.As(err, &bErr) || bErr.Rule != "assessment_empty" {
			t.Errorf("err = %v, want assessment_empty rule", err)
		}
	})

	t.Run("publish then archive", func(t *testing.T) {
		f := newFakeRepository()
		seedRoles(f)
		draft := newDraft(t, f, true)
		s := newAssessmentService(f)

		if err := s.Publish(ctx, draft.ID, "teacher-1"); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		stored, _ := f.Assessment().GetByID(ctx, nil, draft.ID)
		if stored.Status != models.AssessmentActive {
			t.Errorf("status = %v, want active", stored.Status)
		}

		if err := s.Archive(ctx, draft.ID, "teacher-1"); err != nil {
			t.Fatalf("Archive: %v", err)
		}
		stored, _ = f.Assessment().GetByID(ctx, nil, draft.ID)
		if stored.Status != models.AssessmentArchived {
			t.Errorf("status = %v, want archived", stored.Status)
		}

		// Archived is terminal.
		err := s.Publish(ctx, draft.ID, "teacher-1")
		var bErr *BusinessRuleError
		if !errors.As(err, &bErr) || bErr.Rule != "assessment_archived" {
			t.Errorf("err = %v, want assessment_archived rule", err)
		}
	})

	t.Run("only the owner or an admin can publish", func(t *testing.T) {
		f := newFakeRepository()
		seedRoles(f)
		draft := newDraft(t, f, true)
		s := newAssessmentService(f)

		err := s.Publish(ctx, draft.ID, "teacher-2")
		var pErr *PermissionError
		if !errors.As(err, &pErr) {
			t.Errorf("other teacher: err = %v, want PermissionError", err)
		}

		if err := s.Publish(ctx, draft.ID, "admin-1"); err != nil {
			t.Errorf("admin publish: %v", err)
		}
	})
}

func TestAssessmentService_Update(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, status models.AssessmentStatus) (*fakeRepository, *models.Assessment) {
		t.Helper()
		f := newFakeRepository()
		seedRoles(f)
		assessment := &models.Assessment{
			Title:        "Chart Rectification",
			Status:       status,
			PassingScore: 60,
			MaxAttempts:  1,
			CreatedBy:    "teacher-1",
		}
		if err := f.Assessment().Create(ctx, nil, assessment); err != nil {
			t.Fatalf("seed: %v", err)
		}
		return f, assessment
	}

	t.Run("draft fields are freely editable", func(t *testing.T) {
		f, assessment := seed(t, models.AssessmentDraft)
		s := newAssessmentService(f)

		title := "Chart Rectification, Revised"
		score := 70
		limit := 45
		resp, err := s.Update(ctx, assessment.ID, &UpdateAssessmentRequest{
			Title:        &title,
			PassingScore: &score,
			TimeLimit:    &limit,
		}, "teacher-1")
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if resp.Title != title || resp.PassingScore != 70 || resp.TimeLimit == nil || *resp.TimeLimit != 45 {
			t.Errorf("update not applied: %+v", resp.Assessment)
		}
	})

	t.Run("scoring rules freeze while active", func(t *testing.T) {
		f, assessment := seed(t, models.AssessmentActive)
		s := newAssessmentService(f)

		score := 80
		_, err := s.Update(ctx, assessment.ID, &UpdateAssessmentRequest{PassingScore: &score}, "teacher-1")
		var bErr *BusinessRuleError
		if !errors.As(err, &bErr) || bErr.Rule != "assessment_active" {
			t.Errorf("passing score change: err = %v, want assessment_active rule", err)
		}

		limit := 20
		_, err = s.Update(ctx, assessment.ID, &UpdateAssessmentRequest{TimeLimit: &limit}, "teacher-1")
		if !errors.As(err, &bErr) || bErr.Rule != "assessment_active" {
			t.Errorf("time limit change: err = %v, want assessment_active rule", err)
		}

		// Non-scoring fields still update.
		title := "Chart Rectification II"
		if _, err := s.Update(ctx, assessment.ID, &UpdateAssessmentRequest{Title: &title}, "teacher-1"); err != nil {
			t.Errorf("title update on active assessment: %v", err)
		}
	})
}

func TestAssessmentService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("active assessments cannot be deleted", func(t *testing.T) {
		f := newFakeRepository()
		seedRoles(f)
		assessment := &models.Assessment{Title: "X", Status: models.AssessmentActive, PassingScore: 50, CreatedBy: "teacher-1"}
		if err := f.Assessment().Create(ctx, nil, assessment); err != nil {
			t.Fatal(err)
		}

		err := newAssessmentService(f).Delete(ctx, assessment.ID, "teacher-1")
		var bErr *BusinessRuleError
		if !errors.As(err, &bErr) || bErr.Rule != "assessment_active" {
			t.Errorf("err = %v, want assessment_active rule", err)
		}
	})

	t.Run("recorded attempts block deletion", func(t *testing.T) {
		f := newFakeRepository()
		seedRoles(f)
		assessment := &models.Assessment{Title: "X", Status: models.AssessmentDraft, PassingScore: 50, CreatedBy: "teacher-1"}
		if err := f.Assessment().Create(ctx, nil, assessment); err != nil {
			t.Fatal(err)
		}
		if err := f.Attempt().Create(ctx, nil, &models.AssessmentAttempt{
			AssessmentID: assessment.ID, StudentID: "student-1", AttemptNumber: 1, Status: models.AttemptCompleted,
		}); err != nil {
			t.Fatal(err)
		}

		err := newAssessmentService(f).Delete(ctx, assessment.ID, "teacher-1")
		var bErr *BusinessRuleError
		if !errors.As(err, &bErr) || bErr.Rule != "assessment_has_attempts" {
			t.Errorf("err = %v, want assessment_has_attempts rule", err)
		}
	})

	t.Run("untouched draft deletes", func(t *testing.T) {
		f := newFakeRepository()
		seedRoles(f)
		assessment := &models.Assessment{Title: "X", Status: models.AssessmentDraft, PassingScore: 50, CreatedBy: "teacher-1"}
		if err := f.Assessment().Create(ctx, nil, assessment); err != nil {
			t.Fatal(err)
		}

		if err := newAssessmentService(f).Delete(ctx, assessment.ID, "teacher-1"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if exists, _ := f.Assessment().ExistsByID(ctx, nil, assessment.ID); exists {
			t.Error("assessment still exists after delete")
		}
	})
}

func TestAssessmentService_List(t *testing.T) {
	ctx := context.Background()
	f := newFakeRepository()
	seedRoles(f)

	seedOne := func(title, creator string, status models.AssessmentStatus) {
		if err := f.Assessment().Create(ctx, nil, &models.Assessment{
			Title: title, Status: status, PassingScore: 50, CreatedBy: creator,
		}); err != nil {
			t.Fatal(err)
		}
	}
	seedOne("Active by T1", "teacher-1", models.AssessmentActive)
	seedOne("Draft by T1", "teacher-1", models.AssessmentDraft)
	seedOne("Active by T2", "teacher-2", models.AssessmentActive)

	s := newAssessmentService(f)

	t.Run("students see only active assessments", func(t *testing.T) {
		resp, err := s.List(ctx, repositories.AssessmentFilters{Limit: 20}, "student-1")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if resp.Total != 2 {
			t.Errorf("total = %d, want 2 active", resp.Total)
		}
		for _, a := range resp.Assessments {
			if a.Status != models.AssessmentActive {
				t.Errorf("student list leaked a %v assessment", a.Status)
			}
		}
	})

	t.Run("teachers see only their own", func(t *testing.T) {
		resp, err := s.List(ctx, repositories.AssessmentFilters{Limit: 20}, "teacher-1")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if resp.Total != 2 {
			t.Errorf("total = %d, want 2 owned", resp.Total)
		}
		for _, a := range resp.Assessments {
			if a.CreatedBy != "teacher-1" {
				t.Errorf("teacher list leaked an assessment by %s", a.CreatedBy)
			}
		}
	})

	t.Run("admins see everything", func(t *testing.T) {
		resp, err := s.List(ctx, repositories.AssessmentFilters{Limit: 20}, "admin-1")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if resp.Total != 3 {
			t.Errorf("total = %d, want 3", resp.Total)
		}
	})
}
