package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRepository is an in-memory Repository for service tests. It mirrors the
// semantics the postgres layer promises: not-found errors are
// gorm.ErrRecordNotFound, progress upserts are monotonic on the watched
// percentage, and MarkCompleted only fires once.
type fakeRepository struct {
	assessments map[uint]*models.Assessment
	settings    map[uint]*models.AssessmentSettings
	questions   map[uint]*models.Question
	attempts    map[uint]*models.AssessmentAttempt
	answers     map[uint]*models.StudentAnswer
	courses     map[uint]*models.Course
	lessons     map[uint]*models.Lesson
	progress    map[string]*models.LessonProgress
	users       map[string]*models.User

	nextID uint
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		assessments: make(map[uint]*models.Assessment),
		settings:    make(map[uint]*models.AssessmentSettings),
		questions:   make(map[uint]*models.Question),
		attempts:    make(map[uint]*models.AssessmentAttempt),
		answers:     make(map[uint]*models.StudentAnswer),
		courses:     make(map[uint]*models.Course),
		lessons:     make(map[uint]*models.Lesson),
		progress:    make(map[string]*models.LessonProgress),
		users:       make(map[string]*models.User),
	}
}

func (f *fakeRepository) id() uint {
	f.nextID++
	return f.nextID
}

func progressKey(lessonID uint, studentID string) string {
	return fmt.Sprintf("%d/%s", lessonID, studentID)
}

func (f *fakeRepository) Assessment() repositories.AssessmentRepository { return &fakeAssessments{f} }
func (f *fakeRepository) AssessmentSettings() repositories.AssessmentSettingsRepository {
	return &fakeSettings{f}
}
func (f *fakeRepository) Question() repositories.QuestionRepository { return &fakeQuestions{f} }
func (f *fakeRepository) Attempt() repositories.AttemptRepository   { return &fakeAttempts{f} }
func (f *fakeRepository) Answer() repositories.AnswerRepository     { return &fakeAnswers{f} }
func (f *fakeRepository) Course() repositories.CourseRepository     { return &fakeCourses{f} }
func (f *fakeRepository) Lesson() repositories.LessonRepository     { return &fakeLessons{f} }
func (f *fakeRepository) Progress() repositories.ProgressRepository { return &fakeProgress{f} }
func (f *fakeRepository) User() repositories.UserRepository         { return &fakeUsers{f} }

func (f *fakeRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(f)
}

func (f *fakeRepository) Ping(ctx context.Context) error { return nil }
func (f *fakeRepository) Close() error                   { return nil }

// ===== ASSESSMENTS =====

type fakeAssessments struct{ f *fakeRepository }

func (r *fakeAssessments) Create(_ context.Context, _ *gorm.DB, a *models.Assessment) error {
	if a.ID == 0 {
		a.ID = r.f.id()
	}
	r.f.assessments[a.ID] = a
	return nil
}

func (r *fakeAssessments) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Assessment, error) {
	a, ok := r.f.assessments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return a, nil
}

func (r *fakeAssessments) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error) {
	a, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	detailed := *a
	detailed.Questions = nil
	for _, q := range r.f.questions {
		if q.AssessmentID == id {
			detailed.Questions = append(detailed.Questions, *q)
		}
	}
	sort.Slice(detailed.Questions, func(i, j int) bool {
		return detailed.Questions[i].DisplayOrder < detailed.Questions[j].DisplayOrder
	})
	if s, ok := r.f.settings[id]; ok {
		detailed.Settings = *s
	}
	detailed.QuestionCount = len(detailed.Questions)
	return &detailed, nil
}

func (r *fakeAssessments) Update(_ context.Context, _ *gorm.DB, a *models.Assessment) error {
	if _, ok := r.f.assessments[a.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.f.assessments[a.ID] = a
	return nil
}

func (r *fakeAssessments) Delete(_ context.Context, _ *gorm.DB, id uint) error {
	delete(r.f.assessments, id)
	return nil
}

func (r *fakeAssessments) List(_ context.Context, _ *gorm.DB, filters repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	var out []*models.Assessment
	for _, a := range r.f.assessments {
		if filters.Status != nil && a.Status != *filters.Status {
			continue
		}
		if filters.CreatedBy != nil && a.CreatedBy != *filters.CreatedBy {
			continue
		}
		if filters.CourseID != nil && (a.CourseID == nil || *a.CourseID != *filters.CourseID) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *fakeAssessments) GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	filters.CreatedBy = &creatorID
	return r.List(ctx, tx, filters)
}

func (r *fakeAssessments) GetByCourse(ctx context.Context, tx *gorm.DB, courseID uint, filters repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	filters.CourseID = &courseID
	return r.List(ctx, tx, filters)
}

func (r *fakeAssessments) ExistsByID(_ context.Context, _ *gorm.DB, id uint) (bool, error) {
	_, ok := r.f.assessments[id]
	return ok, nil
}

func (r *fakeAssessments) GetTotalPoints(_ context.Context, _ *gorm.DB, id uint) (int, error) {
	total := 0
	for _, q := range r.f.questions {
		if q.AssessmentID == id {
			total += q.Points
		}
	}
	return total, nil
}

func (r *fakeAssessments) GetStats(_ context.Context, _ *gorm.DB, id uint) (*repositories.AssessmentStats, error) {
	stats := &repositories.AssessmentStats{}
	for _, a := range r.f.attempts {
		if a.AssessmentID == id {
			stats.TotalAttempts++
		}
	}
	for _, q := range r.f.questions {
		if q.AssessmentID == id {
			stats.QuestionCount++
			stats.TotalPoints += q.Points
		}
	}
	return stats, nil
}

// ===== SETTINGS =====

type fakeSettings struct{ f *fakeRepository }

func (r *fakeSettings) GetByAssessmentID(_ context.Context, _ *gorm.DB, assessmentID uint) (*models.AssessmentSettings, error) {
	s, ok := r.f.settings[assessmentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (r *fakeSettings) Upsert(_ context.Context, _ *gorm.DB, settings *models.AssessmentSettings) error {
	r.f.settings[settings.AssessmentID] = settings
	return nil
}

// ===== QUESTIONS =====

type fakeQuestions struct{ f *fakeRepository }

func (r *fakeQuestions) Create(_ context.Context, _ *gorm.DB, q *models.Question) error {
	if q.ID == 0 {
		q.ID = r.f.id()
	}
	r.f.questions[q.ID] = q
	return nil
}

func (r *fakeQuestions) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Question, error) {
	q, ok := r.f.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return q, nil
}

func (r *fakeQuestions) Update(_ context.Context, _ *gorm.DB, q *models.Question) error {
	r.f.questions[q.ID] = q
	return nil
}

func (r *fakeQuestions) Delete(_ context.Context, _ *gorm.DB, id uint) error {
	delete(r.f.questions, id)
	return nil
}

func (r *fakeQuestions) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	for _, q := range questions {
		if err := r.Create(ctx, tx, q); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeQuestions) GetByIDs(_ context.Context, _ *gorm.DB, ids []uint) ([]*models.Question, error) {
	var out []*models.Question
	for _, id := range ids {
		if q, ok := r.f.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *fakeQuestions) GetByAssessment(_ context.Context, _ *gorm.DB, assessmentID uint) ([]*models.Question, error) {
	var out []*models.Question
	for _, q := range r.f.questions {
		if q.AssessmentID == assessmentID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (r *fakeQuestions) CountByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) (int, error) {
	qs, err := r.GetByAssessment(ctx, tx, assessmentID)
	return len(qs), err
}

// ===== ATTEMPTS =====

type fakeAttempts struct{ f *fakeRepository }

func (r *fakeAttempts) Create(_ context.Context, _ *gorm.DB, a *models.AssessmentAttempt) error {
	if a.ID == 0 {
		a.ID = r.f.id()
	}
	a.CreatedAt = time.Now()
	r.f.attempts[a.ID] = a
	return nil
}

func (r *fakeAttempts) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.AssessmentAttempt, error) {
	a, ok := r.f.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return a, nil
}

func (r *fakeAttempts) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentAttempt, error) {
	a, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	detailed := *a
	detailed.Answers = nil
	for _, ans := range r.f.answers {
		if ans.AttemptID == id {
			detailed.Answers = append(detailed.Answers, *ans)
		}
	}
	return &detailed, nil
}

func (r *fakeAttempts) Update(_ context.Context, _ *gorm.DB, a *models.AssessmentAttempt) error {
	if _, ok := r.f.attempts[a.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	a.UpdatedAt = time.Now()
	r.f.attempts[a.ID] = a
	return nil
}

func (r *fakeAttempts) UpdateStatus(_ context.Context, _ *gorm.DB, id uint, status models.AttemptStatus) error {
	a, ok := r.f.attempts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.Status = status
	return nil
}

func (r *fakeAttempts) GetActiveAttempt(_ context.Context, _ *gorm.DB, assessmentID uint, studentID string) (*models.AssessmentAttempt, error) {
	for _, a := range r.f.attempts {
		if a.AssessmentID == assessmentID && a.StudentID == studentID && a.Status == models.AttemptInProgress {
			return a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAttempts) GetByAssessment(_ context.Context, _ *gorm.DB, assessmentID uint, filters repositories.AttemptFilters) ([]*models.AssessmentAttempt, int64, error) {
	var out []*models.AssessmentAttempt
	for _, a := range r.f.attempts {
		if a.AssessmentID != assessmentID {
			continue
		}
		if filters.Status != nil && a.Status != *filters.Status {
			continue
		}
		if filters.StudentID != nil && a.StudentID != *filters.StudentID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *fakeAttempts) GetByStudent(_ context.Context, _ *gorm.DB, studentID string, filters repositories.AttemptFilters) ([]*models.AssessmentAttempt, int64, error) {
	var out []*models.AssessmentAttempt
	for _, a := range r.f.attempts {
		if a.StudentID != studentID {
			continue
		}
		if filters.Status != nil && a.Status != *filters.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *fakeAttempts) CountByAssessmentAndStudent(_ context.Context, _ *gorm.DB, assessmentID uint, studentID string) (int, error) {
	count := 0
	for _, a := range r.f.attempts {
		if a.AssessmentID == assessmentID && a.StudentID == studentID {
			count++
		}
	}
	return count, nil
}

func (r *fakeAttempts) GetExpiredInProgress(_ context.Context, _ *gorm.DB, asOf time.Time, limit int) ([]*models.AssessmentAttempt, error) {
	var out []*models.AssessmentAttempt
	for _, a := range r.f.attempts {
		if a.Status == models.AttemptInProgress && a.EndsAt != nil && asOf.After(*a.EndsAt) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeAttempts) GetStats(_ context.Context, _ *gorm.DB, assessmentID uint) (*repositories.AttemptStats, error) {
	stats := &repositories.AttemptStats{
		StatusBreakdown: make(map[models.AttemptStatus]int),
	}
	for _, a := range r.f.attempts {
		if a.AssessmentID == assessmentID {
			stats.TotalAttempts++
			stats.StatusBreakdown[a.Status]++
		}
	}
	return stats, nil
}

// ===== ANSWERS =====

type fakeAnswers struct{ f *fakeRepository }

func (r *fakeAnswers) Create(_ context.Context, _ *gorm.DB, a *models.StudentAnswer) error {
	if a.ID == 0 {
		a.ID = r.f.id()
	}
	r.f.answers[a.ID] = a
	return nil
}

func (r *fakeAnswers) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.StudentAnswer) error {
	for _, a := range answers {
		if err := r.Create(ctx, tx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeAnswers) Update(_ context.Context, _ *gorm.DB, a *models.StudentAnswer) error {
	if _, ok := r.f.answers[a.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.f.answers[a.ID] = a
	return nil
}

func (r *fakeAnswers) UpdateBatch(ctx context.Context, tx *gorm.DB, answers []*models.StudentAnswer) error {
	for _, a := range answers {
		if err := r.Update(ctx, tx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeAnswers) GetByAttempt(_ context.Context, _ *gorm.DB, attemptID uint) ([]*models.StudentAnswer, error) {
	var out []*models.StudentAnswer
	for _, a := range r.f.answers {
		if a.AttemptID == attemptID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (r *fakeAnswers) GetByAttemptAndQuestion(_ context.Context, _ *gorm.DB, attemptID, questionID uint) (*models.StudentAnswer, error) {
	for _, a := range r.f.answers {
		if a.AttemptID == attemptID && a.QuestionID == questionID {
			return a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAnswers) CountAnswered(_ context.Context, _ *gorm.DB, attemptID uint) (int, error) {
	count := 0
	for _, a := range r.f.answers {
		if a.AttemptID == attemptID && a.HasContent() {
			count++
		}
	}
	return count, nil
}

// ===== COURSES =====

type fakeCourses struct{ f *fakeRepository }

func (r *fakeCourses) Create(_ context.Context, _ *gorm.DB, c *models.Course) error {
	if c.ID == 0 {
		c.ID = r.f.id()
	}
	r.f.courses[c.ID] = c
	return nil
}

func (r *fakeCourses) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Course, error) {
	c, ok := r.f.courses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (r *fakeCourses) GetByIDWithLessons(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error) {
	c, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	detailed := *c
	detailed.Lessons = nil
	for _, l := range r.f.lessons {
		if l.CourseID == id {
			detailed.Lessons = append(detailed.Lessons, *l)
		}
	}
	return &detailed, nil
}

func (r *fakeCourses) Update(_ context.Context, _ *gorm.DB, c *models.Course) error {
	r.f.courses[c.ID] = c
	return nil
}

func (r *fakeCourses) Delete(_ context.Context, _ *gorm.DB, id uint) error {
	delete(r.f.courses, id)
	return nil
}

func (r *fakeCourses) ExistsByID(_ context.Context, _ *gorm.DB, id uint) (bool, error) {
	_, ok := r.f.courses[id]
	return ok, nil
}

// ===== LESSONS =====

type fakeLessons struct{ f *fakeRepository }

func (r *fakeLessons) Create(_ context.Context, _ *gorm.DB, l *models.Lesson) error {
	if l.ID == 0 {
		l.ID = r.f.id()
	}
	r.f.lessons[l.ID] = l
	return nil
}

func (r *fakeLessons) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Lesson, error) {
	l, ok := r.f.lessons[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return l, nil
}

func (r *fakeLessons) Update(_ context.Context, _ *gorm.DB, l *models.Lesson) error {
	r.f.lessons[l.ID] = l
	return nil
}

func (r *fakeLessons) Delete(_ context.Context, _ *gorm.DB, id uint) error {
	delete(r.f.lessons, id)
	return nil
}

func (r *fakeLessons) GetByCourse(_ context.Context, _ *gorm.DB, courseID uint, _ repositories.LessonFilters) ([]*models.Lesson, error) {
	var out []*models.Lesson
	for _, l := range r.f.lessons {
		if l.CourseID == courseID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (r *fakeLessons) CountByCourse(ctx context.Context, tx *gorm.DB, courseID uint) (int, error) {
	ls, err := r.GetByCourse(ctx, tx, courseID, repositories.LessonFilters{})
	return len(ls), err
}

// ===== PROGRESS =====

type fakeProgress struct{ f *fakeRepository }

func (r *fakeProgress) Upsert(_ context.Context, _ *gorm.DB, p *models.LessonProgress) error {
	key := progressKey(p.LessonID, p.StudentID)
	existing, ok := r.f.progress[key]
	if !ok {
		if p.ID == 0 {
			p.ID = r.f.id()
		}
		p.OpenCount = 1
		stored := *p
		r.f.progress[key] = &stored
		p.ID = stored.ID
		return nil
	}

	// Same merge rules as the postgres upsert: position and duration are
	// last-write-wins, percentage never decreases.
	existing.LastWatchedPosition = p.LastWatchedPosition
	if p.VideoPercentageWatched > existing.VideoPercentageWatched {
		existing.VideoPercentageWatched = p.VideoPercentageWatched
	}
	existing.WatchDuration = p.WatchDuration
	existing.OpenCount++
	existing.UpdatedAt = time.Now()
	p.ID = existing.ID
	return nil
}

func (r *fakeProgress) GetByLessonAndStudent(_ context.Context, _ *gorm.DB, lessonID uint, studentID string) (*models.LessonProgress, error) {
	p, ok := r.f.progress[progressKey(lessonID, studentID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *fakeProgress) GetByCourseAndStudent(_ context.Context, _ *gorm.DB, courseID uint, studentID string, filters repositories.ProgressFilters) ([]*models.LessonProgress, error) {
	var out []*models.LessonProgress
	for _, p := range r.f.progress {
		if p.CourseID != courseID || p.StudentID != studentID {
			continue
		}
		if filters.IsCompleted != nil && p.IsCompleted != *filters.IsCompleted {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessonID < out[j].LessonID })
	return out, nil
}

func (r *fakeProgress) MarkCompleted(_ context.Context, _ *gorm.DB, lessonID uint, studentID string) error {
	p, ok := r.f.progress[progressKey(lessonID, studentID)]
	if !ok || p.IsCompleted {
		// The real query guards on is_completed = false; zero rows affected
		// surfaces as a not-found error.
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	p.IsCompleted = true
	p.CompletedAt = &now
	return nil
}

func (r *fakeProgress) CountCompleted(_ context.Context, _ *gorm.DB, courseID uint, studentID string) (int, error) {
	count := 0
	for _, p := range r.f.progress {
		if p.CourseID == courseID && p.StudentID == studentID && p.IsCompleted {
			count++
		}
	}
	return count, nil
}

func (r *fakeProgress) GetCourseStats(ctx context.Context, tx *gorm.DB, courseID uint, studentID string) (*repositories.CourseProgressStats, error) {
	total := 0
	for _, l := range r.f.lessons {
		if l.CourseID == courseID {
			total++
		}
	}
	completed, err := r.CountCompleted(ctx, tx, courseID, studentID)
	if err != nil {
		return nil, err
	}
	return &repositories.CourseProgressStats{
		TotalLessons:     total,
		CompletedLessons: completed,
	}, nil
}

// ===== USERS =====

type fakeUsers struct{ f *fakeRepository }

func (r *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := r.f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (r *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUsers) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, ok := r.f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUsers) List(_ context.Context, _ repositories.UserFilters) ([]*models.User, int64, error) {
	var out []*models.User
	for _, u := range r.f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *fakeUsers) ExistsByID(_ context.Context, id string) (bool, error) {
	_, ok := r.f.users[id]
	return ok, nil
}

func (r *fakeUsers) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return u.Role == role, nil
}
