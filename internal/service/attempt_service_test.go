package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/scoring"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// fakeAttemptStore replicates the repository's conditional-write semantics in
// memory: Create fails with pgx.ErrNoRows when a live attempt already exists
// for the (user, assessment) pair, and Complete/Expire only fire while the
// attempt is still in progress.
type fakeAttemptStore struct {
	attempts map[uuid.UUID]*model.Attempt
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{attempts: make(map[uuid.UUID]*model.Attempt)}
}

func (f *fakeAttemptStore) Create(_ context.Context, a *model.Attempt) error {
	for _, existing := range f.attempts {
		if existing.UserID == a.UserID && existing.AssessmentID == a.AssessmentID &&
			existing.Status == model.AttemptStatusInProgress {
			return pgx.ErrNoRows
		}
	}
	a.ID = uuid.New()
	a.StartedAt = time.Now()
	stored := *a
	f.attempts[a.ID] = &stored
	return nil
}

func (f *fakeAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	a, ok := f.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAttemptStore) GetInProgress(_ context.Context, userID int, assessmentID uuid.UUID) (*model.Attempt, error) {
	for _, a := range f.attempts {
		if a.UserID == userID && a.AssessmentID == assessmentID &&
			a.Status == model.AttemptStatusInProgress {
			copied := *a
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAttemptStore) Complete(_ context.Context, id uuid.UUID, answers json.RawMessage, score float64, correctAnswers int) (bool, error) {
	a, ok := f.attempts[id]
	if !ok || a.Status != model.AttemptStatusInProgress {
		return false, nil
	}
	now := time.Now()
	a.Status = model.AttemptStatusCompleted
	a.CompletedAt = &now
	a.Answers = answers
	a.Score = &score
	a.CorrectAnswers = &correctAnswers
	return true, nil
}

func (f *fakeAttemptStore) Expire(_ context.Context, id uuid.UUID) (bool, error) {
	a, ok := f.attempts[id]
	if !ok || a.Status != model.AttemptStatusInProgress {
		return false, nil
	}
	now := time.Now()
	a.Status = model.AttemptStatusExpired
	a.CompletedAt = &now
	return true, nil
}

func (f *fakeAttemptStore) SaveDraft(_ context.Context, id uuid.UUID, draft json.RawMessage) error {
	a, ok := f.attempts[id]
	if ok && a.Status == model.AttemptStatusInProgress {
		a.Answers = draft
	}
	return nil
}

func (f *fakeAttemptStore) ListByUser(_ context.Context, userID int) ([]model.Attempt, error) {
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

type fakeAssessmentStore struct {
	assessments   map[uuid.UUID]*model.Assessment
	questionCount map[uuid.UUID]int
	snapshots     map[uuid.UUID]*scoring.Snapshot
	snapshotLoads int
}

func newFakeAssessmentStore() *fakeAssessmentStore {
	return &fakeAssessmentStore{
		assessments:   make(map[uuid.UUID]*model.Assessment),
		questionCount: make(map[uuid.UUID]int),
		snapshots:     make(map[uuid.UUID]*scoring.Snapshot),
	}
}

func (f *fakeAssessmentStore) GetByID(_ context.Context, id uuid.UUID) (*model.Assessment, error) {
	a, ok := f.assessments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAssessmentStore) CountQuestions(_ context.Context, assessmentID uuid.UUID) (int, error) {
	return f.questionCount[assessmentID], nil
}

func (f *fakeAssessmentStore) ListQuestions(_ context.Context, assessmentID uuid.UUID) ([]model.Question, error) {
	return nil, nil
}

func (f *fakeAssessmentStore) LoadSnapshot(_ context.Context, assessmentID uuid.UUID) (*scoring.Snapshot, error) {
	f.snapshotLoads++
	snap, ok := f.snapshots[assessmentID]
	if !ok {
		return &scoring.Snapshot{}, nil
	}
	return snap, nil
}

func intPtr(v int) *int { return &v }

// newTestService wires a service over the fakes with a controllable clock and
// no Redis.
func newTestService(attempts *fakeAttemptStore, assessments *fakeAssessmentStore) *AttemptService {
	return &AttemptService{
		attempts:    attempts,
		assessments: assessments,
		log:         zerolog.Nop(),
		now:         time.Now,
	}
}

func seedAssessment(store *fakeAssessmentStore, active, published bool, durationMinutes *int, questions int) uuid.UUID {
	id := uuid.New()
	store.assessments[id] = &model.Assessment{
		ID:              id,
		OwnerID:         99,
		Title:           "Midterm",
		Active:          active,
		Published:       published,
		DurationMinutes: durationMinutes,
	}
	store.questionCount[id] = questions
	store.snapshots[id] = &scoring.Snapshot{
		Questions: []scoring.Question{
			{ID: 1, Points: 1, CorrectOptionIDs: []int64{10}},
			{ID: 2, Points: 1, CorrectOptionIDs: []int64{20, 21}},
		},
	}
	return id
}

func TestStartRejectsIneligibleAssessments(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: 1, Role: model.RoleLearner}

	tests := []struct {
		name      string
		active    bool
		published bool
		questions int
		wantErr   error
	}{
		{"inactive", false, true, 3, ErrAssessmentNotAvailable},
		{"unpublished", true, false, 3, ErrAssessmentNotAvailable},
		{"no questions", true, true, 0, ErrNoQuestions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assessments := newFakeAssessmentStore()
			id := seedAssessment(assessments, tt.active, tt.published, nil, tt.questions)
			svc := newTestService(newFakeAttemptStore(), assessments)

			_, err := svc.Start(ctx, user, id)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Start() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStartUnknownAssessment(t *testing.T) {
	svc := newTestService(newFakeAttemptStore(), newFakeAssessmentStore())
	_, err := svc.Start(context.Background(), &model.User{ID: 1}, uuid.New())
	if !errors.Is(err, ErrAssessmentNotFound) {
		t.Fatalf("Start() error = %v, want ErrAssessmentNotFound", err)
	}
}

func TestStartRecordsSnapshotSize(t *testing.T) {
	assessments := newFakeAssessmentStore()
	id := seedAssessment(assessments, true, true, intPtr(30), 2)
	svc := newTestService(newFakeAttemptStore(), assessments)

	attempt, err := svc.Start(context.Background(), &model.User{ID: 1}, id)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if attempt.Status != model.AttemptStatusInProgress {
		t.Errorf("status = %q, want %q", attempt.Status, model.AttemptStatusInProgress)
	}
	if attempt.TotalQuestions != 2 {
		t.Errorf("total_questions = %d, want 2", attempt.TotalQuestions)
	}
	if attempt.ID == uuid.Nil {
		t.Error("attempt ID not assigned")
	}
}

func TestStartSecondLiveAttemptRejected(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: 1}
	assessments := newFakeAssessmentStore()
	id := seedAssessment(assessments, true, true, nil, 2)
	attempts := newFakeAttemptStore()
	svc := newTestService(attempts, assessments)

	first, err := svc.Start(ctx, user, id)
	if err != nil {
		t.Fatalf("first Start() error = %v", err)
	}

	if _, err := svc.Start(ctx, user, id); !errors.Is(err, ErrAttemptInProgress) {
		t.Fatalf("second Start() error = %v, want ErrAttemptInProgress", err)
	}

	// Terminating the live attempt frees the slot.
	if _, err := attempts.Complete(ctx, first.ID, nil, 0, 0); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if _, err := svc.Start(ctx, user, id); err != nil {
		t.Fatalf("Start() after completion error = %v", err)
	}
}

func TestStartDifferentAssessmentsIndependent(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: 1}
	assessments := newFakeAssessmentStore()
	first := seedAssessment(assessments, true, true, nil, 2)
	second := seedAssessment(assessments, true, true, nil, 2)
	svc := newTestService(newFakeAttemptStore(), assessments)

	if _, err := svc.Start(ctx, user, first); err != nil {
		t.Fatalf("Start(first) error = %v", err)
	}
	if _, err := svc.Start(ctx, user, second); err != nil {
		t.Fatalf("Start(second) error = %v", err)
	}
}

func TestSubmitGradesAndCompletes(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: 1}
	assessments := newFakeAssessmentStore()
	id := seedAssessment(assessments, true, true, intPtr(30), 2)
	svc := newTestService(newFakeAttemptStore(), assessments)

	attempt, err := svc.Start(ctx, user, id)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	graded, err := svc.Submit(ctx, user, attempt.ID, []model.SubmittedAnswer{
		{QuestionID: 1, SelectedOptionIDs: []int64{10}},
		{QuestionID: 2, SelectedOptionIDs: []int64{21, 20}},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if graded.Status != model.AttemptStatusCompleted {
		t.Errorf("status = %q, want %q", graded.Status, model.AttemptStatusCompleted)
	}
	if graded.Score == nil || *graded.Score != 100.0 {
		t.Errorf("score = %v, want 100", graded.Score)
	}
	if graded.CorrectAnswers == nil || *graded.CorrectAnswers != 2 {
		t.Errorf("correct_answers = %v, want 2", graded.CorrectAnswers)
	}
	if graded.CompletedAt == nil {
		t.Error("completed_at not set")
	}
}

func TestSubmitSecondAttemptRejected(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: 1}
	assessments := newFakeAssessmentStore()
	id := seedAssessment(assessments, true, true, nil, 2)
	svc := newTestService(newFakeAttemptStore(), assessments)

	attempt, err := svc.Start(ctx, user, id)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	first, err := svc.Submit(ctx, user, attempt.ID, []model.SubmittedAnswer{
		{QuestionID: 1, SelectedOptionIDs: []int64{10}},
	})
	if err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}

	// The second submission must not regrade or alter the stored result.
	if _, err := svc.Submit(ctx, user, attempt.ID, []model.SubmittedAnswer{
		{QuestionID: 1, SelectedOptionIDs: []int64{10}},
		{QuestionID: 2, SelectedOptionIDs: []int64{20, 21}},
	}); !errors.Is(err, ErrAttemptAlreadyCompleted) {
		t.Fatalf("second Submit() error = %v, want ErrAttemptAlreadyCompleted", err)
	}

	current, err := svc.Get(ctx, user, attempt.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if *current.Score != *first.Score {
		t.Errorf("score changed on repeat submit: %v -> %v", *first.Score, *current.Score)
	}
}

func TestSubmitAfterWindowExpires(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: 1}
	assessments := newFakeAssessmentStore()
	id := seedAssessment(assessments, true, true, intPtr(30), 2)
	attempts := newFakeAttemptStore()
	svc := newTestService(attempts, assessments)

	attempt, err := svc.Start(ctx, user, id)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// One second past the deadline.
	svc.now = func() time.Time {
		return attempt.StartedAt.Add(30*time.Minute + time.Second)
	}

	_, err = svc.Submit(ctx, user, attempt.ID, []model.SubmittedAnswer{
		{QuestionID: 1, SelectedOptionIDs: []int64{10}},
	})
	if !errors.Is(err, ErrAttemptTimeExpired) {
		t.Fatalf("Submit() error = %v, want ErrAttemptTimeExpired", err)
	}

	stored, err := attempts.GetByID(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Status != model.AttemptStatusExpired {
		t.Errorf("status = %q, want %q", stored.Status, model.AttemptStatusExpired)
	}
	if stored.Score != nil {
		t.Errorf("score written for expired attempt: %v", *stored.Score)
	}

	// And stays terminal on retry.
	if _, err := svc.Submit(ctx, user, attempt.ID, nil); !errors.Is(err, ErrAttemptTimeExpired) {
		t.Fatalf("retry Submit() error = %v, want ErrAttemptTimeExpired", err)
	}
}

func TestSubmitExactlyAtDeadline(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: 1}
	assessments := newFakeAssessmentStore()
	id := seedAssessment(assessments, true, true, intPtr(30), 2)
	svc := newTestService(newFakeAttemptStore(), assessments)

	attempt, err := svc.Start(ctx, user, id)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// The boundary instant is still inside the window.
	svc.now = func() time.Time {
		return attempt.StartedAt.Add(30 * time.Minute)
	}

	graded, err := svc.Submit(ctx, user, attempt.ID, []model.SubmittedAnswer{
		{QuestionID: 1, SelectedOptionIDs: []int64{10}},
	})
	if err != nil {
		t.Fatalf("Submit() at deadline error = %v", err)
	}
	if graded.Status != model.AttemptStatusCompleted {
		t.Errorf("status = %q, want %q", graded.Status, model.AttemptStatusCompleted)
	}
}

func TestSubmitUntimedNeverExpires(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: 1}
	assessments := newFakeAssessmentStore()
	id := seedAssessment(assessments, true, true, nil, 2)
	svc := newTestService(newFakeAttemptStore(), assessments)

	attempt, err := svc.Start(ctx, user, id)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	svc.now = func() time.Time {
		return attempt.StartedAt.Add(365 * 24 * time.Hour)
	}

	if _, err := svc.Submit(ctx, user, attempt.ID, nil); err != nil {
		t.Fatalf("Submit() on untimed assessment error = %v", err)
	}
}

func TestSubmitOwnershipEnforced(t *testing.T) {
	ctx := context.Background()
	owner := &model.User{ID: 1}
	intruder := &model.User{ID: 2}
	assessments := newFakeAssessmentStore()
	id := seedAssessment(assessments, true, true, nil, 2)
	svc := newTestService(newFakeAttemptStore(), assessments)

	attempt, err := svc.Start(ctx, owner, id)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := svc.Submit(ctx, intruder, attempt.ID, nil); !errors.Is(err, ErrNotAttemptOwner) {
		t.Fatalf("Submit() error = %v, want ErrNotAttemptOwner", err)
	}
}

func TestSubmitUnknownAttempt(t *testing.T) {
	svc := newTestService(newFakeAttemptStore(), newFakeAssessmentStore())
	_, err := svc.Submit(context.Background(), &model.User{ID: 1}, uuid.New(), nil)
	if !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("Submit() error = %v, want ErrAttemptNotFound", err)
	}
}

func TestSubmitLoadsSnapshotFresh(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: 1}
	assessments := newFakeAssessmentStore()
	id := seedAssessment(assessments, true, true, nil, 2)
	svc := newTestService(newFakeAttemptStore(), assessments)

	attempt, err := svc.Start(ctx, user, id)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if assessments.snapshotLoads != 0 {
		t.Fatalf("snapshot loaded at start: %d loads", assessments.snapshotLoads)
	}

	// The answer key changes mid-attempt; grading must see the new key.
	assessments.snapshots[id] = &scoring.Snapshot{
		Questions: []scoring.Question{
			{ID: 1, Points: 1, CorrectOptionIDs: []int64{11}},
			{ID: 2, Points: 1, CorrectOptionIDs: []int64{20, 21}},
		},
	}

	graded, err := svc.Submit(ctx, user, attempt.ID, []model.SubmittedAnswer{
		{QuestionID: 1, SelectedOptionIDs: []int64{10}},
		{QuestionID: 2, SelectedOptionIDs: []int64{20, 21}},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if assessments.snapshotLoads != 1 {
		t.Errorf("snapshot loads = %d, want 1", assessments.snapshotLoads)
	}
	if *graded.Score != 50.0 {
		t.Errorf("score = %v, want 50 against the edited key", *graded.Score)
	}
}

func TestLiveReturnsResumableAttempt(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: 1}
	assessments := newFakeAssessmentStore()
	id := seedAssessment(assessments, true, true, nil, 2)
	svc := newTestService(newFakeAttemptStore(), assessments)

	if _, err := svc.Live(ctx, user, id); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("Live() with no attempt error = %v, want ErrAttemptNotFound", err)
	}

	started, err := svc.Start(ctx, user, id)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	live, err := svc.Live(ctx, user, id)
	if err != nil {
		t.Fatalf("Live() error = %v", err)
	}
	if live.ID != started.ID {
		t.Errorf("Live() returned %s, want %s", live.ID, started.ID)
	}

	if _, err := svc.Submit(ctx, user, started.ID, nil); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := svc.Live(ctx, user, id); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("Live() after submit error = %v, want ErrAttemptNotFound", err)
	}
}

func TestGetVisibleToAssessmentOwner(t *testing.T) {
	ctx := context.Background()
	learner := &model.User{ID: 1}
	instructor := &model.User{ID: 99, Role: model.RoleInstructor}
	stranger := &model.User{ID: 50}
	assessments := newFakeAssessmentStore()
	id := seedAssessment(assessments, true, true, nil, 2)
	svc := newTestService(newFakeAttemptStore(), assessments)

	attempt, err := svc.Start(ctx, learner, id)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := svc.Get(ctx, learner, attempt.ID); err != nil {
		t.Errorf("Get() as owner error = %v", err)
	}
	if _, err := svc.Get(ctx, instructor, attempt.ID); err != nil {
		t.Errorf("Get() as assessment owner error = %v", err)
	}
	if _, err := svc.Get(ctx, stranger, attempt.ID); !errors.Is(err, ErrNotAttemptOwner) {
		t.Errorf("Get() as stranger error = %v, want ErrNotAttemptOwner", err)
	}
}
