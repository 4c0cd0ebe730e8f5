package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/assessly/assessly-backend/internal/config"
	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/scoring"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain Errors
var (
	ErrAssessmentNotFound      = errors.New("assessment does not exist")
	ErrAssessmentNotAvailable  = errors.New("assessment is not active or not published")
	ErrNoQuestions             = errors.New("assessment has no questions")
	ErrAttemptInProgress       = errors.New("an attempt is already in progress for this assessment")
	ErrAttemptNotFound         = errors.New("attempt does not exist")
	ErrNotAttemptOwner         = errors.New("attempt belongs to another user")
	ErrAttemptAlreadyCompleted = errors.New("attempt has already been completed")
	ErrAttemptTimeExpired      = errors.New("attempt time window has closed")
	ErrAttemptNotLive          = errors.New("attempt is not in progress")
)

// AttemptStore is the persistence surface the lifecycle controller needs for
// attempts. *repository.AttemptRepository satisfies it.
type AttemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	GetInProgress(ctx context.Context, userID int, assessmentID uuid.UUID) (*model.Attempt, error)
	Complete(ctx context.Context, id uuid.UUID, answers json.RawMessage, score float64, correctAnswers int) (bool, error)
	Expire(ctx context.Context, id uuid.UUID) (bool, error)
	SaveDraft(ctx context.Context, id uuid.UUID, draft json.RawMessage) error
	ListByUser(ctx context.Context, userID int) ([]model.Attempt, error)
}

// AssessmentStore is the read-only view of the authoring store used when
// guarding and grading attempts. *repository.AssessmentRepository satisfies it.
type AssessmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error)
	CountQuestions(ctx context.Context, assessmentID uuid.UUID) (int, error)
	ListQuestions(ctx context.Context, assessmentID uuid.UUID) ([]model.Question, error)
	LoadSnapshot(ctx context.Context, assessmentID uuid.UUID) (*scoring.Snapshot, error)
}

// AttemptService owns the attempt lifecycle: starting an attempt behind the
// eligibility guard, the time window check, and the one-shot transition to a
// graded, immutable result.
type AttemptService struct {
	attempts    AttemptStore
	assessments AssessmentStore
	rdb         *redis.Client
	log         zerolog.Logger
	now         func() time.Time
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attempts AttemptStore,
	assessments AssessmentStore,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attempts:    attempts,
		assessments: assessments,
		rdb:         rdb,
		log:         log.With().Str("component", "attempt_service").Logger(),
		now:         time.Now,
	}
}

// Start creates a new in-progress attempt for the user after the eligibility
// guard passes. The single-live-attempt invariant is enforced by the store's
// conditional insert, so two concurrent starts cannot both succeed.
func (s *AttemptService) Start(ctx context.Context, user *model.User, assessmentID uuid.UUID) (*model.Attempt, error) {
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	if !assessment.Active || !assessment.Published {
		return nil, ErrAssessmentNotAvailable
	}

	questionCount, err := s.assessments.CountQuestions(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	if questionCount == 0 {
		return nil, ErrNoQuestions
	}

	attempt := &model.Attempt{
		UserID:         user.ID,
		AssessmentID:   assessmentID,
		Status:         model.AttemptStatusInProgress,
		TotalQuestions: questionCount,
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost to a concurrent start, or a live attempt already existed.
			return nil, ErrAttemptInProgress
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("assessment_id", assessmentID.String()).
		Int("user_id", user.ID).
		Int("total_questions", questionCount).
		Msg("Attempt started")

	return attempt, nil
}

// Submit grades a live attempt against the assessment's current question set
// and transitions it to completed. The snapshot is loaded fresh here, not
// reused from Start, so question/point edits made mid-window are reflected
// at grading time. Exactly one of two concurrent submits wins; the loser
// observes ErrAttemptAlreadyCompleted.
func (s *AttemptService) Submit(ctx context.Context, user *model.User, attemptID uuid.UUID, answers []model.SubmittedAnswer) (*model.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	if attempt.UserID != user.ID {
		return nil, ErrNotAttemptOwner
	}

	switch attempt.Status {
	case model.AttemptStatusCompleted:
		return nil, ErrAttemptAlreadyCompleted
	case model.AttemptStatusExpired:
		return nil, ErrAttemptTimeExpired
	}

	assessment, err := s.assessments.GetByID(ctx, attempt.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	// The window is evaluated against the wall clock now, at submission,
	// never cached. Expiry happens here as a side effect of the late submit;
	// there is no background sweep.
	if !withinWindow(attempt.StartedAt, assessment.DurationMinutes, s.now()) {
		expired, err := s.attempts.Expire(ctx, attemptID)
		if err != nil {
			return nil, fmt.Errorf("expire attempt: %w", err)
		}
		if !expired {
			// Raced with another submit that already terminated the attempt.
			if current, err := s.attempts.GetByID(ctx, attemptID); err == nil &&
				current.Status == model.AttemptStatusCompleted {
				return nil, ErrAttemptAlreadyCompleted
			}
		}
		s.log.Info().
			Str("attempt_id", attemptID.String()).
			Int("user_id", user.ID).
			Msg("Attempt expired on late submission")
		return nil, ErrAttemptTimeExpired
	}

	snapshot, err := s.assessments.LoadSnapshot(ctx, attempt.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	result := scoring.Score(snapshot, toScoringAnswers(answers))

	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("marshal answers: %w", err)
	}

	completed, err := s.attempts.Complete(ctx, attemptID, answersJSON, result.Score, result.CorrectAnswers)
	if err != nil {
		return nil, fmt.Errorf("complete attempt: %w", err)
	}
	if !completed {
		return nil, ErrAttemptAlreadyCompleted
	}

	// Best effort: the draft buffer is no longer needed.
	if s.rdb != nil {
		_ = s.rdb.Del(ctx, config.CacheKey.AttemptDraftKey(attemptID.String())).Err()
	}

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("user_id", user.ID).
		Float64("score", result.Score).
		Int("correct", result.CorrectAnswers).
		Int("total", result.TotalQuestions).
		Msg("Attempt submitted and graded")

	graded, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("reload attempt: %w", err)
	}
	return graded, nil
}

// Live retrieves the user's in-progress attempt for an assessment, so a
// learner can resume after a reload instead of hitting the start conflict.
func (s *AttemptService) Live(ctx context.Context, user *model.User, assessmentID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attempts.GetInProgress(ctx, user.ID, assessmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get live attempt: %w", err)
	}
	return attempt, nil
}

// Get retrieves an attempt, visible to its owner or to the owner of the
// underlying assessment.
func (s *AttemptService) Get(ctx context.Context, user *model.User, attemptID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	if attempt.UserID != user.ID {
		assessment, err := s.assessments.GetByID(ctx, attempt.AssessmentID)
		if err != nil || assessment.OwnerID != user.ID {
			return nil, ErrNotAttemptOwner
		}
	}
	return attempt, nil
}

// ListMine retrieves all of the user's attempts, newest first.
func (s *AttemptService) ListMine(ctx context.Context, user *model.User) ([]model.Attempt, error) {
	return s.attempts.ListByUser(ctx, user.ID)
}

// Paper returns the question set for a live attempt with correctness flags
// stripped, for rendering to the learner.
func (s *AttemptService) Paper(ctx context.Context, user *model.User, attemptID uuid.UUID) ([]model.Question, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.UserID != user.ID {
		return nil, ErrNotAttemptOwner
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, ErrAttemptNotLive
	}

	questions, err := s.assessments.ListQuestions(ctx, attempt.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	for i := range questions {
		for j := range questions[i].Options {
			questions[i].Options[j].Correct = false
		}
	}
	return questions, nil
}

// SaveDraft autosaves in-progress answers to the Redis buffer and queues them
// for durable persistence. Drafts are a convenience for page reloads; grading
// only ever uses the payload passed to Submit.
func (s *AttemptService) SaveDraft(ctx context.Context, user *model.User, attemptID uuid.UUID, answers []model.SubmittedAnswer) error {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("get attempt: %w", err)
	}
	if attempt.UserID != user.ID {
		return ErrNotAttemptOwner
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return ErrAttemptNotLive
	}

	draft, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}

	if err := s.rdb.Set(ctx, config.CacheKey.AttemptDraftKey(attemptID.String()), draft, 0).Err(); err != nil {
		return fmt.Errorf("buffer draft: %w", err)
	}

	payload, _ := json.Marshal(draftPayload{AttemptID: attemptID.String(), Answers: draft})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistDraftsQueue, payload).Err(); err != nil {
		// The Redis buffer still holds the draft; the worker misses this
		// revision but a later autosave or the submit itself supersedes it.
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to queue draft for persistence")
	}

	return nil
}

// Draft returns the buffered draft answers for a live attempt, or nil when
// none were saved.
func (s *AttemptService) Draft(ctx context.Context, user *model.User, attemptID uuid.UUID) (json.RawMessage, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.UserID != user.ID {
		return nil, ErrNotAttemptOwner
	}

	raw, err := s.rdb.Get(ctx, config.CacheKey.AttemptDraftKey(attemptID.String())).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return json.RawMessage(raw), nil
}

// RemainingSeconds reports how much of the attempt's window is left. The
// second return is false for untimed assessments, where the window is
// unbounded.
func (s *AttemptService) RemainingSeconds(ctx context.Context, attempt *model.Attempt) (float64, bool, error) {
	assessment, err := s.assessments.GetByID(ctx, attempt.AssessmentID)
	if err != nil {
		return 0, false, fmt.Errorf("get assessment: %w", err)
	}
	if assessment.DurationMinutes == nil {
		return 0, false, nil
	}

	deadline := attempt.StartedAt.Add(time.Duration(*assessment.DurationMinutes) * time.Minute)
	remaining := deadline.Sub(s.now()).Seconds()
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true, nil
}

// draftPayload is the queue message consumed by the autosave worker.
type draftPayload struct {
	AttemptID string          `json:"attempt_id"`
	Answers   json.RawMessage `json:"answers"`
}

func toScoringAnswers(answers []model.SubmittedAnswer) []scoring.Answer {
	out := make([]scoring.Answer, len(answers))
	for i, a := range answers {
		out[i] = scoring.Answer{QuestionID: a.QuestionID, SelectedOptionIDs: a.SelectedOptionIDs}
	}
	return out
}
