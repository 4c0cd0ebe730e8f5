package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/assessly/assessly-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptResult combines learner identity with their attempt outcome, for
// owner-facing result listings.
type AttemptResult struct {
	AttemptID   uuid.UUID           `json:"attempt_id"`
	UserID      int                 `json:"user_id"`
	Name        string              `json:"name"`
	Email       string              `json:"email"`
	Status      model.AttemptStatus `json:"status"`
	Score       *float64            `json:"score"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt *time.Time          `json:"completed_at"`
}

// AttemptRepository handles attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, user_id, assessment_id, started_at, completed_at,
	status, total_questions, answers, score, correct_answers`

// Create inserts a new in-progress attempt. A partial unique index on
// (user_id, assessment_id) WHERE status = 'in_progress' makes the insert the
// atomic exclusivity check: a concurrent duplicate hits the conflict clause,
// the RETURNING scan yields pgx.ErrNoRows, and the caller reports the live
// attempt instead of creating a second one.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (user_id, assessment_id, status, total_questions)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, assessment_id) WHERE status = 'in_progress' DO NOTHING
		 RETURNING id, started_at`,
		a.UserID, a.AssessmentID, model.AttemptStatusInProgress, a.TotalQuestions,
	).Scan(&a.ID, &a.StartedAt)
}

// GetByID retrieves an attempt by id.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id,
	).Scan(&a.ID, &a.UserID, &a.AssessmentID, &a.StartedAt, &a.CompletedAt,
		&a.Status, &a.TotalQuestions, &a.Answers, &a.Score, &a.CorrectAnswers)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetInProgress retrieves the live attempt for a (user, assessment) pair,
// if one exists.
func (r *AttemptRepository) GetInProgress(ctx context.Context, userID int, assessmentID uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE user_id = $1 AND assessment_id = $2 AND status = $3`,
		userID, assessmentID, model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.UserID, &a.AssessmentID, &a.StartedAt, &a.CompletedAt,
		&a.Status, &a.TotalQuestions, &a.Answers, &a.Score, &a.CorrectAnswers)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Complete atomically grades the attempt: the conditional status predicate
// guarantees exactly one concurrent submit wins. Returns false when the
// attempt was no longer in progress.
func (r *AttemptRepository) Complete(ctx context.Context, id uuid.UUID, answers json.RawMessage, score float64, correctAnswers int) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, answers = $2, score = $3, correct_answers = $4, completed_at = NOW()
		 WHERE id = $5 AND status = $6`,
		model.AttemptStatusCompleted, answers, score, correctAnswers,
		id, model.AttemptStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Expire terminates an attempt whose submission arrived after the window
// closed. Same conditional shape as Complete; no score is written.
func (r *AttemptRepository) Expire(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, completed_at = NOW()
		 WHERE id = $2 AND status = $3`,
		model.AttemptStatusExpired, id, model.AttemptStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SaveDraft stores autosaved answers on a live attempt. Drafts never
// participate in grading; submit always grades its own payload.
func (r *AttemptRepository) SaveDraft(ctx context.Context, id uuid.UUID, draft json.RawMessage) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts SET draft_answers = $1
		 WHERE id = $2 AND status = $3`,
		draft, id, model.AttemptStatusInProgress)
	return err
}

// ListByUser retrieves all attempts for a learner, newest first.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE user_id = $1
		 ORDER BY started_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.AssessmentID, &a.StartedAt, &a.CompletedAt,
			&a.Status, &a.TotalQuestions, &a.Answers, &a.Score, &a.CorrectAnswers); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ListByAssessment retrieves learner results for an assessment with pagination.
func (r *AttemptRepository) ListByAssessment(ctx context.Context, assessmentID uuid.UUID, limit, offset int) ([]AttemptResult, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE assessment_id = $1`, assessmentID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT at.id, u.id, u.name, u.email, at.status, at.score, at.started_at, at.completed_at
		 FROM attempts at
		 JOIN users u ON at.user_id = u.id
		 WHERE at.assessment_id = $1
		 ORDER BY at.started_at DESC
		 LIMIT $2 OFFSET $3`, assessmentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []AttemptResult
	for rows.Next() {
		var res AttemptResult
		if err := rows.Scan(&res.AttemptID, &res.UserID, &res.Name, &res.Email,
			&res.Status, &res.Score, &res.StartedAt, &res.CompletedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}
