package repository

import (
	"context"
	"fmt"

	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/scoring"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssessmentRepository handles assessment, question and option data access.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

const assessmentColumns = `a.id, a.owner_id, a.title, a.description, a.duration_minutes,
	a.active, a.published, a.created_at, a.updated_at,
	(SELECT COUNT(*) FROM questions q WHERE q.assessment_id = a.id) AS question_count`

func scanAssessment(row interface{ Scan(dest ...any) error }) (*model.Assessment, error) {
	a := &model.Assessment{}
	err := row.Scan(&a.ID, &a.OwnerID, &a.Title, &a.Description, &a.DurationMinutes,
		&a.Active, &a.Published, &a.CreatedAt, &a.UpdatedAt, &a.QuestionCount)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an assessment by its UUID.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	return scanAssessment(r.pool.QueryRow(ctx,
		`SELECT `+assessmentColumns+` FROM assessments a WHERE a.id = $1`, id))
}

// Create inserts a new assessment.
func (r *AssessmentRepository) Create(ctx context.Context, a *model.Assessment) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO assessments (owner_id, title, description, duration_minutes)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, active, published, created_at, updated_at`,
		a.OwnerID, a.Title, a.Description, a.DurationMinutes,
	).Scan(&a.ID, &a.Active, &a.Published, &a.CreatedAt, &a.UpdatedAt)
}

// Update persists mutable assessment fields.
func (r *AssessmentRepository) Update(ctx context.Context, a *model.Assessment) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assessments
		 SET title = $1, description = $2, duration_minutes = $3,
		     active = $4, published = $5, updated_at = NOW()
		 WHERE id = $6`,
		a.Title, a.Description, a.DurationMinutes, a.Active, a.Published, a.ID)
	return err
}

// ListByOwnerPaginated retrieves one owner's assessments with total count.
func (r *AssessmentRepository) ListByOwnerPaginated(ctx context.Context, ownerID, limit, offset int) ([]model.Assessment, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM assessments WHERE owner_id = $1`, ownerID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+assessmentColumns+`
		 FROM assessments a
		 WHERE a.owner_id = $1
		 ORDER BY a.created_at DESC
		 LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var assessments []model.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, 0, err
		}
		assessments = append(assessments, *a)
	}
	return assessments, total, rows.Err()
}

// ListAvailable retrieves assessments a learner may attempt: active, published,
// and with at least one question.
func (r *AssessmentRepository) ListAvailable(ctx context.Context) ([]model.Assessment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assessmentColumns+`
		 FROM assessments a
		 WHERE a.active AND a.published
		   AND EXISTS (SELECT 1 FROM questions q WHERE q.assessment_id = a.id)
		 ORDER BY a.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assessments []model.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, *a)
	}
	return assessments, rows.Err()
}

// ListQuestions retrieves all questions with their options for an assessment,
// ordered by position. Correctness flags are included; callers serving
// learners must strip them.
func (r *AssessmentRepository) ListQuestions(ctx context.Context, assessmentID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.assessment_id, q.text, q.points, q.position,
		        o.id, o.question_id, o.text, o.correct, o.position
		 FROM questions q
		 JOIN options o ON o.question_id = q.id
		 WHERE q.assessment_id = $1
		 ORDER BY q.position, o.position`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	index := make(map[int64]int)
	for rows.Next() {
		var q model.Question
		var o model.Option
		if err := rows.Scan(&q.ID, &q.AssessmentID, &q.Text, &q.Points, &q.Position,
			&o.ID, &o.QuestionID, &o.Text, &o.Correct, &o.Position); err != nil {
			return nil, err
		}
		i, ok := index[q.ID]
		if !ok {
			questions = append(questions, q)
			i = len(questions) - 1
			index[q.ID] = i
		}
		questions[i].Options = append(questions[i].Options, o)
	}
	return questions, rows.Err()
}

// LoadSnapshot builds the grading view of an assessment's current question
// set: per-question point values and correct option-id sets.
func (r *AssessmentRepository) LoadSnapshot(ctx context.Context, assessmentID uuid.UUID) (*scoring.Snapshot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.points, o.id, o.correct
		 FROM questions q
		 JOIN options o ON o.question_id = q.id
		 WHERE q.assessment_id = $1
		 ORDER BY q.position, o.position`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snap := &scoring.Snapshot{}
	index := make(map[int64]int)
	for rows.Next() {
		var qID, oID int64
		var points int
		var correct bool
		if err := rows.Scan(&qID, &points, &oID, &correct); err != nil {
			return nil, err
		}
		i, ok := index[qID]
		if !ok {
			snap.Questions = append(snap.Questions, scoring.Question{ID: qID, Points: points})
			i = len(snap.Questions) - 1
			index[qID] = i
		}
		if correct {
			snap.Questions[i].CorrectOptionIDs = append(snap.Questions[i].CorrectOptionIDs, oID)
		}
	}
	return snap, rows.Err()
}

// CountQuestions returns the number of questions in an assessment.
func (r *AssessmentRepository) CountQuestions(ctx context.Context, assessmentID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions WHERE assessment_id = $1`, assessmentID,
	).Scan(&n)
	return n, err
}

// ReplaceQuestions atomically swaps an assessment's entire question set.
// Options cascade-delete with their questions.
func (r *AssessmentRepository) ReplaceQuestions(ctx context.Context, assessmentID uuid.UUID, questions []model.AddQuestionRequest) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM questions WHERE assessment_id = $1`, assessmentID); err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}

	for pos, q := range questions {
		points := q.Points
		if points < 1 {
			points = 1
		}

		var questionID int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (assessment_id, text, points, position)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			assessmentID, q.Text, points, pos,
		).Scan(&questionID); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}

		for opos, o := range q.Options {
			if _, err := tx.Exec(ctx,
				`INSERT INTO options (question_id, text, correct, position)
				 VALUES ($1, $2, $3, $4)`,
				questionID, o.Text, o.Correct, opos); err != nil {
				return fmt.Errorf("insert option: %w", err)
			}
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE assessments SET updated_at = NOW() WHERE id = $1`, assessmentID); err != nil {
		return fmt.Errorf("touch assessment: %w", err)
	}

	return tx.Commit(ctx)
}
