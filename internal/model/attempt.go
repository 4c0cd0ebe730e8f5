package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt lifecycle states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusCompleted  AttemptStatus = "completed"
	AttemptStatusExpired    AttemptStatus = "expired"
)

// Attempt represents one learner's timed instance of taking an assessment.
// Score and CorrectAnswers are set only once the attempt is completed;
// CompletedAt is set for both completed and expired attempts.
type Attempt struct {
	ID             uuid.UUID       `json:"id"`
	UserID         int             `json:"user_id"`
	AssessmentID   uuid.UUID       `json:"assessment_id"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	Status         AttemptStatus   `json:"status"`
	TotalQuestions int             `json:"total_questions"`
	Answers        json.RawMessage `json:"answers,omitempty"`
	Score          *float64        `json:"score,omitempty"`
	CorrectAnswers *int            `json:"correct_answers,omitempty"`
}

// SubmittedAnswer is one question's selection in a submission. A question
// absent from the submission is unanswered and scores zero, never an error.
type SubmittedAnswer struct {
	QuestionID        int64   `json:"question_id" binding:"required"`
	SelectedOptionIDs []int64 `json:"selected_option_ids"`
}

// SubmitAttemptRequest is the payload for submitting an attempt for grading.
type SubmitAttemptRequest struct {
	Answers []SubmittedAnswer `json:"answers" binding:"required,dive"`
}

// SaveDraftRequest is the payload for autosaving in-progress answers.
type SaveDraftRequest struct {
	Answers []SubmittedAnswer `json:"answers" binding:"required,dive"`
}
