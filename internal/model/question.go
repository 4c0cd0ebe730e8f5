package model

import "github.com/google/uuid"

// Question represents a single assessment question. Correctness is modeled
// entirely through its options: single-answer and multi-select are both the
// set of options flagged correct.
type Question struct {
	ID           int64     `json:"id"`
	AssessmentID uuid.UUID `json:"assessment_id"`
	Text         string    `json:"text"`
	Points       int       `json:"points"`
	Position     int       `json:"position"`
	Options      []Option  `json:"options,omitempty"`
}

// Option represents one selectable choice belonging to a question.
type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	Correct    bool   `json:"correct,omitempty"`
	Position   int    `json:"position"`
}

// AddQuestionRequest is the payload for one question in a bulk replace.
type AddQuestionRequest struct {
	Text    string             `json:"text" binding:"required,min=1,max=2000"`
	Points  int                `json:"points" binding:"omitempty,min=1,max=100"`
	Options []AddOptionRequest `json:"options" binding:"required,min=2,dive"`
}

// AddOptionRequest is the payload for one option of a question.
type AddOptionRequest struct {
	Text    string `json:"text" binding:"required,min=1,max=500"`
	Correct bool   `json:"correct"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing an assessment's questions.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
