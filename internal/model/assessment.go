package model

import (
	"time"

	"github.com/google/uuid"
)

// Assessment represents an authored quiz/test definition.
// DurationMinutes nil means the assessment is untimed.
type Assessment struct {
	ID              uuid.UUID `json:"id"`
	OwnerID         int       `json:"owner_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
	Active          bool      `json:"active"`
	Published       bool      `json:"published"`
	QuestionCount   int       `json:"question_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateAssessmentRequest is the payload for creating a new assessment.
type CreateAssessmentRequest struct {
	Title           string `json:"title" binding:"required,min=3,max=255"`
	Description     string `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes *int   `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
}

// UpdateAssessmentRequest is the payload for updating an existing assessment.
type UpdateAssessmentRequest struct {
	Title           string  `json:"title" binding:"omitempty,min=3,max=255"`
	Description     *string `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes *int    `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	Active          *bool   `json:"active" binding:"omitempty"`
	Published       *bool   `json:"published" binding:"omitempty"`
}
