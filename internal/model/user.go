package model

import "time"

// Role enumerates user roles.
type Role string

const (
	RoleLearner    Role = "learner"
	RoleInstructor Role = "instructor"
)

// User represents an authenticated account (learner or instructor).
type User struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the payload for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}
