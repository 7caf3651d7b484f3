package handler

import (
	"time"

	"github.com/wolfwhale/lms-core/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

type acceptedResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string       `json:"token,omitempty"`
	User  *domain.User `json:"user,omitempty"`
}

// --- Users ---

type createUserRequest struct {
	SchoolID string `json:"school_id"`
	Name     string `json:"name"     validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role"     validate:"required,oneof=admin teacher student parent"`
}

// --- Gamification ---

type awardXPRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"max=200"`
}

type batchAwardRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Amount int64  `json:"amount"  validate:"required,gt=0"`
	Reason string `json:"reason"  validate:"max=200"`
}

type activityRequest struct {
	// OccurredAt defaults to the time the request is received.
	OccurredAt *time.Time `json:"occurred_at"`
}

// --- Schools ---

type registerSchoolRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// --- Billing ---

type webhookResponse struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
}
