package domain

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

var (
	ErrUserNotFound   = fmt.Errorf("user %w", ErrNotFound)
	ErrSchoolNotFound = fmt.Errorf("school %w", ErrNotFound)
)

// ErrMissingTarget marks a billing event whose school cannot be resolved.
// Delivery is still acknowledged to the provider.
var ErrMissingTarget = errors.New("billing event target school not resolved")

// ErrCustomerConflict means a billing customer is already linked to another
// school. Redelivery cannot fix it, so it is acknowledged and audited.
var ErrCustomerConflict = errors.New("billing customer already linked to another school")

var ErrValidation = errors.New("validation failed")

var ErrForbidden = errors.New("access forbidden")
var ErrUserExists = errors.New("user already exists")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrSeatLimitReached = errors.New("school seat limit reached")

// Validationf wraps ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrInvalidSignature means a webhook delivery failed provider signature verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")
