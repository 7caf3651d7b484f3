package ports

import (
	"context"
	"time"

	"github.com/wolfwhale/lms-core/internal/core/domain"
)

// XPChange is the before/after state of an atomic XP increment.
type XPChange struct {
	OldXP    int64
	OldLevel int
	NewXP    int64
	NewLevel int
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	Delete(ctx context.Context, id string) error
	CountBySchool(ctx context.Context, schoolID string) (int64, error)

	// IncrementXP adds amount to the user's XP and recomputes the level in a
	// single atomic mutation. Concurrent calls for one user never lose updates.
	IncrementXP(ctx context.Context, userID string, amount int64) (XPChange, error)

	// RecordActivity advances the user's streak for day as one atomic
	// read-modify-write and returns the updated user.
	RecordActivity(ctx context.Context, userID string, day time.Time) (*domain.User, error)

	// ResetStaleStreaks zeroes streaks whose last activity is before the day
	// preceding today. It returns the number of users reset.
	ResetStaleStreaks(ctx context.Context, today time.Time) (int64, error)
}
