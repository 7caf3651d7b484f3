package ports

import (
	"context"
	"time"

	"github.com/wolfwhale/lms-core/internal/core/domain"
)

// XPAwardInput is a single queued XP award.
type XPAwardInput struct {
	UserID string
	Amount int64
	Reason string
}

// LedgerService owns XP, level and streak bookkeeping.
type LedgerService interface {
	AddXP(ctx context.Context, userID string, amount int64) (domain.XPAward, error)
	Progress(ctx context.Context, userID string) (domain.Progress, error)
	RecordActivity(ctx context.Context, userID string, at time.Time) (domain.Progress, error)
	ResetStaleStreaks(ctx context.Context, today time.Time) (int64, error)
}
