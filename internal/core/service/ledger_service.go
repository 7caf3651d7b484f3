package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

type ledgerService struct {
	users ports.UserRepository
	log   zerolog.Logger
}

// NewLedgerService returns a LedgerService implementation.
func NewLedgerService(users ports.UserRepository, log zerolog.Logger) ports.LedgerService {
	return &ledgerService{users: users, log: log}
}

// AddXP atomically adds amount to the user's XP and reports whether the
// user crossed a level boundary.
func (s *ledgerService) AddXP(ctx context.Context, userID string, amount int64) (domain.XPAward, error) {
	if amount <= 0 {
		return domain.XPAward{}, fmt.Errorf("add xp: %w", domain.Validationf("amount must be positive, got %d", amount))
	}

	change, err := s.users.IncrementXP(ctx, userID, amount)
	if err != nil {
		return domain.XPAward{}, fmt.Errorf("add xp: %w", err)
	}

	award := domain.XPAward{
		UserID:    userID,
		NewXP:     change.NewXP,
		NewLevel:  change.NewLevel,
		LeveledUp: change.NewLevel > change.OldLevel,
	}

	ev := s.log.Debug()
	if award.LeveledUp {
		ev = s.log.Info()
	}
	ev.Str("user_id", userID).
		Int64("amount", amount).
		Int64("xp", award.NewXP).
		Int("level", award.NewLevel).
		Bool("leveled_up", award.LeveledUp).
		Msg("xp awarded")

	return award, nil
}

func (s *ledgerService) Progress(ctx context.Context, userID string) (domain.Progress, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return domain.Progress{}, fmt.Errorf("progress: %w", err)
	}
	return domain.ProgressOf(u), nil
}

// RecordActivity marks the user active on the UTC day of at.
func (s *ledgerService) RecordActivity(ctx context.Context, userID string, at time.Time) (domain.Progress, error) {
	u, err := s.users.RecordActivity(ctx, userID, domain.Day(at))
	if err != nil {
		return domain.Progress{}, fmt.Errorf("record activity: %w", err)
	}
	return domain.ProgressOf(u), nil
}

func (s *ledgerService) ResetStaleStreaks(ctx context.Context, today time.Time) (int64, error) {
	n, err := s.users.ResetStaleStreaks(ctx, domain.Day(today))
	if err != nil {
		return 0, fmt.Errorf("reset stale streaks: %w", err)
	}
	if n > 0 {
		s.log.Info().Int64("users", n).Msg("stale streaks reset")
	}
	return n, nil
}
