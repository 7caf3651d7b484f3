// Package memory holds process-local implementations of the persistence
// ports, used by the memory store driver and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

// userRecord guards one user. Mutations of different users never contend.
type userRecord struct {
	mu   sync.Mutex
	user domain.User
}

// UserRepository implements ports.UserRepository in memory.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*userRecord
	byEmail map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]*userRecord),
		byEmail: make(map[string]string),
	}
}

var _ ports.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) record(id string) (*userRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return rec, nil
}

func (rec *userRecord) snapshot() *domain.User {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return cloneUser(&rec.user)
}

func cloneUser(u *domain.User) *domain.User {
	clone := *u
	if u.LastActiveOn != nil {
		d := *u.LastActiveOn
		clone.LastActiveOn = &d
	}
	return &clone
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	rec, err := r.record(id)
	if err != nil {
		return nil, err
	}
	return rec.snapshot(), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[email]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[user.Email]; exists {
		return nil, domain.ErrUserExists
	}

	u := cloneUser(user)
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Level < 1 {
		u.Level = domain.CalculateLevel(u.XP)
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	r.byID[u.ID] = &userRecord{user: *u}
	r.byEmail[u.Email] = u.ID
	return cloneUser(u), nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	delete(r.byEmail, rec.user.Email)
	delete(r.byID, id)
	return nil
}

func (r *UserRepository) CountBySchool(_ context.Context, schoolID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, rec := range r.byID {
		// SchoolID is immutable after Create.
		if rec.user.SchoolID == schoolID {
			n++
		}
	}
	return n, nil
}

func (r *UserRepository) IncrementXP(_ context.Context, userID string, amount int64) (ports.XPChange, error) {
	rec, err := r.record(userID)
	if err != nil {
		return ports.XPChange{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	change := ports.XPChange{OldXP: rec.user.XP, OldLevel: rec.user.Level}
	rec.user.XP += amount
	rec.user.Level = domain.CalculateLevel(rec.user.XP)
	rec.user.UpdatedAt = time.Now().UTC()
	change.NewXP, change.NewLevel = rec.user.XP, rec.user.Level
	return change, nil
}

func (r *UserRepository) RecordActivity(_ context.Context, userID string, day time.Time) (*domain.User, error) {
	rec, err := r.record(userID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	day = domain.Day(day)
	rec.user.Streak = domain.AdvanceStreak(rec.user.Streak, rec.user.LastActiveOn, day)
	if rec.user.LastActiveOn == nil || day.After(*rec.user.LastActiveOn) {
		rec.user.LastActiveOn = &day
	}
	rec.user.UpdatedAt = time.Now().UTC()
	return cloneUser(&rec.user), nil
}

func (r *UserRepository) ResetStaleStreaks(_ context.Context, today time.Time) (int64, error) {
	r.mu.RLock()
	recs := make([]*userRecord, 0, len(r.byID))
	for _, rec := range r.byID {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	var n int64
	for _, rec := range recs {
		rec.mu.Lock()
		if rec.user.Streak > 0 && domain.StreakIsStale(rec.user.LastActiveOn, today) {
			rec.user.Streak = 0
			rec.user.UpdatedAt = time.Now().UTC()
			n++
		}
		rec.mu.Unlock()
	}
	return n, nil
}
