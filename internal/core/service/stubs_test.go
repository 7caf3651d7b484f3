package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub repositories
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	seq      int
	countErr error
	incrErr  error
	deleted  []string
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) seed(u *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = cloneUser(u)
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.seq++
	copy := cloneUser(user)
	copy.ID = fmt.Sprintf("user_%d", r.seq)
	r.users[copy.ID] = cloneUser(copy)
	return copy, nil
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *stubUserRepo) CountBySchool(_ context.Context, schoolID string) (int64, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.SchoolID == schoolID {
			n++
		}
	}
	return n, nil
}

func (r *stubUserRepo) IncrementXP(_ context.Context, userID string, amount int64) (ports.XPChange, error) {
	if r.incrErr != nil {
		return ports.XPChange{}, r.incrErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return ports.XPChange{}, domain.ErrUserNotFound
	}
	change := ports.XPChange{OldXP: u.XP, OldLevel: u.Level}
	u.XP += amount
	u.Level = domain.CalculateLevel(u.XP)
	change.NewXP, change.NewLevel = u.XP, u.Level
	return change, nil
}

func (r *stubUserRepo) RecordActivity(_ context.Context, userID string, day time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Streak = domain.AdvanceStreak(u.Streak, u.LastActiveOn, day)
	if u.LastActiveOn == nil || day.After(*u.LastActiveOn) {
		d := day
		u.LastActiveOn = &d
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) ResetStaleStreaks(_ context.Context, today time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.Streak > 0 && domain.StreakIsStale(u.LastActiveOn, today) {
			u.Streak = 0
			n++
		}
	}
	return n, nil
}

type stubSchoolRepo struct {
	schools  map[string]*domain.School
	applyErr error
	applied  []domain.SchoolUpdate
}

func newStubSchoolRepo(schools ...*domain.School) *stubSchoolRepo {
	r := &stubSchoolRepo{schools: make(map[string]*domain.School)}
	for _, s := range schools {
		clone := *s
		r.schools[s.ID] = &clone
	}
	return r
}

func (r *stubSchoolRepo) Create(_ context.Context, s *domain.School) (*domain.School, error) {
	clone := *s
	clone.ID = fmt.Sprintf("school_%d", len(r.schools)+1)
	r.schools[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *stubSchoolRepo) FindByID(_ context.Context, id string) (*domain.School, error) {
	s, ok := r.schools[id]
	if !ok {
		return nil, domain.ErrSchoolNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *stubSchoolRepo) FindByCustomerID(_ context.Context, customerID string) (*domain.School, error) {
	for _, s := range r.schools {
		if s.StripeCustomerID != nil && *s.StripeCustomerID == customerID {
			clone := *s
			return &clone, nil
		}
	}
	return nil, domain.ErrSchoolNotFound
}

func (r *stubSchoolRepo) Apply(ctx context.Context, target domain.SchoolTarget, update domain.SchoolUpdate) (*domain.School, error) {
	if r.applyErr != nil {
		return nil, r.applyErr
	}
	var (
		s   *domain.School
		err error
	)
	if target.ID != "" {
		s, err = r.FindByID(ctx, target.ID)
	} else {
		s, err = r.FindByCustomerID(ctx, target.CustomerID)
	}
	if err != nil {
		return nil, err
	}
	update.ApplyTo(s)
	if !update.IsEmpty() {
		r.applied = append(r.applied, update)
	}
	clone := *s
	r.schools[s.ID] = &clone
	return s, nil
}

type stubBillingEventRepo struct {
	insertErr error
	inserted  []*domain.BillingEventRecord
}

func (r *stubBillingEventRepo) Insert(_ context.Context, rec *domain.BillingEventRecord) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	clone := *rec
	r.inserted = append(r.inserted, &clone)
	return nil
}

type stubDedup struct {
	dupResult bool
	dupErr    error
	markErr   error
	marked    []string
}

func (d *stubDedup) IsDuplicate(_ context.Context, provider, eventID string) (bool, error) {
	return d.dupResult, d.dupErr
}

func (d *stubDedup) Mark(_ context.Context, provider, eventID string) error {
	if d.markErr != nil {
		return d.markErr
	}
	d.marked = append(d.marked, provider+":"+eventID)
	return nil
}

func strPtr(s string) *string { return &s }
