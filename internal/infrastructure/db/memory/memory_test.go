package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/service"
)

func TestUserRepository_IncrementXP_Concurrent(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	u, err := repo.Create(ctx, &domain.User{Email: "a@example.com", Role: domain.RoleStudent})
	require.NoError(t, err)
	require.Equal(t, 1, u.Level)

	const workers = 100
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := repo.IncrementXP(ctx, u.ID, 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.XP)
	assert.Equal(t, 2, got.Level)
}

func TestUserRepository_IncrementXP_ReportsLevelChange(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	u, err := repo.Create(ctx, &domain.User{Email: "a@example.com", XP: 990})
	require.NoError(t, err)

	change, err := repo.IncrementXP(ctx, u.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(990), change.OldXP)
	assert.Equal(t, 1, change.OldLevel)
	assert.Equal(t, int64(1010), change.NewXP)
	assert.Equal(t, 2, change.NewLevel)

	_, err = repo.IncrementXP(ctx, "missing", 5)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_CreateDeleteCount(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	a, err := repo.Create(ctx, &domain.User{Email: "a@example.com", SchoolID: "s1"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &domain.User{Email: "b@example.com", SchoolID: "s1"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &domain.User{Email: "a@example.com", SchoolID: "s2"})
	assert.ErrorIs(t, err, domain.ErrUserExists)

	n, err := repo.CountBySchool(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, repo.Delete(ctx, a.ID))
	_, err = repo.FindByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, a.ID), domain.ErrUserNotFound)
}

func TestUserRepository_Streaks(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	u, err := repo.Create(ctx, &domain.User{Email: "a@example.com"})
	require.NoError(t, err)

	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	got, err := repo.RecordActivity(ctx, u.ID, day)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Streak)

	got, err = repo.RecordActivity(ctx, u.ID, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Streak)

	n, err := repo.ResetStaleStreaks(ctx, day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Zero(t, n, "activity yesterday keeps the streak")

	n, err = repo.ResetStaleStreaks(ctx, day.AddDate(0, 0, 4))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err = repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Streak)
}

func TestSchoolRepository_ApplyResolution(t *testing.T) {
	repo := NewSchoolRepository()
	ctx := context.Background()
	cus := "cus_1"
	a, err := repo.Create(ctx, &domain.School{Name: "A", SubscriptionTier: domain.TierFree, MaxUsers: 50, StripeCustomerID: &cus})
	require.NoError(t, err)
	b, err := repo.Create(ctx, &domain.School{Name: "B", SubscriptionTier: domain.TierFree, MaxUsers: 50})
	require.NoError(t, err)

	seats := 9
	got, err := repo.Apply(ctx, domain.SchoolTarget{CustomerID: "cus_1"}, domain.SchoolUpdate{MaxUsers: &seats})
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, 9, got.MaxUsers)

	got, err = repo.Apply(ctx, domain.SchoolTarget{ID: b.ID, CustomerID: "cus_1"}, domain.SchoolUpdate{MaxUsers: &seats})
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID, "explicit id wins over customer id")

	_, err = repo.Apply(ctx, domain.SchoolTarget{CustomerID: "cus_nope"}, domain.SchoolUpdate{MaxUsers: &seats})
	assert.ErrorIs(t, err, domain.ErrSchoolNotFound)

	_, err = repo.Apply(ctx, domain.SchoolTarget{}, domain.SchoolUpdate{})
	assert.ErrorIs(t, err, domain.ErrSchoolNotFound)
}

func TestSchoolRepository_ApplyCustomerConflict(t *testing.T) {
	repo := NewSchoolRepository()
	ctx := context.Background()
	cus := "cus_1"
	a, err := repo.Create(ctx, &domain.School{Name: "A", SubscriptionTier: domain.TierPaid, MaxUsers: 10, StripeCustomerID: &cus})
	require.NoError(t, err)
	b, err := repo.Create(ctx, &domain.School{Name: "B", SubscriptionTier: domain.TierFree, MaxUsers: 50})
	require.NoError(t, err)

	seats := 20
	_, err = repo.Apply(ctx, domain.SchoolTarget{ID: b.ID}, domain.SchoolUpdate{MaxUsers: &seats, StripeCustomerID: &cus})
	assert.ErrorIs(t, err, domain.ErrCustomerConflict)

	untouched, err := repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, untouched.MaxUsers)
	assert.Nil(t, untouched.StripeCustomerID)

	_, err = repo.Apply(ctx, domain.SchoolTarget{ID: a.ID}, domain.SchoolUpdate{MaxUsers: &seats, StripeCustomerID: &cus})
	assert.NoError(t, err, "re-linking the same school is not a conflict")
}

func TestDedupChecker_Expiry(t *testing.T) {
	d := NewDedupChecker(time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	dup, _ := d.IsDuplicate(ctx, "stripe", "evt_1")
	assert.False(t, dup)
	require.NoError(t, d.Mark(ctx, "stripe", "evt_1"))
	dup, _ = d.IsDuplicate(ctx, "stripe", "evt_1")
	assert.True(t, dup)

	now = now.Add(2 * time.Hour)
	dup, _ = d.IsDuplicate(ctx, "stripe", "evt_1")
	assert.False(t, dup)
}

// The reconciler against the memory store covers the full billing lifecycle
// of one school.
func TestReconcilerLifecycle(t *testing.T) {
	schools := NewSchoolRepository()
	events := NewBillingEventRepository()
	svc := service.NewReconcilerService(schools, events, NewDedupChecker(time.Hour), testLogger())
	ctx := context.Background()

	s, err := schools.Create(ctx, &domain.School{Name: "Springfield", SubscriptionTier: domain.TierFree, MaxUsers: 50, MaxCourses: 5})
	require.NoError(t, err)

	steps := []struct {
		id       string
		ev       domain.BillingEvent
		tier     domain.SubscriptionTier
		maxUsers int
		courses  int
	}{
		{"evt_1", domain.CheckoutCompleted{SchoolID: s.ID, Quantity: 25, CustomerID: "cus_1", SubscriptionID: "sub_1"}, domain.TierPaid, 25, domain.UnlimitedCourses},
		{"evt_2", domain.SubscriptionUpdated{CustomerID: "cus_1", Status: domain.SubscriptionActive, Quantity: 30}, domain.TierPaid, 30, domain.UnlimitedCourses},
		{"evt_3", domain.SubscriptionUpdated{CustomerID: "cus_1", Status: domain.SubscriptionPastDue, Quantity: 2}, domain.TierPaid, 30, domain.UnlimitedCourses},
		{"evt_4", domain.SubscriptionDeleted{CustomerID: "cus_1"}, domain.TierCanceled, 0, 0},
	}
	for _, step := range steps {
		_, err := svc.Reconcile(ctx, deliveryOf(step.id, step.ev))
		require.NoError(t, err, step.id)

		got, err := schools.FindByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, step.tier, got.SubscriptionTier, step.id)
		assert.Equal(t, step.maxUsers, got.MaxUsers, step.id)
		assert.Equal(t, step.courses, got.MaxCourses, step.id)
	}

	got, _ := schools.FindByID(ctx, s.ID)
	assert.Nil(t, got.StripeSubscriptionID)
	require.NotNil(t, got.StripeCustomerID)
	assert.Equal(t, "cus_1", *got.StripeCustomerID)
	assert.Len(t, events.Records(), len(steps))

	// redelivery of the upgrade must not resurrect the canceled school
	_, err = svc.Reconcile(ctx, deliveryOf("evt_1", steps[0].ev))
	require.NoError(t, err)
	got, _ = schools.FindByID(ctx, s.ID)
	assert.Equal(t, domain.TierCanceled, got.SubscriptionTier)
}
