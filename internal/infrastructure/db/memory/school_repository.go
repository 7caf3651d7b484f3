package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

// SchoolRepository implements ports.SchoolRepository in memory. A single
// lock serialises Apply so resolve and update happen together.
type SchoolRepository struct {
	mu      sync.Mutex
	schools map[string]*domain.School
}

func NewSchoolRepository() *SchoolRepository {
	return &SchoolRepository{schools: make(map[string]*domain.School)}
}

var _ ports.SchoolRepository = (*SchoolRepository)(nil)

func cloneSchool(s *domain.School) *domain.School {
	clone := *s
	if s.StripeCustomerID != nil {
		v := *s.StripeCustomerID
		clone.StripeCustomerID = &v
	}
	if s.StripeSubscriptionID != nil {
		v := *s.StripeSubscriptionID
		clone.StripeSubscriptionID = &v
	}
	return &clone
}

func (r *SchoolRepository) Create(_ context.Context, school *domain.School) (*domain.School, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := cloneSchool(school)
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	r.schools[s.ID] = s
	return cloneSchool(s), nil
}

func (r *SchoolRepository) FindByID(_ context.Context, id string) (*domain.School, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schools[id]
	if !ok {
		return nil, domain.ErrSchoolNotFound
	}
	return cloneSchool(s), nil
}

func (r *SchoolRepository) FindByCustomerID(_ context.Context, customerID string) (*domain.School, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.byCustomer(customerID)
	if s == nil {
		return nil, domain.ErrSchoolNotFound
	}
	return cloneSchool(s), nil
}

func (r *SchoolRepository) byCustomer(customerID string) *domain.School {
	if customerID == "" {
		return nil
	}
	for _, s := range r.schools {
		if s.StripeCustomerID != nil && *s.StripeCustomerID == customerID {
			return s
		}
	}
	return nil
}

func (r *SchoolRepository) Apply(_ context.Context, target domain.SchoolTarget, update domain.SchoolUpdate) (*domain.School, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s *domain.School
	if target.ID != "" {
		s = r.schools[target.ID]
	} else {
		s = r.byCustomer(target.CustomerID)
	}
	if s == nil {
		return nil, domain.ErrSchoolNotFound
	}
	if update.StripeCustomerID != nil {
		if owner := r.byCustomer(*update.StripeCustomerID); owner != nil && owner.ID != s.ID {
			return nil, domain.ErrCustomerConflict
		}
	}

	if !update.IsEmpty() {
		update.ApplyTo(s)
		s.UpdatedAt = time.Now().UTC()
	}
	return cloneSchool(s), nil
}
