package ports

import (
	"context"

	"github.com/wolfwhale/lms-core/internal/core/domain"
)

// SchoolRepository defines persistence operations for schools.
type SchoolRepository interface {
	Create(ctx context.Context, school *domain.School) (*domain.School, error)
	FindByID(ctx context.Context, id string) (*domain.School, error)
	FindByCustomerID(ctx context.Context, customerID string) (*domain.School, error)

	// Apply resolves target (ID first, then CustomerID) and applies update to
	// the resolved school inside one transaction. An empty update only
	// resolves. Returns domain.ErrSchoolNotFound when nothing matches.
	Apply(ctx context.Context, target domain.SchoolTarget, update domain.SchoolUpdate) (*domain.School, error)
}

// BillingEventRepository persists the webhook audit trail.
type BillingEventRepository interface {
	Insert(ctx context.Context, record *domain.BillingEventRecord) error
}
