package ports

import (
	"context"
	"time"

	"github.com/wolfwhale/lms-core/internal/core/domain"
)

// BillingDelivery is one decoded webhook delivery.
type BillingDelivery struct {
	Provider   string
	EventID    string
	ReceivedAt time.Time
	Event      domain.BillingEvent
}

// ReconcileResult reports what a delivery did to school state.
type ReconcileResult struct {
	Outcome domain.BillingOutcome
	School  *domain.School
}

// ReconcilerService applies billing lifecycle events to schools.
type ReconcilerService interface {
	// Reconcile returns domain.ErrMissingTarget when the event cannot be
	// resolved to a school. The delivery is audited in every case.
	Reconcile(ctx context.Context, d BillingDelivery) (ReconcileResult, error)
}

// SchoolService covers school registration and lookup.
type SchoolService interface {
	Register(ctx context.Context, actor domain.Actor, name string) (*domain.School, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.School, error)
}
