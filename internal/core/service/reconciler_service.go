package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

// DedupChecker abstracts the webhook idempotency store (Redis).
type DedupChecker interface {
	IsDuplicate(ctx context.Context, provider, eventID string) (bool, error)
	Mark(ctx context.Context, provider, eventID string) error
}

type reconcilerService struct {
	schools ports.SchoolRepository
	events  ports.BillingEventRepository
	dedup   DedupChecker
	log     zerolog.Logger
}

// NewReconcilerService returns a ReconcilerService implementation.
func NewReconcilerService(
	schools ports.SchoolRepository,
	events ports.BillingEventRepository,
	dedup DedupChecker,
	log zerolog.Logger,
) ports.ReconcilerService {
	return &reconcilerService{
		schools: schools,
		events:  events,
		dedup:   dedup,
		log:     log,
	}
}

// Reconcile deduplicates, applies and audits a single billing delivery.
func (s *reconcilerService) Reconcile(ctx context.Context, d ports.BillingDelivery) (ports.ReconcileResult, error) {
	if d.Event == nil {
		return ports.ReconcileResult{}, fmt.Errorf("reconcile: %w", domain.Validationf("missing event"))
	}
	kind := d.Event.Kind()
	target := d.Event.Target()

	log := s.log.With().
		Str("provider", d.Provider).
		Str("event_id", d.EventID).
		Str("event_type", kind).
		Logger()

	// 1. Idempotency check: redeliveries are acknowledged without side effects.
	if d.EventID != "" {
		isDup, err := s.dedup.IsDuplicate(ctx, d.Provider, d.EventID)
		if err != nil {
			log.Warn().Err(err).Msg("dedup check failed, processing anyway")
		} else if isDup {
			log.Debug().Msg("duplicate billing event skipped")
			return ports.ReconcileResult{Outcome: domain.OutcomeDuplicate}, nil
		}
	}

	record := &domain.BillingEventRecord{
		Provider:   d.Provider,
		EventID:    d.EventID,
		EventType:  kind,
		SchoolID:   target.ID,
		CustomerID: target.CustomerID,
		ReceivedAt: d.ReceivedAt,
	}
	if record.ReceivedAt.IsZero() {
		record.ReceivedAt = time.Now().UTC()
	}

	// 2. Plan the transition from the event alone.
	tr, err := domain.PlanTransition(d.Event)
	if err != nil {
		return s.missingTarget(ctx, log, record, err)
	}
	if tr.Skip {
		s.finish(ctx, log, record, domain.OutcomeIgnored)
		log.Debug().Msg("billing event ignored")
		return ports.ReconcileResult{Outcome: domain.OutcomeIgnored}, nil
	}

	// 3. Resolve and mutate the school in one transaction.
	school, err := s.schools.Apply(ctx, target, tr.Update)
	if errors.Is(err, domain.ErrSchoolNotFound) {
		return s.missingTarget(ctx, log, record, domain.ErrMissingTarget)
	}
	if errors.Is(err, domain.ErrCustomerConflict) {
		record.Error = err.Error()
		s.finish(ctx, log, record, domain.OutcomeConflict)
		log.Warn().
			Str("school_id", record.SchoolID).
			Str("customer_id", record.CustomerID).
			Msg("billing customer linked to another school")
		return ports.ReconcileResult{Outcome: domain.OutcomeConflict}, fmt.Errorf("reconcile %s: %w", kind, err)
	}
	if err != nil {
		record.Outcome = domain.OutcomeFailed
		record.Error = err.Error()
		s.audit(ctx, log, record)
		return ports.ReconcileResult{Outcome: domain.OutcomeFailed}, fmt.Errorf("reconcile %s: %w", kind, err)
	}

	outcome := domain.OutcomeApplied
	if tr.Update.IsEmpty() {
		outcome = domain.OutcomeUnchanged
	}
	record.SchoolID = school.ID
	s.finish(ctx, log, record, outcome)

	log.Info().
		Str("school_id", school.ID).
		Str("tier", string(school.SubscriptionTier)).
		Int("max_users", school.MaxUsers).
		Str("outcome", string(outcome)).
		Msg("billing event reconciled")

	return ports.ReconcileResult{Outcome: outcome, School: school}, nil
}

// missingTarget records an unresolvable delivery for manual reconciliation.
func (s *reconcilerService) missingTarget(ctx context.Context, log zerolog.Logger, record *domain.BillingEventRecord, cause error) (ports.ReconcileResult, error) {
	record.Error = cause.Error()
	s.finish(ctx, log, record, domain.OutcomeMissingTarget)

	log.Warn().
		Str("school_id", record.SchoolID).
		Str("customer_id", record.CustomerID).
		Msg("billing event target not resolved")

	return ports.ReconcileResult{Outcome: domain.OutcomeMissingTarget}, fmt.Errorf("reconcile %s: %w", record.EventType, domain.ErrMissingTarget)
}

// finish marks the delivery as handled and writes the audit row.
func (s *reconcilerService) finish(ctx context.Context, log zerolog.Logger, record *domain.BillingEventRecord, outcome domain.BillingOutcome) {
	record.Outcome = outcome
	if record.EventID != "" {
		if err := s.dedup.Mark(ctx, record.Provider, record.EventID); err != nil {
			log.Warn().Err(err).Msg("failed to set dedup key")
		}
	}
	s.audit(ctx, log, record)
}

// audit failures never fail the delivery.
func (s *reconcilerService) audit(ctx context.Context, log zerolog.Logger, record *domain.BillingEventRecord) {
	if err := s.events.Insert(ctx, record); err != nil {
		log.Warn().Err(err).Msg("failed to insert billing audit record")
	}
}
