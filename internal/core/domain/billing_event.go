package domain

import "time"

// SubscriptionStatus mirrors the provider's subscription status strings.
type SubscriptionStatus string

const (
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionTrialing   SubscriptionStatus = "trialing"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionUnpaid     SubscriptionStatus = "unpaid"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
	SubscriptionPaused     SubscriptionStatus = "paused"
)

// BillingEvent is a decoded billing lifecycle event. The concrete types are
// CheckoutCompleted, SubscriptionUpdated, SubscriptionDeleted and IgnoredEvent.
type BillingEvent interface {
	// Kind is the provider event type, e.g. "customer.subscription.updated".
	Kind() string
	// Target returns the keys used to resolve the school.
	Target() SchoolTarget

	billingEvent()
}

type CheckoutCompleted struct {
	SchoolID       string
	CustomerID     string
	SubscriptionID string
	Quantity       int
	IsNewSignup    bool
}

type SubscriptionUpdated struct {
	SchoolID   string
	CustomerID string
	Quantity   int
	Status     SubscriptionStatus
}

type SubscriptionDeleted struct {
	SchoolID   string
	CustomerID string
}

// IgnoredEvent carries an event type no transition is defined for.
type IgnoredEvent struct {
	Type string
}

func (CheckoutCompleted) Kind() string   { return "checkout.session.completed" }
func (SubscriptionUpdated) Kind() string { return "customer.subscription.updated" }
func (SubscriptionDeleted) Kind() string { return "customer.subscription.deleted" }
func (e IgnoredEvent) Kind() string      { return e.Type }

// Checkout sessions resolve by explicit school id only.
func (e CheckoutCompleted) Target() SchoolTarget   { return SchoolTarget{ID: e.SchoolID} }
func (e SubscriptionUpdated) Target() SchoolTarget { return SchoolTarget{ID: e.SchoolID, CustomerID: e.CustomerID} }
func (e SubscriptionDeleted) Target() SchoolTarget { return SchoolTarget{ID: e.SchoolID, CustomerID: e.CustomerID} }
func (IgnoredEvent) Target() SchoolTarget          { return SchoolTarget{} }

func (CheckoutCompleted) billingEvent()   {}
func (SubscriptionUpdated) billingEvent() {}
func (SubscriptionDeleted) billingEvent() {}
func (IgnoredEvent) billingEvent()        {}

// Transition is the planned effect of a billing event.
type Transition struct {
	// Skip means the event is acknowledged without resolving a school.
	Skip bool
	// Update is applied to the resolved school; empty means observe only.
	Update SchoolUpdate
}

// PlanTransition maps a billing event to its effect on the target school.
// It returns ErrMissingTarget when the event carries no usable school key.
func PlanTransition(ev BillingEvent) (Transition, error) {
	switch e := ev.(type) {
	case CheckoutCompleted:
		if e.SchoolID == "" {
			if e.IsNewSignup {
				// the sign-up flow provisions the school itself
				return Transition{Skip: true}, nil
			}
			return Transition{}, ErrMissingTarget
		}
		u := SchoolUpdate{
			Tier:       tierPtr(TierPaid),
			MaxUsers:   intPtr(e.Quantity),
			MaxCourses: intPtr(UnlimitedCourses),
		}
		if e.CustomerID != "" {
			u.StripeCustomerID = strPtr(e.CustomerID)
		}
		if e.SubscriptionID != "" {
			u.StripeSubscriptionID = strPtr(e.SubscriptionID)
		}
		return Transition{Update: u}, nil

	case SubscriptionUpdated:
		if e.Target().IsZero() {
			return Transition{}, ErrMissingTarget
		}
		switch e.Status {
		case SubscriptionActive, SubscriptionTrialing:
			return Transition{Update: SchoolUpdate{
				Tier:     tierPtr(TierPaid),
				MaxUsers: intPtr(quantityOrDefault(e.Quantity)),
			}}, nil
		case SubscriptionCanceled:
			return Transition{Update: SchoolUpdate{
				Tier:     tierPtr(TierCanceled),
				MaxUsers: intPtr(0),
			}}, nil
		default:
			// unpaid, past_due and anything newer are observed only
			return Transition{}, nil
		}

	case SubscriptionDeleted:
		if e.Target().IsZero() {
			return Transition{}, ErrMissingTarget
		}
		return Transition{Update: SchoolUpdate{
			Tier:                tierPtr(TierCanceled),
			MaxUsers:            intPtr(0),
			MaxCourses:          intPtr(0),
			ClearSubscriptionID: true,
		}}, nil
	}
	return Transition{Skip: true}, nil
}

// quantityOrDefault applies the provider default of one seat.
func quantityOrDefault(q int) int {
	if q <= 0 {
		return 1
	}
	return q
}

func tierPtr(t SubscriptionTier) *SubscriptionTier { return &t }
func intPtr(i int) *int                            { return &i }
func strPtr(s string) *string                      { return &s }

// BillingOutcome classifies how a webhook delivery was handled.
type BillingOutcome string

const (
	OutcomeApplied       BillingOutcome = "applied"
	OutcomeUnchanged     BillingOutcome = "unchanged"
	OutcomeIgnored       BillingOutcome = "ignored"
	OutcomeDuplicate     BillingOutcome = "duplicate"
	OutcomeMissingTarget BillingOutcome = "missing_target"
	OutcomeConflict      BillingOutcome = "customer_conflict"
	OutcomeFailed        BillingOutcome = "failed"
)

// BillingEventRecord is the audit row written for every webhook delivery.
// Rows with OutcomeMissingTarget or OutcomeConflict are the queue for manual
// reconciliation.
type BillingEventRecord struct {
	ID         string         `json:"id"`
	Provider   string         `json:"provider"`
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	SchoolID   string         `json:"school_id,omitempty"`
	CustomerID string         `json:"customer_id,omitempty"`
	Outcome    BillingOutcome `json:"outcome"`
	Error      string         `json:"error,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
}
