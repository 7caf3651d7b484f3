// Package stripe verifies Stripe webhook deliveries and decodes them into
// domain billing events.
package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

// Provider is the audit/dedup namespace for Stripe deliveries.
const Provider = "stripe"

// Metadata keys written on checkout sessions and subscriptions.
const (
	MetaSchoolID    = "schoolId"
	MetaQuantity    = "quantity"
	MetaIsNewSignup = "isNewSignup"
)

const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Decoder verifies signatures with the endpoint secret and maps events.
type Decoder struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

func NewDecoder(secret string) *Decoder {
	return &Decoder{secret: secret, tolerance: webhook.DefaultTolerance, now: time.Now}
}

// Decode verifies payload against sigHeader and returns the delivery. With
// no endpoint secret configured every delivery is rejected.
func (d *Decoder) Decode(payload []byte, sigHeader string) (ports.BillingDelivery, error) {
	if d.secret == "" {
		return ports.BillingDelivery{}, fmt.Errorf("stripe: %w: no endpoint secret configured", domain.ErrInvalidSignature)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, d.secret, webhook.ConstructEventOptions{
		Tolerance:                d.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return ports.BillingDelivery{}, fmt.Errorf("stripe: %w: %v", domain.ErrInvalidSignature, err)
		}
		return ports.BillingDelivery{}, domain.Validationf("stripe event: %v", err)
	}

	billingEvent, err := toBillingEvent(ev)
	if err != nil {
		return ports.BillingDelivery{}, err
	}

	return ports.BillingDelivery{
		Provider:   Provider,
		EventID:    ev.ID,
		ReceivedAt: d.now().UTC(),
		Event:      billingEvent,
	}, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func toBillingEvent(ev stripe.Event) (domain.BillingEvent, error) {
	if ev.Data == nil {
		return nil, domain.Validationf("stripe event %s: missing data", ev.ID)
	}

	switch string(ev.Type) {
	case EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, domain.Validationf("checkout session: %v", err)
		}
		return checkoutCompleted(&s), nil

	case EventSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, domain.Validationf("subscription: %v", err)
		}
		return domain.SubscriptionUpdated{
			SchoolID:   sub.Metadata[MetaSchoolID],
			CustomerID: customerID(sub.Customer),
			Quantity:   firstItemQuantity(&sub),
			Status:     domain.SubscriptionStatus(sub.Status),
		}, nil

	case EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, domain.Validationf("subscription: %v", err)
		}
		return domain.SubscriptionDeleted{
			SchoolID:   sub.Metadata[MetaSchoolID],
			CustomerID: customerID(sub.Customer),
		}, nil
	}

	return domain.IgnoredEvent{Type: string(ev.Type)}, nil
}

func checkoutCompleted(s *stripe.CheckoutSession) domain.CheckoutCompleted {
	schoolID := s.Metadata[MetaSchoolID]
	if schoolID == "" {
		schoolID = s.ClientReferenceID
	}

	out := domain.CheckoutCompleted{
		SchoolID:    schoolID,
		CustomerID:  customerID(s.Customer),
		Quantity:    metadataQuantity(s.Metadata),
		IsNewSignup: strings.EqualFold(s.Metadata[MetaIsNewSignup], "true"),
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// metadataQuantity reads the seat count; absent or malformed means one seat.
func metadataQuantity(meta map[string]string) int {
	q, err := strconv.Atoi(strings.TrimSpace(meta[MetaQuantity]))
	if err != nil || q <= 0 {
		return 1
	}
	return q
}

func firstItemQuantity(sub *stripe.Subscription) int {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0] == nil || sub.Items.Data[0].Quantity <= 0 {
		return 1
	}
	return int(sub.Items.Data[0].Quantity)
}
