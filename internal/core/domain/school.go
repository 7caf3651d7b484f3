package domain

import "time"

// SubscriptionTier is the commercial state of a school.
type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "FREE"
	TierStarter    SubscriptionTier = "STARTER"
	TierPro        SubscriptionTier = "PRO"
	TierEnterprise SubscriptionTier = "ENTERPRISE"
	TierPaid       SubscriptionTier = "PAID"
	TierCanceled   SubscriptionTier = "CANCELED"
)

// UnlimitedCourses is the MaxCourses sentinel for "no course cap".
const UnlimitedCourses = -1

// IsValid reports whether t is a known tier.
func (t SubscriptionTier) IsValid() bool {
	switch t {
	case TierFree, TierStarter, TierPro, TierEnterprise, TierPaid, TierCanceled:
		return true
	}
	return false
}

// Limits are the seat and course caps of a school.
type Limits struct {
	MaxUsers   int
	MaxCourses int
}

var tierDefaults = map[SubscriptionTier]Limits{
	TierFree:       {MaxUsers: 50, MaxCourses: 5},
	TierStarter:    {MaxUsers: 200, MaxCourses: 25},
	TierPro:        {MaxUsers: 1000, MaxCourses: 100},
	TierEnterprise: {MaxUsers: 10000, MaxCourses: UnlimitedCourses},
	TierCanceled:   {MaxUsers: 0, MaxCourses: 0},
}

// DefaultLimits returns the registration limits for tier. PAID has no fixed
// limits; its seats come from the billing quantity.
func DefaultLimits(tier SubscriptionTier) (Limits, bool) {
	l, ok := tierDefaults[tier]
	return l, ok
}

// School is the tenant entity carrying subscription state.
type School struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	SubscriptionTier     SubscriptionTier `json:"subscription_tier"`
	MaxUsers             int              `json:"max_users"`
	MaxCourses           int              `json:"max_courses"`
	StripeCustomerID     *string          `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string          `json:"stripe_subscription_id,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// HasSeatFor reports whether a school with currentUsers members can add one more.
func (s *School) HasSeatFor(currentUsers int64) bool {
	return currentUsers < int64(s.MaxUsers)
}

// CoursesUnlimited reports whether the school has no course cap.
func (s *School) CoursesUnlimited() bool {
	return s.MaxCourses == UnlimitedCourses
}

// SchoolTarget identifies the school a billing event applies to. ID takes
// priority over CustomerID.
type SchoolTarget struct {
	ID         string
	CustomerID string
}

// IsZero reports whether neither key is set.
func (t SchoolTarget) IsZero() bool {
	return t.ID == "" && t.CustomerID == ""
}

// SchoolUpdate is a set of absolute field assignments. Nil fields are left
// untouched. ClearSubscriptionID wins over StripeSubscriptionID.
type SchoolUpdate struct {
	Tier                 *SubscriptionTier
	MaxUsers             *int
	MaxCourses           *int
	StripeCustomerID     *string
	StripeSubscriptionID *string
	ClearSubscriptionID  bool
}

// IsEmpty reports whether applying u would change nothing.
func (u SchoolUpdate) IsEmpty() bool {
	return u.Tier == nil && u.MaxUsers == nil && u.MaxCourses == nil &&
		u.StripeCustomerID == nil && u.StripeSubscriptionID == nil && !u.ClearSubscriptionID
}

// ApplyTo mutates s in place.
func (u SchoolUpdate) ApplyTo(s *School) {
	if u.Tier != nil {
		s.SubscriptionTier = *u.Tier
	}
	if u.MaxUsers != nil {
		s.MaxUsers = *u.MaxUsers
	}
	if u.MaxCourses != nil {
		s.MaxCourses = *u.MaxCourses
	}
	if u.StripeCustomerID != nil {
		id := *u.StripeCustomerID
		s.StripeCustomerID = &id
	}
	if u.StripeSubscriptionID != nil {
		id := *u.StripeSubscriptionID
		s.StripeSubscriptionID = &id
	}
	if u.ClearSubscriptionID {
		s.StripeSubscriptionID = nil
	}
}
