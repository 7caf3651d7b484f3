package domain

import (
	"errors"
	"testing"
)

func TestPlanTransition_CheckoutNewSignupSkipped(t *testing.T) {
	tr, err := PlanTransition(CheckoutCompleted{IsNewSignup: true, Quantity: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tr.Skip {
		t.Fatalf("expected skip for sign-up checkout")
	}
}

func TestPlanTransition_CheckoutWithoutSchool(t *testing.T) {
	_, err := PlanTransition(CheckoutCompleted{CustomerID: "cus_1"})
	if !errors.Is(err, ErrMissingTarget) {
		t.Fatalf("expected ErrMissingTarget, got: %v", err)
	}
}

func TestPlanTransition_CheckoutUpgrade(t *testing.T) {
	tr, err := PlanTransition(CheckoutCompleted{
		SchoolID: "s1", Quantity: 25, CustomerID: "cus_1", SubscriptionID: "sub_1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := School{SubscriptionTier: TierFree, MaxUsers: 50, MaxCourses: 5}
	tr.Update.ApplyTo(&s)

	if s.SubscriptionTier != TierPaid || s.MaxUsers != 25 || s.MaxCourses != UnlimitedCourses {
		t.Fatalf("unexpected school: %+v", s)
	}
	if s.StripeCustomerID == nil || *s.StripeCustomerID != "cus_1" {
		t.Fatalf("customer id not stored")
	}
	if s.StripeSubscriptionID == nil || *s.StripeSubscriptionID != "sub_1" {
		t.Fatalf("subscription id not stored")
	}
}

func TestPlanTransition_CheckoutSeatsFollowQuantity(t *testing.T) {
	for _, q := range []int{1, 3, 500} {
		tr, err := PlanTransition(CheckoutCompleted{SchoolID: "s1", Quantity: q})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tr.Update.MaxUsers == nil || *tr.Update.MaxUsers != q {
			t.Fatalf("quantity %d: expected max users %d, got %v", q, q, tr.Update.MaxUsers)
		}
	}
}

func TestPlanTransition_SubscriptionUpdated(t *testing.T) {
	cases := []struct {
		name     string
		ev       SubscriptionUpdated
		wantTier SubscriptionTier
		wantMax  int
		courses  int
	}{
		{"active", SubscriptionUpdated{SchoolID: "s1", Status: SubscriptionActive, Quantity: 30}, TierPaid, 30, 5},
		{"trialing default quantity", SubscriptionUpdated{CustomerID: "cus_1", Status: SubscriptionTrialing}, TierPaid, 1, 5},
		{"canceled keeps courses", SubscriptionUpdated{SchoolID: "s1", Status: SubscriptionCanceled, Quantity: 30}, TierCanceled, 0, 5},
		{"past_due observed", SubscriptionUpdated{SchoolID: "s1", Status: SubscriptionPastDue}, TierFree, 50, 5},
		{"unpaid observed", SubscriptionUpdated{SchoolID: "s1", Status: SubscriptionUnpaid}, TierFree, 50, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr, err := PlanTransition(tc.ev)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			s := School{SubscriptionTier: TierFree, MaxUsers: 50, MaxCourses: 5}
			tr.Update.ApplyTo(&s)
			if s.SubscriptionTier != tc.wantTier || s.MaxUsers != tc.wantMax || s.MaxCourses != tc.courses {
				t.Fatalf("unexpected school: %+v", s)
			}
		})
	}
}

func TestPlanTransition_ObservedStatusStillNeedsTarget(t *testing.T) {
	_, err := PlanTransition(SubscriptionUpdated{Status: SubscriptionPastDue})
	if !errors.Is(err, ErrMissingTarget) {
		t.Fatalf("expected ErrMissingTarget, got: %v", err)
	}
}

func TestPlanTransition_SubscriptionDeletedIdempotent(t *testing.T) {
	sub := "sub_1"
	s := School{SubscriptionTier: TierPaid, MaxUsers: 25, MaxCourses: UnlimitedCourses, StripeSubscriptionID: &sub}

	for i := 0; i < 2; i++ {
		tr, err := PlanTransition(SubscriptionDeleted{SchoolID: "s1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tr.Update.ApplyTo(&s)
		if s.SubscriptionTier != TierCanceled || s.MaxUsers != 0 || s.MaxCourses != 0 || s.StripeSubscriptionID != nil {
			t.Fatalf("application %d: unexpected school: %+v", i+1, s)
		}
	}
}

func TestPlanTransition_IgnoredEvent(t *testing.T) {
	tr, err := PlanTransition(IgnoredEvent{Type: "invoice.paid"})
	if err != nil || !tr.Skip {
		t.Fatalf("expected skip without error, got %+v, %v", tr, err)
	}
}
