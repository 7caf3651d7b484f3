package postgres

import (
	"time"

	"github.com/wolfwhale/lms-core/internal/core/domain"
)

type userModel struct {
	ID           string     `gorm:"type:varchar(36);primaryKey"`
	SchoolID     *string    `gorm:"type:varchar(36);index"`
	Name         string     `gorm:"type:varchar(191);not null"`
	Email        string     `gorm:"type:varchar(191);not null;uniqueIndex"`
	PasswordHash string     `gorm:"type:varchar(255);not null"`
	Role         string     `gorm:"type:varchar(16);not null;index"`
	XP           int64      `gorm:"not null;default:0"`
	Level        int        `gorm:"not null;default:1"`
	Streak       int        `gorm:"not null;default:0"`
	LastActiveOn *time.Time `gorm:"type:date;default:null;index"`
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
}

func (userModel) TableName() string { return "users" }

type schoolModel struct {
	ID                   string    `gorm:"type:varchar(36);primaryKey"`
	Name                 string    `gorm:"type:varchar(191);not null"`
	SubscriptionTier     string    `gorm:"type:varchar(16);not null;default:'FREE';index"`
	MaxUsers             int       `gorm:"not null;default:0"`
	MaxCourses           int       `gorm:"not null;default:0"`
	StripeCustomerID     *string   `gorm:"type:varchar(191);uniqueIndex"`
	StripeSubscriptionID *string   `gorm:"type:varchar(191)"`
	CreatedAt            time.Time `gorm:"autoCreateTime"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime"`
}

func (schoolModel) TableName() string { return "schools" }

type billingEventModel struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	Provider   string    `gorm:"type:varchar(20);not null;index:idx_billing_events_provider_event,priority:1"`
	EventID    string    `gorm:"type:varchar(191);not null;index:idx_billing_events_provider_event,priority:2"`
	EventType  string    `gorm:"type:varchar(100);not null"`
	SchoolID   *string   `gorm:"type:varchar(36);index"`
	CustomerID *string   `gorm:"type:varchar(191)"`
	Outcome    string    `gorm:"type:varchar(32);not null;index"`
	Error      string    `gorm:"type:text"`
	ReceivedAt time.Time `gorm:"not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (billingEventModel) TableName() string { return "billing_events" }

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toUserModel(u *domain.User) userModel {
	return userModel{
		ID:           u.ID,
		SchoolID:     nullable(u.SchoolID),
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		XP:           u.XP,
		Level:        u.Level,
		Streak:       u.Streak,
		LastActiveOn: u.LastActiveOn,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (m *userModel) toDomain() *domain.User {
	u := &domain.User{
		ID:           m.ID,
		SchoolID:     deref(m.SchoolID),
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         m.Role,
		XP:           m.XP,
		Level:        m.Level,
		Streak:       m.Streak,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
	if m.LastActiveOn != nil {
		d := domain.Day(*m.LastActiveOn)
		u.LastActiveOn = &d
	}
	return u
}

func toSchoolModel(s *domain.School) schoolModel {
	return schoolModel{
		ID:                   s.ID,
		Name:                 s.Name,
		SubscriptionTier:     string(s.SubscriptionTier),
		MaxUsers:             s.MaxUsers,
		MaxCourses:           s.MaxCourses,
		StripeCustomerID:     s.StripeCustomerID,
		StripeSubscriptionID: s.StripeSubscriptionID,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

func (m *schoolModel) toDomain() *domain.School {
	return &domain.School{
		ID:                   m.ID,
		Name:                 m.Name,
		SubscriptionTier:     domain.SubscriptionTier(m.SubscriptionTier),
		MaxUsers:             m.MaxUsers,
		MaxCourses:           m.MaxCourses,
		StripeCustomerID:     m.StripeCustomerID,
		StripeSubscriptionID: m.StripeSubscriptionID,
		CreatedAt:            m.CreatedAt.UTC(),
		UpdatedAt:            m.UpdatedAt.UTC(),
	}
}

func toBillingEventModel(r *domain.BillingEventRecord) billingEventModel {
	return billingEventModel{
		ID:         r.ID,
		Provider:   r.Provider,
		EventID:    r.EventID,
		EventType:  r.EventType,
		SchoolID:   nullable(r.SchoolID),
		CustomerID: nullable(r.CustomerID),
		Outcome:    string(r.Outcome),
		Error:      r.Error,
		ReceivedAt: r.ReceivedAt.UTC(),
	}
}
