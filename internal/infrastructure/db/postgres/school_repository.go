package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

// SchoolRepository implements ports.SchoolRepository on Postgres.
type SchoolRepository struct {
	db *gorm.DB
}

func NewSchoolRepository(db *gorm.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

var _ ports.SchoolRepository = (*SchoolRepository)(nil)

func (r *SchoolRepository) Create(ctx context.Context, school *domain.School) (*domain.School, error) {
	m := toSchoolModel(school)
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, fmt.Errorf("insert school: %w", err)
	}
	return m.toDomain(), nil
}

func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*domain.School, error) {
	var m schoolModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, schoolError("find school", err)
	}
	return m.toDomain(), nil
}

func (r *SchoolRepository) FindByCustomerID(ctx context.Context, customerID string) (*domain.School, error) {
	var m schoolModel
	if err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&m).Error; err != nil {
		return nil, schoolError("find school", err)
	}
	return m.toDomain(), nil
}

// Apply locks the resolved school row with SELECT ... FOR UPDATE and writes
// the update in the same transaction.
func (r *SchoolRepository) Apply(ctx context.Context, target domain.SchoolTarget, update domain.SchoolUpdate) (*domain.School, error) {
	if target.IsZero() {
		return nil, domain.ErrSchoolNotFound
	}

	var out *domain.School
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Clauses(clause.Locking{Strength: "UPDATE"})
		if target.ID != "" {
			q = q.Where("id = ?", target.ID)
		} else {
			q = q.Where("stripe_customer_id = ?", target.CustomerID)
		}

		var m schoolModel
		if err := q.First(&m).Error; err != nil {
			return schoolError("apply school update", err)
		}

		s := m.toDomain()
		if !update.IsEmpty() {
			update.ApplyTo(s)
			next := toSchoolModel(s)
			if err := tx.Save(&next).Error; err != nil {
				return applyError(err)
			}
			s = next.toDomain()
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// applyError maps the stripe_customer_id unique violation to
// domain.ErrCustomerConflict. It relies on gorm's TranslateError.
func applyError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("apply school update: %w", domain.ErrCustomerConflict)
	}
	return fmt.Errorf("apply school update: %w", err)
}

func schoolError(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrSchoolNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// BillingEventRepository writes the webhook audit trail to Postgres.
type BillingEventRepository struct {
	db *gorm.DB
}

func NewBillingEventRepository(db *gorm.DB) *BillingEventRepository {
	return &BillingEventRepository{db: db}
}

func (r *BillingEventRepository) Insert(ctx context.Context, record *domain.BillingEventRecord) error {
	m := toBillingEventModel(record)
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("insert billing event: %w", err)
	}
	record.ID = m.ID
	return nil
}
