package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

// UserRepository implements ports.UserRepository on Postgres.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ ports.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, userError("find user", err)
	}
	return m.toDomain(), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&m).Error; err != nil {
		return nil, userError("find user", err)
	}
	return m.toDomain(), nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	m := toUserModel(user)
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Level < 1 {
		m.Level = domain.CalculateLevel(m.XP)
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return m.toDomain(), nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&userModel{})
	if res.Error != nil {
		return fmt.Errorf("delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) CountBySchool(ctx context.Context, schoolID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&userModel{}).Where("school_id = ?", schoolID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// IncrementXP issues a single UPDATE ... RETURNING so the increment and the
// level recomputation are one atomic statement.
func (r *UserRepository) IncrementXP(ctx context.Context, userID string, amount int64) (ports.XPChange, error) {
	var m userModel
	res := r.db.WithContext(ctx).
		Model(&m).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "xp"}, {Name: "level"}}}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"xp":         gorm.Expr("xp + ?", amount),
			"level":      gorm.Expr("(xp + ?) / ? + 1", amount, domain.XPPerLevel),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return ports.XPChange{}, fmt.Errorf("increment xp: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ports.XPChange{}, domain.ErrUserNotFound
	}

	oldXP := m.XP - amount
	return ports.XPChange{
		OldXP:    oldXP,
		OldLevel: domain.CalculateLevel(oldXP),
		NewXP:    m.XP,
		NewLevel: m.Level,
	}, nil
}

// RecordActivity locks the user row for the read-modify-write of the streak.
func (r *UserRepository) RecordActivity(ctx context.Context, userID string, day time.Time) (*domain.User, error) {
	day = domain.Day(day)
	var out *domain.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m userModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", userID).First(&m).Error; err != nil {
			return userError("record activity", err)
		}

		u := m.toDomain()
		u.Streak = domain.AdvanceStreak(u.Streak, u.LastActiveOn, day)
		if u.LastActiveOn == nil || day.After(*u.LastActiveOn) {
			u.LastActiveOn = &day
		}

		if err := tx.Model(&userModel{}).Where("id = ?", userID).Updates(map[string]any{
			"streak":         u.Streak,
			"last_active_on": u.LastActiveOn,
			"updated_at":     time.Now().UTC(),
		}).Error; err != nil {
			return fmt.Errorf("record activity: %w", err)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *UserRepository) ResetStaleStreaks(ctx context.Context, today time.Time) (int64, error) {
	yesterday := domain.Day(today).AddDate(0, 0, -1)
	res := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("streak > 0 AND (last_active_on IS NULL OR last_active_on < ?)", yesterday).
		Updates(map[string]any{"streak": 0, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return 0, fmt.Errorf("reset streaks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func userError(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrUserNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
