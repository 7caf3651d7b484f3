package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

type schoolService struct {
	schools ports.SchoolRepository
	log     zerolog.Logger
}

// NewSchoolService returns a SchoolService implementation.
func NewSchoolService(schools ports.SchoolRepository, log zerolog.Logger) ports.SchoolService {
	return &schoolService{schools: schools, log: log}
}

// Register creates a school on the FREE tier. Only platform owners may register schools.
func (s *schoolService) Register(ctx context.Context, actor domain.Actor, name string) (*domain.School, error) {
	if actor.Role != domain.RoleOwner {
		return nil, fmt.Errorf("register school: %w", domain.ErrForbidden)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Validationf("name is required")
	}

	limits, _ := domain.DefaultLimits(domain.TierFree)
	now := time.Now().UTC()
	school, err := s.schools.Create(ctx, &domain.School{
		Name:             name,
		SubscriptionTier: domain.TierFree,
		MaxUsers:         limits.MaxUsers,
		MaxCourses:       limits.MaxCourses,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("register school: %w", err)
	}

	s.log.Info().Str("school_id", school.ID).Str("name", school.Name).Msg("school registered")
	return school, nil
}

func (s *schoolService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.School, error) {
	if !actor.CanAccessSchool(id) {
		return nil, fmt.Errorf("get school: %w", domain.ErrForbidden)
	}
	school, err := s.schools.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get school: %w", err)
	}
	return school, nil
}
