package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

const minPasswordLength = 8

// AuthService implements login and role-scoped user administration.
type AuthService struct {
	users     ports.UserRepository
	schools   ports.SchoolRepository
	jwtSecret string
	tokenTTL  time.Duration
	log       zerolog.Logger
}

func NewAuthService(users ports.UserRepository, schools ports.SchoolRepository, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		users:     users,
		schools:   schools,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		log:       log,
	}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}

// CreateUser creates a user the actor is allowed to manage, within the
// target school's seat cap.
func (s *AuthService) CreateUser(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.Email == "" {
		return nil, domain.Validationf("name and email are required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, domain.Validationf("password must be at least %d characters", minPasswordLength)
	}
	if !domain.IsValidRole(in.Role) {
		return nil, domain.Validationf("unknown role %q", in.Role)
	}
	if !domain.CanManageRole(actor.Role, in.Role) {
		return nil, fmt.Errorf("create user: %s cannot create %s: %w", actor.Role, in.Role, domain.ErrForbidden)
	}

	if in.SchoolID == "" {
		in.SchoolID = actor.SchoolID
	}
	if in.SchoolID == "" {
		return nil, domain.Validationf("school_id is required")
	}
	if !actor.CanAccessSchool(in.SchoolID) {
		return nil, fmt.Errorf("create user: %w", domain.ErrForbidden)
	}

	school, err := s.schools.FindByID(ctx, in.SchoolID)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	count, err := s.users.CountBySchool(ctx, school.ID)
	if err != nil {
		return nil, fmt.Errorf("create user: count members: %w", err)
	}
	if !school.HasSeatFor(count) {
		return nil, fmt.Errorf("create user: %d/%d seats used: %w", count, school.MaxUsers, domain.ErrSeatLimitReached)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		SchoolID:     school.ID,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		XP:           0,
		Level:        domain.CalculateLevel(0),
		Streak:       0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", created.ID).
		Str("school_id", created.SchoolID).
		Str("role", created.Role).
		Str("created_by", actor.UserID).
		Msg("user created")

	return created, nil
}

// BootstrapOwner creates the platform owner account if no user with email
// exists yet. It is idempotent for an existing owner.
func (s *AuthService) BootstrapOwner(ctx context.Context, name, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || len(password) < minPasswordLength {
		return nil, domain.Validationf("owner email and a password of at least %d characters are required", minPasswordLength)
	}

	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.Role == domain.RoleOwner:
		return existing, nil
	case err == nil:
		return nil, fmt.Errorf("bootstrap owner: %w", domain.ErrUserExists)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("bootstrap owner: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created, err := s.users.Create(ctx, &domain.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleOwner,
		Level:        domain.CalculateLevel(0),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap owner: %w", err)
	}

	s.log.Info().Str("user_id", created.ID).Str("email", email).Msg("platform owner created")
	return created, nil
}

// DeleteUser removes a user the actor is allowed to manage.
func (s *AuthService) DeleteUser(ctx context.Context, actor domain.Actor, userID string) error {
	target, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !domain.CanManageRole(actor.Role, target.Role) || !actor.CanAccessSchool(target.SchoolID) {
		return fmt.Errorf("delete user: %w", domain.ErrForbidden)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("deleted_by", actor.UserID).
		Msg("user deleted")
	return nil
}

func (s *AuthService) generateToken(user *domain.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":   user.ID,
		"role":      user.Role,
		"school_id": user.SchoolID,
		"exp":       time.Now().Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
