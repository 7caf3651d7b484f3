package ports

import (
	"context"

	"github.com/wolfwhale/lms-core/internal/core/domain"
)

// CreateUserInput carries the fields of a user created by an administrator.
type CreateUserInput struct {
	SchoolID string
	Name     string
	Email    string
	Password string
	Role     string
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	CreateUser(ctx context.Context, actor domain.Actor, in CreateUserInput) (*domain.User, error)
	DeleteUser(ctx context.Context, actor domain.Actor, userID string) error
}
