package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

func TestUserHandler_Create_Success(t *testing.T) {
	stub := &stubAuthService{
		createUserFn: func(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
			if actor != adminActor {
				t.Fatalf("unexpected actor: %+v", actor)
			}
			if in.Email != "bob@example.com" || in.Role != domain.RoleTeacher || in.Password != "long-enough" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &domain.User{ID: "u9", SchoolID: "school-1", Name: in.Name, Email: in.Email, Role: in.Role, Level: 1}, nil
		},
	}
	handler := NewUserHandler(stub)

	c, rec := newContext(http.MethodPost, "/v1/users",
		`{"name":"Bob","email":"bob@example.com","password":"long-enough","role":"teacher"}`, &adminActor)
	if err := handler.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/users/u9/progress" {
		t.Fatalf("unexpected Location %q", loc)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["id"] != "u9" || resp["role"] != "teacher" || resp["level"] != float64(1) {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestUserHandler_Create_ValidationFailure(t *testing.T) {
	stub := &stubAuthService{
		createUserFn: func(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	handler := NewUserHandler(stub)

	cases := map[string]string{
		"short password": `{"name":"Bob","email":"bob@example.com","password":"short","role":"teacher"}`,
		"owner role":     `{"name":"Bob","email":"bob@example.com","password":"long-enough","role":"owner"}`,
		"missing email":  `{"name":"Bob","password":"long-enough","role":"teacher"}`,
	}
	for name, body := range cases {
		c, _ := newContext(http.MethodPost, "/v1/users", body, &adminActor)
		if code := httpCode(handler.Create(c)); code != http.StatusUnprocessableEntity {
			t.Errorf("%s: expected 422, got %d", name, code)
		}
	}
}

func TestUserHandler_Create_PropagatesDomainErrors(t *testing.T) {
	for _, want := range []error{domain.ErrForbidden, domain.ErrSeatLimitReached, domain.ErrUserExists} {
		stub := &stubAuthService{
			createUserFn: func(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
				return nil, want
			},
		}
		c, _ := newContext(http.MethodPost, "/v1/users",
			`{"name":"Bob","email":"bob@example.com","password":"long-enough","role":"student"}`, &adminActor)
		if err := NewUserHandler(stub).Create(c); !errors.Is(err, want) {
			t.Errorf("expected %v, got %v", want, err)
		}
	}
}

func TestUserHandler_Create_MissingClaims(t *testing.T) {
	handler := NewUserHandler(&stubAuthService{})

	c, _ := newContext(http.MethodPost, "/v1/users", `{}`, nil)
	expectHTTPError(t, handler.Create(c), http.StatusUnauthorized)

	orphan := domain.Actor{UserID: "a2", Role: domain.RoleAdmin}
	c, _ = newContext(http.MethodPost, "/v1/users", `{}`, &orphan)
	expectHTTPError(t, handler.Create(c), http.StatusUnauthorized)
}

func TestUserHandler_Delete(t *testing.T) {
	var deleted string
	stub := &stubAuthService{
		deleteUserFn: func(ctx context.Context, actor domain.Actor, userID string) error {
			deleted = userID
			return nil
		},
	}

	c, rec := newContext(http.MethodDelete, "/v1/users/u5", "", &ownerActor)
	c.SetParamNames("id")
	c.SetParamValues("u5")

	if err := NewUserHandler(stub).Delete(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent || deleted != "u5" {
		t.Fatalf("expected 204 deleting u5, got %d deleting %q", rec.Code, deleted)
	}
}
