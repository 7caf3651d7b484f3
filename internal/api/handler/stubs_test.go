package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/wolfwhale/lms-core/internal/api/middleware"
	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

type stubAuthService struct {
	loginFn      func(ctx context.Context, email, password string) (string, *domain.User, error)
	createUserFn func(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error)
	deleteUserFn func(ctx context.Context, actor domain.Actor, userID string) error
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) CreateUser(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
	return s.createUserFn(ctx, actor, in)
}

func (s *stubAuthService) DeleteUser(ctx context.Context, actor domain.Actor, userID string) error {
	return s.deleteUserFn(ctx, actor, userID)
}

type stubLedger struct {
	progress map[string]domain.Progress
	addXPFn  func(ctx context.Context, userID string, amount int64) (domain.XPAward, error)
	activity []time.Time
}

func (s *stubLedger) AddXP(ctx context.Context, userID string, amount int64) (domain.XPAward, error) {
	return s.addXPFn(ctx, userID, amount)
}

func (s *stubLedger) Progress(_ context.Context, userID string) (domain.Progress, error) {
	p, ok := s.progress[userID]
	if !ok {
		return domain.Progress{}, domain.ErrUserNotFound
	}
	return p, nil
}

func (s *stubLedger) RecordActivity(_ context.Context, userID string, at time.Time) (domain.Progress, error) {
	s.activity = append(s.activity, at)
	p := s.progress[userID]
	p.Streak++
	return p, nil
}

func (s *stubLedger) ResetStaleStreaks(context.Context, time.Time) (int64, error) { return 0, nil }

type stubDispatcher struct {
	got []ports.XPAwardInput
	err error
}

func (s *stubDispatcher) EnqueueBatch(_ context.Context, awards []ports.XPAwardInput) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.got = append(s.got, awards...)
	return len(awards), nil
}

type stubSchoolService struct {
	registerFn func(ctx context.Context, actor domain.Actor, name string) (*domain.School, error)
	getFn      func(ctx context.Context, actor domain.Actor, id string) (*domain.School, error)
}

func (s *stubSchoolService) Register(ctx context.Context, actor domain.Actor, name string) (*domain.School, error) {
	return s.registerFn(ctx, actor, name)
}

func (s *stubSchoolService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.School, error) {
	return s.getFn(ctx, actor, id)
}

var (
	ownerActor   = domain.Actor{UserID: "owner-1", Role: domain.RoleOwner}
	adminActor   = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin, SchoolID: "school-1"}
	teacherActor = domain.Actor{UserID: "teacher-1", Role: domain.RoleTeacher, SchoolID: "school-1"}
	studentActor = domain.Actor{UserID: "student-1", Role: domain.RoleStudent, SchoolID: "school-1"}
)

// newContext builds an echo context for a JSON request, with the claims of
// actor already injected as the Auth middleware would.
func newContext(method, target, body string, actor *domain.Actor) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if actor != nil {
		c.Set(middleware.ContextUserID, actor.UserID)
		c.Set(middleware.ContextRole, actor.Role)
		c.Set(middleware.ContextSchoolID, actor.SchoolID)
	}
	return c, rec
}

// httpCode returns the status an echo.HTTPError carries, or 0.
func httpCode(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	if got := httpCode(err); got != code {
		t.Fatalf("expected HTTP %d, got %v", code, err)
	}
}
