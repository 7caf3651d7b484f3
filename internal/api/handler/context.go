package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wolfwhale/lms-core/internal/api/middleware"
	"github.com/wolfwhale/lms-core/internal/core/domain"
)

// ctxActor extracts the auth claims injected by the Auth middleware and
// performs a fast-fail check before any service call:
//   - user_id and role must be non-empty (presence proves the middleware ran).
//   - every role except owner requires a school_id; without it the JWT is
//     structurally valid but operationally unusable, so reject with 401.
func ctxActor(c echo.Context) (domain.Actor, error) {
	userID, _ := c.Get(middleware.ContextUserID).(string)
	role, _ := c.Get(middleware.ContextRole).(string)
	if userID == "" || role == "" {
		return domain.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}

	schoolID, _ := c.Get(middleware.ContextSchoolID).(string)
	if role != domain.RoleOwner && schoolID == "" {
		return domain.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "token missing school identity")
	}

	return domain.Actor{UserID: userID, Role: role, SchoolID: schoolID}, nil
}
