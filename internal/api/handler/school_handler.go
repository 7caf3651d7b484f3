package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wolfwhale/lms-core/internal/core/ports"
)

// SchoolHandler handles school registration and subscription lookups.
type SchoolHandler struct {
	service ports.SchoolService
}

func NewSchoolHandler(service ports.SchoolService) *SchoolHandler {
	return &SchoolHandler{service: service}
}

// Register handles POST /v1/schools.
//
// @Summary      Register a school on the FREE tier
// @Tags         schools
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      registerSchoolRequest  true  "School"
// @Success      201   {object}  domain.School
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/schools [post]
func (h *SchoolHandler) Register(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req registerSchoolRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	school, err := h.service.Register(c.Request().Context(), actor, req.Name)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, "/v1/schools/"+school.ID)
	return c.JSON(http.StatusCreated, school)
}

// Get handles GET /v1/schools/:id.
//
// @Summary      Get a school's subscription state
// @Tags         schools
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "School ID"
// @Success      200  {object}  domain.School
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/schools/{id} [get]
func (h *SchoolHandler) Get(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	school, err := h.service.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, school)
}
