package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/wolfwhale/lms-core/internal/api/metrics"
	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

const (
	maxBatchSize   = 1000
	enqueueTimeout = 2 * time.Second
)

// XPDispatcher is the interface the handler uses to enqueue awards.
type XPDispatcher interface {
	EnqueueBatch(ctx context.Context, awards []ports.XPAwardInput) (int, error)
}

// GamificationHandler exposes the XP ledger and streak tracker.
type GamificationHandler struct {
	ledger     ports.LedgerService
	dispatcher XPDispatcher
}

func NewGamificationHandler(ledger ports.LedgerService, dispatcher XPDispatcher) *GamificationHandler {
	return &GamificationHandler{ledger: ledger, dispatcher: dispatcher}
}

// Progress handles GET /v1/users/:id/progress.
//
// @Summary      Get a user's XP, level and streak
// @Tags         gamification
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  domain.Progress
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/users/{id}/progress [get]
func (h *GamificationHandler) Progress(c echo.Context) error {
	p, err := h.authorize(c, c.Param("id"), domain.Actor.CanActOnUser)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// AwardXP handles POST /v1/users/:id/xp.
//
// @Summary      Award XP to a user
// @Tags         gamification
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string          true  "User ID"
// @Param        body  body      awardXPRequest  true  "Award"
// @Success      200   {object}  domain.XPAward
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/users/{id}/xp [post]
func (h *GamificationHandler) AwardXP(c echo.Context) error {
	var req awardXPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	userID := c.Param("id")
	if _, err := h.authorize(c, userID, domain.Actor.CanAwardXP); err != nil {
		return err
	}

	award, err := h.ledger.AddXP(c.Request().Context(), userID, req.Amount)
	if err != nil {
		return err
	}

	metrics.XPAwardedTotal.WithLabelValues("api").Add(float64(req.Amount))
	if award.LeveledUp {
		metrics.LevelUpsTotal.Inc()
	}
	return c.JSON(http.StatusOK, award)
}

// RecordActivity handles POST /v1/users/:id/activity.
//
// @Summary      Record daily activity for streak tracking
// @Tags         gamification
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string           true   "User ID"
// @Param        body  body      activityRequest  false  "Activity timestamp"
// @Success      200   {object}  domain.Progress
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /v1/users/{id}/activity [post]
func (h *GamificationHandler) RecordActivity(c echo.Context) error {
	var req activityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	userID := c.Param("id")
	if _, err := h.authorize(c, userID, domain.Actor.CanActOnUser); err != nil {
		return err
	}

	at := time.Now()
	if req.OccurredAt != nil {
		if req.OccurredAt.After(at) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "occurred_at cannot be in the future")
		}
		at = *req.OccurredAt
	}

	p, err := h.ledger.RecordActivity(c.Request().Context(), userID, at)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// AwardBatch handles POST /v1/xp/batch. Awards are applied asynchronously,
// in order per user.
//
// @Summary      Enqueue a batch of XP awards
// @Tags         gamification
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      []batchAwardRequest  true  "Array of awards"
// @Success      202   {object}  acceptedResponse
// @Failure      400   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /v1/xp/batch [post]
func (h *GamificationHandler) AwardBatch(c echo.Context) error {
	var reqs []batchAwardRequest
	if err := c.Bind(&reqs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if len(reqs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "batch cannot be empty")
	}
	if len(reqs) > maxBatchSize {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("batch cannot exceed %d awards", maxBatchSize))
	}

	inputs := make([]ports.XPAwardInput, 0, len(reqs))
	for i, req := range reqs {
		if err := c.Validate(&req); err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity,
				fmt.Sprintf("award[%d]: %s", i, err.Error()))
		}
		inputs = append(inputs, ports.XPAwardInput{UserID: req.UserID, Amount: req.Amount, Reason: req.Reason})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), enqueueTimeout)
	defer cancel()

	n, err := h.dispatcher.EnqueueBatch(ctx, inputs)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable,
			fmt.Sprintf("award queue saturated: %d of %d awards accepted", n, len(inputs)))
	}

	return c.JSON(http.StatusAccepted, acceptedResponse{
		Message: "awards accepted",
		Count:   n,
	})
}

// authorize loads userID's progress and checks it against allowed.
func (h *GamificationHandler) authorize(c echo.Context, userID string, allowed func(domain.Actor, string, string) bool) (domain.Progress, error) {
	actor, err := ctxActor(c)
	if err != nil {
		return domain.Progress{}, err
	}

	p, err := h.ledger.Progress(c.Request().Context(), userID)
	if err != nil {
		return domain.Progress{}, err
	}
	if !allowed(actor, userID, p.SchoolID) {
		return domain.Progress{}, domain.ErrForbidden
	}
	return p, nil
}
