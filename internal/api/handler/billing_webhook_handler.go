package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/wolfwhale/lms-core/internal/api/metrics"
	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

// Stripe documents 64 KiB as the maximum event payload size it sends.
const maxWebhookBody = 65536

const stripeSignatureHeader = "Stripe-Signature"

// WebhookDecoder verifies and decodes a provider payload.
type WebhookDecoder interface {
	Decode(payload []byte, sigHeader string) (ports.BillingDelivery, error)
}

// BillingWebhookHandler receives billing provider webhooks.
type BillingWebhookHandler struct {
	decoder    WebhookDecoder
	reconciler ports.ReconcilerService
	log        zerolog.Logger
}

func NewBillingWebhookHandler(decoder WebhookDecoder, reconciler ports.ReconcilerService, log zerolog.Logger) *BillingWebhookHandler {
	return &BillingWebhookHandler{decoder: decoder, reconciler: reconciler, log: log}
}

// Stripe handles POST /webhooks/stripe.
//
// Unresolvable targets are acknowledged with 200 so Stripe stops retrying;
// the delivery is kept in the audit table. Infrastructure failures return
// 500 so Stripe redelivers.
//
// @Summary      Stripe webhook receiver
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature  header    string  true  "Stripe signature"
// @Success      200               {object}  webhookResponse
// @Failure      400               {object}  errorResponse
// @Failure      401               {object}  errorResponse
// @Failure      500               {object}  errorResponse
// @Router       /webhooks/stripe [post]
func (h *BillingWebhookHandler) Stripe(c echo.Context) error {
	start := time.Now()

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	if len(payload) > maxWebhookBody {
		return h.reject(start, "malformed", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "payload too large"))
	}

	delivery, err := h.decoder.Decode(payload, c.Request().Header.Get(stripeSignatureHeader))
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		h.log.Warn().Err(err).Str("remote_ip", c.RealIP()).Msg("webhook signature rejected")
		return h.reject(start, "signature", echo.NewHTTPError(http.StatusUnauthorized, "invalid signature"))
	case err != nil:
		h.log.Warn().Err(err).Msg("malformed webhook payload")
		return h.reject(start, "malformed", echo.NewHTTPError(http.StatusBadRequest, "malformed payload"))
	}

	kind := delivery.Event.Kind()
	res, err := h.reconciler.Reconcile(c.Request().Context(), delivery)
	h.observe(start, kind, res.Outcome)

	switch {
	case errors.Is(err, domain.ErrMissingTarget):
		return c.JSON(http.StatusOK, webhookResponse{Received: true, Outcome: string(domain.OutcomeMissingTarget)})
	case errors.Is(err, domain.ErrCustomerConflict):
		return c.JSON(http.StatusOK, webhookResponse{Received: true, Outcome: string(domain.OutcomeConflict)})
	case err != nil:
		return err
	}

	if res.Outcome == domain.OutcomeDuplicate {
		return c.JSON(http.StatusOK, webhookResponse{Received: true, Duplicate: true})
	}
	return c.JSON(http.StatusOK, webhookResponse{Received: true, Outcome: string(res.Outcome)})
}

func (h *BillingWebhookHandler) reject(start time.Time, reason string, err error) error {
	metrics.WebhookRejectedTotal.WithLabelValues(reason).Inc()
	metrics.WebhookProcessingDuration.WithLabelValues("rejected").Observe(time.Since(start).Seconds())
	return err
}

func (h *BillingWebhookHandler) observe(start time.Time, kind string, outcome domain.BillingOutcome) {
	if outcome == "" {
		outcome = domain.OutcomeFailed
	}
	dedup := "miss"
	if outcome == domain.OutcomeDuplicate {
		dedup = "hit"
	}
	metrics.BillingDedupTotal.WithLabelValues(dedup).Inc()
	metrics.WebhookEventsTotal.WithLabelValues(kind, string(outcome)).Inc()
	metrics.WebhookProcessingDuration.WithLabelValues(string(outcome)).Observe(time.Since(start).Seconds())
}
