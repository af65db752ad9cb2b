package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/couponly/pkg/api/errors"
	"github.com/jordanlanch/couponly/pkg/metrics"
	"github.com/jordanlanch/couponly/pkg/models"
	"github.com/jordanlanch/couponly/pkg/payout"
	"github.com/labstack/echo/v4"
)

// PayoutHandler handles payout requests and their admin resolution
type PayoutHandler struct {
	payouts  *payout.Service
	metrics  *metrics.Metrics
	validate *validator.Validate
}

// NewPayoutHandler creates a new payout handler
func NewPayoutHandler(payouts *payout.Service, m *metrics.Metrics) *PayoutHandler {
	return &PayoutHandler{
		payouts:  payouts,
		metrics:  m,
		validate: validator.New(),
	}
}

// RequestPayout godoc
// @Summary Request a payout of available balance
// @Description Reserves the amount out of the affiliate's available balance immediately
// @Tags Payouts
// @Accept json
// @Produce json
// @Param request body models.PayoutRequestBody true "Payout parameters"
// @Success 201 {object} store.PayoutRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/affiliate/payouts [post]
func (h *PayoutHandler) RequestPayout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.PayoutRequestBody
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validate.Struct(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	r, err := h.payouts.RequestPayout(ctx, req.AffiliateID, req.AmountCents, req.Method)
	if err != nil {
		return errors.CoreError(c, err)
	}

	h.metrics.PayoutsRequested.Inc()
	return c.JSON(http.StatusCreated, r)
}

// ResolvePayout godoc
// @Summary Approve or reject a payout request
// @Description Approval records the external transaction reference and marks the affiliate's approved conversions paid; rejection refunds the reserved amount
// @Tags Payouts
// @Accept json
// @Produce json
// @Param id path int true "Payout request ID"
// @Param request body models.ResolvePayoutRequest true "Resolution"
// @Success 200 {object} store.PayoutRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/admin/payouts/{id}/resolve [post]
func (h *PayoutHandler) ResolvePayout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return errors.ValidationError(c, err)
	}

	var req models.ResolvePayoutRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validate.Struct(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	var resolved interface{}
	if req.Action == "approve" {
		r, err := h.payouts.Approve(ctx, id, req.TransactionRef)
		if err != nil {
			return errors.CoreError(c, err)
		}
		h.metrics.PayoutsResolved.WithLabelValues("approved").Inc()
		resolved = r
	} else {
		r, err := h.payouts.Reject(ctx, id, req.Reason)
		if err != nil {
			return errors.CoreError(c, err)
		}
		h.metrics.PayoutsResolved.WithLabelValues("rejected").Inc()
		resolved = r
	}

	return c.JSON(http.StatusOK, resolved)
}
