package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/couponly/pkg/api/errors"
	"github.com/jordanlanch/couponly/pkg/attribution"
	"github.com/jordanlanch/couponly/pkg/metrics"
	"github.com/jordanlanch/couponly/pkg/models"
	"github.com/jordanlanch/couponly/pkg/settle"
	"github.com/jordanlanch/couponly/pkg/store"
	"github.com/labstack/echo/v4"
	"github.com/nyaruka/phonenumbers"
)

// RedemptionHandler handles the public redemption portal endpoints
type RedemptionHandler struct {
	engine      *settle.Engine
	attribution *attribution.Service
	metrics     *metrics.Metrics
	validate    *validator.Validate
}

// NewRedemptionHandler creates a new redemption handler
func NewRedemptionHandler(engine *settle.Engine, attr *attribution.Service, m *metrics.Metrics) *RedemptionHandler {
	return &RedemptionHandler{
		engine:      engine,
		attribution: attr,
		metrics:     m,
		validate:    validator.New(),
	}
}

// Redeem godoc
// @Summary Redeem a coupon
// @Description Atomically settles one coupon use across the customer, shop, attributed affiliate and referrer accounts
// @Tags Redemptions
// @Accept json
// @Produce json
// @Param request body models.RedeemRequest true "Redemption request"
// @Success 200 {object} settle.Result
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 410 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /api/v1/redemptions [post]
func (h *RedemptionHandler) Redeem(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.RedeemRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validate.Struct(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	affiliateID := req.AffiliateID
	if affiliateID == nil && req.ClickToken != "" {
		resolved, err := h.attribution.Resolve(ctx, req.ClickToken, time.Now())
		if err != nil {
			// Attribution is optional: resolution failure voids it, the
			// redemption itself proceeds.
			h.metrics.AttributionResolved.WithLabelValues("error").Inc()
		} else if resolved != nil {
			affiliateID = resolved
			h.metrics.AttributionResolved.WithLabelValues("hit").Inc()
		} else {
			h.metrics.AttributionResolved.WithLabelValues("miss").Inc()
		}
	}

	result, err := h.engine.Redeem(ctx, req.CouponID, req.CustomerID, affiliateID)
	if err != nil {
		h.metrics.RedemptionsRejected.WithLabelValues(rejectReason(err)).Inc()
		return errors.CoreError(c, err)
	}

	h.metrics.RedemptionsSettled.Inc()
	h.metrics.SettlementAttempts.Observe(float64(result.Attempts))
	if result.Attempts > 1 {
		h.metrics.WriteConflicts.Add(float64(result.Attempts - 1))
	}

	return c.JSON(http.StatusOK, result)
}

// AttachDetails godoc
// @Summary Attach contact details to a redemption
// @Description Enriches an existing redemption record with customer contact details; never creates a second redemption
// @Tags Redemptions
// @Accept json
// @Produce json
// @Param id path int true "Redemption ID"
// @Param request body models.ContactDetailsRequest true "Contact details"
// @Success 200 {object} store.Redemption
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/redemptions/{id}/details [patch]
func (h *RedemptionHandler) AttachDetails(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return errors.ValidationError(c, err)
	}

	var req models.ContactDetailsRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validate.Struct(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	phone := req.Phone
	if phone != "" {
		normalized, err := normalizePhone(phone, req.PhoneCountry)
		if err != nil {
			return errors.ValidationError(c, err)
		}
		phone = normalized
	}

	rec, err := h.engine.AttachDetails(ctx, id, settle.ContactInfo{
		Name:  req.Name,
		Email: req.Email,
		Phone: phone,
	})
	if err != nil {
		return errors.CoreError(c, err)
	}

	return c.JSON(http.StatusOK, rec)
}

// normalizePhone validates and normalizes a phone number to E.164 before it
// reaches the transactional core.
func normalizePhone(phone, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = "US"
	}

	parsed, err := phonenumbers.Parse(phone, countryCode)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid phone number")
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

func rejectReason(err error) string {
	switch {
	case stderrors.Is(err, settle.ErrCouponNotFound):
		return "not_found"
	case stderrors.Is(err, settle.ErrExhausted):
		return "exhausted"
	case stderrors.Is(err, settle.ErrExpired):
		return "expired"
	case stderrors.Is(err, settle.ErrAlreadyRedeemed):
		return "duplicate"
	case stderrors.Is(err, store.ErrTooManyConflicts):
		return "concurrency"
	default:
		return "other"
	}
}
