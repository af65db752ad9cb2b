package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/couponly/pkg/api/errors"
	"github.com/jordanlanch/couponly/pkg/attribution"
	"github.com/jordanlanch/couponly/pkg/metrics"
	"github.com/jordanlanch/couponly/pkg/models"
	"github.com/jordanlanch/couponly/pkg/payout"
	"github.com/labstack/echo/v4"
)

// clickCookieName carries the attribution token back to the visitor.
const clickCookieName = "couponly_attr"

// AffiliateHandler handles affiliate links, clicks, conversions and stats
type AffiliateHandler struct {
	attribution *attribution.Service
	payouts     *payout.Service
	metrics     *metrics.Metrics
	frontendURL string
	validate    *validator.Validate
}

// NewAffiliateHandler creates a new affiliate handler
func NewAffiliateHandler(attr *attribution.Service, payouts *payout.Service, m *metrics.Metrics, frontendURL string) *AffiliateHandler {
	return &AffiliateHandler{
		attribution: attr,
		payouts:     payouts,
		metrics:     m,
		frontendURL: frontendURL,
		validate:    validator.New(),
	}
}

// CreateLink godoc
// @Summary Create an affiliate tracking link
// @Tags Affiliates
// @Accept json
// @Produce json
// @Param request body models.CreateLinkRequest true "Link parameters"
// @Success 201 {object} store.AffiliateLink
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/affiliate/links [post]
func (h *AffiliateHandler) CreateLink(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.CreateLinkRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validate.Struct(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	link, err := h.attribution.CreateLink(ctx, req.AffiliateID, req.CouponID)
	if err != nil {
		return errors.CoreError(c, err)
	}

	return c.JSON(http.StatusCreated, link)
}

// Click godoc
// @Summary Follow an affiliate tracking link
// @Description Records the click, sets the attribution cookie and redirects to the storefront
// @Tags Affiliates
// @Param code path string true "Tracking code"
// @Success 302
// @Failure 404 {object} models.ErrorResponse
// @Router /t/{code} [get]
func (h *AffiliateHandler) Click(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	code := c.Param("code")

	token, link, err := h.attribution.TrackClick(ctx, code, attribution.ClickData{
		IPAddress:   c.RealIP(),
		UserAgent:   c.Request().UserAgent(),
		Referrer:    c.Request().Referer(),
		UTMSource:   c.QueryParam("utm_source"),
		UTMMedium:   c.QueryParam("utm_medium"),
		UTMCampaign: c.QueryParam("utm_campaign"),
	})
	if err != nil {
		return errors.CoreError(c, err)
	}

	c.SetCookie(&http.Cookie{
		Name:     clickCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(attribution.Window / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	target := h.frontendURL
	if link.CouponID != nil {
		target += "/coupons/" + strconv.Itoa(*link.CouponID)
	}
	return c.Redirect(http.StatusFound, target)
}

// RecordConversion godoc
// @Summary Record an order-value affiliate conversion
// @Tags Affiliates
// @Accept json
// @Produce json
// @Param request body models.ConversionRequest true "Conversion parameters"
// @Success 201 {object} store.AffiliateConversion
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/affiliate/conversions [post]
func (h *AffiliateHandler) RecordConversion(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.ConversionRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validate.Struct(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	conv, err := h.payouts.RecordConversion(ctx, req.LinkID, req.OrderCents, req.CouponID)
	if err != nil {
		return errors.CoreError(c, err)
	}

	h.metrics.ConversionsRecorded.Inc()
	return c.JSON(http.StatusCreated, conv)
}

// GetStats godoc
// @Summary Get affiliate balance statistics
// @Tags Affiliates
// @Produce json
// @Param id path int true "Affiliate account ID"
// @Success 200 {object} payout.Stats
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/affiliate/{id}/stats [get]
func (h *AffiliateHandler) GetStats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return errors.ValidationError(c, err)
	}

	stats, err := h.payouts.GetStats(ctx, id)
	if err != nil {
		return errors.CoreError(c, err)
	}

	return c.JSON(http.StatusOK, stats)
}
