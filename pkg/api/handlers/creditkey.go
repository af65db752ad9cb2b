package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/couponly/pkg/api/errors"
	"github.com/jordanlanch/couponly/pkg/creditkey"
	"github.com/jordanlanch/couponly/pkg/metrics"
	"github.com/jordanlanch/couponly/pkg/models"
	"github.com/labstack/echo/v4"
)

// CreditKeyHandler handles credit requests, key issuance and activation
type CreditKeyHandler struct {
	keys     *creditkey.Service
	metrics  *metrics.Metrics
	validate *validator.Validate
}

// NewCreditKeyHandler creates a new credit key handler
func NewCreditKeyHandler(keys *creditkey.Service, m *metrics.Metrics) *CreditKeyHandler {
	return &CreditKeyHandler{
		keys:     keys,
		metrics:  m,
		validate: validator.New(),
	}
}

// SubmitRequest godoc
// @Summary Open a credit request for a shop
// @Tags CreditKeys
// @Accept json
// @Produce json
// @Param request body models.CreditRequestBody true "Credit request"
// @Success 201 {object} store.CreditRequest
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/credit-requests [post]
func (h *CreditKeyHandler) SubmitRequest(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.CreditRequestBody
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validate.Struct(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	r, err := h.keys.SubmitRequest(ctx, req.ShopID, req.Credits)
	if err != nil {
		return errors.CoreError(c, err)
	}

	return c.JSON(http.StatusCreated, r)
}

// IssueKey godoc
// @Summary Issue an activation key for a pending credit request
// @Description The plaintext code is returned exactly once; only its hash is stored
// @Tags CreditKeys
// @Produce json
// @Param id path int true "Credit request ID"
// @Success 201 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/admin/credit-requests/{id}/key [post]
func (h *CreditKeyHandler) IssueKey(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return errors.ValidationError(c, err)
	}

	code, key, err := h.keys.IssueKey(ctx, id)
	if err != nil {
		return errors.CoreError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"code":       code,
		"shop_id":    key.ShopID,
		"credits":    key.Credits,
		"expires_at": key.ExpiresAt,
	})
}

// Activate godoc
// @Summary Activate a credit key
// @Description One atomic transaction: marks the key used, credits the shop and completes the originating request
// @Tags CreditKeys
// @Accept json
// @Produce json
// @Param request body models.ActivateKeyRequest true "Activation"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 410 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/credit-keys/activate [post]
func (h *CreditKeyHandler) Activate(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.ActivateKeyRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validate.Struct(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	credited, err := h.keys.Activate(ctx, req.Code, req.ShopID)
	if err != nil {
		return errors.CoreError(c, err)
	}

	h.metrics.CreditKeysActivated.Inc()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"credits_added": credited,
	})
}
