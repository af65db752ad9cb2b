// Package errors maps the core error taxonomy onto HTTP responses. Internal
// details are logged, never exposed.
package errors

import (
	"errors"
	"log"
	"net/http"

	"github.com/jordanlanch/couponly/pkg/attribution"
	"github.com/jordanlanch/couponly/pkg/creditkey"
	"github.com/jordanlanch/couponly/pkg/models"
	"github.com/jordanlanch/couponly/pkg/payout"
	"github.com/jordanlanch/couponly/pkg/settle"
	"github.com/jordanlanch/couponly/pkg/store"
	"github.com/labstack/echo/v4"
)

// ValidationError returns a generic validation error without exposing internal details
func ValidationError(c echo.Context, err error) error {
	log.Printf("[VALIDATION ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid request data. Please check your input and try again.",
	})
}

// InternalError returns a generic internal server error
func InternalError(c echo.Context, err error) error {
	log.Printf("[INTERNAL ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred. Please try again later.",
	})
}

// CoreError maps a settlement-core error onto its HTTP response, falling
// back to InternalError for anything unclassified.
func CoreError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, settle.ErrCouponNotFound),
		errors.Is(err, settle.ErrRedemptionNotFound),
		errors.Is(err, payout.ErrAffiliateNotFound),
		errors.Is(err, payout.ErrRequestNotFound),
		errors.Is(err, creditkey.ErrRequestNotFound),
		errors.Is(err, creditkey.ErrKeyNotFound),
		errors.Is(err, attribution.ErrLinkNotFound),
		errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "The requested resource was not found.",
		})

	case errors.Is(err, settle.ErrExhausted):
		return c.JSON(http.StatusGone, models.ErrorResponse{
			Error:   "exhausted",
			Message: "This coupon has no uses left.",
		})

	case errors.Is(err, settle.ErrExpired), errors.Is(err, creditkey.ErrKeyExpired):
		return c.JSON(http.StatusGone, models.ErrorResponse{
			Error:   "expired",
			Message: "This code is past its validity window.",
		})

	case errors.Is(err, settle.ErrAlreadyRedeemed),
		errors.Is(err, creditkey.ErrKeyUsed),
		errors.Is(err, creditkey.ErrRequestResolved),
		errors.Is(err, payout.ErrAlreadyResolved),
		errors.Is(err, store.ErrDuplicate):
		return c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "conflict",
			Message: "This operation was already performed.",
		})

	case errors.Is(err, payout.ErrInsufficientBalance):
		return c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error:   "insufficient_balance",
			Message: "The requested amount exceeds your available balance.",
		})

	case errors.Is(err, store.ErrTooManyConflicts):
		log.Printf("[CONCURRENCY] Path: %s, Error: %v", c.Request().URL.Path, err)
		return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "concurrency",
			Message: "The system is busy. Please try again.",
		})
	}

	return InternalError(c, err)
}
