package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jordanlanch/couponly/pkg/api/errors"
	"github.com/jordanlanch/couponly/pkg/export"
	"github.com/jordanlanch/couponly/pkg/jobs"
	"github.com/jordanlanch/couponly/pkg/metrics"
	"github.com/labstack/echo/v4"
)

// AdminHandler handles operational admin endpoints
type AdminHandler struct {
	cron    *jobs.CronManager
	export  *export.Service
	metrics *metrics.Metrics
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(cron *jobs.CronManager, exp *export.Service, m *metrics.Metrics) *AdminHandler {
	return &AdminHandler{
		cron:    cron,
		export:  exp,
		metrics: m,
	}
}

// RunSweep godoc
// @Summary Run the approval sweep immediately
// @Description Promotes pending conversions past the hold period without waiting for the hourly schedule
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/v1/admin/sweep [post]
func (h *AdminHandler) RunSweep(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Minute)
	defer cancel()

	promoted, err := h.cron.RunSweepNow(ctx, time.Now())
	if err != nil {
		return errors.InternalError(c, err)
	}

	h.metrics.ConversionsPromoted.Add(float64(promoted))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"promoted": promoted,
	})
}

// ExportLedger godoc
// @Summary Export the full credit ledger as an Excel file
// @Tags Admin
// @Produce json
// @Success 200 {object} export.Result
// @Security BearerAuth
// @Router /api/v1/admin/export/ledger [get]
func (h *AdminHandler) ExportLedger(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Minute)
	defer cancel()

	result, err := h.export.ExportLedger(ctx)
	if err != nil {
		return errors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}
