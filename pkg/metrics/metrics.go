package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Settlement metrics
	RedemptionsSettled  prometheus.Counter
	RedemptionsRejected *prometheus.CounterVec
	SettlementAttempts  prometheus.Histogram
	WriteConflicts      prometheus.Counter

	// Affiliate pipeline metrics
	ConversionsRecorded  prometheus.Counter
	ConversionsPromoted  prometheus.Counter
	PayoutsRequested     prometheus.Counter
	PayoutsResolved      *prometheus.CounterVec
	CreditKeysActivated  prometheus.Counter
	AttributionResolved  *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		RedemptionsSettled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redemptions_settled_total",
			Help: "Total number of coupon redemptions settled",
		}),
		RedemptionsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redemptions_rejected_total",
				Help: "Total number of redemption attempts rejected, by reason",
			},
			[]string{"reason"},
		),
		SettlementAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "settlement_transaction_attempts",
			Help:    "Transaction attempts per settlement, including the successful one",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		WriteConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "settlement_write_conflicts_total",
			Help: "Total number of optimistic write conflicts retried",
		}),

		ConversionsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conversions_recorded_total",
			Help: "Total number of affiliate conversions recorded",
		}),
		ConversionsPromoted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conversions_promoted_total",
			Help: "Total number of conversions promoted from pending to available",
		}),
		PayoutsRequested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payouts_requested_total",
			Help: "Total number of payout requests created",
		}),
		PayoutsResolved: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payouts_resolved_total",
				Help: "Total number of payout requests resolved, by outcome",
			},
			[]string{"outcome"},
		),
		CreditKeysActivated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credit_keys_activated_total",
			Help: "Total number of credit keys activated",
		}),
		AttributionResolved: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attribution_resolved_total",
				Help: "Attribution resolutions, by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Middleware returns an Echo middleware that records HTTP metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			method := c.Request().Method
			path := c.Path()
			statusStr := strconv.Itoa(status)

			m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
