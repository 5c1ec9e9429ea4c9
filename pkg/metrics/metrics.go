package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for InventorySaved
const (
	PathAutoSave = "auto"
	PathExplicit = "explicit"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardvault_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"method", "path"},
	)
)

// Pipeline Metrics
var (
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_scans_total",
			Help: "Scans processed by final status",
		},
		[]string{"status"},
	)

	CardsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardvault_cards_detected_total",
			Help: "Cards produced by the detection normalizer",
		},
	)

	InventorySaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_inventory_saved_total",
			Help: "Inventory entries committed, by save path",
		},
		[]string{"path"},
	)

	QuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_quota_rejections_total",
			Help: "Commits stopped or rejected at the tier ceiling, by save path",
		},
		[]string{"path"},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_notifications_created_total",
			Help: "Notifications inserted after deduplication, by type",
		},
		[]string{"type"},
	)
)

// Middleware collects HTTP request metrics
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
