// Package metrics provides Prometheus metrics for the CloverDrive server.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloverdrive_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cloverdrive_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	vaultOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloverdrive_vault_operations_total",
			Help: "Vault operations by name and result (ok, noop, error)",
		},
		[]string{"op", "result"},
	)

	vaultBytesCopied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloverdrive_vault_bytes_copied_total",
			Help: "Bytes copied into (upload) or out of (download) the vault",
		},
		[]string{"direction"},
	)

	vaultItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cloverdrive_vault_items",
			Help: "Entries seen in each root by the last listing",
		},
		[]string{"root"},
	)

	assistAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloverdrive_assist_attempts_total",
			Help: "Generation attempts by model and result",
		},
		[]string{"model", "result"},
	)
)

// Operation results.
const (
	ResultOK    = "ok"
	ResultNoop  = "noop"
	ResultError = "error"
)

// RecordOperation counts one vault operation.
func RecordOperation(op, result string) {
	vaultOperationsTotal.WithLabelValues(op, result).Inc()
}

// RecordUpload adds bytes copied into the vault.
func RecordUpload(n int64) {
	vaultBytesCopied.WithLabelValues("upload").Add(float64(n))
}

// RecordDownload adds bytes copied out of the vault.
func RecordDownload(n int64) {
	vaultBytesCopied.WithLabelValues("download").Add(float64(n))
}

// SetItems records the entry count of a root ("vault" or "trash").
func SetItems(root string, n int) {
	vaultItems.WithLabelValues(root).Set(float64(n))
}

// RecordAssistAttempt counts one generation attempt against a model.
func RecordAssistAttempt(model, result string) {
	assistAttemptsTotal.WithLabelValues(model, result).Inc()
}

// Middleware records request counts and latencies per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
