// Package metrics registers the Prometheus counters exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcetrak_auth_attempts_total",
		Help: "Login and signup attempts by outcome.",
	}, []string{"action", "outcome"})

	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcetrak_entry_submissions_total",
		Help: "Farm data submissions by outcome.",
	}, []string{"outcome"})

	BatchLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcetrak_batch_loads_total",
		Help: "Batch view loads by outcome.",
	}, []string{"outcome"})

	RoleLookupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sourcetrak_role_lookup_failures_total",
		Help: "Per-user role lookups that failed during history enrichment.",
	})

	QRRenders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcetrak_qr_renders_total",
		Help: "QR payloads rendered by format.",
	}, []string{"format"})
)

// Outcome labels.
const (
	OK     = "ok"
	Failed = "failed"
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// Result maps an error to an outcome label.
func Result(err error) string {
	if err != nil {
		return Failed
	}
	return OK
}
