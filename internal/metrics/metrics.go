package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"assinatura-bot/internal/engine"
)

var (
	RunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assinatura_reconciliation_runs_total",
		Help: "Completed reconciliation runs.",
	})

	NoticesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assinatura_notices_sent_total",
		Help: "Notifications sent, by category.",
	}, []string{"category"})

	RevocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assinatura_revocations_total",
		Help: "Subjects revoked for non-renewal.",
	})

	FailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assinatura_failures_total",
		Help: "Non-fatal failures during reconciliation, by kind.",
	}, []string{"kind"})
)

// ObserveRun folds one run report into the counters.
func ObserveRun(report *engine.RunReport) {
	RunsTotal.Inc()
	for category, n := range report.Reminders {
		NoticesTotal.WithLabelValues(string(category)).Add(float64(n))
	}
	RevocationsTotal.Add(float64(report.Revoked))
	FailuresTotal.WithLabelValues("notify").Add(float64(report.NotifyFailures))
	FailuresTotal.WithLabelValues("permission").Add(float64(report.PermissionFailures))
	FailuresTotal.WithLabelValues("store").Add(float64(report.StoreFailures))
	FailuresTotal.WithLabelValues("panic").Add(float64(report.Panics))
}

// Serve exposes /metrics on addr. Blocks; run it in its own goroutine.
func Serve(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics listener stopped", zap.Error(err))
	}
}
