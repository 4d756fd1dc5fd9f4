// Package telemetry exposes Prometheus metrics for pipeline runs.
package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prospect_pipeline_runs_total",
		Help: "Pipeline runs by terminal status",
	}, []string{"status"})
	ProviderCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prospect_provider_calls_total",
		Help: "Provider calls by stage and outcome",
	}, []string{"stage", "outcome"})
	LeadsUpserted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prospect_leads_upserted_total",
		Help: "Leads written by the upsert stage, new or duplicate",
	}, []string{"result"})
	QuotaRejects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "prospect_quota_rejects_total",
		Help: "Requests rejected by the quota validator",
	})
	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "prospect_stage_duration_seconds",
		Help:    "Wall-clock duration of each pipeline stage",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// Register adds the collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			RunsTotal,
			ProviderCalls,
			LeadsUpserted,
			QuotaRejects,
			StageDuration,
		)
	})
}

// ObserveStage records how long a stage took.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// ProviderCall counts one provider call. outcome is "ok" or an error kind.
func ProviderCall(stage, outcome string) {
	ProviderCalls.WithLabelValues(stage, outcome).Inc()
}
