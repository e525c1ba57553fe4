package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HeartbeatsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleet_heartbeats_total", Help: "Heartbeats processed, by result"},
		[]string{"result"},
	)
	AlertsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleet_alerts_created_total", Help: "Alerts persisted, by alert type"},
		[]string{"type"},
	)
	AlertPublishFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleet_alert_publish_failures_total", Help: "Post-commit alert publications that failed, by sink"},
		[]string{"sink"},
	)
	CatalogQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleet_catalog_queries_total", Help: "Service point queries, by kind"},
		[]string{"kind"},
	)
	AuthFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleet_auth_failures_total", Help: "Rejected device authentications, by reason"},
		[]string{"reason"},
	)
)

// Register adds every collector to reg. Call once at startup.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(HeartbeatsTotal, AlertsCreated, AlertPublishFailures, CatalogQueries, AuthFailures)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
