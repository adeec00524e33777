package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biomon_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "biomon_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Ingestion
	RecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biomon_records_ingested_total",
			Help: "Sensor records by outcome",
		},
		[]string{"data_type", "status"}, // status: stored, rejected, failed
	)

	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biomon_alerts_raised_total",
			Help: "Alerts generated by threshold evaluation",
		},
		[]string{"data_type", "severity"},
	)

	SetPointConfigErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "biomon_setpoint_config_errors_total",
			Help: "Setpoints skipped during evaluation because they reference an unknown field",
		},
	)

	// Realtime
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "biomon_realtime_connections",
			Help: "Live push-channel connections",
		},
	)

	RealtimeDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biomon_realtime_deliveries_total",
			Help: "Event deliveries to push-channel connections",
		},
		[]string{"event", "status"}, // status: sent, dropped
	)

	// Notifications
	PushNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biomon_push_notifications_total",
			Help: "Web push notifications by outcome",
		},
		[]string{"status"},
	)

	// Retention
	RecordsPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biomon_records_purged_total",
			Help: "Sensor records deleted by retention",
		},
		[]string{"data_type"},
	)
)
