// Package metrics records sync and HTTP activity for Prometheus.
package metrics

import (
	"time"

	"github.com/icodeforyou/pvpc-go/hours"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Recorder struct {
	syncSteps    *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
	syncCursor   *prometheus.GaugeVec
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	currentPrice prometheus.Gauge
	published    *prometheus.CounterVec
}

// New registers the collectors with reg, prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		syncSteps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvpc_sync_steps_total",
				Help: "Sync steps by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		syncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pvpc_sync_step_duration_seconds",
				Help:    "Duration of a sync step in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		syncCursor: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pvpc_sync_last_synced_timestamp_seconds",
				Help: "Start of the last synced day as a unix timestamp",
			},
			[]string{"source"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvpc_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pvpc_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		currentPrice: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pvpc_current_price",
				Help: "Price of the current hour per kWh",
			},
		),
		published: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvpc_mqtt_published_total",
				Help: "MQTT messages published by topic and result",
			},
			[]string{"topic", "result"},
		),
	}
}

func (r *Recorder) ObserveSync(source string, outcome string, elapsed time.Duration) {
	r.syncSteps.WithLabelValues(source, outcome).Inc()
	r.syncDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

func (r *Recorder) SetCursor(source string, date string) {
	t, err := hours.ParseDate(date)
	if err != nil {
		return
	}
	r.syncCursor.WithLabelValues(source).Set(float64(t.Unix()))
}

func (r *Recorder) ObserveRequest(route string, status int, elapsed time.Duration) {
	r.requests.WithLabelValues(route, statusLabel(status)).Inc()
	r.latency.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (r *Recorder) SetCurrentPrice(price float64) {
	r.currentPrice.Set(price)
}

func (r *Recorder) ObservePublish(topic string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.published.WithLabelValues(topic, result).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
