// Package metrics holds the Prometheus instrumentation of the playback service.
//
//	cinestream_watch_sessions            gauge: connected watch sessions
//	cinestream_ads_started_total         counter: ads shown
//	cinestream_ads_ended_total           counter: ads closed, by reason
//	cinestream_ad_dismiss_refused_total  counter: dismiss requests refused by the skip countdown
//	cinestream_classifications_total     counter: classified URLs, by kind and validity
//	cinestream_impressions_total         counter: impression jobs processed by the worker, by result
//	cinestream_http_requests_total       counter: HTTP requests by method/route/status
//	cinestream_http_request_duration_seconds  histogram: HTTP latency by method/route
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WatchSessions is the number of connected watch sessions.
var WatchSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "cinestream_watch_sessions",
	Help: "Number of connected watch sessions.",
})

// AdsStarted counts ads shown to viewers.
var AdsStarted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cinestream_ads_started_total",
	Help: "Ads shown to viewers.",
})

// AdsEnded counts ads closed, by reason (expired, dismissed).
var AdsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cinestream_ads_ended_total",
	Help: "Ads closed by reason.",
}, []string{"reason"})

// AdDismissRefused counts dismiss requests that arrived before the skip countdown elapsed.
var AdDismissRefused = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cinestream_ad_dismiss_refused_total",
	Help: "Dismiss requests refused by the skip countdown.",
})

// Classifications counts classified video URLs.
var Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cinestream_classifications_total",
	Help: "Video URLs classified, by kind and validity.",
}, []string{"kind", "valid"})

// Impressions counts impression jobs handled by the worker (stored, retried, dead).
var Impressions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cinestream_impressions_total",
	Help: "Impression jobs processed by result.",
}, []string{"result"})

// HTTPRequests counts HTTP requests by method, route and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cinestream_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"method", "route", "status"})

// HTTPDuration tracks HTTP request latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "cinestream_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route"})

// ObserveClassification records one classification result.
func ObserveClassification(kind string, valid bool) {
	Classifications.WithLabelValues(kind, strconv.FormatBool(valid)).Inc()
}

// ObserveRequest records one HTTP request.
func ObserveRequest(method, route string, status int, seconds float64) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(seconds)
}

// Handler returns the Prometheus scrape handler for GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
