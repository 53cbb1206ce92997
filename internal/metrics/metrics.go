package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// List-view fetch metrics
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_listview_fetches_total",
			Help: "Total number of page requests that resolved, by outcome",
		},
		[]string{"view", "status"},
	)

	FetchesDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_listview_fetches_discarded_total",
			Help: "Total number of responses discarded because a newer request superseded them",
		},
		[]string{"view"},
	)

	FetchesInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "console_listview_fetches_in_flight",
			Help: "Page requests dispatched and not yet resolved",
		},
		[]string{"view"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_listview_fetch_duration_seconds",
			Help:    "Duration of page requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"view"},
	)

	// Backend list endpoint metrics
	ListRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_api_list_requests_total",
			Help: "Total number of list endpoint requests",
		},
		[]string{"resource", "status"},
	)

	ListRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_api_list_request_duration_seconds",
			Help:    "Duration of list endpoint requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)
)

// Fetch outcomes.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusCanceled = "canceled"
)

// Observer records list-view fetch lifecycle events. It satisfies
// listview.Observer.
type Observer struct{}

// NewObserver returns an Observer.
func NewObserver() *Observer { return &Observer{} }

func (*Observer) FetchStarted(view string) {
	FetchesInFlight.WithLabelValues(view).Inc()
}

func (*Observer) FetchFinished(view string, elapsed time.Duration, err error) {
	FetchesInFlight.WithLabelValues(view).Dec()
	FetchDuration.WithLabelValues(view).Observe(elapsed.Seconds())
	FetchesTotal.WithLabelValues(view, fetchStatus(err)).Inc()
}

func (*Observer) FetchDiscarded(view string) {
	FetchesInFlight.WithLabelValues(view).Dec()
	FetchesDiscarded.WithLabelValues(view).Inc()
}

func fetchStatus(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, context.Canceled):
		return StatusCanceled
	default:
		return StatusError
	}
}

// ObserveListRequest records one backend list request.
func ObserveListRequest(resource string, status int, elapsed time.Duration) {
	ListRequestsTotal.WithLabelValues(resource, statusClass(status)).Inc()
	ListRequestDuration.WithLabelValues(resource).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
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
