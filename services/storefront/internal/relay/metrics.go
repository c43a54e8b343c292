package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes recorded by requestsTotal.
const (
	outcomeOK          = "ok"
	outcomeInvalid     = "invalid_url"
	outcomeNotFound    = "upstream_status"
	outcomeFetchFailed = "error"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_image_relay_requests_total",
			Help: "Total number of image relay requests by outcome",
		},
		[]string{"outcome"},
	)

	upstreamDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storefront_image_relay_upstream_duration_seconds",
			Help:    "Duration of individual upstream image fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	redirectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_image_relay_redirects_total",
			Help: "Total number of upstream redirects followed by the image relay",
		},
	)
)
