package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Funnel metrics
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadpixel_funnel_transitions_total",
			Help: "Total number of funnel step transitions",
		},
		[]string{"event", "status"},
	)

	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadpixel_funnel_sessions_started_total",
			Help: "Total number of funnel sessions started",
		},
	)

	LeadsCaptured = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadpixel_funnel_leads_captured_total",
			Help: "Total number of leads persisted on purchase",
		},
	)

	// Pixel metrics
	PixelEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadpixel_pixel_events_total",
			Help: "Total number of browser pixel instructions by outcome",
		},
		[]string{"event", "status"},
	)

	// Server event delivery metrics
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadpixel_capi_deliveries_total",
			Help: "Total number of server event delivery attempts by outcome",
		},
		[]string{"event", "status"},
	)

	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadpixel_capi_delivery_duration_seconds",
			Help:    "Duration of server event delivery attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ServerEventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadpixel_capi_skipped_total",
			Help: "Server events not built because the operator has no active configuration",
		},
		[]string{"event"},
	)

	// Outbox metrics
	OutboxQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadpixel_outbox_queue_depth",
			Help: "Current depth of the delivery outbox",
		},
	)

	OutboxQueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadpixel_outbox_queue_capacity",
			Help: "Maximum capacity of the delivery outbox",
		},
	)

	OutboxDuplicates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadpixel_outbox_duplicates_total",
			Help: "Server events dropped because their event_id was already delivered",
		},
	)

	DLQEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadpixel_dlq_events_total",
			Help: "Total number of server events dead-lettered",
		},
		[]string{"reason"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadpixel_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"scope"},
	)
)
