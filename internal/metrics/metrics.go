package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var PushAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "push_attempts_total",
		Help: "Push delivery attempts by outcome (delivered, gone, transient)",
	},
	[]string{"outcome"},
)

var PushDispatchDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "push_dispatch_duration_seconds",
		Help:    "Wall time of a full dispatch batch, fan-out to fan-in",
		Buckets: prometheus.DefBuckets,
	},
)

var PushSubscriptionsPrunedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "push_subscriptions_pruned_total",
		Help: "Subscriptions removed after the push service reported them gone",
	},
)

var NotificationsCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "notifications_created_total",
		Help: "Notifications persisted to the board",
	},
)
