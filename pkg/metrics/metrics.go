package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all pipeline metrics
type Metrics struct {
	// Delivery metrics
	RemindersSent       prometheus.Counter
	RemindersRetried    prometheus.Counter
	RemindersFailed     prometheus.Counter
	RemindersDeadLetter prometheus.Counter
	RemindersIgnored    prometheus.Counter
	DeliveryLatency     *prometheus.HistogramVec

	// Dispatcher metrics
	DispatchEnqueued prometheus.Counter
	DispatchSkipped  prometheus.Counter
	DispatchRuns     prometheus.Counter

	// Queue metrics
	QueueDepth prometheus.Gauge
	DLQDepth   prometheus.Gauge
	LockMisses prometheus.Counter

	// Infra metrics
	DatabaseOperations *prometheus.CounterVec
	RedisOperations    *prometheus.CounterVec
}

// New creates all pipeline metrics on the default registry.
func New(namespace, subsystem string) *Metrics {
	return NewWith(prometheus.DefaultRegisterer, namespace, subsystem)
}

// NewWith creates all pipeline metrics on the given registerer. Tests pass
// a fresh registry to avoid duplicate registration.
func NewWith(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RemindersSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reminders_sent_total",
			Help:      "Total number of reminders delivered successfully",
		}),
		RemindersRetried: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reminders_retried_total",
			Help:      "Total number of delivery attempts rescheduled for retry",
		}),
		RemindersFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reminders_failed_total",
			Help:      "Total number of reminders failed permanently",
		}),
		RemindersDeadLetter: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reminders_dead_letter_total",
			Help:      "Total number of reminders moved to the dead-letter queue",
		}),
		RemindersIgnored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reminders_ignored_total",
			Help:      "Total number of stale queue items ignored by the worker",
		}),
		DeliveryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "delivery_duration_seconds",
			Help:      "Time spent on a single delivery attempt",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		}, []string{"provider"}),

		DispatchEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_enqueued_total",
			Help:      "Total number of recipients enqueued by the dispatcher",
		}),
		DispatchSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_skipped_total",
			Help:      "Total number of recipients skipped during dispatch",
		}),
		DispatchRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_runs_total",
			Help:      "Total number of dispatcher batch runs",
		}),

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_depth",
			Help:      "Current number of items in the main reminder queue",
		}),
		DLQDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dlq_depth",
			Help:      "Current number of entries in the dead-letter queue",
		}),
		LockMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lock_misses_total",
			Help:      "Total number of queue items skipped because the recipient lock was held",
		}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		RedisOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "redis_operations_total",
			Help:      "Total number of Redis operations",
		}, []string{"operation", "status"}),
	}
}
