package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for EventsTotal
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// EngagementMetrics tracks the view/share/endorsement pipeline
type EngagementMetrics struct {
	EventsTotal     prometheus.CounterVec
	RejectionsTotal prometheus.CounterVec

	LedgerOperationDuration prometheus.HistogramVec
	LeaderboardDuration     prometheus.HistogramVec

	FanoutDelivered prometheus.Counter
	FanoutDropped   prometheus.Counter
	FanoutPanics    prometheus.Counter

	RetentionPurged prometheus.CounterVec
}

func newEngagementMetrics() *EngagementMetrics {
	return &EngagementMetrics{
		EventsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engagement_events_total",
				Help: "Engagement events processed, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		RejectionsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engagement_rejections_total",
				Help: "Rejected engagement events, by kind and reason",
			},
			[]string{"kind", "reason"},
		),
		LedgerOperationDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Ledger store operation latency in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1},
			},
			[]string{"op"},
		),
		LeaderboardDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leaderboard_compute_duration_seconds",
				Help:    "Time to rank the leaderboard in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"period"},
		),
		FanoutDelivered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fanout_delivered_total",
				Help: "Engagement updates delivered to listeners",
			},
		),
		FanoutDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fanout_dropped_total",
				Help: "Engagement updates dropped because the fan-out buffer was full",
			},
		),
		FanoutPanics: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fanout_listener_panics_total",
				Help: "Listener panics recovered by the fan-out worker",
			},
		),
		RetentionPurged: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retention_purged_events_total",
				Help: "Ledger events removed by the retention sweep",
			},
			[]string{"kind"},
		),
	}
}

// ObserveLedger records how long a ledger operation took
func ObserveLedger(op string, start time.Time) {
	Get().Engagement.LedgerOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// RecordEvent counts one processed engagement event
func RecordEvent(kind, outcome string) {
	Get().Engagement.EventsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordRejection counts a rejected event and its reason
func RecordRejection(kind, reason string) {
	m := Get().Engagement
	m.EventsTotal.WithLabelValues(kind, OutcomeRejected).Inc()
	m.RejectionsTotal.WithLabelValues(kind, reason).Inc()
}
