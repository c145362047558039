package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the attendance ledger.
type Metrics struct {
	ClockIns         *prometheus.CounterVec
	ClockOuts        prometheus.Counter
	ActiveSessions   prometheus.Gauge
	GeofenceDistance prometheus.Histogram
	ClockInDuration  prometheus.Histogram
	SessionHours     prometheus.Histogram
}

// ClockIn outcome labels.
const (
	OutcomeAccepted = "accepted"
	OutcomeGeofence = "geofence_violation"
	OutcomeConflict = "conflict"
	OutcomeNotFound = "center_not_found"
	OutcomeError    = "error"
)

func New() *Metrics {
	return &Metrics{
		ClockIns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_clock_ins_total",
			Help: "Clock-in attempts by outcome",
		}, []string{"outcome"}),
		ClockOuts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presence_clock_outs_total",
			Help: "Completed clock-outs",
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "presence_active_sessions",
			Help: "Open sessions observed by this instance (incremented on clock-in, decremented on clock-out)",
		}),
		GeofenceDistance: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "presence_clock_in_distance_meters",
			Help:    "Distance between reported position and center at clock-in",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 500, 1000, 5000, 20000},
		}),
		ClockInDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "presence_clock_in_duration_seconds",
			Help:    "Duration of ClockIn operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		SessionHours: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "presence_session_hours",
			Help:    "Worked hours per completed session",
			Buckets: []float64{0.5, 1, 2, 4, 6, 8, 10, 12, 16},
		}),
	}
}

func (m *Metrics) ObserveClockIn(start time.Time, outcome string) {
	m.ClockIns.WithLabelValues(outcome).Inc()
	m.ClockInDuration.Observe(time.Since(start).Seconds())
}
