package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for batch revalidation.
type Metrics struct {
	Outcomes  *prometheus.CounterVec
	BatchSize prometheus.Histogram
}

// Outcome labels.
const (
	OutcomeValid   = "valid"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_revalidation_outcomes_total",
			Help: "Revalidated sessions by outcome",
		}, []string{"outcome"}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "presence_revalidation_batch_size",
			Help:    "Number of session ids per revalidation request",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
	}
}
