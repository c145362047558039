package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks catalog changes.
type Metrics struct {
	CentersCreated     prometheus.Counter
	CentersUpdated     prometheus.Counter
	CentersDeactivated prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		CentersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presence_centers_created_total",
			Help: "Total number of centers registered",
		}),
		CentersUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presence_centers_updated_total",
			Help: "Total number of center updates",
		}),
		CentersDeactivated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presence_centers_deactivated_total",
			Help: "Total number of centers deactivated",
		}),
	}
}
