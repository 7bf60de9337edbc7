package notify

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_events_published_total",
			Help: "Total events published to the notification center",
		},
		[]string{"type"},
	)
	Deliveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_deliveries_total",
			Help: "Total event deliveries handed to subscriber sinks",
		},
	)
	DroppedSubscribers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_dropped_subscribers_total",
			Help: "Total subscribers dropped because their sink was unresponsive",
		},
	)
	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_subscribers",
			Help: "Currently registered subscribers",
		},
	)
)

func init() {
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(Deliveries)
	prometheus.MustRegister(DroppedSubscribers)
	prometheus.MustRegister(Subscribers)
}
