package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Provider webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	ordersSettled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_settled_total",
			Help: "Orders materialized from succeeded payment intents",
		},
	)
)

func webhookEvents(eventType, outcome string) {
	webhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}
