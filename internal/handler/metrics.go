package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	questsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniquest_quests_started_total",
		Help: "Total number of quests started through the API.",
	})

	clientEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniquest_client_events_total",
		Help: "Total number of telemetry events received from clients.",
	})

	apiErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miniquest_api_errors_total",
			Help: "Total number of API error responses by status code.",
		},
		[]string{"status"},
	)
)
