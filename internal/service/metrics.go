package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn outcome labels.
const (
	turnOutcomeAdvanced = "advanced"
	turnOutcomeReprompt = "reprompt"
	turnOutcomeEnded    = "ended"
	turnOutcomeRedirect = "safety_redirect"
	turnOutcomeFailed   = "failed"
)

// Safety stage labels.
const (
	safetyStageInput  = "input"
	safetyStageOutput = "output"
)

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miniquest_turns_total",
			Help: "Total number of processed quest turns by outcome.",
		},
		[]string{"outcome"},
	)
	safetyBlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miniquest_safety_blocks_total",
			Help: "Total number of texts blocked by the safety filter.",
		},
		[]string{"stage"},
	)
	generationFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniquest_generation_fallbacks_total",
		Help: "Total number of narrations replaced by the generation fallback.",
	})
	telemetryDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniquest_telemetry_events_dropped_total",
		Help: "Total number of telemetry events dropped because the buffer was full or closed.",
	})
	storeRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miniquest_store_retries_total",
			Help: "Total number of retried quest store operations.",
		},
		[]string{"operation"},
	)
)
