package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miniquest_ai_requests_total",
			Help: "Total number of requests to the text generation backend.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "miniquest_ai_request_duration_seconds",
			Help:    "Histogram of text generation request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "miniquest_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts (estimated when the backend omits usage).",
			Buckets: prometheus.LinearBuckets(50, 50, 20), // 50, 100, ..., 1000
		},
		[]string{"model", "source"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "miniquest_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(25, 25, 12), // 25, 50, ..., 300
		},
		[]string{"model"},
	)
)

const (
	statusSuccess       = "success"
	statusError         = "error"
	statusEmptyResponse = "error_empty_response"
	statusTimeout       = "timeout"
)
