package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики регистрируются в prometheus.DefaultRegisterer, /metrics отдает ginprometheus.
var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_segment_ai_requests_total",
			Help: "Total number of AI provider calls, partitioned by provider, model and status.",
		},
		[]string{"provider", "model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_segment_ai_request_duration_seconds",
			Help:    "Duration of AI provider calls.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)
	aiTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_segment_ai_tokens_total",
			Help: "Tokens consumed by AI provider calls, partitioned by kind (prompt, completion).",
		},
		[]string{"provider", "kind"},
	)
	fallbackActivations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "story_segment_fallback_activations_total",
			Help: "Number of requests where the fallback provider was attempted.",
		},
	)
	choiceFallbackFills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_segment_choice_fallback_fills_total",
			Help: "Choices filled from the contextual fallback table, partitioned by rule.",
		},
		[]string{"rule"},
	)
	pipelineRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_segment_pipeline_requests_total",
			Help: "Segment generation requests, partitioned by outcome and the state that produced it.",
		},
		[]string{"outcome", "state"},
	)
)
