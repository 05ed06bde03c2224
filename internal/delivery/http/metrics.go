package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики Prometheus HTTP слоя
var (
	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wove_registrations_total",
		Help: "Total number of successful user registrations.",
	})
	tokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wove_token_verifications_total",
			Help: "Total number of access token verifications.",
		},
		[]string{"result"}, // "success", "failure"
	)
	segmentsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wove_segments_created_total",
			Help: "Total number of story segments created through the API.",
		},
		[]string{"source"}, // "human", "ai", "branch"
	)
	rateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wove_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter.",
		},
		[]string{"tier"}, // "anonymous", "authenticated", "auth_route"
	)
)
