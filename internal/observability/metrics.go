package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socbot_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// LinkAttempts counts link requests and redemptions by outcome code.
	LinkAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socbot_link_attempts_total",
		Help: "Total membership link operations by step and outcome",
	}, []string{"step", "outcome"})

	// CodesIssued counts verification codes issued.
	CodesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socbot_verification_codes_issued_total",
		Help: "Total verification codes issued",
	})

	// RoleSyncFailures counts non-fatal role synchronization failures.
	RoleSyncFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socbot_role_sync_failures_total",
		Help: "Total role grant/revoke failures by code",
	}, []string{"code"})

	// MetadataPushes counts role-connection metadata pushes by outcome.
	MetadataPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socbot_metadata_pushes_total",
		Help: "Total role connection metadata pushes by outcome",
	}, []string{"outcome"})

	// TokenExchanges counts OAuth refresh-token exchanges by outcome.
	TokenExchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socbot_token_exchanges_total",
		Help: "Total OAuth refresh token exchanges by outcome",
	}, []string{"outcome"})
)
