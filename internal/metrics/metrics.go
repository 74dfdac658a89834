// Package metrics exposes Prometheus counters for authentication activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts counts authentication attempts partitioned by outcome.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crmauth",
		Name:      "login_attempts_total",
		Help:      "Authentication attempts by outcome.",
	}, []string{"outcome"})

	// Lockouts counts accounts locked after repeated failures.
	Lockouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crmauth",
		Name:      "lockouts_total",
		Help:      "Accounts locked out after repeated failed logins.",
	})

	// TokensIssued counts issued tokens partitioned by type.
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crmauth",
		Name:      "tokens_issued_total",
		Help:      "Tokens issued by type.",
	}, []string{"type"})

	// TokensRevoked counts revoked refresh tokens.
	TokensRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crmauth",
		Name:      "tokens_revoked_total",
		Help:      "Refresh tokens revoked.",
	})

	// Refreshes counts access-token refresh attempts by outcome.
	Refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crmauth",
		Name:      "refreshes_total",
		Help:      "Access-token refresh attempts by outcome.",
	}, []string{"outcome"})
)

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)
