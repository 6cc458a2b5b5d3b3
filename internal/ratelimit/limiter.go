// Package ratelimit provides token-bucket admission control for the gateway.
// Two scopes exist: per-credential (after authentication) and per-source
// address (before authentication). Deployments that delegate rate limiting
// upstream run the no-op limiter.
package ratelimit

import (
	"context"
	"time"
)

// Scope names an independently parameterized bucket namespace.
type Scope string

const (
	// ScopeKey limits authenticated traffic per credential.
	ScopeKey Scope = "key"
	// ScopeAddr limits pre-authentication traffic per source address.
	ScopeAddr Scope = "addr"
)

// Limit parameterizes one scope: sustained tokens per second and the burst
// ceiling a bucket can accumulate.
type Limit struct {
	Rate  float64
	Burst float64
}

// Decision is the outcome of one consumption attempt. RetryAfter is set only
// on denial and tells the caller when enough tokens will exist.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter admits or rejects a request charged against (scope, key).
type Limiter interface {
	Allow(ctx context.Context, scope Scope, key string, cost float64) (Decision, error)
}

// Noop admits everything. Used when rate limiting is handled upstream.
type Noop struct{}

func (Noop) Allow(context.Context, Scope, string, float64) (Decision, error) {
	return Decision{Allowed: true}, nil
}
