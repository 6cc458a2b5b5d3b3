package models

import "encoding/json"

// Stable machine-readable error codes. Clients branch on these, not on the
// HTTP status.
const (
	CodeUnauthorized          = "unauthorized"
	CodeInvalidAuthorization  = "invalid_authorization"
	CodeRateLimited           = "rate_limited"
	CodePayloadTooLarge       = "payload_too_large"
	CodeInvalidPayload        = "invalid_payload"
	CodeMissingField          = "missing_field"
	CodeTokenExchangeRejected = "token_exchange_rejected"
	CodeServerBusy            = "server_busy"
	CodeInternalError         = "internal_error"
)

// IngestRequest is the POST /v1/events envelope. Events are kept raw so a
// malformed element cannot sink the whole batch during decoding.
type IngestRequest struct {
	Events []json.RawMessage `json:"events"`
}

// RejectedEvent identifies a batch element that failed validation.
type RejectedEvent struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// EventWarning records a non-fatal per-field adjustment (truncation).
type EventWarning struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Warning string `json:"warning"`
}

// IngestResponse is returned by POST /v1/events with status 200 (all
// accepted), 207 (mixed) or 400 (all rejected).
type IngestResponse struct {
	Accepted int             `json:"accepted"`
	Rejected []RejectedEvent `json:"rejected"`
	Warnings []EventWarning  `json:"warnings,omitempty"`
}

// WidgetTokenRequest is the POST /v1/widget-tokens payload.
type WidgetTokenRequest struct {
	TraceID   string `json:"traceId"`
	SessionID string `json:"sessionId"`
}

// WidgetTokenResponse carries a freshly minted widget token.
type WidgetTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error        string `json:"error"`
	Code         string `json:"code"`
	RetryAfterMS int64  `json:"retryAfterMs,omitempty"`
}
