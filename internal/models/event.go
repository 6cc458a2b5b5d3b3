package models

// Event types accepted by POST /v1/events. Anything else is rejected
// per-event during validation.
const (
	EventTrack      = "track"
	EventToolCall   = "tool_call"
	EventConversion = "conversion"
	EventIdentify   = "identify"
	EventError      = "error"
	EventSession    = "session"
)

// Source tags. Widget events arrive via short-lived tokens, server events
// via long-lived API keys.
const (
	SourceServer = "server"
	SourceWidget = "widget"
)

// ValidEventType reports whether t is a member of the event-type enumeration.
func ValidEventType(t string) bool {
	switch t {
	case EventTrack, EventToolCall, EventConversion, EventIdentify, EventError, EventSession:
		return true
	}
	return false
}

// Event is a single submitted telemetry event, pre-enrichment.
//
// metadata, user_traits, tool_input and intent map to flat String columns in
// the analytics store; object or array values are serialized to JSON strings
// during enrichment.
type Event struct {
	EventID            string         `json:"event_id"`
	EventType          string         `json:"event_type"`
	TraceID            string         `json:"trace_id,omitempty"`
	SessionID          string         `json:"session_id,omitempty"`
	Timestamp          string         `json:"timestamp"`
	Source             string         `json:"source,omitempty"`
	EventName          string         `json:"event_name,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	LatencyMS          *float64       `json:"latency_ms,omitempty"`
	Status             string         `json:"status,omitempty"`
	ErrorType          string         `json:"error_type,omitempty"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	ConversionValue    *float64       `json:"conversion_value,omitempty"`
	ConversionCurrency string         `json:"conversion_currency,omitempty"`
	UserID             string         `json:"user_id,omitempty"`
	UserTraits         any            `json:"user_traits,omitempty"`
	ToolName           string         `json:"tool_name,omitempty"`
	ToolInput          any            `json:"tool_input,omitempty"`
	Intent             any            `json:"intent,omitempty"`
}

// EnrichedEvent is the row shape written to the analytics store: the
// submitted event plus the identifiers stamped by the gateway. String fields
// holding JSON carry serialized values; timestamps use the store's
// space-separated text form without a zone marker.
type EnrichedEvent struct {
	EventID            string  `ch:"event_id" json:"event_id"`
	EventType          string  `ch:"event_type" json:"event_type"`
	TraceID            string  `ch:"trace_id" json:"trace_id"`
	SessionID          string  `ch:"session_id" json:"session_id"`
	Timestamp          string  `ch:"timestamp" json:"timestamp"`
	Source             string  `ch:"source" json:"source"`
	EventName          string  `ch:"event_name" json:"event_name"`
	WorkspaceID        string  `ch:"workspace_id" json:"workspace_id"`
	ProjectID          string  `ch:"project_id" json:"project_id"`
	IngestedAt         string  `ch:"ingested_at" json:"ingested_at"`
	Metadata           string  `ch:"metadata" json:"metadata"`
	LatencyMS          float64 `ch:"latency_ms" json:"latency_ms"`
	Status             string  `ch:"status" json:"status"`
	ErrorType          string  `ch:"error_type" json:"error_type"`
	ErrorMessage       string  `ch:"error_message" json:"error_message"`
	ConversionValue    float64 `ch:"conversion_value" json:"conversion_value"`
	ConversionCurrency string  `ch:"conversion_currency" json:"conversion_currency"`
	UserID             string  `ch:"user_id" json:"user_id"`
	UserTraits         string  `ch:"user_traits" json:"user_traits"`
	ToolName           string  `ch:"tool_name" json:"tool_name"`
	ToolInput          string  `ch:"tool_input" json:"tool_input"`
	Intent             string  `ch:"intent" json:"intent"`
}

// AuthContext is the identity attached to a request after authentication.
// TraceID/SessionID are set only when the caller presented a widget token.
// RateKey identifies the individual credential for per-credential rate
// buckets: the key's lookup hash for API keys, a token digest for widget
// tokens. Distinct credentials of one project never share a bucket.
type AuthContext struct {
	WorkspaceID string
	ProjectID   string
	Source      string
	TraceID     string
	SessionID   string
	RateKey     string
}
