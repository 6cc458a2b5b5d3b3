// Package pipeline validates, sanitizes and enriches submitted event
// batches. Stages run in order per event and fail fast: a rejected event
// skips the remaining stages, but never sinks its batch siblings.
package pipeline

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/flowmetric/ingest-gateway/internal/config"
	"github.com/flowmetric/ingest-gateway/internal/models"
)

// storeTimeLayout is the analytics store's text timestamp form:
// space-separated, millisecond precision, no zone marker.
const storeTimeLayout = "2006-01-02 15:04:05.000"

// truncatedMarker replaces JSON-bearing field values that exceed their size
// ceiling. Truncation is a warning, not a rejection.
var truncatedMarker = map[string]any{"_truncated": true}

// Result is the outcome of processing one batch. Event order is preserved in
// Accepted; Rejected and Warnings refer to indices of the submitted batch.
type Result struct {
	Accepted []models.EnrichedEvent
	Rejected []models.RejectedEvent
	Warnings []models.EventWarning
}

// Pipeline applies the ingestion stages with the configured limits.
type Pipeline struct {
	cfg config.Config
	now func() time.Time
}

func New(cfg config.Config) *Pipeline {
	return &Pipeline{cfg: cfg, now: time.Now}
}

// Process runs validation, field-limit enforcement, PII redaction and
// enrichment over the raw batch elements under the caller's identity.
func (p *Pipeline) Process(raw []json.RawMessage, authCtx models.AuthContext) Result {
	var res Result
	seen := make(map[string]struct{}, len(raw))

	for i, msg := range raw {
		ev, reason := p.validate(msg, authCtx, seen)
		if reason != "" {
			res.Rejected = append(res.Rejected, models.RejectedEvent{Index: i, Reason: reason})
			continue
		}

		reason = p.enforceLimits(ev, i, &res.Warnings)
		if reason != "" {
			res.Rejected = append(res.Rejected, models.RejectedEvent{Index: i, Reason: reason})
			continue
		}

		p.redact(ev)

		res.Accepted = append(res.Accepted, p.enrich(ev, authCtx))
	}

	return res
}

// validate decodes and structurally checks one event. It returns a rejection
// reason, or "" and the decoded event.
func (p *Pipeline) validate(msg json.RawMessage, authCtx models.AuthContext, seen map[string]struct{}) (*models.Event, string) {
	if len(msg) > p.cfg.MaxEventBytes {
		return nil, fmt.Sprintf("event exceeds %d bytes", p.cfg.MaxEventBytes)
	}

	var ev models.Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		return nil, "not a valid event object"
	}

	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	if _, dup := seen[ev.EventID]; dup {
		return nil, "duplicate event_id within batch"
	}
	seen[ev.EventID] = struct{}{}

	if ev.EventType == "" {
		return nil, "event_type required"
	}
	if !models.ValidEventType(ev.EventType) {
		return nil, fmt.Sprintf("unknown event_type %q", ev.EventType)
	}

	if ev.Timestamp == "" {
		return nil, "timestamp required"
	}
	if _, err := time.Parse(time.RFC3339, ev.Timestamp); err != nil {
		return nil, "timestamp must be RFC3339"
	}

	switch ev.Source {
	case "":
		ev.Source = authCtx.Source
	case models.SourceServer, models.SourceWidget:
	default:
		return nil, fmt.Sprintf("unknown source %q", ev.Source)
	}

	return &ev, ""
}

// enforceLimits rejects oversize identifier fields and truncates oversize
// JSON-bearing fields in place, recording warnings.
func (p *Pipeline) enforceLimits(ev *models.Event, index int, warnings *[]models.EventWarning) string {
	switch {
	case utf8.RuneCountInString(ev.EventName) > p.cfg.MaxNameChars:
		return fmt.Sprintf("event_name exceeds %d characters", p.cfg.MaxNameChars)
	case utf8.RuneCountInString(ev.UserID) > p.cfg.MaxUserIDChars:
		return fmt.Sprintf("user_id exceeds %d characters", p.cfg.MaxUserIDChars)
	case utf8.RuneCountInString(ev.TraceID) > p.cfg.MaxTraceChars:
		return fmt.Sprintf("trace_id exceeds %d characters", p.cfg.MaxTraceChars)
	case utf8.RuneCountInString(ev.SessionID) > p.cfg.MaxSessionChars:
		return fmt.Sprintf("session_id exceeds %d characters", p.cfg.MaxSessionChars)
	}

	warn := func(field string, limit int) {
		*warnings = append(*warnings, models.EventWarning{
			Index:   index,
			Field:   field,
			Warning: fmt.Sprintf("%s exceeded %d bytes and was truncated", field, limit),
		})
	}

	if jsonSize(ev.Metadata) > p.cfg.MetadataLimit {
		ev.Metadata = map[string]any{"_truncated": true}
		warn("metadata", p.cfg.MetadataLimit)
	}
	if jsonSize(ev.UserTraits) > p.cfg.TraitsLimit {
		ev.UserTraits = truncatedMarker
		warn("user_traits", p.cfg.TraitsLimit)
	}
	if jsonSize(ev.ToolInput) > p.cfg.ToolInputLimit {
		ev.ToolInput = truncatedMarker
		warn("tool_input", p.cfg.ToolInputLimit)
	}
	if jsonSize(ev.Intent) > p.cfg.IntentLimit {
		ev.Intent = truncatedMarker
		warn("intent", p.cfg.IntentLimit)
	}
	if len(ev.ErrorMessage) > p.cfg.ErrorMessageLimit {
		// Back off to a rune boundary so the cut never splits a multi-byte
		// character.
		cut := p.cfg.ErrorMessageLimit
		for cut > 0 && !utf8.RuneStart(ev.ErrorMessage[cut]) {
			cut--
		}
		ev.ErrorMessage = ev.ErrorMessage[:cut] + "…"
		warn("error_message", p.cfg.ErrorMessageLimit)
	}

	return ""
}

func jsonSize(v any) int {
	if v == nil {
		return 0
	}
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(b)
}

// redact walks every string-bearing field. Container fields come back as
// fresh copies; the submitted containers are never mutated.
func (p *Pipeline) redact(ev *models.Event) {
	ev.EventName, _ = Redact(ev.EventName)
	ev.ErrorMessage, _ = Redact(ev.ErrorMessage)

	if ev.Metadata != nil {
		v, _ := RedactValue(ev.Metadata)
		ev.Metadata = v.(map[string]any)
	}
	if ev.UserTraits != nil {
		ev.UserTraits, _ = RedactValue(ev.UserTraits)
	}
	if ev.ToolInput != nil {
		ev.ToolInput, _ = RedactValue(ev.ToolInput)
	}
	if ev.Intent != nil {
		ev.Intent, _ = RedactValue(ev.Intent)
	}
}

// enrich stamps the identity and normalizes the row for the analytics store.
// Object values bound to flat String columns are serialized to JSON strings;
// the store's wire format silently drops non-scalar values otherwise.
func (p *Pipeline) enrich(ev *models.Event, authCtx models.AuthContext) models.EnrichedEvent {
	ts, _ := time.Parse(time.RFC3339, ev.Timestamp)

	traceID := ev.TraceID
	if traceID == "" {
		traceID = authCtx.TraceID
	}
	sessionID := ev.SessionID
	if sessionID == "" {
		sessionID = authCtx.SessionID
	}

	out := models.EnrichedEvent{
		EventID:            ev.EventID,
		EventType:          ev.EventType,
		TraceID:            traceID,
		SessionID:          sessionID,
		Timestamp:          ts.UTC().Format(storeTimeLayout),
		Source:             ev.Source,
		EventName:          ev.EventName,
		WorkspaceID:        authCtx.WorkspaceID,
		ProjectID:          authCtx.ProjectID,
		IngestedAt:         p.now().UTC().Format(storeTimeLayout),
		Metadata:           flattenJSON(ev.Metadata, "{}"),
		Status:             ev.Status,
		ErrorType:          ev.ErrorType,
		ErrorMessage:       ev.ErrorMessage,
		ConversionCurrency: ev.ConversionCurrency,
		UserID:             ev.UserID,
		UserTraits:         flattenJSON(ev.UserTraits, ""),
		ToolName:           ev.ToolName,
		ToolInput:          flattenJSON(ev.ToolInput, ""),
		Intent:             flattenJSON(ev.Intent, ""),
	}
	if ev.LatencyMS != nil {
		out.LatencyMS = *ev.LatencyMS
	}
	if ev.ConversionValue != nil {
		out.ConversionValue = *ev.ConversionValue
	}
	return out
}

// flattenJSON converts a value destined for a flat String column. Strings
// pass through; objects and arrays are serialized; nil becomes empty.
func flattenJSON(v any, empty string) string {
	switch x := v.(type) {
	case nil:
		return empty
	case map[string]any:
		if x == nil {
			return empty
		}
		b, err := json.Marshal(x)
		if err != nil {
			return empty
		}
		return string(b)
	case string:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return empty
		}
		return string(b)
	}
}
