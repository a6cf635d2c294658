package types

import (
	"encoding/json"
	"time"
)

// Audit outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeDuplicate = "duplicate"
)

// Broadcast scopes
const (
	ScopeActor    = "actor"
	ScopeCrew     = "crew"
	ScopeDistrict = "district"
	ScopeGlobal   = "global"
)

// Intent is one client-submitted mutating action.
// OperationID is caller-supplied and opaque; when empty, idempotency
// is skipped and every call executes independently.
type Intent struct {
	OperationID string          `json:"operation_id,omitempty"`
	Type        string          `json:"type"`
	Params      json.RawMessage `json:"params,omitempty"`
}

// OperationResult is the outcome of one processed intent
type OperationResult struct {
	OperationID string `json:"operation_id,omitempty"`
	Success     bool   `json:"success"`
	Duplicate   bool   `json:"duplicate"`
	Data        any    `json:"data,omitempty"`
	Error       string `json:"error,omitempty"`
}

// AuditEntry records one processed intent
type AuditEntry struct {
	ID          string          `json:"id"`
	OperationID string          `json:"operation_id,omitempty"`
	ActorID     string          `json:"actor_id"`
	IntentType  string          `json:"intent_type"`
	Params      json.RawMessage `json:"params,omitempty"`
	Outcome     string          `json:"outcome"`
	Detail      string          `json:"detail,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// BroadcastContext tells the router which crew and district an intent
// concerns so scoped payloads reach the right sessions
type BroadcastContext struct {
	CrewID     string `json:"crew_id,omitempty"`
	DistrictID string `json:"district_id,omitempty"`
}

// BroadcastPayload is one typed message fanned out to connected sessions
type BroadcastPayload struct {
	Scope   string `json:"scope"`
	ScopeID string `json:"scope_id,omitempty"`
	Type    string `json:"type"`
	Body    any    `json:"body"`
}

// SuspicionReport is the advisory result of the suspicious activity check
type SuspicionReport struct {
	ActorID        string    `json:"actor_id"`
	WindowStart    time.Time `json:"window_start"`
	Operations     int       `json:"operations"`
	Duplicates     int       `json:"duplicates"`
	Failures       int       `json:"failures"`
	DuplicateRatio float64   `json:"duplicate_ratio"`
	FailureRatio   float64   `json:"failure_ratio"`
	Flagged        bool      `json:"flagged"`
	Reason         string    `json:"reason,omitempty"`
}
