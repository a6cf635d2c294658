package interfaces

import (
	"context"
	"time"

	"github.com/user/lei-da-rua/internal/types"
)

// Store defines the persistence contract of the simulation core.
// Implementations must provide row-level atomic increments so concurrent
// writers to the same row never lose updates.
type Store interface {
	// District state
	GetDistrictState(ctx context.Context, districtID string) (*types.DistrictState, error)
	UpsertDistrictState(ctx context.Context, state *types.DistrictState) error
	AdjustDistrictMetric(ctx context.Context, districtID, metric string, delta, floor, ceiling int) error

	// District events (append-only telemetry)
	AppendDistrictEvent(ctx context.Context, event *types.DistrictEvent) error
	UnprocessedEvents(ctx context.Context, districtID string, since time.Time) ([]*types.DistrictEvent, error)
	MarkEventsProcessed(ctx context.Context, eventIDs []string) error

	// Threshold-triggered timed modifiers
	OpenActiveEvent(ctx context.Context, event *types.ActiveDistrictEvent) error
	GetOpenActiveEvent(ctx context.Context, districtID, eventType string) (*types.ActiveDistrictEvent, error)
	LastActiveEvent(ctx context.Context, districtID, eventType string) (*types.ActiveDistrictEvent, error)
	OpenActiveEvents(ctx context.Context, districtID string) ([]*types.ActiveDistrictEvent, error)
	CloseExpiredEvents(ctx context.Context, now time.Time) (int, error)

	// Reputation
	GetReputation(ctx context.Context, actorID, targetType, targetID string) (*types.ReputationRecord, error)
	ApplyReputationDelta(ctx context.Context, actorID, targetType, targetID, dimension string, delta, floor, ceiling int) (oldValue, newValue int, err error)
	SetReputationStanding(ctx context.Context, actorID, targetType, targetID, standing string) error
	AppendReputationEvent(ctx context.Context, event *types.ReputationEvent) error

	// Operation audit
	AppendAudit(ctx context.Context, entry *types.AuditEntry) error
	AuditEntriesSince(ctx context.Context, actorID string, since time.Time) ([]*types.AuditEntry, error)

	// WhatsApp push routing
	SetPushTarget(ctx context.Context, actorID, phoneNumber string) error
	GetPushTarget(ctx context.Context, actorID string) (string, error)

	Close() error
}

// Broadcaster fans one typed payload out to a channel scope
type Broadcaster interface {
	Broadcast(payload types.BroadcastPayload) error
}

// PushSender delivers an out-of-band text notification to a player's phone
type PushSender interface {
	SendPush(phoneNumber, message string) (string, error)
}
