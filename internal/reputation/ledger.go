package reputation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/user/lei-da-rua/internal/interfaces"
	"github.com/user/lei-da-rua/internal/types"
	"go.uber.org/zap"
)

// Dimension bounds: heat cannot go negative, the rest are symmetric
const (
	dimensionCeiling = 100
	dimensionFloor   = -100
	heatFloor        = 0
)

var validTargetTypes = map[string]bool{
	types.TargetFaction:  true,
	types.TargetDistrict: true,
	types.TargetPlayer:   true,
	types.TargetCrew:     true,
}

// Ledger owns all reputation values. Modify is the only code path that
// ever changes a score; every change leaves an immutable audit event.
type Ledger struct {
	store  interfaces.Store
	logger *zap.Logger
}

// NewLedger creates a reputation ledger
func NewLedger(store interfaces.Store, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, logger: logger}
}

// Modify applies the supplied dimension deltas to one (actor, target) record,
// clamping each dimension and appending an audit event per touched dimension.
// The record is created lazily on first write. Returns the new record with
// its derived standing.
func (l *Ledger) Modify(ctx context.Context, actorID, targetType, targetID string, delta types.ReputationDelta, reason, relatedActorID string) (*types.ReputationRecord, error) {
	if actorID == "" {
		return nil, &types.ValidationError{Field: "actor_id", Message: "empty"}
	}
	if targetID == "" {
		return nil, &types.ValidationError{Field: "target_id", Message: "empty"}
	}
	if !validTargetTypes[targetType] {
		return nil, &types.ValidationError{Field: "target_type", Message: targetType}
	}

	// Nothing supplied, nothing touched
	if delta.IsZero() {
		return l.Get(ctx, actorID, targetType, targetID)
	}

	changes := []struct {
		dimension string
		delta     int
		floor     int
	}{
		{"respect", delta.Respect, dimensionFloor},
		{"fear", delta.Fear, dimensionFloor},
		{"trust", delta.Trust, dimensionFloor},
		{"heat", delta.Heat, heatFloor},
	}

	for _, change := range changes {
		if change.delta == 0 {
			continue
		}
		oldValue, newValue, err := l.store.ApplyReputationDelta(ctx,
			actorID, targetType, targetID,
			change.dimension, change.delta, change.floor, dimensionCeiling)
		if err != nil {
			return nil, err
		}

		event := &types.ReputationEvent{
			ID:             uuid.New().String(),
			ActorID:        actorID,
			TargetType:     targetType,
			TargetID:       targetID,
			Dimension:      change.dimension,
			OldValue:       oldValue,
			NewValue:       newValue,
			Delta:          change.delta,
			Clamped:        newValue != oldValue+change.delta,
			Reason:         reason,
			RelatedActorID: relatedActorID,
			CreatedAt:      time.Now(),
		}
		if err := l.store.AppendReputationEvent(ctx, event); err != nil {
			return nil, err
		}
	}

	record, err := l.store.GetReputation(ctx, actorID, targetType, targetID)
	if err != nil {
		return nil, err
	}
	record.Standing = ComputeStanding(record.Respect, record.Fear, record.Trust)
	if err := l.store.SetReputationStanding(ctx, actorID, targetType, targetID, record.Standing); err != nil {
		return nil, err
	}
	return record, nil
}

// Get returns the current record, or a zero-valued baseline when the actor
// has never interacted with the target
func (l *Ledger) Get(ctx context.Context, actorID, targetType, targetID string) (*types.ReputationRecord, error) {
	record, err := l.store.GetReputation(ctx, actorID, targetType, targetID)
	if err != nil {
		var notFound *types.NotFoundError
		if errors.As(err, &notFound) {
			return &types.ReputationRecord{
				ActorID:    actorID,
				TargetType: targetType,
				TargetID:   targetID,
				Standing:   types.StandingUnknown,
			}, nil
		}
		return nil, err
	}
	record.Standing = ComputeStanding(record.Respect, record.Fear, record.Trust)
	return record, nil
}

// ComputeStanding derives the qualitative label from the three social
// dimensions. Bands are evaluated lowest total first; the first matching
// rule wins, and the exact boundaries are a gameplay contract.
func ComputeStanding(respect, fear, trust int) string {
	total := respect + fear + trust
	switch {
	case total <= -150:
		return types.StandingHated
	case total <= -60 && fear > respect:
		return types.StandingNotorious
	case total <= -60:
		return types.StandingHated
	case total < 40:
		return types.StandingUnknown
	case total < 100:
		return types.StandingKnown
	case total >= 240:
		return types.StandingLegendary
	case fear >= 60 && fear > respect*2:
		return types.StandingFeared
	case trust >= 70:
		return types.StandingTrusted
	case respect >= 70 && respect >= fear:
		return types.StandingRespected
	default:
		return types.StandingKnown
	}
}
