package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/user/lei-da-rua/internal/interfaces"
	"github.com/user/lei-da-rua/internal/types"
)

// MemoryStore keeps the whole simulation state in process memory.
// It backs tests and local development; production uses SQLStore.
type MemoryStore struct {
	mu sync.RWMutex

	districts    map[string]*types.DistrictState
	events       []*types.DistrictEvent
	activeEvents []*types.ActiveDistrictEvent
	reputation   map[string]*types.ReputationRecord
	repEvents    []*types.ReputationEvent
	audit        []*types.AuditEntry
	pushTargets  map[string]string
}

// Ensure MemoryStore satisfies the interfaces.Store interface
var _ interfaces.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		districts:   make(map[string]*types.DistrictState),
		reputation:  make(map[string]*types.ReputationRecord),
		pushTargets: make(map[string]string),
	}
}

func repKey(actorID, targetType, targetID string) string {
	return actorID + "|" + targetType + "|" + targetID
}

// GetDistrictState retrieves the row for one district
func (m *MemoryStore) GetDistrictState(_ context.Context, districtID string) (*types.DistrictState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.districts[districtID]
	if !exists {
		return nil, &types.NotFoundError{Kind: "district", ID: districtID}
	}
	copied := *state
	return &copied, nil
}

// UpsertDistrictState writes the row for one district
func (m *MemoryStore) UpsertDistrictState(_ context.Context, state *types.DistrictState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *state
	m.districts[state.ID] = &copied
	return nil
}

// AdjustDistrictMetric applies a clamped increment to one metric
func (m *MemoryStore) AdjustDistrictMetric(_ context.Context, districtID, metric string, delta, floor, ceiling int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.districts[districtID]
	if !exists {
		return &types.NotFoundError{Kind: "district", ID: districtID}
	}

	var target *int
	switch metric {
	case "crime":
		target = &state.Metrics.CrimeLevel
	case "police":
		target = &state.Metrics.PolicePresence
	case "property":
		target = &state.Metrics.PropertyValue
	case "business":
		target = &state.Metrics.BusinessHealth
	case "activity":
		target = &state.Metrics.StreetActivity
	case "tension":
		target = &state.Metrics.CrewTension
	default:
		return &types.ValidationError{Field: "metric", Message: metric}
	}

	value := *target + delta
	if value < floor {
		value = floor
	}
	if value > ceiling {
		value = ceiling
	}
	*target = value
	return nil
}

// AppendDistrictEvent stores one immutable district event
func (m *MemoryStore) AppendDistrictEvent(_ context.Context, event *types.DistrictEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *event
	m.events = append(m.events, &copied)
	return nil
}

// UnprocessedEvents returns unfolded events for a district newer than since
func (m *MemoryStore) UnprocessedEvents(_ context.Context, districtID string, since time.Time) ([]*types.DistrictEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []*types.DistrictEvent
	for _, event := range m.events {
		if event.DistrictID == districtID && !event.Processed && !event.CreatedAt.Before(since) {
			copied := *event
			events = append(events, &copied)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

// MarkEventsProcessed flags folded events
func (m *MemoryStore) MarkEventsProcessed(_ context.Context, eventIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		ids[id] = true
	}
	for _, event := range m.events {
		if ids[event.ID] {
			event.Processed = true
		}
	}
	return nil
}

// OpenActiveEvent stores a newly fired timed modifier
func (m *MemoryStore) OpenActiveEvent(_ context.Context, event *types.ActiveDistrictEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *event
	m.activeEvents = append(m.activeEvents, &copied)
	return nil
}

// GetOpenActiveEvent returns the open instance of a (district, type) pair, if any
func (m *MemoryStore) GetOpenActiveEvent(_ context.Context, districtID, eventType string) (*types.ActiveDistrictEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	for i := len(m.activeEvents) - 1; i >= 0; i-- {
		event := m.activeEvents[i]
		if event.DistrictID == districtID && event.EventType == eventType &&
			!event.Ended && event.ExpiresAt.After(now) {
			copied := *event
			return &copied, nil
		}
	}
	return nil, &types.NotFoundError{Kind: "active event", ID: districtID + "/" + eventType}
}

// LastActiveEvent returns the most recent instance regardless of state
func (m *MemoryStore) LastActiveEvent(_ context.Context, districtID, eventType string) (*types.ActiveDistrictEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *types.ActiveDistrictEvent
	for _, event := range m.activeEvents {
		if event.DistrictID != districtID || event.EventType != eventType {
			continue
		}
		if latest == nil || event.StartedAt.After(latest.StartedAt) {
			latest = event
		}
	}
	if latest == nil {
		return nil, &types.NotFoundError{Kind: "active event", ID: districtID + "/" + eventType}
	}
	copied := *latest
	return &copied, nil
}

// OpenActiveEvents returns all open timed modifiers for a district
func (m *MemoryStore) OpenActiveEvents(_ context.Context, districtID string) ([]*types.ActiveDistrictEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var events []*types.ActiveDistrictEvent
	for _, event := range m.activeEvents {
		if event.DistrictID == districtID && !event.Ended && event.ExpiresAt.After(now) {
			copied := *event
			events = append(events, &copied)
		}
	}
	return events, nil
}

// CloseExpiredEvents ends every active event past its expiry
func (m *MemoryStore) CloseExpiredEvents(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	closed := 0
	for _, event := range m.activeEvents {
		if !event.Ended && !event.ExpiresAt.After(now) {
			event.Ended = true
			closed++
		}
	}
	return closed, nil
}

// GetReputation retrieves one actor's opinion record toward one target
func (m *MemoryStore) GetReputation(_ context.Context, actorID, targetType, targetID string) (*types.ReputationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, exists := m.reputation[repKey(actorID, targetType, targetID)]
	if !exists {
		return nil, &types.NotFoundError{Kind: "reputation record", ID: actorID + "/" + targetType + "/" + targetID}
	}
	copied := *record
	return &copied, nil
}

// ApplyReputationDelta performs the clamped read-modify-write of one dimension
func (m *MemoryStore) ApplyReputationDelta(_ context.Context, actorID, targetType, targetID, dimension string, delta, floor, ceiling int) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := repKey(actorID, targetType, targetID)
	record, exists := m.reputation[key]
	if !exists {
		record = &types.ReputationRecord{
			ActorID:    actorID,
			TargetType: targetType,
			TargetID:   targetID,
			Standing:   types.StandingUnknown,
		}
		m.reputation[key] = record
	}

	var target *int
	switch dimension {
	case "respect":
		target = &record.Respect
	case "fear":
		target = &record.Fear
	case "trust":
		target = &record.Trust
	case "heat":
		target = &record.Heat
	default:
		return 0, 0, &types.ValidationError{Field: "dimension", Message: dimension}
	}

	oldValue := *target
	newValue := oldValue + delta
	if newValue < floor {
		newValue = floor
	}
	if newValue > ceiling {
		newValue = ceiling
	}
	*target = newValue
	record.UpdatedAt = time.Now()
	return oldValue, newValue, nil
}

// SetReputationStanding stores the derived standing label
func (m *MemoryStore) SetReputationStanding(_ context.Context, actorID, targetType, targetID, standing string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.reputation[repKey(actorID, targetType, targetID)]
	if !exists {
		return &types.NotFoundError{Kind: "reputation record", ID: actorID + "/" + targetType + "/" + targetID}
	}
	record.Standing = standing
	return nil
}

// AppendReputationEvent stores one immutable reputation audit entry
func (m *MemoryStore) AppendReputationEvent(_ context.Context, event *types.ReputationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *event
	m.repEvents = append(m.repEvents, &copied)
	return nil
}

// ReputationEvents returns the full reputation audit trail, oldest first
func (m *MemoryStore) ReputationEvents() []*types.ReputationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*types.ReputationEvent, 0, len(m.repEvents))
	for _, event := range m.repEvents {
		copied := *event
		events = append(events, &copied)
	}
	return events
}

// AppendAudit stores one operation audit entry
func (m *MemoryStore) AppendAudit(_ context.Context, entry *types.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *entry
	m.audit = append(m.audit, &copied)
	return nil
}

// AuditEntriesSince returns an actor's audit entries newer than since
func (m *MemoryStore) AuditEntriesSince(_ context.Context, actorID string, since time.Time) ([]*types.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []*types.AuditEntry
	for _, entry := range m.audit {
		if entry.ActorID == actorID && !entry.CreatedAt.Before(since) {
			copied := *entry
			entries = append(entries, &copied)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// SetPushTarget links an actor to a WhatsApp phone number
func (m *MemoryStore) SetPushTarget(_ context.Context, actorID, phoneNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pushTargets[actorID] = phoneNumber
	return nil
}

// GetPushTarget returns the phone number linked to an actor
func (m *MemoryStore) GetPushTarget(_ context.Context, actorID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	phoneNumber, exists := m.pushTargets[actorID]
	if !exists {
		return "", &types.NotFoundError{Kind: "push target", ID: actorID}
	}
	return phoneNumber, nil
}

// Close is a no-op for the in-memory store
func (m *MemoryStore) Close() error {
	return nil
}
