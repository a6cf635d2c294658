package district

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/user/lei-da-rua/config"
	"github.com/user/lei-da-rua/internal/store"
	"github.com/user/lei-da-rua/internal/types"
	"go.uber.org/zap"
)

func newTestEngine() (*Engine, *store.MemoryStore) {
	cfg := config.DefaultConfig()
	db := store.NewMemoryStore()
	return NewEngine(db, DefaultImpactTable(), cfg.Simulation, zap.NewNop()), db
}

func TestStateCreatesNeutralRow(t *testing.T) {
	engine, db := newTestEngine()
	ctx := context.Background()

	state, err := engine.State(ctx, "centro")
	assert.NoError(t, err)
	assert.Equal(t, "centro", state.ID)
	assert.Equal(t, types.StatusStable, state.Status)
	assert.Equal(t, 50, state.Metrics.CrimeLevel)
	assert.Equal(t, 50, state.Metrics.PolicePresence)
	assert.Equal(t, 0, state.Metrics.CrewTension)

	// The neutral row is persisted, not recomputed per read
	stored, err := db.GetDistrictState(ctx, "centro")
	assert.NoError(t, err)
	assert.Equal(t, state.Metrics, stored.Metrics)
}

func TestLogEvent(t *testing.T) {
	engine, db := newTestEngine()
	ctx := context.Background()

	event, err := engine.LogEvent(ctx, "centro", "crew_battle", 5, "player-1", "player-2", map[string]string{"weapon": "bat"})
	assert.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, types.ImpactDeltas{Crime: 15, Police: 10, Property: 0, Business: -5, Activity: 10}, event.Impacts)
	assert.False(t, event.Processed)

	events, err := db.UnprocessedEvents(ctx, "centro", time.Now().Add(-time.Hour))
	assert.NoError(t, err)
	assert.Len(t, events, 1)

	// Invalid events never reach the store
	_, err = engine.LogEvent(ctx, "", "crew_battle", 5, "", "", nil)
	assert.Error(t, err)
	_, err = engine.LogEvent(ctx, "centro", "crew_battle", 99, "", "", nil)
	assert.Error(t, err)
}

func TestRecalculateFoldsEvents(t *testing.T) {
	engine, db := newTestEngine()
	ctx := context.Background()

	_, err := engine.LogEvent(ctx, "centro", "crew_battle", 5, "player-1", "", nil)
	assert.NoError(t, err)

	state, err := engine.Recalculate(ctx, "centro")
	assert.NoError(t, err)

	// Fresh neutral row, near-zero elapsed time: deltas apply almost raw
	assert.Equal(t, 65, state.Metrics.CrimeLevel)
	assert.Equal(t, 60, state.Metrics.PolicePresence)
	assert.Equal(t, 50, state.Metrics.PropertyValue)
	assert.Equal(t, 45, state.Metrics.BusinessHealth)
	assert.Equal(t, 60, state.Metrics.StreetActivity)
	assert.Equal(t, types.StatusVolatile, state.Status)

	// Folded events are marked and not folded twice
	events, err := db.UnprocessedEvents(ctx, "centro", time.Now().Add(-time.Hour))
	assert.NoError(t, err)
	assert.Empty(t, events)

	again, err := engine.Recalculate(ctx, "centro")
	assert.NoError(t, err)
	assert.Equal(t, state.Metrics, again.Metrics)
}

// upsertFailStore fails a set number of district state writes so tests
// can observe what a fold leaves behind on a partial failure.
type upsertFailStore struct {
	*store.MemoryStore
	failures int
}

func (s *upsertFailStore) UpsertDistrictState(ctx context.Context, state *types.DistrictState) error {
	if s.failures > 0 {
		s.failures--
		return &types.PersistenceError{Op: "upsert district state", Err: errors.New("disk full")}
	}
	return s.MemoryStore.UpsertDistrictState(ctx, state)
}

func TestRecalculateNeverDoubleCountsOnPartialFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	db := &upsertFailStore{MemoryStore: store.NewMemoryStore()}
	engine := NewEngine(db, DefaultImpactTable(), cfg.Simulation, zap.NewNop())
	ctx := context.Background()

	// Materialize the row before arming the failure
	_, err := engine.State(ctx, "centro")
	assert.NoError(t, err)

	_, err = engine.LogEvent(ctx, "centro", "crew_battle", 5, "player-1", "", nil)
	assert.NoError(t, err)

	db.failures = 1
	_, err = engine.Recalculate(ctx, "centro")
	assert.Error(t, err)

	// The failed fold marked its events, so they are dropped rather
	// than counted into a later fold
	events, err := db.UnprocessedEvents(ctx, "centro", time.Now().Add(-time.Hour))
	assert.NoError(t, err)
	assert.Empty(t, events)

	state, err := engine.Recalculate(ctx, "centro")
	assert.NoError(t, err)
	assert.Equal(t, 50, state.Metrics.CrimeLevel)
	assert.Equal(t, 50, state.Metrics.PolicePresence)
}

func TestRecalculateClampsMetrics(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := engine.LogEvent(ctx, "centro", "murder", 10, "player-1", "", nil)
		assert.NoError(t, err)
	}

	state, err := engine.Recalculate(ctx, "centro")
	assert.NoError(t, err)
	assert.Equal(t, 100, state.Metrics.CrimeLevel)
	assert.Equal(t, 100, state.Metrics.PolicePresence)
	assert.Equal(t, 0, state.Metrics.PropertyValue)
	assert.Equal(t, 0, state.Metrics.BusinessHealth)
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name     string
		metrics  types.DistrictMetrics
		expected string
	}{
		{
			name:     "high crime and activity is a warzone",
			metrics:  types.DistrictMetrics{CrimeLevel: 85, PolicePresence: 40, PropertyValue: 50, BusinessHealth: 50, StreetActivity: 75, CrewTension: 30},
			expected: types.StatusWarzone,
		},
		{
			name:     "crime with boiling tension is a warzone",
			metrics:  types.DistrictMetrics{CrimeLevel: 72, StreetActivity: 20, CrewTension: 65},
			expected: types.StatusWarzone,
		},
		{
			name:     "low crime and pricey property is gentrifying",
			metrics:  types.DistrictMetrics{CrimeLevel: 20, PropertyValue: 80, BusinessHealth: 50},
			expected: types.StatusGentrifying,
		},
		{
			name:     "dead commerce and cheap property is declining",
			metrics:  types.DistrictMetrics{CrimeLevel: 45, PropertyValue: 35, BusinessHealth: 25},
			expected: types.StatusDeclining,
		},
		{
			name:     "elevated crime alone is volatile",
			metrics:  types.DistrictMetrics{CrimeLevel: 65, PolicePresence: 50, PropertyValue: 50, BusinessHealth: 50, StreetActivity: 40},
			expected: types.StatusVolatile,
		},
		{
			name:     "neutral metrics are stable",
			metrics:  types.DistrictMetrics{CrimeLevel: 50, PolicePresence: 50, PropertyValue: 50, BusinessHealth: 50, StreetActivity: 50},
			expected: types.StatusStable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveStatus(tt.metrics))
		})
	}
}

func TestModifiersFromNeutralState(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	modifiers, err := engine.Modifiers(ctx, "centro")
	assert.NoError(t, err)
	assert.InDelta(t, 1.0, modifiers.CrimeDifficulty, 0.001)
	assert.InDelta(t, 1.0, modifiers.PropertyIncome, 0.001)
	assert.InDelta(t, 1.0, modifiers.RecruitmentEase, 0.001)
	assert.InDelta(t, 1.0, modifiers.HeatDecayRate, 0.001)
	assert.InDelta(t, 1.25, modifiers.PoliceResponseDelay, 0.001)
	assert.InDelta(t, 1.0, modifiers.PayoutBonus, 0.001)
	assert.InDelta(t, 0.9, modifiers.ShopPriceIndex, 0.001)
	assert.Empty(t, modifiers.ActiveEffects)
}

func TestModifiersIncludeActiveEffects(t *testing.T) {
	engine, db := newTestEngine()
	ctx := context.Background()

	err := db.OpenActiveEvent(ctx, &types.ActiveDistrictEvent{
		ID:         "evt-1",
		DistrictID: "centro",
		EventType:  "police_crackdown",
		Effects:    map[string]float64{"crime_difficulty": 0.3},
		StartedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(time.Hour),
	})
	assert.NoError(t, err)
	err = db.OpenActiveEvent(ctx, &types.ActiveDistrictEvent{
		ID:         "evt-2",
		DistrictID: "centro",
		EventType:  "crew_standoff",
		Effects:    map[string]float64{"crime_difficulty": 0.2, "payout_bonus": 0.15},
		StartedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(time.Hour),
	})
	assert.NoError(t, err)

	modifiers, err := engine.Modifiers(ctx, "centro")
	assert.NoError(t, err)
	assert.InDelta(t, 0.5, modifiers.ActiveEffects["crime_difficulty"], 0.001)
	assert.InDelta(t, 0.15, modifiers.ActiveEffects["payout_bonus"], 0.001)
}

func TestAdjustTensionClamps(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	assert.NoError(t, engine.AdjustTension(ctx, "centro", 150))
	state, err := engine.State(ctx, "centro")
	assert.NoError(t, err)
	assert.Equal(t, 100, state.Metrics.CrewTension)

	assert.NoError(t, engine.AdjustTension(ctx, "centro", -999))
	state, err = engine.State(ctx, "centro")
	assert.NoError(t, err)
	assert.Equal(t, 0, state.Metrics.CrewTension)
}
