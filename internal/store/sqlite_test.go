package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/user/lei-da-rua/config"
	"github.com/user/lei-da-rua/internal/types"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	cfg := config.DatabaseConfig{
		Driver: "sqlite3",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	}
	db, err := Open(cfg, zap.NewNop())
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDistrictStateRoundTrip(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	_, err := db.GetDistrictState(ctx, "centro")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	state := &types.DistrictState{
		ID: "centro",
		Metrics: types.DistrictMetrics{
			CrimeLevel: 62, PolicePresence: 44, PropertyValue: 51,
			BusinessHealth: 47, StreetActivity: 70, CrewTension: 12,
		},
		Status:         types.StatusVolatile,
		LastCalculated: time.Now(),
	}
	assert.NoError(t, db.UpsertDistrictState(ctx, state))

	loaded, err := db.GetDistrictState(ctx, "centro")
	assert.NoError(t, err)
	assert.Equal(t, state.Metrics, loaded.Metrics)
	assert.Equal(t, types.StatusVolatile, loaded.Status)

	// Upsert overwrites in place
	state.Metrics.CrimeLevel = 80
	state.Status = types.StatusWarzone
	assert.NoError(t, db.UpsertDistrictState(ctx, state))
	loaded, err = db.GetDistrictState(ctx, "centro")
	assert.NoError(t, err)
	assert.Equal(t, 80, loaded.Metrics.CrimeLevel)
}

func TestAdjustDistrictMetricClamps(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, db.UpsertDistrictState(ctx, &types.DistrictState{
		ID:             "centro",
		Metrics:        types.DistrictMetrics{CrewTension: 90},
		Status:         types.StatusStable,
		LastCalculated: time.Now(),
	}))

	// Increment clamps at the ceiling inside the UPDATE itself
	assert.NoError(t, db.AdjustDistrictMetric(ctx, "centro", "tension", 50, 0, 100))
	state, err := db.GetDistrictState(ctx, "centro")
	assert.NoError(t, err)
	assert.Equal(t, 100, state.Metrics.CrewTension)

	assert.NoError(t, db.AdjustDistrictMetric(ctx, "centro", "tension", -300, 0, 100))
	state, err = db.GetDistrictState(ctx, "centro")
	assert.NoError(t, err)
	assert.Equal(t, 0, state.Metrics.CrewTension)

	// Unknown metric and unknown district both fail loudly
	var validation *types.ValidationError
	assert.ErrorAs(t, db.AdjustDistrictMetric(ctx, "centro", "vibes", 1, 0, 100), &validation)
	var notFound *types.NotFoundError
	assert.ErrorAs(t, db.AdjustDistrictMetric(ctx, "nowhere", "tension", 1, 0, 100), &notFound)
}

func TestDistrictEventLifecycle(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	event := &types.DistrictEvent{
		ID:         "evt-1",
		DistrictID: "centro",
		EventType:  "crew_battle",
		Severity:   5,
		ActorID:    "player-1",
		Impacts:    types.ImpactDeltas{Crime: 15, Police: 10, Business: -5, Activity: 10},
		Metadata:   map[string]string{"weapon": "bat"},
		CreatedAt:  time.Now(),
	}
	assert.NoError(t, db.AppendDistrictEvent(ctx, event))

	events, err := db.UnprocessedEvents(ctx, "centro", time.Now().Add(-time.Hour))
	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, event.Impacts, events[0].Impacts)
	assert.Equal(t, "player-1", events[0].ActorID)
	assert.Equal(t, "bat", events[0].Metadata["weapon"])

	// Events outside the window are not returned
	events, err = db.UnprocessedEvents(ctx, "centro", time.Now().Add(time.Hour))
	assert.NoError(t, err)
	assert.Empty(t, events)

	assert.NoError(t, db.MarkEventsProcessed(ctx, []string{"evt-1"}))
	events, err = db.UnprocessedEvents(ctx, "centro", time.Now().Add(-time.Hour))
	assert.NoError(t, err)
	assert.Empty(t, events)
}

func TestActiveEventLifecycle(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	open := &types.ActiveDistrictEvent{
		ID:          "active-1",
		DistrictID:  "centro",
		EventType:   "police_crackdown",
		TriggeredBy: "crime",
		MetricValue: 85,
		Effects:     map[string]float64{"crime_difficulty": 0.3},
		StartedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(2 * time.Hour),
	}
	assert.NoError(t, db.OpenActiveEvent(ctx, open))

	loaded, err := db.GetOpenActiveEvent(ctx, "centro", "police_crackdown")
	assert.NoError(t, err)
	assert.Equal(t, "active-1", loaded.ID)
	assert.InDelta(t, 0.3, loaded.Effects["crime_difficulty"], 0.001)

	all, err := db.OpenActiveEvents(ctx, "centro")
	assert.NoError(t, err)
	assert.Len(t, all, 1)

	// Closing expired events only touches the ones past expiry
	closed, err := db.CloseExpiredEvents(ctx, time.Now())
	assert.NoError(t, err)
	assert.Equal(t, 0, closed)

	closed, err = db.CloseExpiredEvents(ctx, time.Now().Add(3*time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, 1, closed)

	_, err = db.GetOpenActiveEvent(ctx, "centro", "police_crackdown")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	// The cooldown lookup still sees the ended instance
	last, err := db.LastActiveEvent(ctx, "centro", "police_crackdown")
	assert.NoError(t, err)
	assert.True(t, last.Ended)
}

func TestApplyReputationDelta(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	// First write creates the record lazily
	oldValue, newValue, err := db.ApplyReputationDelta(ctx, "player-1", types.TargetFaction, "comando_do_porto", "respect", 30, -100, 100)
	assert.NoError(t, err)
	assert.Equal(t, 0, oldValue)
	assert.Equal(t, 30, newValue)

	// Ceiling clamp reports the pre-clamp old value
	oldValue, newValue, err = db.ApplyReputationDelta(ctx, "player-1", types.TargetFaction, "comando_do_porto", "respect", 1000, -100, 100)
	assert.NoError(t, err)
	assert.Equal(t, 30, oldValue)
	assert.Equal(t, 100, newValue)

	// Heat uses a zero floor
	oldValue, newValue, err = db.ApplyReputationDelta(ctx, "player-1", types.TargetFaction, "comando_do_porto", "heat", -40, 0, 100)
	assert.NoError(t, err)
	assert.Equal(t, 0, oldValue)
	assert.Equal(t, 0, newValue)

	var validation *types.ValidationError
	_, _, err = db.ApplyReputationDelta(ctx, "player-1", types.TargetFaction, "comando_do_porto", "charm", 1, -100, 100)
	assert.ErrorAs(t, err, &validation)

	record, err := db.GetReputation(ctx, "player-1", types.TargetFaction, "comando_do_porto")
	assert.NoError(t, err)
	assert.Equal(t, 100, record.Respect)
	assert.Equal(t, types.StandingUnknown, record.Standing)

	assert.NoError(t, db.SetReputationStanding(ctx, "player-1", types.TargetFaction, "comando_do_porto", types.StandingRespected))
	record, err = db.GetReputation(ctx, "player-1", types.TargetFaction, "comando_do_porto")
	assert.NoError(t, err)
	assert.Equal(t, types.StandingRespected, record.Standing)
}

func TestAuditRoundTrip(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	entries := []*types.AuditEntry{
		{ID: "a-1", OperationID: "op-1", ActorID: "player-1", IntentType: "crime_commit", Outcome: types.OutcomeSuccess, CreatedAt: now.Add(-2 * time.Minute)},
		{ID: "a-2", OperationID: "op-1", ActorID: "player-1", IntentType: "crime_commit", Outcome: types.OutcomeDuplicate, Detail: "replayed operation id", CreatedAt: now.Add(-time.Minute)},
		{ID: "a-3", ActorID: "player-2", IntentType: "market_trade", Outcome: types.OutcomeFailure, Detail: "broke", CreatedAt: now},
	}
	for _, entry := range entries {
		assert.NoError(t, db.AppendAudit(ctx, entry))
	}

	loaded, err := db.AuditEntriesSince(ctx, "player-1", now.Add(-time.Hour))
	assert.NoError(t, err)
	assert.Len(t, loaded, 2)
	assert.Equal(t, types.OutcomeSuccess, loaded[0].Outcome)
	assert.Equal(t, types.OutcomeDuplicate, loaded[1].Outcome)
	assert.Equal(t, "replayed operation id", loaded[1].Detail)

	// Window filtering
	loaded, err = db.AuditEntriesSince(ctx, "player-1", now.Add(-90*time.Second))
	assert.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestPushTargetRoundTrip(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	_, err := db.GetPushTarget(ctx, "player-1")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	assert.NoError(t, db.SetPushTarget(ctx, "player-1", "5521999999999"))
	phone, err := db.GetPushTarget(ctx, "player-1")
	assert.NoError(t, err)
	assert.Equal(t, "5521999999999", phone)

	// Re-registering replaces the number
	assert.NoError(t, db.SetPushTarget(ctx, "player-1", "5521888888888"))
	phone, err = db.GetPushTarget(ctx, "player-1")
	assert.NoError(t, err)
	assert.Equal(t, "5521888888888", phone)
}
