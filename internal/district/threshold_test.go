package district

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/user/lei-da-rua/internal/store"
	"github.com/user/lei-da-rua/internal/types"
	"go.uber.org/zap"
)

func seedDistrict(t *testing.T, db *store.MemoryStore, id string, metrics types.DistrictMetrics) {
	t.Helper()
	err := db.UpsertDistrictState(context.Background(), &types.DistrictState{
		ID:             id,
		Metrics:        metrics,
		Status:         DeriveStatus(metrics),
		LastCalculated: time.Now(),
	})
	assert.NoError(t, err)
}

func TestCheckThresholdsOpensEvent(t *testing.T) {
	db := store.NewMemoryStore()
	scheduler := NewScheduler(db, DefaultThresholdDefinitions(), []string{"centro"}, zap.NewNop())
	ctx := context.Background()

	seedDistrict(t, db, "centro", types.DistrictMetrics{CrimeLevel: 85, PolicePresence: 50, PropertyValue: 50, BusinessHealth: 50, StreetActivity: 50})

	opened := scheduler.CheckThresholds(ctx)
	assert.Equal(t, 1, opened)

	event, err := db.GetOpenActiveEvent(ctx, "centro", "police_crackdown")
	assert.NoError(t, err)
	assert.Equal(t, "crime", event.TriggeredBy)
	assert.Equal(t, 85, event.MetricValue)
	assert.InDelta(t, 0.3, event.Effects["crime_difficulty"], 0.001)

	// An open instance suppresses retriggering while the metric stays crossed
	opened = scheduler.CheckThresholds(ctx)
	assert.Equal(t, 0, opened)
}

func TestCheckThresholdsBelowDirection(t *testing.T) {
	db := store.NewMemoryStore()
	scheduler := NewScheduler(db, DefaultThresholdDefinitions(), []string{"baixada"}, zap.NewNop())
	ctx := context.Background()

	seedDistrict(t, db, "baixada", types.DistrictMetrics{CrimeLevel: 50, PolicePresence: 20, PropertyValue: 50, BusinessHealth: 50, StreetActivity: 50})

	opened := scheduler.CheckThresholds(ctx)
	assert.Equal(t, 1, opened)

	_, err := db.GetOpenActiveEvent(ctx, "baixada", "patrol_withdrawal")
	assert.NoError(t, err)
}

func TestCheckThresholdsHonorsCooldown(t *testing.T) {
	db := store.NewMemoryStore()
	scheduler := NewScheduler(db, DefaultThresholdDefinitions(), []string{"centro"}, zap.NewNop())
	ctx := context.Background()

	seedDistrict(t, db, "centro", types.DistrictMetrics{CrimeLevel: 85, PolicePresence: 50, PropertyValue: 50, BusinessHealth: 50, StreetActivity: 50})

	// A recently ended instance keeps the definition on cooldown
	err := db.OpenActiveEvent(ctx, &types.ActiveDistrictEvent{
		ID:         "prior",
		DistrictID: "centro",
		EventType:  "police_crackdown",
		StartedAt:  time.Now().Add(-3 * time.Hour),
		ExpiresAt:  time.Now().Add(-time.Hour),
		Ended:      true,
	})
	assert.NoError(t, err)

	opened := scheduler.CheckThresholds(ctx)
	assert.Equal(t, 0, opened)

	// Once the cooldown has elapsed the event can fire again
	_, err = db.CloseExpiredEvents(ctx, time.Now())
	assert.NoError(t, err)
	db2 := store.NewMemoryStore()
	seedDistrict(t, db2, "centro", types.DistrictMetrics{CrimeLevel: 85, PolicePresence: 50, PropertyValue: 50, BusinessHealth: 50, StreetActivity: 50})
	err = db2.OpenActiveEvent(ctx, &types.ActiveDistrictEvent{
		ID:         "ancient",
		DistrictID: "centro",
		EventType:  "police_crackdown",
		StartedAt:  time.Now().Add(-48 * time.Hour),
		ExpiresAt:  time.Now().Add(-24 * time.Hour),
		Ended:      true,
	})
	assert.NoError(t, err)

	scheduler2 := NewScheduler(db2, DefaultThresholdDefinitions(), []string{"centro"}, zap.NewNop())
	assert.Equal(t, 1, scheduler2.CheckThresholds(ctx))
}

func TestCheckThresholdsSkipsUntouchedDistricts(t *testing.T) {
	db := store.NewMemoryStore()
	scheduler := NewScheduler(db, DefaultThresholdDefinitions(), []string{"centro", "porto"}, zap.NewNop())

	assert.Equal(t, 0, scheduler.CheckThresholds(context.Background()))
}

func TestCloseExpired(t *testing.T) {
	db := store.NewMemoryStore()
	scheduler := NewScheduler(db, DefaultThresholdDefinitions(), []string{"centro"}, zap.NewNop())
	ctx := context.Background()

	err := db.OpenActiveEvent(ctx, &types.ActiveDistrictEvent{
		ID:         "expired",
		DistrictID: "centro",
		EventType:  "street_festival",
		StartedAt:  time.Now().Add(-4 * time.Hour),
		ExpiresAt:  time.Now().Add(-time.Hour),
	})
	assert.NoError(t, err)
	err = db.OpenActiveEvent(ctx, &types.ActiveDistrictEvent{
		ID:         "running",
		DistrictID: "centro",
		EventType:  "business_boom",
		StartedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(time.Hour),
	})
	assert.NoError(t, err)

	assert.Equal(t, 1, scheduler.CloseExpired(ctx))

	open, err := db.OpenActiveEvents(ctx, "centro")
	assert.NoError(t, err)
	assert.Len(t, open, 1)
	assert.Equal(t, "business_boom", open[0].EventType)
}

func TestValidateDefinitions(t *testing.T) {
	assert.NoError(t, ValidateDefinitions(DefaultThresholdDefinitions()))

	invalid := []types.ThresholdDefinition{
		{EventType: "x", Metric: "crime", Direction: "sideways", Value: 50, Duration: 10},
	}
	assert.Error(t, ValidateDefinitions(invalid))

	duplicate := []types.ThresholdDefinition{
		{EventType: "x", Metric: "crime", Direction: types.DirectionAbove, Value: 50, Duration: 10},
		{EventType: "x", Metric: "police", Direction: types.DirectionBelow, Value: 30, Duration: 10},
	}
	assert.Error(t, ValidateDefinitions(duplicate))

	badMetric := []types.ThresholdDefinition{
		{EventType: "x", Metric: "vibes", Direction: types.DirectionAbove, Value: 50, Duration: 10},
	}
	assert.Error(t, ValidateDefinitions(badMetric))
}
