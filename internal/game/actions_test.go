package game

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/user/lei-da-rua/internal/district"
	"github.com/user/lei-da-rua/internal/store"
	"github.com/user/lei-da-rua/internal/types"
	"go.uber.org/zap"
)

type actionsFixture struct {
	db     *store.MemoryStore
	engine *district.Engine
}

func newTestActions() (*Actions, *actionsFixture) {
	db, engine, ledger, propagator, graph := newTestWorld()
	actions := NewActions(engine, ledger, propagator, graph, zap.NewNop())
	return actions, &actionsFixture{db: db, engine: engine}
}

func intentOf(t *testing.T, intentType string, params any) types.Intent {
	t.Helper()
	raw, err := json.Marshal(params)
	assert.NoError(t, err)
	return types.Intent{Type: intentType, Params: raw}
}

func TestWorkCommitCrime(t *testing.T) {
	actions, fixture := newTestActions()
	ctx := context.Background()

	work, err := actions.Work("player-1", intentOf(t, "crime_commit", crimeParams{
		DistrictID: "centro",
		EventType:  "robbery",
		Severity:   6,
	}))
	assert.NoError(t, err)

	result, err := work(ctx)
	assert.NoError(t, err)
	event, ok := result.(*types.DistrictEvent)
	assert.True(t, ok)
	assert.Equal(t, "robbery", event.EventType)
	assert.Equal(t, "player-1", event.ActorID)

	events, err := fixture.db.UnprocessedEvents(ctx, "centro", time.Now().Add(-time.Minute))
	assert.NoError(t, err)
	assert.Len(t, events, 1)

	record, err := fixture.db.GetReputation(ctx, "player-1", types.TargetDistrict, "centro")
	assert.NoError(t, err)
	assert.Equal(t, 6, record.Respect)
	assert.Equal(t, 3, record.Fear)
	assert.Equal(t, 6, record.Heat)

	// Spillover reaches factions rooted in the district
	spill, err := fixture.db.GetReputation(ctx, "player-1", types.TargetFaction, "os_fantasmas")
	assert.NoError(t, err)
	assert.Equal(t, 2, spill.Respect)
}

func TestWorkCommitCrimeDefaultsEventType(t *testing.T) {
	actions, _ := newTestActions()

	work, err := actions.Work("player-1", intentOf(t, "crime_commit", crimeParams{
		DistrictID: "porto",
		Severity:   3,
	}))
	assert.NoError(t, err)

	result, err := work(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "robbery", result.(*types.DistrictEvent).EventType)
}

func TestWorkAttackPlayer(t *testing.T) {
	actions, fixture := newTestActions()
	ctx := context.Background()

	work, err := actions.Work("player-1", intentOf(t, "attack_player", attackParams{
		DistrictID: "baixada",
		TargetID:   "player-2",
		Severity:   4,
	}))
	assert.NoError(t, err)

	_, err = work(ctx)
	assert.NoError(t, err)

	state, err := fixture.engine.State(ctx, "baixada")
	assert.NoError(t, err)
	assert.Equal(t, 8, state.Metrics.CrewTension)

	record, err := fixture.db.GetReputation(ctx, "player-1", types.TargetPlayer, "player-2")
	assert.NoError(t, err)
	assert.Equal(t, 8, record.Fear)
	assert.Equal(t, -4, record.Trust)
	assert.Equal(t, 4, record.Heat)
}

func TestWorkDeclareWar(t *testing.T) {
	actions, fixture := newTestActions()
	ctx := context.Background()

	work, err := actions.Work("player-1", intentOf(t, "crew_war_declare", warParams{
		DistrictID: "morro_azul",
		RivalID:    "crew-rival",
	}))
	assert.NoError(t, err)

	result, err := work(ctx)
	assert.NoError(t, err)
	record, ok := result.(*types.ReputationRecord)
	assert.True(t, ok)
	assert.Equal(t, 15, record.Fear)
	assert.Equal(t, -10, record.Trust)

	state, err := fixture.engine.State(ctx, "morro_azul")
	assert.NoError(t, err)
	assert.Equal(t, 20, state.Metrics.CrewTension)
}

func TestWorkSettleTradeMinimumTrust(t *testing.T) {
	actions, _ := newTestActions()
	ctx := context.Background()

	work, err := actions.Work("player-1", intentOf(t, "market_trade", tradeParams{
		DistrictID: "orla",
		Volume:     5,
	}))
	assert.NoError(t, err)
	result, err := work(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, result.(*types.ReputationRecord).Trust)

	work, err = actions.Work("player-2", intentOf(t, "market_trade", tradeParams{
		DistrictID: "orla",
		Volume:     40,
	}))
	assert.NoError(t, err)
	result, err = work(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 4, result.(*types.ReputationRecord).Trust)
}

func TestWorkClaimTurf(t *testing.T) {
	actions, fixture := newTestActions()
	ctx := context.Background()

	work, err := actions.Work("player-1", intentOf(t, "turf_claim", turfParams{
		DistrictID: "porto",
		FactionID:  "comando_do_porto",
		Severity:   5,
	}))
	assert.NoError(t, err)

	_, err = work(ctx)
	assert.NoError(t, err)

	record, err := fixture.db.GetReputation(ctx, "player-1", types.TargetFaction, "comando_do_porto")
	assert.NoError(t, err)
	assert.Equal(t, -5, record.Respect)
	assert.Equal(t, 5, record.Fear)

	state, err := fixture.engine.State(ctx, "porto")
	assert.NoError(t, err)
	assert.Equal(t, 5, state.Metrics.CrewTension)
}

func TestWorkCompleteHeistAgainstFaction(t *testing.T) {
	actions, fixture := newTestActions()
	ctx := context.Background()

	work, err := actions.Work("player-1", intentOf(t, "heist_complete", heistParams{
		DistrictID: "porto",
		Severity:   5,
		FactionID:  "comando_do_porto",
	}))
	assert.NoError(t, err)

	result, err := work(ctx)
	assert.NoError(t, err)
	record := result.(*types.ReputationRecord)
	assert.Equal(t, 10, record.Respect)
	assert.Equal(t, 5, record.Fear)
	assert.Equal(t, 10, record.Heat)

	// Allied faction picks up a share of respect and trust
	ally, err := fixture.db.GetReputation(ctx, "player-1", types.TargetFaction, "sindicato_do_asfalto")
	assert.NoError(t, err)
	assert.Equal(t, 5, ally.Respect)
}

func TestWorkRejectsUnknownIntent(t *testing.T) {
	actions, _ := newTestActions()

	_, err := actions.Work("player-1", types.Intent{Type: "teleport"})
	var validation *types.ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.Equal(t, "type", validation.Field)
}

func TestWorkRejectsMalformedParams(t *testing.T) {
	actions, _ := newTestActions()

	_, err := actions.Work("player-1", types.Intent{
		Type:   "crime_commit",
		Params: json.RawMessage(`{"severity": "muito"}`),
	})
	assert.Error(t, err)
}
