package reputation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/user/lei-da-rua/config"
	"github.com/user/lei-da-rua/internal/store"
	"github.com/user/lei-da-rua/internal/types"
	"go.uber.org/zap"
)

func newTestPropagator() (*Propagator, *Ledger, *store.MemoryStore) {
	cfg := config.DefaultConfig()
	db := store.NewMemoryStore()
	ledger := NewLedger(db, zap.NewNop())
	return NewPropagator(ledger, DefaultGraph(), cfg.Propagation, zap.NewNop()), ledger, db
}

func TestPropagateFromFaction(t *testing.T) {
	propagator, ledger, _ := newTestPropagator()
	ctx := context.Background()

	delta := types.ReputationDelta{Respect: 20, Fear: 10, Trust: 10}
	spillovers, err := propagator.Propagate(ctx, "player-1", types.TargetFaction, "comando_do_porto", delta, nil)
	assert.NoError(t, err)

	// One ally, one enemy and the home district
	assert.Len(t, spillovers, 3)

	ally, err := ledger.Get(ctx, "player-1", types.TargetFaction, "sindicato_do_asfalto")
	assert.NoError(t, err)
	assert.Equal(t, 10, ally.Respect)
	assert.Equal(t, 5, ally.Trust)
	assert.Equal(t, 0, ally.Fear)

	enemy, err := ledger.Get(ctx, "player-1", types.TargetFaction, "familia_do_morro")
	assert.NoError(t, err)
	assert.Equal(t, -6, enemy.Respect)
	assert.Equal(t, -3, enemy.Trust)
	assert.Equal(t, 2, enemy.Fear)

	home, err := ledger.Get(ctx, "player-1", types.TargetDistrict, "porto")
	assert.NoError(t, err)
	assert.Equal(t, 8, home.Respect)
	assert.Equal(t, 4, home.Fear)
	assert.Equal(t, 4, home.Trust)
}

func TestPropagationIsSingleHop(t *testing.T) {
	propagator, _, db := newTestPropagator()
	ctx := context.Background()

	delta := types.ReputationDelta{Respect: 20, Trust: 10}
	_, err := propagator.Propagate(ctx, "player-1", types.TargetFaction, "comando_do_porto", delta, nil)
	assert.NoError(t, err)

	// familia_do_morro is an enemy (one hop), its ally os_fantasmas is two
	// hops away and must stay untouched
	_, err = db.GetReputation(ctx, "player-1", types.TargetFaction, "os_fantasmas")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestNegativeRespectDoesNotReachAllies(t *testing.T) {
	propagator, _, db := newTestPropagator()
	ctx := context.Background()

	delta := types.ReputationDelta{Respect: -20}
	spillovers, err := propagator.Propagate(ctx, "player-1", types.TargetFaction, "comando_do_porto", delta, nil)
	assert.NoError(t, err)

	// Allies only receive goodwill; the enemy and home district still react
	for _, spill := range spillovers {
		assert.NotEqual(t, "sindicato_do_asfalto", spill.TargetID)
	}
	_, err = db.GetReputation(ctx, "player-1", types.TargetFaction, "sindicato_do_asfalto")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	enemy, err := db.GetReputation(ctx, "player-1", types.TargetFaction, "familia_do_morro")
	assert.NoError(t, err)
	assert.Equal(t, 6, enemy.Respect)
}

func TestPropagateFromDistrict(t *testing.T) {
	propagator, ledger, _ := newTestPropagator()
	ctx := context.Background()

	delta := types.ReputationDelta{Respect: 20, Heat: 8}
	spillovers, err := propagator.Propagate(ctx, "player-1", types.TargetDistrict, "centro", delta, nil)
	assert.NoError(t, err)

	// Four adjacent districts plus the two factions with a foothold in centro
	assert.Len(t, spillovers, 6)

	adjacent, err := ledger.Get(ctx, "player-1", types.TargetDistrict, "porto")
	assert.NoError(t, err)
	assert.Equal(t, 5, adjacent.Respect)
	assert.Equal(t, 2, adjacent.Heat)

	faction, err := ledger.Get(ctx, "player-1", types.TargetFaction, "os_fantasmas")
	assert.NoError(t, err)
	assert.Equal(t, 6, faction.Respect)
	assert.Equal(t, 2, faction.Heat)
}

func TestPropagateSkipsZeroSpillovers(t *testing.T) {
	propagator, _, db := newTestPropagator()
	ctx := context.Background()

	// A delta of 1 rounds to 0 at every multiplier, so nothing is written
	delta := types.ReputationDelta{Respect: 1}
	spillovers, err := propagator.Propagate(ctx, "player-1", types.TargetDistrict, "orla", delta, nil)
	assert.NoError(t, err)
	assert.Empty(t, spillovers)

	_, err = db.GetReputation(ctx, "player-1", types.TargetDistrict, "centro")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestPropagateValidatesSource(t *testing.T) {
	propagator, _, _ := newTestPropagator()
	ctx := context.Background()

	_, err := propagator.Propagate(ctx, "player-1", types.TargetFaction, "the_illuminati", types.ReputationDelta{Respect: 5}, nil)
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = propagator.Propagate(ctx, "player-1", types.TargetPlayer, "player-2", types.ReputationDelta{Respect: 5}, nil)
	var validation *types.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestPropagateOverrideMultipliers(t *testing.T) {
	propagator, ledger, _ := newTestPropagator()
	ctx := context.Background()

	override := config.DefaultConfig().Propagation
	override.AlliedMultiplier = 1.0

	delta := types.ReputationDelta{Respect: 20}
	_, err := propagator.Propagate(ctx, "player-1", types.TargetFaction, "comando_do_porto", delta, &override)
	assert.NoError(t, err)

	ally, err := ledger.Get(ctx, "player-1", types.TargetFaction, "sindicato_do_asfalto")
	assert.NoError(t, err)
	assert.Equal(t, 20, ally.Respect)
}

func TestGraphValidate(t *testing.T) {
	assert.NoError(t, DefaultGraph().Validate())

	dangling := NewGraph(
		[]*types.Faction{{ID: "ghosts", Name: "Ghosts", Allies: []string{"nobody"}}},
		[]*types.District{{ID: "centro", Name: "Centro"}},
	)
	assert.Error(t, dangling.Validate())
}
