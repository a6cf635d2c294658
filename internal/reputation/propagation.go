package reputation

import (
	"context"
	"math"

	"github.com/user/lei-da-rua/config"
	"github.com/user/lei-da-rua/internal/types"
	"go.uber.org/zap"
)

// Propagator spreads a fraction of one reputation change across the
// relationship graph. Spillover is a single hop: targets of a spillover
// never trigger further spillovers, keeping cost O(fan-out).
type Propagator struct {
	ledger *Ledger
	graph  *Graph
	cfg    config.PropagationConfig
	logger *zap.Logger
}

// NewPropagator creates a propagation engine over the ledger and graph
func NewPropagator(ledger *Ledger, graph *Graph, cfg config.PropagationConfig, logger *zap.Logger) *Propagator {
	return &Propagator{
		ledger: ledger,
		graph:  graph,
		cfg:    cfg,
		logger: logger,
	}
}

// Propagate applies one-hop spillovers of delta for a change the actor made
// against the given source. A nil override uses the configured multipliers.
// Each spillover is a normal ledger Modify and therefore audited; a failing
// target is logged and skipped without aborting its siblings. Returns the
// spillovers that were applied.
func (p *Propagator) Propagate(ctx context.Context, actorID, sourceType, sourceID string, delta types.ReputationDelta, override *config.PropagationConfig) ([]types.Spillover, error) {
	cfg := p.cfg
	if override != nil {
		cfg = *override
	}

	switch sourceType {
	case types.TargetFaction:
		faction, ok := p.graph.Faction(sourceID)
		if !ok {
			return nil, &types.NotFoundError{Kind: "faction", ID: sourceID}
		}
		return p.propagateFromFaction(ctx, actorID, faction, delta, cfg), nil
	case types.TargetDistrict:
		district, ok := p.graph.District(sourceID)
		if !ok {
			return nil, &types.NotFoundError{Kind: "district", ID: sourceID}
		}
		return p.propagateFromDistrict(ctx, actorID, district, delta, cfg), nil
	default:
		return nil, &types.ValidationError{Field: "source_type", Message: sourceType}
	}
}

func (p *Propagator) propagateFromFaction(ctx context.Context, actorID string, faction *types.Faction, delta types.ReputationDelta, cfg config.PropagationConfig) []types.Spillover {
	var applied []types.Spillover

	// Goodwill travels to friends: only positive respect/trust spill over
	for _, allyID := range faction.Allies {
		spill := types.ReputationDelta{
			Respect: scale(positive(delta.Respect), cfg.AlliedMultiplier),
			Trust:   scale(positive(delta.Trust), cfg.AlliedMultiplier),
		}
		applied = p.apply(ctx, applied, actorID, types.TargetFaction, allyID, spill,
			"spillover: ally of "+faction.ID, faction.ID)
	}

	// Enemies read the same acts inverted, and an actor hurting their rival
	// becomes someone to fear
	for _, enemyID := range faction.Enemies {
		spill := types.ReputationDelta{
			Respect: scale(delta.Respect, cfg.EnemyMultiplier),
			Trust:   scale(delta.Trust, cfg.EnemyMultiplier),
			Fear:    scale(abs(delta.Fear), cfg.FearLeakMultiplier),
		}
		applied = p.apply(ctx, applied, actorID, types.TargetFaction, enemyID, spill,
			"spillover: enemy of "+faction.ID, faction.ID)
	}

	// The faction's neighborhood notices too
	if faction.HomeDistrict != "" {
		spill := scaleAll(delta, cfg.HomeDistrictMultiplier)
		applied = p.apply(ctx, applied, actorID, types.TargetDistrict, faction.HomeDistrict, spill,
			"spillover: home district of "+faction.ID, faction.ID)
	}

	return applied
}

func (p *Propagator) propagateFromDistrict(ctx context.Context, actorID string, district *types.District, delta types.ReputationDelta, cfg config.PropagationConfig) []types.Spillover {
	var applied []types.Spillover

	for _, adjacentID := range district.Adjacent {
		spill := scaleAll(delta, cfg.AdjacentMultiplier)
		applied = p.apply(ctx, applied, actorID, types.TargetDistrict, adjacentID, spill,
			"spillover: adjacent to "+district.ID, "")
	}

	for _, faction := range p.graph.FactionsIn(district.ID) {
		spill := scaleAll(delta, cfg.DistrictFactionMultiplier)
		applied = p.apply(ctx, applied, actorID, types.TargetFaction, faction.ID, spill,
			"spillover: operates in "+district.ID, "")
	}

	return applied
}

// apply performs one spillover write, isolating its failure from siblings
func (p *Propagator) apply(ctx context.Context, applied []types.Spillover, actorID, targetType, targetID string, delta types.ReputationDelta, reason, relatedActorID string) []types.Spillover {
	if delta.IsZero() {
		return applied
	}
	if _, err := p.ledger.Modify(ctx, actorID, targetType, targetID, delta, reason, relatedActorID); err != nil {
		p.logger.Warn("Spillover write failed",
			zap.String("actor_id", actorID),
			zap.String("target_type", targetType),
			zap.String("target_id", targetID),
			zap.Error(err))
		return applied
	}
	return append(applied, types.Spillover{
		TargetType: targetType,
		TargetID:   targetID,
		Delta:      delta,
	})
}

func scale(value int, multiplier float64) int {
	return int(math.Round(float64(value) * multiplier))
}

func scaleAll(delta types.ReputationDelta, multiplier float64) types.ReputationDelta {
	return types.ReputationDelta{
		Respect: scale(delta.Respect, multiplier),
		Fear:    scale(delta.Fear, multiplier),
		Trust:   scale(delta.Trust, multiplier),
		Heat:    scale(delta.Heat, multiplier),
	}
}

func positive(value int) int {
	if value > 0 {
		return value
	}
	return 0
}

func abs(value int) int {
	if value < 0 {
		return -value
	}
	return value
}
