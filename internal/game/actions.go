package game

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/user/lei-da-rua/internal/district"
	"github.com/user/lei-da-rua/internal/reputation"
	"github.com/user/lei-da-rua/internal/types"
)

// Actions turns admitted player intents into simulation effects. Each
// intent type maps to one unit of work over the district engine and
// the reputation ledger.
type Actions struct {
	engine     *district.Engine
	ledger     *reputation.Ledger
	propagator *reputation.Propagator
	graph      *reputation.Graph
	logger     *zap.Logger
}

// NewActions creates the intent action dispatcher
func NewActions(engine *district.Engine, ledger *reputation.Ledger, propagator *reputation.Propagator, graph *reputation.Graph, logger *zap.Logger) *Actions {
	return &Actions{
		engine:     engine,
		ledger:     ledger,
		propagator: propagator,
		graph:      graph,
		logger:     logger,
	}
}

type crimeParams struct {
	DistrictID string `json:"district_id"`
	EventType  string `json:"event_type"`
	Severity   int    `json:"severity"`
	TargetID   string `json:"target_id,omitempty"`
}

type heistParams struct {
	DistrictID string `json:"district_id"`
	Severity   int    `json:"severity"`
	FactionID  string `json:"faction_id,omitempty"`
}

type attackParams struct {
	DistrictID string `json:"district_id"`
	TargetID   string `json:"target_id"`
	Severity   int    `json:"severity"`
}

type propertyParams struct {
	DistrictID string `json:"district_id"`
	Severity   int    `json:"severity"`
}

type warParams struct {
	DistrictID string `json:"district_id"`
	RivalID    string `json:"rival_id"`
}

type tradeParams struct {
	DistrictID string `json:"district_id"`
	Volume     int    `json:"volume"`
}

type turfParams struct {
	DistrictID string `json:"district_id"`
	FactionID  string `json:"faction_id"`
	Severity   int    `json:"severity"`
}

// Work returns the unit of work for one intent, or an error for an
// unknown intent type
func (a *Actions) Work(actorID string, intent types.Intent) (func(ctx context.Context) (any, error), error) {
	switch intent.Type {
	case "crime_commit":
		var params crimeParams
		if err := json.Unmarshal(intent.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid crime params: %w", err)
		}
		return func(ctx context.Context) (any, error) {
			return a.commitCrime(ctx, actorID, params)
		}, nil
	case "heist_start":
		var params heistParams
		if err := json.Unmarshal(intent.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid heist params: %w", err)
		}
		return func(ctx context.Context) (any, error) {
			return a.startHeist(ctx, actorID, params)
		}, nil
	case "heist_complete":
		var params heistParams
		if err := json.Unmarshal(intent.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid heist params: %w", err)
		}
		return func(ctx context.Context) (any, error) {
			return a.completeHeist(ctx, actorID, params)
		}, nil
	case "attack_player":
		var params attackParams
		if err := json.Unmarshal(intent.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid attack params: %w", err)
		}
		return func(ctx context.Context) (any, error) {
			return a.attackPlayer(ctx, actorID, params)
		}, nil
	case "property_purchase":
		var params propertyParams
		if err := json.Unmarshal(intent.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid property params: %w", err)
		}
		return func(ctx context.Context) (any, error) {
			return a.purchaseProperty(ctx, actorID, params)
		}, nil
	case "crew_war_declare":
		var params warParams
		if err := json.Unmarshal(intent.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid war params: %w", err)
		}
		return func(ctx context.Context) (any, error) {
			return a.declareWar(ctx, actorID, params)
		}, nil
	case "market_trade":
		var params tradeParams
		if err := json.Unmarshal(intent.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid trade params: %w", err)
		}
		return func(ctx context.Context) (any, error) {
			return a.settleTrade(ctx, actorID, params)
		}, nil
	case "turf_claim":
		var params turfParams
		if err := json.Unmarshal(intent.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid turf params: %w", err)
		}
		return func(ctx context.Context) (any, error) {
			return a.claimTurf(ctx, actorID, params)
		}, nil
	default:
		return nil, &types.ValidationError{Field: "type", Message: fmt.Sprintf("unknown intent type %q", intent.Type)}
	}
}

func (a *Actions) commitCrime(ctx context.Context, actorID string, params crimeParams) (any, error) {
	eventType := params.EventType
	if eventType == "" {
		eventType = "robbery"
	}

	event, err := a.engine.LogEvent(ctx, params.DistrictID, eventType, params.Severity, actorID, params.TargetID, nil)
	if err != nil {
		return nil, err
	}

	delta := types.ReputationDelta{
		Respect: params.Severity,
		Fear:    params.Severity / 2,
		Heat:    params.Severity,
	}
	if _, err := a.ledger.Modify(ctx, actorID, types.TargetDistrict, params.DistrictID, delta, "crime: "+eventType, ""); err != nil {
		return nil, err
	}

	if _, err := a.propagator.Propagate(ctx, actorID, types.TargetDistrict, params.DistrictID, delta, nil); err != nil {
		a.logger.Warn("Crime spillover failed",
			zap.String("actor_id", actorID),
			zap.String("district_id", params.DistrictID),
			zap.Error(err))
	}

	return event, nil
}

func (a *Actions) startHeist(ctx context.Context, actorID string, params heistParams) (any, error) {
	event, err := a.engine.LogEvent(ctx, params.DistrictID, "heist", params.Severity, actorID, "", nil)
	if err != nil {
		return nil, err
	}

	if err := a.engine.AdjustTension(ctx, params.DistrictID, params.Severity); err != nil {
		return nil, err
	}

	return event, nil
}

func (a *Actions) completeHeist(ctx context.Context, actorID string, params heistParams) (any, error) {
	delta := types.ReputationDelta{
		Respect: params.Severity * 2,
		Fear:    params.Severity,
		Heat:    params.Severity * 2,
	}

	targetType := types.TargetDistrict
	targetID := params.DistrictID
	if params.FactionID != "" {
		targetType = types.TargetFaction
		targetID = params.FactionID
	}

	record, err := a.ledger.Modify(ctx, actorID, targetType, targetID, delta, "heist completed", "")
	if err != nil {
		return nil, err
	}

	if _, err := a.propagator.Propagate(ctx, actorID, targetType, targetID, delta, nil); err != nil {
		a.logger.Warn("Heist spillover failed",
			zap.String("actor_id", actorID),
			zap.String("target_id", targetID),
			zap.Error(err))
	}

	return record, nil
}

func (a *Actions) attackPlayer(ctx context.Context, actorID string, params attackParams) (any, error) {
	event, err := a.engine.LogEvent(ctx, params.DistrictID, "crew_battle", params.Severity, actorID, params.TargetID, nil)
	if err != nil {
		return nil, err
	}

	if err := a.engine.AdjustTension(ctx, params.DistrictID, params.Severity*2); err != nil {
		return nil, err
	}

	delta := types.ReputationDelta{
		Fear:  params.Severity * 2,
		Trust: -params.Severity,
		Heat:  params.Severity,
	}
	if _, err := a.ledger.Modify(ctx, actorID, types.TargetPlayer, params.TargetID, delta, "attacked", ""); err != nil {
		return nil, err
	}

	return event, nil
}

func (a *Actions) purchaseProperty(ctx context.Context, actorID string, params propertyParams) (any, error) {
	event, err := a.engine.LogEvent(ctx, params.DistrictID, "property_purchase", params.Severity, actorID, "", nil)
	if err != nil {
		return nil, err
	}

	delta := types.ReputationDelta{Respect: params.Severity, Trust: params.Severity}
	if _, err := a.ledger.Modify(ctx, actorID, types.TargetDistrict, params.DistrictID, delta, "property purchase", ""); err != nil {
		return nil, err
	}

	return event, nil
}

func (a *Actions) declareWar(ctx context.Context, actorID string, params warParams) (any, error) {
	if err := a.engine.AdjustTension(ctx, params.DistrictID, 20); err != nil {
		return nil, err
	}

	delta := types.ReputationDelta{Fear: 15, Trust: -10}
	record, err := a.ledger.Modify(ctx, actorID, types.TargetCrew, params.RivalID, delta, "war declared", "")
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (a *Actions) settleTrade(ctx context.Context, actorID string, params tradeParams) (any, error) {
	trust := params.Volume / 10
	if trust < 1 {
		trust = 1
	}

	delta := types.ReputationDelta{Trust: trust}
	record, err := a.ledger.Modify(ctx, actorID, types.TargetDistrict, params.DistrictID, delta, "market trade", "")
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (a *Actions) claimTurf(ctx context.Context, actorID string, params turfParams) (any, error) {
	event, err := a.engine.LogEvent(ctx, params.DistrictID, "turf_claim", params.Severity, actorID, "", nil)
	if err != nil {
		return nil, err
	}

	if err := a.engine.AdjustTension(ctx, params.DistrictID, params.Severity); err != nil {
		return nil, err
	}

	if params.FactionID != "" {
		delta := types.ReputationDelta{Respect: -params.Severity, Fear: params.Severity}
		if _, err := a.ledger.Modify(ctx, actorID, types.TargetFaction, params.FactionID, delta, "turf claimed", ""); err != nil {
			return nil, err
		}
	}

	return event, nil
}
