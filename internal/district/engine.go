package district

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/user/lei-da-rua/config"
	"github.com/user/lei-da-rua/internal/interfaces"
	"github.com/user/lei-da-rua/internal/types"
	"go.uber.org/zap"
)

// Engine owns per-district metrics: it ingests raw events, folds them into
// authoritative state on a decayed schedule and derives gameplay modifiers.
type Engine struct {
	store   interfaces.Store
	impacts ImpactTable
	cfg     config.SimulationConfig
	logger  *zap.Logger
}

// NewEngine creates a district state engine
func NewEngine(store interfaces.Store, impacts ImpactTable, cfg config.SimulationConfig, logger *zap.Logger) *Engine {
	return &Engine{
		store:   store,
		impacts: impacts,
		cfg:     cfg,
		logger:  logger,
	}
}

// LogEvent computes impact deltas for a raw occurrence and appends it as an
// immutable district event. This write is telemetry: on a PersistenceError
// the caller logs and drops the event, gameplay is never blocked.
func (e *Engine) LogEvent(ctx context.Context, districtID, eventType string, severity int, actorID, targetID string, metadata map[string]string) (*types.DistrictEvent, error) {
	if districtID == "" {
		return nil, &types.ValidationError{Field: "district_id", Message: "empty"}
	}

	impacts, err := e.impacts.Compute(eventType, severity)
	if err != nil {
		return nil, err
	}

	event := &types.DistrictEvent{
		ID:         uuid.New().String(),
		DistrictID: districtID,
		EventType:  eventType,
		Severity:   severity,
		ActorID:    actorID,
		TargetID:   targetID,
		Impacts:    impacts,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	}

	if err := e.store.AppendDistrictEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// State returns the current district state, creating a neutral row on first
// reference so "no state yet" reads as baseline rather than an error.
func (e *Engine) State(ctx context.Context, districtID string) (*types.DistrictState, error) {
	state, err := e.store.GetDistrictState(ctx, districtID)
	if err == nil {
		return state, nil
	}
	var notFound *types.NotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	state = e.neutralState(districtID)
	if err := e.store.UpsertDistrictState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (e *Engine) neutralState(districtID string) *types.DistrictState {
	baseline := int(e.cfg.NeutralBaseline)
	return &types.DistrictState{
		ID: districtID,
		Metrics: types.DistrictMetrics{
			CrimeLevel:     baseline,
			PolicePresence: baseline,
			PropertyValue:  baseline,
			BusinessHealth: baseline,
			StreetActivity: baseline,
			CrewTension:    0,
		},
		Status:         types.StatusStable,
		LastCalculated: time.Now(),
	}
}

// Recalculate folds the trailing window of unprocessed events into the
// authoritative district state. The prior state decays toward the neutral
// baseline with elapsed time before the deltas are applied; crew tension
// relaxes toward zero instead. Idempotent per call, but callers must not run
// it concurrently for the same district.
func (e *Engine) Recalculate(ctx context.Context, districtID string) (*types.DistrictState, error) {
	state, err := e.State(ctx, districtID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	since := now.Add(-time.Duration(e.cfg.EventWindowHours) * time.Hour)
	events, err := e.store.UnprocessedEvents(ctx, districtID, since)
	if err != nil {
		return nil, err
	}

	var deltas types.ImpactDeltas
	eventIDs := make([]string, 0, len(events))
	for _, event := range events {
		deltas.Crime += event.Impacts.Crime
		deltas.Police += event.Impacts.Police
		deltas.Property += event.Impacts.Property
		deltas.Business += event.Impacts.Business
		deltas.Activity += event.Impacts.Activity
		eventIDs = append(eventIDs, event.ID)
	}

	hours := now.Sub(state.LastCalculated).Hours()
	if hours < 0 {
		hours = 0
	}
	decay := 1 - hours*e.cfg.DecayPerHour
	if decay < 0.1 {
		decay = 0.1
	}

	baseline := e.cfg.NeutralBaseline
	m := &state.Metrics
	m.CrimeLevel = blend(m.CrimeLevel, decay, baseline, deltas.Crime)
	m.PolicePresence = blend(m.PolicePresence, decay, baseline, deltas.Police)
	m.PropertyValue = blend(m.PropertyValue, decay, baseline, deltas.Property)
	m.BusinessHealth = blend(m.BusinessHealth, decay, baseline, deltas.Business)
	m.StreetActivity = blend(m.StreetActivity, decay, baseline, deltas.Activity)
	// Tension is not event-driven; it relaxes toward zero over time
	m.CrewTension = blend(m.CrewTension, decay, 0, 0)

	state.Status = DeriveStatus(*m)
	state.LastCalculated = now

	// Events are marked before the state write: a failure in between
	// drops this fold's deltas, never counts them twice on the next sweep.
	if err := e.store.MarkEventsProcessed(ctx, eventIDs); err != nil {
		return nil, err
	}
	if err := e.store.UpsertDistrictState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// blend applies time decay toward a baseline, adds accumulated deltas and
// re-clamps to the metric bounds
func blend(prior int, decay, baseline float64, delta int) int {
	value := float64(prior)*decay + baseline*(1-decay) + float64(delta)
	return clampMetric(int(math.Round(value)))
}

func clampMetric(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

// DeriveStatus maps a metric vector to exactly one district status.
// Rules are evaluated in precedence order; the first match wins.
func DeriveStatus(m types.DistrictMetrics) string {
	switch {
	case (m.CrimeLevel >= 80 && m.StreetActivity >= 70) ||
		(m.CrimeLevel >= 70 && m.CrewTension >= 60):
		return types.StatusWarzone
	case (m.CrimeLevel < 30 && m.PropertyValue >= 70) ||
		(m.PropertyValue >= 65 && m.BusinessHealth >= 60 && m.CrimeLevel <= 40):
		return types.StatusGentrifying
	case m.BusinessHealth <= 30 && m.PropertyValue <= 40:
		return types.StatusDeclining
	case m.CrimeLevel >= 60 || m.StreetActivity >= 60 ||
		(m.CrimeLevel >= 55 && m.CrewTension >= 40):
		return types.StatusVolatile
	default:
		return types.StatusStable
	}
}

// Modifiers derives the gameplay multipliers for a district from its current
// metrics plus the combined effects of open threshold events. These formulas
// are the single source of truth; callers must not hardcode them elsewhere.
func (e *Engine) Modifiers(ctx context.Context, districtID string) (*types.DistrictModifiers, error) {
	state, err := e.State(ctx, districtID)
	if err != nil {
		return nil, err
	}
	m := state.Metrics

	modifiers := &types.DistrictModifiers{
		// High police presence makes crime harder
		CrimeDifficulty: 0.5 + float64(m.PolicePresence)/100,
		// Property income tracks property value and business health
		PropertyIncome: 0.5 + float64(m.PropertyValue+m.BusinessHealth)/200,
		// Crews recruit easily where crime is high and police are scarce
		RecruitmentEase: 0.5 + float64(m.CrimeLevel+(100-m.PolicePresence))/200,
		// Heat cools faster where police are scarce
		HeatDecayRate: 0.5 + float64(100-m.PolicePresence)/100,
		// Response delay multiplier grows as presence drops
		PoliceResponseDelay: 0.5 + float64(100-m.PolicePresence)/100*1.5,
		// Busy streets pay better
		PayoutBonus: 1 + float64(m.StreetActivity-50)/200,
		// Prices climb with property value, dip with rampant crime
		ShopPriceIndex: 0.8 + float64(m.PropertyValue)/250 - float64(m.CrimeLevel)/500,
	}

	active, err := e.store.OpenActiveEvents(ctx, districtID)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		modifiers.ActiveEffects = make(map[string]float64)
		for _, event := range active {
			for effect, value := range event.Effects {
				modifiers.ActiveEffects[effect] += value
			}
		}
	}
	return modifiers, nil
}

// AdjustTension applies a clamped, row-atomic increment to crew tension.
// The crew-war service calls this when standoffs escalate or cool off.
func (e *Engine) AdjustTension(ctx context.Context, districtID string, delta int) error {
	if _, err := e.State(ctx, districtID); err != nil {
		return err
	}
	if err := e.store.AdjustDistrictMetric(ctx, districtID, "tension", delta, 0, 100); err != nil {
		return fmt.Errorf("failed to adjust tension: %w", err)
	}
	return nil
}
