package district

import (
	"fmt"

	"github.com/user/lei-da-rua/internal/types"
)

const (
	minSeverity = 1
	maxSeverity = 10

	// Per-metric deltas attached to a stored event never exceed this magnitude
	maxImpact = 50
)

// ImpactTable maps event types to their per-metric severity multipliers
type ImpactTable map[string]types.ImpactMultipliers

// DefaultImpactTable returns the built-in event type multipliers.
// Deployments override entries via assets/data/impact_table.json.
func DefaultImpactTable() ImpactTable {
	return ImpactTable{
		"crew_battle":       {Crime: 3, Police: 2, Property: 0, Business: -1, Activity: 2},
		"police_raid":       {Crime: -2, Police: 3, Property: 0, Business: -1, Activity: 0},
		"heist":             {Crime: 2, Police: 2, Property: -1, Business: -2, Activity: 1},
		"robbery":           {Crime: 2, Police: 1, Property: -1, Business: -1, Activity: 0},
		"drug_deal":         {Crime: 1, Police: 0, Property: 0, Business: 0, Activity: 1},
		"murder":            {Crime: 4, Police: 3, Property: -2, Business: -2, Activity: -1},
		"property_purchase": {Crime: 0, Police: 0, Property: 2, Business: 1, Activity: 0},
		"business_opened":   {Crime: -1, Police: 0, Property: 1, Business: 3, Activity: 1},
		"street_party":      {Crime: 0, Police: 1, Property: 0, Business: 1, Activity: 3},
		"police_patrol":     {Crime: -1, Police: 2, Property: 0, Business: 0, Activity: -1},
		"turf_claim":        {Crime: 2, Police: 0, Property: -1, Business: 0, Activity: 1},
		"community_project": {Crime: -2, Police: 0, Property: 1, Business: 2, Activity: 1},
	}
}

// Validate rejects empty or unusable tables at load time
func (t ImpactTable) Validate() error {
	if len(t) == 0 {
		return &types.ValidationError{Field: "impact_table", Message: "no event types defined"}
	}
	for eventType, multipliers := range t {
		if eventType == "" {
			return &types.ValidationError{Field: "impact_table", Message: "empty event type"}
		}
		if multipliers == (types.ImpactMultipliers{}) {
			return &types.ValidationError{
				Field:   "impact_table",
				Message: fmt.Sprintf("event type %q has all-zero multipliers", eventType),
			}
		}
	}
	return nil
}

// Compute maps (event type, severity) to the five per-metric deltas.
// It is a pure function with no side effects.
func (t ImpactTable) Compute(eventType string, severity int) (types.ImpactDeltas, error) {
	if severity < minSeverity || severity > maxSeverity {
		return types.ImpactDeltas{}, &types.ValidationError{
			Field:   "severity",
			Message: fmt.Sprintf("%d outside %d-%d", severity, minSeverity, maxSeverity),
		}
	}

	multipliers, exists := t[eventType]
	if !exists {
		return types.ImpactDeltas{}, &types.ValidationError{
			Field:   "event_type",
			Message: fmt.Sprintf("unknown event type %q", eventType),
		}
	}

	return types.ImpactDeltas{
		Crime:    clampImpact(severity * multipliers.Crime),
		Police:   clampImpact(severity * multipliers.Police),
		Property: clampImpact(severity * multipliers.Property),
		Business: clampImpact(severity * multipliers.Business),
		Activity: clampImpact(severity * multipliers.Activity),
	}, nil
}

func clampImpact(delta int) int {
	if delta > maxImpact {
		return maxImpact
	}
	if delta < -maxImpact {
		return -maxImpact
	}
	return delta
}
