package types

import "time"

// District statuses derived from current metrics
const (
	StatusWarzone     = "warzone"
	StatusGentrifying = "gentrifying"
	StatusDeclining   = "declining"
	StatusVolatile    = "volatile"
	StatusStable      = "stable"
)

// DistrictMetrics holds the simulated condition of one district.
// All values are clamped to 0-100.
type DistrictMetrics struct {
	CrimeLevel     int `json:"crime_level"`
	PolicePresence int `json:"police_presence"`
	PropertyValue  int `json:"property_value"`
	BusinessHealth int `json:"business_health"`
	StreetActivity int `json:"street_activity"`
	CrewTension    int `json:"crew_tension"`
}

// DistrictState is the authoritative row for one district
type DistrictState struct {
	ID             string          `json:"id"`
	Metrics        DistrictMetrics `json:"metrics"`
	Status         string          `json:"status"`
	LastCalculated time.Time       `json:"last_calculated"`
}

// ImpactDeltas are the per-metric effects of one district event,
// each clamped to -50..50 before being stored.
type ImpactDeltas struct {
	Crime    int `json:"crime"`
	Police   int `json:"police"`
	Property int `json:"property"`
	Business int `json:"business"`
	Activity int `json:"activity"`
}

// ImpactMultipliers scale event severity into per-metric deltas
type ImpactMultipliers struct {
	Crime    int `json:"crime"`
	Police   int `json:"police"`
	Property int `json:"property"`
	Business int `json:"business"`
	Activity int `json:"activity"`
}

// DistrictEvent is an immutable record of one raw occurrence
type DistrictEvent struct {
	ID         string            `json:"id"`
	DistrictID string            `json:"district_id"`
	EventType  string            `json:"event_type"`
	Severity   int               `json:"severity"`
	ActorID    string            `json:"actor_id,omitempty"`
	TargetID   string            `json:"target_id,omitempty"`
	Impacts    ImpactDeltas      `json:"impacts"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Processed  bool              `json:"processed"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ThresholdDirection tells which side of the threshold value triggers
const (
	DirectionAbove = "above"
	DirectionBelow = "below"
)

// ThresholdDefinition is the static config of a triggerable district modifier
type ThresholdDefinition struct {
	EventType   string             `json:"event_type"`
	Metric      string             `json:"metric"`
	Direction   string             `json:"direction"`
	Value       int                `json:"value"`
	Duration    int                `json:"duration_minutes"`
	Cooldown    int                `json:"cooldown_minutes"`
	Effects     map[string]float64 `json:"effects"`
	Description string             `json:"description,omitempty"`
}

// ActiveDistrictEvent is a fired, time-boxed district modifier
type ActiveDistrictEvent struct {
	ID          string             `json:"id"`
	DistrictID  string             `json:"district_id"`
	EventType   string             `json:"event_type"`
	TriggeredBy string             `json:"triggered_by"`
	MetricValue int                `json:"metric_value"`
	Effects     map[string]float64 `json:"effects"`
	StartedAt   time.Time          `json:"started_at"`
	ExpiresAt   time.Time          `json:"expires_at"`
	Ended       bool               `json:"ended"`
}

// DistrictModifiers are the gameplay multipliers derived from district metrics
type DistrictModifiers struct {
	CrimeDifficulty     float64 `json:"crime_difficulty"`
	PropertyIncome      float64 `json:"property_income"`
	RecruitmentEase     float64 `json:"recruitment_ease"`
	HeatDecayRate       float64 `json:"heat_decay_rate"`
	PoliceResponseDelay float64 `json:"police_response_delay"`
	PayoutBonus         float64 `json:"payout_bonus"`
	ShopPriceIndex      float64 `json:"shop_price_index"`

	// Extra effects contributed by open threshold events
	ActiveEffects map[string]float64 `json:"active_effects,omitempty"`
}

// District is the static description of one territorial unit
type District struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Zone     string   `json:"zone,omitempty"`
	Adjacent []string `json:"adjacent"`
}
