package types

import "time"

// Reputation targets
const (
	TargetFaction  = "faction"
	TargetDistrict = "district"
	TargetPlayer   = "player"
	TargetCrew     = "crew"
)

// Standing labels, ordered roughly worst to best
const (
	StandingHated     = "hated"
	StandingNotorious = "notorious"
	StandingUnknown   = "unknown"
	StandingKnown     = "known"
	StandingFeared    = "feared"
	StandingTrusted   = "trusted"
	StandingRespected = "respected"
	StandingLegendary = "legendary"
)

// ReputationDelta carries the dimension changes of one modify call.
// A zero field leaves that dimension untouched.
type ReputationDelta struct {
	Respect int `json:"respect,omitempty"`
	Fear    int `json:"fear,omitempty"`
	Trust   int `json:"trust,omitempty"`
	Heat    int `json:"heat,omitempty"`
}

// IsZero reports whether no dimension is touched
func (d ReputationDelta) IsZero() bool {
	return d.Respect == 0 && d.Fear == 0 && d.Trust == 0 && d.Heat == 0
}

// ReputationRecord is an actor's bounded opinion profile toward one target.
// Respect, fear and trust range -100..100; heat ranges 0..100.
type ReputationRecord struct {
	ActorID    string    `json:"actor_id"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Respect    int       `json:"respect"`
	Fear       int       `json:"fear"`
	Trust      int       `json:"trust"`
	Heat       int       `json:"heat"`
	Standing   string    `json:"standing"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ReputationEvent is an immutable audit entry for one dimension change
type ReputationEvent struct {
	ID             string    `json:"id"`
	ActorID        string    `json:"actor_id"`
	TargetType     string    `json:"target_type"`
	TargetID       string    `json:"target_id"`
	Dimension      string    `json:"dimension"`
	OldValue       int       `json:"old_value"`
	NewValue       int       `json:"new_value"`
	Delta          int       `json:"delta"`
	Clamped        bool      `json:"clamped"`
	Reason         string    `json:"reason"`
	RelatedActorID string    `json:"related_actor_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Spillover describes one applied propagation write
type Spillover struct {
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id"`
	Delta      ReputationDelta `json:"delta"`
}

// Faction is a static social unit of the relationship graph
type Faction struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Allies       []string `json:"allies"`
	Enemies      []string `json:"enemies"`
	HomeDistrict string   `json:"home_district"`
	Territories  []string `json:"territories"`

	// Value-alignment flags used by gameplay services
	ValuesLoyalty  bool `json:"values_loyalty"`
	ValuesViolence bool `json:"values_violence"`
	ValuesMoney    bool `json:"values_money"`
}

// OperatesIn reports whether the faction has a foothold in the district
func (f *Faction) OperatesIn(districtID string) bool {
	if f.HomeDistrict == districtID {
		return true
	}
	for _, t := range f.Territories {
		if t == districtID {
			return true
		}
	}
	return false
}
