package district

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/user/lei-da-rua/internal/interfaces"
	"github.com/user/lei-da-rua/internal/types"
	"go.uber.org/zap"
)

// Scheduler fires and retires timed district modifiers when metrics cross
// their configured thresholds
type Scheduler struct {
	store       interfaces.Store
	definitions []types.ThresholdDefinition
	districts   []string
	logger      *zap.Logger
}

// NewScheduler creates a threshold scheduler for the given district ids
func NewScheduler(store interfaces.Store, definitions []types.ThresholdDefinition, districts []string, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:       store,
		definitions: definitions,
		districts:   districts,
		logger:      logger,
	}
}

// DefaultThresholdDefinitions returns the built-in timed modifiers.
// Deployments override them via assets/data/thresholds.json.
func DefaultThresholdDefinitions() []types.ThresholdDefinition {
	return []types.ThresholdDefinition{
		{
			EventType: "police_crackdown",
			Metric:    "crime",
			Direction: types.DirectionAbove,
			Value:     80,
			Duration:  120,
			Cooldown:  360,
			Effects:   map[string]float64{"crime_difficulty": 0.3, "police_response_delay": -0.4},
		},
		{
			EventType: "street_festival",
			Metric:    "activity",
			Direction: types.DirectionAbove,
			Value:     75,
			Duration:  180,
			Cooldown:  720,
			Effects:   map[string]float64{"payout_bonus": 0.2, "shop_price_index": 0.1},
		},
		{
			EventType: "business_boom",
			Metric:    "business",
			Direction: types.DirectionAbove,
			Value:     80,
			Duration:  720,
			Cooldown:  1440,
			Effects:   map[string]float64{"property_income": 0.25},
		},
		{
			EventType: "urban_exodus",
			Metric:    "property",
			Direction: types.DirectionBelow,
			Value:     20,
			Duration:  720,
			Cooldown:  1440,
			Effects:   map[string]float64{"shop_price_index": -0.2, "recruitment_ease": 0.2},
		},
		{
			EventType: "crew_standoff",
			Metric:    "tension",
			Direction: types.DirectionAbove,
			Value:     70,
			Duration:  240,
			Cooldown:  480,
			Effects:   map[string]float64{"crime_difficulty": 0.2, "payout_bonus": 0.15},
		},
		{
			EventType: "patrol_withdrawal",
			Metric:    "police",
			Direction: types.DirectionBelow,
			Value:     25,
			Duration:  360,
			Cooldown:  720,
			Effects:   map[string]float64{"heat_decay_rate": 0.3, "crime_difficulty": -0.2},
		},
	}
}

// ValidateDefinitions rejects malformed threshold config at load time
func ValidateDefinitions(definitions []types.ThresholdDefinition) error {
	seen := make(map[string]bool, len(definitions))
	for _, def := range definitions {
		if def.EventType == "" {
			return &types.ValidationError{Field: "threshold.event_type", Message: "empty"}
		}
		if seen[def.EventType] {
			return &types.ValidationError{Field: "threshold.event_type", Message: "duplicate " + def.EventType}
		}
		seen[def.EventType] = true
		if _, ok := metricValue(types.DistrictMetrics{}, def.Metric); !ok {
			return &types.ValidationError{Field: "threshold.metric", Message: def.Metric}
		}
		if def.Direction != types.DirectionAbove && def.Direction != types.DirectionBelow {
			return &types.ValidationError{Field: "threshold.direction", Message: def.Direction}
		}
		if def.Value < 0 || def.Value > 100 {
			return &types.ValidationError{Field: "threshold.value", Message: fmt.Sprintf("%d outside 0-100", def.Value)}
		}
		if def.Duration <= 0 {
			return &types.ValidationError{Field: "threshold.duration", Message: "must be positive"}
		}
		if def.Cooldown < 0 {
			return &types.ValidationError{Field: "threshold.cooldown", Message: "must not be negative"}
		}
	}
	return nil
}

func metricValue(m types.DistrictMetrics, metric string) (int, bool) {
	switch metric {
	case "crime":
		return m.CrimeLevel, true
	case "police":
		return m.PolicePresence, true
	case "property":
		return m.PropertyValue, true
	case "business":
		return m.BusinessHealth, true
	case "activity":
		return m.StreetActivity, true
	case "tension":
		return m.CrewTension, true
	default:
		return 0, false
	}
}

// CheckThresholds compares every district's metrics against the configured
// definitions and opens a timed modifier for each fresh crossing. A district
// that fails is logged and skipped so the sweep continues.
func (s *Scheduler) CheckThresholds(ctx context.Context) int {
	opened := 0
	for _, districtID := range s.districts {
		n, err := s.checkDistrict(ctx, districtID)
		if err != nil {
			s.logger.Error("Threshold check failed for district",
				zap.String("district_id", districtID),
				zap.Error(err))
			continue
		}
		opened += n
	}
	return opened
}

func (s *Scheduler) checkDistrict(ctx context.Context, districtID string) (int, error) {
	state, err := s.store.GetDistrictState(ctx, districtID)
	if err != nil {
		var notFound *types.NotFoundError
		if errors.As(err, &notFound) {
			// Untouched district, nothing can cross yet
			return 0, nil
		}
		return 0, err
	}

	opened := 0
	now := time.Now()
	for _, def := range s.definitions {
		value, ok := metricValue(state.Metrics, def.Metric)
		if !ok {
			continue
		}
		if !crossed(value, def) {
			continue
		}
		fired, err := s.tryOpen(ctx, districtID, def, value, now)
		if err != nil {
			s.logger.Error("Failed to open threshold event",
				zap.String("district_id", districtID),
				zap.String("event_type", def.EventType),
				zap.Error(err))
			continue
		}
		if fired {
			opened++
		}
	}
	return opened, nil
}

func crossed(value int, def types.ThresholdDefinition) bool {
	if def.Direction == types.DirectionAbove {
		return value >= def.Value
	}
	return value <= def.Value
}

// tryOpen fires one threshold event unless an instance is already open or
// the cooldown since the previous instance has not elapsed
func (s *Scheduler) tryOpen(ctx context.Context, districtID string, def types.ThresholdDefinition, value int, now time.Time) (bool, error) {
	var notFound *types.NotFoundError

	if _, err := s.store.GetOpenActiveEvent(ctx, districtID, def.EventType); err == nil {
		return false, nil
	} else if !errors.As(err, &notFound) {
		return false, err
	}

	last, err := s.store.LastActiveEvent(ctx, districtID, def.EventType)
	if err != nil && !errors.As(err, &notFound) {
		return false, err
	}
	if last != nil {
		cooldownEnds := last.ExpiresAt.Add(time.Duration(def.Cooldown) * time.Minute)
		if now.Before(cooldownEnds) {
			return false, nil
		}
	}

	event := &types.ActiveDistrictEvent{
		ID:          uuid.New().String(),
		DistrictID:  districtID,
		EventType:   def.EventType,
		TriggeredBy: def.Metric,
		MetricValue: value,
		Effects:     def.Effects,
		StartedAt:   now,
		ExpiresAt:   now.Add(time.Duration(def.Duration) * time.Minute),
	}
	if err := s.store.OpenActiveEvent(ctx, event); err != nil {
		return false, err
	}

	s.logger.Info("Threshold event opened",
		zap.String("district_id", districtID),
		zap.String("event_type", def.EventType),
		zap.String("metric", def.Metric),
		zap.Int("value", value),
		zap.Time("expires_at", event.ExpiresAt))
	return true, nil
}

// CloseExpired ends every open threshold event past its expiry and
// removes its effects from the combined modifier lookup
func (s *Scheduler) CloseExpired(ctx context.Context) int {
	closed, err := s.store.CloseExpiredEvents(ctx, time.Now())
	if err != nil {
		s.logger.Error("Failed to close expired threshold events", zap.Error(err))
		return 0
	}
	if closed > 0 {
		s.logger.Info("Closed expired threshold events", zap.Int("count", closed))
	}
	return closed
}
