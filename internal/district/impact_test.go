package district

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/user/lei-da-rua/internal/types"
)

func TestComputeImpacts(t *testing.T) {
	table := DefaultImpactTable()

	// Test case 1: crew battle scales each multiplier by severity
	impacts, err := table.Compute("crew_battle", 5)
	assert.NoError(t, err)
	assert.Equal(t, types.ImpactDeltas{Crime: 15, Police: 10, Property: 0, Business: -5, Activity: 10}, impacts)

	// Test case 2: severity below range
	_, err = table.Compute("crew_battle", 0)
	assert.Error(t, err)
	var validation *types.ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.Equal(t, "severity", validation.Field)

	// Test case 3: severity above range
	_, err = table.Compute("crew_battle", 11)
	assert.Error(t, err)

	// Test case 4: unknown event type
	_, err = table.Compute("alien_invasion", 5)
	assert.ErrorAs(t, err, &validation)
	assert.Equal(t, "event_type", validation.Field)
}

func TestComputeImpactsClampsMagnitude(t *testing.T) {
	table := ImpactTable{
		"riot": {Crime: 10, Police: -8},
	}

	impacts, err := table.Compute("riot", 8)
	assert.NoError(t, err)
	assert.Equal(t, 50, impacts.Crime)
	assert.Equal(t, -50, impacts.Police)
}

func TestImpactTableValidate(t *testing.T) {
	assert.NoError(t, DefaultImpactTable().Validate())

	assert.Error(t, ImpactTable{}.Validate())
	assert.Error(t, ImpactTable{"": {Crime: 1}}.Validate())
	assert.Error(t, ImpactTable{"noop": {}}.Validate())
}
