package game

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/user/lei-da-rua/internal/district"
	"github.com/user/lei-da-rua/internal/reputation"
	"github.com/user/lei-da-rua/internal/types"
)

// DataLoader handles loading simulation data from files. Missing files
// fall back to the built-in defaults so a fresh checkout runs without
// any seed data.
type DataLoader struct {
	basePath string
	logger   *zap.Logger
}

// NewDataLoader creates a new data loader
func NewDataLoader(basePath string, logger *zap.Logger) *DataLoader {
	return &DataLoader{
		basePath: basePath,
		logger:   logger,
	}
}

// LoadImpactTable loads event impact multipliers from file
func (dl *DataLoader) LoadImpactTable() (district.ImpactTable, error) {
	path := filepath.Join(dl.basePath, "impact_table.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			dl.logger.Info("Impact table file not found, using defaults", zap.String("path", path))
			return district.DefaultImpactTable(), nil
		}
		return nil, fmt.Errorf("failed to read impact table file: %w", err)
	}

	var table district.ImpactTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse impact table data: %w", err)
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid impact table: %w", err)
	}

	return table, nil
}

// LoadThresholds loads threshold event definitions from file
func (dl *DataLoader) LoadThresholds() ([]types.ThresholdDefinition, error) {
	path := filepath.Join(dl.basePath, "thresholds.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			dl.logger.Info("Thresholds file not found, using defaults", zap.String("path", path))
			return district.DefaultThresholdDefinitions(), nil
		}
		return nil, fmt.Errorf("failed to read thresholds file: %w", err)
	}

	var definitions []types.ThresholdDefinition
	if err := json.Unmarshal(data, &definitions); err != nil {
		return nil, fmt.Errorf("failed to parse thresholds data: %w", err)
	}
	if err := district.ValidateDefinitions(definitions); err != nil {
		return nil, fmt.Errorf("invalid threshold definitions: %w", err)
	}

	return definitions, nil
}

// LoadGraph loads the city districts and faction relations from file
func (dl *DataLoader) LoadGraph() (*reputation.Graph, error) {
	districtsPath := filepath.Join(dl.basePath, "districts.json")
	factionsPath := filepath.Join(dl.basePath, "factions.json")

	districtsData, derr := os.ReadFile(districtsPath)
	factionsData, ferr := os.ReadFile(factionsPath)
	if os.IsNotExist(derr) && os.IsNotExist(ferr) {
		dl.logger.Info("City data files not found, using defaults",
			zap.String("districts", districtsPath),
			zap.String("factions", factionsPath))
		return reputation.DefaultGraph(), nil
	}
	if derr != nil {
		return nil, fmt.Errorf("failed to read districts file: %w", derr)
	}
	if ferr != nil {
		return nil, fmt.Errorf("failed to read factions file: %w", ferr)
	}

	var districts []*types.District
	if err := json.Unmarshal(districtsData, &districts); err != nil {
		return nil, fmt.Errorf("failed to parse districts data: %w", err)
	}

	var factions []*types.Faction
	if err := json.Unmarshal(factionsData, &factions); err != nil {
		return nil, fmt.Errorf("failed to parse factions data: %w", err)
	}

	graph := reputation.NewGraph(factions, districts)
	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid city data: %w", err)
	}

	return graph, nil
}
