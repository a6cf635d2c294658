package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all configuration for the application
type Config struct {
	// WhatsApp configuration
	WhatsApp WhatsAppConfig `json:"whatsapp"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// Simulation configuration
	Simulation SimulationConfig `json:"simulation"`

	// Reputation propagation multipliers
	Propagation PropagationConfig `json:"propagation"`

	// Server configuration
	Server ServerConfig `json:"server"`

	// Directory holding the static game data tables
	DataDir string `json:"data_dir"`
}

// WhatsAppConfig holds WhatsApp specific configuration
type WhatsAppConfig struct {
	// Path to store WhatsApp session data
	StoreDir string `json:"store_dir"`

	// Client device name
	ClientName string `json:"client_name"`
}

// DatabaseConfig holds database specific configuration
type DatabaseConfig struct {
	// Database driver (sqlite3)
	Driver string `json:"driver"`

	// Database connection string
	DSN string `json:"dsn"`
}

// SimulationConfig holds the simulation loop configuration
type SimulationConfig struct {
	// Minutes between district recalculation sweeps
	RecalcInterval int `json:"recalc_interval"`

	// Minutes between threshold check sweeps
	ThresholdInterval int `json:"threshold_interval"`

	// Trailing window in hours of unprocessed events folded per recalculation
	EventWindowHours int `json:"event_window_hours"`

	// Hourly decay applied to prior district state
	DecayPerHour float64 `json:"decay_per_hour"`

	// Neutral value district metrics are pulled toward
	NeutralBaseline float64 `json:"neutral_baseline"`

	// Minutes an operation id is remembered by the dedup cache
	DedupTTL int `json:"dedup_ttl"`

	// Minutes between dedup cache eviction sweeps
	DedupSweepInterval int `json:"dedup_sweep_interval"`

	// Trailing window in minutes for the suspicious activity check
	SuspicionWindow int `json:"suspicion_window"`

	// Duplicate ratio (0-1) above which an actor is flagged
	SuspicionDuplicateRatio float64 `json:"suspicion_duplicate_ratio"`

	// Failure ratio (0-1) above which an actor is flagged
	SuspicionFailureRatio float64 `json:"suspicion_failure_ratio"`

	// Minimum audited operations before ratios are considered
	SuspicionMinOperations int `json:"suspicion_min_operations"`
}

// PropagationConfig holds the reputation spillover multipliers
type PropagationConfig struct {
	// Fraction of positive respect/trust passed to allied factions
	AlliedMultiplier float64 `json:"allied_multiplier"`

	// Fraction of respect/trust passed to enemy factions (negative inverts sign)
	EnemyMultiplier float64 `json:"enemy_multiplier"`

	// Fraction of absolute fear leaked to enemy factions
	FearLeakMultiplier float64 `json:"fear_leak_multiplier"`

	// Fraction of all dimensions passed to a faction's home district
	HomeDistrictMultiplier float64 `json:"home_district_multiplier"`

	// Fraction passed to geographically adjacent districts
	AdjacentMultiplier float64 `json:"adjacent_multiplier"`

	// Fraction passed to factions operating inside a district
	DistrictFactionMultiplier float64 `json:"district_faction_multiplier"`
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	// Server port
	Port string `json:"port"`

	// Log level (debug, info, warn, error)
	LogLevel string `json:"log_level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		WhatsApp: WhatsAppConfig{
			StoreDir:   "./whatsapp-store",
			ClientName: "LEI DA RUA",
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "./lei-da-rua.db",
		},
		Simulation: SimulationConfig{
			RecalcInterval:          10,
			ThresholdInterval:       5,
			EventWindowHours:        24,
			DecayPerHour:            0.02,
			NeutralBaseline:         50,
			DedupTTL:                5,
			DedupSweepInterval:      1,
			SuspicionWindow:         30,
			SuspicionDuplicateRatio: 0.5,
			SuspicionFailureRatio:   0.5,
			SuspicionMinOperations:  10,
		},
		Propagation: PropagationConfig{
			AlliedMultiplier:          0.5,
			EnemyMultiplier:           -0.3,
			FearLeakMultiplier:        0.2,
			HomeDistrictMultiplier:    0.4,
			AdjacentMultiplier:        0.25,
			DistrictFactionMultiplier: 0.3,
		},
		Server: ServerConfig{
			Port:     "8080",
			LogLevel: "info",
		},
		DataDir: "./assets/data",
	}
}

// LoadConfig loads configuration from a file
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return config, err
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Create default config file
		file, err := os.Create(path)
		if err != nil {
			return config, err
		}
		defer file.Close()

		encoder := json.NewEncoder(file)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(config); err != nil {
			return config, err
		}

		return config, nil
	}

	// Read config file
	file, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return config, err
	}

	return config, nil
}

// SaveConfig saves configuration to a file
func SaveConfig(config Config, path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Create or truncate file
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	// Write config to file
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return err
	}

	return nil
}
