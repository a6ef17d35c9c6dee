package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the simulator
// daemon. The schema matches the /api/params endpoint so the same JSON
// can be used for both startup configuration and runtime updates.
type TuningConfig struct {
	// Device register settings applied at boot
	ClkDiv         *int  `json:"clk_div,omitempty"`
	AlarmThreshold *int  `json:"alarm_threshold,omitempty"`
	DebounceCount  *int  `json:"debounce_count,omitempty"`
	IRQClassDone   *bool `json:"irq_class_done,omitempty"`
	IRQAlarm       *bool `json:"irq_alarm,omitempty"`

	// Host-side inputs
	ParamsPath   *string `json:"params_path,omitempty"`
	ScenarioPath *string `json:"scenario_path,omitempty"`
	DatabasePath *string `json:"database_path,omitempty"`
	ListenAddr   *string `json:"listen_addr,omitempty"`

	// Runner pacing
	TicksPerSlice    *int    `json:"ticks_per_slice,omitempty"`
	SliceInterval    *string `json:"slice_interval,omitempty"`    // duration string like "10ms"
	SnapshotInterval *string `json:"snapshot_interval,omitempty"` // duration string like "1s"
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file retain their
// default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath. It searches for the file in the current directory
// and common parent directories. Panics if the file cannot be loaded,
// intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values fit their register
// fields and that duration strings parse.
func (c *TuningConfig) Validate() error {
	if c.ClkDiv != nil {
		if *c.ClkDiv < 0 || *c.ClkDiv > 0xFFFF {
			return fmt.Errorf("clk_div must be between 0 and 65535, got %d", *c.ClkDiv)
		}
	}

	if c.AlarmThreshold != nil {
		if *c.AlarmThreshold < 0 || *c.AlarmThreshold > 255 {
			return fmt.Errorf("alarm_threshold must be between 0 and 255, got %d", *c.AlarmThreshold)
		}
	}

	if c.DebounceCount != nil {
		if *c.DebounceCount < 0 || *c.DebounceCount > 15 {
			return fmt.Errorf("debounce_count must be between 0 and 15, got %d", *c.DebounceCount)
		}
	}

	if c.TicksPerSlice != nil && *c.TicksPerSlice <= 0 {
		return fmt.Errorf("ticks_per_slice must be positive, got %d", *c.TicksPerSlice)
	}

	if c.SliceInterval != nil && *c.SliceInterval != "" {
		if _, err := time.ParseDuration(*c.SliceInterval); err != nil {
			return fmt.Errorf("invalid slice_interval '%s': %w", *c.SliceInterval, err)
		}
	}

	if c.SnapshotInterval != nil && *c.SnapshotInterval != "" {
		if _, err := time.ParseDuration(*c.SnapshotInterval); err != nil {
			return fmt.Errorf("invalid snapshot_interval '%s': %w", *c.SnapshotInterval, err)
		}
	}

	return nil
}

// GetClkDiv returns the clk_div value or the default.
func (c *TuningConfig) GetClkDiv() uint16 {
	if c.ClkDiv == nil {
		return 1
	}
	return uint16(*c.ClkDiv)
}

// GetAlarmThreshold returns the alarm_threshold value or the default.
func (c *TuningConfig) GetAlarmThreshold() uint8 {
	if c.AlarmThreshold == nil {
		return 180
	}
	return uint8(*c.AlarmThreshold)
}

// GetDebounceCount returns the debounce_count value or the default.
func (c *TuningConfig) GetDebounceCount() uint8 {
	if c.DebounceCount == nil {
		return 3
	}
	return uint8(*c.DebounceCount)
}

// GetIRQClassDone returns the irq_class_done value or the default.
func (c *TuningConfig) GetIRQClassDone() bool {
	if c.IRQClassDone == nil {
		return true
	}
	return *c.IRQClassDone
}

// GetIRQAlarm returns the irq_alarm value or the default.
func (c *TuningConfig) GetIRQAlarm() bool {
	if c.IRQAlarm == nil {
		return true
	}
	return *c.IRQAlarm
}

// GetParamsPath returns the params_path value or the default.
func (c *TuningConfig) GetParamsPath() string {
	if c.ParamsPath == nil || *c.ParamsPath == "" {
		return "config/params.json"
	}
	return *c.ParamsPath
}

// GetScenarioPath returns the scenario_path value or the default.
func (c *TuningConfig) GetScenarioPath() string {
	if c.ScenarioPath == nil || *c.ScenarioPath == "" {
		return "config/scenario.yaml"
	}
	return *c.ScenarioPath
}

// GetDatabasePath returns the database_path value or the default.
func (c *TuningConfig) GetDatabasePath() string {
	if c.DatabasePath == nil || *c.DatabasePath == "" {
		return "senseedge.db"
	}
	return *c.DatabasePath
}

// GetListenAddr returns the listen_addr value or the default.
func (c *TuningConfig) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":8080"
	}
	return *c.ListenAddr
}

// GetTicksPerSlice returns the ticks_per_slice value or the default.
func (c *TuningConfig) GetTicksPerSlice() int {
	if c.TicksPerSlice == nil {
		return 1000
	}
	return *c.TicksPerSlice
}

// GetSliceInterval parses and returns the SliceInterval as a
// time.Duration.
func (c *TuningConfig) GetSliceInterval() time.Duration {
	if c.SliceInterval == nil || *c.SliceInterval == "" {
		return 10 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.SliceInterval)
	if err != nil {
		return 10 * time.Millisecond
	}
	return d
}

// GetSnapshotInterval parses and returns the SnapshotInterval as a
// time.Duration.
func (c *TuningConfig) GetSnapshotInterval() time.Duration {
	if c.SnapshotInterval == nil || *c.SnapshotInterval == "" {
		return time.Second
	}
	d, err := time.ParseDuration(*c.SnapshotInterval)
	if err != nil {
		return time.Second
	}
	return d
}
