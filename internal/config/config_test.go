package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Test with example config file (should work for basic structure validation)
	configPath := filepath.Join("..", "..", "config.yaml.example")
	_, err := Load(configPath)
	if err != nil {
		t.Errorf("Expected config to load successfully from example file, got error: %v", err)
	}
}

func TestLoad_InvalidPath(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Error("Expected error when loading nonexistent config file, got nil")
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	const badYAML = `
environment: { mode: "paper", log_level: "info" }
schedule: { market_check_interval: "15m", trading_start: "09:45", trading_end: "15:45", after_hours_check: false }
sizing: { max_positions: 5, global_daily_limit: 50, contract_daily_limit: 2, margin_ratio: 0.12, min_margin_ratio: 0.07, margin_usage_limit: 0.6, max_volume_per_order: 10 }
extra_unknown_key: true
`
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(badYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestConfig_IsWithinTradingHours(t *testing.T) {
	tests := []struct {
		name     string
		timeStr  string
		expected bool
	}{
		{
			name:     "during trading hours",
			timeStr:  "2024-01-08T10:00:00-05:00", // Monday 10:00 AM ET
			expected: true,
		},
		{
			name:     "before trading hours",
			timeStr:  "2024-01-08T09:00:00-05:00", // Monday 9:00 AM ET
			expected: false,
		},
		{
			name:     "after trading hours",
			timeStr:  "2024-01-08T16:00:00-05:00", // Monday 4:00 PM ET
			expected: false,
		},
		{
			name:     "weekend",
			timeStr:  "2024-01-06T10:00:00-05:00", // Saturday 10:00 AM ET
			expected: false,
		},
	}

	config := &Config{
		Schedule: ScheduleConfig{
			TradingStart: "09:45",
			TradingEnd:   "15:45",
			Timezone:     "America/New_York",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testTime, err := time.Parse(time.RFC3339, tt.timeStr)
			if err != nil {
				t.Fatalf("failed to parse test time: %v", err)
			}

			result, err := config.IsWithinTradingHours(testTime)
			if err != nil {
				t.Fatalf("IsWithinTradingHours() error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("IsWithinTradingHours() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestConfig_AfterHoursCheck(t *testing.T) {
	tests := []struct {
		name            string
		afterHoursCheck bool
		timeStr         string
		expectSkip      bool
	}{
		{
			name:            "regular hours - after hours check disabled",
			afterHoursCheck: false,
			timeStr:         "2024-01-08T10:00:00-05:00", // Monday 10:00 AM ET
			expectSkip:      false,
		},
		{
			name:            "after hours - after hours check disabled",
			afterHoursCheck: false,
			timeStr:         "2024-01-08T16:00:00-05:00", // Monday 4:00 PM ET
			expectSkip:      true,
		},
		{
			name:            "after hours - after hours check enabled",
			afterHoursCheck: true,
			timeStr:         "2024-01-08T16:00:00-05:00", // Monday 4:00 PM ET
			expectSkip:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{
				Schedule: ScheduleConfig{
					TradingStart:    "09:45",
					TradingEnd:      "15:45",
					Timezone:        "America/New_York",
					AfterHoursCheck: tt.afterHoursCheck,
				},
			}

			testTime, err := time.Parse(time.RFC3339, tt.timeStr)
			if err != nil {
				t.Fatalf("failed to parse test time: %v", err)
			}

			isWithinHours, err := config.IsWithinTradingHours(testTime)
			if err != nil {
				t.Fatalf("IsWithinTradingHours() error: %v", err)
			}
			shouldSkip := !isWithinHours && !config.Schedule.AfterHoursCheck

			if shouldSkip != tt.expectSkip {
				t.Errorf("shouldSkip = %v, expected %v (isWithinHours: %v, afterHoursCheck: %v)",
					shouldSkip, tt.expectSkip, isWithinHours, config.Schedule.AfterHoursCheck)
			}
		})
	}
}

func TestNormalize_DomainSectionsDefaulted(t *testing.T) {
	config := &Config{}
	config.Normalize()

	if config.Sizing.MaxPositions != 5 {
		t.Errorf("Expected Sizing.MaxPositions to default to 5, got %d", config.Sizing.MaxPositions)
	}
	if config.OptionSelector.MinTradingDays != 7 {
		t.Errorf("Expected OptionSelector.MinTradingDays to default to 7, got %d", config.OptionSelector.MinTradingDays)
	}
	if config.FutureSelector.VolumeWeight != 0.5 {
		t.Errorf("Expected FutureSelector.VolumeWeight to default to 0.5, got %.2f", config.FutureSelector.VolumeWeight)
	}
	if config.CombinationRisk.VegaLimit != 200.0 {
		t.Errorf("Expected CombinationRisk.VegaLimit to default to 200.0, got %.2f", config.CombinationRisk.VegaLimit)
	}
	if config.Liquidity.VolumeWeight+config.Liquidity.SpreadWeight+config.Liquidity.OpenInterestWeight != 1.0 {
		t.Errorf("Expected Liquidity weights to sum to 1.0, got %.6f",
			config.Liquidity.VolumeWeight+config.Liquidity.SpreadWeight+config.Liquidity.OpenInterestWeight)
	}
	if config.Persistence.Dir != "data/snapshots" {
		t.Errorf("Expected Persistence.Dir to default to data/snapshots, got %q", config.Persistence.Dir)
	}
	if config.Persistence.CompressionThresholdBytes != 10*1024 {
		t.Errorf("Expected Persistence.CompressionThresholdBytes to default to 10240, got %d", config.Persistence.CompressionThresholdBytes)
	}
}

func TestValidate_HedgingRequiresInstrumentWhenEnabled(t *testing.T) {
	config := validBaseConfigForDomainSections()
	config.Hedging.Enabled = true
	config.Hedging.HedgeInstrumentMultiplier = 10

	if err := config.Validate(); err == nil {
		t.Error("Expected error when hedging enabled without a hedge instrument symbol")
	}

	config.Hedging.HedgeInstrumentVTSymbol = "VX2603"
	if err := config.Validate(); err != nil {
		t.Errorf("Expected no error with hedge instrument symbol set, got %v", err)
	}
}

func TestValidate_LiquidityWeightsMustSumToOne(t *testing.T) {
	config := validBaseConfigForDomainSections()
	config.Liquidity = LiquidityMonitorConfig{VolumeWeight: 0.5, SpreadWeight: 0.5, OpenInterestWeight: 0.5}

	if err := config.Validate(); err == nil {
		t.Error("Expected error when liquidity monitor weights do not sum to 1.0")
	}
}

// validBaseConfigForDomainSections returns a config that normalizes and
// validates cleanly, for tests that only want to exercise one new section's
// validation in isolation.
func validBaseConfigForDomainSections() *Config {
	config := &Config{
		Environment: EnvironmentConfig{Mode: "paper", LogLevel: "info"},
		Schedule:    ScheduleConfig{Timezone: "America/New_York", TradingStart: "09:30", TradingEnd: "16:00"},
	}
	config.Normalize()
	return config
}
