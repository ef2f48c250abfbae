package config

import "testing"

func TestLoadAppliesFlagOverrides(t *testing.T) {
	t.Setenv("PUBSUB_ADDRESS", "0.0.0.0:1111")
	t.Setenv("PUBSUB_STATE_FILE", "./from-env.bin")

	cfg, err := Load([]string{"--address", "0.0.0.0:2222"}, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Address != "0.0.0.0:2222" {
		t.Fatalf("Address = %q, want flag override 0.0.0.0:2222", cfg.Address)
	}
	if cfg.StateFile != "./from-env.bin" {
		t.Fatalf("StateFile = %q, want env value ./from-env.bin", cfg.StateFile)
	}
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	cfg := &Config{
		Address:            "a",
		StateFile:           "b",
		ChunkCapacity:       1,
		MaxConnections:      1,
		CPURejectThreshold:  90,
		CPUPauseThreshold:   80,
		LogLevel:            "info",
		LogFormat:           "json",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate should reject CPUPauseThreshold < CPURejectThreshold")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := &Config{
		Address:       "a",
		StateFile:     "b",
		ChunkCapacity: 1,
		MaxConnections: 1,
		LogLevel:      "verbose",
		LogFormat:     "json",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate should reject an unknown log level")
	}
}
