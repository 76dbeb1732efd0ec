package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("SENTINEL_DEFAULT_MODE", "traditional")
	os.Setenv("SENTINEL_LOG_LEVEL", "debug")
	os.Setenv("SENTINEL_CLARIFICATION_THRESHOLD", "0.6")
	defer func() {
		os.Unsetenv("SENTINEL_DEFAULT_MODE")
		os.Unsetenv("SENTINEL_LOG_LEVEL")
		os.Unsetenv("SENTINEL_CLARIFICATION_THRESHOLD")
	}()

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Planner.DefaultMode != "traditional" {
		t.Errorf("DefaultMode = %s, want traditional", cfg.Planner.DefaultMode)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}

	if cfg.Planner.ClarificationThreshold != 0.6 {
		t.Errorf("ClarificationThreshold = %f, want 0.6", cfg.Planner.ClarificationThreshold)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Planner.BaseConfidence != 0.7 {
		t.Errorf("BaseConfidence = %f, want 0.7", cfg.Planner.BaseConfidence)
	}
	if cfg.Planner.FailedAssumptionPenalty != 0.5 {
		t.Errorf("FailedAssumptionPenalty = %f, want 0.5", cfg.Planner.FailedAssumptionPenalty)
	}
	if cfg.Planner.KeywordMaxWords != 3 {
		t.Errorf("KeywordMaxWords = %d, want 3", cfg.Planner.KeywordMaxWords)
	}
	if cfg.Cache.Type != "memory" {
		t.Errorf("Cache.Type = %s, want memory", cfg.Cache.Type)
	}
	if cfg.LLM.PrimaryModel == "" {
		t.Error("PrimaryModel default should not be empty")
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
planner:
  default_mode: hybrid
  clarification_threshold: 0.4
  evidence_collection: docs
llm:
  primary_model: "qwen2.5:3b"
  escalation_model: "qwen2.5:14b"
log:
  level: warn
  format: json
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Planner.ClarificationThreshold != 0.4 {
		t.Errorf("ClarificationThreshold = %f, want 0.4", cfg.Planner.ClarificationThreshold)
	}

	if cfg.Planner.EvidenceCollection != "docs" {
		t.Errorf("EvidenceCollection = %s, want docs", cfg.Planner.EvidenceCollection)
	}

	if cfg.LLM.PrimaryModel != "qwen2.5:3b" {
		t.Errorf("PrimaryModel = %s, want qwen2.5:3b", cfg.LLM.PrimaryModel)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %s, want warn", cfg.Log.Level)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid mode",
			mutate:  func(c *Config) { c.Planner.DefaultMode = "psychic" },
			wantErr: true,
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Planner.ClarificationThreshold = 1.5 },
			wantErr: true,
		},
		{
			name:    "zero penalty",
			mutate:  func(c *Config) { c.Planner.FailedAssumptionPenalty = 0 },
			wantErr: true,
		},
		{
			name:    "top_k below clamp floor",
			mutate:  func(c *Config) { c.Planner.DefaultTopK = 2 },
			wantErr: true,
		},
		{
			name:    "invalid cache type",
			mutate:  func(c *Config) { c.Cache.Type = "disk" },
			wantErr: true,
		},
		{
			name:    "missing model with model path enabled",
			mutate:  func(c *Config) { c.LLM.PrimaryModel = "" },
			wantErr: true,
		},
		{
			name: "missing model with model path disabled",
			mutate: func(c *Config) {
				c.Planner.ModelEnabled = false
				c.LLM.PrimaryModel = ""
			},
			wantErr: false,
		},
		{
			name:    "invalid bus type",
			mutate:  func(c *Config) { c.Bus.Type = "nats" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
