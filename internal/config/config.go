// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all planner configuration.
type Config struct {
	// Planner configuration
	Planner PlannerConfig `yaml:"planner"`

	// Model endpoint configuration
	LLM LLMConfig `yaml:"llm"`

	// Qdrant configuration
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// PlannerConfig holds decomposition settings. The heuristic constants are
// configurable rather than hard-coded because none of them has a derivation
// beyond observed behavior.
type PlannerConfig struct {
	ModelEnabled bool   `envconfig:"SENTINEL_MODEL_ENABLED" yaml:"model_enabled"`
	DefaultMode  string `envconfig:"SENTINEL_DEFAULT_MODE" yaml:"default_mode"`

	MaxPlanningTimeSeconds int `envconfig:"SENTINEL_MAX_PLANNING_TIME" yaml:"max_planning_time_seconds"`

	// Confidence thresholds and penalties.
	ClarificationThreshold  float64 `envconfig:"SENTINEL_CLARIFICATION_THRESHOLD" yaml:"clarification_threshold"`
	FailedAssumptionPenalty float64 `envconfig:"SENTINEL_FAILED_ASSUMPTION_PENALTY" yaml:"failed_assumption_penalty"`
	HighConfidencePrior     float64 `envconfig:"SENTINEL_HIGH_CONFIDENCE_PRIOR" yaml:"high_confidence_prior"`
	BaseConfidence          float64 `envconfig:"SENTINEL_BASE_CONFIDENCE" yaml:"base_confidence"`

	// Heuristic decomposition knobs.
	KeywordMaxWords    int `envconfig:"SENTINEL_KEYWORD_MAX_WORDS" yaml:"keyword_max_words"`
	DefaultTopK        int `envconfig:"SENTINEL_DEFAULT_TOP_K" yaml:"default_top_k"`
	ListTopK           int `envconfig:"SENTINEL_LIST_TOP_K" yaml:"list_top_k"`
	MaxComparisonTerms int `envconfig:"SENTINEL_MAX_COMPARISON_TERMS" yaml:"max_comparison_terms"`

	// Validation knobs.
	SimilarityFloor    float64 `envconfig:"SENTINEL_SIMILARITY_FLOOR" yaml:"similarity_floor"`
	SchemaSampleLimit  int     `envconfig:"SENTINEL_SCHEMA_SAMPLE_LIMIT" yaml:"schema_sample_limit"`
	EvidenceCollection string  `envconfig:"SENTINEL_EVIDENCE_COLLECTION" yaml:"evidence_collection"`
	EntityCollection   string  `envconfig:"SENTINEL_ENTITY_COLLECTION" yaml:"entity_collection"`
}

// LLMConfig holds model endpoint settings.
type LLMConfig struct {
	BaseURL           string  `envconfig:"SENTINEL_LLM_URL" yaml:"base_url"`
	PrimaryModel      string  `envconfig:"SENTINEL_PRIMARY_MODEL" yaml:"primary_model"`
	EscalationModel   string  `envconfig:"SENTINEL_ESCALATION_MODEL" yaml:"escalation_model"`
	EmbedModel        string  `envconfig:"SENTINEL_EMBED_MODEL" yaml:"embed_model"`
	Temperature       float64 `envconfig:"SENTINEL_LLM_TEMPERATURE" yaml:"temperature"`
	MaxTokens         int     `envconfig:"SENTINEL_LLM_MAX_TOKENS" yaml:"max_tokens"`
	TimeoutSeconds    int     `envconfig:"SENTINEL_LLM_TIMEOUT" yaml:"timeout_seconds"`
	RequestsPerSecond float64 `envconfig:"SENTINEL_LLM_RPS" yaml:"requests_per_second"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Host   string `envconfig:"QDRANT_HOST" yaml:"host"`
	Port   int    `envconfig:"QDRANT_PORT" yaml:"port"`
	APIKey string `envconfig:"QDRANT_API_KEY" yaml:"api_key"`
	UseTLS bool   `envconfig:"QDRANT_USE_TLS" yaml:"use_tls"`
}

// CacheConfig holds plan cache settings.
type CacheConfig struct {
	Enabled    bool   `envconfig:"SENTINEL_CACHE_ENABLED" yaml:"enabled"`
	Type       string `envconfig:"SENTINEL_CACHE_TYPE" yaml:"type"`
	TTLSeconds int    `envconfig:"SENTINEL_CACHE_TTL" yaml:"ttl_seconds"`
	RedisURL   string `envconfig:"SENTINEL_REDIS_URL" yaml:"redis_url"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type         string `envconfig:"SENTINEL_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"SENTINEL_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaClient  string `envconfig:"SENTINEL_KAFKA_CLIENT" yaml:"kafka_client"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"SENTINEL_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"SENTINEL_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Planner = PlannerConfig{
		ModelEnabled:            true,
		DefaultMode:             "hybrid",
		MaxPlanningTimeSeconds:  30,
		ClarificationThreshold:  0.5,
		FailedAssumptionPenalty: 0.5,
		HighConfidencePrior:     0.7,
		BaseConfidence:          0.7,
		KeywordMaxWords:         3,
		DefaultTopK:             10,
		ListTopK:                15,
		MaxComparisonTerms:      3,
		SimilarityFloor:         0.3,
		SchemaSampleLimit:       200,
		EvidenceCollection:      "evidence",
		EntityCollection:        "entities",
	}

	cfg.LLM = LLMConfig{
		BaseURL:           "http://localhost:11434",
		PrimaryModel:      "llama3.2:3b",
		EscalationModel:   "llama3.1:8b",
		EmbedModel:        "nomic-embed-text",
		Temperature:       0.1,
		MaxTokens:         1024,
		TimeoutSeconds:    20,
		RequestsPerSecond: 4,
	}

	cfg.Qdrant = QdrantConfig{
		Host: "localhost",
		Port: 6334,
	}

	cfg.Cache = CacheConfig{
		Enabled:    true,
		Type:       "memory",
		TTLSeconds: 300,
		RedisURL:   "redis://localhost:6379",
	}

	cfg.Bus = BusConfig{
		Type: "memory",
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	validModes := map[string]bool{"embedding_only": true, "traditional": true, "hybrid": true, "graph_traversal": true, "agentic": true}
	if !validModes[c.Planner.DefaultMode] {
		errs = append(errs, fmt.Sprintf("invalid default mode: %s", c.Planner.DefaultMode))
	}

	if c.Planner.MaxPlanningTimeSeconds < 1 {
		errs = append(errs, "max_planning_time_seconds must be positive")
	}

	if c.Planner.ClarificationThreshold < 0 || c.Planner.ClarificationThreshold > 1 {
		errs = append(errs, "clarification_threshold must be between 0 and 1")
	}

	if c.Planner.FailedAssumptionPenalty <= 0 || c.Planner.FailedAssumptionPenalty > 1 {
		errs = append(errs, "failed_assumption_penalty must be in (0, 1]")
	}

	if c.Planner.BaseConfidence <= 0 || c.Planner.BaseConfidence > 1 {
		errs = append(errs, "base_confidence must be in (0, 1]")
	}

	if c.Planner.KeywordMaxWords < 1 {
		errs = append(errs, "keyword_max_words must be positive")
	}

	if c.Planner.DefaultTopK < 3 || c.Planner.DefaultTopK > 20 {
		errs = append(errs, "default_top_k must be between 3 and 20")
	}

	if c.Planner.ListTopK < c.Planner.DefaultTopK || c.Planner.ListTopK > 20 {
		errs = append(errs, "list_top_k must be between default_top_k and 20")
	}

	if c.Planner.SimilarityFloor < 0 || c.Planner.SimilarityFloor > 1 {
		errs = append(errs, "similarity_floor must be between 0 and 1")
	}

	if c.Planner.ModelEnabled {
		if c.LLM.BaseURL == "" {
			errs = append(errs, "llm base_url is required when the model path is enabled")
		}
		if c.LLM.PrimaryModel == "" {
			errs = append(errs, "primary_model is required when the model path is enabled")
		}
	}

	if c.LLM.TimeoutSeconds < 1 {
		errs = append(errs, "llm timeout_seconds must be positive")
	}

	validCacheTypes := map[string]bool{"memory": true, "redis": true}
	if !validCacheTypes[c.Cache.Type] {
		errs = append(errs, fmt.Sprintf("invalid cache type: %s (must be memory or redis)", c.Cache.Type))
	}

	if c.Cache.Enabled && c.Cache.TTLSeconds < 1 {
		errs = append(errs, "cache ttl_seconds must be positive when the cache is enabled")
	}

	validBusTypes := map[string]bool{"memory": true, "kafka": true, "none": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory, kafka, or none)", c.Bus.Type))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
