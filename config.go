package main

import (
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Provider priority order: first entry is tried first.
	Providers []string `yaml:"providers"`

	AnthropicAPIKey string   `yaml:"anthropic_api_key"`
	AnthropicModels []string `yaml:"anthropic_models"` // fallback order
	OpenAIAPIKey    string   `yaml:"openai_api_key"`
	OpenAIModels    []string `yaml:"openai_models"` // fallback order

	// Sampling parameters for note generation.
	Temperature      float64 `yaml:"temperature"`
	MaxTokens        int     `yaml:"max_tokens"`
	TopP             float64 `yaml:"top_p"`
	FrequencyPenalty float64 `yaml:"frequency_penalty"`
	PresencePenalty  float64 `yaml:"presence_penalty"`

	// Retry budgets. NoteMaxRetries covers the primary note-generation call,
	// which tolerates latency over failure; MaxRetries covers everything else.
	MaxRetries     int `yaml:"max_retries"`
	NoteMaxRetries int `yaml:"note_max_retries"`
	BackoffBaseMs  int `yaml:"backoff_base_ms"`
	BackoffMaxMs   int `yaml:"backoff_max_ms"`

	// Compliance re-generation ceiling (retries after the initial attempt)
	// and the per-retry temperature bump (0 keeps sampling unchanged).
	ComplianceRetries    int     `yaml:"compliance_retries"`
	RetryTemperatureBump float64 `yaml:"retry_temperature_bump"`

	MinSectionChars int    `yaml:"min_section_chars"`
	SpecialtyRole   string `yaml:"specialty_role"`

	DBPath        string `yaml:"db_path"`
	NoteOutputDir string `yaml:"note_output_dir"`
	LogLevel      string `yaml:"log_level"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverrideFloat(&cfg.Temperature, "TEMPERATURE")
	envOverrideInt(&cfg.MaxTokens, "MAX_TOKENS")
	envOverrideInt(&cfg.MaxRetries, "MAX_RETRIES")
	envOverrideInt(&cfg.NoteMaxRetries, "NOTE_MAX_RETRIES")
	envOverrideInt(&cfg.BackoffBaseMs, "BACKOFF_BASE_MS")
	envOverrideInt(&cfg.BackoffMaxMs, "BACKOFF_MAX_MS")
	envOverrideInt(&cfg.ComplianceRetries, "COMPLIANCE_RETRIES")
	envOverrideInt(&cfg.MinSectionChars, "MIN_SECTION_CHARS")
	envOverride(&cfg.SpecialtyRole, "SPECIALTY_ROLE")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.NoteOutputDir, "NOTE_OUTPUT_DIR")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")

	if names := os.Getenv("PROVIDERS"); names != "" {
		cfg.Providers = nil
		for _, name := range strings.Split(names, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				cfg.Providers = append(cfg.Providers, name)
			}
		}
	}

	// Defaults
	if len(cfg.Providers) == 0 {
		cfg.Providers = []string{"anthropic", "openai"}
	}
	if len(cfg.AnthropicModels) == 0 {
		cfg.AnthropicModels = []string{"claude-sonnet-4-5-20250929", "claude-3-5-haiku-20241022"}
	}
	if len(cfg.OpenAIModels) == 0 {
		cfg.OpenAIModels = []string{"gpt-4o", "gpt-4o-mini"}
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.TopP == 0 {
		cfg.TopP = 1.0
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.NoteMaxRetries == 0 {
		cfg.NoteMaxRetries = 12
	}
	if cfg.BackoffBaseMs == 0 {
		cfg.BackoffBaseMs = 500
	}
	if cfg.BackoffMaxMs == 0 {
		cfg.BackoffMaxMs = 16000
	}
	if cfg.ComplianceRetries == 0 {
		cfg.ComplianceRetries = 2
	}
	if cfg.MinSectionChars == 0 {
		cfg.MinSectionChars = 10
	}
	if cfg.SpecialtyRole == "" {
		cfg.SpecialtyRole = "an experienced physician"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./notescribe.db"
	}
	if cfg.NoteOutputDir == "" {
		cfg.NoteOutputDir = "./notes"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	// Validate required fields
	for _, provider := range cfg.Providers {
		switch provider {
		case "anthropic":
			if cfg.AnthropicAPIKey == "" {
				log.Fatalf("anthropic_api_key is required when providers includes anthropic")
			}
		case "openai":
			if cfg.OpenAIAPIKey == "" {
				log.Fatalf("openai_api_key is required when providers includes openai")
			}
		default:
			log.Fatalf("unknown provider '%s': must be 'anthropic' or 'openai'", provider)
		}
	}

	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		log.Fatalf("invalid temperature '%f': must be between 0 and 2", cfg.Temperature)
	}
	if cfg.MaxRetries < 1 {
		log.Fatalf("invalid max_retries '%d': must be >= 1", cfg.MaxRetries)
	}
	if cfg.NoteMaxRetries < cfg.MaxRetries {
		log.Fatalf("invalid note_max_retries '%d': must be >= max_retries (%d)", cfg.NoteMaxRetries, cfg.MaxRetries)
	}
	if cfg.BackoffBaseMs < 1 {
		log.Fatalf("invalid backoff_base_ms '%d': must be >= 1", cfg.BackoffBaseMs)
	}
	if cfg.BackoffMaxMs < cfg.BackoffBaseMs {
		log.Fatalf("invalid backoff_max_ms '%d': must be >= backoff_base_ms (%d)", cfg.BackoffMaxMs, cfg.BackoffBaseMs)
	}
	if cfg.ComplianceRetries < 0 {
		log.Fatalf("invalid compliance_retries '%d': must be >= 0", cfg.ComplianceRetries)
	}
	if cfg.MinSectionChars < 1 {
		log.Fatalf("invalid min_section_chars '%d': must be >= 1", cfg.MinSectionChars)
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
