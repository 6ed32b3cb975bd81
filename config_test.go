package main

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func setMinimalValidConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PROVIDERS", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ANTHROPIC_API_KEY", "")
}

func TestLoadConfigFromEnvWithDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	setMinimalValidConfigEnv(t)

	cfg := LoadConfig()

	if len(cfg.Providers) != 1 || cfg.Providers[0] != "openai" {
		t.Fatalf("unexpected providers: %v", cfg.Providers)
	}
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Fatalf("unexpected openai key: %q", cfg.OpenAIAPIKey)
	}
	if len(cfg.OpenAIModels) != 2 || cfg.OpenAIModels[0] != "gpt-4o" {
		t.Fatalf("unexpected openai model defaults: %v", cfg.OpenAIModels)
	}
	if cfg.Temperature != 0.3 {
		t.Fatalf("unexpected temperature default: %f", cfg.Temperature)
	}
	if cfg.MaxTokens != 4096 {
		t.Fatalf("unexpected max tokens default: %d", cfg.MaxTokens)
	}
	if cfg.MaxRetries != 3 || cfg.NoteMaxRetries != 12 {
		t.Fatalf("unexpected retry defaults: %d / %d", cfg.MaxRetries, cfg.NoteMaxRetries)
	}
	if cfg.BackoffBaseMs != 500 || cfg.BackoffMaxMs != 16000 {
		t.Fatalf("unexpected backoff defaults: %d / %d", cfg.BackoffBaseMs, cfg.BackoffMaxMs)
	}
	if cfg.ComplianceRetries != 2 {
		t.Fatalf("unexpected compliance retries default: %d", cfg.ComplianceRetries)
	}
	if cfg.MinSectionChars != 10 {
		t.Fatalf("unexpected min section chars default: %d", cfg.MinSectionChars)
	}
	if cfg.SpecialtyRole != "an experienced physician" {
		t.Fatalf("unexpected specialty role default: %q", cfg.SpecialtyRole)
	}
	if cfg.DBPath != "./notescribe.db" {
		t.Fatalf("unexpected db path default: %q", cfg.DBPath)
	}
	if cfg.NoteOutputDir != "./notes" {
		t.Fatalf("unexpected note output dir default: %q", cfg.NoteOutputDir)
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
providers: ["openai"]
openai_api_key: "sk-yaml"
openai_models: ["gpt-4o-mini"]
temperature: 0.5
max_retries: 5
note_max_retries: 20
specialty_role: "a cardiologist"
db_path: "/tmp/yaml.db"
note_output_dir: "/tmp/yaml-notes"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("TEMPERATURE", "0.7")
	t.Setenv("DB_PATH", "/tmp/env.db")

	cfg := LoadConfig()

	if cfg.OpenAIAPIKey != "sk-env" {
		t.Fatalf("expected openai key from env override, got %q", cfg.OpenAIAPIKey)
	}
	if cfg.Temperature != 0.7 {
		t.Fatalf("expected temperature from env override, got %f", cfg.Temperature)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("expected db path from env override, got %q", cfg.DBPath)
	}
	if cfg.NoteOutputDir != "/tmp/yaml-notes" {
		t.Fatalf("expected note output dir from yaml, got %q", cfg.NoteOutputDir)
	}
	if len(cfg.OpenAIModels) != 1 || cfg.OpenAIModels[0] != "gpt-4o-mini" {
		t.Fatalf("expected model list from yaml, got %v", cfg.OpenAIModels)
	}
	if cfg.MaxRetries != 5 || cfg.NoteMaxRetries != 20 {
		t.Fatalf("expected retry budgets from yaml, got %d / %d", cfg.MaxRetries, cfg.NoteMaxRetries)
	}
	if cfg.SpecialtyRole != "a cardiologist" {
		t.Fatalf("expected specialty role from yaml, got %q", cfg.SpecialtyRole)
	}
}

func TestLoadConfigProviderListFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	t.Setenv("PROVIDERS", " openai , anthropic ")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ANTHROPIC_API_KEY", "ak-test")

	cfg := LoadConfig()

	if len(cfg.Providers) != 2 || cfg.Providers[0] != "openai" || cfg.Providers[1] != "anthropic" {
		t.Fatalf("unexpected providers: %v", cfg.Providers)
	}
}

func TestEnvOverrideHelpers(t *testing.T) {
	s := "initial"
	t.Setenv("NS_TEST_STR", "value")
	envOverride(&s, "NS_TEST_STR")
	if s != "value" {
		t.Fatalf("envOverride failed, got %q", s)
	}

	i := 1
	t.Setenv("NS_TEST_INT", "42")
	envOverrideInt(&i, "NS_TEST_INT")
	if i != 42 {
		t.Fatalf("envOverrideInt failed, got %d", i)
	}

	f := 0.1
	t.Setenv("NS_TEST_FLOAT", "0.75")
	envOverrideFloat(&f, "NS_TEST_FLOAT")
	if f != 0.75 {
		t.Fatalf("envOverrideFloat failed, got %f", f)
	}
}

func TestLoadConfigMissingKeyFatal(t *testing.T) {
	if os.Getenv("TEST_MISSING_KEY_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Setenv("PROVIDERS", "anthropic")
		_ = os.Setenv("ANTHROPIC_API_KEY", "")
		LoadConfig()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigMissingKeyFatal")
	cmd.Env = append(os.Environ(), "TEST_MISSING_KEY_FATAL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with failure")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got: %v", err)
	}
}

func TestLoadConfigUnknownProviderFatal(t *testing.T) {
	if os.Getenv("TEST_UNKNOWN_PROVIDER_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Setenv("PROVIDERS", "gemini")
		LoadConfig()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigUnknownProviderFatal")
	cmd.Env = append(os.Environ(), "TEST_UNKNOWN_PROVIDER_FATAL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with failure")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got: %v", err)
	}
}
