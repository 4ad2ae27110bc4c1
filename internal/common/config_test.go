package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GEMINI_API_KEY", "gem-key")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.LLM.Provider != ProviderGemini {
		t.Fatalf("expected provider gemini, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.APIKey != "gem-key" {
		t.Fatalf("expected api key from GEMINI_API_KEY, got %q", cfg.LLM.APIKey)
	}
	if cfg.Batch.Workers != 3 || cfg.Batch.MaxRetries != 3 {
		t.Fatalf("unexpected batch defaults: %+v", cfg.Batch)
	}
	if cfg.Batch.BaseBackoff != time.Second {
		t.Fatalf("expected base backoff 1s, got %s", cfg.Batch.BaseBackoff)
	}
	if cfg.Export.Sheet != "Cab-Usage" {
		t.Fatalf("expected sheet Cab-Usage, got %s", cfg.Export.Sheet)
	}
	if cfg.Export.StartRow != 9 {
		t.Fatalf("expected start row 9, got %d", cfg.Export.StartRow)
	}
	if cfg.OCR.PSM != 6 || cfg.OCR.MaxPages != 0 {
		t.Fatalf("unexpected ocr defaults: %+v", cfg.OCR)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CABA_BATCH_WORKERS", "8")
	t.Setenv("CABA_BATCH_BASE_BACKOFF", "250ms")
	t.Setenv("CABA_LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CABA_OCR_MAX_PAGES", "2")
	t.Setenv("CABA_OCR_PSM", "4")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Batch.Workers != 8 {
		t.Fatalf("expected 8 workers, got %d", cfg.Batch.Workers)
	}
	if cfg.Batch.BaseBackoff != 250*time.Millisecond {
		t.Fatalf("expected 250ms backoff, got %s", cfg.Batch.BaseBackoff)
	}
	if cfg.LLM.Provider != ProviderOpenAI || cfg.LLM.APIKey != "sk-test" {
		t.Fatalf("expected openai with OPENAI_API_KEY, got %s/%q", cfg.LLM.Provider, cfg.LLM.APIKey)
	}
	if cfg.OCR.MaxPages != 2 || cfg.OCR.PSM != 4 {
		t.Fatalf("expected ocr overrides 2/4, got %d/%d", cfg.OCR.MaxPages, cfg.OCR.PSM)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "caba.yaml")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	cfg.Input.Dir = "bookings/october"
	cfg.Export.OutputPath = "october.xlsx"
	cfg.LLM.APIKey = "secret"

	if err := SaveConfig(cfg, path, false); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	if string(raw) == "" {
		t.Fatal("expected a non-empty config file")
	}

	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Input.Dir != "bookings/october" || reloaded.Export.OutputPath != "october.xlsx" {
		t.Fatalf("paths not persisted: %+v %+v", reloaded.Input, reloaded.Export)
	}
	if reloaded.LLM.APIKey != "" {
		t.Fatal("api key must not be persisted unless requested")
	}
}

func TestValidateRejects(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	cfg.LLM.APIKey = ""
	if KindOf(cfg.Validate()) != KindConfig {
		t.Fatal("expected a config error for a missing api key")
	}

	cfg.LLM.APIKey = "k"
	cfg.Batch.Workers = 0
	if KindOf(cfg.Validate()) != KindConfig {
		t.Fatal("expected a config error for zero workers")
	}

	cfg.Batch.Workers = 1
	cfg.LLM.Provider = ProviderVertex
	cfg.LLM.ProjectID = ""
	if KindOf(cfg.Validate()) != KindConfig {
		t.Fatal("expected a config error for vertex without a project")
	}
}

func TestLoadConfigDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	// registers a restore, then clears so the .env value is picked up
	t.Setenv("CABA_LLM_MODEL", "")
	os.Unsetenv("CABA_LLM_MODEL")
	if err := os.WriteFile(".env", []byte("CABA_LLM_MODEL=gemini-from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.LLM.Model != "gemini-from-dotenv" {
		t.Fatalf("expected model from .env, got %q", cfg.LLM.Model)
	}
}
