package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/caba/internal/common"
	"github.com/joseph-ayodele/caba/internal/llm/openai"
)

func TestNewCompleter(t *testing.T) {
	ctx := context.Background()

	c, closeFn, err := NewCompleter(ctx, common.LLMConfig{Provider: common.ProviderOpenAI, APIKey: "k"}, nil)
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, ok := c.(*openai.Client); !ok {
		t.Fatalf("expected *openai.Client, got %T", c)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, closeFn, err = NewCompleter(ctx, common.LLMConfig{Provider: "bard"}, nil)
	if !errors.Is(err, common.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	if closeFn == nil {
		t.Fatalf("close func must never be nil")
	}

	_, _, err = NewCompleter(ctx, common.LLMConfig{Provider: common.ProviderGemini}, nil)
	if !errors.Is(err, common.ErrConfig) {
		t.Fatalf("expected config error for missing gemini key, got %v", err)
	}
}

func TestLoadPrompt(t *testing.T) {
	t.Chdir(t.TempDir())
	logger := slog.Default()

	tpl, err := LoadPrompt(common.PromptConfig{Path: common.DefaultPromptFile}, logger)
	if err != nil || tpl == nil {
		t.Fatalf("expected built-in template when prompt.txt is absent, got %v", err)
	}

	_, err = LoadPrompt(common.PromptConfig{Path: "custom.txt"}, logger)
	if common.KindOf(err) != common.KindConfig {
		t.Fatalf("expected config error for a missing custom prompt, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(".", "custom.txt"), []byte("Extract trips:\n[PDF TEXT WILL BE INSERTED HERE]"), 0o644); err != nil {
		t.Fatal(err)
	}
	tpl, err = LoadPrompt(common.PromptConfig{Path: "custom.txt"}, logger)
	if err != nil {
		t.Fatalf("LoadPrompt: %v", err)
	}
	if got := tpl.Render("ride", false); got != "Extract trips:\nride" {
		t.Fatalf("unexpected render %q", got)
	}
}

func TestBuild(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := common.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	cfg.LLM.Provider = common.ProviderOpenAI
	cfg.LLM.APIKey = ""
	if _, _, err := Build(context.Background(), cfg, nil, nil); !errors.Is(err, common.ErrConfig) {
		t.Fatalf("expected config error without API key, got %v", err)
	}

	cfg.LLM.APIKey = "k"
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	proc, closeFn, err := Build(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer closeFn()
	if proc.journal == nil {
		t.Fatalf("expected journal to be wired")
	}
}
