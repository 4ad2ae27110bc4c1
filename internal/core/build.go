package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/caba/internal/common"
	"github.com/joseph-ayodele/caba/internal/export"
	"github.com/joseph-ayodele/caba/internal/ingest"
	"github.com/joseph-ayodele/caba/internal/llm"
	"github.com/joseph-ayodele/caba/internal/llm/gemini"
	"github.com/joseph-ayodele/caba/internal/llm/openai"
	"github.com/joseph-ayodele/caba/internal/llm/vertex"
	"github.com/joseph-ayodele/caba/internal/ocr"
	"github.com/joseph-ayodele/caba/internal/pipeline"
	"github.com/joseph-ayodele/caba/internal/repository"
)

// NewCompleter builds the model backend named by cfg.Provider. The returned
// close func releases the backend's connections.
func NewCompleter(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Completer, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Provider {
	case common.ProviderGemini:
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	case common.ProviderVertex:
		c, err := vertex.NewClient(ctx, vertex.Config{
			ProjectID:   cfg.ProjectID,
			Region:      cfg.Region,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	case common.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), noop, nil
	default:
		return nil, noop, common.NewConfigError(fmt.Sprintf("unknown llm.provider %q", cfg.Provider))
	}
}

// LoadPrompt reads the prompt template. A missing file at the default
// location falls back to the built-in template.
func LoadPrompt(cfg common.PromptConfig, logger *slog.Logger) (*llm.Template, error) {
	if cfg.Path == common.DefaultPromptFile {
		if _, err := os.Stat(cfg.Path); errors.Is(err, fs.ErrNotExist) {
			logger.Warn("prompt.default", "reason", cfg.Path+" not found, using built-in template")
			return llm.NewTemplate("", cfg.MaxInputChars), nil
		}
	}
	return llm.LoadTemplate(cfg.Path, cfg.MaxInputChars)
}

// Build assembles a Processor from configuration. obs may be nil.
// The returned close func must be called when the Processor is no longer used.
func Build(ctx context.Context, cfg *common.Config, obs pipeline.Observer, logger *slog.Logger) (*Processor, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	tpl, err := LoadPrompt(cfg.Prompt, logger)
	if err != nil {
		return nil, nil, err
	}
	layout, err := export.LoadLayout(cfg.Export.LayoutPath)
	if err != nil {
		return nil, nil, err
	}

	completer, closeCompleter, err := NewCompleter(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, nil, err
	}
	parser, err := llm.NewParser(completer, tpl, logger)
	if err != nil {
		_ = closeCompleter()
		return nil, nil, err
	}

	extractor := ocr.NewExtractor(ocr.Config{
		Pdftoppm:      cfg.OCR.Pdftoppm,
		Tesseract:     cfg.OCR.Tesseract,
		OCRFallback:   cfg.OCR.Enabled,
		TesseractLang: cfg.OCR.Lang,
		DPI:           cfg.OCR.DPI,
		MaxPages:      cfg.OCR.MaxPages,
		PSM:           cfg.OCR.PSM,
	}, logger)
	if err := extractor.CheckTools(); err != nil {
		_ = closeCompleter()
		return nil, nil, err
	}

	opts := pipeline.OptionsFromConfig(cfg.Batch)
	if obs != nil {
		opts = append(opts, pipeline.WithObserver(obs))
	}
	orch := pipeline.NewOrchestrator(extractor, parser, logger, opts...)

	writer := export.NewWriter(export.Config{
		Sheet:    cfg.Export.Sheet,
		StartRow: cfg.Export.StartRow,
		Layout:   layout,
	}, logger)

	closers := []func() error{closeCompleter}
	var journal RunJournal
	if cfg.Journal.Path != "" {
		j, err := repository.Open(ctx, cfg.Journal.Path, logger)
		if err != nil {
			// the journal is an audit trail; a run proceeds without it
			logger.Warn("journal.open.failed", "path", cfg.Journal.Path, "err", err)
		} else {
			journal = j
			closers = append(closers, j.Close)
		}
	}

	proc := NewProcessor(orch, writer, journal, ingest.Options{
		Extensions: cfg.Input.Extensions,
		SkipHidden: cfg.Input.SkipHidden,
		Recursive:  cfg.Input.Recursive,
	}, logger)

	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return proc, closeAll, nil
}
