package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/caba/internal/common"
	"github.com/joseph-ayodele/caba/internal/core"
)

const (
	exitOK      = 0
	exitFatal   = 1
	exitAborted = 3
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "config file (default ./caba.yaml if present)")
		dir        = flag.String("dir", "", "directory of PDF cab bookings")
		template   = flag.String("template", "", "template workbook (.xlsx); empty string starts a blank workbook")
		out        = flag.String("out", "", "output workbook path (.xlsx)")
		prompt     = flag.String("prompt", "", "prompt template file")
		provider   = flag.String("provider", "", "AI backend: gemini, vertex or openai")
		model      = flag.String("model", "", "model name for the chosen provider")
		workers    = flag.Int("workers", 0, "documents processed concurrently")
		retries    = flag.Int("retries", 0, "retries for transient AI errors")
		rpm        = flag.Int("rpm", 0, "AI requests per minute (0 = unlimited)")
		sheet      = flag.String("sheet", "", "worksheet to append to")
		startRow   = flag.Int("start-row", 0, "first data row (default 9 from config; 0 = after the last non-empty row)")
		layout     = flag.String("layout", "", "YAML column layout")
		journal    = flag.String("journal", "", "SQLite run journal path")
		recursive  = flag.Bool("recursive", false, "include subdirectories")
		ocrOn      = flag.Bool("ocr", false, "OCR PDFs without a text layer (needs pdftoppm and tesseract)")
		saveConfig = flag.Bool("save-config", false, "remember paths and provider in the config file")
		saveAPIKey = flag.Bool("save-api-key", false, "also store the API key in the config file")
		watch      = flag.Bool("watch", false, "keep running and re-run when the input directory changes")
		history    = flag.Int("history", 0, "print the last N journaled runs and exit")
	)
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		printError("Error: %v\n", err)
		return exitFatal
	}

	// flags override the file and environment only when given
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dir":
			cfg.Input.Dir = *dir
		case "template":
			cfg.Export.TemplatePath = *template
		case "out":
			cfg.Export.OutputPath = *out
		case "prompt":
			cfg.Prompt.Path = *prompt
		case "provider":
			cfg.LLM.Provider = *provider
		case "model":
			cfg.LLM.Model = *model
		case "workers":
			cfg.Batch.Workers = *workers
		case "retries":
			cfg.Batch.MaxRetries = *retries
		case "rpm":
			cfg.Batch.RequestsPerMinute = *rpm
		case "sheet":
			cfg.Export.Sheet = *sheet
		case "start-row":
			cfg.Export.StartRow = *startRow
		case "layout":
			cfg.Export.LayoutPath = *layout
		case "journal":
			cfg.Journal.Path = *journal
		case "recursive":
			cfg.Input.Recursive = *recursive
		case "ocr":
			cfg.OCR.Enabled = *ocrOn
		}
	})

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *history > 0 {
		return showHistory(ctx, cfg.Journal.Path, *history, logger)
	}

	proc, closeFn, err := core.Build(ctx, cfg, newProgressPrinter(os.Stdout), logger)
	if err != nil {
		printError("Error: %v\n", err)
		return exitFatal
	}
	defer func() {
		if err := closeFn(); err != nil {
			logger.Warn("shutdown.close_failed", "err", err)
		}
	}()

	if *saveConfig || *saveAPIKey {
		if err := common.SaveConfig(cfg, *configPath, *saveAPIKey); err != nil {
			logger.Warn("config.save_failed", "err", err)
		}
	}

	req := core.RunRequest{
		InputDir:     cfg.Input.Dir,
		TemplatePath: cfg.Export.TemplatePath,
		OutputPath:   cfg.Export.OutputPath,
	}
	code := runOnce(ctx, proc, req, os.Stdout)
	if !*watch {
		return code
	}
	return watchAndRerun(ctx, proc, req, cfg.Input, logger)
}
