package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/joseph-ayodele/caba/internal/common"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	// OCRFallback rasterises PDFs with no text layer and reads them with tesseract.
	OCRFallback bool

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit
	PSM           int    // e.g., 6 is good for uniform block of text
}

// Extraction methods.
const (
	MethodText = "pdf-text"
	MethodOCR  = "pdf-ocr"
	MethodNone = "none"
)

type ExtractionResult struct {
	Text     string
	Pages    int
	Method   string
	Duration time.Duration
	Warnings []string
}

// Empty reports whether the document produced no usable text.
func (r ExtractionResult) Empty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// textReader reads the text layer of a PDF and reports non-fatal warnings.
type textReader func(path string) (string, []string, error)

// pageCounter returns the number of pages in a PDF.
type pageCounter func(path string) (int, error)

type Extractor struct {
	cfg       Config
	runner    Runner
	readText  textReader
	pageCount pageCounter
	lookPath  func(file string) (string, error)
	logger    *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{
		cfg:       cfg,
		runner:    execRunner{logger: logger},
		readText:  readTextLayer,
		pageCount: countPages,
		lookPath:  exec.LookPath,
		logger:    logger,
	}
}

// Extract returns the text of every page of the PDF at path. A zero-length
// file or a PDF with no text layer yields an empty result, not an error;
// files that cannot be opened or parsed fail with an extraction error.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	res, err := e.extract(ctx, path)
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Warn("ocr.extract.failed", "path", path, "elapsed_ms", res.Duration.Milliseconds(), "error", err)
		return res, err
	}
	e.logger.Debug("ocr.extract.ok",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) extract(ctx context.Context, path string) (ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return ExtractionResult{}, common.NewExtractionError("extraction cancelled", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return ExtractionResult{}, common.NewExtractionError("open "+path, err)
	}
	if info.IsDir() {
		return ExtractionResult{}, common.NewExtractionError(fmt.Sprintf("%s is a directory", path), nil)
	}
	if info.Size() == 0 {
		return ExtractionResult{Method: MethodNone, Warnings: []string{"zero-length file"}}, nil
	}

	res := ExtractionResult{Method: MethodText}
	if n, err := e.pageCount(path); err == nil {
		res.Pages = n
	} else {
		res.Warnings = append(res.Warnings, "page count: "+err.Error())
	}

	txt, warns, err := e.readText(path)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return res, common.NewExtractionError("read text layer of "+path, err)
	}
	res.Text = Normalize(txt)
	if !res.Empty() || !e.cfg.OCRFallback {
		if res.Empty() {
			res.Method = MethodNone
			res.Warnings = append(res.Warnings, "no text layer")
		}
		return res, nil
	}

	e.logger.Info("ocr.fallback.start", "path", path, "pages", res.Pages)
	txt, pages, warns, err := e.pdfToOCR(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return res, common.NewExtractionError("ocr "+path, err)
	}
	res.Text = Normalize(txt)
	res.Method = MethodOCR
	if res.Pages == 0 {
		res.Pages = pages
	}
	if res.Empty() {
		res.Method = MethodNone
	}
	return res, nil
}
