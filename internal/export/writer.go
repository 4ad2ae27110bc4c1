package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/caba/constants"
	"github.com/joseph-ayodele/caba/internal/common"
	"github.com/joseph-ayodele/caba/internal/entity"
)

// DefaultSheet is the worksheet of the stock cab usage template.
const DefaultSheet = "Cab-Usage"

// Config controls where rows land.
type Config struct {
	Sheet string
	// StartRow is the template's 1-based first data row; 0 means the row after
	// the last non-empty one. A blank workbook always starts at row 2.
	StartRow int
	Layout   Layout
}

// WriteResult describes a persisted workbook.
type WriteResult struct {
	OutputPath string
	Sheet      string
	FirstRow   int
	Rows       int
}

// Writer appends booking records onto a template workbook.
type Writer struct {
	cfg    Config
	logger *slog.Logger
}

func NewWriter(cfg Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Sheet == "" {
		cfg.Sheet = DefaultSheet
	}
	if len(cfg.Layout.Columns) == 0 {
		cfg.Layout = DefaultLayout()
	}
	return &Writer{cfg: cfg, logger: logger}
}

// Write copies templatePath to outputPath with one row per record appended.
// An empty templatePath starts from a blank workbook with a header row.
// The template is never modified; on failure no output file is left behind.
func (w *Writer) Write(ctx context.Context, records []entity.BookingRecord, templatePath, outputPath string) (WriteResult, error) {
	start := time.Now()

	v := common.NewValidator()
	v.Field("output_path", outputPath, common.Required, common.HasExtension("xlsx"))
	v.Field("template_path", templatePath, common.HasExtension("xlsx"))
	v.Check(!common.SamePath(templatePath, outputPath), "output_path", outputPath, "must differ from the template")
	if err := v.Error(); err != nil {
		return WriteResult{}, common.NewWriteError("invalid output", err)
	}

	f, firstRow, err := w.open(templatePath)
	if err != nil {
		return WriteResult{}, err
	}
	defer func() { _ = f.Close() }()

	for i, rec := range records {
		if err := w.writeRow(f, firstRow+i, i+1, rec); err != nil {
			return WriteResult{}, common.NewWriteError(fmt.Sprintf("write row %d", firstRow+i), err)
		}
	}

	if err := ctx.Err(); err != nil {
		return WriteResult{}, common.NewWriteError("write cancelled", err)
	}
	if err := saveAtomic(f, outputPath); err != nil {
		return WriteResult{}, common.NewWriteError("save "+outputPath, err)
	}

	res := WriteResult{OutputPath: outputPath, Sheet: w.cfg.Sheet, FirstRow: firstRow, Rows: len(records)}
	w.logger.Info("export.xlsx.ok",
		"run_id", common.RunIDFromContext(ctx),
		"output", outputPath,
		"template", templatePath,
		"sheet", res.Sheet,
		"first_row", res.FirstRow,
		"rows", res.Rows,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// open loads the template (or a blank workbook) and returns the first data row.
func (w *Writer) open(templatePath string) (*excelize.File, int, error) {
	sheet := w.cfg.Sheet

	if templatePath == "" {
		f := excelize.NewFile()
		if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
			_ = f.Close()
			return nil, 0, common.NewWriteError("create workbook", err)
		}
		for _, c := range w.cfg.Layout.Columns {
			header := c.Header
			if header == "" {
				header = c.Field
			}
			if err := f.SetCellValue(sheet, c.Column+"1", header); err != nil {
				_ = f.Close()
				return nil, 0, common.NewWriteError("write header", err)
			}
		}
		// StartRow describes the template layout; a blank workbook only has a header
		return f, 2, nil
	}

	f, err := excelize.OpenFile(templatePath)
	if err != nil {
		return nil, 0, common.NewWriteError("open template "+templatePath, err)
	}
	if idx, _ := f.GetSheetIndex(sheet); idx == -1 {
		_ = f.Close()
		return nil, 0, common.NewWriteError(fmt.Sprintf("template %s has no sheet %q", templatePath, sheet), nil)
	}

	first := w.cfg.StartRow
	if first <= 0 {
		rows, err := f.GetRows(sheet)
		if err != nil {
			_ = f.Close()
			return nil, 0, common.NewWriteError("read template rows", err)
		}
		first = len(rows) + 1
	}
	return f, first, nil
}

func (w *Writer) writeRow(f *excelize.File, row, index int, rec entity.BookingRecord) error {
	for _, c := range w.cfg.Layout.Columns {
		var raw string
		if c.Field == constants.FieldIndex {
			raw = strconv.Itoa(index)
		} else {
			raw, _ = rec.Get(c.Field)
		}
		cell := c.Column + strconv.Itoa(row)
		if err := f.SetCellValue(w.cfg.Sheet, cell, cellValue(raw, c.Type)); err != nil {
			return err
		}
	}
	return nil
}

// cellValue turns numeric columns into numbers when the text parses; anything else stays text.
func cellValue(raw, typ string) any {
	if typ != TypeNumber || raw == "" {
		return raw
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if x, err := strconv.ParseFloat(raw, 64); err == nil {
		return x
	}
	return raw
}

// saveAtomic writes beside the target and renames into place.
func saveAtomic(f *excelize.File, outputPath string) error {
	dir := filepath.Dir(outputPath)
	tmp, err := os.CreateTemp(dir, ".caba-*.xlsx.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := f.Write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, outputPath); err != nil {
		return err
	}
	ok = true
	return nil
}
