package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/caba/constants"
	"github.com/joseph-ayodele/caba/internal/common"
	"github.com/joseph-ayodele/caba/internal/entity"
	"github.com/joseph-ayodele/caba/internal/export"
	"github.com/joseph-ayodele/caba/internal/ingest"
	"github.com/joseph-ayodele/caba/internal/llm"
	"github.com/joseph-ayodele/caba/internal/ocr"
	"github.com/joseph-ayodele/caba/internal/pipeline"
	"github.com/joseph-ayodele/caba/internal/repository"
)

type textByName struct{}

func (textByName) Extract(_ context.Context, path string) (ocr.ExtractionResult, error) {
	return ocr.ExtractionResult{Text: "trip on " + filepath.Base(path), Pages: 1, Method: ocr.MethodText}, nil
}

// oneTripParser returns a single trip dated with the document's base name.
type oneTripParser struct{}

func (oneTripParser) Parse(_ context.Context, source, _ string, _ llm.Attempt) ([]entity.BookingRecord, error) {
	name := strings.TrimSuffix(filepath.Base(source), ".pdf")
	return []entity.BookingRecord{entity.NewBookingRecord(source, []entity.Field{
		{Name: constants.FieldDate, Value: name},
		{Name: constants.FieldInwardFrom, Value: "Home"},
		{Name: constants.FieldVisits, Value: "1"},
	})}, nil
}

type memJournal struct {
	mu      sync.Mutex
	entries []repository.RunEntry
}

func (m *memJournal) RecordRun(_ context.Context, e repository.RunEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func newTestProcessor(journal RunJournal) *Processor {
	orch := pipeline.NewOrchestrator(textByName{}, oneTripParser{}, nil, pipeline.WithWorkers(2))
	writer := export.NewWriter(export.Config{}, nil)
	return NewProcessor(orch, writer, journal, ingest.Options{}, nil)
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("%PDF-1.4"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(export.DefaultSheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	return rows
}

func TestProcessor_EmptyDirectoryWritesHeaderOnly(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "output.xlsx")

	res, err := newTestProcessor(nil).Run(context.Background(), RunRequest{InputDir: in, OutputPath: out})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Report.Total != 0 || res.Report.Aborted {
		t.Fatalf("unexpected report %+v", res.Report)
	}
	if rows := readRows(t, out); len(rows) != 1 {
		t.Fatalf("expected header-only workbook, got %d rows", len(rows))
	}
}

func TestProcessor_EndToEnd(t *testing.T) {
	in := t.TempDir()
	touch(t, in, "2024-03-02.pdf", "2024-03-01.pdf", "2024-03-03.pdf", "notes.txt")
	out := filepath.Join(t.TempDir(), "output.xlsx")
	journal := &memJournal{}

	ctx := common.WithRunID(context.Background(), "run-e2e")
	res, err := newTestProcessor(journal).Run(ctx, RunRequest{InputDir: in, OutputPath: out})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID != "run-e2e" || res.Report.Succeeded != 3 || res.Output.Rows != 3 {
		t.Fatalf("unexpected result: run %s, report %+v, output %+v", res.RunID, res.Report, res.Output)
	}

	rows := readRows(t, out)
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	for i, want := range []string{"2024-03-01", "2024-03-02", "2024-03-03"} {
		row := rows[i+1]
		if row[0] != strconv.Itoa(i+1) || row[1] != want {
			t.Fatalf("row %d: expected idx %d date %s, got %v", i+2, i+1, want, row)
		}
	}

	if len(journal.entries) != 1 {
		t.Fatalf("expected one journal entry, got %d", len(journal.entries))
	}
	e := journal.entries[0]
	if e.Report.RunID != "run-e2e" || e.OutputPath != out || len(e.Outcomes) != 3 {
		t.Fatalf("unexpected journal entry %+v", e)
	}
}

func TestProcessor_WriteFailureKeepsBatchResult(t *testing.T) {
	in := t.TempDir()
	touch(t, in, "a.pdf")
	out := filepath.Join(t.TempDir(), "missing", "output.xlsx")
	journal := &memJournal{}

	res, err := newTestProcessor(journal).Run(context.Background(), RunRequest{InputDir: in, OutputPath: out})
	if !errors.Is(err, common.ErrWrite) {
		t.Fatalf("expected write error, got %v", err)
	}
	if res == nil || res.Report.Succeeded != 1 {
		t.Fatalf("expected batch result alongside the error, got %+v", res)
	}
	if len(journal.entries) != 1 || journal.entries[0].OutputPath != "" {
		t.Fatalf("expected journal entry without output, got %+v", journal.entries)
	}
}

func TestProcessor_CancelledRunStillWrites(t *testing.T) {
	in := t.TempDir()
	touch(t, in, "a.pdf", "b.pdf")
	out := filepath.Join(t.TempDir(), "output.xlsx")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := newTestProcessor(nil).Run(ctx, RunRequest{InputDir: in, OutputPath: out})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Report.Aborted || res.Report.Skipped != 2 {
		t.Fatalf("expected aborted run with 2 skipped, got %+v", res.Report)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected output workbook: %v", err)
	}
}

func TestProcessor_MissingInputDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output.xlsx")
	_, err := newTestProcessor(nil).Run(context.Background(), RunRequest{InputDir: filepath.Join(t.TempDir(), "nope"), OutputPath: out})
	if err == nil {
		t.Fatalf("expected discovery error")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output on discovery failure")
	}
}
