package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/caba/internal/common"
	"github.com/joseph-ayodele/caba/internal/entity"
	"github.com/joseph-ayodele/caba/internal/export"
	"github.com/joseph-ayodele/caba/internal/ingest"
	"github.com/joseph-ayodele/caba/internal/pipeline"
	"github.com/joseph-ayodele/caba/internal/repository"
)

// BatchRunner discovers and processes the documents of a directory.
type BatchRunner interface {
	RunDirectory(ctx context.Context, root string, opts ingest.Options) (*pipeline.Result, error)
}

// ReportWriter persists the ordered records.
type ReportWriter interface {
	Write(ctx context.Context, records []entity.BookingRecord, templatePath, outputPath string) (export.WriteResult, error)
}

// RunJournal keeps an audit trail of runs. Optional.
type RunJournal interface {
	RecordRun(ctx context.Context, e repository.RunEntry) error
}

// RunRequest names the input directory and the workbook paths of one run.
type RunRequest struct {
	InputDir     string
	TemplatePath string
	OutputPath   string
}

// RunResult is the batch result plus what was written.
type RunResult struct {
	*pipeline.Result
	Output export.WriteResult
}

// Processor coordinates discovery, extraction/parsing, then the workbook write.
type Processor struct {
	runner  BatchRunner
	writer  ReportWriter
	journal RunJournal
	ingest  ingest.Options
	logger  *slog.Logger
}

// NewProcessor wires a run. journal may be nil.
func NewProcessor(runner BatchRunner, writer ReportWriter, journal RunJournal, opts ingest.Options, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{runner: runner, writer: writer, journal: journal, ingest: opts, logger: logger}
}

// Run executes one batch. Writing starts only after every document is terminal,
// and still happens when the batch was halted or ctx was cancelled, so the rows
// collected so far are kept. A write failure is returned together with the batch result.
func (p *Processor) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	runID := common.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = common.WithRunID(ctx, runID)
	}
	log := p.logger.With("run_id", runID)
	start := time.Now()

	res, err := p.runner.RunDirectory(ctx, req.InputDir, p.ingest)
	if err != nil {
		log.Error("run.discover.failed", "dir", req.InputDir, "err", err)
		return nil, err
	}
	out := &RunResult{Result: res}

	// the batch is terminal; cancellation must not leave a half-written report
	wctx := context.WithoutCancel(ctx)
	out.Output, err = p.writer.Write(wctx, res.Records, req.TemplatePath, req.OutputPath)
	if err != nil {
		log.Error("run.write.failed", "output", req.OutputPath, "err", err)
		p.record(wctx, log, res, req.InputDir, "")
		return out, err
	}
	p.record(wctx, log, res, req.InputDir, out.Output.OutputPath)

	log.Info("run.done",
		"total", res.Report.Total,
		"succeeded", res.Report.Succeeded,
		"failed", res.Report.Failed,
		"skipped", res.Report.Skipped,
		"records", res.Report.Records,
		"aborted", res.Report.Aborted,
		"output", out.Output.OutputPath,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// record writes the journal entry; failures are logged only.
func (p *Processor) record(ctx context.Context, log *slog.Logger, res *pipeline.Result, inputDir, output string) {
	if p.journal == nil {
		return
	}
	err := p.journal.RecordRun(ctx, repository.RunEntry{
		Report:     res.Report,
		Outcomes:   res.Outcomes,
		InputDir:   inputDir,
		OutputPath: output,
	})
	if err != nil {
		log.Warn("run.journal.failed", "err", err)
	}
}
