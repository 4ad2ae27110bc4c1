package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/caba/constants"
	"github.com/joseph-ayodele/caba/internal/common"
	"github.com/joseph-ayodele/caba/internal/entity"
	"github.com/joseph-ayodele/caba/internal/ingest"
	"github.com/joseph-ayodele/caba/internal/llm"
	"github.com/joseph-ayodele/caba/internal/ocr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// TextExtractor reads the text of one document.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (ocr.ExtractionResult, error)
}

// RecordParser turns document text into booking records.
type RecordParser interface {
	Parse(ctx context.Context, source, text string, attempt llm.Attempt) ([]entity.BookingRecord, error)
}

// Result is everything a run produced. Outcomes and Records are in discovery order.
type Result struct {
	RunID    string
	Outcomes []entity.ProcessingOutcome
	Records  []entity.BookingRecord
	Report   entity.BatchReport
}

// Orchestrator drives extraction and parsing over a batch of documents.
type Orchestrator struct {
	extractor TextExtractor
	parser    RecordParser
	logger    *slog.Logger
	observer  Observer

	workers     int
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	rpm         int
	docTimeout  time.Duration

	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(extractor TextExtractor, parser RecordParser, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		extractor:   extractor,
		parser:      parser,
		logger:      logger,
		observer:    NopObserver{},
		workers:     3,
		maxRetries:  3,
		baseBackoff: time.Second,
		maxBackoff:  30 * time.Second,
		docTimeout:  3 * time.Minute,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.maxBackoff < o.baseBackoff {
		o.maxBackoff = o.baseBackoff
	}
	if o.rpm > 0 {
		o.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(o.rpm)), 1)
	}
	return o
}

// RunDirectory discovers the documents under root and runs them.
func (o *Orchestrator) RunDirectory(ctx context.Context, root string, opts ingest.Options) (*Result, error) {
	docs, stats, err := ingest.DiscoverDocuments(root, opts)
	if err != nil {
		return nil, err
	}
	o.logger.Info("batch.discovered",
		"run_id", common.RunIDFromContext(ctx),
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"skipped", stats.Skipped,
	)
	return o.Run(ctx, docs), nil
}

// halt records the first reason the batch stopped scheduling new documents.
type halt struct {
	mu     sync.Mutex
	reason string
}

func (h *halt) set(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reason == "" {
		h.reason = reason
	}
}

func (h *halt) get() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reason
}

// Run processes docs, which must already be in discovery order. It always
// returns one outcome per document. A quota error or cancellation of ctx stops
// new documents from starting; documents already in flight run to completion
// and the rest are recorded as skipped.
func (o *Orchestrator) Run(ctx context.Context, docs []entity.SourceDocument) *Result {
	runID := common.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.New().String()
		ctx = common.WithRunID(ctx, runID)
	}
	started := time.Now()
	total := len(docs)
	log := o.logger.With("run_id", runID)
	log.Info("batch.start", "state", constants.BatchCollecting, "documents", total, "workers", o.workers)

	outcomes := make([]entity.ProcessingOutcome, total)
	var stop halt
	stopReason := func() string {
		if r := stop.get(); r != "" {
			return r
		}
		if err := ctx.Err(); err != nil {
			stop.set("cancelled: " + err.Error())
			return stop.get()
		}
		return ""
	}

	var progressMu sync.Mutex
	completed := 0
	finish := func(out entity.ProcessingOutcome) {
		// each goroutine owns exactly one slot
		outcomes[out.Seq] = out

		progressMu.Lock()
		defer progressMu.Unlock()
		completed++
		o.observer.OnProgress(ProgressEvent{
			Completed: completed,
			Total:     total,
			File:      out.Document.Path,
			Status:    out.Status,
			Kind:      out.ErrorKind,
			Message:   out.Message,
		})
	}

	// in-flight documents are not interrupted by cancellation of ctx
	workCtx := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	g.SetLimit(o.workers)
	for i, doc := range docs {
		if reason := stopReason(); reason != "" {
			finish(entity.SkippedOutcome(i, doc, reason))
			continue
		}
		g.Go(func() error {
			// the halt may have been set while waiting for a worker slot
			if reason := stopReason(); reason != "" {
				finish(entity.SkippedOutcome(i, doc, reason))
				return nil
			}
			out := o.processDocument(workCtx, i, doc)
			if out.ErrorKind == common.KindQuota {
				stop.set("quota exhausted: " + out.Message)
				log.Error("batch.halt", "reason", "quota", "path", doc.Path, "error", out.Message)
			}
			finish(out)
			return nil
		})
	}
	_ = g.Wait()

	log.Info("batch.state", "state", constants.BatchFinalizing)
	records := entity.FlattenRecords(outcomes)
	report := entity.NewBatchReport(outcomes, stop.get())
	report.RunID = runID
	report.State = constants.BatchDone
	report.StartedAt = started
	report.FinishedAt = time.Now()

	log.Info("batch.done",
		"state", report.State,
		"documents", report.Total,
		"succeeded", report.Succeeded,
		"empty", report.Empty,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"records", report.Records,
		"aborted", report.Aborted,
		"elapsed_ms", report.FinishedAt.Sub(started).Milliseconds(),
	)
	return &Result{RunID: runID, Outcomes: outcomes, Records: records, Report: report}
}

// processDocument runs one document through Extracting and Parsing to a terminal outcome.
func (o *Orchestrator) processDocument(ctx context.Context, seq int, doc entity.SourceDocument) entity.ProcessingOutcome {
	start := time.Now()
	ctx = common.WithDocumentPath(ctx, doc.Path)
	if o.docTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.docTimeout)
		defer cancel()
	}
	log := o.logger.With("run_id", common.RunIDFromContext(ctx), "path", doc.Path, "seq", seq)

	out, attempts := o.runStages(ctx, log, seq, doc)
	out.Attempts = attempts
	out.Duration = time.Since(start)

	attrs := []any{"status", out.Status, "attempts", out.Attempts, "records", len(out.Records), "elapsed_ms", out.Duration.Milliseconds()}
	if out.Status == constants.DocumentFailed {
		log.Warn("batch.document.done", append(attrs, "kind", out.ErrorKind, "error", out.Message)...)
	} else {
		log.Info("batch.document.done", attrs...)
	}
	return out
}

func (o *Orchestrator) runStages(ctx context.Context, log *slog.Logger, seq int, doc entity.SourceDocument) (entity.ProcessingOutcome, int) {
	log.Debug("batch.document.state", "state", constants.DocumentExtracting)
	res, err := o.extractor.Extract(ctx, doc.Path)
	if err != nil {
		if common.KindOf(err) == "" {
			err = common.NewExtractionError("extract text", err)
		}
		return entity.FailedOutcome(seq, doc, err), 0
	}
	if res.Pages > 0 {
		doc.PageCount = res.Pages
	}
	if res.Empty() {
		return entity.EmptyOutcome(seq, doc, "no extractable text"), 0
	}

	log.Debug("batch.document.state", "state", constants.DocumentParsing, "chars", len(res.Text))
	records, attempts, err := o.parseWithRetry(ctx, log, doc, res.Text)
	if err != nil {
		return entity.FailedOutcome(seq, doc, err), attempts
	}
	if len(records) == 0 {
		return entity.EmptyOutcome(seq, doc, "no trips found in document"), attempts
	}
	return entity.SucceededOutcome(seq, doc, records), attempts
}

// parseWithRetry applies the retry policy: transient errors are retried up to
// maxRetries times with exponential backoff, a malformed reply is retried once
// with the reformulated prompt, and everything else is final.
func (o *Orchestrator) parseWithRetry(ctx context.Context, log *slog.Logger, doc entity.SourceDocument, text string) ([]entity.BookingRecord, int, error) {
	attempt := llm.Attempt{Number: 1}
	transient := 0
	for {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return nil, attempt.Number - 1, common.NewTransientAIError("waiting for rate limiter", err)
			}
		}
		records, err := o.parser.Parse(ctx, doc.Path, text, attempt)
		if err == nil {
			return records, attempt.Number, nil
		}
		var appErr *common.AppError
		if !errors.As(err, &appErr) || !appErr.Retryable() {
			return nil, attempt.Number, err
		}

		switch appErr.Kind {
		case common.KindTransientAI:
			if transient >= o.maxRetries {
				return nil, attempt.Number, err
			}
			delay := o.backoff(transient)
			transient++
			log.Warn("batch.document.retry", "kind", common.KindTransientAI, "attempt", attempt.Number, "delay_ms", delay.Milliseconds(), "error", err)
			if sErr := o.sleep(ctx, delay); sErr != nil {
				return nil, attempt.Number, err
			}
		case common.KindParse:
			if attempt.Reformulate {
				return nil, attempt.Number, err
			}
			log.Warn("batch.document.retry", "kind", common.KindParse, "attempt", attempt.Number, "error", err)
			attempt.Reformulate = true
		default:
			return nil, attempt.Number, err
		}
		attempt.Number++
	}
}

// backoff is base*2^n, capped at maxBackoff.
func (o *Orchestrator) backoff(n int) time.Duration {
	d := o.baseBackoff
	for i := 0; i < n; i++ {
		d *= 2
		if d >= o.maxBackoff {
			return o.maxBackoff
		}
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
