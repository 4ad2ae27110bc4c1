package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/caba/constants"
	"github.com/joseph-ayodele/caba/internal/common"
	"github.com/joseph-ayodele/caba/internal/core"
	"github.com/joseph-ayodele/caba/internal/entity"
	"github.com/joseph-ayodele/caba/internal/ingest"
	"github.com/joseph-ayodele/caba/internal/pipeline"
	"github.com/joseph-ayodele/caba/internal/repository"
)

type batchRunner interface {
	Run(ctx context.Context, req core.RunRequest) (*core.RunResult, error)
}

func newProgressPrinter(w io.Writer) pipeline.Observer {
	return pipeline.ObserverFunc(func(ev pipeline.ProgressEvent) {
		line := fmt.Sprintf("[%d/%d] %s %s", ev.Completed, ev.Total, filepath.Base(ev.File), ev.Status)
		if ev.Status == constants.DocumentFailed || ev.Status == constants.DocumentSkipped {
			line += fmt.Sprintf(" (%s)", ev.Kind)
		}
		fmt.Fprintln(w, line)
	})
}

// runOnce executes one batch, prints the summary and maps the outcome to an exit code.
func runOnce(ctx context.Context, r batchRunner, req core.RunRequest, w io.Writer) int {
	res, err := r.Run(ctx, req)
	if res != nil {
		printSummary(w, res.Report)
	}
	return exitCode(res, err, w)
}

func exitCode(res *core.RunResult, err error, w io.Writer) int {
	switch {
	case errors.Is(err, common.ErrWrite):
		fmt.Fprintf(w, "Report NOT written: %v\n", err)
		return exitFatal
	case err != nil:
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitFatal
	case res.Report.Aborted:
		fmt.Fprintf(w, "Output: %s (batch aborted: %s)\n", res.Output.OutputPath, res.Report.AbortReason)
		return exitAborted
	default:
		fmt.Fprintf(w, "Output: %s\n", res.Output.OutputPath)
		return exitOK
	}
}

func printSummary(w io.Writer, r entity.BatchReport) {
	fmt.Fprintf(w, "Batch %s\n", r.RunID)
	fmt.Fprintf(w, "- Documents: %d\n", r.Total)
	fmt.Fprintf(w, "- Succeeded: %d (%d trips)\n", r.Succeeded, r.Records)
	fmt.Fprintf(w, "- Empty: %d\n", r.Empty)
	fmt.Fprintf(w, "- Failed: %d\n", r.Failed)
	if r.Skipped > 0 {
		fmt.Fprintf(w, "- Skipped: %d\n", r.Skipped)
	}
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "- Took: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  %s: %s %s: %s\n", f.Path, f.Status, f.Kind, f.Reason)
	}
}

// watchAndRerun re-runs the whole batch after each quiet period of changes
// until ctx is cancelled. The last run's exit code is returned.
func watchAndRerun(ctx context.Context, r batchRunner, req core.RunRequest, in common.InputConfig, logger *slog.Logger) int {
	changes, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Root:       req.InputDir,
		Recursive:  in.Recursive,
		SkipHidden: in.SkipHidden,
		Extensions: in.Extensions,
	}, logger)
	if err != nil {
		logger.Error("watch.start_failed", "dir", req.InputDir, "err", err)
		return exitFatal
	}
	logger.Info("watch.started", "dir", req.InputDir)

	code := exitOK
	for {
		select {
		case <-ctx.Done():
			return code
		case paths, ok := <-changes:
			if !ok {
				return code
			}
			logger.Info("watch.rerun", "changed", len(paths))
			code = runOnce(ctx, r, req, os.Stdout)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch.error", "err", err)
		}
	}
}

func showHistory(ctx context.Context, path string, n int, logger *slog.Logger) int {
	if path == "" {
		printError("Error: -history needs a journal (-journal or journal.path)\n")
		return exitFatal
	}
	j, err := repository.Open(ctx, path, logger)
	if err != nil {
		printError("Error: %v\n", err)
		return exitFatal
	}
	defer j.Close()

	runs, err := j.RecentRuns(ctx, n)
	if err != nil {
		printError("Error: %v\n", err)
		return exitFatal
	}
	for _, r := range runs {
		state := string(r.State)
		if r.Aborted {
			state = "ABORTED"
		}
		fmt.Printf("%s  %s  %-8s docs=%d ok=%d empty=%d failed=%d skipped=%d trips=%d  %s\n",
			r.StartedAt.Local().Format(time.DateTime), r.RunID, state,
			r.Total, r.Succeeded, r.Empty, r.Failed, r.Skipped, r.Records, r.OutputPath)
	}
	return exitOK
}
