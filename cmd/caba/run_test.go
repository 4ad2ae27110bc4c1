package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/joseph-ayodele/caba/constants"
	"github.com/joseph-ayodele/caba/internal/common"
	"github.com/joseph-ayodele/caba/internal/core"
	"github.com/joseph-ayodele/caba/internal/entity"
	"github.com/joseph-ayodele/caba/internal/export"
	"github.com/joseph-ayodele/caba/internal/pipeline"
)

type fakeRunner struct {
	res *core.RunResult
	err error
}

func (f fakeRunner) Run(context.Context, core.RunRequest) (*core.RunResult, error) {
	return f.res, f.err
}

func result(report entity.BatchReport) *core.RunResult {
	return &core.RunResult{
		Result: &pipeline.Result{Report: report},
		Output: export.WriteResult{OutputPath: "out.xlsx"},
	}
}

func TestRunOnce_ExitCodes(t *testing.T) {
	ok := entity.BatchReport{RunID: "r1", Total: 2, Succeeded: 2, Records: 3}
	aborted := entity.BatchReport{RunID: "r2", Total: 5, Succeeded: 2, Skipped: 3, Aborted: true, AbortReason: "quota exhausted"}

	tests := []struct {
		name   string
		runner fakeRunner
		want   int
		output string
	}{
		{"success", fakeRunner{res: result(ok)}, exitOK, "Output: out.xlsx"},
		{"aborted", fakeRunner{res: result(aborted)}, exitAborted, "batch aborted: quota exhausted"},
		{"write failure", fakeRunner{res: result(ok), err: common.NewWriteError("save", nil)}, exitFatal, "Report NOT written"},
		{"discovery failure", fakeRunner{err: common.NewConfigError("input directory is required")}, exitFatal, "Error:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := runOnce(context.Background(), tt.runner, core.RunRequest{}, &buf); got != tt.want {
				t.Fatalf("expected exit %d, got %d", tt.want, got)
			}
			if !strings.Contains(buf.String(), tt.output) {
				t.Fatalf("expected output to contain %q, got:\n%s", tt.output, buf.String())
			}
		})
	}
}

func TestPrintSummary_NamesEveryFailure(t *testing.T) {
	r := entity.BatchReport{
		RunID: "r1", Total: 3, Succeeded: 1, Failed: 1, Skipped: 1,
		Failures: []entity.DocumentFailure{
			{Path: "/in/b.pdf", Status: constants.DocumentFailed, Kind: common.KindParse, Reason: "not json"},
			{Path: "/in/c.pdf", Status: constants.DocumentSkipped, Kind: common.KindAborted, Reason: "quota exhausted"},
		},
	}
	var buf bytes.Buffer
	printSummary(&buf, r)
	out := buf.String()
	for _, want := range []string{"- Documents: 3", "- Skipped: 1", "/in/b.pdf: FAILED PARSE_ERROR: not json", "/in/c.pdf: SKIPPED ABORTED"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in summary:\n%s", want, out)
		}
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	obs := newProgressPrinter(&buf)
	obs.OnProgress(pipeline.ProgressEvent{Completed: 1, Total: 2, File: "/in/a.pdf", Status: constants.DocumentSucceeded})
	obs.OnProgress(pipeline.ProgressEvent{Completed: 2, Total: 2, File: "/in/b.pdf", Status: constants.DocumentFailed, Kind: common.KindParse})

	want := "[1/2] a.pdf SUCCEEDED\n[2/2] b.pdf FAILED (PARSE_ERROR)\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}
