package entity

import (
	"time"

	"github.com/joseph-ayodele/caba/constants"
	"github.com/joseph-ayodele/caba/internal/common"
)

// DocumentFailure names a document that contributed no rows and why.
type DocumentFailure struct {
	Path   string                   `json:"path"`
	Status constants.DocumentStatus `json:"status"`
	Kind   common.ErrorKind         `json:"kind"`
	Reason string                   `json:"reason"`
}

// BatchReport summarises one run.
type BatchReport struct {
	RunID       string               `json:"run_id"`
	State       constants.BatchState `json:"state"`
	Total       int                  `json:"total"`
	Succeeded   int                  `json:"succeeded"`
	Empty       int                  `json:"empty"`
	Failed      int                  `json:"failed"`
	Skipped     int                  `json:"skipped"`
	Records     int                  `json:"records"`
	Aborted     bool                 `json:"aborted"`
	AbortReason string               `json:"abort_reason,omitempty"`
	Failures    []DocumentFailure    `json:"failures"`
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  time.Time            `json:"finished_at"`
}

// NewBatchReport tallies outcomes, which must already be in discovery order.
func NewBatchReport(outcomes []ProcessingOutcome, abortReason string) BatchReport {
	r := BatchReport{
		Total:       len(outcomes),
		Aborted:     abortReason != "",
		AbortReason: abortReason,
		Failures:    make([]DocumentFailure, 0),
	}
	for _, o := range outcomes {
		switch o.Status {
		case constants.DocumentSucceeded:
			r.Succeeded++
			r.Records += len(o.Records)
		case constants.DocumentEmpty:
			r.Empty++
		case constants.DocumentFailed:
			r.Failed++
			r.Failures = append(r.Failures, DocumentFailure{Path: o.Document.Path, Status: o.Status, Kind: o.ErrorKind, Reason: o.Message})
		case constants.DocumentSkipped:
			r.Skipped++
			r.Failures = append(r.Failures, DocumentFailure{Path: o.Document.Path, Status: o.Status, Kind: o.ErrorKind, Reason: o.Message})
		}
	}
	return r
}

// Completed is true when every document reached a terminal outcome without a halt.
func (r BatchReport) Completed() bool {
	return !r.Aborted && r.Succeeded+r.Empty+r.Failed == r.Total
}

// FlattenRecords returns the records of succeeded outcomes, preserving outcome
// order and the order within each outcome.
func FlattenRecords(outcomes []ProcessingOutcome) []BookingRecord {
	var out []BookingRecord
	for _, o := range outcomes {
		if o.Status != constants.DocumentSucceeded {
			continue
		}
		out = append(out, o.Records...)
	}
	return out
}
