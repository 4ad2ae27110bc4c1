package entity

import (
	"time"

	"github.com/joseph-ayodele/caba/constants"
	"github.com/joseph-ayodele/caba/internal/common"
)

// ProcessingOutcome is the terminal result for one document.
// Seq is the document's position in discovery order.
type ProcessingOutcome struct {
	Seq       int                      `json:"seq"`
	Document  SourceDocument           `json:"document"`
	Status    constants.DocumentStatus `json:"status"`
	Records   []BookingRecord          `json:"-"`
	ErrorKind common.ErrorKind         `json:"error_kind,omitempty"`
	Message   string                   `json:"message,omitempty"`
	Attempts  int                      `json:"attempts"`
	Duration  time.Duration            `json:"duration"`
}

func SucceededOutcome(seq int, doc SourceDocument, records []BookingRecord) ProcessingOutcome {
	cp := make([]BookingRecord, len(records))
	copy(cp, records)
	return ProcessingOutcome{Seq: seq, Document: doc, Status: constants.DocumentSucceeded, Records: cp}
}

func EmptyOutcome(seq int, doc SourceDocument, reason string) ProcessingOutcome {
	return ProcessingOutcome{Seq: seq, Document: doc, Status: constants.DocumentEmpty, Message: reason}
}

// FailedOutcome takes its kind from err; unclassified errors are reported as extraction failures.
func FailedOutcome(seq int, doc SourceDocument, err error) ProcessingOutcome {
	kind := common.KindOf(err)
	if kind == "" {
		kind = common.KindExtraction
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return ProcessingOutcome{Seq: seq, Document: doc, Status: constants.DocumentFailed, ErrorKind: kind, Message: msg}
}

func SkippedOutcome(seq int, doc SourceDocument, reason string) ProcessingOutcome {
	return ProcessingOutcome{
		Seq:       seq,
		Document:  doc,
		Status:    constants.DocumentSkipped,
		ErrorKind: common.KindAborted,
		Message:   reason,
	}
}
