package constants

// DocumentStatus is the per-document state in a batch run.
type DocumentStatus string

// Stable values (stored as-is in the run journal).
const (
	DocumentPending    DocumentStatus = "PENDING"
	DocumentExtracting DocumentStatus = "EXTRACTING"
	DocumentParsing    DocumentStatus = "PARSING"
	DocumentSucceeded  DocumentStatus = "SUCCEEDED"
	DocumentEmpty      DocumentStatus = "EMPTY"
	DocumentFailed     DocumentStatus = "FAILED"
	DocumentSkipped    DocumentStatus = "SKIPPED" // never started: batch halted first
)

// IsTerminal reports whether no further transition can happen.
func (s DocumentStatus) IsTerminal() bool {
	switch s {
	case DocumentSucceeded, DocumentEmpty, DocumentFailed, DocumentSkipped:
		return true
	}
	return false
}

func (s DocumentStatus) String() string { return string(s) }

// BatchState is the lifecycle of a whole run.
type BatchState string

const (
	BatchCollecting BatchState = "COLLECTING"
	BatchFinalizing BatchState = "FINALIZING"
	BatchDone       BatchState = "DONE"
)
