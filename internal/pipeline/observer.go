package pipeline

import (
	"github.com/joseph-ayodele/caba/constants"
	"github.com/joseph-ayodele/caba/internal/common"
)

// ProgressEvent is emitted once per document, after its outcome is final.
type ProgressEvent struct {
	Completed int
	Total     int
	File      string
	Status    constants.DocumentStatus
	Kind      common.ErrorKind // empty unless failed or skipped
	Message   string
}

// Observer receives progress events. Calls are serialized; implementations
// need no locking but must not block for long.
type Observer interface {
	OnProgress(ev ProgressEvent)
}

type ObserverFunc func(ev ProgressEvent)

func (f ObserverFunc) OnProgress(ev ProgressEvent) { f(ev) }

type NopObserver struct{}

func (NopObserver) OnProgress(ProgressEvent) {}
