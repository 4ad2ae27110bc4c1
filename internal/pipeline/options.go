package pipeline

import (
	"time"

	"github.com/joseph-ayodele/caba/internal/common"
)

type Option func(*Orchestrator)

func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithMaxRetries bounds the retries of a transient AI error per document.
func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

func WithBackoff(base, max time.Duration) Option {
	return func(o *Orchestrator) {
		if base > 0 {
			o.baseBackoff = base
		}
		if max > 0 {
			o.maxBackoff = max
		}
	}
}

// WithRequestsPerMinute gates AI calls across all workers; 0 = unlimited.
func WithRequestsPerMinute(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.rpm = n
		}
	}
}

func WithDocumentTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.docTimeout = d
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// OptionsFromConfig maps the batch section of the configuration.
func OptionsFromConfig(cfg common.BatchConfig) []Option {
	return []Option{
		WithWorkers(cfg.Workers),
		WithMaxRetries(cfg.MaxRetries),
		WithBackoff(cfg.BaseBackoff, cfg.MaxBackoff),
		WithRequestsPerMinute(cfg.RequestsPerMinute),
		WithDocumentTimeout(cfg.DocumentTimeout),
	}
}
