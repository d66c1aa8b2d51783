package worker

import (
	"time"

	"github.com/okian/coachmatch/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithRetry bounds reprojection attempts and sets the first backoff delay.
func WithRetry(maxTries int, initial time.Duration) Option {
	return func(w *InMemoryWorker) {
		if maxTries > 0 {
			w.maxTries = uint(maxTries)
		}
		if initial > 0 {
			w.initialInterval = initial
			if w.maxInterval < initial {
				w.maxInterval = initial
			}
		}
	}
}

func withCounters(c *counters) Option {
	return func(w *InMemoryWorker) {
		w.counters = c
	}
}
