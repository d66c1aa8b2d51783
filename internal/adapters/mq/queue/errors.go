package queue

import "errors"

// ErrQueueFull is reported by callers when Enqueue returns false.
var ErrQueueFull = errors.New("projection queue full or closed")
