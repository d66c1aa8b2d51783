package service

import "errors"

// ErrNotStarted is returned by operations called before Start or after Stop.
var ErrNotStarted = errors.New("engagement service not started")
