package repository

import (
	"errors"
	"fmt"

	"github.com/okian/coachmatch/internal/domain/engagement"
)

// Sentinel kinds for store errors. ErrNotFound also matches
// engagement.ErrUnknownPair, which callers read as browsing.
var (
	ErrNotFound        = fmt.Errorf("engagement not found: %w", engagement.ErrUnknownPair)
	ErrVersionConflict = errors.New("version conflict")
	ErrUnknownDriver   = errors.New("unknown sql driver")
)
