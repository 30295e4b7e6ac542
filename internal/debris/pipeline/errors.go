package pipeline

import (
	"fmt"

	"github.com/banshee-data/debris-tracker/internal/debris/l1frames"
)

// InvalidConfigError reports a configuration value outside its allowed
// range. It is returned at construction time only.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Reason)
}

// Re-exported so callers can match pipeline errors without importing
// l1frames.
type (
	InsufficientDataError  = l1frames.InsufficientDataError
	DimensionMismatchError = l1frames.DimensionMismatchError
)
