package contracts

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotReady marks a date with insufficient history for feature computation.
// Not a failure: a defined terminal state for that date. The pipeline records
// it and halts the remaining stages.
var ErrNotReady = errors.New("insufficient history")

// IsNotReady reports whether err is the NotReady terminal state.
func IsNotReady(err error) bool {
	return errors.Is(err, ErrNotReady)
}

// MissingDataError reports an absent upstream record (no price bar on the
// target date, no signal before simulation). The date is skipped; prior
// dates' state is untouched.
type MissingDataError struct {
	Kind   string // "price_bar", "signal", ...
	Symbol string
	Date   time.Time
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("%s not found for %s on %s", e.Kind, e.Symbol, e.Date.Format("2006-01-02"))
}

// IsMissingData reports whether err is a MissingDataError.
func IsMissingData(err error) bool {
	var m *MissingDataError
	return errors.As(err, &m)
}

// ConfigurationError reports invalid strategy parameters. Raised at strategy
// construction, never silently defaulted.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
