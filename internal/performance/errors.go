// Package performance drives virtual users through an HTTP scenario and
// reports the aggregated results.
package performance

import (
	"errors"
	"fmt"

	"github.com/wesleyorama2/runner/internal/performance/metrics"
)

// ErrBudgetExhausted is returned by IterationBudget.Claim when every
// iteration slot has been handed out. It ends a VU normally.
var ErrBudgetExhausted = errors.New("iteration budget exhausted")

// ErrAlreadyRunning is returned when Run is called on a Driver that has
// already been started.
var ErrAlreadyRunning = errors.New("driver already started")

// NetworkError is a transport failure of a single request.
type NetworkError = metrics.NetworkError

// CheckFailure is a response rejected by the status predicate or an assertion.
type CheckFailure = metrics.CheckFailure

// ConfigError reports a configuration that cannot be run. It is always
// raised before any VU starts.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
