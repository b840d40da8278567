package metrics

import (
	"errors"
	"fmt"
	"time"
)

// ErrFinalized is returned by Record and Finalize once the aggregator has
// produced its summary.
var ErrFinalized = errors.New("aggregator already finalized")

// RequestResult is the outcome of one executed scenario step.
//
// It is created by the VU that sent the request and is immutable once handed
// to the Aggregator.
type RequestResult struct {
	StepIndex     int           `json:"stepIndex"`
	StepName      string        `json:"stepName"`
	VUID          int           `json:"vuId"`
	Iteration     int64         `json:"iteration"`
	StatusCode    int           `json:"statusCode"`
	Latency       time.Duration `json:"latency"`
	BytesReceived int64         `json:"bytesReceived"`
	CheckPassed   bool          `json:"checkPassed"`
	Err           error         `json:"-"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Outcome classifies a result.
type Outcome int

const (
	OutcomePassed Outcome = iota
	OutcomeCheckFailed
	OutcomeNetworkError
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "passed"
	case OutcomeCheckFailed:
		return "check_failed"
	case OutcomeNetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// Outcome reports how the request ended.
func (r *RequestResult) Outcome() Outcome {
	var netErr *NetworkError
	if errors.As(r.Err, &netErr) {
		return OutcomeNetworkError
	}
	if r.CheckPassed {
		return OutcomePassed
	}
	return OutcomeCheckFailed
}

// NetworkError is a transport-level failure of one request: dial, TLS,
// timeout or a broken response body. It is recorded, never fatal.
type NetworkError struct {
	Step int
	Op   string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("step %d: %s: %v", e.Step, e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the underlying error was a timeout.
func (e *NetworkError) Timeout() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// CheckFailure means a response arrived but the status predicate or an
// assertion rejected it.
type CheckFailure struct {
	Step   int
	Reason string
}

func (e *CheckFailure) Error() string {
	return fmt.Sprintf("step %d: check failed: %s", e.Step, e.Reason)
}
