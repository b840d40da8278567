// Package config provides configuration parsing and validation for load runs.
package config

import (
	"time"
)

// TestConfig is the root configuration for a load run.
//
// Example YAML:
//
//	name: "Gateway smoke"
//	vus: 50
//	iterations: 50
//	variables:
//	  baseUrl: "http://localhost:8080/api/v9"
//	headers:
//	  Authorization: "${TOKEN}"
//	options:
//	  noConnectionReuse: true
//	scenario:
//	  - name: gateway
//	    method: GET
//	    url: "{{baseUrl}}/gateway"
type TestConfig struct {
	// Name of the run (for reporting)
	Name string `json:"name" yaml:"name"`

	// Description of the run (optional)
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// VUs is the number of concurrent virtual users
	VUs int `json:"vus" yaml:"vus"`

	// Iterations is the total scenario executions shared by all VUs
	Iterations int64 `json:"iterations,omitempty" yaml:"iterations,omitempty"`

	// Duration bounds the run in time (e.g., "30s", "2m")
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Variables are substituted into {{name}} placeholders
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`

	// Headers are default headers applied to every step
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Options control HTTP client and budget behaviour
	Options ExecutionOptions `json:"options,omitempty" yaml:"options,omitempty"`

	// Check overrides the default status predicate
	Check *CheckConfig `json:"check,omitempty" yaml:"check,omitempty"`

	// Thresholds define pass/fail criteria for the run
	Thresholds *ThresholdsConfig `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`

	// Scenario is the ordered list of requests each iteration executes
	Scenario []StepConfig `json:"scenario" yaml:"scenario"`
}

// ExecutionOptions controls run behaviour.
type ExecutionOptions struct {
	// Timeout is the default HTTP request timeout
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// NoConnectionReuse disables keep-alives so each request dials a new connection
	NoConnectionReuse bool `json:"noConnectionReuse,omitempty" yaml:"noConnectionReuse,omitempty"`

	// PerVUClient gives every VU its own HTTP client instead of a shared pool
	PerVUClient bool `json:"perVUClient,omitempty" yaml:"perVUClient,omitempty"`

	// MaxIdleConnsPerHost limits idle pooled connections per host
	MaxIdleConnsPerHost int `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`

	// UserAgent is the default User-Agent header
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`

	// NetworkErrors is "consume" (default) or "retry"
	NetworkErrors string `json:"networkErrors,omitempty" yaml:"networkErrors,omitempty"`

	// RetryLimit caps consecutive retries of one iteration under the retry
	// policy. Unset means DefaultRetryLimit; 0 disables retries.
	RetryLimit *int `json:"retryLimit,omitempty" yaml:"retryLimit,omitempty"`

	// GracefulStop bounds how long in-flight requests may run after a stop signal
	GracefulStop string `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`
}

// CheckConfig defines the accepted status range [MinStatus, MaxStatus).
type CheckConfig struct {
	MinStatus int `json:"minStatus" yaml:"minStatus"`
	MaxStatus int `json:"maxStatus" yaml:"maxStatus"`
}

// StepConfig defines a single HTTP request of the scenario.
type StepConfig struct {
	// Name for this step (used in metrics)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Method is the HTTP method (GET, POST, PUT, DELETE, etc.)
	Method string `json:"method" yaml:"method"`

	// URL is the request URL (supports {{var}} and ${ENV} substitution)
	URL string `json:"url" yaml:"url"`

	// Headers are step-specific headers, merged over the defaults
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Body is the request body (supports substitution)
	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// Timeout is step-specific timeout (overrides options.timeout)
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// ThinkTime is the pause after this step
	ThinkTime string `json:"thinkTime,omitempty" yaml:"thinkTime,omitempty"`

	// Assertions validate the response in addition to the status check
	Assertions []AssertionConfig `json:"assertions,omitempty" yaml:"assertions,omitempty"`
}

// AssertionConfig defines a response validation.
type AssertionConfig struct {
	// Type is the assertion type: "status", "header", "body", "jsonpath", "schema", "duration"
	Type string `json:"type" yaml:"type"`

	// Condition is the comparison: "eq", "ne", "gt", "lt", "gte", "lte", "contains", "matches", "exists"
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Value is the expected value (the schema document for "schema")
	Value string `json:"value,omitempty" yaml:"value,omitempty"`

	// Path is the header name or JSONPath expression
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// ThresholdsConfig defines pass/fail criteria for the run.
type ThresholdsConfig struct {
	// MaxFailRate fails the run when the fraction of failed requests exceeds it
	MaxFailRate *float64 `json:"maxFailRate,omitempty" yaml:"maxFailRate,omitempty"`

	// HTTPReqDuration thresholds for request duration
	// e.g., ["p95 < 500ms", "avg < 200ms"]
	HTTPReqDuration []string `json:"http_req_duration,omitempty" yaml:"http_req_duration,omitempty"`

	// HTTPReqFailed thresholds for failure rate
	// e.g., ["rate < 0.01"]
	HTTPReqFailed []string `json:"http_req_failed,omitempty" yaml:"http_req_failed,omitempty"`

	// HTTPReqs thresholds for request count/rate
	// e.g., ["count > 100", "rate > 10"]
	HTTPReqs []string `json:"http_reqs,omitempty" yaml:"http_reqs,omitempty"`
}

// Network error policies.
const (
	NetworkErrorsConsume = "consume"
	NetworkErrorsRetry   = "retry"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultTimeout             = 30 * time.Second
	DefaultMaxIdleConnsPerHost = 100
	DefaultUserAgent           = "runner/1.0"
	DefaultRetryLimit          = 3
	DefaultGracefulStop        = 30 * time.Second
	DefaultMinStatus           = 200
	DefaultMaxStatus           = 400
)
