package config

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wesleyorama2/runner/internal/performance/metrics"
	"github.com/wesleyorama2/runner/pkg/jsonschema"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// HasField reports whether any error was recorded for field.
func (e *ValidationErrors) HasField(field string) bool {
	for _, err := range e.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

var placeholderPattern = regexp.MustCompile(`\{\{[^}]*\}\}`)

// Validate validates the entire test configuration.
//
// Returns nil if valid, or a *ValidationErrors containing every problem found.
func (c *TestConfig) Validate() error {
	errs := &ValidationErrors{}

	if c.VUs <= 0 {
		errs.Add("vus", "vus must be greater than 0")
	}
	if c.Iterations < 0 {
		errs.Add("iterations", "iterations cannot be negative")
	}

	duration, err := ParseDurationString(c.Duration)
	if err != nil {
		errs.Add("duration", fmt.Sprintf("invalid duration: %v", err))
	} else if duration < 0 {
		errs.Add("duration", "duration cannot be negative")
	}

	if c.Iterations == 0 && c.Duration == "" {
		errs.Add("iterations", "an iteration budget or a duration is required")
	}

	if len(c.Scenario) == 0 {
		errs.Add("scenario", "at least one step is required")
	}
	for i := range c.Scenario {
		validateStep(fmt.Sprintf("scenario[%d]", i), &c.Scenario[i], errs)
	}

	validateOptions(&c.Options, errs)

	if c.Check != nil {
		validateCheck(c.Check, errs)
	}
	if c.Thresholds != nil {
		validateThresholds(c.Thresholds, errs)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// validateStep validates a single step configuration.
func validateStep(prefix string, step *StepConfig, errs *ValidationErrors) {
	method := strings.ToUpper(step.Method)
	if method == "" {
		errs.Add(prefix+".method", "method is required")
	} else if !validMethods[method] {
		errs.Add(prefix+".method", fmt.Sprintf("invalid HTTP method: %s", step.Method))
	}

	if step.URL == "" {
		errs.Add(prefix+".url", "url is required")
	} else {
		// Placeholders are resolved later; validate the surrounding shape.
		candidate := placeholderPattern.ReplaceAllString(step.URL, "placeholder")
		if strings.HasPrefix(step.URL, "{{") {
			candidate = "http://" + candidate
		}
		if _, err := url.Parse(candidate); err != nil {
			errs.Add(prefix+".url", fmt.Sprintf("invalid URL: %v", err))
		}
	}

	if d, err := ParseDurationString(step.Timeout); err != nil {
		errs.Add(prefix+".timeout", fmt.Sprintf("invalid timeout: %v", err))
	} else if d < 0 {
		errs.Add(prefix+".timeout", "timeout cannot be negative")
	}

	if d, err := ParseDurationString(step.ThinkTime); err != nil {
		errs.Add(prefix+".thinkTime", fmt.Sprintf("invalid thinkTime: %v", err))
	} else if d < 0 {
		errs.Add(prefix+".thinkTime", "thinkTime cannot be negative")
	}

	for i := range step.Assertions {
		validateAssertion(fmt.Sprintf("%s.assertions[%d]", prefix, i), &step.Assertions[i], errs)
	}
}

var conditionsByType = map[string]map[string]bool{
	"status":   {"eq": true, "ne": true, "gt": true, "lt": true, "gte": true, "lte": true},
	"duration": {"lt": true, "lte": true, "gt": true, "gte": true},
	"header":   {"eq": true, "ne": true, "contains": true, "matches": true, "exists": true},
	"body":     {"eq": true, "contains": true, "matches": true},
	"jsonpath": {"eq": true, "ne": true, "contains": true, "matches": true, "exists": true},
	"schema":   {"": true},
}

// validateAssertion validates an assertion configuration.
func validateAssertion(prefix string, a *AssertionConfig, errs *ValidationErrors) {
	conditions, ok := conditionsByType[a.Type]
	if a.Type == "" {
		errs.Add(prefix+".type", "type is required")
		return
	}
	if !ok {
		errs.Add(prefix+".type", fmt.Sprintf("invalid assertion type: %s", a.Type))
		return
	}

	if a.Type == "schema" {
		if a.Value == "" {
			errs.Add(prefix+".value", "schema document is required")
		} else if _, err := jsonschema.Compile(a.Value); err != nil {
			errs.Add(prefix+".value", err.Error())
		}
		return
	}

	if !conditions[a.Condition] {
		errs.Add(prefix+".condition", fmt.Sprintf("invalid condition %q for %s assertion", a.Condition, a.Type))
	}

	if (a.Type == "header" || a.Type == "jsonpath") && a.Path == "" {
		errs.Add(prefix+".path", "path is required")
	}

	if a.Condition == "matches" {
		if _, err := regexp.Compile(a.Value); err != nil {
			errs.Add(prefix+".value", fmt.Sprintf("invalid pattern: %v", err))
		}
	}

	switch a.Type {
	case "status":
		var code int
		if _, err := fmt.Sscanf(a.Value, "%d", &code); err != nil {
			errs.Add(prefix+".value", fmt.Sprintf("status must be an integer, got %q", a.Value))
		}
	case "duration":
		if _, err := ParseDurationString(a.Value); err != nil || a.Value == "" {
			errs.Add(prefix+".value", fmt.Sprintf("invalid duration %q", a.Value))
		}
	}
}

// validateOptions validates execution options.
func validateOptions(o *ExecutionOptions, errs *ValidationErrors) {
	if d, err := ParseDurationString(o.Timeout); err != nil {
		errs.Add("options.timeout", fmt.Sprintf("invalid timeout: %v", err))
	} else if d < 0 {
		errs.Add("options.timeout", "timeout cannot be negative")
	}

	if _, err := ParseDurationString(o.GracefulStop); err != nil {
		errs.Add("options.gracefulStop", fmt.Sprintf("invalid gracefulStop: %v", err))
	}

	switch o.NetworkErrors {
	case "", NetworkErrorsConsume, NetworkErrorsRetry:
	default:
		errs.Add("options.networkErrors", fmt.Sprintf("unknown policy %q (want %s or %s)", o.NetworkErrors, NetworkErrorsConsume, NetworkErrorsRetry))
	}

	if o.RetryLimit != nil && *o.RetryLimit < 0 {
		errs.Add("options.retryLimit", "cannot be negative")
	}
	if o.MaxIdleConnsPerHost < 0 {
		errs.Add("options.maxIdleConnsPerHost", "cannot be negative")
	}
}

// validateCheck validates the status range predicate.
func validateCheck(c *CheckConfig, errs *ValidationErrors) {
	if c.MinStatus < 100 || c.MinStatus > 599 {
		errs.Add("check.minStatus", "must be a valid HTTP status (100-599)")
	}
	if c.MaxStatus <= c.MinStatus {
		errs.Add("check.maxStatus", "must be greater than minStatus")
	}
}

// validateThresholds validates threshold configuration.
func validateThresholds(t *ThresholdsConfig, errs *ValidationErrors) {
	if t.MaxFailRate != nil && (*t.MaxFailRate < 0 || *t.MaxFailRate > 1) {
		errs.Add("thresholds.maxFailRate", "must be between 0 and 1")
	}

	validateThresholdList("http_req_duration", t.HTTPReqDuration, durationMetrics, parseDurationLimit, errs)
	validateThresholdList("http_req_failed", t.HTTPReqFailed, failedMetrics, parseRateLimit, errs)
	validateThresholdList("http_reqs", t.HTTPReqs, requestMetrics, parseRateLimit, errs)
}

var (
	durationMetrics = map[string]bool{"min": true, "max": true, "avg": true, "med": true, "p50": true, "p90": true, "p95": true, "p99": true}
	failedMetrics   = map[string]bool{"rate": true}
	requestMetrics  = map[string]bool{"count": true, "rate": true}
)

func parseDurationLimit(v string) error {
	_, err := time.ParseDuration(v)
	return err
}

func parseRateLimit(v string) error {
	_, err := strconv.ParseFloat(v, 64)
	return err
}

// validateThresholdList checks every expression under key the same way the
// summary evaluates it, so a threshold that cannot be evaluated is rejected
// before the run starts.
func validateThresholdList(key string, exprs []string, allowed map[string]bool, parseLimit func(string) error, errs *ValidationErrors) {
	for i, expr := range exprs {
		field := fmt.Sprintf("thresholds.%s[%d]", key, i)

		metric, _, value, err := metrics.ParseThresholdExpression(expr)
		if err != nil {
			errs.Add(field, err.Error())
			continue
		}
		if !allowed[metric] {
			errs.Add(field, fmt.Sprintf("metric %q is not supported for %s (want %s)", metric, key, strings.Join(sortedMetricNames(allowed), ", ")))
			continue
		}
		if err := parseLimit(strings.TrimSpace(value)); err != nil {
			errs.Add(field, fmt.Sprintf("invalid threshold value %q: %v", value, err))
		}
	}
}

func sortedMetricNames(m map[string]bool) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
