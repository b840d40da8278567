package performance

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wesleyorama2/runner/internal/performance/config"
	"github.com/wesleyorama2/runner/pkg/jsonpath"
	"github.com/wesleyorama2/runner/pkg/jsonschema"
)

// CheckFunc decides whether a response status counts as passed.
type CheckFunc func(status int) bool

// StatusRange accepts statuses in the half-open range [min, max).
func StatusRange(min, max int) CheckFunc {
	return func(status int) bool {
		return status >= min && status < max
	}
}

// DefaultCheck accepts 2xx and 3xx responses.
var DefaultCheck = StatusRange(config.DefaultMinStatus, config.DefaultMaxStatus)

// Response is what an Assertion inspects.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Latency    time.Duration
}

// Assertion is a compiled per-step response check.
type Assertion interface {
	// Evaluate returns whether the response satisfies the assertion and a
	// human-readable explanation.
	Evaluate(resp *Response) (bool, string)

	// NeedsBody reports whether the response body must be buffered.
	NeedsBody() bool
}

type assertion struct {
	typ       string
	condition string
	path      string
	value     string

	pattern  *regexp.Regexp
	schema   *jsonschema.Schema
	status   int
	duration time.Duration
	expect   bool
}

// CompileAssertion turns an assertion config into an Assertion.
func CompileAssertion(cfg config.AssertionConfig) (Assertion, error) {
	a := &assertion{
		typ:       cfg.Type,
		condition: cfg.Condition,
		path:      cfg.Path,
		value:     cfg.Value,
		expect:    true,
	}

	var err error
	switch cfg.Type {
	case "status":
		if a.status, err = strconv.Atoi(strings.TrimSpace(cfg.Value)); err != nil {
			return nil, fmt.Errorf("status assertion: invalid value %q", cfg.Value)
		}
	case "duration":
		if a.duration, err = config.ParseDurationString(cfg.Value); err != nil {
			return nil, fmt.Errorf("duration assertion: %w", err)
		}
	case "schema":
		if a.schema, err = jsonschema.Compile(cfg.Value); err != nil {
			return nil, err
		}
	case "header", "body", "jsonpath":
	default:
		return nil, fmt.Errorf("unknown assertion type %q", cfg.Type)
	}

	switch cfg.Condition {
	case "matches":
		if a.pattern, err = regexp.Compile(cfg.Value); err != nil {
			return nil, fmt.Errorf("%s assertion: invalid pattern: %w", cfg.Type, err)
		}
	case "exists":
		if cfg.Value != "" {
			if a.expect, err = strconv.ParseBool(cfg.Value); err != nil {
				return nil, fmt.Errorf("%s assertion: exists expects true or false, got %q", cfg.Type, cfg.Value)
			}
		}
	}

	return a, nil
}

func (a *assertion) NeedsBody() bool {
	return a.typ == "body" || a.typ == "jsonpath" || a.typ == "schema"
}

func (a *assertion) Evaluate(resp *Response) (bool, string) {
	switch a.typ {
	case "status":
		ok := compareInt(resp.StatusCode, a.condition, a.status)
		return ok, fmt.Sprintf("status %d %s %d", resp.StatusCode, a.condition, a.status)

	case "duration":
		ok := compareInt(int(resp.Latency), a.condition, int(a.duration))
		return ok, fmt.Sprintf("duration %s %s %s", resp.Latency, a.condition, a.duration)

	case "header":
		values, present := resp.Header[http.CanonicalHeaderKey(a.path)]
		actual := ""
		if present && len(values) > 0 {
			actual = values[0]
		}
		return a.matchString("header "+a.path, actual, present)

	case "body":
		return a.matchString("body", string(resp.Body), true)

	case "jsonpath":
		value, err := jsonpath.Extract(resp.Body, a.path)
		if err != nil {
			if a.condition == "exists" && !a.expect {
				return true, fmt.Sprintf("path %s is absent", a.path)
			}
			return false, fmt.Sprintf("path %s: %v", a.path, err)
		}
		return a.matchString("path "+a.path, value, true)

	case "schema":
		if err := a.schema.Validate(resp.Body); err != nil {
			return false, fmt.Sprintf("schema: %v", err)
		}
		return true, "body matches schema"
	}

	return false, fmt.Sprintf("unknown assertion type %q", a.typ)
}

func (a *assertion) matchString(subject, actual string, present bool) (bool, string) {
	switch a.condition {
	case "exists":
		if present == a.expect {
			return true, fmt.Sprintf("%s exists: %v", subject, present)
		}
		return false, fmt.Sprintf("%s exists: %v, expected %v", subject, present, a.expect)
	case "eq":
		if present && actual == a.value {
			return true, fmt.Sprintf("%s equals %q", subject, a.value)
		}
		return false, fmt.Sprintf("%s is %q, expected %q", subject, actual, a.value)
	case "ne":
		if actual != a.value {
			return true, fmt.Sprintf("%s is not %q", subject, a.value)
		}
		return false, fmt.Sprintf("%s is %q", subject, actual)
	case "contains":
		if present && strings.Contains(actual, a.value) {
			return true, fmt.Sprintf("%s contains %q", subject, a.value)
		}
		return false, fmt.Sprintf("%s %q does not contain %q", subject, truncate(actual, 64), a.value)
	case "matches":
		if present && a.pattern.MatchString(actual) {
			return true, fmt.Sprintf("%s matches %s", subject, a.pattern)
		}
		return false, fmt.Sprintf("%s %q does not match %s", subject, truncate(actual, 64), a.pattern)
	}
	return false, fmt.Sprintf("unknown condition %q", a.condition)
}

func compareInt(actual int, condition string, expected int) bool {
	switch condition {
	case "eq":
		return actual == expected
	case "ne":
		return actual != expected
	case "gt":
		return actual > expected
	case "gte":
		return actual >= expected
	case "lt":
		return actual < expected
	case "lte":
		return actual <= expected
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
