package metrics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Thresholds are pass/fail criteria applied to a finalized Summary.
type Thresholds struct {
	// MaxFailRate fails the run when the overall fail rate exceeds it.
	MaxFailRate *float64

	// Duration expressions over request latency, e.g. "p95 < 500ms".
	Duration []string

	// Failed expressions over the fail rate, e.g. "rate < 0.01".
	Failed []string

	// Requests expressions over throughput, e.g. "count > 1000" or "rate > 50".
	Requests []string
}

// Empty reports whether no criterion is configured.
func (t Thresholds) Empty() bool {
	return t.MaxFailRate == nil && len(t.Duration) == 0 && len(t.Failed) == 0 && len(t.Requests) == 0
}

// ThresholdResult contains the result of a threshold evaluation.
type ThresholdResult struct {
	Metric     string `json:"metric"`
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Value      string `json:"value"`
	Message    string `json:"message,omitempty"`
}

// Evaluate checks every threshold against the summary, storing the results
// and updating Passed. A run with no thresholds passes.
func (s *Summary) Evaluate(t Thresholds) {
	var results []ThresholdResult

	if t.MaxFailRate != nil {
		r := ThresholdResult{
			Metric:     "fail_rate",
			Expression: fmt.Sprintf("rate <= %.4f", *t.MaxFailRate),
			Value:      fmt.Sprintf("%.4f", s.FailRate),
			Passed:     s.FailRate <= *t.MaxFailRate,
		}
		if !r.Passed {
			r.Message = fmt.Sprintf("fail rate %.4f exceeds maximum %.4f", s.FailRate, *t.MaxFailRate)
		}
		results = append(results, r)
	}

	for _, expr := range t.Duration {
		results = append(results, s.evaluateDuration(expr))
	}
	for _, expr := range t.Failed {
		results = append(results, s.evaluateFailed(expr))
	}
	for _, expr := range t.Requests {
		results = append(results, s.evaluateRequests(expr))
	}

	s.Thresholds = results
	s.Passed = true
	for _, r := range results {
		if !r.Passed {
			s.Passed = false
		}
	}
}

// FailedThresholds returns the results that did not pass.
func (s *Summary) FailedThresholds() []ThresholdResult {
	var failed []ThresholdResult
	for _, r := range s.Thresholds {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func (s *Summary) evaluateDuration(expr string) ThresholdResult {
	result := ThresholdResult{Metric: "http_req_duration", Expression: expr}

	metric, op, valueStr, err := ParseThresholdExpression(expr)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	latency := map[string]time.Duration{
		"min": s.Latency.Min,
		"max": s.Latency.Max,
		"avg": s.Latency.Mean,
		"med": s.Latency.P50,
		"p50": s.Latency.P50,
		"p90": s.Latency.P90,
		"p95": s.Latency.P95,
		"p99": s.Latency.P99,
	}
	actual, ok := latency[metric]
	if !ok {
		result.Message = fmt.Sprintf("unknown metric: %s", metric)
		return result
	}

	limit, err := time.ParseDuration(valueStr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	result.Value = actual.String()
	result.Passed = compare(float64(actual), op, float64(limit))
	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %s, threshold: %s %s", metric, actual, op, limit)
	}
	return result
}

func (s *Summary) evaluateFailed(expr string) ThresholdResult {
	result := ThresholdResult{Metric: "http_req_failed", Expression: expr}

	metric, op, valueStr, err := ParseThresholdExpression(expr)
	if err != nil {
		result.Message = err.Error()
		return result
	}
	if metric != "rate" {
		result.Message = fmt.Sprintf("http_req_failed only supports 'rate', got: %s", metric)
		return result
	}

	limit, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	result.Value = fmt.Sprintf("%.4f", s.FailRate)
	result.Passed = compare(s.FailRate, op, limit)
	if !result.Passed {
		result.Message = fmt.Sprintf("fail rate is %.4f, threshold: %s %.4f", s.FailRate, op, limit)
	}
	return result
}

func (s *Summary) evaluateRequests(expr string) ThresholdResult {
	result := ThresholdResult{Metric: "http_reqs", Expression: expr}

	metric, op, valueStr, err := ParseThresholdExpression(expr)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	limit, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	var actual float64
	switch metric {
	case "count":
		actual = float64(s.TotalRequests)
	case "rate":
		actual = s.RPS
	default:
		result.Message = fmt.Sprintf("http_reqs only supports 'count' or 'rate', got: %s", metric)
		return result
	}

	result.Value = fmt.Sprintf("%.2f", actual)
	result.Passed = compare(actual, op, limit)
	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %.2f, threshold: %s %.2f", metric, actual, op, limit)
	}
	return result
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>=!]+)\s*(.+)$`)

// ParseThresholdExpression splits an expression like "p95 < 500ms" into
// metric, operator and value.
func ParseThresholdExpression(expr string) (metric, op, value string, err error) {
	m := thresholdPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return "", "", "", fmt.Errorf("invalid threshold expression: %q", expr)
	}
	switch m[2] {
	case "<", "<=", ">", ">=", "==", "!=":
	default:
		return "", "", "", fmt.Errorf("invalid operator %q in %q", m[2], expr)
	}
	return m[1], m[2], strings.TrimSpace(m[3]), nil
}

func compare(actual float64, op string, limit float64) bool {
	switch op {
	case "<":
		return actual < limit
	case "<=":
		return actual <= limit
	case ">":
		return actual > limit
	case ">=":
		return actual >= limit
	case "==":
		return actual == limit
	case "!=":
		return actual != limit
	}
	return false
}
