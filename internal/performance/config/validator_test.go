package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() *TestConfig {
	return &TestConfig{
		Name:       "valid",
		VUs:        2,
		Iterations: 4,
		Scenario: []StepConfig{
			{Name: "gateway", Method: "GET", URL: "{{baseUrl}}/gateway"},
			{Name: "guild", Method: "get", URL: "http://localhost:8080/guilds/1", Timeout: "5s"},
		},
	}
}

func validationFields(t *testing.T, err error) *ValidationErrors {
	t.Helper()
	var verrs *ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error %v is not *ValidationErrors", err)
	}
	return verrs
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	durationOnly := validConfig()
	durationOnly.Iterations = 0
	durationOnly.Duration = "30s"
	if err := durationOnly.Validate(); err != nil {
		t.Fatalf("Validate() duration-only error = %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *TestConfig)
		field  string
	}{
		{name: "zero vus", mutate: func(c *TestConfig) { c.VUs = 0 }, field: "vus"},
		{name: "negative iterations", mutate: func(c *TestConfig) { c.Iterations = -1 }, field: "iterations"},
		{name: "no budget", mutate: func(c *TestConfig) { c.Iterations = 0 }, field: "iterations"},
		{name: "bad duration", mutate: func(c *TestConfig) { c.Duration = "soon" }, field: "duration"},
		{name: "empty scenario", mutate: func(c *TestConfig) { c.Scenario = nil }, field: "scenario"},
		{name: "bad method", mutate: func(c *TestConfig) { c.Scenario[0].Method = "FETCH" }, field: "scenario[0].method"},
		{name: "missing url", mutate: func(c *TestConfig) { c.Scenario[1].URL = "" }, field: "scenario[1].url"},
		{name: "bad timeout", mutate: func(c *TestConfig) { c.Scenario[1].Timeout = "later" }, field: "scenario[1].timeout"},
		{name: "bad think time", mutate: func(c *TestConfig) { c.Scenario[0].ThinkTime = "-1s" }, field: "scenario[0].thinkTime"},
		{name: "bad policy", mutate: func(c *TestConfig) { c.Options.NetworkErrors = "ignore" }, field: "options.networkErrors"},
		{name: "negative retry limit", mutate: func(c *TestConfig) {
			limit := -1
			c.Options.RetryLimit = &limit
		}, field: "options.retryLimit"},
		{name: "inverted check range", mutate: func(c *TestConfig) { c.Check = &CheckConfig{MinStatus: 300, MaxStatus: 200} }, field: "check.maxStatus"},
		{name: "fail rate out of range", mutate: func(c *TestConfig) {
			rate := 1.5
			c.Thresholds = &ThresholdsConfig{MaxFailRate: &rate}
		}, field: "thresholds.maxFailRate"},
		{name: "bad threshold", mutate: func(c *TestConfig) {
			c.Thresholds = &ThresholdsConfig{HTTPReqDuration: []string{"p97 fast"}}
		}, field: "thresholds.http_req_duration[0]"},
		{name: "unparseable duration threshold", mutate: func(c *TestConfig) {
			c.Thresholds = &ThresholdsConfig{HTTPReqDuration: []string{"p95 < fast"}}
		}, field: "thresholds.http_req_duration[0]"},
		{name: "wrong metric for failed threshold", mutate: func(c *TestConfig) {
			c.Thresholds = &ThresholdsConfig{HTTPReqFailed: []string{"p95 < 0.01"}}
		}, field: "thresholds.http_req_failed[0]"},
		{name: "wrong metric for reqs threshold", mutate: func(c *TestConfig) {
			c.Thresholds = &ThresholdsConfig{HTTPReqs: []string{"avg > 10"}}
		}, field: "thresholds.http_reqs[0]"},
		{name: "unknown assertion", mutate: func(c *TestConfig) {
			c.Scenario[0].Assertions = []AssertionConfig{{Type: "xml"}}
		}, field: "scenario[0].assertions[0].type"},
		{name: "jsonpath without path", mutate: func(c *TestConfig) {
			c.Scenario[0].Assertions = []AssertionConfig{{Type: "jsonpath", Condition: "exists"}}
		}, field: "scenario[0].assertions[0].path"},
		{name: "bad regex", mutate: func(c *TestConfig) {
			c.Scenario[0].Assertions = []AssertionConfig{{Type: "body", Condition: "matches", Value: "("}}
		}, field: "scenario[0].assertions[0].value"},
		{name: "bad schema", mutate: func(c *TestConfig) {
			c.Scenario[0].Assertions = []AssertionConfig{{Type: "schema", Value: "{"}}
		}, field: "scenario[0].assertions[0].value"},
		{name: "status assertion not numeric", mutate: func(c *TestConfig) {
			c.Scenario[0].Assertions = []AssertionConfig{{Type: "status", Condition: "eq", Value: "ok"}}
		}, field: "scenario[0].assertions[0].value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			verrs := validationFields(t, err)
			if !verrs.HasField(tt.field) {
				t.Errorf("expected error on %q, got: %v", tt.field, err)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &TestConfig{Scenario: []StepConfig{{Method: "BREW"}}}

	verrs := validationFields(t, cfg.Validate())
	if len(verrs.Errors) < 4 {
		t.Errorf("expected at least 4 errors, got %d: %v", len(verrs.Errors), verrs)
	}
	if !strings.Contains(verrs.Error(), "validation errors:") {
		t.Errorf("multi-error message = %q", verrs.Error())
	}
}

func TestValidationError_Error(t *testing.T) {
	withField := &ValidationError{Field: "vus", Message: "must be > 0"}
	if got := withField.Error(); got != "validation error on field 'vus': must be > 0" {
		t.Errorf("Error() = %q", got)
	}

	noField := &ValidationError{Message: "broken"}
	if got := noField.Error(); got != "validation error: broken" {
		t.Errorf("Error() = %q", got)
	}
}

func TestValidateThresholds(t *testing.T) {
	valid := &ThresholdsConfig{
		HTTPReqDuration: []string{"p95 < 500ms", "avg<200ms", "med <= 1s", "max != 0s"},
		HTTPReqFailed:   []string{"rate < 0.01"},
		HTTPReqs:        []string{"count >= 10", "rate > 5.5"},
	}
	errs := &ValidationErrors{}
	validateThresholds(valid, errs)
	if errs.HasErrors() {
		t.Errorf("validateThresholds() unexpected errors: %v", errs)
	}

	tests := []struct {
		name  string
		cfg   ThresholdsConfig
		field string
	}{
		{"empty", ThresholdsConfig{HTTPReqDuration: []string{""}}, "thresholds.http_req_duration[0]"},
		{"no operator", ThresholdsConfig{HTTPReqDuration: []string{"p95 500ms"}}, "thresholds.http_req_duration[0]"},
		{"duration value not a duration", ThresholdsConfig{HTTPReqDuration: []string{"p95 < fast"}}, "thresholds.http_req_duration[0]"},
		{"rate under duration", ThresholdsConfig{HTTPReqDuration: []string{"p95 < 1s", "rate < 0.01"}}, "thresholds.http_req_duration[1]"},
		{"percentile under failed", ThresholdsConfig{HTTPReqFailed: []string{"p95 < 0.01"}}, "thresholds.http_req_failed[0]"},
		{"failed value not a number", ThresholdsConfig{HTTPReqFailed: []string{"rate < 1%"}}, "thresholds.http_req_failed[0]"},
		{"percentile under reqs", ThresholdsConfig{HTTPReqs: []string{"p99 > 10"}}, "thresholds.http_reqs[0]"},
		{"reqs value not a number", ThresholdsConfig{HTTPReqs: []string{"count > many"}}, "thresholds.http_reqs[0]"},
		{"bad operator", ThresholdsConfig{HTTPReqs: []string{"count => 10"}}, "thresholds.http_reqs[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := &ValidationErrors{}
			validateThresholds(&tt.cfg, errs)
			if !errs.HasField(tt.field) {
				t.Errorf("expected error on %q, got: %v", tt.field, errs)
			}
		})
	}
}
