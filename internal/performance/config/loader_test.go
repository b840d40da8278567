package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "standard seconds", input: "30s", expected: 30 * time.Second},
		{name: "standard minutes", input: "2m", expected: 2 * time.Minute},
		{name: "milliseconds", input: "500ms", expected: 500 * time.Millisecond},
		{name: "combined duration", input: "1h30m", expected: 90 * time.Minute},
		{name: "integer as seconds", input: "30", expected: 30 * time.Second},
		{name: "surrounding spaces", input: " 5s ", expected: 5 * time.Second},
		{name: "empty string", input: "", expected: 0},
		{name: "invalid format", input: "abc", wantErr: true},
		{name: "trailing garbage", input: "10x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDurationString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseDurationString() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.expected {
				t.Errorf("ParseDurationString() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseConfig_YAML(t *testing.T) {
	yamlConfig := `
name: "Gateway smoke"
vus: 50
iterations: 50
variables:
  baseUrl: "http://localhost:8080/api/v9"
headers:
  Authorization: "${TOKEN}"
options:
  noConnectionReuse: true
  networkErrors: retry
  retryLimit: 2
check:
  minStatus: 200
  maxStatus: 300
thresholds:
  maxFailRate: 0.05
  http_req_duration: ["p95 < 500ms"]
scenario:
  - name: gateway
    method: GET
    url: "{{baseUrl}}/gateway"
  - name: guild
    url: "{{baseUrl}}/guilds/203039963636301824"
    thinkTime: 100ms
    assertions:
      - type: jsonpath
        path: "$.id"
        condition: exists
`

	cfg, err := ParseConfig([]byte(yamlConfig), "test.yaml")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if cfg.Name != "Gateway smoke" {
		t.Errorf("Name = %q, want %q", cfg.Name, "Gateway smoke")
	}
	if cfg.VUs != 50 || cfg.Iterations != 50 {
		t.Errorf("VUs/Iterations = %d/%d, want 50/50", cfg.VUs, cfg.Iterations)
	}
	if !cfg.Options.NoConnectionReuse {
		t.Error("NoConnectionReuse should be true")
	}
	if cfg.Options.NetworkErrors != NetworkErrorsRetry || cfg.Options.RetryLimit == nil || *cfg.Options.RetryLimit != 2 {
		t.Errorf("network policy = %q/%v, want retry/2", cfg.Options.NetworkErrors, cfg.Options.RetryLimit)
	}
	if cfg.Check == nil || cfg.Check.MaxStatus != 300 {
		t.Errorf("Check = %+v, want maxStatus 300", cfg.Check)
	}
	if cfg.Thresholds == nil || cfg.Thresholds.MaxFailRate == nil || *cfg.Thresholds.MaxFailRate != 0.05 {
		t.Errorf("Thresholds = %+v, want maxFailRate 0.05", cfg.Thresholds)
	}
	if len(cfg.Scenario) != 2 {
		t.Fatalf("len(Scenario) = %d, want 2", len(cfg.Scenario))
	}
	if cfg.Scenario[1].ThinkTime != "100ms" {
		t.Errorf("ThinkTime = %q, want 100ms", cfg.Scenario[1].ThinkTime)
	}
	if len(cfg.Scenario[1].Assertions) != 1 || cfg.Scenario[1].Assertions[0].Type != "jsonpath" {
		t.Errorf("Assertions = %+v", cfg.Scenario[1].Assertions)
	}
}

func TestParseConfig_JSON(t *testing.T) {
	jsonConfig := `{
		"name": "json run",
		"vus": 2,
		"duration": "10s",
		"scenario": [{"method": "POST", "url": "http://localhost/items", "body": "{\"a\":1}"}]
	}`

	cfg, err := ParseConfig([]byte(jsonConfig), "run.json")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Duration != "10s" {
		t.Errorf("Duration = %q, want 10s", cfg.Duration)
	}
	if cfg.Scenario[0].Body != `{"a":1}` {
		t.Errorf("Body = %q", cfg.Scenario[0].Body)
	}
}

func TestParseConfig_JSONRejectsUnknownFields(t *testing.T) {
	_, err := ParseConfig([]byte(`{"vus": 1, "virtualUsers": 3}`), "run.json")
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseConfig_InvalidYAML(t *testing.T) {
	_, err := ParseConfig([]byte("vus: [unterminated"), "run.yml")
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	content := "vus: 3\niterations: 9\nscenario:\n  - url: http://localhost/\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.VUs != 3 || cfg.Iterations != 9 {
		t.Errorf("VUs/Iterations = %d/%d, want 3/9", cfg.VUs, cfg.Iterations)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadConfig() on missing file should fail")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &TestConfig{
		VUs:      1,
		Scenario: []StepConfig{{URL: "http://a"}, {Name: "named", Method: "post", URL: "http://b"}},
	}
	ApplyDefaults(cfg)

	if cfg.Options.Timeout != DefaultTimeout.String() {
		t.Errorf("Timeout = %q, want %q", cfg.Options.Timeout, DefaultTimeout)
	}
	if cfg.Options.NetworkErrors != NetworkErrorsConsume {
		t.Errorf("NetworkErrors = %q, want consume", cfg.Options.NetworkErrors)
	}
	if cfg.Options.RetryLimit == nil || *cfg.Options.RetryLimit != DefaultRetryLimit {
		t.Errorf("RetryLimit = %v, want %d", cfg.Options.RetryLimit, DefaultRetryLimit)
	}
	if cfg.Scenario[0].Method != "GET" || cfg.Scenario[0].Name != "step_1" {
		t.Errorf("step 0 = %s %s, want GET step_1", cfg.Scenario[0].Method, cfg.Scenario[0].Name)
	}
	if cfg.Scenario[1].Method != "POST" || cfg.Scenario[1].Name != "named" {
		t.Errorf("step 1 = %s %s, want POST named", cfg.Scenario[1].Method, cfg.Scenario[1].Name)
	}
}

func TestApplyDefaults_ExplicitZeroRetryLimit(t *testing.T) {
	cfg, err := ParseConfig([]byte("vus: 1\niterations: 1\noptions:\n  networkErrors: retry\n  retryLimit: 0\nscenario:\n  - url: http://a\n"), "c.yaml")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	ApplyDefaults(cfg)

	if cfg.Options.RetryLimit == nil || *cfg.Options.RetryLimit != 0 {
		t.Errorf("RetryLimit = %v, want explicit 0 kept", cfg.Options.RetryLimit)
	}
}

func TestResolveVariables(t *testing.T) {
	vars := map[string]string{"baseUrl": "http://localhost:8080", "guild": "42"}

	got := ResolveVariables("{{baseUrl}}/guilds/{{guild}}/{{unknown}}", vars)
	want := "http://localhost:8080/guilds/42/{{unknown}}"
	if got != want {
		t.Errorf("ResolveVariables() = %q, want %q", got, want)
	}
}

func TestMergeHeaders(t *testing.T) {
	got := MergeHeaders(
		map[string]string{"Accept": "*/*", "Authorization": "a"},
		map[string]string{"Authorization": "b"},
	)
	if got["Accept"] != "*/*" || got["Authorization"] != "b" {
		t.Errorf("MergeHeaders() = %v", got)
	}
}
