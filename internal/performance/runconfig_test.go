package performance

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/runner/internal/performance/config"
)

const gatewayYAML = `
name: gateway smoke
vus: 50
iterations: 50
variables:
  baseUrl: "${BASE_URL:-http://localhost:8080/api/v9}"
headers:
  Authorization: "${TOKEN}"
options:
  noConnectionReuse: true
  timeout: 10s
check:
  minStatus: 200
  maxStatus: 300
thresholds:
  maxFailRate: 0.05
  http_req_duration: ["p95 < 500ms"]
scenario:
  - name: gateway
    url: "{{baseUrl}}/gateway"
  - name: gateway bot
    url: "{{baseUrl}}/gateway/bot"
    thinkTime: 100ms
    headers:
      X-Request: "bot"
  - url: "{{baseUrl}}/users/@me"
    method: post
    body: '{"token":"${TOKEN}"}'
    timeout: 2s
    assertions:
      - type: jsonpath
        path: "$.id"
        condition: exists
`

func lookupFrom(env map[string]string) config.LookupFunc {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func parseGateway(t *testing.T) *config.TestConfig {
	t.Helper()
	cfg, err := config.ParseConfig([]byte(gatewayYAML), "gateway.yaml")
	require.NoError(t, err)
	return cfg
}

func TestFromConfig(t *testing.T) {
	rc, err := FromConfig(parseGateway(t), lookupFrom(map[string]string{"TOKEN": "Bot s3cret"}))
	require.NoError(t, err)

	assert.Equal(t, "gateway smoke", rc.Name)
	assert.Equal(t, 50, rc.VUs)
	assert.Equal(t, int64(50), rc.Iterations)
	assert.Zero(t, rc.Duration)
	assert.Equal(t, ConsumeOnNetworkError, rc.NetworkErrors)
	assert.Equal(t, config.DefaultRetryLimit, rc.RetryLimit)
	assert.Equal(t, config.DefaultGracefulStop, rc.GracefulStop)

	assert.True(t, rc.HTTP.DisableKeepAlives)
	assert.Equal(t, 10*time.Second, rc.HTTP.Timeout)
	assert.Equal(t, config.DefaultUserAgent, rc.UserAgent)

	require.Len(t, rc.Steps, 3)

	s0 := rc.Steps[0]
	assert.Equal(t, "gateway", s0.Name)
	assert.Equal(t, http.MethodGet, s0.Method)
	assert.Equal(t, "http://localhost:8080/api/v9/gateway", s0.URL)
	assert.Equal(t, "Bot s3cret", s0.Headers["Authorization"])

	s1 := rc.Steps[1]
	assert.Equal(t, "bot", s1.Headers["X-Request"])
	assert.Equal(t, "Bot s3cret", s1.Headers["Authorization"])
	assert.Equal(t, 100*time.Millisecond, s1.ThinkTime)

	s2 := rc.Steps[2]
	assert.Equal(t, "step_3", s2.Name)
	assert.Equal(t, http.MethodPost, s2.Method)
	assert.Equal(t, `{"token":"Bot s3cret"}`, s2.Body)
	assert.Equal(t, 2*time.Second, s2.Timeout)
	require.Len(t, s2.Assertions, 1)
	assert.True(t, s2.needsBody())

	// Custom check range [200, 300).
	assert.True(t, rc.Check(204))
	assert.False(t, rc.Check(302))

	require.NotNil(t, rc.Thresholds.MaxFailRate)
	assert.Equal(t, 0.05, *rc.Thresholds.MaxFailRate)
	assert.Equal(t, []string{"p95 < 500ms"}, rc.Thresholds.Duration)
}

func TestFromConfig_RetryLimitZero(t *testing.T) {
	cfg := parseGateway(t)
	limit := 0
	cfg.Options.NetworkErrors = config.NetworkErrorsRetry
	cfg.Options.RetryLimit = &limit

	rc, err := FromConfig(cfg, lookupFrom(map[string]string{"TOKEN": "t"}))
	require.NoError(t, err)
	assert.Equal(t, RetryOnNetworkError, rc.NetworkErrors)
	assert.Equal(t, 0, rc.RetryLimit)
}

func TestFromConfig_EnvOverridesDefault(t *testing.T) {
	rc, err := FromConfig(parseGateway(t), lookupFrom(map[string]string{
		"TOKEN":    "t",
		"BASE_URL": "https://discord.example/api/v10",
	}))
	require.NoError(t, err)
	assert.Equal(t, "https://discord.example/api/v10/gateway", rc.Steps[0].URL)
}

func TestFromConfig_MissingEnv(t *testing.T) {
	_, err := FromConfig(parseGateway(t), lookupFrom(nil))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "TOKEN")
}

func TestFromConfig_DefaultCheck(t *testing.T) {
	cfg := parseGateway(t)
	cfg.Check = nil

	rc, err := FromConfig(cfg, lookupFrom(map[string]string{"TOKEN": "x"}))
	require.NoError(t, err)
	assert.True(t, rc.Check(302))
	assert.False(t, rc.Check(400))
}

func TestFromConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.TestConfig)
	}{
		{"no vus", func(c *config.TestConfig) { c.VUs = 0 }},
		{"bad policy", func(c *config.TestConfig) { c.Options.NetworkErrors = "skip" }},
		{"unknown variable", func(c *config.TestConfig) { c.Scenario[0].URL = "{{host}}/gateway" }},
		{"relative url", func(c *config.TestConfig) { c.Scenario[0].URL = "/gateway" }},
		{"bad assertion", func(c *config.TestConfig) {
			c.Scenario[0].Assertions = []config.AssertionConfig{{Type: "header", Condition: "exists", Path: "X", Value: "perhaps"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := parseGateway(t)
			tt.mutate(cfg)

			_, err := FromConfig(cfg, lookupFrom(map[string]string{"TOKEN": "x"}))
			require.Error(t, err)
			assert.True(t, IsConfigError(err), "want ConfigError, got %T", err)
		})
	}
}

func TestRunConfig_PerVUClient(t *testing.T) {
	cfg := newRunConfig(2, 1, "http://localhost")
	cfg.HTTP.PerVU = true

	d, err := NewDriver(cfg)
	require.NoError(t, err)
	assert.NotSame(t, d.clientFor(), d.clientFor())

	cfg.HTTP.PerVU = false
	d, err = NewDriver(cfg)
	require.NoError(t, err)
	assert.Same(t, d.clientFor(), d.clientFor())
}
