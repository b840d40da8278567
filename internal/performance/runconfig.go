package performance

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wesleyorama2/runner/internal/performance/config"
	"github.com/wesleyorama2/runner/internal/performance/metrics"
)

// NetworkErrorPolicy decides what happens to an iteration that hit a
// network error.
type NetworkErrorPolicy string

const (
	// ConsumeOnNetworkError counts the iteration against the budget anyway.
	ConsumeOnNetworkError NetworkErrorPolicy = config.NetworkErrorsConsume

	// RetryOnNetworkError hands the slot back so the iteration is run again,
	// up to RunConfig.RetryLimit consecutive times per VU.
	RetryOnNetworkError NetworkErrorPolicy = config.NetworkErrorsRetry
)

// Step is a fully resolved scenario step. It is shared read-only by all VUs.
type Step struct {
	Name       string
	Method     string
	URL        string
	Headers    map[string]string
	Body       string
	Timeout    time.Duration
	ThinkTime  time.Duration
	Assertions []Assertion
}

func (s *Step) needsBody() bool {
	for _, a := range s.Assertions {
		if a.NeedsBody() {
			return true
		}
	}
	return false
}

// RunConfig is everything the Driver needs to execute a run.
type RunConfig struct {
	Name string

	// VUs is the number of concurrent virtual users.
	VUs int

	// Iterations is the shared iteration budget; zero means unbounded.
	Iterations int64

	// Duration stops the run after this long; zero means no time limit.
	Duration time.Duration

	// GracefulStop bounds in-flight requests after a stop signal; zero waits
	// for the client timeout.
	GracefulStop time.Duration

	Steps []Step

	// Check classifies response statuses; nil means DefaultCheck.
	Check CheckFunc

	NetworkErrors NetworkErrorPolicy
	RetryLimit    int

	HTTP      HTTPClientConfig
	UserAgent string

	Thresholds metrics.Thresholds
}

// Validate reports structural problems with a programmatically built config.
func (c *RunConfig) Validate() error {
	var errs []error
	if c.VUs <= 0 {
		errs = append(errs, fmt.Errorf("vus must be greater than 0"))
	}
	if c.Iterations < 0 {
		errs = append(errs, fmt.Errorf("iterations cannot be negative"))
	}
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration cannot be negative"))
	}
	if c.Iterations == 0 && c.Duration == 0 {
		errs = append(errs, fmt.Errorf("an iteration budget or a duration is required"))
	}
	if len(c.Steps) == 0 {
		errs = append(errs, fmt.Errorf("scenario has no steps"))
	}
	for i, step := range c.Steps {
		if step.Method == "" {
			errs = append(errs, fmt.Errorf("step %d: method is required", i))
		}
		u, err := url.Parse(step.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("step %d: invalid URL %q: %w", i, step.URL, err))
			continue
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("step %d: URL %q must be absolute http(s)", i, step.URL))
		}
	}
	switch c.NetworkErrors {
	case "", ConsumeOnNetworkError, RetryOnNetworkError:
	default:
		errs = append(errs, fmt.Errorf("unknown network error policy %q", c.NetworkErrors))
	}
	if c.RetryLimit < 0 {
		errs = append(errs, fmt.Errorf("retry limit cannot be negative"))
	}

	if len(errs) > 0 {
		return &ConfigError{Err: errors.Join(errs...)}
	}
	return nil
}

// FromConfig resolves a parsed test file into a RunConfig.
//
// Defaults are applied, environment references are interpolated with lookup
// (os.LookupEnv when nil), the result is validated and {{var}} placeholders
// are substituted. Every failure is returned as a *ConfigError.
func FromConfig(cfg *config.TestConfig, lookup config.LookupFunc) (*RunConfig, error) {
	config.ApplyDefaults(cfg)

	if err := config.InterpolateEnv(cfg, lookup); err != nil {
		return nil, &ConfigError{Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Err: err}
	}

	// Validated above, so parse errors cannot occur.
	duration, _ := config.ParseDurationString(cfg.Duration)
	timeout, _ := config.ParseDurationString(cfg.Options.Timeout)
	gracefulStop, _ := config.ParseDurationString(cfg.Options.GracefulStop)

	httpCfg := DefaultHTTPClientConfig()
	httpCfg.Timeout = timeout
	httpCfg.MaxIdleConnsPerHost = cfg.Options.MaxIdleConnsPerHost
	httpCfg.DisableKeepAlives = cfg.Options.NoConnectionReuse
	httpCfg.InsecureSkipVerify = cfg.Options.InsecureSkipVerify
	httpCfg.PerVU = cfg.Options.PerVUClient

	rc := &RunConfig{
		Name:          cfg.Name,
		VUs:           cfg.VUs,
		Iterations:    cfg.Iterations,
		Duration:      duration,
		GracefulStop:  gracefulStop,
		Check:         DefaultCheck,
		NetworkErrors: NetworkErrorPolicy(cfg.Options.NetworkErrors),
		RetryLimit:    config.DefaultRetryLimit,
		HTTP:          httpCfg,
		UserAgent:     cfg.Options.UserAgent,
	}

	if cfg.Options.RetryLimit != nil {
		rc.RetryLimit = *cfg.Options.RetryLimit
	}

	if cfg.Check != nil {
		rc.Check = StatusRange(cfg.Check.MinStatus, cfg.Check.MaxStatus)
	}

	if t := cfg.Thresholds; t != nil {
		rc.Thresholds = metrics.Thresholds{
			MaxFailRate: t.MaxFailRate,
			Duration:    t.HTTPReqDuration,
			Failed:      t.HTTPReqFailed,
			Requests:    t.HTTPReqs,
		}
	}

	for i, sc := range cfg.Scenario {
		step, err := resolveStep(cfg, &sc)
		if err != nil {
			return nil, &ConfigError{Err: fmt.Errorf("scenario[%d]: %w", i, err)}
		}
		rc.Steps = append(rc.Steps, step)
	}

	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return rc, nil
}

func resolveStep(cfg *config.TestConfig, sc *config.StepConfig) (Step, error) {
	vars := cfg.Variables

	step := Step{
		Name:    sc.Name,
		Method:  strings.ToUpper(sc.Method),
		URL:     config.ResolveVariables(sc.URL, vars),
		Body:    config.ResolveVariables(sc.Body, vars),
		Headers: config.MergeHeaders(cfg.Headers, sc.Headers),
	}
	for k, v := range step.Headers {
		step.Headers[k] = config.ResolveVariables(v, vars)
	}

	if strings.Contains(step.URL, "{{") {
		return Step{}, fmt.Errorf("unresolved variable in url %q", step.URL)
	}

	step.Timeout, _ = config.ParseDurationString(sc.Timeout)
	step.ThinkTime, _ = config.ParseDurationString(sc.ThinkTime)

	for j, ac := range sc.Assertions {
		a, err := CompileAssertion(ac)
		if err != nil {
			return Step{}, fmt.Errorf("assertions[%d]: %w", j, err)
		}
		step.Assertions = append(step.Assertions, a)
	}
	return step, nil
}
