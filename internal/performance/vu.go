package performance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/runner/internal/performance/metrics"
)

// virtualUser is one simulated client. It runs scenario iterations
// sequentially until the budget is exhausted or the run is stopped.
type virtualUser struct {
	id     int
	driver *Driver
	client *http.Client
	logger *logrus.Entry

	// iteration counts iterations started by this VU, retries included
	iteration int64
}

// iterationOutcome describes how one pass through the scenario ended.
type iterationOutcome struct {
	networkError bool
	interrupted  bool
}

// run loops claim -> execute -> account until the budget or the stop signal
// ends it. reqCtx is only cancelled after the graceful stop period.
func (vu *virtualUser) run(reqCtx context.Context, stop <-chan struct{}) {
	d := vu.driver
	retries := 0

	for {
		if isStopped(stop) {
			return
		}
		if err := d.budget.Claim(); err != nil {
			vu.logger.Debug("budget exhausted")
			return
		}

		vu.iteration++
		outcome := vu.runIteration(reqCtx, stop)

		switch {
		case outcome.interrupted:
			d.budget.Release()
			return
		case outcome.networkError && d.config.NetworkErrors == RetryOnNetworkError && retries < d.config.RetryLimit:
			retries++
			d.retries.Add(1)
			d.budget.Release()
			vu.logger.WithField("attempt", retries).Debug("retrying iteration after network error")
		default:
			retries = 0
			d.budget.Complete()
		}
	}
}

// runIteration executes every step once, in order. The stop signal is only
// honoured between steps.
func (vu *virtualUser) runIteration(reqCtx context.Context, stop <-chan struct{}) iterationOutcome {
	var outcome iterationOutcome
	steps := vu.driver.config.Steps

	for i := range steps {
		if isStopped(stop) {
			outcome.interrupted = true
			return outcome
		}

		step := &steps[i]
		result := vu.execute(reqCtx, i, step)
		if result.Outcome() == metrics.OutcomeNetworkError {
			outcome.networkError = true
			vu.logger.WithError(result.Err).WithField("step", step.Name).Debug("network error")
		}
		vu.driver.record(result)

		if step.ThinkTime > 0 {
			if !sleep(step.ThinkTime, stop) && i < len(steps)-1 {
				outcome.interrupted = true
				return outcome
			}
		}
	}
	return outcome
}

// execute sends one request and classifies the response.
func (vu *virtualUser) execute(reqCtx context.Context, index int, step *Step) metrics.RequestResult {
	result := metrics.RequestResult{
		StepIndex: index,
		StepName:  step.Name,
		VUID:      vu.id,
		Iteration: vu.iteration,
		Timestamp: time.Now(),
	}

	ctx := reqCtx
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(reqCtx, step.Timeout)
		defer cancel()
	}

	req, err := vu.buildRequest(ctx, step)
	if err != nil {
		result.Err = &NetworkError{Step: index, Op: "build request", Err: err}
		return result
	}

	start := time.Now()
	resp, err := vu.client.Do(req)
	if err != nil {
		result.Latency = time.Since(start)
		result.Err = &NetworkError{Step: index, Op: "send", Err: err}
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode

	var body []byte
	if step.needsBody() {
		body, err = io.ReadAll(resp.Body)
		result.BytesReceived = int64(len(body))
	} else {
		result.BytesReceived, err = io.Copy(io.Discard, resp.Body)
	}
	result.Latency = time.Since(start)

	if err != nil {
		result.Err = &NetworkError{Step: index, Op: "read body", Err: err}
		return result
	}

	check := vu.driver.config.Check
	if check == nil {
		check = DefaultCheck
	}
	if !check(resp.StatusCode) {
		result.Err = &CheckFailure{Step: index, Reason: fmt.Sprintf("status %d not accepted", resp.StatusCode)}
		return result
	}

	if len(step.Assertions) > 0 {
		r := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body, Latency: result.Latency}
		for _, a := range step.Assertions {
			if ok, msg := a.Evaluate(r); !ok {
				result.Err = &CheckFailure{Step: index, Reason: msg}
				return result
			}
		}
	}

	result.CheckPassed = true
	return result
}

func (vu *virtualUser) buildRequest(ctx context.Context, step *Step) (*http.Request, error) {
	var body io.Reader
	if step.Body != "" {
		body = strings.NewReader(step.Body)
	}

	req, err := http.NewRequestWithContext(ctx, step.Method, step.URL, body)
	if err != nil {
		return nil, err
	}

	for key, value := range step.Headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("User-Agent") == "" && vu.driver.config.UserAgent != "" {
		req.Header.Set("User-Agent", vu.driver.config.UserAgent)
	}
	return req, nil
}

func isStopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// sleep waits for d or until stop fires. It returns false if interrupted.
func sleep(d time.Duration, stop <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	}
}
