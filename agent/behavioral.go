package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/qamesh/core"
	"github.com/hupe1980/qamesh/triage"
)

// Doer is the minimal HTTP client capability agents consume. *http.Client
// satisfies it; tests inject fakes.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// BehavioralOptions configures the behavioral agent.
type BehavioralOptions struct {
	// Client sends the probes. Defaults to http.DefaultClient.
	Client Doer
	// CostPerProbe is the accounted cost of one HTTP probe in USD.
	CostPerProbe float64
	// HealthPath is probed first to establish the target is reachable.
	HealthPath string
	// SlowThreshold flags endpoints slower than this as findings.
	SlowThreshold time.Duration
	// Triage optionally refines finding severity/confidence. Nil keeps the
	// agent's heuristic scores.
	Triage triage.Model
}

// Behavioral probes the running target over HTTP: a health check, a GET per
// declared endpoint, and (at deep depth, behind the safety gate) a mutating
// probe per endpoint.
type Behavioral struct {
	opts BehavioralOptions
}

// NewBehavioral creates the behavioral agent.
func NewBehavioral(optFns ...func(o *BehavioralOptions)) *Behavioral {
	opts := BehavioralOptions{
		Client:        http.DefaultClient,
		CostPerProbe:  0.05,
		HealthPath:    "/health",
		SlowThreshold: 2 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	return &Behavioral{opts: opts}
}

// Name implements core.Agent.
func (b *Behavioral) Name() string { return BehavioralName }

// Estimate forecasts one probe per declared endpoint plus the health check.
func (b *Behavioral) Estimate(target core.TargetContext) core.Estimate {
	n := len(target.TargetEndpoints) + 1
	return core.Estimate{CostUSD: b.opts.CostPerProbe * float64(n), Endpoints: n}
}

// Run implements core.Agent. Health-check failures propagate as errors so
// the resilience controller owns the retries; individual endpoint anomalies
// become findings instead of failing the run.
func (b *Behavioral) Run(ctx context.Context, in core.RunInput) (core.Report, error) {
	if in.Target.BaseURL == "" {
		return core.Report{Outcome: core.OutcomeSkipped, Reason: "no base url to probe"}, nil
	}

	rep := core.Report{Outcome: core.OutcomeSucceeded}

	if err := b.healthCheck(ctx, in.Target.BaseURL, &rep); err != nil {
		return core.Report{CostUSD: rep.CostUSD, Endpoints: rep.Endpoints}, err
	}

	for _, ep := range in.Target.TargetEndpoints {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := b.probe(ctx, in.Target.BaseURL, ep, &rep); err != nil {
			return rep, err
		}
	}

	if in.Depth == core.DepthDeep {
		b.mutatingProbes(ctx, in, &rep)
	}

	b.refine(ctx, rep.Findings)
	return rep, nil
}

// healthCheck verifies the target answers at all. A connection-level or
// 5xx-class failure is returned as an error (transient per the default
// classifier); a missing health endpoint falls back to probing the base URL.
func (b *Behavioral) healthCheck(ctx context.Context, baseURL string, rep *core.Report) error {
	status, _, _, err := b.get(ctx, baseURL+b.opts.HealthPath, rep)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		status, _, _, err = b.get(ctx, baseURL, rep)
		if err != nil {
			return err
		}
	}
	if status >= 500 {
		return &core.StatusError{Code: status, URL: baseURL}
	}
	return nil
}

// probe issues a GET against one endpoint and records anomalies as findings.
// A GET aborted by the session shutting down is not evidence about the
// endpoint, so cancellation propagates instead of producing a finding.
func (b *Behavioral) probe(ctx context.Context, baseURL, endpoint string, rep *core.Report) error {
	start := time.Now()
	status, body, u, err := b.get(ctx, baseURL+endpoint, rep)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		rep.Findings = append(rep.Findings, core.Finding{
			Severity:   core.SeverityHigh,
			Title:      fmt.Sprintf("endpoint %s unreachable", endpoint),
			Evidence:   err.Error(),
			Subject:    endpoint,
			Confidence: 0.9,
			Agent:      BehavioralName,
			Timestamp:  time.Now().UTC(),
		})
		return nil
	}

	switch {
	case status >= 500:
		rep.Findings = append(rep.Findings, core.Finding{
			Severity:   core.SeverityHigh,
			Title:      fmt.Sprintf("endpoint %s returned %d", endpoint, status),
			Evidence:   fmt.Sprintf("GET %s → %d\n%s", u, status, body),
			Subject:    endpoint,
			Confidence: 0.95,
			Agent:      BehavioralName,
			Timestamp:  time.Now().UTC(),
		})
	case status >= 400:
		rep.Findings = append(rep.Findings, core.Finding{
			Severity:   core.SeverityMedium,
			Title:      fmt.Sprintf("endpoint %s returned %d", endpoint, status),
			Evidence:   fmt.Sprintf("GET %s → %d\n%s", u, status, body),
			Subject:    endpoint,
			Confidence: 0.7,
			Agent:      BehavioralName,
			Timestamp:  time.Now().UTC(),
		})
	case elapsed > b.opts.SlowThreshold:
		rep.Findings = append(rep.Findings, core.Finding{
			Severity:   core.SeverityLow,
			Title:      fmt.Sprintf("endpoint %s responded slowly", endpoint),
			Evidence:   fmt.Sprintf("GET %s took %s (threshold %s)", u, elapsed, b.opts.SlowThreshold),
			Subject:    endpoint,
			Confidence: 0.5,
			Agent:      BehavioralName,
			Timestamp:  time.Now().UTC(),
		})
	}
	return nil
}

// mutatingProbes sends a write probe per endpoint at deep depth. The safety
// gate is consulted immediately before each mutating call, not at session
// start, since the environment assessment can change.
func (b *Behavioral) mutatingProbes(ctx context.Context, in core.RunInput, rep *core.Report) {
	for _, ep := range in.Target.TargetEndpoints {
		if ctx.Err() != nil {
			return
		}
		if !in.Safety.PermitsMutation() {
			rep.Skips = append(rep.Skips, core.SafetySkip("mutating-probe", BehavioralName))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, in.Target.BaseURL+ep, strings.NewReader("{}"))
		if err != nil {
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		rep.CostUSD += b.opts.CostPerProbe
		resp, err := b.opts.Client.Do(req)
		if err != nil {
			continue
		}
		body := readBody(resp)
		if resp.StatusCode >= 500 {
			rep.Findings = append(rep.Findings, core.Finding{
				Severity:   core.SeverityHigh,
				Title:      fmt.Sprintf("write to %s returned %d", ep, resp.StatusCode),
				Evidence:   fmt.Sprintf("POST %s → %d\n%s", in.Target.BaseURL+ep, resp.StatusCode, body),
				Subject:    ep,
				Confidence: 0.85,
				Agent:      BehavioralName,
				Timestamp:  time.Now().UTC(),
			})
		}
	}
}

// get performs one accounted GET and returns status, a truncated body and
// the probed URL.
func (b *Behavioral) get(ctx context.Context, url string, rep *core.Report) (int, string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", url, err
	}
	rep.CostUSD += b.opts.CostPerProbe
	rep.Endpoints++
	resp, err := b.opts.Client.Do(req)
	if err != nil {
		return 0, "", url, err
	}
	return resp.StatusCode, readBody(resp), url, nil
}

// refine runs configured triage over findings, keeping heuristic scores on
// any triage failure.
func (b *Behavioral) refine(ctx context.Context, findings []core.Finding) {
	if b.opts.Triage == nil {
		return
	}
	for i := range findings {
		a, err := b.opts.Triage.Assess(ctx, triage.Evidence{
			Agent:   BehavioralName,
			Title:   findings[i].Title,
			Payload: findings[i].Evidence,
		})
		if err != nil {
			continue
		}
		findings[i].Severity = a.Severity
		findings[i].Confidence = a.Confidence
	}
}

const maxBodySample = 2048

func readBody(resp *http.Response) string {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySample))
	if err != nil {
		return ""
	}
	return string(data)
}
