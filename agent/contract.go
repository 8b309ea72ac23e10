package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hupe1980/qamesh/core"
)

// ContractOptions configures the contract agent.
type ContractOptions struct {
	// Client fetches the spec document. Defaults to http.DefaultClient.
	Client Doer
	// SpecPaths are tried in order against the base URL until one answers.
	SpecPaths []string
	// CostPerCheck is the accounted cost per endpoint compared.
	CostPerCheck float64
}

// Contract discovers the target's machine-readable API spec and diffs it
// against the endpoints the change declares. Targets without a discoverable
// spec report skipped-not-applicable rather than erroring.
type Contract struct {
	opts ContractOptions
}

// NewContract creates the contract agent.
func NewContract(optFns ...func(o *ContractOptions)) *Contract {
	opts := ContractOptions{
		Client:       http.DefaultClient,
		SpecPaths:    []string{"/openapi.json", "/swagger.json"},
		CostPerCheck: 0.10,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	return &Contract{opts: opts}
}

// Name implements core.Agent.
func (c *Contract) Name() string { return ContractName }

// Estimate forecasts one check per declared endpoint plus spec discovery.
func (c *Contract) Estimate(target core.TargetContext) core.Estimate {
	n := len(target.TargetEndpoints)
	if n == 0 {
		n = 1
	}
	return core.Estimate{CostUSD: c.opts.CostPerCheck * float64(n), Endpoints: 1}
}

// apiSpec is the minimal OpenAPI shape the agent consumes.
type apiSpec struct {
	Paths map[string]json.RawMessage `json:"paths"`
}

// Run implements core.Agent.
func (c *Contract) Run(ctx context.Context, in core.RunInput) (core.Report, error) {
	if in.Target.BaseURL == "" {
		return core.Report{Outcome: core.OutcomeSkipped, Reason: "no base url to discover a spec from"}, nil
	}

	rep := core.Report{Outcome: core.OutcomeSucceeded, Endpoints: 1}

	spec, specURL, err := c.discover(ctx, in.Target.BaseURL, &rep)
	if err != nil {
		return core.Report{CostUSD: rep.CostUSD, Endpoints: rep.Endpoints}, err
	}
	if spec == nil {
		return core.Report{Outcome: core.OutcomeSkipped, Reason: "no discoverable API spec", CostUSD: rep.CostUSD}, nil
	}

	for _, ep := range in.Target.TargetEndpoints {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.CostUSD += c.opts.CostPerCheck
		if _, declared := spec.Paths[ep]; !declared {
			rep.Findings = append(rep.Findings, core.Finding{
				Severity:   core.SeverityMedium,
				Title:      fmt.Sprintf("endpoint %s missing from API spec", ep),
				Evidence:   fmt.Sprintf("%s declares %d paths; %s is not among them", specURL, len(spec.Paths), ep),
				Subject:    ep,
				Confidence: 0.8,
				Agent:      ContractName,
				Timestamp:  time.Now().UTC(),
			})
		}
	}
	return rep, nil
}

// discover tries the configured spec paths. A 404 tries the next path; a
// 5xx or 429 answer propagates for retry; an unparsable document is a fatal
// validation failure. (nil, "", nil) means no spec was found anywhere.
func (c *Contract) discover(ctx context.Context, baseURL string, rep *core.Report) (*apiSpec, string, error) {
	for _, path := range c.opts.SpecPaths {
		url := baseURL + path
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, "", err
		}
		rep.CostUSD += c.opts.CostPerCheck
		resp, err := c.opts.Client.Do(req)
		if err != nil {
			return nil, "", err
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			var spec apiSpec
			if err := json.NewDecoder(resp.Body).Decode(&spec); err != nil {
				resp.Body.Close()
				return nil, "", fmt.Errorf("invalid API spec at %s: %w", url, err)
			}
			resp.Body.Close()
			return &spec, url, nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			return nil, "", &core.StatusError{Code: resp.StatusCode, URL: url}
		default:
			resp.Body.Close()
		}
	}
	return nil, "", nil
}
