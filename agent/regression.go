package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/qamesh/core"
)

// RegressionOptions configures the regression agent.
type RegressionOptions struct {
	// Provider supplies the diff for the target's revision range.
	Provider core.DiffProvider
	// CostPerFile is the accounted cost per analyzed file.
	CostPerFile float64
	// LargeChangeLines is the added-line count above which an untested
	// change is flagged.
	LargeChangeLines int
}

// Regression analyzes the VCS diff of the change for regression risk:
// deleted files still referenced by the context, large changes without
// accompanying tests, and risky constructs in added lines. The analysis is
// deterministic, so re-running it against an unchanged diff produces the
// same findings.
type Regression struct {
	opts RegressionOptions
}

// NewRegression creates the regression agent.
func NewRegression(provider core.DiffProvider, optFns ...func(o *RegressionOptions)) *Regression {
	opts := RegressionOptions{
		Provider:         provider,
		CostPerFile:      0.02,
		LargeChangeLines: 200,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Regression{opts: opts}
}

// Name implements core.Agent.
func (r *Regression) Name() string { return RegressionName }

// Estimate forecasts cost proportional to the declared target files.
func (r *Regression) Estimate(target core.TargetContext) core.Estimate {
	n := len(target.TargetFiles)
	if n == 0 {
		n = 1
	}
	return core.Estimate{CostUSD: r.opts.CostPerFile * float64(n)}
}

// Run implements core.Agent. An empty diff (non-repo, detached state, no
// change) succeeds with no findings.
func (r *Regression) Run(ctx context.Context, in core.RunInput) (core.Report, error) {
	if r.opts.Provider == nil {
		return core.Report{Outcome: core.OutcomeSkipped, Reason: "no diff provider configured"}, nil
	}

	changes, err := r.opts.Provider.Diff(ctx, in.Target.DiffRange)
	if err != nil {
		return core.Report{}, err
	}

	rep := core.Report{
		Outcome: core.OutcomeSucceeded,
		CostUSD: r.opts.CostPerFile * float64(len(changes)),
	}

	testTouched := false
	for _, fc := range changes {
		if strings.HasSuffix(fc.Path, "_test.go") || strings.Contains(fc.Path, "/test") {
			testTouched = true
		}
	}

	now := time.Now().UTC()
	for _, fc := range changes {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if fc.IsDeleted && in.Target.HasFile(fc.Path) {
			rep.Findings = append(rep.Findings, core.Finding{
				Severity:   core.SeverityHigh,
				Title:      fmt.Sprintf("target file %s was deleted", fc.Path),
				Evidence:   fmt.Sprintf("%s removed (%d lines) while still listed as a target of the change", fc.Path, fc.Deleted),
				Subject:    fc.Path,
				Confidence: 0.9,
				Agent:      RegressionName,
				Timestamp:  now,
			})
		}
		if !testTouched && fc.Added > r.opts.LargeChangeLines {
			rep.Findings = append(rep.Findings, core.Finding{
				Severity:   core.SeverityMedium,
				Title:      fmt.Sprintf("large change to %s without test changes", fc.Path),
				Evidence:   fmt.Sprintf("%d lines added, %d deleted; no test files appear in the diff", fc.Added, fc.Deleted),
				Subject:    fc.Path,
				Confidence: 0.6,
				Agent:      RegressionName,
				Timestamp:  now,
			})
		}
		if finding, ok := riskyAddition(fc, now); ok {
			rep.Findings = append(rep.Findings, finding)
		}
	}
	return rep, nil
}

// riskyPatterns are constructs in added lines worth surfacing. Matching is
// substring-based over added lines only.
var riskyPatterns = []string{"panic(", "os.Exit(", "DROP TABLE", "TODO", "FIXME"}

// riskyAddition scans the added lines of a change for risky constructs and
// returns at most one finding per file.
func riskyAddition(fc core.FileChange, now time.Time) (core.Finding, bool) {
	for _, hunk := range fc.Hunks {
		for _, line := range strings.Split(hunk, "\n") {
			if !strings.HasPrefix(line, "+") {
				continue
			}
			for _, pat := range riskyPatterns {
				if strings.Contains(line, pat) {
					severity := core.SeverityMedium
					confidence := 0.55
					if pat == "TODO" || pat == "FIXME" {
						severity = core.SeverityLow
						confidence = 0.4
					}
					return core.Finding{
						Severity:   severity,
						Title:      fmt.Sprintf("added line in %s contains %q", fc.Path, pat),
						Evidence:   strings.TrimSpace(line),
						Subject:    fc.Path,
						Confidence: confidence,
						Agent:      RegressionName,
						Timestamp:  now,
					}, true
				}
			}
		}
	}
	return core.Finding{}, false
}
