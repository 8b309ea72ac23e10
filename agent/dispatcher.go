package agent

import (
	"fmt"

	"github.com/hupe1980/qamesh/core"
)

// Agent names used in the default dispatch table.
const (
	BehavioralName = "behavioral"
	ContractName   = "contract"
	RegressionName = "regression"
)

// defaultTable maps each depth to the agent subset it dispatches. Shallow
// runs the cheapest probe only; standard and deep run the full set (deep
// additionally unlocks mutating probes inside the behavioral agent);
// regression depth runs the regression agent plus any agent whose prior
// finding overlaps the change.
var defaultTable = map[core.Depth][]string{
	core.DepthShallow:    {BehavioralName},
	core.DepthStandard:   {BehavioralName, ContractName, RegressionName},
	core.DepthDeep:       {BehavioralName, ContractName, RegressionName},
	core.DepthRegression: {RegressionName},
}

// DispatcherOptions configures the dispatcher.
type DispatcherOptions struct {
	// Table overrides the depth → agent-name mapping.
	Table map[core.Depth][]string
}

// Dispatcher selects agents for a session. It implements core.Selector.
type Dispatcher struct {
	agents map[string]core.Agent
	order  []string
	table  map[core.Depth][]string
}

// NewDispatcher builds a dispatcher over the given agents. Registration
// order is preserved for deterministic selection output.
func NewDispatcher(agents []core.Agent, optFns ...func(o *DispatcherOptions)) *Dispatcher {
	opts := DispatcherOptions{Table: defaultTable}
	for _, fn := range optFns {
		fn(&opts)
	}

	d := &Dispatcher{agents: make(map[string]core.Agent, len(agents)), table: opts.Table}
	for _, a := range agents {
		if _, dup := d.agents[a.Name()]; dup {
			continue
		}
		d.agents[a.Name()] = a
		d.order = append(d.order, a.Name())
	}
	return d
}

// Select returns the agent subset for the depth, in registration order. At
// regression depth, agents beyond the regression agent itself are included
// when one of their prior findings overlaps the target's files or endpoints.
func (d *Dispatcher) Select(depth core.Depth, target core.TargetContext, prior []core.Finding) ([]core.Agent, error) {
	names, ok := d.table[depth]
	if !ok {
		return nil, fmt.Errorf("%w: no dispatch entry for depth %q", core.ErrConfig, depth)
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	if depth == core.DepthRegression {
		for _, f := range prior {
			if f.Agent != "" && overlaps(f, target) {
				want[f.Agent] = true
			}
		}
	}

	var selected []core.Agent
	for _, name := range d.order {
		if want[name] {
			selected = append(selected, d.agents[name])
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no registered agent matches depth %q", core.ErrConfig, depth)
	}
	return selected, nil
}

// overlaps reports whether a prior finding refers to something the current
// change touches.
func overlaps(f core.Finding, target core.TargetContext) bool {
	if f.Subject == "" {
		return false
	}
	return target.HasFile(f.Subject) || target.HasEndpoint(f.Subject)
}
