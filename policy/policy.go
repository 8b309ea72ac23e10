// Package policy implements the depth selector: a pure mapping from trigger,
// target context and recent session history to a test depth. It performs no
// I/O and consults no agent state, so it can be exercised in isolation.
package policy

import "github.com/hupe1980/qamesh/core"

// HistoryEntry is the slice of a past session the selector may consult.
type HistoryEntry struct {
	FeatureID string
	Status    core.Status
	Depth     core.Depth
}

// triggerDefaults is the priority table's middle tier: the depth a trigger
// implies when the context carries no override.
var triggerDefaults = map[core.Trigger]core.Depth{
	core.TriggerUserCommand:     core.DepthStandard,
	core.TriggerScheduledHealth: core.DepthShallow,
	core.TriggerSpecCompliance:  core.DepthDeep,
	core.TriggerPipeline:        core.DepthStandard,
}

// escalationThreshold is the number of recent non-completed runs for the
// same feature after which the selector escalates to deep.
const escalationThreshold = 2

// Select returns the depth for a session. Deterministic: identical inputs
// always yield identical output. Precedence: explicit override in the
// context, then repeated-failure escalation, then the trigger default, then
// standard as the fallback.
func Select(trigger core.Trigger, target core.TargetContext, history []HistoryEntry) core.Depth {
	if target.DepthOverride != "" {
		return target.DepthOverride
	}
	if failures(target.FeatureID, history) >= escalationThreshold {
		return core.DepthDeep
	}
	if d, ok := triggerDefaults[trigger]; ok {
		return d
	}
	return core.DepthStandard
}

func failures(featureID string, history []HistoryEntry) int {
	n := 0
	for _, h := range history {
		if h.FeatureID != featureID {
			continue
		}
		if h.Status == core.StatusFailed || h.Status == core.StatusCompletedPartial {
			n++
		}
	}
	return n
}
