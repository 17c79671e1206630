// Package decision implements the verdict→action table and the
// suspicious-debounce policy (spec §4.8, component C8). Every function
// here is pure: no chain, store, or LLM calls happen in this package —
// the orchestrator executes the plan this package produces.
package decision

import "github.com/trustoracle/oracle/pkg/model"

// SlashThreshold is the number of consecutive non-healthy verdicts
// required before a reportSuspicious call fires. Shared, by both the
// orchestrator (via this constant) and pkg/store.IncrementSuspicious, to
// avoid the two copies drifting apart (spec §9(b)).
const SlashThreshold = 6

// CounterAction describes how a verdict affects the per-agent suspicious
// counter.
type CounterAction int

const (
	CounterUnchanged CounterAction = iota
	CounterReset
	CounterIncrement
)

// UpdateHealthArgs returns the (responseTimeMs, success) pair passed to
// HealthMonitor.updateHealth for a given verdict, per spec §4.8's table.
func UpdateHealthArgs(verdict model.Decision, probeSuccess bool, responseTimeMs int64) (ms int64, success bool) {
	switch verdict {
	case model.DecisionHealthy:
		return responseTimeMs, true
	case model.DecisionSuspicious:
		return responseTimeMs, probeSuccess
	default: // critical
		return 0, false
	}
}

// CounterEffect returns how the verdict affects the suspicious counter,
// before the slash-threshold check (which pkg/store.IncrementSuspicious
// performs atomically).
func CounterEffect(verdict model.Decision) CounterAction {
	switch verdict {
	case model.DecisionHealthy:
		return CounterReset
	case model.DecisionSuspicious:
		return CounterIncrement
	default: // critical
		return CounterUnchanged
	}
}

// Reason formats the on-chain reason string: "<reason> [<failureType>]"
// when failureType is not "none", otherwise just "<reason>" (spec §4.8).
func Reason(reason string, failureType model.FailureType) string {
	if failureType == "" || failureType == model.FailureNone {
		return reason
	}
	return reason + " [" + string(failureType) + "]"
}
