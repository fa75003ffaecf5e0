// Package verdict models per-target verification outcomes and folds them
// into one aggregated decision with a confidence level.
package verdict

import "time"

// FailureKind classifies why a target did not complete a verification.
type FailureKind string

const (
	FailureTimeout      FailureKind = "timeout"
	FailureAgent        FailureKind = "agent"
	FailureDisconnected FailureKind = "disconnected"
	FailureCancelled    FailureKind = "cancelled"
)

// Failure describes an errored participant.
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Reason string      `json:"reason"`
}

// Result is the outcome of running one bug against one target. It is a
// tagged variant: Failure == nil means the target completed and Reproduced is
// meaningful; Failure != nil means it errored and Reproduced is always false.
// Report is the agent's own account of what it observed. Trace is the raw
// agent output kept verbatim, partial for errored runs.
type Result struct {
	TargetID    string        `json:"target_id"`
	TargetLabel string        `json:"target_label,omitempty"`
	Reproduced  bool          `json:"reproduced"`
	Report      string        `json:"report,omitempty"`
	Trace       string        `json:"trace,omitempty"`
	Steps       []string      `json:"steps,omitempty"`
	Failure     *Failure      `json:"failure,omitempty"`
	Duration    time.Duration `json:"duration_ns,omitempty"`
}

// Completed builds a result for a target that ran to completion.
func Completed(targetID string, reproduced bool, report string) Result {
	return Result{TargetID: targetID, Reproduced: reproduced, Report: report}
}

// Errored builds a result for a target that failed to complete.
func Errored(targetID string, kind FailureKind, reason, partialTrace string) Result {
	return Result{
		TargetID: targetID,
		Trace:    partialTrace,
		Failure:  &Failure{Kind: kind, Reason: reason},
	}
}

// Errored reports whether the target failed to complete.
func (r Result) Errored() bool { return r.Failure != nil }

func (r Result) name() string {
	if r.TargetLabel != "" && r.TargetLabel != r.TargetID {
		return r.TargetID + " (" + r.TargetLabel + ")"
	}
	return r.TargetID
}
