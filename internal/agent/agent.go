// Package agent is the boundary to the device-automation agents that drive a
// UI and decide whether a bug reproduces on one target. Transports differ
// (an agent pulling work over MCP, a command spawned per target); all of
// them satisfy Executor.
package agent

import (
	"context"
	"fmt"
	"strings"
)

// Task is one bug-on-one-target verification request.
type Task struct {
	DispatchID  int64  `json:"dispatch_id,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	BugID       string `json:"bug_id"`
	AppName     string `json:"app_name"`
	Package     string `json:"app_package"`
	Description string `json:"bug"`
	TargetID    string `json:"target_id"`
	Goal        string `json:"goal"`
}

// Outcome is what an agent reports for a completed task.
type Outcome struct {
	Reproduced   bool     `json:"bug_reproduced"`
	Observations string   `json:"observations"`
	Steps        []string `json:"steps_executed,omitempty"`
	// Raw is the agent's unparsed output, when the transport has one.
	Raw string `json:"-"`
}

// Executor runs a task on its target and blocks until the agent reports or
// ctx is done.
type Executor interface {
	Execute(ctx context.Context, task Task) (Outcome, error)
}

// Error is an agent-side failure. Partial carries whatever trace the agent
// produced before failing.
type Error struct {
	Reason  string
	Partial string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent failure: %s: %v", e.Reason, e.Err)
	}
	return "agent failure: " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Goal renders the instruction handed to the automation agent.
func Goal(appName, pkg, description string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Attempt to reproduce this bug in %s (%s):\n\n", appName, pkg)
	fmt.Fprintf(&b, "BUG: %s\n\n", strings.TrimSpace(description))
	b.WriteString("INSTRUCTIONS:\n")
	fmt.Fprintf(&b, "1. Open the app %s\n", pkg)
	b.WriteString("2. Try to reproduce the reported bug\n")
	b.WriteString("3. Observe the app's behavior carefully\n")
	b.WriteString("4. Report whether you observed crashes, freezes, UI glitches, or errors\n")
	b.WriteString("5. If the bug occurs, describe exactly what you saw\n")
	b.WriteString("6. If the app behaves normally, report that the bug was not reproduced\n")
	b.WriteString("7. Do not perform actions unrelated to verifying this bug, such as file handling or social media interactions\n")
	b.WriteString("Report all observations as JSON: {\"bug_reproduced\": bool, \"observations\": string, \"steps_executed\": [string]}")
	return b.String()
}
