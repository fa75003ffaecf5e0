package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"provify/internal/agent"
	"provify/internal/bug"
	"provify/internal/target"
	"provify/internal/verdict"
)

type execFunc func(ctx context.Context, task agent.Task) (agent.Outcome, error)

func (f execFunc) Execute(ctx context.Context, task agent.Task) (agent.Outcome, error) {
	return f(ctx, task)
}

type liveness map[string]bool

func (l liveness) All(context.Context) ([]target.Target, error) { return nil, nil }
func (l liveness) IsLive(_ context.Context, id string) (bool, error) {
	return l[id], nil
}

var (
	testBug    = bug.Bug{ID: "abc12345", AppName: "Mail", Package: "com.example.mail", Description: "crash on send"}
	testTarget = target.Target{ID: "emulator-5554", Label: "Pixel 7", Live: true}
)

func TestRun_Completed(t *testing.T) {
	var got agent.Task
	r := New(execFunc(func(_ context.Context, task agent.Task) (agent.Outcome, error) {
		got = task
		return agent.Outcome{Reproduced: true, Observations: "crashed", Steps: []string{"tap send"}, Raw: "raw"}, nil
	}), nil)

	res := r.Run(WithRunID(context.Background(), "run-1"), testBug, testTarget)

	want := verdict.Result{
		TargetID:    "emulator-5554",
		TargetLabel: "Pixel 7",
		Reproduced:  true,
		Report:      "crashed",
		Trace:       "raw",
		Steps:       []string{"tap send"},
	}
	res.Duration = 0
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if got.RunID != "run-1" || got.Package != "com.example.mail" || got.TargetID != "emulator-5554" || got.Goal == "" {
		t.Errorf("task not populated: %+v", got)
	}
}

func TestRun_Timeout(t *testing.T) {
	r := New(execFunc(func(ctx context.Context, _ agent.Task) (agent.Outcome, error) {
		<-ctx.Done()
		return agent.Outcome{Raw: "opened app"}, ctx.Err()
	}), nil, WithTimeout(20*time.Millisecond))

	res := r.Run(context.Background(), testBug, testTarget)
	if res.Failure == nil || res.Failure.Kind != verdict.FailureTimeout {
		t.Fatalf("failure = %+v, want timeout", res.Failure)
	}
	if res.Reproduced {
		t.Error("errored result must not be reproduced")
	}
	if res.Trace != "opened app" {
		t.Errorf("partial trace = %q", res.Trace)
	}
}

func TestRun_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(execFunc(func(ctx context.Context, _ agent.Task) (agent.Outcome, error) {
		cancel()
		<-ctx.Done()
		return agent.Outcome{}, ctx.Err()
	}), nil)

	res := r.Run(ctx, testBug, testTarget)
	if res.Failure == nil || res.Failure.Kind != verdict.FailureCancelled {
		t.Fatalf("failure = %+v, want cancelled", res.Failure)
	}
}

func TestRun_AgentFailureKeepsPartialTrace(t *testing.T) {
	r := New(execFunc(func(context.Context, agent.Task) (agent.Outcome, error) {
		return agent.Outcome{}, &agent.Error{Reason: "app not installed", Partial: "step 1: open launcher"}
	}), liveness{"emulator-5554": true})

	res := r.Run(context.Background(), testBug, testTarget)
	want := &verdict.Failure{Kind: verdict.FailureAgent, Reason: "app not installed"}
	if diff := cmp.Diff(want, res.Failure); diff != "" {
		t.Errorf("failure mismatch (-want +got):\n%s", diff)
	}
	if res.Trace != "step 1: open launcher" {
		t.Errorf("trace = %q", res.Trace)
	}
}

func TestRun_Disconnected(t *testing.T) {
	r := New(execFunc(func(context.Context, agent.Task) (agent.Outcome, error) {
		return agent.Outcome{}, errors.New("device not found")
	}), liveness{})

	res := r.Run(context.Background(), testBug, testTarget)
	if res.Failure == nil || res.Failure.Kind != verdict.FailureDisconnected {
		t.Fatalf("failure = %+v, want disconnected", res.Failure)
	}
	if res.Failure.Reason != "device not found" {
		t.Errorf("reason = %q", res.Failure.Reason)
	}
}

func TestWithTimeout_IgnoresNonPositive(t *testing.T) {
	r := New(nil, nil, WithTimeout(0))
	if r.Timeout() != DefaultTimeout {
		t.Errorf("timeout = %v", r.Timeout())
	}
}
