// Package runner executes one bug against one target and folds every failure
// mode into a per-target result. Run never returns an error.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"provify/internal/agent"
	"provify/internal/bug"
	"provify/internal/logging"
	"provify/internal/observability"
	"provify/internal/target"
	"provify/internal/verdict"
)

// DefaultTimeout bounds a single target run when none is configured.
const DefaultTimeout = 120 * time.Second

// Runner dispatches verification tasks to an agent executor.
type Runner struct {
	exec     agent.Executor
	registry target.Registry
	timeout  time.Duration
	metrics  *observability.Metrics
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout sets the per-target timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMetrics records per-target outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// New returns a runner. registry is consulted after an executor failure to
// tell a disconnected target from an agent failure; it may be nil.
func New(exec agent.Executor, registry target.Registry, opts ...Option) *Runner {
	r := &Runner{
		exec:     exec,
		registry: registry,
		timeout:  DefaultTimeout,
		log:      logging.New("runner"),
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Timeout returns the effective per-target timeout.
func (r *Runner) Timeout() time.Duration { return r.timeout }

// Run verifies b on t. Deadline expiry yields a timeout failure, parent
// cancellation a cancelled failure, and executor errors either disconnected
// (target no longer live) or agent.
func (r *Runner) Run(ctx context.Context, b bug.Bug, t target.Target) verdict.Result {
	ctx, span := observability.StartSpan(ctx, "runner.run",
		attribute.String("bug.id", b.ID),
		attribute.String("target.id", t.ID),
	)
	defer span.End()

	task := agent.Task{
		BugID:       b.ID,
		AppName:     b.AppName,
		Package:     b.Package,
		Description: b.Description,
		TargetID:    t.ID,
		Goal:        agent.Goal(b.AppName, b.Package, b.Description),
	}
	if runID, ok := RunIDFrom(ctx); ok {
		task.RunID = runID
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := r.now()
	out, err := r.exec.Execute(runCtx, task)
	elapsed := r.now().Sub(start)

	var res verdict.Result
	switch {
	case err == nil:
		res = verdict.Completed(t.ID, out.Reproduced, out.Observations)
		res.Trace = out.Raw
		res.Steps = out.Steps
	case ctx.Err() != nil:
		res = verdict.Errored(t.ID, verdict.FailureCancelled, ctx.Err().Error(), partial(out, err))
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res = verdict.Errored(t.ID, verdict.FailureTimeout, "no result within "+r.timeout.String(), partial(out, err))
	default:
		kind := verdict.FailureAgent
		if !r.stillLive(ctx, t.ID) {
			kind = verdict.FailureDisconnected
		}
		res = verdict.Errored(t.ID, kind, reason(err), partial(out, err))
	}
	res.TargetLabel = t.Label
	res.Duration = elapsed

	outcome := outcomeLabel(res)
	span.SetAttributes(attribute.String("outcome", outcome))
	if res.Errored() {
		span.SetStatus(codes.Error, res.Failure.Reason)
		r.log.Warn("target run failed",
			slog.String("bug_id", b.ID),
			slog.String("target_id", t.ID),
			slog.String("kind", string(res.Failure.Kind)),
			slog.String("reason", res.Failure.Reason),
			slog.Duration("elapsed", elapsed),
		)
	} else {
		r.log.Info("target run completed",
			slog.String("bug_id", b.ID),
			slog.String("target_id", t.ID),
			slog.Bool("reproduced", res.Reproduced),
			slog.Duration("elapsed", elapsed),
		)
	}
	r.metrics.ObserveTarget(t.ID, outcome, elapsed)
	return res
}

func (r *Runner) stillLive(ctx context.Context, id string) bool {
	if r.registry == nil {
		return true
	}
	live, err := r.registry.IsLive(ctx, id)
	if err != nil {
		r.log.Debug("liveness probe failed", slog.String("target_id", id), slog.String("error", err.Error()))
		return false
	}
	return live
}

func partial(out agent.Outcome, err error) string {
	var ae *agent.Error
	if errors.As(err, &ae) && ae.Partial != "" {
		return ae.Partial
	}
	return out.Raw
}

func reason(err error) string {
	var ae *agent.Error
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return err.Error()
}

func outcomeLabel(r verdict.Result) string {
	switch {
	case r.Errored():
		return string(r.Failure.Kind)
	case r.Reproduced:
		return "reproduced"
	default:
		return "not_reproduced"
	}
}

type runIDKey struct{}

// WithRunID tags ctx with the verification run ID.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run ID set by WithRunID.
func RunIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok
}
