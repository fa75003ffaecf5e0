// Package orchestrate drives verification runs: it guards each bug against
// concurrent runs, fans a bug out to every live target, aggregates the
// per-target results, applies the lifecycle transition, and persists the
// bug once.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"provify/internal/bug"
	"provify/internal/lifecycle"
	"provify/internal/logging"
	"provify/internal/observability"
	"provify/internal/resolve"
	"provify/internal/runner"
	"provify/internal/store"
	"provify/internal/target"
	"provify/internal/verdict"
)

var (
	// ErrNoTargetsAvailable is target.ErrNoTargetsAvailable.
	ErrNoTargetsAvailable = target.ErrNoTargetsAvailable
	// ErrPackageUnresolved means the bug has no package and none could be
	// resolved; nothing was dispatched.
	ErrPackageUnresolved = errors.New("package unresolved")
	// ErrVerificationInProgress means the bug already has a run in flight.
	ErrVerificationInProgress = errors.New("verification already in progress")
	// ErrStorage means the bug could not be persisted. The stored record is
	// unchanged.
	ErrStorage = errors.New("storage failure")
)

// TargetRunner runs one bug on one target. runner.Runner implements it.
type TargetRunner interface {
	Run(ctx context.Context, b bug.Bug, t target.Target) verdict.Result
}

var _ TargetRunner = (*runner.Runner)(nil)

// Report is the full outcome of one verification run.
type Report struct {
	RunID      string               `json:"run_id"`
	Intent     lifecycle.Intent     `json:"intent"`
	Verdict    verdict.Verdict      `json:"verdict"`
	Transition lifecycle.Transition `json:"transition"`
	Bug        *bug.Bug             `json:"bug"`
}

// Orchestrator coordinates verification runs over a store, a target registry
// and a per-target runner.
type Orchestrator struct {
	store    store.Store
	registry target.Registry
	runner   TargetRunner
	resolver resolve.Resolver
	poolLock *target.PoolLock

	maxParallel int
	metrics     *observability.Metrics
	log         *slog.Logger
	now         func() time.Time
	newRunID    func() string

	mu       sync.Mutex
	inflight map[string]string // bug ID -> run ID

	// pool admits one dispatch at a time to the device pool in this process.
	pool chan struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithResolver sets the package resolver used for bugs without a package.
func WithResolver(r resolve.Resolver) Option {
	return func(o *Orchestrator) { o.resolver = r }
}

// WithMaxParallel bounds concurrent targets per bug. Zero means one
// goroutine per target.
func WithMaxParallel(n int) Option {
	return func(o *Orchestrator) { o.maxParallel = n }
}

// WithMetrics records run outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithPoolLock makes batches hold the cross-process device pool lock.
func WithPoolLock(l *target.PoolLock) Option {
	return func(o *Orchestrator) { o.poolLock = l }
}

// WithClock overrides the time source for transitions.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New returns an orchestrator.
func New(st store.Store, reg target.Registry, run TargetRunner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    st,
		registry: reg,
		runner:   run,
		log:      logging.New("orchestrate"),
		now:      time.Now,
		newRunID: func() string { return uuid.NewString() },
		inflight: make(map[string]string),
		pool:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Verify runs a first verification of the bug.
func (o *Orchestrator) Verify(ctx context.Context, bugID string) (*verdict.Verdict, error) {
	rep, err := o.Run(ctx, bugID, lifecycle.IntentVerify)
	return verdictOf(rep), err
}

// Reverify re-runs the bug, typically after it was marked fixed.
func (o *Orchestrator) Reverify(ctx context.Context, bugID string) (*verdict.Verdict, error) {
	rep, err := o.Run(ctx, bugID, lifecycle.IntentReverify)
	return verdictOf(rep), err
}

func verdictOf(rep *Report) *verdict.Verdict {
	if rep == nil {
		return nil
	}
	v := rep.Verdict
	return &v
}

// Run executes one verification. On ErrStorage the report is still returned.
// If ctx is cancelled before the results are joined, no transition is
// applied and ctx's error is returned.
func (o *Orchestrator) Run(ctx context.Context, bugID string, intent lifecycle.Intent) (*Report, error) {
	runID := o.newRunID()
	if err := o.acquire(bugID, runID); err != nil {
		return nil, err
	}
	defer o.release(bugID)

	ctx = runner.WithRunID(ctx, runID)
	ctx, span := observability.StartSpan(ctx, "orchestrate.run",
		attribute.String("run.id", runID),
		attribute.String("bug.id", bugID),
		attribute.String("intent", string(intent)),
	)
	defer span.End()

	log := o.log.With(slog.String("run_id", runID), slog.String("bug_id", bugID), slog.String("intent", string(intent)))

	rep, err := o.run(ctx, log, bugID, runID, intent)
	outcome := "error"
	switch {
	case err != nil && rep == nil:
		span.SetStatus(codes.Error, err.Error())
		log.Warn("verification not completed", slog.String("error", err.Error()))
	case err != nil:
		span.SetStatus(codes.Error, err.Error())
		log.Error("verification result not persisted", slog.String("error", err.Error()))
	default:
		outcome = string(rep.Transition.Kind)
		span.SetAttributes(
			attribute.Bool("verdict.reproduced", rep.Verdict.Reproduced),
			attribute.String("verdict.confidence", string(rep.Verdict.Confidence)),
		)
	}
	o.metrics.ObserveVerification(string(intent), outcome)
	return rep, err
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, bugID, runID string, intent lifecycle.Intent) (*Report, error) {
	b, err := o.store.LoadBug(ctx, bugID)
	if err != nil {
		return nil, err
	}

	work := b.Clone()
	if work.Package == "" {
		pkg, err := o.resolve(ctx, work.AppName)
		if err != nil {
			return nil, err
		}
		work.Package = pkg
		log.Info("package resolved", slog.String("package", pkg))
	}

	release, err := o.acquirePool(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", bugID, err)
	}
	defer release()

	targets, err := target.Snapshot(ctx, o.registry)
	if err != nil {
		if errors.Is(err, target.ErrNoTargetsAvailable) {
			return nil, err
		}
		return nil, fmt.Errorf("target snapshot: %w", err)
	}
	log.Info("dispatching", slog.Int("targets", len(targets)), slog.String("package", work.Package))

	results := o.fanOut(ctx, *work, targets)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("verify %s: %w", bugID, err)
	}

	v := verdict.Aggregate(results)
	tr := lifecycle.Apply(work, v, intent, o.now().UTC())
	o.metrics.ObserveTransition(string(tr.Kind))
	log.Info("verdict",
		slog.Bool("reproduced", v.Reproduced),
		slog.String("confidence", string(v.Confidence)),
		slog.Int("reproduced_count", v.ReproducedCount),
		slog.Int("attempted", v.Attempted),
		slog.Int("errored", v.Errored),
		slog.String("from", string(tr.From)),
		slog.String("to", string(tr.To)),
		slog.Bool("applied", tr.Applied),
	)

	rep := &Report{RunID: runID, Intent: intent, Verdict: v, Transition: tr, Bug: work}
	if err := o.store.SaveBug(ctx, work); err != nil {
		rep.Bug = b
		return rep, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return rep, nil
}

// acquirePool waits until no other dispatch of this orchestrator is using
// the devices.
func (o *Orchestrator) acquirePool(ctx context.Context, log *slog.Logger) (func(), error) {
	select {
	case o.pool <- struct{}{}:
		return func() { <-o.pool }, nil
	default:
	}
	log.Info("waiting for device pool")
	select {
	case o.pool <- struct{}{}:
		return func() { <-o.pool }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fanOut runs b on every target and joins all of them. Results are in target
// order; a failing target never cancels the others.
func (o *Orchestrator) fanOut(ctx context.Context, b bug.Bug, targets []target.Target) []verdict.Result {
	results := make([]verdict.Result, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	if o.maxParallel > 0 {
		g.SetLimit(o.maxParallel)
	}
	for i, t := range targets {
		g.Go(func() error {
			results[i] = o.runner.Run(gctx, b, t)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) resolve(ctx context.Context, appName string) (string, error) {
	if o.resolver == nil {
		return "", fmt.Errorf("%w: no resolver for %q", ErrPackageUnresolved, appName)
	}
	pkg, err := o.resolver.Resolve(ctx, appName)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPackageUnresolved, err)
	}
	return pkg, nil
}

func (o *Orchestrator) acquire(bugID, runID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if other, busy := o.inflight[bugID]; busy {
		return fmt.Errorf("%w: bug %s (run %s)", ErrVerificationInProgress, bugID, other)
	}
	o.inflight[bugID] = runID
	o.metrics.AddInFlight(1)
	return nil
}

func (o *Orchestrator) release(bugID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, bugID)
	o.metrics.AddInFlight(-1)
}

// InFlight reports whether bugID has a run or edit in progress.
func (o *Orchestrator) InFlight(bugID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[bugID]
	return ok
}
