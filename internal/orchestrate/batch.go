package orchestrate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"provify/internal/bug"
	"provify/internal/lifecycle"
	"provify/internal/store"
)

// BatchItem is the outcome for one bug of a batch.
type BatchItem struct {
	BugID   string           `json:"bug_id"`
	Intent  lifecycle.Intent `json:"intent,omitempty"`
	Skipped bool             `json:"skipped,omitempty"`
	Report  *Report          `json:"report,omitempty"`
	Err     error            `json:"-"`
}

// BatchReport collects the items of a batch in processing order.
type BatchReport struct {
	Items []BatchItem `json:"items"`
}

// Failed counts items that ended with an error.
func (r BatchReport) Failed() int {
	n := 0
	for _, it := range r.Items {
		if it.Err != nil {
			n++
		}
	}
	return n
}

// VerifyAll processes bugs one at a time in ID order. Each bug is reloaded
// first and its stored status decides: verified bugs are skipped, fixed bugs
// are re-verified, all others verified. A per-bug error
// is recorded on its item and the batch continues; cancellation stops it.
func (o *Orchestrator) VerifyAll(ctx context.Context, bugs []*bug.Bug) (BatchReport, error) {
	ordered := append([]*bug.Bug(nil), bugs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	if err := o.poolLock.Acquire(ctx); err != nil {
		return BatchReport{}, err
	}
	defer func() {
		if err := o.poolLock.Release(); err != nil {
			o.log.Warn("release device pool lock", slog.String("error", err.Error()))
		}
	}()

	var rep BatchReport
	for _, b := range ordered {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("batch stopped: %w", err)
		}
		item := BatchItem{BugID: b.ID}
		cur, err := o.store.LoadBug(ctx, b.ID)
		if err != nil {
			item.Err = fmt.Errorf("reload bug: %w", err)
			o.log.Warn("batch item failed", slog.String("bug_id", b.ID), slog.String("error", item.Err.Error()))
			rep.Items = append(rep.Items, item)
			continue
		}
		switch cur.Status {
		case bug.StatusVerified:
			item.Skipped = true
			rep.Items = append(rep.Items, item)
			continue
		case bug.StatusFixed:
			item.Intent = lifecycle.IntentReverify
		default:
			item.Intent = lifecycle.IntentVerify
		}

		item.Report, item.Err = o.Run(ctx, b.ID, item.Intent)
		if item.Err != nil {
			if ctx.Err() != nil {
				rep.Items = append(rep.Items, item)
				return rep, fmt.Errorf("batch stopped: %w", ctx.Err())
			}
			o.log.Warn("batch item failed", slog.String("bug_id", b.ID), slog.String("error", item.Err.Error()))
		}
		rep.Items = append(rep.Items, item)
	}
	o.log.Info("batch finished", slog.Int("items", len(rep.Items)), slog.Int("failed", rep.Failed()))
	return rep, nil
}

// VerifyPending verifies every pending bug in the store.
func (o *Orchestrator) VerifyPending(ctx context.Context) (BatchReport, error) {
	bugs, err := o.store.ListBugs(ctx, store.Filter{Status: bug.StatusPending})
	if err != nil {
		return BatchReport{}, fmt.Errorf("list pending bugs: %w", err)
	}
	return o.VerifyAll(ctx, bugs)
}

// ReverifyFixed re-verifies every fixed bug in the store.
func (o *Orchestrator) ReverifyFixed(ctx context.Context) (BatchReport, error) {
	bugs, err := o.store.ListBugs(ctx, store.Filter{Status: bug.StatusFixed})
	if err != nil {
		return BatchReport{}, fmt.Errorf("list fixed bugs: %w", err)
	}
	return o.VerifyAll(ctx, bugs)
}
