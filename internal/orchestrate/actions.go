package orchestrate

import (
	"context"
	"fmt"
	"log/slog"

	"provify/internal/bug"
	"provify/internal/lifecycle"
)

// MarkFixed records that a developer fixed a verified bug.
func (o *Orchestrator) MarkFixed(ctx context.Context, bugID string) (*bug.Bug, error) {
	return o.mutate(ctx, bugID, "mark_fixed", lifecycle.MarkFixed)
}

// Edit applies a manual status and/or notes change. Nil fields are left as is.
func (o *Orchestrator) Edit(ctx context.Context, bugID string, status *bug.Status, notes *string) (*bug.Bug, error) {
	return o.mutate(ctx, bugID, "edit", func(b *bug.Bug) error {
		return lifecycle.Edit(b, status, notes)
	})
}

// Delete removes a bug that is not being verified.
func (o *Orchestrator) Delete(ctx context.Context, bugID string) error {
	if err := o.acquire(bugID, "delete"); err != nil {
		return err
	}
	defer o.release(bugID)
	if err := o.store.DeleteBug(ctx, bugID); err != nil {
		return err
	}
	o.log.Info("bug deleted", slog.String("bug_id", bugID))
	return nil
}

// mutate loads, changes and saves a bug under the in-flight guard.
func (o *Orchestrator) mutate(ctx context.Context, bugID, action string, fn func(*bug.Bug) error) (*bug.Bug, error) {
	if err := o.acquire(bugID, action); err != nil {
		return nil, err
	}
	defer o.release(bugID)

	b, err := o.store.LoadBug(ctx, bugID)
	if err != nil {
		return nil, err
	}
	from := b.Status
	if err := fn(b); err != nil {
		return nil, err
	}
	if err := o.store.SaveBug(ctx, b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	o.log.Info("bug updated",
		slog.String("bug_id", bugID),
		slog.String("action", action),
		slog.String("from", string(from)),
		slog.String("to", string(b.Status)),
	)
	return b, nil
}
