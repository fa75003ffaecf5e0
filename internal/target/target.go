// Package target discovers the execution endpoints (devices, emulators) a
// verification can be dispatched to.
package target

import (
	"context"
	"errors"
	"sort"
)

// ErrNoTargetsAvailable means a snapshot found no live target. It is
// terminal for the current verification request.
var ErrNoTargetsAvailable = errors.New("no targets available")

// Target is one execution endpoint.
type Target struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	Live  bool   `json:"live" yaml:"-"`
}

// Registry reports which targets exist and which of them are live.
type Registry interface {
	// All returns every known target with its current liveness, sorted by ID.
	All(ctx context.Context) ([]Target, error)
	// IsLive re-probes a single target.
	IsLive(ctx context.Context, id string) (bool, error)
}

// Snapshot returns the live targets of r in stable ID order, or
// ErrNoTargetsAvailable when there are none.
func Snapshot(ctx context.Context, r Registry) ([]Target, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	live := make([]Target, 0, len(all))
	for _, t := range all {
		if t.Live {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return nil, ErrNoTargetsAvailable
	}
	sortByID(live)
	return live, nil
}

func sortByID(ts []Target) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}

// Static is a fixed, always-live set of targets (emulators declared in config).
type Static struct {
	targets []Target
}

// NewStatic returns a registry over the given targets.
func NewStatic(targets ...Target) *Static {
	cp := make([]Target, len(targets))
	for i, t := range targets {
		t.Live = true
		if t.Label == "" {
			t.Label = t.ID
		}
		cp[i] = t
	}
	sortByID(cp)
	return &Static{targets: cp}
}

// All implements Registry.
func (s *Static) All(context.Context) ([]Target, error) {
	return append([]Target(nil), s.targets...), nil
}

// IsLive implements Registry.
func (s *Static) IsLive(_ context.Context, id string) (bool, error) {
	for _, t := range s.targets {
		if t.ID == id {
			return true, nil
		}
	}
	return false, nil
}
