package lifecycle

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"provify/internal/bug"
	"provify/internal/verdict"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func vd(reproduced bool) verdict.Verdict {
	return verdict.Verdict{Reproduced: reproduced, Confidence: verdict.ConfidenceHigh, Summary: "Reproduction rate: x/y"}
}

func TestNext_Table(t *testing.T) {
	tests := []struct {
		from       bug.Status
		reproduced bool
		want       bug.Status
		kind       Kind
		accepted   bool
	}{
		{bug.StatusPending, true, bug.StatusVerified, KindVerified, true},
		{bug.StatusPending, false, bug.StatusNotReproducible, KindNotReproducible, true},
		{bug.StatusNotReproducible, true, bug.StatusVerified, KindVerified, true},
		{bug.StatusNotReproducible, false, bug.StatusNotReproducible, KindNotReproducible, true},
		{bug.StatusFixed, true, bug.StatusVerified, KindRegression, true},
		{bug.StatusFixed, false, bug.StatusFixed, KindFixConfirmed, true},
		{bug.StatusVerified, true, bug.StatusVerified, KindIgnored, false},
		{bug.StatusVerified, false, bug.StatusVerified, KindIgnored, false},
	}
	for _, tt := range tests {
		got, kind, ok := Next(tt.from, tt.reproduced)
		if got != tt.want || kind != tt.kind || ok != tt.accepted {
			t.Errorf("Next(%s, %v) = (%s, %s, %v), want (%s, %s, %v)",
				tt.from, tt.reproduced, got, kind, ok, tt.want, tt.kind, tt.accepted)
		}
	}
}

func TestApply_PendingNotReproduced(t *testing.T) {
	b := &bug.Bug{ID: "b1", Status: bug.StatusPending, Notes: "old"}
	tr := Apply(b, vd(false), IntentVerify, now)
	if b.Status != bug.StatusNotReproducible {
		t.Errorf("status: got %s", b.Status)
	}
	if b.LastVerified == nil || !b.LastVerified.Equal(now) {
		t.Errorf("last verified not set: %v", b.LastVerified)
	}
	if !strings.Contains(b.Notes, "Reproduction rate") || strings.Contains(b.Notes, "old") {
		t.Errorf("notes not overwritten: %q", b.Notes)
	}
	want := Transition{BugID: "b1", From: bug.StatusPending, To: bug.StatusNotReproducible, Kind: KindNotReproducible, Intent: IntentVerify, Applied: true}
	if diff := cmp.Diff(want, tr); diff != "" {
		t.Errorf("transition (-want +got):\n%s", diff)
	}
}

func TestApply_FixedReverify(t *testing.T) {
	earlier := now.Add(-24 * time.Hour)

	b := &bug.Bug{ID: "b1", Status: bug.StatusFixed, LastVerified: &earlier}
	tr := Apply(b, vd(false), IntentReverify, now)
	if b.Status != bug.StatusFixed || tr.Kind != KindFixConfirmed {
		t.Errorf("fix confirmed: got status %s kind %s", b.Status, tr.Kind)
	}
	if !b.LastVerified.Equal(now) {
		t.Errorf("last verified not updated")
	}
	if !strings.HasPrefix(b.Notes, "FIX CONFIRMED") {
		t.Errorf("notes: %q", b.Notes)
	}

	b2 := &bug.Bug{ID: "b2", Status: bug.StatusFixed}
	v := vd(true)
	v.Steps = []string{"open app", "tap upload"}
	tr = Apply(b2, v, IntentReverify, now)
	if b2.Status != bug.StatusVerified || tr.Kind != KindRegression {
		t.Errorf("regression: got status %s kind %s", b2.Status, tr.Kind)
	}
	if !strings.HasPrefix(b2.Notes, "REGRESSION") {
		t.Errorf("notes: %q", b2.Notes)
	}
	if diff := cmp.Diff(v.Steps, b2.Steps); diff != "" {
		t.Errorf("steps (-want +got):\n%s", diff)
	}
}

func TestApply_VerifiedIsNoOpButRecorded(t *testing.T) {
	earlier := now.Add(-time.Hour)
	b := &bug.Bug{ID: "b1", Status: bug.StatusVerified, LastVerified: &earlier}
	tr := Apply(b, vd(false), IntentVerify, now)
	if tr.Applied {
		t.Error("expected transition not applied")
	}
	if b.Status != bug.StatusVerified {
		t.Errorf("status changed to %s", b.Status)
	}
	if !b.LastVerified.Equal(earlier) {
		t.Errorf("last verified changed")
	}
	if !strings.Contains(b.Notes, "ignored") {
		t.Errorf("attempt not recorded in notes: %q", b.Notes)
	}
}

func TestMarkFixed(t *testing.T) {
	b := &bug.Bug{Status: bug.StatusVerified}
	if err := MarkFixed(b); err != nil {
		t.Fatalf("MarkFixed: %v", err)
	}
	if b.Status != bug.StatusFixed {
		t.Errorf("status: got %s", b.Status)
	}
	for _, st := range []bug.Status{bug.StatusPending, bug.StatusNotReproducible, bug.StatusFixed} {
		b := &bug.Bug{Status: st}
		if err := MarkFixed(b); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("MarkFixed from %s: got %v", st, err)
		}
		if b.Status != st {
			t.Errorf("status changed from %s", st)
		}
	}
}

func TestEdit(t *testing.T) {
	b := &bug.Bug{Status: bug.StatusPending, Notes: "n"}
	st := bug.StatusFixed
	notes := "  closed upstream  "
	if err := Edit(b, &st, &notes); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if b.Status != bug.StatusFixed || b.Notes != "closed upstream" {
		t.Errorf("got %+v", b)
	}
	if b.LastVerified != nil {
		t.Error("edit must not touch last verified")
	}
	bad := bug.Status("closed")
	if err := Edit(b, &bad, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected invalid transition, got %v", err)
	}
}
