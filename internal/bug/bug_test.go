package bug

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseStatus(t *testing.T) {
	for _, st := range Statuses {
		got, err := ParseStatus(string(st))
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", st, err)
		}
		if got != st {
			t.Errorf("ParseStatus(%q) = %q", st, got)
		}
	}
	if _, err := ParseStatus("closed"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestClone_DoesNotAlias(t *testing.T) {
	now := time.Now()
	b := &Bug{ID: "abc", LastVerified: &now, Steps: []string{"open app"}}
	cp := b.Clone()
	cp.Steps[0] = "changed"
	*cp.LastVerified = now.Add(time.Hour)
	if b.Steps[0] != "open app" {
		t.Errorf("steps aliased: %v", b.Steps)
	}
	if !b.LastVerified.Equal(now) {
		t.Errorf("last verified aliased")
	}
}

func TestComputeStats(t *testing.T) {
	bugs := []*Bug{
		{Status: StatusPending},
		{Status: StatusPending},
		{Status: StatusVerified},
		{Status: StatusNotReproducible},
		{Status: StatusFixed},
		nil,
	}
	want := Stats{Total: 5, Pending: 2, Verified: 1, NotReproducible: 1, Fixed: 1}
	if diff := cmp.Diff(want, ComputeStats(bugs)); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestValidSeverity(t *testing.T) {
	tests := []struct {
		in   int
		want bool
	}{{0, true}, {1, true}, {5, true}, {6, false}, {-1, false}}
	for _, tt := range tests {
		if got := ValidSeverity(tt.in); got != tt.want {
			t.Errorf("ValidSeverity(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
