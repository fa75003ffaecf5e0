package display

import "testing"

func TestStatus(t *testing.T) {
	cases := []struct {
		code, want string
	}{
		{"pending", "Pending"},
		{"verified", "Verified"},
		{"not_reproducible", "Not reproducible"},
		{"fixed", "Fixed"},
		{"unknown", "unknown"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Status(tc.code); got != tc.want {
			t.Errorf("Status(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestStatusWithCode(t *testing.T) {
	if got := StatusWithCode("not_reproducible"); got != "Not reproducible (not_reproducible)" {
		t.Errorf("got %q", got)
	}
	if got := StatusWithCode("unknown"); got != "unknown" {
		t.Errorf("got %q", got)
	}
}

func TestTransition(t *testing.T) {
	cases := []struct {
		kind, want string
	}{
		{"regression", "Regression"},
		{"fix_confirmed", "Fix confirmed"},
		{"ignored", "Ignored"},
		{"other", "other"},
	}
	for _, tc := range cases {
		if got := Transition(tc.kind); got != tc.want {
			t.Errorf("Transition(%q) = %q, want %q", tc.kind, got, tc.want)
		}
	}
}

func TestFailure(t *testing.T) {
	if got := Failure("disconnected"); got != "Device disconnected" {
		t.Errorf("got %q", got)
	}
	if got := Failure("mystery"); got != "mystery" {
		t.Errorf("got %q", got)
	}
}
