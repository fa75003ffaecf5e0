// Package lifecycle owns the bug status transition table. It is the single
// place where a bug's status changes.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"provify/internal/bug"
	"provify/internal/verdict"
)

// ErrInvalidTransition is returned for explicit actions the table forbids.
var ErrInvalidTransition = errors.New("invalid status transition")

// Intent tags why a verification ran. It does not change the table; it
// selects how the outcome is reported.
type Intent string

const (
	IntentVerify   Intent = "verify"
	IntentReverify Intent = "reverify"
)

// Kind names the effect a verdict had on a bug.
type Kind string

const (
	KindVerified        Kind = "verified"         // pending|not_reproducible -> verified
	KindNotReproducible Kind = "not_reproducible" // pending -> not_reproducible, not_reproducible -> itself
	KindRegression      Kind = "regression"       // fixed -> verified
	KindFixConfirmed    Kind = "fix_confirmed"    // fixed -> fixed
	KindIgnored         Kind = "ignored"          // state does not accept a verdict
)

// Transition records one applied (or ignored) verdict.
type Transition struct {
	BugID   string     `json:"bug_id"`
	From    bug.Status `json:"from"`
	To      bug.Status `json:"to"`
	Kind    Kind       `json:"kind"`
	Intent  Intent     `json:"intent"`
	Applied bool       `json:"applied"`
}

// Next returns the status a verdict leads to from the given status, and
// whether that status accepts a verdict at all.
func Next(from bug.Status, reproduced bool) (bug.Status, Kind, bool) {
	switch from {
	case bug.StatusPending:
		if reproduced {
			return bug.StatusVerified, KindVerified, true
		}
		return bug.StatusNotReproducible, KindNotReproducible, true
	case bug.StatusNotReproducible:
		if reproduced {
			return bug.StatusVerified, KindVerified, true
		}
		return bug.StatusNotReproducible, KindNotReproducible, true
	case bug.StatusFixed:
		if reproduced {
			return bug.StatusVerified, KindRegression, true
		}
		return bug.StatusFixed, KindFixConfirmed, true
	default:
		return from, KindIgnored, false
	}
}

// Apply applies an aggregated verdict to b in place. Accepted transitions
// set LastVerified to now and overwrite Notes with the verdict summary. A
// verdict for a state that accepts none leaves status and LastVerified
// untouched and only records the attempt in Notes.
func Apply(b *bug.Bug, v verdict.Verdict, intent Intent, now time.Time) Transition {
	to, kind, ok := Next(b.Status, v.Reproduced)
	tr := Transition{BugID: b.ID, From: b.Status, To: to, Kind: kind, Intent: intent, Applied: ok}
	if !ok {
		b.Notes = fmt.Sprintf("%s attempt at %s ignored: status %s does not accept a verdict\n%s",
			intent, now.UTC().Format(time.RFC3339), b.Status, v.Summary)
		return tr
	}
	b.Status = to
	t := now
	b.LastVerified = &t
	b.Notes = headline(kind, intent) + "\n" + v.Summary
	if kind == KindVerified || kind == KindRegression {
		if len(v.Steps) > 0 {
			b.Steps = append([]string(nil), v.Steps...)
		}
	}
	return tr
}

func headline(kind Kind, intent Intent) string {
	switch kind {
	case KindRegression:
		return "REGRESSION: bug still reproduces after fix"
	case KindFixConfirmed:
		return "FIX CONFIRMED: bug no longer reproduces"
	case KindVerified:
		if intent == IntentReverify {
			return "VERIFIED on re-verification"
		}
		return "VERIFIED"
	default:
		return "NOT REPRODUCIBLE"
	}
}

// MarkFixed is the developer action verified -> fixed.
func MarkFixed(b *bug.Bug) error {
	if b.Status != bug.StatusVerified {
		return fmt.Errorf("%w: %s -> %s (only verified bugs can be marked fixed)", ErrInvalidTransition, b.Status, bug.StatusFixed)
	}
	b.Status = bug.StatusFixed
	return nil
}

// Edit is the explicit user edit that bypasses verification. A nil status or
// notes leaves that field unchanged. LastVerified is never touched.
func Edit(b *bug.Bug, status *bug.Status, notes *string) error {
	if status != nil {
		if _, err := bug.ParseStatus(string(*status)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		b.Status = *status
	}
	if notes != nil {
		b.Notes = strings.TrimSpace(*notes)
	}
	return nil
}
