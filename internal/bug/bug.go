// Package bug holds the tracked bug record, its status vocabulary, and the
// pure helpers used when a report is submitted (normalization, content IDs,
// duplicate detection, per-status counts).
package bug

import (
	"fmt"
	"time"
)

// Status is the verification status of a bug.
type Status string

const (
	StatusPending         Status = "pending"
	StatusVerified        Status = "verified"
	StatusNotReproducible Status = "not_reproducible"
	StatusFixed           Status = "fixed"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusVerified, StatusNotReproducible, StatusFixed}

// ParseStatus converts a raw string into a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Bug is one tracked report.
type Bug struct {
	ID           string     `json:"id" yaml:"id"`
	AppName      string     `json:"app_name" yaml:"app_name"`
	Package      string     `json:"app_package,omitempty" yaml:"app_package,omitempty"`
	Description  string     `json:"bug" yaml:"bug"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	Status       Status     `json:"status" yaml:"status"`
	Severity     int        `json:"severity,omitempty" yaml:"severity,omitempty"` // 0 = not rated
	LastVerified *time.Time `json:"last_verified,omitempty" yaml:"last_verified,omitempty"`
	Notes        string     `json:"notes" yaml:"notes"`
	Steps        []string   `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (b *Bug) Clone() *Bug {
	if b == nil {
		return nil
	}
	cp := *b
	if b.LastVerified != nil {
		t := *b.LastVerified
		cp.LastVerified = &t
	}
	if b.Steps != nil {
		cp.Steps = append([]string(nil), b.Steps...)
	}
	return &cp
}

// ValidSeverity reports whether s is unset (0) or within 1..5.
func ValidSeverity(s int) bool {
	return s == 0 || (s >= 1 && s <= 5)
}

// Stats counts bugs per status.
type Stats struct {
	Total           int `json:"total"`
	Pending         int `json:"pending"`
	Verified        int `json:"verified"`
	NotReproducible int `json:"not_reproducible"`
	Fixed           int `json:"fixed"`
}

// ComputeStats is a plain filter+count over the given collection.
func ComputeStats(bugs []*Bug) Stats {
	var s Stats
	for _, b := range bugs {
		if b == nil {
			continue
		}
		s.Total++
		switch b.Status {
		case StatusPending:
			s.Pending++
		case StatusVerified:
			s.Verified++
		case StatusNotReproducible:
			s.NotReproducible++
		case StatusFixed:
			s.Fixed++
		}
	}
	return s
}
