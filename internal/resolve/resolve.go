// Package resolve maps a human-readable app name to its package identifier.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnresolved means no resolver knows the app.
var ErrUnresolved = errors.New("package unresolved")

// Resolver looks up the package for an app name.
type Resolver interface {
	Resolve(ctx context.Context, appName string) (string, error)
}

// Table resolves from a fixed name→package map. Lookups ignore case and
// surrounding whitespace.
type Table map[string]string

// NewTable normalizes the keys of m.
func NewTable(m map[string]string) Table {
	t := make(Table, len(m))
	for k, v := range m {
		t[key(k)] = strings.TrimSpace(v)
	}
	return t
}

func (t Table) Resolve(_ context.Context, appName string) (string, error) {
	if pkg, ok := t[key(appName)]; ok && pkg != "" {
		return pkg, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnresolved, appName)
}

func key(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

var nonIdent = regexp.MustCompile(`[^a-z0-9]+`)

// Heuristic guesses com.<name>, the name lowercased with everything but
// letters and digits removed.
type Heuristic struct{}

func (Heuristic) Resolve(_ context.Context, appName string) (string, error) {
	name := nonIdent.ReplaceAllString(strings.ToLower(appName), "")
	if name == "" {
		return "", fmt.Errorf("%w: %q", ErrUnresolved, appName)
	}
	return "com." + name, nil
}

// Chain tries each resolver in order and returns the first hit. Errors other
// than ErrUnresolved stop the chain.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, appName string) (string, error) {
	for _, r := range c {
		pkg, err := r.Resolve(ctx, appName)
		if err == nil {
			return pkg, nil
		}
		if !errors.Is(err, ErrUnresolved) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnresolved, appName)
}
