package target

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"provify/internal/logging"
)

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// ADB discovers Android devices through `adb devices -l`.
type ADB struct {
	path string
	run  CommandRunner
	log  *slog.Logger
}

// ADBOption configures an ADB registry.
type ADBOption func(*ADB)

// WithCommandRunner replaces process execution (tests).
func WithCommandRunner(r CommandRunner) ADBOption {
	return func(a *ADB) { a.run = r }
}

// NewADB returns a registry backed by the adb binary at path ("adb" if empty).
func NewADB(path string, opts ...ADBOption) *ADB {
	if path == "" {
		path = "adb"
	}
	a := &ADB{path: path, run: execRunner, log: logging.New("target-adb")}
	for _, o := range opts {
		o(a)
	}
	return a
}

// All implements Registry.
func (a *ADB) All(ctx context.Context) ([]Target, error) {
	out, err := a.run(ctx, a.path, "devices", "-l")
	if err != nil {
		return nil, fmt.Errorf("list adb devices: %w", err)
	}
	ts := ParseADBDevices(out)
	a.log.Debug("adb devices listed", "count", len(ts))
	return ts, nil
}

// IsLive implements Registry.
func (a *ADB) IsLive(ctx context.Context, id string) (bool, error) {
	ts, err := a.All(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range ts {
		if t.ID == id {
			return t.Live, nil
		}
	}
	return false, nil
}

// ParseADBDevices parses `adb devices -l` output. Only the "device" state is
// live; "offline", "unauthorized" and friends are listed but not live. The
// label is the model name when adb reports one.
func ParseADBDevices(out []byte) []Target {
	var ts []Target
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		t := Target{ID: fields[0], Label: fields[0], Live: fields[1] == "device"}
		for _, f := range fields[2:] {
			if model, ok := strings.CutPrefix(f, "model:"); ok && model != "" {
				t.Label = strings.ReplaceAll(model, "_", " ")
			}
		}
		ts = append(ts, t)
	}
	sortByID(ts)
	return ts
}
