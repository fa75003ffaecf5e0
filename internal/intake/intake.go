// Package intake accepts new bug reports: single submissions, bulk imports
// from a JSON or YAML file, and the sample import file.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"provify/internal/bug"
	"provify/internal/logging"
	"provify/internal/store"
)

// ErrInvalidInput is returned for submissions missing required fields or
// carrying an out-of-range severity.
var ErrInvalidInput = errors.New("invalid bug input")

// Service adds bugs to a store. Adds are serialized so duplicate detection
// sees every earlier submission.
type Service struct {
	store store.Store
	now   func() time.Time
	log   *slog.Logger
	mu    sync.Mutex
}

// New returns an intake service over s.
func New(s store.Store) *Service {
	return &Service{store: s, now: time.Now, log: logging.New("intake")}
}

// Add normalizes and stores a new bug in pending status. When a similar bug
// already exists for the same app, that bug is returned with created=false
// and nothing is written.
func (s *Service) Add(ctx context.Context, in bug.Input) (*bug.Bug, bool, error) {
	appName := bug.NormalizeAppName(in.AppName)
	desc := strings.TrimSpace(in.Description)
	pkg := strings.TrimSpace(in.Package)
	if appName == "" {
		return nil, false, fmt.Errorf("%w: app_name is required", ErrInvalidInput)
	}
	if desc == "" {
		return nil, false, fmt.Errorf("%w: bug description is required", ErrInvalidInput)
	}
	if !bug.ValidSeverity(in.Severity) {
		return nil, false, fmt.Errorf("%w: severity %d outside 1..5", ErrInvalidInput, in.Severity)
	}

	b := &bug.Bug{
		AppName:     appName,
		Package:     pkg,
		Description: desc,
		Status:      bug.StatusPending,
		Severity:    in.Severity,
	}
	key := b.AppKey()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.ListBugs(ctx, store.Filter{})
	if err != nil {
		return nil, false, fmt.Errorf("list bugs: %w", err)
	}
	if dup := bug.FindDuplicate(existing, key, desc); dup != nil {
		s.log.Info("duplicate bug submission",
			slog.String("existing_id", dup.ID),
			slog.String("app", key),
		)
		return dup, false, nil
	}

	id, err := s.freeID(ctx, key, desc)
	if err != nil {
		return nil, false, err
	}
	b.ID = id
	b.CreatedAt = s.now().UTC()
	if err := s.store.SaveBug(ctx, b); err != nil {
		return nil, false, fmt.Errorf("save bug: %w", err)
	}
	s.log.Info("bug added",
		slog.String("bug_id", b.ID),
		slog.String("app", key),
		slog.Int("severity", b.Severity),
	)
	return b, true, nil
}

// maxIDAttempts bounds the salted IDs tried after a content-ID collision.
const maxIDAttempts = 16

// freeID returns the content ID for key and desc, or a salted one when a
// different bug already holds it. The store upserts, so saving under a taken
// ID would replace that bug.
func (s *Service) freeID(ctx context.Context, key, desc string) (string, error) {
	for n := 0; n < maxIDAttempts; n++ {
		id := bug.SaltedID(key, desc, n)
		_, err := s.store.LoadBug(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			if n > 0 {
				s.log.Info("bug id collision, using salted id",
					slog.String("content_id", bug.GenerateID(key, desc)),
					slog.String("bug_id", id),
				)
			}
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("check bug id %s: %w", id, err)
		}
	}
	return "", fmt.Errorf("no free bug id for %s after %d attempts", key, maxIDAttempts)
}

// ImportReport summarizes a bulk import.
type ImportReport struct {
	Added      []string `json:"added"`
	Duplicates []string `json:"duplicates"`
}

// Import adds every entry of a JSON or YAML file. The format is detected by
// extension (.yaml/.yml, .json) or by content. Invalid entries abort the
// import; entries before them stay added.
func (s *Service) Import(ctx context.Context, path string) (ImportReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportReport{}, fmt.Errorf("read import file: %w", err)
	}
	inputs, err := ParseInputs(data, filepath.Ext(path))
	if err != nil {
		return ImportReport{}, err
	}

	var rep ImportReport
	for i, in := range inputs {
		b, created, err := s.Add(ctx, in)
		if err != nil {
			return rep, fmt.Errorf("entry %d: %w", i, err)
		}
		if created {
			rep.Added = append(rep.Added, b.ID)
		} else {
			rep.Duplicates = append(rep.Duplicates, b.ID)
		}
	}
	s.log.Info("import finished",
		slog.String("path", path),
		slog.Int("added", len(rep.Added)),
		slog.Int("duplicates", len(rep.Duplicates)),
	)
	return rep, nil
}

// ParseInputs decodes a list of submissions. ext is a format hint; empty
// means detect from content.
func ParseInputs(data []byte, ext string) ([]bug.Input, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" {
		if strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
			ext = ".json"
		} else {
			ext = ".yaml"
		}
	}

	var inputs []bug.Input
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &inputs); err != nil {
			return nil, fmt.Errorf("parse import json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &inputs); err != nil {
			return nil, fmt.Errorf("parse import yaml: %w", err)
		}
	}
	return inputs, nil
}

// SampleInputs is the content of a fresh sample import file.
var SampleInputs = []bug.Input{
	{AppName: "My App", Package: "com.example.myapp", Description: "App crashes when uploading photo"},
	{AppName: "My App", Package: "com.example.myapp", Description: "Login button not responding"},
}

// WriteSample writes SampleInputs to path as JSON, or YAML for .yaml/.yml.
func WriteSample(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(SampleInputs)
	default:
		data, err = json.MarshalIndent(SampleInputs, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	return nil
}
