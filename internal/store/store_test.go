package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"provify/internal/bug"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "nested", "provify.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{"mem": NewMemStore(), "sqlite": sq}
}

func sampleBug(id string, created time.Time) *bug.Bug {
	return &bug.Bug{
		ID:          id,
		AppName:     "Example Mail",
		Package:     "com.example.mail",
		Description: "crash when sending",
		CreatedAt:   created,
		Status:      bug.StatusPending,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			b := sampleBug("a1b2c3d4", base)
			if err := s.SaveBug(ctx, b); err != nil {
				t.Fatalf("SaveBug: %v", err)
			}
			got, err := s.LoadBug(ctx, "a1b2c3d4")
			if err != nil {
				t.Fatalf("LoadBug: %v", err)
			}
			if diff := cmp.Diff(b, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}

			lv := base.Add(time.Hour)
			got.Status = bug.StatusVerified
			got.LastVerified = &lv
			got.Notes = "REPRODUCED"
			got.Steps = []string{"open app", "tap send"}
			got.Severity = 4
			if err := s.SaveBug(ctx, got); err != nil {
				t.Fatalf("SaveBug update: %v", err)
			}
			again, err := s.LoadBug(ctx, "a1b2c3d4")
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(got, again); diff != "" {
				t.Errorf("update mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			b := sampleBug("copy0001", time.Now())
			_ = s.SaveBug(ctx, b)
			b.Status = bug.StatusFixed

			got, _ := s.LoadBug(ctx, "copy0001")
			got.Notes = "mutated"
			fresh, _ := s.LoadBug(ctx, "copy0001")
			if fresh.Status != bug.StatusPending || fresh.Notes != "" {
				t.Errorf("stored record aliased: %+v", fresh)
			}
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.LoadBug(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("LoadBug err = %v", err)
			}
			if err := s.DeleteBug(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("DeleteBug err = %v", err)
			}
		})
	}
}

func TestStore_ListFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			old := sampleBug("old00001", base)
			mid := sampleBug("mid00001", base.Add(time.Minute))
			mid.Status = bug.StatusVerified
			newer := sampleBug("new00001", base.Add(2*time.Minute))
			newer.Package = "com.example.notes"
			for _, b := range []*bug.Bug{mid, old, newer} {
				if err := s.SaveBug(ctx, b); err != nil {
					t.Fatal(err)
				}
			}

			all, err := s.ListBugs(ctx, Filter{})
			if err != nil {
				t.Fatal(err)
			}
			if got := ids(all); !cmp.Equal(got, []string{"new00001", "mid00001", "old00001"}) {
				t.Errorf("order = %v", got)
			}

			pending, _ := s.ListBugs(ctx, Filter{Status: bug.StatusPending})
			if got := ids(pending); !cmp.Equal(got, []string{"new00001", "old00001"}) {
				t.Errorf("pending = %v", got)
			}

			mail, _ := s.ListBugs(ctx, Filter{Package: "com.example.mail", Status: bug.StatusVerified})
			if got := ids(mail); !cmp.Equal(got, []string{"mid00001"}) {
				t.Errorf("mail+verified = %v", got)
			}

			if err := s.DeleteBug(ctx, "mid00001"); err != nil {
				t.Fatal(err)
			}
			rest, _ := s.ListBugs(ctx, Filter{})
			if len(rest) != 2 {
				t.Errorf("after delete: %v", ids(rest))
			}
		})
	}
}

func TestMemStore_FailSaveKeepsRecord(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	b := sampleBug("keep0001", time.Now())
	_ = s.SaveBug(ctx, b)

	s.FailSave = errors.New("disk full")
	changed := b.Clone()
	changed.Status = bug.StatusVerified
	if err := s.SaveBug(ctx, changed); err == nil {
		t.Fatal("expected save failure")
	}
	got, _ := s.LoadBug(ctx, "keep0001")
	if got.Status != bug.StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}

func TestSqlStore_MigratesV1(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "v1.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(schemaVersionDDL); err != nil {
		t.Fatal(err)
	}
	for _, stmt := range schemaV1 {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersionV1); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO bugs(id, app_name, app_package, description, created_at, status, notes)
		VALUES('legacy01', 'Mail', 'com.example.mail', 'old bug', '2025-01-02T03:04:05Z', 'pending', '')`); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	s, err := Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	var v int
	if err := s.db.QueryRow("SELECT version FROM schema_version").Scan(&v); err != nil || v != schemaVersionV2 {
		t.Fatalf("version = %d, err %v", v, err)
	}
	b, err := s.LoadBug(ctx, "legacy01")
	if err != nil {
		t.Fatal(err)
	}
	if b.Severity != 0 || b.Steps != nil || b.CreatedAt.Year() != 2025 {
		t.Errorf("migrated bug = %+v", b)
	}
}

func TestSqlStore_Rebind(t *testing.T) {
	pg := &SqlStore{postgres: true}
	if got := pg.rebind("UPDATE t SET a = ? WHERE id = ?"); got != "UPDATE t SET a = $1 WHERE id = $2" {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := &SqlStore{}
	if got := lite.rebind("SELECT ?"); got != "SELECT ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "x"); err == nil {
		t.Error("expected error")
	}
	if _, err := Open(DriverPostgres, ""); err == nil {
		t.Error("expected error for empty postgres dsn")
	}
}

func ids(bugs []*bug.Bug) []string {
	out := make([]string, len(bugs))
	for i, b := range bugs {
		out[i] = b.ID
	}
	return out
}
