package resolve

import (
	"context"
	"errors"
	"testing"
)

func TestTable_CaseInsensitive(t *testing.T) {
	tbl := NewTable(map[string]string{"Signal": "org.thoughtcrime.securesms", " WhatsApp ": "com.whatsapp"})

	for _, name := range []string{"signal", "SIGNAL", "  Signal "} {
		pkg, err := tbl.Resolve(context.Background(), name)
		if err != nil || pkg != "org.thoughtcrime.securesms" {
			t.Errorf("Resolve(%q) = %q, %v", name, pkg, err)
		}
	}
	if pkg, _ := tbl.Resolve(context.Background(), "whatsapp"); pkg != "com.whatsapp" {
		t.Errorf("whatsapp = %q", pkg)
	}
	if _, err := tbl.Resolve(context.Background(), "Telegram"); !errors.Is(err, ErrUnresolved) {
		t.Errorf("err = %v, want ErrUnresolved", err)
	}
}

func TestHeuristic(t *testing.T) {
	tests := map[string]string{
		"Simple Gallery": "com.simplegallery",
		"K-9 Mail":       "com.k9mail",
	}
	for in, want := range tests {
		got, err := Heuristic{}.Resolve(context.Background(), in)
		if err != nil || got != want {
			t.Errorf("Resolve(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := (Heuristic{}).Resolve(context.Background(), " !! "); !errors.Is(err, ErrUnresolved) {
		t.Errorf("err = %v", err)
	}
}

type failing struct{ err error }

func (f failing) Resolve(context.Context, string) (string, error) { return "", f.err }

func TestChain(t *testing.T) {
	ctx := context.Background()
	c := Chain{NewTable(map[string]string{"mail": "com.example.mail"}), Heuristic{}}

	if pkg, _ := c.Resolve(ctx, "Mail"); pkg != "com.example.mail" {
		t.Errorf("table hit = %q", pkg)
	}
	if pkg, _ := c.Resolve(ctx, "Notes"); pkg != "com.notes" {
		t.Errorf("heuristic fallback = %q", pkg)
	}
	if _, err := (Chain{NewTable(nil)}).Resolve(ctx, "Notes"); !errors.Is(err, ErrUnresolved) {
		t.Errorf("empty chain err = %v", err)
	}

	boom := errors.New("lookup service down")
	if _, err := (Chain{failing{boom}, Heuristic{}}).Resolve(ctx, "Notes"); !errors.Is(err, boom) {
		t.Errorf("hard error not surfaced: %v", err)
	}
}
