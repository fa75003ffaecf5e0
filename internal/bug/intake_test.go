package bug

import (
	"strings"
	"testing"
)

func TestNormalizeAppName(t *testing.T) {
	tests := map[string]string{
		"  my app ":   "My App",
		"whatsapp":    "Whatsapp",
		"GOOGLE maps": "Google Maps",
	}
	for in, want := range tests {
		if got := NormalizeAppName(in); got != want {
			t.Errorf("NormalizeAppName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateID_StableAndCaseInsensitive(t *testing.T) {
	a := GenerateID("com.example.app", "App crashes on upload")
	b := GenerateID("com.example.app", "APP CRASHES ON UPLOAD")
	if a != b {
		t.Errorf("expected case-insensitive IDs, got %s vs %s", a, b)
	}
	if len(a) != 8 {
		t.Errorf("id length: got %d, want 8", len(a))
	}
	if c := GenerateID("com.other", "App crashes on upload"); c == a {
		t.Error("different app keys should produce different IDs")
	}
}

func TestGenerateID_CutsOnCharacters(t *testing.T) {
	// 99 ASCII bytes then a two-byte rune: a byte cut at 100 would split it.
	base := strings.Repeat("a", 99) + "é"
	if got, want := GenerateID("com.example.app", base+"zzz"), GenerateID("com.example.app", base); got != want {
		t.Errorf("characters past the 100th changed the ID: %s vs %s", got, want)
	}
	if GenerateID("com.example.app", strings.Repeat("a", 99)+"é") == GenerateID("com.example.app", strings.Repeat("a", 99)+"è") {
		t.Error("the 100th character must take part in the ID")
	}
}

func TestSaltedID(t *testing.T) {
	if SaltedID("com.example.app", "crash", 0) != GenerateID("com.example.app", "crash") {
		t.Error("salt 0 must equal the content ID")
	}
	seen := map[string]bool{}
	for n := 0; n < 5; n++ {
		id := SaltedID("com.example.app", "crash", n)
		if len(id) != 8 || seen[id] {
			t.Fatalf("salt %d: id %q short or repeated", n, id)
		}
		seen[id] = true
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("a b c", "a b c"); got != 1 {
		t.Errorf("identical: got %v", got)
	}
	if got := Similarity("", "a"); got != 0 {
		t.Errorf("empty: got %v", got)
	}
	if got := Similarity("a b", "b c"); got != 1.0/3.0 {
		t.Errorf("partial: got %v", got)
	}
}

func TestFindDuplicate(t *testing.T) {
	existing := []*Bug{
		{ID: "1", Package: "com.example.app", Description: "app crashes when uploading a photo"},
		{ID: "2", Package: "com.other", Description: "login button not responding"},
	}
	if d := FindDuplicate(existing, "com.example.app", "app freezes when uploading a video"); d != nil {
		t.Errorf("unexpected duplicate %s", d.ID)
	}
	d := FindDuplicate(existing, "com.example.app", "App crashes when uploading a photo")
	if d == nil || d.ID != "1" {
		t.Fatalf("expected duplicate 1, got %+v", d)
	}
	if d := FindDuplicate(existing, "com.example.app", "login button not responding"); d != nil {
		t.Errorf("different app should not match, got %s", d.ID)
	}
}
