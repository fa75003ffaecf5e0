package bug

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DuplicateThreshold is the word-set similarity above which two descriptions
// for the same app are considered the same bug.
const DuplicateThreshold = 0.7

// Input is a bug as submitted by a user. Package is optional and resolved
// lazily at verification time.
type Input struct {
	AppName     string `json:"app_name" yaml:"app_name"`
	Package     string `json:"app_package,omitempty" yaml:"app_package,omitempty"`
	Description string `json:"bug" yaml:"bug"`
	Severity    int    `json:"severity,omitempty" yaml:"severity,omitempty"`
}

// NormalizeAppName trims and title-cases an app display name.
func NormalizeAppName(name string) string {
	// Casers carry state; one per call keeps this safe for concurrent use.
	return cases.Title(language.Und).String(strings.TrimSpace(name))
}

// GenerateID derives the 8-hex-char content ID from the app key (package if
// known, normalized app name otherwise) and the description.
// The description is cut to its first 100 characters, not bytes.
func GenerateID(appKey, description string) string {
	return hashID(appKey + ":" + idPrefix(description))
}

// SaltedID is the n-th alternative to GenerateID, used when the content ID
// is already held by a different bug. SaltedID(k, d, 0) == GenerateID(k, d).
func SaltedID(appKey, description string, n int) string {
	if n == 0 {
		return GenerateID(appKey, description)
	}
	return hashID(fmt.Sprintf("%s:%s#%d", appKey, idPrefix(description), n))
}

func idPrefix(description string) string {
	r := []rune(strings.ToLower(description))
	if len(r) > 100 {
		r = r[:100]
	}
	return string(r)
}

func hashID(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

// AppKey is the grouping key used for IDs and duplicate detection.
func (b *Bug) AppKey() string {
	if b.Package != "" {
		return b.Package
	}
	return b.AppName
}

// Similarity is the Jaccard index of the lowercased word sets of a and b.
func Similarity(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = struct{}{}
	}
	return out
}

// FindDuplicate returns the first bug in existing that belongs to the same app
// key and whose description is similar enough to description.
func FindDuplicate(existing []*Bug, appKey, description string) *Bug {
	for _, b := range existing {
		if b == nil || b.AppKey() != appKey {
			continue
		}
		if Similarity(b.Description, description) > DuplicateThreshold {
			return b
		}
	}
	return nil
}
