// Package slug converts free-text funnel stage names into machine-safe
// label tokens. This is part of the platform layer and contains no business
// logic.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// Sentinel is the label token used when a contact has no funnel stage.
	Sentinel = "sem_funil"
	// DisplaySentinel is the column shown for contacts with no funnel stage.
	// It is never written back to the custom attribute; only Sentinel ever
	// reaches the upstream as a label.
	DisplaySentinel = "Sem funil"
)

var (
	tokenPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	nonTokenRuns    = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	underscoreRuns  = regexp.MustCompile(`_+`)
	stripDiacritics = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
)

// Make converts a stage display name into its label slug. It is total:
// any input, including the empty string, yields a non-empty token matching
// [a-z0-9_-]+.
func Make(stage string) string {
	raw := strings.TrimSpace(stage)
	if raw == "" {
		return Sentinel
	}
	if tokenPattern.MatchString(raw) {
		return strings.ToLower(raw)
	}

	ascii, _, err := transform.String(stripDiacritics, raw)
	if err != nil {
		// NFKD decomposition does not fail on valid UTF-8; fall back to the
		// raw text and let the replacement pass strip what it must.
		ascii = raw
	}
	ascii = nonTokenRuns.ReplaceAllString(ascii, "_")
	ascii = underscoreRuns.ReplaceAllString(ascii, "_")
	ascii = strings.Trim(ascii, "_")
	if ascii == "" {
		return Sentinel
	}
	return strings.ToLower(ascii)
}

// Display normalizes a stage value for presentation: trimmed free text,
// or the sentinel column name when empty.
func Display(stage string) string {
	raw := strings.TrimSpace(stage)
	if raw == "" {
		return DisplaySentinel
	}
	return raw
}
