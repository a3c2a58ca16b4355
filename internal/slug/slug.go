// Package slug provides URL-friendly slug generation from arbitrary strings.
package slug

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used when a title has no sluggable characters.
const Fallback = "post"

// MaxBaseLen leaves room for a numeric suffix within the 120 character column.
const MaxBaseLen = 100

var (
	// nonAlphanumeric matches anything that isn't a letter, digit, whitespace or hyphen.
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespace      = regexp.MustCompile(`\s+`)
	// multipleHyphens collapses consecutive hyphens into one.
	multipleHyphens = regexp.MustCompile(`-{2,}`)
)

// foldDiacritics decomposes accented letters and drops the combining marks,
// so "Über" becomes "Uber".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// Generate creates a URL-friendly slug from the given string.
// Example: "Hello, World! 2026" → "hello-world-2026", "Über Go" → "uber-go"
func Generate(s string) string {
	result := strings.ToLower(foldDiacritics(strings.TrimSpace(s)))
	result = nonAlphanumeric.ReplaceAllString(result, "")
	result = whitespace.ReplaceAllString(result, "-")
	result = multipleHyphens.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")

	if len(result) > MaxBaseLen {
		result = strings.TrimRight(result[:MaxBaseLen], "-")
	}
	return result
}

// Base returns the slug for title, or Fallback when nothing usable remains.
func Base(title string) string {
	if s := Generate(title); s != "" {
		return s
	}
	return Fallback
}

// NextAvailable picks the slug for base given the slugs already taken that
// share its prefix. It returns base itself when free, otherwise base-N with N
// one above the highest suffix in use (starting at 2).
func NextAvailable(base string, taken []string) string {
	baseTaken := false
	highest := 1
	for _, s := range taken {
		if s == base {
			baseTaken = true
			continue
		}
		if n, ok := suffix(base, s); ok && n > highest {
			highest = n
		}
	}
	if !baseTaken {
		return base
	}
	return base + "-" + strconv.Itoa(highest+1)
}

func suffix(base, s string) (int, bool) {
	rest, ok := strings.CutPrefix(s, base+"-")
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 2 || strconv.Itoa(n) != rest {
		return 0, false
	}
	return n, true
}
