package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a name for comparison (lowercase, no diacritics,
// spaces for dashes, collapsed whitespace).
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// NameMatches reports whether every word of query occurs in name, ignoring
// case and diacritics ("novak jan" matches "Jan Novák").
func NameMatches(name, query string) bool {
	words := strings.Fields(NormalizePersonName(query))
	if len(words) == 0 {
		return true
	}
	normalized := NormalizePersonName(name)
	for _, w := range words {
		if !strings.Contains(normalized, w) {
			return false
		}
	}
	return true
}
