package blob

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// removeDiacritics strips diacritical marks from a string
// (e.g., "Jiří" -> "Jiri").
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// ObjectKey normalizes a photo filename into a stable object key:
// diacritics removed, spaces collapsed to underscores. The key doubles as
// the photo ID in the index, so it must stay stable across re-runs.
func ObjectKey(filename string) string {
	key := removeDiacritics(filename)
	key = strings.Join(strings.Fields(key), "_")
	return key
}
