// Package names normalizes payer and student names so that the same
// person spelled in Cyrillic, Latin or with stray diacritics compares
// equal before fuzzy matching.
package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// translitTable maps lowercase Cyrillic runes to their Latin
// transliteration. Chosen so common Russian first names land on their
// usual Latin spellings (Екатерина → ekaterina, Дарья → daria).
var translitTable = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d",
	'е': "e", 'ё': "e", 'ж': "zh", 'з': "z", 'и': "i",
	'й': "y", 'к': "k", 'л': "l", 'м': "m", 'н': "n",
	'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t",
	'у': "u", 'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch",
	'ш': "sh", 'щ': "shch", 'ъ': "", 'ы': "y", 'ь': "",
	'э': "e", 'ю': "iu", 'я': "ia",
}

var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize lowercases a name, composes combining characters, trims and
// collapses internal whitespace. Punctuation other than the dot of a
// surname initial is dropped.
func Normalize(name string) string {
	name = norm.NFC.String(name)
	name = strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	lastSpace := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-':
			b.WriteRune(r)
			lastSpace = false
		}
	}

	return strings.TrimRight(b.String(), " ")
}

// Transliterate converts Cyrillic letters to their Latin equivalents.
// Non-Cyrillic runes pass through unchanged. Input is expected to be
// normalized (lowercase).
func Transliterate(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if latin, ok := translitTable[r]; ok {
			b.WriteString(latin)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StripDiacritics removes combining marks from Latin text (véra → vera).
func StripDiacritics(name string) string {
	stripped, _, err := transform.String(diacriticStripper, name)
	if err != nil {
		return name
	}
	return stripped
}

// Canonical produces the comparable form of a name: normalized,
// transliterated to Latin and stripped of diacritics. All similarity
// scoring runs on canonical forms.
func Canonical(name string) string {
	return StripDiacritics(Transliterate(Normalize(name)))
}

// PrimaryToken returns the first substantial token of a canonical name,
// skipping single-letter surname initials ("daria m." → "daria").
// Returns the empty string when no substantial token exists.
func PrimaryToken(name string) string {
	for _, token := range strings.Fields(Canonical(name)) {
		token = strings.TrimSuffix(token, ".")
		if len([]rune(token)) > 1 {
			return token
		}
	}

	// Fall back to whatever is there, initials included
	fields := strings.Fields(Canonical(name))
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimSuffix(fields[0], ".")
}

// Tokens splits a canonical name into its tokens with initials' dots removed.
func Tokens(name string) []string {
	fields := strings.Fields(Canonical(name))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSuffix(f, ".")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
