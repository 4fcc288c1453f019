package corpus

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// minTokenLength drops single-character noise like list markers and "a".
const minTokenLength = 2

// Tokenize lowercases text, splits it on non-alphanumeric boundaries, and
// drops tokens shorter than two characters. No stemming is applied, keeping
// matching predictable: index keys and query tokens both come from this
// function.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Keywords derives the sorted, deduplicated keyword set of a skill from its
// id and description.
func Keywords(id, description string) []string {
	seen := make(map[string]struct{})
	for _, tok := range Tokenize(id + " " + description) {
		seen[tok] = struct{}{}
	}

	keywords := make([]string, 0, len(seen))
	for tok := range seen {
		keywords = append(keywords, tok)
	}
	sort.Strings(keywords)
	return keywords
}
