package matching

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minKeywordLen is the shortest token kept by Keywords.
const minKeywordLen = 3

// stopwords are filler words seen on prescriptions and product labels.
var stopwords = map[string]struct{}{
	"and": {}, "the": {}, "for": {}, "with": {}, "from": {}, "per": {},
	"com": {}, "para": {}, "sem": {}, "por": {}, "uma": {}, "dos": {}, "das": {},
	"nos": {}, "nas": {}, "pelo": {}, "pela": {}, "que": {}, "uso": {}, "tomar": {},
}

// Normalize strips diacritics, lowercases, trims and collapses whitespace.
func Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	// Chained transformers carry state, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, text)
	if err != nil {
		stripped = text
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

type runeClass int

const (
	classOther runeClass = iota
	classLetter
	classDigit
)

func classify(r rune) runeClass {
	switch {
	case unicode.IsDigit(r):
		return classDigit
	case unicode.IsLetter(r):
		return classLetter
	}
	return classOther
}

// Tokenize splits normalized text on non-alphanumeric runes and at
// letter/digit transitions, so "500mg" and "500 mg" yield the same tokens.
func Tokenize(normalized string) []string {
	var (
		tokens []string
		cur    []rune
		prev   = classOther
	)
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range normalized {
		c := classify(r)
		if c == classOther || c != prev {
			flush()
		}
		if c != classOther {
			cur = append(cur, r)
		}
		prev = c
	}
	flush()
	return tokens
}

// Keywords normalizes and tokenizes text, then drops short tokens and
// stopwords. Order of first appearance is kept and duplicates removed.
func Keywords(text string) []string {
	tokens := Tokenize(Normalize(text))
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < minKeywordLen {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// Key is the comparison form of a name: its tokens joined by single spaces.
func Key(text string) string {
	return strings.Join(Tokenize(Normalize(text)), " ")
}

// numbers returns the distinct digit-only tokens in order.
func numbers(tokens []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range tokens {
		r, _ := utf8.DecodeRuneInString(tok)
		if classify(r) != classDigit {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}
