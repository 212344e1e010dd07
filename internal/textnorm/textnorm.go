// Package textnorm folds free text into comparable search terms.
//
// Every component that matches user text against store data (catalog search,
// knowledge search, intent sniffing) goes through the same pipeline so that
// "Envíos", "envios" and "ENVÍO" all meet on the same term.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopWords are dropped from queries and indexed text alike.
var stopWords = map[string]struct{}{
	// es
	"de": {}, "la": {}, "el": {}, "los": {}, "las": {}, "un": {}, "una": {}, "unos": {}, "unas": {},
	"que": {}, "en": {}, "con": {}, "por": {}, "para": {}, "del": {}, "al": {}, "se": {}, "su": {},
	"sus": {}, "es": {}, "son": {}, "lo": {}, "le": {}, "les": {}, "me": {}, "mi": {}, "tu": {},
	"te": {}, "y": {}, "o": {}, "a": {}, "como": {}, "mas": {}, "muy": {}, "hay": {}, "este": {},
	"esta": {}, "estos": {}, "estas": {}, "ese": {}, "esa": {}, "tienes": {}, "tienen": {}, "tiene": {},
	"hacen": {}, "puedo": {}, "quiero": {}, "algun": {}, "alguna": {}, "sobre": {}, "cual": {}, "cuales": {},
	// en
	"the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {}, "for": {}, "is": {}, "are": {},
	"do": {}, "you": {}, "have": {}, "what": {}, "with": {},
}

// Fold lowercases s and strips combining marks ("Envío" -> "envio").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Words splits folded text on every rune that is not a letter or digit.
// Stop words and single-rune words are kept; see Terms for search terms.
func Words(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Stem applies a light plural strip so that "laptops" meets "laptop" and
// "devoluciones" meets "devolucion". Input must already be folded.
func Stem(w string) string {
	n := len([]rune(w))
	switch {
	case n > 4 && strings.HasSuffix(w, "es"):
		return strings.TrimSuffix(w, "es")
	case n > 3 && strings.HasSuffix(w, "s"):
		return strings.TrimSuffix(w, "s")
	}
	return w
}

// Terms returns the distinct stemmed search terms of s in first-seen order.
func Terms(s string) []string {
	words := Words(s)
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) < 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		st := Stem(w)
		if _, dup := seen[st]; dup {
			continue
		}
		seen[st] = struct{}{}
		out = append(out, st)
	}
	return out
}

// TermSet is Terms as a set, used for indexed fields.
func TermSet(s string) map[string]struct{} {
	terms := Terms(s)
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	return set
}

// Truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	// last rune start at or before max
	cut := 0
	for i := range s {
		if i > max {
			break
		}
		cut = i
	}
	return s[:cut]
}

// FirstSentence returns s up to and including its first sentence terminator
// run ('.', '!' or '?') that is followed by whitespace or the end of text.
func FirstSentence(s string) string {
	s = strings.TrimSpace(s)
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		if !isTerminator(rs[i]) {
			continue
		}
		j := i
		for j+1 < len(rs) && isTerminator(rs[j+1]) {
			j++
		}
		if j+1 == len(rs) || unicode.IsSpace(rs[j+1]) {
			return string(rs[:j+1])
		}
		i = j
	}
	return s
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
