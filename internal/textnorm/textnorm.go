// Package textnorm folds user text into a comparable form and matches
// keywords against it on word boundaries.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Keywords whose last word is shorter than this must match a whole word;
// longer ones may match as a word prefix ("ombro" matches "ombros").
const prefixMinRunes = 4

// Fold lowercases s, strips diacritics and turns everything that is not a
// letter or digit into a single space. The result has no leading or
// trailing space.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	space := true
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSuffix(b.String(), " ")
}

// Contains reports whether the folded text contains kw. kw is folded here,
// text is expected to be the output of Fold already.
func Contains(text, kw string) bool {
	found := false
	occurrences(text, kw, func(int) bool {
		found = true
		return false
	})
	return found
}

// negators are words that cancel the keyword right after them.
var negators = map[string]struct{}{
	"sem": {}, "nem": {}, "nao": {}, "nunca": {}, "nenhum": {}, "nenhuma": {},
	"without": {}, "not": {}, "never": {}, "nor": {},
}

// ContainsAffirmed is Contains that ignores occurrences directly preceded by
// a negation, so "sem trauma" does not contain "trauma".
func ContainsAffirmed(text, kw string) bool {
	found := false
	occurrences(text, kw, func(start int) bool {
		words := strings.Fields(text[:start])
		if len(words) > 0 {
			if _, neg := negators[words[len(words)-1]]; neg {
				return true
			}
		}
		found = true
		return false
	})
	return found
}

// occurrences calls fn with the byte offset in text of each match of kw
// until fn returns false.
func occurrences(text, kw string, fn func(start int) bool) {
	kw = Fold(kw)
	if kw == "" || text == "" {
		return
	}
	whole := lastWordLen(kw) < prefixMinRunes

	padded := " " + text + " "
	needle := " " + kw
	for from := 0; ; {
		i := strings.Index(padded[from:], needle)
		if i < 0 {
			return
		}
		at := from + i
		end := at + len(needle)
		if !whole || padded[end] == ' ' {
			if !fn(at) {
				return
			}
		}
		from = at + 1
	}
}

// ContainsAny reports whether any keyword matches the folded text.
func ContainsAny(text string, kws []string) bool {
	for _, kw := range kws {
		if Contains(text, kw) {
			return true
		}
	}
	return false
}

// HasContent reports whether s carries at least one letter or digit.
func HasContent(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func lastWordLen(kw string) int {
	if i := strings.LastIndexByte(kw, ' '); i >= 0 {
		kw = kw[i+1:]
	}
	return len([]rune(kw))
}
