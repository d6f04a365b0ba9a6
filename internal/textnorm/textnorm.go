// Package textnorm normalizes Brazilian-Portuguese free text for matching.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// abbreviations maps informal chat spellings to their full words.
var abbreviations = map[string]string{
	"vc":   "voce",
	"vcs":  "voces",
	"pra":  "para",
	"pro":  "para o",
	"q":    "que",
	"oq":   "o que",
	"pq":   "porque",
	"tb":   "tambem",
	"tbm":  "tambem",
	"n":    "nao",
	"td":   "tudo",
	"hj":   "hoje",
	"msm":  "mesmo",
	"qto":  "quanto",
	"qdo":  "quando",
	"cmg":  "comigo",
	"blz":  "beleza",
	"obg":  "obrigado",
	"vlw":  "valeu",
	"dps":  "depois",
	"mto":  "muito",
	"mt":   "muito",
	"agr":  "agora",
	"qnd":  "quando",
	"ctz":  "certeza",
	"info": "informacao",
}

// Fold lower-cases s and strips diacritics.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Normalize folds s, replaces punctuation with spaces, expands informal
// abbreviations and collapses whitespace.
func Normalize(s string) string {
	folded := Fold(s)

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, folded)

	words := strings.Fields(cleaned)
	for i, w := range words {
		if full, ok := abbreviations[w]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}

// Tokens returns the words of an already normalized string longer than minLen runes.
func Tokens(normalized string, minLen int) []string {
	var tokens []string
	for _, w := range strings.Fields(normalized) {
		if len([]rune(w)) > minLen {
			tokens = append(tokens, w)
		}
	}
	return tokens
}
