package caption

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize applies rules in order and then, if allCaps is set, uppercases
// the result. A rule whose Find occurs anywhere in the current value
// (case-insensitively) replaces the whole value, so a later rule can
// override an earlier replacement.
func Normalize(word string, rules []ReplacementRule, allCaps bool) string {
	return NewNormalizer(rules, allCaps, language.Und).Normalize(word)
}

// Normalizer is Normalize bound to a rule set and a casing locale.
// It is not safe for concurrent use.
type Normalizer struct {
	rules   []ReplacementRule
	allCaps bool
	upper   cases.Caser
}

func NewNormalizer(rules []ReplacementRule, allCaps bool, lang language.Tag) *Normalizer {
	return &Normalizer{
		rules:   rules,
		allCaps: allCaps,
		upper:   cases.Upper(lang),
	}
}

func (n *Normalizer) Normalize(word string) string {
	display := word
	for _, rule := range n.rules {
		if strings.Contains(strings.ToLower(display), strings.ToLower(rule.Find)) {
			display = rule.Replace
		}
	}
	if n.allCaps {
		display = n.upper.String(display)
	}
	return display
}

// Join normalizes each word of a batch and joins them with single spaces.
func (n *Normalizer) Join(batch []WordEntry) string {
	parts := make([]string, len(batch))
	for i, w := range batch {
		parts[i] = n.Normalize(w.Word)
	}
	return strings.Join(parts, " ")
}
