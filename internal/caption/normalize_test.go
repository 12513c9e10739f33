package caption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		word    string
		rules   []ReplacementRule
		allCaps bool
		want    string
	}{
		{name: "no rules", word: "hello", want: "hello"},
		{name: "empty word", word: "", want: ""},
		{
			name:  "substring match replaces whole word",
			word:  "damnation",
			rules: []ReplacementRule{{Find: "damn", Replace: "d**n"}},
			want:  "d**n",
		},
		{
			name:  "case insensitive",
			word:  "HeLLo",
			rules: []ReplacementRule{{Find: "hello", Replace: "hi"}},
			want:  "hi",
		},
		{
			name:  "no match keeps word",
			word:  "world",
			rules: []ReplacementRule{{Find: "hello", Replace: "hi"}},
			want:  "world",
		},
		{
			name: "later rule overrides earlier replacement",
			word: "cat",
			rules: []ReplacementRule{
				{Find: "cat", Replace: "dog"},
				{Find: "do", Replace: "wolf"},
			},
			want: "wolf",
		},
		{
			name: "later rule tested against replaced value",
			word: "cat",
			rules: []ReplacementRule{
				{Find: "cat", Replace: "dog"},
				{Find: "cat", Replace: "lion"},
			},
			want: "dog",
		},
		{
			name:    "all caps after replacement",
			word:    "heck",
			rules:   []ReplacementRule{{Find: "heck", Replace: "h*ck"}},
			allCaps: true,
			want:    "H*CK",
		},
		{name: "all caps only", word: "hello", allCaps: true, want: "HELLO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.word, tt.rules, tt.allCaps))
		})
	}
}

func TestNormalize_ReplacementIdempotent(t *testing.T) {
	rules := []ReplacementRule{
		{Find: "damn", Replace: "[censored]"},
		{Find: "hell", Replace: "h***"},
	}
	for _, word := range []string{"damnit", "hello", "shell", "fine", ""} {
		once := Normalize(word, rules, false)
		twice := Normalize(once, rules, false)
		assert.Equal(t, once, twice, word)
	}
}

func TestNormalizer_LocaleAwareUpper(t *testing.T) {
	n := NewNormalizer(nil, true, language.Turkish)
	assert.Equal(t, "İSTANBUL", n.Normalize("istanbul"))

	n = NewNormalizer(nil, true, language.Und)
	assert.Equal(t, "ISTANBUL", n.Normalize("istanbul"))
}

func TestNormalizer_Join(t *testing.T) {
	n := NewNormalizer([]ReplacementRule{{Find: "b", Replace: "x"}}, false, language.Und)
	got := n.Join([]WordEntry{{Word: "a"}, {Word: "b"}, {Word: "c"}})
	assert.Equal(t, "a x c", got)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, language.Und, DetectLanguage(nil))

	words := make([]WordEntry, 0)
	for _, w := range []string{
		"the", "quick", "brown", "fox", "jumps", "over", "the", "lazy", "dog",
		"and", "then", "it", "runs", "back", "into", "the", "forest", "where",
		"it", "lives", "with", "the", "rest", "of", "its", "family",
	} {
		words = append(words, WordEntry{Word: w})
	}
	assert.Equal(t, language.English, DetectLanguage(words))
}
