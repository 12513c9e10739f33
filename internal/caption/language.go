package caption

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DetectLanguage guesses the transcript language from its words. It returns
// language.Und when the text is empty or the guess is not reliable.
func DetectLanguage(words []WordEntry) language.Tag {
	if len(words) == 0 {
		return language.Und
	}

	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w.Word)
	}

	info := whatlanggo.Detect(b.String())
	if !info.IsReliable() {
		return language.Und
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return language.Und
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und
	}
	return tag
}
