package texttospeech

import (
	"fmt"
	"regexp"
)

// WrapLanguage wraps text in the inline language markup used between the
// pipeline and synthesis clients. The code is a BCP 47 language tag.
func WrapLanguage(language, text string) string {
	return fmt.Sprintf("<lang xml:lang=%q>%s</lang>", language, text)
}

var languageTagPattern = regexp.MustCompile(`</?lang[^>]*>`)

// StripLanguageTags removes inline language markup, leaving only the
// spoken text. Clients that cannot switch voices mid-utterance should
// run their input through this before synthesis.
func StripLanguageTags(text string) string {
	return languageTagPattern.ReplaceAllString(text, "")
}
