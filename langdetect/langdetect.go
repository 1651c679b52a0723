// Package langdetect identifies the language of short text snippets.
package langdetect

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Languages the detector distinguishes.
var detectable = []lingua.Language{
	lingua.English,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Russian,
	lingua.Arabic,
	lingua.Hindi,
	lingua.Dutch,
	lingua.Polish,
	lingua.Turkish,
	lingua.Vietnamese,
	lingua.Thai,
	lingua.Indonesian,
	lingua.Swedish,
	lingua.Ukrainian,
}

var (
	loadOnce sync.Once
	detector lingua.LanguageDetector
)

// The models are large, so the detector is built on first use.
func load() lingua.LanguageDetector {
	loadOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectable...).
			Build()
	})
	return detector
}

// Detect returns the ISO 639-1 code and English display name of the
// language of text. It returns ("auto", "") when the text is empty or
// too ambiguous to call.
func Detect(text string) (code, name string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "auto", ""
	}

	lang, ok := load().DetectLanguageOf(text)
	if !ok {
		return "auto", ""
	}

	code = strings.ToLower(lang.IsoCode639_1().String())
	return code, DisplayName(code)
}

// DisplayName returns the English name for an ISO 639-1 code, or the
// code itself when it is not a recognized tag.
func DisplayName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}
