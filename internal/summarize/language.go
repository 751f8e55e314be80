package summarize

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"
)

// languageFromSubtitlePath extracts the language tag embedded in a subtitle
// file name such as "vid1.en.srt". Tokens that do not parse as a known
// language tag are ignored.
func languageFromSubtitlePath(path string) string {
	base := filepath.Base(path)
	parts := strings.Split(base, ".")
	if len(parts) < 3 {
		return ""
	}
	tag, err := language.Parse(parts[len(parts)-2])
	if err != nil || tag == language.Und {
		return ""
	}
	return strings.ToLower(tag.String())
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// detectLanguage statistically identifies the transcript language and returns
// its ISO 639-1 code. Empty or unrecognizable text returns "".
func detectLanguage(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(
				lingua.English, lingua.German, lingua.French, lingua.Spanish,
				lingua.Italian, lingua.Portuguese, lingua.Dutch, lingua.Polish,
				lingua.Russian, lingua.Japanese, lingua.Korean, lingua.Chinese,
			).
			Build()
	})
	if runes := []rune(text); len(runes) > 4000 {
		text = string(runes[:4000])
	}
	lang, ok := detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
