package converter

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"
)

const (
	minLanguageSample = 40
	maxLanguageSample = 4000
)

// detectableLanguages bounds which models lingua loads.
var detectableLanguages = []lingua.Language{
	lingua.English, lingua.German, lingua.French, lingua.Spanish,
	lingua.Portuguese, lingua.Italian, lingua.Dutch, lingua.Polish,
	lingua.Swedish, lingua.Russian, lingua.Japanese, lingua.Chinese,
	lingua.Korean,
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

func languageDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectableLanguages...).
			WithMinimumRelativeDistance(0.1).
			WithLowAccuracyMode().
			Build()
	})
	return detector
}

// detectLanguage returns a lowercase ISO-639-1 code, or "" when the text is
// too short or ambiguous.
func detectLanguage(text string) string {
	sample := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(sample) < minLanguageSample {
		return ""
	}
	if len(sample) > maxLanguageSample {
		sample = sample[:maxLanguageSample]
		for !utf8.ValidString(sample) {
			sample = sample[:len(sample)-1]
		}
	}

	lang, ok := languageDetector().DetectLanguageOf(sample)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}

// declaredLanguage reads <html lang="..."> and keeps the primary subtag.
func declaredLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if len(lang) != 2 {
		return ""
	}
	return lang
}
