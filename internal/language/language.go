package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"kthgpt/internal/services"
)

// Language is a lecture language the pipeline can prompt in.
type Language string

const (
	English Language = "en"
	Swedish Language = "sv"
)

// Supported lists every language with prompt coverage, in display order.
var Supported = []Language{English, Swedish}

var words = map[string]Language{
	"english":  English,
	"engelska": English,
	"swedish":  Swedish,
	"svenska":  Swedish,
}

// Parse accepts ISO 639 codes ("sv", "swe"), BCP 47 tags ("en-US"), and word
// forms ("Swedish", "svenska"). Anything else is an unsupported language.
func Parse(value string) (Language, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty language", services.ErrUnsupportedLanguage)
	}
	if lang, ok := words[trimmed]; ok {
		return lang, nil
	}
	base, err := language.ParseBase(trimmed)
	if err != nil {
		tag, tagErr := language.Parse(trimmed)
		if tagErr != nil {
			return "", fmt.Errorf("%w: %q", services.ErrUnsupportedLanguage, value)
		}
		base, _ = tag.Base()
	}
	lang := Language(base.String())
	if !lang.Valid() {
		return "", fmt.Errorf("%w: %q", services.ErrUnsupportedLanguage, value)
	}
	return lang, nil
}

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	for _, candidate := range Supported {
		if l == candidate {
			return true
		}
	}
	return false
}

// Tag returns the BCP 47 tag for l.
func (l Language) Tag() language.Tag {
	return language.Make(string(l))
}

// String returns the ISO 639-1 code.
func (l Language) String() string {
	return string(l)
}

// DisplayName returns the English name of the language ("Swedish").
func (l Language) DisplayName() string {
	if !l.Valid() {
		return strings.ToUpper(string(l))
	}
	return display.English.Languages().Name(l.Tag())
}

// NativeName returns the language's name in itself ("svenska").
func (l Language) NativeName() string {
	if !l.Valid() {
		return strings.ToUpper(string(l))
	}
	return display.Self.Name(l.Tag())
}
