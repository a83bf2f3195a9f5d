// Package language defines the closed set of lecture languages and parses
// user input into it.
//
// Codes, BCP 47 tags, and word forms are normalized through
// golang.org/x/text/language so "swe", "sv-SE", and "Swedish" all resolve to
// the same value. Unknown input fails with services.ErrUnsupportedLanguage.
package language
