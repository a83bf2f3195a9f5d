package stage

import (
	"kthgpt/internal/language"
	"kthgpt/internal/services"
	"kthgpt/internal/store"
)

// LectureLanguage parses the lecture's language code.
// On failure it returns a services.ErrUnsupportedLanguage suitable for stage Execute methods.
func LectureLanguage(lecture *store.Lecture) (language.Language, error) {
	if lecture == nil {
		return "", services.Wrap(services.ErrValidation, "stage", "lecture language", "lecture is required", nil)
	}
	lang, err := language.Parse(lecture.Language)
	if err != nil {
		return "", services.Wrap(
			services.ErrUnsupportedLanguage, "stage", "lecture language",
			"Lecture language is not supported; re-add the lecture as en or sv", err)
	}
	return lang, nil
}
