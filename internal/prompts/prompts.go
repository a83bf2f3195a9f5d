package prompts

import (
	"fmt"
	"strings"

	"kthgpt/internal/language"
	"kthgpt/internal/services"
)

// ChunkInput describes one subsection of a lecture transcript to summarize.
type ChunkInput struct {
	// Previous holds the summaries produced for earlier chunks. It is only
	// rendered when IncludePrevious is set.
	Previous        string
	IncludePrevious bool
	Transcript      string
	MaxWords        int
}

// Set is the family of prompt builders for one language.
type Set struct {
	Language language.Language

	// Query asks a free-form question about a lecture's summary.
	Query func(summary, question string) string
	// ChunkSummary condenses one transcript chunk.
	ChunkSummary func(in ChunkInput) string
	// LectureSummary condenses the joined chunk summaries into an overview.
	LectureSummary func(summary string, maxWords int) string
}

var sets = map[language.Language]Set{
	language.English: {
		Language:       language.English,
		Query:          englishQuery,
		ChunkSummary:   englishChunk,
		LectureSummary: englishLecture,
	},
	language.Swedish: {
		Language:       language.Swedish,
		Query:          swedishQuery,
		ChunkSummary:   swedishChunk,
		LectureSummary: swedishLecture,
	},
}

// For returns the prompt builders for lang.
func For(lang language.Language) (Set, error) {
	set, ok := sets[lang]
	if !ok {
		return Set{}, fmt.Errorf("%w: no prompts for %q", services.ErrUnsupportedLanguage, lang)
	}
	return set, nil
}

func englishQuery(summary, question string) string {
	return strings.TrimSpace(fmt.Sprintf(`
Answer the following prompt about a recorded lecture.

Lecture:
%s

Prompt:
%s

Answer:
`, summary, question))
}

func swedishQuery(summary, question string) string {
	return strings.TrimSpace(fmt.Sprintf(`
Svara på följande fråga om en inspelad föreläsning.

Innehållet i föreläsningen:
%s

Fråga:
%s

Svar:
`, summary, question))
}

func englishChunk(in ChunkInput) string {
	previous := ""
	if in.IncludePrevious {
		previous = fmt.Sprintf("\nThe lecture has previously covered:\n%s\n", in.Previous)
	}
	return strings.TrimSpace(fmt.Sprintf(`
Summarize the transcript of a subsection of the lecture, use no more than %d words.
%s
Transcript:
%s

Transcript summary:
`, in.MaxWords, previous, in.Transcript))
}

func swedishChunk(in ChunkInput) string {
	previous := ""
	if in.IncludePrevious {
		previous = fmt.Sprintf("\nFöreläsningens innehåll hittills:\n%s\n", in.Previous)
	}
	return strings.TrimSpace(fmt.Sprintf(`
Sammanfatta nästa del av föreläsningen, använd max %d ord.
%s
Nästa del:
%s

Sammanfattning:
`, in.MaxWords, previous, in.Transcript))
}

func englishLecture(summary string, maxWords int) string {
	return strings.TrimSpace(fmt.Sprintf(`
Summarize the contents of this lecture into no more than %d words.

The lecture is about:
%s

Summary:
`, maxWords, summary))
}

func swedishLecture(summary string, maxWords int) string {
	return strings.TrimSpace(fmt.Sprintf(`
Sammanfatta innehållet i den här föreläsningen, använd max %d ord.

Föreläsningen handlar om:
%s

Sammanfattning:
`, maxWords, summary))
}
