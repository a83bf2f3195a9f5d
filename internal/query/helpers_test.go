package query_test

import (
	"strconv"
	"testing"

	"kthgpt/internal/language"
	"kthgpt/internal/prompts"
)

func mustParseID(t *testing.T, value string) int64 {
	t.Helper()
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		t.Fatalf("parse id %q: %v", value, err)
	}
	return id
}

func englishPrompt(t *testing.T, summary, question string) string {
	t.Helper()
	set, err := prompts.For(language.English)
	if err != nil {
		t.Fatalf("prompts.For: %v", err)
	}
	return set.Query(summary, question)
}
