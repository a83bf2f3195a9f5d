package textutil

import (
	"reflect"
	"testing"
)

func TestChunkWords(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want []string
	}{
		{"empty", "   ", 3, nil},
		{"exact", "a b c d e f", 3, []string{"a b c", "d e f"}},
		{"remainder", "a b c d", 3, []string{"a b c", "d"}},
		{"collapses whitespace", "a\n\nb\tc", 5, []string{"a b c"}},
		{"non-positive size", "a b c", 0, []string{"a b c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChunkWords(tt.text, tt.size); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ChunkWords(%q, %d) = %#v, want %#v", tt.text, tt.size, got, tt.want)
			}
		})
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount(" one two\nthree "); got != 3 {
		t.Fatalf("WordCount = %d, want 3", got)
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := map[string]string{
		"0_blzql89t": "0_blzql89t",
		"Lecture 1!": "lecture_1",
		"  ":         "unknown",
		"///":        "unknown",
	}
	for input, want := range tests {
		if got := SanitizeToken(input); got != want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("hello world", 6); got != "hello…" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("hello", 0); got != "" {
		t.Fatalf("unexpected %q", got)
	}
}
