package textutil

import "strings"

// ChunkWords splits text into consecutive pieces of at most size words.
// Whitespace inside a piece collapses to single spaces. Empty text yields nil.
func ChunkWords(text string, size int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(words)
	}
	chunks := make([]string, 0, (len(words)+size-1)/size)
	for start := 0; start < len(words); start += size {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
