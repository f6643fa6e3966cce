// Package chunker splits extracted document text into fixed-size word-count
// segments. A chunk is the unit of retrieval: each one is embedded and
// indexed separately, and identified by its 0-based position in the result.
package chunker

import "strings"

// DefaultChunkSize is the number of words per chunk used when the caller
// does not configure one.
const DefaultChunkSize = 500

// Split breaks text into consecutive groups of chunkSize words. Words are
// separated by any run of whitespace; the original whitespace structure is
// discarded and words inside a chunk are rejoined with a single space. The
// final chunk may hold fewer than chunkSize words.
//
// Empty or whitespace-only text yields a nil slice. A chunkSize of zero or
// less falls back to DefaultChunkSize.
func Split(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(words)+chunkSize-1)/chunkSize)
	for start := 0; start < len(words); start += chunkSize {
		end := min(start+chunkSize, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}

	return chunks
}
