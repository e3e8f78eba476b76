// Package chunker splits long transcripts into bounded segments and drives a
// text transformer across them, reassembling the result in order.
package chunker

import (
	"strings"

	"github.com/timmy/courtside/internal/domain"
)

// wordSeparator joins words inside a chunk.
const wordSeparator = " "

// Split breaks text into chunks of at most maxChunkBytes bytes on whitespace
// boundaries. Words are never divided; a single word longer than maxChunkBytes
// becomes its own chunk. Runs of whitespace collapse to a single space.
// Empty or whitespace-only input yields no chunks.
func Split(text string, maxChunkBytes int) []domain.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxChunkBytes <= 0 {
		maxChunkBytes = 1
	}

	chunks := make([]domain.Chunk, 0, len(text)/maxChunkBytes+1)
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, domain.Chunk{Index: len(chunks), Text: current.String()})
		current.Reset()
	}

	for _, word := range words {
		size := len(word)
		if current.Len() > 0 {
			size += len(wordSeparator)
		}
		if current.Len() > 0 && current.Len()+size > maxChunkBytes {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(wordSeparator)
		}
		current.WriteString(word)
	}
	flush()

	return chunks
}

// SplitTexts is Split returning only the chunk texts.
func SplitTexts(text string, maxChunkBytes int) []string {
	chunks := Split(text, maxChunkBytes)
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
