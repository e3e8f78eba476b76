package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int, word string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = word
	}
	return strings.Join(parts, " ")
}

func TestSplitEmpty(t *testing.T) {
	assert.Empty(t, Split("", 100))
	assert.Empty(t, Split("  \n\t ", 100))
}

func TestSplitFitsInOneChunk(t *testing.T) {
	chunks := Split("the quick brown fox", 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "the quick brown fox", chunks[0].Text)
}

func TestSplitRespectsLimit(t *testing.T) {
	// "abcd" is 4 bytes; two words with a space are 9 bytes.
	text := words(10, "abcd")
	chunks := Split(text, 9)
	require.Len(t, chunks, 5)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "abcd abcd", c.Text)
		assert.LessOrEqual(t, len(c.Text), 9)
	}
}

func TestSplitOversizedWordStandsAlone(t *testing.T) {
	long := strings.Repeat("x", 30)
	chunks := SplitTexts("a "+long+" b", 10)
	assert.Equal(t, []string{"a", long, "b"}, chunks)
}

func TestSplitPreservesWordsInOrder(t *testing.T) {
	text := "Murray serves wide\n\nDjokovic   returns down the line and the crowd erupts"
	chunks := SplitTexts(text, 20)
	require.Greater(t, len(chunks), 1)

	var rejoined []string
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 20)
		rejoined = append(rejoined, strings.Fields(c)...)
	}
	assert.Equal(t, strings.Fields(text), rejoined)
}

func TestSplitIsDeterministic(t *testing.T) {
	text := words(500, "rally")
	assert.Equal(t, Split(text, 64), Split(text, 64))
}

func TestSplitLargeTranscript(t *testing.T) {
	// 20000 bytes: 2000 ten-byte tokens with separators.
	text := words(2000, "forehand!")
	require.Len(t, text, 2000*10-1)

	chunks := SplitTexts(text, 8000)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 7999)
	assert.Len(t, chunks[1], 7999)
	assert.Len(t, chunks[2], 3999)
}
