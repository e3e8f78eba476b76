package domain

// Chunk is a bounded segment of a transcript used during cleaning.
// Chunks are never persisted.
type Chunk struct {
	Index int
	Text  string
}

// ChunkFailure records a chunk that could not be transformed.
// The original text of the chunk is kept in the reassembled output.
type ChunkFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// MaxIndexTitleLength caps the title stored in the search index.
const MaxIndexTitleLength = 1000

// IndexDocument is the searchable projection of a work item and its clean transcript.
type IndexDocument struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	URL      string `json:"url"`
}

// NewIndexDocument builds the index projection for an identifier.
func NewIndexDocument(identifier, title, content string) *IndexDocument {
	if len(title) > MaxIndexTitleLength {
		title = truncateUTF8(title, MaxIndexTitleLength)
	}
	return &IndexDocument{
		ID:       identifier,
		ParentID: identifier,
		Title:    title,
		Content:  content,
		URL:      WatchURL(identifier),
	}
}

// SearchHit is one ranked result from the search index.
type SearchHit struct {
	ID         string   `json:"id"`
	ParentID   string   `json:"video_id"`
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Score      float64  `json:"score"`
	Highlights []string `json:"highlights,omitempty"`
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
