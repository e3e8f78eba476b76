package domain

import (
	"fmt"
	"strings"
	"time"
)

// Variant identifies which transcript artifact is stored for a work item.
type Variant string

const (
	VariantRaw   Variant = "raw"
	VariantClean Variant = "clean"
)

// ParseVariant converts a string into a Variant.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantRaw, VariantClean:
		return Variant(s), nil
	}
	return "", fmt.Errorf("unknown artifact variant %q", s)
}

const artifactExt = ".txt"

// ArtifactKey returns the object key for an artifact: transcripts/<id>/<variant>.txt.
// Each identifier owns its own directory, so no identifier's key can name another's.
func ArtifactKey(identifier string, variant Variant) string {
	return ArtifactPrefix + identifier + "/" + string(variant) + artifactExt
}

// ParseArtifactKey is the inverse of ArtifactKey.
// Returns ok=false for keys that do not follow the transcript naming scheme.
func ParseArtifactKey(key string) (identifier string, variant Variant, ok bool) {
	name := strings.TrimPrefix(key, ArtifactPrefix)
	if name == key || !strings.HasSuffix(name, artifactExt) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimSuffix(name, artifactExt), "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", "", false
	}
	variant, err := ParseVariant(parts[1])
	if err != nil {
		return "", "", false
	}
	return parts[0], variant, true
}

// ArtifactInfo describes one stored artifact as reported by a listing.
type ArtifactInfo struct {
	Identifier   string    `json:"video_id"`
	Variant      Variant   `json:"variant"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// TranscriptSummary groups the artifacts stored for one identifier.
type TranscriptSummary struct {
	Identifier string `json:"video_id"`
	Title      string `json:"title"`
	HasRaw     bool   `json:"has_raw"`
	HasClean   bool   `json:"has_clean"`
	RawSize    int64  `json:"raw_size"`
	CleanSize  int64  `json:"clean_size"`
}

// ArtifactPrefix is the key prefix shared by every transcript artifact.
const ArtifactPrefix = "transcripts/"
