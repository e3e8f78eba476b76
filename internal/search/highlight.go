package search

import (
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const (
	highlightOpen  = "<strong>"
	highlightClose = "</strong>"

	excerptRadius = 120
	maxExcerpts   = 3
)

// queryTerms lower-cases text and splits it into distinct terms of two or more runes.
func queryTerms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// Excerpts cuts up to three windows of content around query term matches and wraps
// each match in <strong>. Content is HTML-escaped before tagging.
func Excerpts(content, query string) []string {
	terms := queryTerms(query)
	if len(terms) == 0 || content == "" {
		return nil
	}

	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	// Longest first so "federer" wins over "fed".
	sort.Slice(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	re := regexp.MustCompile(`(?i)(` + strings.Join(quoted, "|") + `)`)

	matches := re.FindAllStringIndex(content, -1)
	if len(matches) == 0 {
		return nil
	}

	var out []string
	lastEnd := -1
	for _, m := range matches {
		if len(out) == maxExcerpts {
			break
		}
		if m[0] < lastEnd {
			continue
		}
		start := clampToRune(content, m[0]-excerptRadius)
		end := clampToRune(content, m[1]+excerptRadius)
		window := content[start:end]

		var b strings.Builder
		prev := 0
		for _, wm := range re.FindAllStringIndex(window, -1) {
			b.WriteString(html.EscapeString(window[prev:wm[0]]))
			b.WriteString(highlightOpen)
			b.WriteString(html.EscapeString(window[wm[0]:wm[1]]))
			b.WriteString(highlightClose)
			prev = wm[1]
		}
		b.WriteString(html.EscapeString(window[prev:]))

		excerpt := strings.TrimSpace(b.String())
		if start > 0 {
			excerpt = "…" + excerpt
		}
		if end < len(content) {
			excerpt += "…"
		}
		out = append(out, excerpt)
		lastEnd = end
	}
	return out
}

// clampToRune bounds i to [0, len(s)] and moves it back to a rune start.
func clampToRune(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && s[i]&0xC0 == 0x80 {
		i--
	}
	return i
}
