package search

import (
	"strings"
	"unicode/utf8"
)

const (
	// snippetWindow is the total excerpt length around a match, in characters.
	snippetWindow = 60
	// snippetLead is how many characters before the match the window starts.
	snippetLead = 20
)

// MessageSnippet extracts a bounded excerpt of body around the first
// case-insensitive occurrence of query. When the query does not occur in the
// body, the attachment filename is used if present, else a fixed-length
// truncation of the body. Window bounds are measured in runes so multibyte
// bodies are never cut mid-character.
func MessageSnippet(body, query, attachmentName string) string {
	q := strings.TrimSpace(query)
	idx := -1
	if q != "" {
		lower := strings.ToLower(body)
		if byteIdx := strings.Index(lower, strings.ToLower(q)); byteIdx >= 0 {
			idx = utf8.RuneCountInString(lower[:byteIdx])
		}
	}
	runes := []rune(body)
	if idx < 0 {
		if attachmentName != "" {
			return attachmentName
		}
		if len(runes) <= snippetWindow {
			return body
		}
		return string(runes[:snippetWindow]) + "…"
	}

	start := idx - snippetLead
	if start < 0 {
		start = 0
	}
	end := start + snippetWindow
	if end > len(runes) {
		end = len(runes)
	}

	out := string(runes[start:end])
	if start > 0 {
		out = "…" + out
	}
	if end < len(runes) {
		out += "…"
	}
	return out
}
