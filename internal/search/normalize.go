// Package search provides the unified cross-entity search engine: query
// normalization, per-source fan-out, scoring, deduplication, and the
// empty-query suggestion provider.
package search

import "strings"

// Query is the normalized form of a raw search string. Pattern is a
// lowercase SQL-LIKE pattern (runs of whitespace collapsed to a wildcard,
// wildcards at both ends, metacharacters escaped with backslash). Digits is
// the digits-only fragment. Both are always produced, even when empty.
type Query struct {
	Raw     string
	Pattern string
	Digits  string
}

// NormalizeQuery builds the text pattern and phone fragment for a raw query.
func NormalizeQuery(raw string) Query {
	trimmed := strings.TrimSpace(raw)
	fields := strings.Fields(strings.ToLower(trimmed))
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = escapeLike(f)
	}
	return Query{
		Raw:     trimmed,
		Pattern: "%" + strings.Join(escaped, "%") + "%",
		Digits:  stripNonDigits(raw),
	}
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
// The backslash is the ESCAPE character in every store query.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
