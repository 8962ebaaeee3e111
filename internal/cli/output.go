// Package cli provides output formatting for the omnisearch command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pingline/omnisearch/internal/models"
	"github.com/pingline/omnisearch/pkg/utils"
)

// OutputFormat is the format for result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one result per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a format token from a flag.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputCompact, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteSearchResults writes a ranked result list to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		for _, r := range response.Results {
			h := r.Common()
			fmt.Fprintf(w, "%s\t%s\t%.0f\t%s\n", h.Type, h.ID, h.Score, h.DisplayName)
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results for %q in %dms\n\n", response.Total, response.Query, response.QueryTime)
	for i, r := range response.Results {
		writeOneResult(w, i+1, r)
	}
}

func writeOneResult(w io.Writer, rank int, r models.Result) {
	h := r.Common()
	fmt.Fprintf(w, "%2d. [%s] %s (score %.0f)\n", rank, h.Type, h.DisplayName, h.Score)
	switch v := r.(type) {
	case *models.Contact:
		fmt.Fprintf(w, "    phone: %s", v.Phone)
		if v.Registered {
			fmt.Fprintf(w, "  (registered)")
		}
		fmt.Fprintln(w)
	case *models.User:
		fmt.Fprintf(w, "    @%s  phone: %s\n", v.Slug, v.Phone)
	case *models.Group:
		fmt.Fprintf(w, "    %d members", v.MemberCount)
		if v.IsMember {
			fmt.Fprintf(w, "  (joined)")
		}
		fmt.Fprintln(w)
	case *models.Conversation:
		fmt.Fprintf(w, "    %s", utils.Truncate(v.LastMessage, 80))
		if v.UnreadCount > 0 {
			fmt.Fprintf(w, "  [%d unread]", v.UnreadCount)
		}
		fmt.Fprintln(w)
	case *models.Message:
		fmt.Fprintf(w, "    %s\n", utils.Truncate(v.Snippet, 120))
	case *models.PhoneSuggestion:
		if v.Registered {
			fmt.Fprintf(w, "    %s is already on the platform\n", v.Phone)
		} else {
			fmt.Fprintf(w, "    invite %s\n", v.Phone)
		}
	}
	fmt.Fprintln(w)
}

// WriteSuggestions writes the empty-query buckets to w in the given format.
func WriteSuggestions(w io.Writer, response *models.SuggestionResponse, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	}

	fmt.Fprintf(w, "\nRecent chats (%d)\n", len(response.Recent))
	for _, c := range response.Recent {
		fmt.Fprintf(w, "  %s — %s\n", c.DisplayName, utils.Truncate(c.LastMessage, 60))
	}
	fmt.Fprintf(w, "\nFrequent contacts (%d)\n", len(response.Frequent))
	for _, c := range response.Frequent {
		fmt.Fprintf(w, "  %s (%s)\n", c.DisplayName, c.Phone)
	}
	fmt.Fprintf(w, "\nUnread chats (%d)\n", len(response.Unread))
	for _, c := range response.Unread {
		fmt.Fprintf(w, "  %s [%d unread]\n", c.DisplayName, c.UnreadCount)
	}
	fmt.Fprintln(w)
	return nil
}
