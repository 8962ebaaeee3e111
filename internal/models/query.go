package models

import (
	"encoding/json"
	"fmt"
)

// Filter selects which sources run, except FilterUnread which is a
// post-filter over the merged list.
type Filter string

const (
	FilterContacts Filter = "contacts"
	FilterUsers    Filter = "users"
	FilterGroups   Filter = "groups"
	FilterMessages Filter = "messages"
	FilterUnread   Filter = "unread"
)

// ParseFilter maps a filter token to its Filter value. Unrecognized tokens
// return ok=false and are ignored by callers rather than rejected.
func ParseFilter(s string) (Filter, bool) {
	switch Filter(s) {
	case FilterContacts, FilterUsers, FilterGroups, FilterMessages, FilterUnread:
		return Filter(s), true
	default:
		return "", false
	}
}

// SearchRequest is a search call. An empty Query routes to the suggestion
// provider instead of the scoring pipeline.
type SearchRequest struct {
	RequesterID string   `json:"requester_id"`
	Query       string   `json:"query"`
	Filters     []string `json:"filters,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// Validate checks request fields the caller is responsible for. Limit zero
// means "use the configured default"; negative limits are the one caller
// error that fails a search outright.
func (r *SearchRequest) Validate() error {
	if r.RequesterID == "" {
		return fmt.Errorf("requester_id is required")
	}
	if r.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	return nil
}

// FilterSet parses the raw filter tokens, dropping unknown ones.
func (r *SearchRequest) FilterSet() map[Filter]bool {
	set := make(map[Filter]bool, len(r.Filters))
	for _, raw := range r.Filters {
		if f, ok := ParseFilter(raw); ok {
			set[f] = true
		}
	}
	return set
}

// SearchResponse is the ranked result list for a non-empty query.
type SearchResponse struct {
	Results   []Result `json:"results"`
	Total     int      `json:"total"`
	QueryTime int64    `json:"query_time_ms"`
	Query     string   `json:"query"`
}

// UnmarshalJSON restores the concrete result variants behind the Result
// interface, so clients can round-trip a response through the HTTP API.
func (r *SearchResponse) UnmarshalJSON(data []byte) error {
	var aux struct {
		Results   []json.RawMessage `json:"results"`
		Total     int               `json:"total"`
		QueryTime int64             `json:"query_time_ms"`
		Query     string            `json:"query"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Results = make([]Result, len(aux.Results))
	for i, raw := range aux.Results {
		res, err := UnmarshalResult(raw)
		if err != nil {
			return err
		}
		r.Results[i] = res
	}
	r.Total = aux.Total
	r.QueryTime = aux.QueryTime
	r.Query = aux.Query
	return nil
}

// SuggestionResponse is the empty-query response: three independently
// limited buckets, no scoring.
type SuggestionResponse struct {
	Recent   []*Conversation `json:"recent"`
	Frequent []*Contact      `json:"frequent"`
	Unread   []*Conversation `json:"unread"`
}
