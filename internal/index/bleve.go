// Package index provides the Bleve-backed message text index, an optional
// replacement for SQLite substring matching on message bodies.
package index

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/pingline/omnisearch/internal/models"
	"github.com/pingline/omnisearch/internal/storage"
)

// messageDoc is the indexed shape of a message.
type messageDoc struct {
	Body       string `json:"body"`
	Attachment string `json:"attachment"`
}

// Messages is a Bleve index over message bodies and attachment filenames.
// Hits are hydrated through the message store, which re-applies the
// requester's conversation-membership scoping; the index itself holds no
// access-control state.
type Messages struct {
	index bleve.Index
	store storage.MessageStore
}

// NewMessages creates or opens a message index at path. An existing index is
// reused; if the mapping changes in code, remove the index directory to force
// a rebuild.
func NewMessages(path string, store storage.MessageStore) (*Messages, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries match
	// the words people actually typed.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("body", textFieldMapping)
	docMapping.AddFieldMappingsAt("attachment", textFieldMapping)
	im.AddDocumentMapping("message", docMapping)
	im.DefaultType = "message"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open message index: %w", openErr)
		}
		return &Messages{index: idx, store: store}, nil
	}

	idx, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create message index: %w", err)
	}
	return &Messages{index: idx, store: store}, nil
}

// IndexMessage adds or updates one message in the index.
func (m *Messages) IndexMessage(ctx context.Context, rec *models.MessageRecord) error {
	return m.index.Index(rec.ID, &messageDoc{Body: rec.Body, Attachment: rec.AttachmentName})
}

// DeleteMessage removes a message from the index.
func (m *Messages) DeleteMessage(ctx context.Context, id string) error {
	return m.index.Delete(id)
}

// SearchMessages satisfies the message source contract. The LIKE pattern the
// normalizer produced is decomposed back into its terms, matched against the
// index, and the hit ids are hydrated through the store so only messages in
// the requester's conversations come back.
func (m *Messages) SearchMessages(ctx context.Context, requesterID, pattern string, limit int) ([]*models.MessageRecord, error) {
	terms := patternTerms(pattern)
	if len(terms) == 0 {
		return nil, nil
	}

	q := bleve.NewMatchQuery(strings.Join(terms, " "))
	req := bleve.NewSearchRequest(q)
	// Oversample: membership scoping during hydration can drop hits.
	req.Size = limit * 3
	if req.Size < 50 {
		req.Size = 50
	}

	results, err := m.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("message index search failed: %w", err)
	}
	if len(results.Hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(results.Hits))
	for i, hit := range results.Hits {
		ids[i] = hit.ID
	}
	recs, err := m.store.MessagesByIDs(ctx, requesterID, ids)
	if err != nil {
		return nil, err
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// DocCount returns the number of indexed messages.
func (m *Messages) DocCount() (uint64, error) {
	return m.index.DocCount()
}

// Close closes the underlying index.
func (m *Messages) Close() error {
	return m.index.Close()
}

// patternTerms recovers the original query tokens from a LIKE pattern:
// unescaped % separates tokens, and backslash escapes revert to their
// literal characters.
func patternTerms(pattern string) []string {
	var terms []string
	var b strings.Builder
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			if b.Len() > 0 {
				terms = append(terms, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		terms = append(terms, b.String())
	}
	return terms
}
