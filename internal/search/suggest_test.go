package search

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pingline/omnisearch/internal/models"
)

func newTestSuggester(store *fakeStore) *Suggester {
	return NewSuggester(store, store, store, testSearchConfig(), zap.NewNop())
}

func TestSuggestBuckets(t *testing.T) {
	now := time.Now()
	store := seededStore()
	store.recent = []*models.ConversationRecord{
		{ID: "v1", PeerName: "John Doe", LastMessageAt: now, UnreadCount: 2},
		{ID: "v2", PeerName: "Auntie Rose", LastMessageAt: now.Add(-time.Hour)},
	}
	store.unreadConvs = store.recent[:1]
	store.frequent = []*models.FrequentPeer{
		{UserID: "u2", MessageCount: 40},
		{UserID: "u7", MessageCount: 5}, // not in the address book
	}
	s := newTestSuggester(store)

	resp, err := s.Suggest(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(resp.Recent) != 2 {
		t.Errorf("recent = %d, want 2", len(resp.Recent))
	}
	if len(resp.Unread) != 1 || resp.Unread[0].UnreadCount == 0 {
		t.Errorf("unread bucket wrong: %+v", resp.Unread)
	}
	if len(resp.Frequent) != 1 {
		t.Fatalf("frequent = %d, want 1 (non-contact peers are skipped)", len(resp.Frequent))
	}
	if resp.Frequent[0].ContactID != "c1" {
		t.Errorf("frequent contact = %s, want c1", resp.Frequent[0].ContactID)
	}
	// Suggestions bypass scoring entirely.
	for _, c := range resp.Recent {
		if c.Score != 0 {
			t.Errorf("suggestion carries a score: %v", c.Score)
		}
	}
}

func TestSuggestEmptyStateReturnsEmptyBuckets(t *testing.T) {
	s := newTestSuggester(&fakeStore{})
	resp, err := s.Suggest(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if resp.Recent == nil || resp.Frequent == nil || resp.Unread == nil {
		t.Error("buckets must be empty slices, not nil, for JSON encoding")
	}
	if len(resp.Recent)+len(resp.Frequent)+len(resp.Unread) != 0 {
		t.Errorf("expected empty buckets, got %+v", resp)
	}
}

func TestSuggestCancellation(t *testing.T) {
	s := newTestSuggester(seededStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Suggest(ctx, "u1", 10); err == nil {
		t.Error("cancelled context must fail the call")
	}
}
