package search

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pingline/omnisearch/internal/config"
	"github.com/pingline/omnisearch/internal/models"
	"github.com/pingline/omnisearch/internal/storage"
)

// Suggester serves the empty-query state: recently active conversations,
// frequently messaged contacts, and conversations with unread messages.
type Suggester struct {
	contacts      storage.ContactStore
	conversations storage.ConversationStore
	messages      storage.MessageStore
	logger        *zap.Logger

	mu  sync.RWMutex
	cfg config.SearchConfig
}

// NewSuggester creates a suggestion provider over the given repositories.
func NewSuggester(contacts storage.ContactStore, conversations storage.ConversationStore, messages storage.MessageStore, cfg config.SearchConfig, logger *zap.Logger) *Suggester {
	return &Suggester{
		contacts:      contacts,
		conversations: conversations,
		messages:      messages,
		cfg:           cfg,
		logger:        logger,
	}
}

// UpdateSearchConfig swaps the suggestion tunables; used by config hot reload.
func (s *Suggester) UpdateSearchConfig(cfg config.SearchConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Suggester) searchConfig() config.SearchConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Suggest fetches the three buckets concurrently. Each bucket degrades to
// empty on its own failure; the other two are still returned.
func (s *Suggester) Suggest(ctx context.Context, requesterID string, limit int) (*models.SuggestionResponse, error) {
	cfg := s.searchConfig()
	if limit <= 0 || limit > cfg.SuggestionLimit {
		limit = cfg.SuggestionLimit
	}
	timeout := time.Duration(cfg.SourceTimeoutMs) * time.Millisecond

	resp := &models.SuggestionResponse{
		Recent:   []*models.Conversation{},
		Frequent: []*models.Contact{},
		Unread:   []*models.Conversation{},
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		sctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		convs, err := s.conversations.RecentConversations(sctx, requesterID, limit)
		if err != nil {
			s.logBucketFailure(ctx, "recent", err)
			return
		}
		for _, c := range convs {
			resp.Recent = append(resp.Recent, models.ConversationResult(c))
		}
	}()
	go func() {
		defer wg.Done()
		sctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		resp.Frequent = s.frequentContacts(sctx, requesterID, cfg, limit)
	}()
	go func() {
		defer wg.Done()
		sctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		convs, err := s.conversations.UnreadConversations(sctx, requesterID, limit)
		if err != nil {
			s.logBucketFailure(ctx, "unread", err)
			return
		}
		for _, c := range convs {
			resp.Unread = append(resp.Unread, models.ConversationResult(c))
		}
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

// frequentContacts maps the requester's top correspondents back through the
// address book. Peers the requester never saved as a contact are skipped.
func (s *Suggester) frequentContacts(ctx context.Context, requesterID string, cfg config.SearchConfig, limit int) []*models.Contact {
	peers, err := s.messages.FrequentPeers(ctx, requesterID, cfg.FrequentWindowDays, limit)
	if err != nil {
		s.logBucketFailure(ctx, "frequent", err)
		return []*models.Contact{}
	}
	out := make([]*models.Contact, 0, len(peers))
	for _, p := range peers {
		contact, err := s.contacts.ContactByOwnerAndUser(ctx, requesterID, p.UserID)
		if err != nil {
			s.logBucketFailure(ctx, "frequent", err)
			continue
		}
		if contact == nil {
			continue
		}
		out = append(out, models.ContactResult(contact))
	}
	return out
}

func (s *Suggester) logBucketFailure(ctx context.Context, bucket string, err error) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Warn("suggestion bucket failed, degrading to empty",
		zap.String("bucket", bucket), zap.Error(err))
}
