package search

import (
	"context"

	"github.com/pingline/omnisearch/internal/models"
	"github.com/pingline/omnisearch/internal/storage"
)

// Source is one entity-specific searcher. Implementations are pure reads:
// given the requester, the normalized query, and a per-source limit, they
// return records mapped into the common result shape.
type Source interface {
	Name() string
	Search(ctx context.Context, requesterID string, q Query, limit int) ([]models.Result, error)
}

// MessageSearcher is the text-matching facility behind the message source.
// storage.SQLiteStore satisfies it with substring matching; index.Messages
// satisfies it with a bleve index.
type MessageSearcher interface {
	SearchMessages(ctx context.Context, requesterID, pattern string, limit int) ([]*models.MessageRecord, error)
}

type contactSource struct {
	contacts storage.ContactStore
}

// NewContactSource searches the requester's own address book. The owner
// scoping lives in the store contract, not here.
func NewContactSource(contacts storage.ContactStore) Source {
	return &contactSource{contacts: contacts}
}

func (s *contactSource) Name() string { return "contacts" }

func (s *contactSource) Search(ctx context.Context, requesterID string, q Query, limit int) ([]models.Result, error) {
	recs, err := s.contacts.SearchContacts(ctx, requesterID, q.Pattern, q.Digits, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Result, 0, len(recs))
	for _, rec := range recs {
		out = append(out, models.ContactResult(rec))
	}
	return out, nil
}

type userSource struct {
	users    storage.UserStore
	contacts storage.ContactStore
}

// NewUserSource searches registered platform users, marking each hit with
// whether it is already in the requester's address book.
func NewUserSource(users storage.UserStore, contacts storage.ContactStore) Source {
	return &userSource{users: users, contacts: contacts}
}

func (s *userSource) Name() string { return "users" }

func (s *userSource) Search(ctx context.Context, requesterID string, q Query, limit int) ([]models.Result, error) {
	recs, err := s.users.SearchUsers(ctx, requesterID, q.Pattern, q.Digits, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Result, 0, len(recs))
	for _, rec := range recs {
		isContact, err := s.contacts.HasContact(ctx, requesterID, rec.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.UserResult(rec, isContact))
	}
	return out, nil
}

type groupSource struct {
	groups storage.GroupStore
}

// NewGroupSource searches groups the requester can see.
func NewGroupSource(groups storage.GroupStore) Source {
	return &groupSource{groups: groups}
}

func (s *groupSource) Name() string { return "groups" }

func (s *groupSource) Search(ctx context.Context, requesterID string, q Query, limit int) ([]models.Result, error) {
	recs, err := s.groups.SearchGroups(ctx, requesterID, q.Pattern, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Result, 0, len(recs))
	for _, rec := range recs {
		out = append(out, models.GroupResult(rec))
	}
	return out, nil
}

type conversationSource struct {
	conversations storage.ConversationStore
}

// NewConversationSource searches the requester's direct conversations.
func NewConversationSource(conversations storage.ConversationStore) Source {
	return &conversationSource{conversations: conversations}
}

func (s *conversationSource) Name() string { return "conversations" }

func (s *conversationSource) Search(ctx context.Context, requesterID string, q Query, limit int) ([]models.Result, error) {
	recs, err := s.conversations.SearchConversations(ctx, requesterID, q.Pattern, q.Digits, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Result, 0, len(recs))
	for _, rec := range recs {
		out = append(out, models.ConversationResult(rec))
	}
	return out, nil
}

type messageSource struct {
	messages MessageSearcher
}

// NewMessageSource searches message bodies and attachment filenames through
// the configured text-matching backend.
func NewMessageSource(messages MessageSearcher) Source {
	return &messageSource{messages: messages}
}

func (s *messageSource) Name() string { return "messages" }

func (s *messageSource) Search(ctx context.Context, requesterID string, q Query, limit int) ([]models.Result, error) {
	recs, err := s.messages.SearchMessages(ctx, requesterID, q.Pattern, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Result, 0, len(recs))
	for _, rec := range recs {
		snippet := MessageSnippet(rec.Body, q.Raw, rec.AttachmentName)
		out = append(out, models.MessageResult(rec, snippet))
	}
	return out, nil
}

// BuildPhoneSuggestion emits the synthetic "message this number" result when
// the raw query looks like a phone number. The registration lookup failing is
// not fatal: the suggestion is still offered, just unflagged.
func BuildPhoneSuggestion(ctx context.Context, users storage.UserStore, rawQuery string) (models.Result, bool, error) {
	digits, ok := PhoneCandidate(rawQuery)
	if !ok {
		return nil, false, nil
	}
	registered, err := users.UserPhoneExists(ctx, digits)
	if err != nil {
		return models.PhoneSuggestionResult(digits, false), true, err
	}
	return models.PhoneSuggestionResult(digits, registered), true, nil
}
