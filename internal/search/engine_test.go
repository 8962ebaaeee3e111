package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pingline/omnisearch/internal/config"
	"github.com/pingline/omnisearch/internal/models"
)

// fakeStore is an in-memory implementation of every repository interface.
// Pattern matching is naive token containment, which is enough to drive the
// engine; the SQL matching itself is covered by the storage tests.
type fakeStore struct {
	contacts []*models.ContactRecord
	users    []*models.UserRecord
	groups   []*models.GroupRecord
	convs    []*models.ConversationRecord
	messages []*models.MessageRecord

	frequent      []*models.FrequentPeer
	recent        []*models.ConversationRecord
	unreadConvs   []*models.ConversationRecord
	unreadWith    map[string]int
	unreadInGroup map[string]int
	phoneExists   bool

	contactsErr error
	blockUsers  bool
}

// patternTokens recovers the query tokens from a LIKE pattern.
func patternTokens(pattern string) []string {
	var tokens []string
	for _, t := range strings.Split(pattern, "%") {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func textMatches(pattern string, fields ...string) bool {
	tokens := patternTokens(pattern)
	if len(tokens) == 0 {
		return false
	}
	for _, f := range fields {
		lower := strings.ToLower(f)
		all := true
		for _, tok := range tokens {
			if !strings.Contains(lower, tok) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func (f *fakeStore) SearchContacts(ctx context.Context, ownerID, pattern, digits string, limit int) ([]*models.ContactRecord, error) {
	if f.contactsErr != nil {
		return nil, f.contactsErr
	}
	var out []*models.ContactRecord
	for _, c := range f.contacts {
		if c.OwnerID != ownerID {
			continue
		}
		if textMatches(pattern, c.DisplayName, c.Phone) ||
			(digits != "" && strings.Contains(c.PhoneNormalized, digits)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) HasContact(ctx context.Context, ownerID, userID string) (bool, error) {
	c, err := f.ContactByOwnerAndUser(ctx, ownerID, userID)
	return c != nil, err
}

func (f *fakeStore) ContactByOwnerAndUser(ctx context.Context, ownerID, userID string) (*models.ContactRecord, error) {
	for _, c := range f.contacts {
		if c.OwnerID == ownerID && c.LinkedUserID == userID {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SearchUsers(ctx context.Context, excludeUserID, pattern, digits string, limit int) ([]*models.UserRecord, error) {
	if f.blockUsers {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	var out []*models.UserRecord
	for _, u := range f.users {
		if u.ID == excludeUserID || !u.PhoneVerified {
			continue
		}
		if textMatches(pattern, u.DisplayName, u.Email, u.Slug) ||
			(digits != "" && strings.Contains(u.Phone, digits)) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) UserPhoneExists(ctx context.Context, digits string) (bool, error) {
	return f.phoneExists, nil
}

func (f *fakeStore) SearchGroups(ctx context.Context, requesterID, pattern string, limit int) ([]*models.GroupRecord, error) {
	var out []*models.GroupRecord
	for _, g := range f.groups {
		if !g.Public && !g.IsMember {
			continue
		}
		if textMatches(pattern, g.Name, g.Description, g.Slug) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeStore) SearchConversations(ctx context.Context, requesterID, pattern, digits string, limit int) ([]*models.ConversationRecord, error) {
	var out []*models.ConversationRecord
	for _, c := range f.convs {
		if textMatches(pattern, c.PeerName) ||
			(digits != "" && strings.Contains(c.PeerPhone, digits)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) RecentConversations(ctx context.Context, requesterID string, limit int) ([]*models.ConversationRecord, error) {
	return f.recent, nil
}

func (f *fakeStore) UnreadConversations(ctx context.Context, requesterID string, limit int) ([]*models.ConversationRecord, error) {
	return f.unreadConvs, nil
}

func (f *fakeStore) UnreadCountWith(ctx context.Context, requesterID, peerUserID string) (int, error) {
	return f.unreadWith[peerUserID], nil
}

func (f *fakeStore) UnreadCountInGroup(ctx context.Context, requesterID, groupID string) (int, error) {
	return f.unreadInGroup[groupID], nil
}

func (f *fakeStore) SearchMessages(ctx context.Context, requesterID, pattern string, limit int) ([]*models.MessageRecord, error) {
	var out []*models.MessageRecord
	for _, m := range f.messages {
		if textMatches(pattern, m.Body, m.AttachmentName) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) MessagesByIDs(ctx context.Context, requesterID string, ids []string) ([]*models.MessageRecord, error) {
	var out []*models.MessageRecord
	for _, m := range f.messages {
		for _, id := range ids {
			if m.ID == id {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) FrequentPeers(ctx context.Context, requesterID string, sinceDays, limit int) ([]*models.FrequentPeer, error) {
	return f.frequent, nil
}

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		DefaultLimit:       20,
		MaxLimit:           100,
		PerSourceLimit:     25,
		SourceTimeoutMs:    2000,
		SuggestionLimit:    10,
		FrequentWindowDays: 30,
	}
}

func newTestEngine(store *fakeStore) *Engine {
	deps := Deps{
		Contacts:      store,
		Users:         store,
		Groups:        store,
		Conversations: store,
		Messages:      store,
	}
	return NewEngine(deps, testSearchConfig(), zap.NewNop())
}

// seededStore builds the shared fixture: requester u1, contact "John Doe"
// linked to registered user u2, plus a group, a conversation, and messages.
func seededStore() *fakeStore {
	now := time.Now()
	return &fakeStore{
		contacts: []*models.ContactRecord{
			{ID: "c1", OwnerID: "u1", DisplayName: "John Doe", Phone: "+233 24 400 0111", PhoneNormalized: "0234000111", LinkedUserID: "u2"},
			{ID: "c2", OwnerID: "u1", DisplayName: "Auntie Rose", Phone: "020 555 0001", PhoneNormalized: "0205550001"},
			{ID: "c9", OwnerID: "u9", DisplayName: "John Smith", Phone: "111", PhoneNormalized: "111"},
		},
		users: []*models.UserRecord{
			{ID: "u2", DisplayName: "John Doe", Phone: "0234000111", PhoneVerified: true, Slug: "jdoe"},
			{ID: "u3", DisplayName: "Johnny Appleseed", Phone: "0244999888", PhoneVerified: true, Slug: "johnny"},
		},
		groups: []*models.GroupRecord{
			{ID: "g1", Name: "John Fan Club", Public: true, MemberCount: 12},
		},
		convs: []*models.ConversationRecord{
			{ID: "v1", PeerUserID: "u2", PeerName: "John Doe", PeerPhone: "0234000111", LastMessageText: "see you", LastMessageAt: now, UnreadCount: 2},
		},
		messages: []*models.MessageRecord{
			{ID: "m1", ConversationID: "v1", SenderID: "u2", SenderName: "John Doe", Body: "john, lunch tomorrow?", SentAt: now},
		},
		unreadWith:    map[string]int{},
		unreadInGroup: map[string]int{},
	}
}

func kinds(results []models.Result) map[models.Kind]int {
	m := make(map[models.Kind]int)
	for _, r := range results {
		m[r.Kind()]++
	}
	return m
}

func TestSearchValidation(t *testing.T) {
	e := newTestEngine(seededStore())
	ctx := context.Background()

	if _, err := e.Search(ctx, &models.SearchRequest{Query: "john"}); err == nil {
		t.Error("missing requester must fail")
	}
	if _, err := e.Search(ctx, &models.SearchRequest{RequesterID: "u1", Query: "john", Limit: -1}); err == nil {
		t.Error("negative limit must fail")
	}
	if _, err := e.Search(ctx, &models.SearchRequest{RequesterID: "u1", Query: "   "}); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank query: got %v, want ErrEmptyQuery", err)
	}
}

func TestSearchDedupesPersonAcrossSources(t *testing.T) {
	e := newTestEngine(seededStore())
	resp, err := e.Search(context.Background(), &models.SearchRequest{RequesterID: "u1", Query: "John Doe"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	var contactHits, userHits int
	for _, r := range resp.Results {
		switch v := r.(type) {
		case *models.Contact:
			if v.LinkedUserID == "u2" {
				contactHits++
			}
		case *models.User:
			if v.UserID == "u2" {
				userHits++
			}
		}
	}
	if contactHits != 1 || userHits != 0 {
		t.Errorf("person u2 must surface once, as the contact: contact=%d user=%d", contactHits, userHits)
	}

	seen := make(map[string]bool)
	for _, r := range resp.Results {
		if seen[r.DedupKey()] {
			t.Errorf("duplicate identity key %q in output", r.DedupKey())
		}
		seen[r.DedupKey()] = true
	}
}

func TestSearchExactContactOutranksEverything(t *testing.T) {
	e := newTestEngine(seededStore())
	resp, err := e.Search(context.Background(), &models.SearchRequest{RequesterID: "u1", Query: "John Doe"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("no results")
	}
	top := resp.Results[0]
	if top.Kind() != models.KindContact {
		t.Fatalf("top result kind = %s, want contact", top.Kind())
	}
	// 100 base + 50 exact name + 30 registered.
	if top.Common().Score != 180 {
		t.Errorf("top score = %v, want 180", top.Common().Score)
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].Common().Score > resp.Results[i-1].Common().Score {
			t.Fatalf("results not sorted by score descending at index %d", i)
		}
	}
}

func TestSearchContactScopingRespectsOwner(t *testing.T) {
	e := newTestEngine(seededStore())
	resp, err := e.Search(context.Background(), &models.SearchRequest{RequesterID: "u1", Query: "John Smith"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range resp.Results {
		if c, ok := r.(*models.Contact); ok && c.ContactID == "c9" {
			t.Error("another user's contact leaked into the results")
		}
	}
}

func TestSearchDigitFragmentMatchesPhone(t *testing.T) {
	e := newTestEngine(seededStore())
	resp, err := e.Search(context.Background(), &models.SearchRequest{RequesterID: "u1", Query: "234"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var found bool
	for _, r := range resp.Results {
		if c, ok := r.(*models.Contact); ok && c.ContactID == "c1" {
			found = true
		}
	}
	if !found {
		t.Error("contact with phone digits 0234000111 must match query \"234\"")
	}
	if n := kinds(resp.Results)[models.KindPhoneSuggestion]; n != 0 {
		t.Errorf("3 digits must not trigger the phone suggestion, got %d", n)
	}
}

func TestSearchPhoneHeuristic(t *testing.T) {
	store := seededStore()
	store.phoneExists = true
	e := newTestEngine(store)

	// Filters never suppress the phone suggestion.
	resp, err := e.Search(context.Background(), &models.SearchRequest{
		RequesterID: "u1", Query: "0244123456", Filters: []string{"groups"},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var phones []*models.PhoneSuggestion
	for _, r := range resp.Results {
		if p, ok := r.(*models.PhoneSuggestion); ok {
			phones = append(phones, p)
		}
	}
	if len(phones) != 1 {
		t.Fatalf("got %d phone suggestions, want exactly 1", len(phones))
	}
	if phones[0].Phone != "0244123456" || !phones[0].Registered {
		t.Errorf("suggestion = %+v, want digits 0244123456 registered", phones[0])
	}
	if phones[0].DisplayName != "Message 0244123456" {
		t.Errorf("label = %q", phones[0].DisplayName)
	}
}

func TestSearchFiltersSelectSources(t *testing.T) {
	e := newTestEngine(seededStore())
	resp, err := e.Search(context.Background(), &models.SearchRequest{
		RequesterID: "u1", Query: "john", Filters: []string{"contacts", "bogus"},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	got := kinds(resp.Results)
	if got[models.KindUser] != 0 || got[models.KindGroup] != 0 || got[models.KindMessage] != 0 {
		t.Errorf("sources outside the filter ran anyway: %v", got)
	}
	if got[models.KindContact] == 0 {
		t.Error("contacts filter produced no contact results")
	}
	// Conversations are exempt from source filters.
	if got[models.KindConversation] == 0 {
		t.Error("conversation results must be included regardless of filters")
	}
}

func TestSearchEmptyFilterSetRunsAllSources(t *testing.T) {
	e := newTestEngine(seededStore())
	resp, err := e.Search(context.Background(), &models.SearchRequest{RequesterID: "u1", Query: "john"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	got := kinds(resp.Results)
	for _, k := range []models.Kind{models.KindContact, models.KindUser, models.KindGroup, models.KindConversation, models.KindMessage} {
		if got[k] == 0 {
			t.Errorf("kind %s missing from unfiltered search: %v", k, got)
		}
	}
}

func TestSearchLimitTruncatesMergedList(t *testing.T) {
	e := newTestEngine(seededStore())
	resp, err := e.Search(context.Background(), &models.SearchRequest{RequesterID: "u1", Query: "john", Limit: 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 2 || resp.Total != 2 {
		t.Errorf("got %d results (total %d), want 2", len(resp.Results), resp.Total)
	}
}

func TestSearchZeroLimitUsesDefault(t *testing.T) {
	e := newTestEngine(seededStore())
	resp, err := e.Search(context.Background(), &models.SearchRequest{RequesterID: "u1", Query: "john"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("omitted limit must fall back to the configured default, not zero")
	}
	if len(resp.Results) > testSearchConfig().DefaultLimit {
		t.Errorf("got %d results, want at most the default limit", len(resp.Results))
	}
}

func TestSearchSourceFailureDegradesToEmpty(t *testing.T) {
	store := seededStore()
	store.contactsErr = errors.New("contacts store down")
	e := newTestEngine(store)

	resp, err := e.Search(context.Background(), &models.SearchRequest{RequesterID: "u1", Query: "john"})
	if err != nil {
		t.Fatalf("one failing source must not fail the search: %v", err)
	}
	got := kinds(resp.Results)
	if got[models.KindContact] != 0 {
		t.Error("failed source still produced results")
	}
	if got[models.KindUser] == 0 || got[models.KindConversation] == 0 {
		t.Errorf("healthy sources must still answer: %v", got)
	}
}

func TestSearchSlowSourceTimesOut(t *testing.T) {
	store := seededStore()
	store.blockUsers = true
	e := newTestEngine(store)
	e.UpdateSearchConfig(func() config.SearchConfig {
		cfg := testSearchConfig()
		cfg.SourceTimeoutMs = 20
		return cfg
	}())

	start := time.Now()
	resp, err := e.Search(context.Background(), &models.SearchRequest{RequesterID: "u1", Query: "john"})
	if err != nil {
		t.Fatalf("timed-out source must not fail the search: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("search blocked on slow source for %v", elapsed)
	}
	got := kinds(resp.Results)
	if got[models.KindUser] != 0 {
		t.Error("timed-out source still produced results")
	}
	if got[models.KindContact] == 0 {
		t.Errorf("healthy sources must still answer: %v", got)
	}
}

func TestSearchCancellation(t *testing.T) {
	e := newTestEngine(seededStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Search(ctx, &models.SearchRequest{RequesterID: "u1", Query: "john"}); err == nil {
		t.Error("cancelled context must fail the search")
	}
}

func TestSearchUnreadPostFilter(t *testing.T) {
	store := seededStore()
	store.convs = append(store.convs, &models.ConversationRecord{
		ID: "v2", PeerUserID: "u3", PeerName: "Johnny Appleseed", PeerPhone: "0244999888",
		LastMessageAt: time.Now(), UnreadCount: 0,
	})
	store.unreadWith["u2"] = 2
	e := newTestEngine(store)

	resp, err := e.Search(context.Background(), &models.SearchRequest{
		RequesterID: "u1", Query: "john", Filters: []string{"unread"},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range resp.Results {
		switch v := r.(type) {
		case *models.Conversation:
			if v.UnreadCount == 0 {
				t.Errorf("read conversation %s survived the unread filter", v.ConversationID)
			}
		case *models.Message:
			t.Error("messages have no unread signal and must be dropped")
		case *models.User:
			if v.UserID == "u3" {
				t.Error("user without unread messages survived the unread filter")
			}
		case *models.Group:
			t.Errorf("group %s without unread messages survived the unread filter", v.GroupID)
		}
	}
	got := kinds(resp.Results)
	if got[models.KindContact] == 0 {
		t.Error("contact with unread direct messages must be kept")
	}
}

func TestSearchDeterministicOrdering(t *testing.T) {
	e := newTestEngine(seededStore())
	req := &models.SearchRequest{RequesterID: "u1", Query: "john"}

	first, err := e.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := e.Search(context.Background(), req)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(again.Results) != len(first.Results) {
			t.Fatalf("run %d: %d results, want %d", i, len(again.Results), len(first.Results))
		}
		for j := range again.Results {
			if again.Results[j].Common().ID != first.Results[j].Common().ID {
				t.Fatalf("run %d: order diverged at %d: %s vs %s",
					i, j, again.Results[j].Common().ID, first.Results[j].Common().ID)
			}
		}
	}
}
