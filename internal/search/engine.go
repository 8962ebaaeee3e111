package search

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pingline/omnisearch/internal/config"
	"github.com/pingline/omnisearch/internal/models"
	"github.com/pingline/omnisearch/internal/storage"
)

// ErrEmptyQuery is returned by Search for whitespace-only queries; empty
// queries are served by the Suggester instead of the scoring pipeline.
var ErrEmptyQuery = errors.New("query is empty")

// Deps are the repositories the engine fans out to.
type Deps struct {
	Contacts      storage.ContactStore
	Users         storage.UserStore
	Groups        storage.GroupStore
	Conversations storage.ConversationStore
	Messages      MessageSearcher
}

// Engine runs one query across all sources and merges the results into a
// single ranked list.
type Engine struct {
	deps   Deps
	logger *zap.Logger

	mu  sync.RWMutex
	cfg config.SearchConfig
}

// NewEngine creates a search engine with the given repositories.
func NewEngine(deps Deps, cfg config.SearchConfig, logger *zap.Logger) *Engine {
	return &Engine{deps: deps, cfg: cfg, logger: logger}
}

// UpdateSearchConfig swaps the search tunables; used by config hot reload.
func (e *Engine) UpdateSearchConfig(cfg config.SearchConfig) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

func (e *Engine) searchConfig() config.SearchConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Search fans the query out to the filter-selected sources, scores,
// deduplicates, sorts, post-filters, and truncates. A failing or slow source
// degrades to an empty slice and never fails the whole call; only invalid
// caller input or cancellation do.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	q := NormalizeQuery(req.Query)
	if q.Raw == "" {
		return nil, ErrEmptyQuery
	}

	cfg := e.searchConfig()
	limit := req.Limit
	if limit == 0 {
		limit = cfg.DefaultLimit
	}
	if limit > cfg.MaxLimit {
		limit = cfg.MaxLimit
	}

	filters := req.FilterSet()
	sources := e.activeSources(filters)
	timeout := time.Duration(cfg.SourceTimeoutMs) * time.Millisecond

	// One slot per source plus one for the phone suggestion; each goroutine
	// writes only its own slot. Slot order decides which variant wins when
	// two results share a dedup key.
	slots := make([][]models.Result, len(sources)+1)
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			results, err := src.Search(sctx, req.RequesterID, q, cfg.PerSourceLimit)
			if err != nil {
				if ctx.Err() == nil {
					e.logger.Warn("source failed, degrading to empty",
						zap.String("source", src.Name()), zap.Error(err))
				}
				return
			}
			slots[i] = results
		}(i, src)
	}

	phoneSlot := len(sources)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		suggestion, ok, err := BuildPhoneSuggestion(sctx, e.deps.Users, req.Query)
		if err != nil && ctx.Err() == nil {
			e.logger.Warn("phone registration lookup failed", zap.Error(err))
		}
		if ok {
			slots[phoneSlot] = []models.Result{suggestion}
		}
	}()

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var merged []models.Result
	for _, slot := range slots {
		merged = append(merged, slot...)
	}

	now := time.Now()
	for _, r := range merged {
		r.Common().Score = ScoreResult(r, req.Query, now)
	}

	merged = dedupe(merged)
	if filters[models.FilterUnread] {
		merged = e.filterUnread(ctx, req.RequesterID, merged)
	}
	sortResults(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	if merged == nil {
		merged = []models.Result{}
	}

	return &models.SearchResponse{
		Results:   merged,
		Total:     len(merged),
		QueryTime: time.Since(startTime).Milliseconds(),
		Query:     req.Query,
	}, nil
}

// activeSources returns the sources selected by the filter set, in the fixed
// fan-out order contact, user, group, conversation, message. Conversations
// always run; an empty source-filter set enables everything.
func (e *Engine) activeSources(filters map[models.Filter]bool) []Source {
	all := !filters[models.FilterContacts] && !filters[models.FilterUsers] &&
		!filters[models.FilterGroups] && !filters[models.FilterMessages]

	sources := make([]Source, 0, 5)
	if all || filters[models.FilterContacts] {
		sources = append(sources, NewContactSource(e.deps.Contacts))
	}
	if all || filters[models.FilterUsers] {
		sources = append(sources, NewUserSource(e.deps.Users, e.deps.Contacts))
	}
	if all || filters[models.FilterGroups] {
		sources = append(sources, NewGroupSource(e.deps.Groups))
	}
	sources = append(sources, NewConversationSource(e.deps.Conversations))
	if all || filters[models.FilterMessages] {
		sources = append(sources, NewMessageSource(e.deps.Messages))
	}
	return sources
}

// dedupe keeps the first occurrence per identity key. Scoring has already
// run, and the fan-out order puts contacts before users, so for the
// contact/user person collision first-wins and best-score-wins coincide.
func dedupe(results []models.Result) []models.Result {
	seen := make(map[string]bool, len(results))
	out := results[:0]
	for _, r := range results {
		key := r.DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// filterUnread keeps results with a nonzero unread signal. Conversations
// carry the signal themselves; contacts, users, and groups are checked
// against the conversation store. The phone suggestion is always kept, and a
// failing check counts as zero rather than failing the search.
func (e *Engine) filterUnread(ctx context.Context, requesterID string, results []models.Result) []models.Result {
	kept := results[:0]
	for _, r := range results {
		switch v := r.(type) {
		case *models.PhoneSuggestion:
			kept = append(kept, r)
		case *models.Conversation:
			if v.UnreadCount > 0 {
				kept = append(kept, r)
			}
		case *models.Contact:
			if v.LinkedUserID != "" && e.unreadWith(ctx, requesterID, v.LinkedUserID) > 0 {
				kept = append(kept, r)
			}
		case *models.User:
			if e.unreadWith(ctx, requesterID, v.UserID) > 0 {
				kept = append(kept, r)
			}
		case *models.Group:
			n, err := e.deps.Conversations.UnreadCountInGroup(ctx, requesterID, v.GroupID)
			if err != nil {
				e.logger.Warn("group unread lookup failed", zap.String("group", v.GroupID), zap.Error(err))
				continue
			}
			if n > 0 {
				kept = append(kept, r)
			}
		case *models.Message:
			// Messages have no unread notion of their own.
		}
	}
	return kept
}

func (e *Engine) unreadWith(ctx context.Context, requesterID, peerUserID string) int {
	n, err := e.deps.Conversations.UnreadCountWith(ctx, requesterID, peerUserID)
	if err != nil {
		e.logger.Warn("unread lookup failed", zap.String("peer", peerUserID), zap.Error(err))
		return 0
	}
	return n
}

// sortResults orders by score descending, then last activity descending
// (results without a timestamp rank after those with one), then result id
// ascending. The ordering is total, so the output is deterministic.
func sortResults(results []models.Result) {
	sort.Slice(results, func(i, j int) bool {
		si, sj := results[i].Common().Score, results[j].Common().Score
		if si != sj {
			return si > sj
		}
		ti, tj := results[i].LastActivity(), results[j].LastActivity()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return results[i].Common().ID < results[j].Common().ID
	})
}
