package search

import (
	"strings"
	"time"

	"github.com/pingline/omnisearch/internal/models"
)

// Base score per result type. Scores are additive point awards with no
// cross-type normalization; higher is always better.
const (
	contactBase      = 100.0
	userBase         = 90.0
	conversationBase = 85.0
	groupBase        = 80.0
	messageBase      = 70.0
	phoneBase        = 60.0
)

// ScoreResult computes the relevance score for one result against the raw
// query. rawQuery comparisons are case-insensitive trimmed equality. now
// anchors the recency decay for conversations and messages.
func ScoreResult(r models.Result, rawQuery string, now time.Time) float64 {
	q := strings.TrimSpace(rawQuery)

	switch v := r.(type) {
	case *models.Contact:
		score := contactBase
		if exactMatch(v.DisplayName, q) {
			score += 50
		}
		if v.Registered {
			score += 30
		}
		return score

	case *models.User:
		score := userBase
		if exactMatch(v.Slug, q) {
			score += 70
		}
		if exactMatch(v.DisplayName, q) {
			score += 50
		}
		if v.IsContact {
			score += 20
		}
		return score

	case *models.Conversation:
		score := conversationBase
		if v.UnreadCount > 0 {
			score += 25
		}
		if exactMatch(v.DisplayName, q) {
			score += 40
		}
		return score + recencyBonus(20, v.LastMessageAt, now)

	case *models.Group:
		score := groupBase
		if v.IsMember {
			score += 30
		}
		if exactMatch(v.DisplayName, q) {
			score += 40
		}
		return score

	case *models.Message:
		return messageBase + recencyBonus(30, v.SentAt, now)

	case *models.PhoneSuggestion:
		return phoneBase
	}
	return 0
}

func exactMatch(value, query string) bool {
	return query != "" && strings.EqualFold(strings.TrimSpace(value), query)
}

// recencyBonus awards max points for activity right now, decaying by one
// point per day and flooring at zero. Zero timestamps earn nothing.
func recencyBonus(max float64, ts time.Time, now time.Time) float64 {
	if ts.IsZero() {
		return 0
	}
	daysAgo := now.Sub(ts).Hours() / 24
	bonus := max - daysAgo
	if bonus < 0 {
		return 0
	}
	if bonus > max {
		return max
	}
	return bonus
}
