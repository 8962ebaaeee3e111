// Package storage defines the read-only repository interfaces the search
// core consumes, plus the SQLite implementation backing all of them.
package storage

import (
	"context"

	"github.com/pingline/omnisearch/internal/models"
)

// Every interface takes the requester id as a mandatory scoping parameter.
// Reading another user's contacts or conversations is structurally
// impossible through these contracts.

// ContactStore reads one user's address book.
type ContactStore interface {
	// SearchContacts returns the owner's contacts whose display name, phone,
	// or normalized phone match the pattern or digits fragment.
	SearchContacts(ctx context.Context, ownerID, pattern, digits string, limit int) ([]*models.ContactRecord, error)
	// HasContact reports whether the owner has a contact linked to userID.
	HasContact(ctx context.Context, ownerID, userID string) (bool, error)
	// ContactByOwnerAndUser returns the owner's contact linked to userID, or
	// nil when none exists.
	ContactByOwnerAndUser(ctx context.Context, ownerID, userID string) (*models.ContactRecord, error)
}

// UserStore reads registered platform users.
type UserStore interface {
	// SearchUsers returns verified-phone users other than excludeUserID,
	// matching by name, email, phone digits, or slug.
	SearchUsers(ctx context.Context, excludeUserID, pattern, digits string, limit int) ([]*models.UserRecord, error)
	// UserPhoneExists reports whether any registered user has this phone.
	UserPhoneExists(ctx context.Context, digits string) (bool, error)
}

// GroupStore reads groups visible to the requester.
type GroupStore interface {
	// SearchGroups returns groups matching name, description, or slug, where
	// the requester is a member or the group is public.
	SearchGroups(ctx context.Context, requesterID, pattern string, limit int) ([]*models.GroupRecord, error)
}

// ConversationStore reads the requester's direct conversations.
type ConversationStore interface {
	// SearchConversations returns the requester's direct conversations where
	// the peer's name or phone matches, or any message body matches.
	SearchConversations(ctx context.Context, requesterID, pattern, digits string, limit int) ([]*models.ConversationRecord, error)
	// RecentConversations returns direct conversations by last activity.
	RecentConversations(ctx context.Context, requesterID string, limit int) ([]*models.ConversationRecord, error)
	// UnreadConversations returns direct conversations with unread messages,
	// by last activity.
	UnreadConversations(ctx context.Context, requesterID string, limit int) ([]*models.ConversationRecord, error)
	// UnreadCountWith returns the requester's unread count in the direct
	// conversation with peerUserID, 0 when no conversation exists.
	UnreadCountWith(ctx context.Context, requesterID, peerUserID string) (int, error)
	// UnreadCountInGroup returns the requester's unread count in the group's
	// conversation, 0 when the requester is not a member.
	UnreadCountInGroup(ctx context.Context, requesterID, groupID string) (int, error)
}

// MessageStore reads messages in conversations the requester belongs to.
type MessageStore interface {
	// SearchMessages returns messages whose body or attachment filename
	// match the pattern, most recent first.
	SearchMessages(ctx context.Context, requesterID, pattern string, limit int) ([]*models.MessageRecord, error)
	// MessagesByIDs returns the given messages, restricted to conversations
	// the requester is a member of, most recent first.
	MessagesByIDs(ctx context.Context, requesterID string, ids []string) ([]*models.MessageRecord, error)
	// FrequentPeers returns the requester's top direct-message
	// correspondents within the last sinceDays days.
	FrequentPeers(ctx context.Context, requesterID string, sinceDays, limit int) ([]*models.FrequentPeer, error)
}

// Store combines all repositories. The search core depends on the narrow
// interfaces above; Store exists for wiring and lifecycle.
type Store interface {
	ContactStore
	UserStore
	GroupStore
	ConversationStore
	MessageStore

	Close() error
}
