// Package models defines core data structures for entity records, search
// requests, and search results.
package models

import "time"

// ContactRecord is a contact saved in one user's address book.
type ContactRecord struct {
	ID              string    `json:"id" db:"id"`
	OwnerID         string    `json:"owner_id" db:"owner_id"`
	DisplayName     string    `json:"display_name" db:"display_name"`
	Phone           string    `json:"phone" db:"phone"`
	PhoneNormalized string    `json:"phone_normalized" db:"phone_normalized"`
	AvatarURL       string    `json:"avatar_url" db:"avatar_url"`
	// LinkedUserID is the platform user this contact resolves to, empty when
	// the number is not registered.
	LinkedUserID string    `json:"linked_user_id" db:"linked_user_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// UserRecord is a registered platform user.
type UserRecord struct {
	ID            string    `json:"id" db:"id"`
	DisplayName   string    `json:"display_name" db:"display_name"`
	Phone         string    `json:"phone" db:"phone"` // digits only
	PhoneVerified bool      `json:"phone_verified" db:"phone_verified"`
	Email         string    `json:"email" db:"email"`
	Slug          string    `json:"slug" db:"slug"`
	AvatarURL     string    `json:"avatar_url" db:"avatar_url"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// GroupRecord is a group chat. Member counts and the membership flag are
// computed per requester by the store query that produced the record.
type GroupRecord struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Slug        string `json:"slug" db:"slug"`
	AvatarURL   string `json:"avatar_url" db:"avatar_url"`
	Public      bool   `json:"public" db:"public"`
	MemberCount int    `json:"member_count" db:"member_count"`
	IsMember    bool   `json:"is_member" db:"is_member"`
}

// ConversationRecord is a direct (one-to-one) conversation as seen by one
// participant: peer fields describe the other participant.
type ConversationRecord struct {
	ID              string    `json:"id" db:"id"`
	Slug            string    `json:"slug" db:"slug"`
	PeerUserID      string    `json:"peer_user_id" db:"peer_user_id"`
	PeerName        string    `json:"peer_name" db:"peer_name"`
	PeerPhone       string    `json:"peer_phone" db:"peer_phone"`
	PeerAvatarURL   string    `json:"peer_avatar_url" db:"peer_avatar_url"`
	LastMessageText string    `json:"last_message_text" db:"last_message_text"`
	LastMessageAt   time.Time `json:"last_message_at" db:"last_message_at"`
	UnreadCount     int       `json:"unread_count" db:"unread_count"`
}

// MessageRecord is a single chat message.
type MessageRecord struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	SenderID       string    `json:"sender_id" db:"sender_id"`
	SenderName     string    `json:"sender_name" db:"sender_name"`
	Body           string    `json:"body" db:"body"`
	// AttachmentName is the original filename of an attached file, empty for
	// plain text messages.
	AttachmentName string    `json:"attachment_name" db:"attachment_name"`
	SentAt         time.Time `json:"sent_at" db:"sent_at"`
}

// FrequentPeer is a correspondent ranked by direct-message volume, used by
// the frequent-contacts suggestion bucket.
type FrequentPeer struct {
	UserID       string `json:"user_id" db:"user_id"`
	MessageCount int    `json:"message_count" db:"message_count"`
}
