package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the variant of a search result. The set is closed;
// consumers switch exhaustively over the six result types.
type Kind string

const (
	KindContact         Kind = "contact"
	KindUser            Kind = "user"
	KindGroup           Kind = "group"
	KindConversation    Kind = "conversation"
	KindMessage         Kind = "message"
	KindPhoneSuggestion Kind = "phone_suggestion"
)

// Header carries the fields shared by every result variant.
type Header struct {
	Type        Kind    `json:"type"`
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	AvatarURL   string  `json:"avatar_url,omitempty"`
	Score       float64 `json:"score"`
}

// Result is the closed union over the six search result variants. Only the
// types in this package implement it.
type Result interface {
	// Kind returns the variant tag.
	Kind() Kind
	// Common returns the shared header. The scorer writes Score through it.
	Common() *Header
	// DedupKey maps the result to the identity it represents. Contact and
	// user results for the same person share a key so that person is never
	// shown twice.
	DedupKey() string
	// LastActivity returns the variant's activity timestamp, zero when the
	// variant has none. Used as the sort tie-break after score.
	LastActivity() time.Time

	isResult()
}

// Contact is a hit from the requester's own address book.
type Contact struct {
	Header
	ContactID       string `json:"contact_id"`
	Phone           string `json:"phone"`
	PhoneNormalized string `json:"phone_normalized"`
	LinkedUserID    string `json:"linked_user_id,omitempty"`
	Registered      bool   `json:"registered"`
}

// ContactResult builds a contact result from an address book record.
func ContactResult(rec *ContactRecord) *Contact {
	return &Contact{
		Header: Header{
			Type:        KindContact,
			ID:          "contact_" + rec.ID,
			DisplayName: rec.DisplayName,
			AvatarURL:   rec.AvatarURL,
		},
		ContactID:       rec.ID,
		Phone:           rec.Phone,
		PhoneNormalized: rec.PhoneNormalized,
		LinkedUserID:    rec.LinkedUserID,
		Registered:      rec.LinkedUserID != "",
	}
}

func (c *Contact) Kind() Kind              { return KindContact }
func (c *Contact) Common() *Header         { return &c.Header }
func (c *Contact) LastActivity() time.Time { return time.Time{} }
func (c *Contact) DedupKey() string        { return personKey(c.LinkedUserID, c.PhoneNormalized) }
func (c *Contact) isResult()               {}

// User is a hit among registered platform users.
type User struct {
	Header
	UserID    string `json:"user_id"`
	Phone     string `json:"phone"`
	Slug      string `json:"slug"`
	IsContact bool   `json:"is_contact"`
}

// UserResult builds a user result. isContact reports whether the user is
// already in the requester's address book.
func UserResult(rec *UserRecord, isContact bool) *User {
	return &User{
		Header: Header{
			Type:        KindUser,
			ID:          "user_" + rec.ID,
			DisplayName: rec.DisplayName,
			AvatarURL:   rec.AvatarURL,
		},
		UserID:    rec.ID,
		Phone:     rec.Phone,
		Slug:      rec.Slug,
		IsContact: isContact,
	}
}

func (u *User) Kind() Kind              { return KindUser }
func (u *User) Common() *Header         { return &u.Header }
func (u *User) LastActivity() time.Time { return time.Time{} }
func (u *User) DedupKey() string        { return personKey(u.UserID, u.Phone) }
func (u *User) isResult()               {}

// Group is a hit among groups visible to the requester.
type Group struct {
	Header
	GroupID     string `json:"group_id"`
	MemberCount int    `json:"member_count"`
	IsMember    bool   `json:"is_member"`
	Slug        string `json:"slug"`
}

// GroupResult builds a group result from a membership-scoped group record.
func GroupResult(rec *GroupRecord) *Group {
	return &Group{
		Header: Header{
			Type:        KindGroup,
			ID:          "group_" + rec.ID,
			DisplayName: rec.Name,
			AvatarURL:   rec.AvatarURL,
		},
		GroupID:     rec.ID,
		MemberCount: rec.MemberCount,
		IsMember:    rec.IsMember,
		Slug:        rec.Slug,
	}
}

func (g *Group) Kind() Kind              { return KindGroup }
func (g *Group) Common() *Header         { return &g.Header }
func (g *Group) LastActivity() time.Time { return time.Time{} }
func (g *Group) DedupKey() string        { return "group:" + g.GroupID }
func (g *Group) isResult()               {}

// Conversation is a hit among the requester's direct conversations.
type Conversation struct {
	Header
	ConversationID string    `json:"conversation_id"`
	PeerPhone      string    `json:"peer_phone"`
	LastMessage    string    `json:"last_message"`
	LastMessageAt  time.Time `json:"last_message_at"`
	UnreadCount    int       `json:"unread_count"`
	Slug           string    `json:"slug"`
}

// ConversationResult builds a conversation result as seen by the requester.
func ConversationResult(rec *ConversationRecord) *Conversation {
	return &Conversation{
		Header: Header{
			Type:        KindConversation,
			ID:          "conversation_" + rec.ID,
			DisplayName: rec.PeerName,
			AvatarURL:   rec.PeerAvatarURL,
		},
		ConversationID: rec.ID,
		PeerPhone:      rec.PeerPhone,
		LastMessage:    rec.LastMessageText,
		LastMessageAt:  rec.LastMessageAt,
		UnreadCount:    rec.UnreadCount,
		Slug:           rec.Slug,
	}
}

func (c *Conversation) Kind() Kind              { return KindConversation }
func (c *Conversation) Common() *Header         { return &c.Header }
func (c *Conversation) LastActivity() time.Time { return c.LastMessageAt }
func (c *Conversation) DedupKey() string        { return "conversation:" + c.ConversationID }
func (c *Conversation) isResult()               {}

// Message is a hit among individual messages visible to the requester.
type Message struct {
	Header
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Snippet        string    `json:"snippet"`
	SentAt         time.Time `json:"sent_at"`
}

// MessageResult builds a message result with a pre-generated snippet.
func MessageResult(rec *MessageRecord, snippet string) *Message {
	return &Message{
		Header: Header{
			Type:        KindMessage,
			ID:          "message_" + rec.ID,
			DisplayName: rec.SenderName,
		},
		MessageID:      rec.ID,
		ConversationID: rec.ConversationID,
		SenderID:       rec.SenderID,
		Snippet:        snippet,
		SentAt:         rec.SentAt,
	}
}

func (m *Message) Kind() Kind              { return KindMessage }
func (m *Message) Common() *Header         { return &m.Header }
func (m *Message) LastActivity() time.Time { return m.SentAt }
func (m *Message) DedupKey() string        { return "message:" + m.MessageID }
func (m *Message) isResult()               {}

// PhoneSuggestion is the synthetic "start a chat with this number" result
// emitted when the query looks like a phone number.
type PhoneSuggestion struct {
	Header
	Phone      string `json:"phone"`
	Registered bool   `json:"registered"`
}

// PhoneSuggestionResult builds the synthetic phone suggestion for the given
// digits-only number.
func PhoneSuggestionResult(digits string, registered bool) *PhoneSuggestion {
	return &PhoneSuggestion{
		Header: Header{
			Type:        KindPhoneSuggestion,
			ID:          "phone_" + digits,
			DisplayName: "Message " + digits,
		},
		Phone:      digits,
		Registered: registered,
	}
}

func (p *PhoneSuggestion) Kind() Kind              { return KindPhoneSuggestion }
func (p *PhoneSuggestion) Common() *Header         { return &p.Header }
func (p *PhoneSuggestion) LastActivity() time.Time { return time.Time{} }
func (p *PhoneSuggestion) DedupKey() string        { return "phone:" + p.Phone }
func (p *PhoneSuggestion) isResult()               {}

// UnmarshalResult decodes one serialized result into its concrete variant,
// dispatching on the type tag. Used by clients reading the HTTP API.
func UnmarshalResult(data []byte) (Result, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	var r Result
	switch probe.Type {
	case KindContact:
		r = &Contact{}
	case KindUser:
		r = &User{}
	case KindGroup:
		r = &Group{}
	case KindConversation:
		r = &Conversation{}
	case KindMessage:
		r = &Message{}
	case KindPhoneSuggestion:
		r = &PhoneSuggestion{}
	default:
		return nil, fmt.Errorf("unknown result type %q", probe.Type)
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, err
	}
	return r, nil
}

// personKey collapses contact and user variants that refer to the same
// person. Keyed by the platform user id when known, otherwise by normalized
// phone.
func personKey(userID, phone string) string {
	if userID != "" {
		return "person:" + userID
	}
	return "person:phone:" + phone
}
