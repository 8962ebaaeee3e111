package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pingline/omnisearch/internal/models"
)

// Read-side queries. Patterns arrive lowercase and LIKE-ready (wildcards plus
// escaped metacharacters, see search.NormalizeQuery); digits fragments are
// matched with instr since they contain no metacharacters.

// SearchContacts returns the owner's contacts matching pattern or digits.
func (s *SQLiteStore) SearchContacts(ctx context.Context, ownerID, pattern, digits string, limit int) ([]*models.ContactRecord, error) {
	conds := []string{
		`lower(display_name) LIKE ? ESCAPE '\'`,
		`lower(phone) LIKE ? ESCAPE '\'`,
	}
	args := []interface{}{ownerID, pattern, pattern}
	if digits != "" {
		conds = append(conds, `instr(phone_normalized, ?) > 0`)
		args = append(args, digits)
	}
	args = append(args, limit)

	query := `SELECT id, owner_id, display_name, phone, phone_normalized,
		COALESCE(avatar_url, ''), COALESCE(linked_user_id, ''), created_at
		FROM contacts
		WHERE owner_id = ? AND (` + strings.Join(conds, " OR ") + `)
		ORDER BY display_name, id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*models.ContactRecord
	for rows.Next() {
		var c models.ContactRecord
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.DisplayName, &c.Phone, &c.PhoneNormalized,
			&c.AvatarURL, &c.LinkedUserID, &c.CreatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, &c)
	}
	return contacts, rows.Err()
}

// HasContact reports whether the owner has a contact linked to userID.
func (s *SQLiteStore) HasContact(ctx context.Context, ownerID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM contacts WHERE owner_id = ? AND linked_user_id = ?)`,
		ownerID, userID,
	).Scan(&exists)
	return exists, err
}

// ContactByOwnerAndUser returns the owner's contact linked to userID, or nil.
func (s *SQLiteStore) ContactByOwnerAndUser(ctx context.Context, ownerID, userID string) (*models.ContactRecord, error) {
	var c models.ContactRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, display_name, phone, phone_normalized,
		 COALESCE(avatar_url, ''), COALESCE(linked_user_id, ''), created_at
		 FROM contacts WHERE owner_id = ? AND linked_user_id = ? LIMIT 1`,
		ownerID, userID,
	).Scan(&c.ID, &c.OwnerID, &c.DisplayName, &c.Phone, &c.PhoneNormalized,
		&c.AvatarURL, &c.LinkedUserID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SearchUsers returns verified-phone users other than excludeUserID, matching
// by name, email, phone digits, or slug.
func (s *SQLiteStore) SearchUsers(ctx context.Context, excludeUserID, pattern, digits string, limit int) ([]*models.UserRecord, error) {
	conds := []string{
		`lower(display_name) LIKE ? ESCAPE '\'`,
		`lower(COALESCE(email, '')) LIKE ? ESCAPE '\'`,
		`lower(COALESCE(slug, '')) LIKE ? ESCAPE '\'`,
	}
	args := []interface{}{excludeUserID, pattern, pattern, pattern}
	if digits != "" {
		conds = append(conds, `instr(phone, ?) > 0`)
		args = append(args, digits)
	}
	args = append(args, limit)

	query := `SELECT id, display_name, phone, phone_verified,
		COALESCE(email, ''), COALESCE(slug, ''), COALESCE(avatar_url, ''), created_at
		FROM users
		WHERE id != ? AND phone_verified = 1 AND (` + strings.Join(conds, " OR ") + `)
		ORDER BY display_name, id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.UserRecord
	for rows.Next() {
		var u models.UserRecord
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.Phone, &u.PhoneVerified,
			&u.Email, &u.Slug, &u.AvatarURL, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// UserPhoneExists reports whether a verified user has this phone number.
func (s *SQLiteStore) UserPhoneExists(ctx context.Context, digits string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE phone = ? AND phone_verified = 1)`,
		digits,
	).Scan(&exists)
	return exists, err
}

// SearchGroups returns groups matching name, description, or slug where the
// requester is a member or the group is public.
func (s *SQLiteStore) SearchGroups(ctx context.Context, requesterID, pattern string, limit int) ([]*models.GroupRecord, error) {
	query := `SELECT g.id, g.name, COALESCE(g.description, ''), COALESCE(g.slug, ''),
		COALESCE(g.avatar_url, ''), g.public,
		(SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id) AS member_count,
		EXISTS(SELECT 1 FROM group_members gm WHERE gm.group_id = g.id AND gm.user_id = ?) AS is_member
		FROM groups g
		WHERE (g.public = 1 OR EXISTS(SELECT 1 FROM group_members gm WHERE gm.group_id = g.id AND gm.user_id = ?))
		AND (lower(g.name) LIKE ? ESCAPE '\'
			OR lower(COALESCE(g.description, '')) LIKE ? ESCAPE '\'
			OR lower(COALESCE(g.slug, '')) LIKE ? ESCAPE '\')
		ORDER BY g.name, g.id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query,
		requesterID, requesterID, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*models.GroupRecord
	for rows.Next() {
		var g models.GroupRecord
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Slug,
			&g.AvatarURL, &g.Public, &g.MemberCount, &g.IsMember); err != nil {
			return nil, err
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

// directConversationSelect joins a direct conversation with the requester's
// membership row and the peer's user row.
const directConversationSelect = `
	SELECT c.id, COALESCE(c.slug, ''), peer.id, peer.display_name, peer.phone,
		COALESCE(peer.avatar_url, ''), COALESCE(c.last_message_text, ''),
		c.last_message_at, me.unread_count
	FROM conversations c
	JOIN conversation_members me ON me.conversation_id = c.id AND me.user_id = ?
	JOIN conversation_members other ON other.conversation_id = c.id AND other.user_id != me.user_id
	JOIN users peer ON peer.id = other.user_id
	WHERE c.kind = 'direct'`

func scanConversations(rows *sql.Rows) ([]*models.ConversationRecord, error) {
	var convs []*models.ConversationRecord
	for rows.Next() {
		var c models.ConversationRecord
		var lastAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.Slug, &c.PeerUserID, &c.PeerName, &c.PeerPhone,
			&c.PeerAvatarURL, &c.LastMessageText, &lastAt, &c.UnreadCount); err != nil {
			return nil, err
		}
		if lastAt.Valid {
			c.LastMessageAt = lastAt.Time
		}
		convs = append(convs, &c)
	}
	return convs, rows.Err()
}

// SearchConversations returns the requester's direct conversations where the
// peer matches pattern/digits or any message body matches pattern.
func (s *SQLiteStore) SearchConversations(ctx context.Context, requesterID, pattern, digits string, limit int) ([]*models.ConversationRecord, error) {
	conds := []string{
		`lower(peer.display_name) LIKE ? ESCAPE '\'`,
		`lower(peer.phone) LIKE ? ESCAPE '\'`,
		`EXISTS(SELECT 1 FROM messages m WHERE m.conversation_id = c.id AND lower(m.body) LIKE ? ESCAPE '\')`,
	}
	args := []interface{}{requesterID, pattern, pattern, pattern}
	if digits != "" {
		conds = append(conds, `instr(peer.phone, ?) > 0`)
		args = append(args, digits)
	}
	args = append(args, limit)

	query := directConversationSelect + `
		AND (` + strings.Join(conds, " OR ") + `)
		ORDER BY c.last_message_at DESC, c.id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConversations(rows)
}

// RecentConversations returns direct conversations by last activity.
func (s *SQLiteStore) RecentConversations(ctx context.Context, requesterID string, limit int) ([]*models.ConversationRecord, error) {
	query := directConversationSelect + `
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC, c.id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, requesterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConversations(rows)
}

// UnreadConversations returns direct conversations with unread messages, by
// last activity.
func (s *SQLiteStore) UnreadConversations(ctx context.Context, requesterID string, limit int) ([]*models.ConversationRecord, error) {
	query := directConversationSelect + `
		AND me.unread_count > 0
		ORDER BY c.last_message_at DESC, c.id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, requesterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConversations(rows)
}

// UnreadCountWith returns the requester's unread count in the direct
// conversation with peerUserID, 0 when no conversation exists.
func (s *SQLiteStore) UnreadCountWith(ctx context.Context, requesterID, peerUserID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT me.unread_count
		 FROM conversations c
		 JOIN conversation_members me ON me.conversation_id = c.id AND me.user_id = ?
		 JOIN conversation_members other ON other.conversation_id = c.id AND other.user_id = ?
		 WHERE c.kind = 'direct' LIMIT 1`,
		requesterID, peerUserID,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, err
}

// UnreadCountInGroup returns the requester's unread count in the group's
// conversation, 0 when the requester is not a member.
func (s *SQLiteStore) UnreadCountInGroup(ctx context.Context, requesterID, groupID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT me.unread_count
		 FROM conversations c
		 JOIN conversation_members me ON me.conversation_id = c.id AND me.user_id = ?
		 WHERE c.kind = 'group' AND c.group_id = ? LIMIT 1`,
		requesterID, groupID,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, err
}

const messageSelect = `
	SELECT m.id, m.conversation_id, m.sender_id, COALESCE(u.display_name, ''),
		m.body, COALESCE(m.attachment_name, ''), m.sent_at
	FROM messages m
	JOIN conversation_members cm ON cm.conversation_id = m.conversation_id AND cm.user_id = ?
	LEFT JOIN users u ON u.id = m.sender_id`

func scanMessages(rows *sql.Rows) ([]*models.MessageRecord, error) {
	var msgs []*models.MessageRecord
	for rows.Next() {
		var m models.MessageRecord
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName,
			&m.Body, &m.AttachmentName, &m.SentAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// SearchMessages returns messages in the requester's conversations whose body
// or attachment filename match the pattern, most recent first.
func (s *SQLiteStore) SearchMessages(ctx context.Context, requesterID, pattern string, limit int) ([]*models.MessageRecord, error) {
	query := messageSelect + `
		WHERE (lower(m.body) LIKE ? ESCAPE '\'
			OR lower(COALESCE(m.attachment_name, '')) LIKE ? ESCAPE '\')
		ORDER BY m.sent_at DESC, m.id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, requesterID, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MessagesByIDs returns the given messages, restricted to conversations the
// requester is a member of, most recent first.
func (s *SQLiteStore) MessagesByIDs(ctx context.Context, requesterID string, ids []string) ([]*models.MessageRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, requesterID)
	for _, id := range ids {
		args = append(args, id)
	}

	query := messageSelect + `
		WHERE m.id IN (` + placeholders + `)
		ORDER BY m.sent_at DESC, m.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// FrequentPeers returns the requester's top direct-message correspondents
// within the last sinceDays days, by message volume.
func (s *SQLiteStore) FrequentPeers(ctx context.Context, requesterID string, sinceDays, limit int) ([]*models.FrequentPeer, error) {
	cutoff := time.Now().AddDate(0, 0, -sinceDays)
	rows, err := s.db.QueryContext(ctx,
		`SELECT other.user_id, COUNT(m.id) AS message_count
		 FROM conversations c
		 JOIN conversation_members me ON me.conversation_id = c.id AND me.user_id = ?
		 JOIN conversation_members other ON other.conversation_id = c.id AND other.user_id != me.user_id
		 JOIN messages m ON m.conversation_id = c.id AND m.sent_at >= ?
		 WHERE c.kind = 'direct'
		 GROUP BY other.user_id
		 ORDER BY message_count DESC, other.user_id LIMIT ?`,
		requesterID, cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var peers []*models.FrequentPeer
	for rows.Next() {
		var p models.FrequentPeer
		if err := rows.Scan(&p.UserID, &p.MessageCount); err != nil {
			return nil, err
		}
		peers = append(peers, &p)
	}
	return peers, rows.Err()
}
