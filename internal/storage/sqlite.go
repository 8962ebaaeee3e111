package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pingline/omnisearch/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		phone TEXT NOT NULL,
		phone_verified INTEGER NOT NULL DEFAULT 0,
		email TEXT,
		slug TEXT,
		avatar_url TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_phone ON users(phone);
	CREATE INDEX IF NOT EXISTS idx_users_slug ON users(slug);

	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		display_name TEXT NOT NULL,
		phone TEXT NOT NULL,
		phone_normalized TEXT NOT NULL,
		avatar_url TEXT,
		linked_user_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_contacts_owner ON contacts(owner_id);
	CREATE INDEX IF NOT EXISTS idx_contacts_linked_user ON contacts(owner_id, linked_user_id);

	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		slug TEXT,
		avatar_url TEXT,
		public INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS group_members (
		group_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		PRIMARY KEY (group_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		slug TEXT,
		kind TEXT NOT NULL CHECK (kind IN ('direct', 'group')),
		group_id TEXT,
		last_message_text TEXT,
		last_message_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_group ON conversations(group_id);

	CREATE TABLE IF NOT EXISTS conversation_members (
		conversation_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		unread_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (conversation_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_conversation_members_user ON conversation_members(user_id);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		body TEXT NOT NULL,
		attachment_name TEXT,
		sent_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, sent_at);
	CREATE INDEX IF NOT EXISTS idx_messages_sent_at ON messages(sent_at);
	`
	_, err := db.Exec(schema)
	return err
}

// PutUser inserts or replaces a user. A missing ID is generated.
func (s *SQLiteStore) PutUser(ctx context.Context, u *models.UserRecord) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO users (id, display_name, phone, phone_verified, email, slug, avatar_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.DisplayName, u.Phone, u.PhoneVerified, u.Email, u.Slug, u.AvatarURL, u.CreatedAt,
	)
	return err
}

// PutContact inserts or replaces a contact. A missing ID is generated.
func (s *SQLiteStore) PutContact(ctx context.Context, c *models.ContactRecord) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO contacts (id, owner_id, display_name, phone, phone_normalized, avatar_url, linked_user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.DisplayName, c.Phone, c.PhoneNormalized, c.AvatarURL, c.LinkedUserID, c.CreatedAt,
	)
	return err
}

// PutGroup inserts or replaces a group and sets its member list.
func (s *SQLiteStore) PutGroup(ctx context.Context, g *models.GroupRecord, memberIDs []string) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO groups (id, name, description, slug, avatar_url, public)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Description, g.Slug, g.AvatarURL, g.Public,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, g.ID); err != nil {
		return err
	}
	for _, uid := range memberIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`, g.ID, uid,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// PutDirectConversation creates a direct conversation between two users.
// Returns the conversation id.
func (s *SQLiteStore) PutDirectConversation(ctx context.Context, id, slug, userA, userB string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO conversations (id, slug, kind) VALUES (?, ?, 'direct')`, id, slug,
	); err != nil {
		return "", err
	}
	for _, uid := range []string{userA, userB} {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO conversation_members (conversation_id, user_id, unread_count) VALUES (?, ?, 0)`,
			id, uid,
		); err != nil {
			return "", err
		}
	}
	return id, tx.Commit()
}

// PutGroupConversation creates the conversation behind a group, with the
// group's members as participants. Returns the conversation id.
func (s *SQLiteStore) PutGroupConversation(ctx context.Context, id, groupID string, memberIDs []string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO conversations (id, kind, group_id) VALUES (?, 'group', ?)`, id, groupID,
	); err != nil {
		return "", err
	}
	for _, uid := range memberIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO conversation_members (conversation_id, user_id, unread_count) VALUES (?, ?, 0)`,
			id, uid,
		); err != nil {
			return "", err
		}
	}
	return id, tx.Commit()
}

// PutMessage inserts a message, refreshes the conversation's last-message
// denormalization, and increments unread counts for the other members.
func (s *SQLiteStore) PutMessage(ctx context.Context, m *models.MessageRecord) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, body, attachment_name, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.SenderID, m.Body, m.AttachmentName, m.SentAt,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_message_text = ?, last_message_at = ? WHERE id = ?`,
		m.Body, m.SentAt, m.ConversationID,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversation_members SET unread_count = unread_count + 1
		 WHERE conversation_id = ? AND user_id != ?`,
		m.ConversationID, m.SenderID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkRead resets the user's unread count in a conversation.
func (s *SQLiteStore) MarkRead(ctx context.Context, conversationID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversation_members SET unread_count = 0 WHERE conversation_id = ? AND user_id = ?`,
		conversationID, userID,
	)
	return err
}

// CountUsers returns the total number of users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CountMessages returns the total number of messages.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
