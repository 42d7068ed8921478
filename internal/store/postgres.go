package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists every collection in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			profile_pic TEXT NOT NULL DEFAULT '',
			about TEXT NOT NULL DEFAULT '',
			is_online BOOLEAN NOT NULL DEFAULT FALSE,
			last_seen TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users (username);`,
		`CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			participants TEXT[] NOT NULL,
			last_message TEXT NOT NULL DEFAULT '',
			last_message_time TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			group_id TEXT NOT NULL DEFAULT '',
			sender_id TEXT NOT NULL,
			receiver_id TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			message_type TEXT NOT NULL DEFAULT 'text',
			file_url TEXT NOT NULL DEFAULT '',
			read_by TEXT[] NOT NULL DEFAULT '{}',
			hidden_for TEXT[] NOT NULL DEFAULT '{}',
			is_edited BOOLEAN NOT NULL DEFAULT FALSE,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			ts TIMESTAMPTZ NOT NULL DEFAULT now(),
			edited_at TIMESTAMPTZ
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_ts ON messages (chat_id, ts);`,
		`CREATE TABLE IF NOT EXISTS groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			group_icon TEXT NOT NULL DEFAULT '',
			admin_id TEXT NOT NULL,
			members TEXT[] NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS calls (
			id TEXT PRIMARY KEY,
			caller_id TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			call_type TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			ended_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS chat_requests (
			id TEXT PRIMARY KEY,
			sender_id TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS status_posts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			media_url TEXT NOT NULL DEFAULT '',
			media_type TEXT NOT NULL DEFAULT 'text',
			ts TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_status_posts_user_expiry ON status_posts (user_id, expires_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, profile_pic, about, is_online, last_seen, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.ProfilePic, u.About, u.IsOnline, u.LastSeen, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

const userColumns = `id, username, email, password_hash, profile_pic, about, is_online, COALESCE(last_seen, 'epoch'::timestamptz), created_at`

func (s *PostgresStore) UserByID(ctx context.Context, id string) (User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (s *PostgresStore) scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.ProfilePic, &u.About, &u.IsOnline, &u.LastSeen, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) SearchUsers(ctx context.Context, usernamePrefix, excludeID string, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE username ILIKE $1 || '%' AND id <> $2
		 ORDER BY username LIMIT $3`,
		usernamePrefix, excludeID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.ProfilePic, &u.About, &u.IsOnline, &u.LastSeen, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET
			username = COALESCE($2, username),
			about = COALESCE($3, about),
			profile_pic = COALESCE($4, profile_pic)
		 WHERE id=$1`,
		id, upd.Username, upd.About, upd.ProfilePic,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetUserOnline(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET is_online=$2, last_seen=$3 WHERE id=$1`,
		id, online, lastSeen,
	)
	if err != nil {
		return fmt.Errorf("set user online: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) EnsureChat(ctx context.Context, c Chat) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chats (id, participants, last_message, last_message_time, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		c.ID, c.Participants, c.LastMessage, c.LastMessageTime, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ensure chat: %w", err)
	}
	return nil
}

func (s *PostgresStore) ChatByID(ctx context.Context, id string) (Chat, error) {
	var c Chat
	err := s.pool.QueryRow(ctx,
		`SELECT id, participants, last_message, COALESCE(last_message_time, 'epoch'::timestamptz), created_at
		 FROM chats WHERE id=$1`, id,
	).Scan(&c.ID, &c.Participants, &c.LastMessage, &c.LastMessageTime, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Chat{}, ErrNotFound
	}
	if err != nil {
		return Chat{}, fmt.Errorf("scan chat: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) TouchChat(ctx context.Context, id, lastMessage string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chats SET last_message=$2, last_message_time=$3 WHERE id=$1`,
		id, lastMessage, at,
	)
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, m Message) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, chat_id, group_id, sender_id, receiver_id, text, message_type, file_url, read_by, hidden_for, is_edited, is_deleted, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		m.ID, m.ChatID, m.GroupID, m.SenderID, m.ReceiverID, m.Text, m.MessageType, m.FileURL,
		m.ReadBy, m.HiddenFor, m.IsEdited, m.IsDeleted, m.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (s *PostgresStore) MessageByID(ctx context.Context, id string) (Message, error) {
	var m Message
	err := s.pool.QueryRow(ctx,
		`SELECT id, chat_id, group_id, sender_id, receiver_id, text, message_type, file_url, read_by, hidden_for, is_edited, is_deleted, ts, COALESCE(edited_at, 'epoch'::timestamptz)
		 FROM messages WHERE id=$1`, id,
	).Scan(&m.ID, &m.ChatID, &m.GroupID, &m.SenderID, &m.ReceiverID, &m.Text, &m.MessageType, &m.FileURL,
		&m.ReadBy, &m.HiddenFor, &m.IsEdited, &m.IsDeleted, &m.Timestamp, &m.EditedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("scan message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) EditMessage(ctx context.Context, id, newText string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET text=$2, is_edited=TRUE, edited_at=$3 WHERE id=$1`,
		id, newText, at,
	)
	if err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteMessageForEveryone(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET is_deleted=TRUE, text=$2 WHERE id=$1`, id, MessageDeletedText)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) HideMessageFor(ctx context.Context, id, userID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE messages SET hidden_for = array_append(hidden_for, $2)
		 WHERE id=$1 AND NOT ($2 = ANY(hidden_for))`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("hide message: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkMessageRead(ctx context.Context, id, userID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE messages SET read_by = array_append(read_by, $2)
		 WHERE id=$1 AND NOT ($2 = ANY(read_by))`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateGroup(ctx context.Context, g Group) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO groups (id, name, description, group_icon, admin_id, members, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		g.ID, g.Name, g.Description, g.GroupIcon, g.AdminID, g.Members, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

func (s *PostgresStore) GroupByID(ctx context.Context, id string) (Group, error) {
	var g Group
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, group_icon, admin_id, members, created_at FROM groups WHERE id=$1`, id,
	).Scan(&g.ID, &g.Name, &g.Description, &g.GroupIcon, &g.AdminID, &g.Members, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, ErrNotFound
	}
	if err != nil {
		return Group{}, fmt.Errorf("scan group: %w", err)
	}
	return g, nil
}

func (s *PostgresStore) AddGroupMember(ctx context.Context, groupID, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE groups SET members = array_append(members, $2)
		 WHERE id=$1 AND NOT ($2 = ANY(members))`,
		groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the group is missing or the user is already a member;
		// distinguish for the caller.
		if _, err := s.GroupByID(ctx, groupID); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) CreateCall(ctx context.Context, c CallRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO calls (id, caller_id, receiver_id, call_type, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.CallerID, c.ReceiverID, c.CallType, string(c.Status), c.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("create call: %w", err)
	}
	return nil
}

func (s *PostgresStore) CallByID(ctx context.Context, id string) (CallRecord, error) {
	var c CallRecord
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, caller_id, receiver_id, call_type, status, started_at, COALESCE(ended_at, 'epoch'::timestamptz)
		 FROM calls WHERE id=$1`, id,
	).Scan(&c.ID, &c.CallerID, &c.ReceiverID, &c.CallType, &status, &c.StartedAt, &c.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return CallRecord{}, ErrNotFound
	}
	if err != nil {
		return CallRecord{}, fmt.Errorf("scan call: %w", err)
	}
	c.Status = CallStatus(status)
	return c, nil
}

func (s *PostgresStore) UpdateCallStatus(ctx context.Context, id string, status CallStatus, endedAt time.Time) error {
	var tag pgconn.CommandTag
	var err error
	if endedAt.IsZero() {
		tag, err = s.pool.Exec(ctx, `UPDATE calls SET status=$2 WHERE id=$1`, id, string(status))
	} else {
		tag, err = s.pool.Exec(ctx, `UPDATE calls SET status=$2, ended_at=$3 WHERE id=$1`, id, string(status), endedAt)
	}
	if err != nil {
		return fmt.Errorf("update call status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateChatRequest(ctx context.Context, r ChatRequest) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_requests (id, sender_id, receiver_id, message, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.SenderID, r.ReceiverID, r.Message, r.Status, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create chat request: %w", err)
	}
	return nil
}

func (s *PostgresStore) ChatRequestByID(ctx context.Context, id string) (ChatRequest, error) {
	var r ChatRequest
	err := s.pool.QueryRow(ctx,
		`SELECT id, sender_id, receiver_id, message, status, created_at FROM chat_requests WHERE id=$1`, id,
	).Scan(&r.ID, &r.SenderID, &r.ReceiverID, &r.Message, &r.Status, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ChatRequest{}, ErrNotFound
	}
	if err != nil {
		return ChatRequest{}, fmt.Errorf("scan chat request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) UpdateChatRequestStatus(ctx context.Context, id, status string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE chat_requests SET status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return fmt.Errorf("update chat request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveStatusPost(ctx context.Context, p StatusPost) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO status_posts (id, user_id, content, media_url, media_type, ts, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.UserID, p.Content, p.MediaURL, p.MediaType, p.Timestamp, p.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save status post: %w", err)
	}
	return nil
}

func (s *PostgresStore) ActiveStatusPosts(ctx context.Context, userID string, now time.Time) ([]StatusPost, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, content, media_url, media_type, ts, expires_at
		 FROM status_posts WHERE user_id=$1 AND expires_at > $2 ORDER BY ts DESC`,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("query status posts: %w", err)
	}
	defer rows.Close()

	var out []StatusPost
	for rows.Next() {
		var p StatusPost
		if err := rows.Scan(&p.ID, &p.UserID, &p.Content, &p.MediaURL, &p.MediaType, &p.Timestamp, &p.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan status post: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status posts: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
