// Package store is the persistence collaborator: a document store with
// by-field equality/range queries and array-membership queries. The realtime
// core treats it as opaque; only the HTTP layer and the call service write
// through it.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("document already exists")
)

// MessageDeletedText replaces the body of a message deleted for everyone.
const MessageDeletedText = "This message was deleted"

type User struct {
	ID           string    `json:"uid"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ProfilePic   string    `json:"profile_pic"`
	About        string    `json:"about"`
	IsOnline     bool      `json:"is_online"`
	LastSeen     time.Time `json:"last_seen"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProfileUpdate carries only the fields the caller wants changed.
type ProfileUpdate struct {
	Username   *string
	About      *string
	ProfilePic *string
}

type Chat struct {
	ID              string    `json:"chat_id"`
	Participants    []string  `json:"participants"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	CreatedAt       time.Time `json:"created_at"`
}

type Message struct {
	ID          string    `json:"message_id"`
	ChatID      string    `json:"chat_id"`
	GroupID     string    `json:"group_id,omitempty"`
	SenderID    string    `json:"sender_id"`
	ReceiverID  string    `json:"receiver_id,omitempty"`
	Text        string    `json:"text"`
	MessageType string    `json:"message_type"`
	FileURL     string    `json:"file_url,omitempty"`
	ReadBy      []string  `json:"read_by"`
	HiddenFor   []string  `json:"hidden_for,omitempty"`
	IsEdited    bool      `json:"is_edited"`
	IsDeleted   bool      `json:"is_deleted"`
	Timestamp   time.Time `json:"timestamp"`
	EditedAt    time.Time `json:"edited_at,omitempty"`
}

type Group struct {
	ID          string    `json:"group_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	GroupIcon   string    `json:"group_icon"`
	AdminID     string    `json:"admin_id"`
	Members     []string  `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
}

// CallStatus tracks the lifecycle of a call record. Signaling payloads are
// never stored, only the routing metadata.
type CallStatus string

const (
	CallRinging  CallStatus = "ringing"
	CallAccepted CallStatus = "accepted"
	CallRejected CallStatus = "rejected"
	CallEnded    CallStatus = "ended"
)

type CallRecord struct {
	ID         string     `json:"call_id"`
	CallerID   string     `json:"caller_id"`
	ReceiverID string     `json:"receiver_id"`
	CallType   string     `json:"call_type"`
	Status     CallStatus `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    time.Time  `json:"ended_at,omitempty"`
}

type ChatRequest struct {
	ID         string    `json:"request_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Message    string    `json:"message"`
	Status     string    `json:"status"` // pending, accepted, rejected
	CreatedAt  time.Time `json:"created_at"`
}

type StatusPost struct {
	ID        string    `json:"status_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	MediaURL  string    `json:"media_url,omitempty"`
	MediaType string    `json:"media_type"`
	Timestamp time.Time `json:"timestamp"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store is the document-store boundary. Implementations must be safe for
// concurrent use.
type Store interface {
	CreateUser(ctx context.Context, u User) error
	UserByID(ctx context.Context, id string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	SearchUsers(ctx context.Context, usernamePrefix, excludeID string, limit int) ([]User, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) error
	SetUserOnline(ctx context.Context, id string, online bool, lastSeen time.Time) error

	EnsureChat(ctx context.Context, c Chat) error
	ChatByID(ctx context.Context, id string) (Chat, error)
	TouchChat(ctx context.Context, id, lastMessage string, at time.Time) error

	SaveMessage(ctx context.Context, m Message) error
	MessageByID(ctx context.Context, id string) (Message, error)
	EditMessage(ctx context.Context, id, newText string, at time.Time) error
	DeleteMessageForEveryone(ctx context.Context, id string) error
	HideMessageFor(ctx context.Context, id, userID string) error
	MarkMessageRead(ctx context.Context, id, userID string) error

	CreateGroup(ctx context.Context, g Group) error
	GroupByID(ctx context.Context, id string) (Group, error)
	AddGroupMember(ctx context.Context, groupID, userID string) error

	CreateCall(ctx context.Context, c CallRecord) error
	CallByID(ctx context.Context, id string) (CallRecord, error)
	UpdateCallStatus(ctx context.Context, id string, status CallStatus, endedAt time.Time) error

	CreateChatRequest(ctx context.Context, r ChatRequest) error
	ChatRequestByID(ctx context.Context, id string) (ChatRequest, error)
	UpdateChatRequestStatus(ctx context.Context, id, status string) error

	SaveStatusPost(ctx context.Context, s StatusPost) error
	ActiveStatusPosts(ctx context.Context, userID string, now time.Time) ([]StatusPost, error)

	Close() error
}
