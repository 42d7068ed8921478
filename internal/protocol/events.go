package protocol

import (
	"encoding/json"
	"time"
)

// EventType identifies server-to-client event variants.
type EventType string

const (
	TypeUserOnline          EventType = "user_online"
	TypeUserOffline         EventType = "user_offline"
	TypeNewMessage          EventType = "new_message"
	TypeUserTyping          EventType = "user_typing"
	TypeIncomingCall        EventType = "incoming_call"
	TypeCallResponse        EventType = "call_response"
	TypeWebRTCSignal        EventType = "webrtc_signal"
	TypeScreenShareStatus   EventType = "screen_share_status"
	TypeChatRequest         EventType = "chat_request"
	TypeChatRequestResponse EventType = "chat_request_response"
	TypeGroupCreated        EventType = "group_created"
	TypeErrorEvent          EventType = "error_event"
)

type UserOnline struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type UserOffline struct {
	Type     EventType `json:"type"`
	UserID   string    `json:"user_id"`
	LastSeen time.Time `json:"last_seen"`
}

type NewMessage struct {
	Type        EventType `json:"type"`
	MessageID   string    `json:"message_id"`
	ChatID      string    `json:"chat_id,omitempty"`
	GroupID     string    `json:"group_id,omitempty"`
	SenderID    string    `json:"sender_id"`
	ReceiverID  string    `json:"receiver_id,omitempty"`
	Text        string    `json:"text"`
	MessageType string    `json:"message_type"`
	FileURL     string    `json:"file_url,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// UserTyping relays the sender-supplied fields untouched to the receiver.
type UserTyping struct {
	Type       EventType `json:"type"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	ChatID     string    `json:"chat_id,omitempty"`
	IsTyping   bool      `json:"is_typing"`
}

type IncomingCall struct {
	Type         EventType `json:"type"`
	CallID       string    `json:"call_id"`
	CallerID     string    `json:"caller_id"`
	CallerName   string    `json:"caller_name"`
	ReceiverID   string    `json:"receiver_id"`
	ReceiverName string    `json:"receiver_name,omitempty"`
	CallType     string    `json:"call_type"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

type CallResponse struct {
	Type   EventType `json:"type"`
	CallID string    `json:"call_id"`
	Action string    `json:"action"`
}

// WebRTCSignal carries an opaque signaling blob (SDP offer/answer or ICE
// candidate) between the two call parties. The server never inspects it.
type WebRTCSignal struct {
	Type         EventType       `json:"type"`
	CallID       string          `json:"call_id"`
	FromUserID   string          `json:"from_user_id"`
	TargetUserID string          `json:"target_user_id"`
	Signal       json.RawMessage `json:"signal"`
}

type ScreenShareStatus struct {
	Type         EventType `json:"type"`
	CallID       string    `json:"call_id"`
	FromUserID   string    `json:"from_user_id"`
	TargetUserID string    `json:"target_user_id"`
	IsSharing    bool      `json:"is_sharing"`
}

type ChatRequest struct {
	Type       EventType `json:"type"`
	RequestID  string    `json:"request_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	Message    string    `json:"message,omitempty"`
}

type ChatRequestResponse struct {
	Type      EventType `json:"type"`
	RequestID string    `json:"request_id"`
	Action    string    `json:"action"`
}

type GroupCreated struct {
	Type      EventType `json:"type"`
	GroupID   string    `json:"group_id"`
	Name      string    `json:"name"`
	CreatorID string    `json:"creator_id"`
}

type ErrorEvent struct {
	Type   EventType `json:"type"`
	Code   string    `json:"code"`
	Detail string    `json:"detail"`
}

// TypeOf reports the event type of a server event value.
func TypeOf(v any) (EventType, bool) {
	switch e := v.(type) {
	case UserOnline:
		return e.Type, true
	case UserOffline:
		return e.Type, true
	case NewMessage:
		return e.Type, true
	case UserTyping:
		return e.Type, true
	case IncomingCall:
		return e.Type, true
	case CallResponse:
		return e.Type, true
	case WebRTCSignal:
		return e.Type, true
	case ScreenShareStatus:
		return e.Type, true
	case ChatRequest:
		return e.Type, true
	case ChatRequestResponse:
		return e.Type, true
	case GroupCreated:
		return e.Type, true
	case ErrorEvent:
		return e.Type, true
	default:
		return "", false
	}
}
