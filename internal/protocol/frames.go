package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FrameType identifies client-to-server websocket frame variants.
type FrameType string

const (
	FrameJoin         FrameType = "join"
	FrameHeartbeat    FrameType = "heartbeat"
	FrameTyping       FrameType = "typing"
	FrameWebRTCSignal FrameType = "webrtc_signal"
	FrameScreenShare  FrameType = "screen_share"
)

var ErrUnsupportedFrame = errors.New("unsupported frame type")

type Envelope struct {
	Type FrameType `json:"type"`
}

// JoinFrame announces the connection's user identity after the transport-level
// handshake. The gateway checks it against the authenticated subject.
type JoinFrame struct {
	Type   FrameType `json:"type"`
	UserID string    `json:"user_id"`
}

type HeartbeatFrame struct {
	Type   FrameType `json:"type"`
	UserID string    `json:"user_id"`
}

type TypingFrame struct {
	Type       FrameType `json:"type"`
	ReceiverID string    `json:"receiver_id"`
	ChatID     string    `json:"chat_id,omitempty"`
	IsTyping   bool      `json:"is_typing"`
}

type SignalFrame struct {
	Type         FrameType       `json:"type"`
	CallID       string          `json:"call_id"`
	TargetUserID string          `json:"target_user_id"`
	Signal       json.RawMessage `json:"signal"`
}

type ScreenShareFrame struct {
	Type         FrameType `json:"type"`
	CallID       string    `json:"call_id"`
	TargetUserID string    `json:"target_user_id"`
	IsSharing    bool      `json:"is_sharing"`
}

// ParseClientFrame decodes and validates one inbound websocket frame.
func ParseClientFrame(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case FrameJoin:
		var msg JoinFrame
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.UserID == "" {
			return nil, errors.New("invalid join: missing user_id")
		}
		return msg, nil
	case FrameHeartbeat:
		var msg HeartbeatFrame
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.UserID == "" {
			return nil, errors.New("invalid heartbeat: missing user_id")
		}
		return msg, nil
	case FrameTyping:
		var msg TypingFrame
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.ReceiverID == "" {
			return nil, errors.New("invalid typing: missing receiver_id")
		}
		return msg, nil
	case FrameWebRTCSignal:
		var msg SignalFrame
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case FrameScreenShare:
		var msg ScreenShareFrame
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedFrame
	}
}
