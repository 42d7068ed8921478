// Package signaling relays call-setup payloads between the two parties of a
// call without interpreting or persisting them.
package signaling

import (
	"github.com/rs/zerolog"

	"github.com/widechat/widechat/internal/events"
	"github.com/widechat/widechat/internal/observability"
	"github.com/widechat/widechat/internal/protocol"
)

// Relay is a stateless pass-through. Either party of a call may address the
// other; the relay does not check that a call record with matching status
// exists. Ordering between consecutive frames is the sender's concern.
type Relay struct {
	router  *events.Router
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewRelay(router *events.Router, metrics *observability.Metrics, log zerolog.Logger) *Relay {
	return &Relay{router: router, metrics: metrics, log: log}
}

// Signal forwards a WebRTC signaling blob to the target user. Malformed
// frames are dropped with a diagnostic; there is no response channel to
// surface an error on.
func (r *Relay) Signal(fromUserID string, frame protocol.SignalFrame) {
	if frame.TargetUserID == "" {
		r.drop("missing_target", fromUserID)
		return
	}
	if len(frame.Signal) == 0 {
		r.drop("missing_signal", fromUserID)
		return
	}
	r.router.Emit(frame.TargetUserID, protocol.WebRTCSignal{
		Type:         protocol.TypeWebRTCSignal,
		CallID:       frame.CallID,
		FromUserID:   fromUserID,
		TargetUserID: frame.TargetUserID,
		Signal:       frame.Signal,
	})
}

// ScreenShare forwards a screen-share toggle to the target user.
func (r *Relay) ScreenShare(fromUserID string, frame protocol.ScreenShareFrame) {
	if frame.TargetUserID == "" {
		r.drop("missing_target", fromUserID)
		return
	}
	r.router.Emit(frame.TargetUserID, protocol.ScreenShareStatus{
		Type:         protocol.TypeScreenShareStatus,
		CallID:       frame.CallID,
		FromUserID:   fromUserID,
		TargetUserID: frame.TargetUserID,
		IsSharing:    frame.IsSharing,
	})
}

// Typing relays the sender-supplied typing fields untouched to the receiver.
func (r *Relay) Typing(fromUserID string, frame protocol.TypingFrame) {
	if frame.ReceiverID == "" {
		r.drop("missing_target", fromUserID)
		return
	}
	r.router.Emit(frame.ReceiverID, protocol.UserTyping{
		Type:       protocol.TypeUserTyping,
		SenderID:   fromUserID,
		ReceiverID: frame.ReceiverID,
		ChatID:     frame.ChatID,
		IsTyping:   frame.IsTyping,
	})
}

func (r *Relay) drop(reason, fromUserID string) {
	if r.metrics != nil {
		r.metrics.RelayDrops.WithLabelValues(reason).Inc()
	}
	r.log.Debug().Str("reason", reason).Str("from_user_id", fromUserID).Msg("relay frame dropped")
}
