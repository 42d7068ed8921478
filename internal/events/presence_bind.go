package events

import (
	"time"

	"github.com/widechat/widechat/internal/observability"
	"github.com/widechat/widechat/internal/presence"
	"github.com/widechat/widechat/internal/protocol"
)

// BindPresence wires registry transitions to the broadcast path: every
// activation announces user_online to the other sessions, every removal
// (explicit or evicted) announces user_offline.
func BindPresence(reg *presence.Registry, router *Router, metrics *observability.Metrics) {
	reg.SetOnlineHook(func(s presence.Session) {
		if metrics != nil {
			metrics.PresenceEvents.WithLabelValues("activated").Inc()
			metrics.OnlineUsers.Set(float64(reg.OnlineCount()))
		}
		router.BroadcastExcept(protocol.UserOnline{
			Type:      protocol.TypeUserOnline,
			UserID:    s.UserID,
			Timestamp: s.ConnectedAt,
		}, s.Conn.ID())
	})

	reg.SetOfflineHook(func(s presence.Session, reason presence.OfflineReason, lastSeen time.Time) {
		if metrics != nil {
			metrics.PresenceEvents.WithLabelValues(string(reason)).Inc()
			metrics.OnlineUsers.Set(float64(reg.OnlineCount()))
		}
		router.BroadcastExcept(protocol.UserOffline{
			Type:     protocol.TypeUserOffline,
			UserID:   s.UserID,
			LastSeen: lastSeen,
		}, s.Conn.ID())
	})

	reg.SetSupersededHook(func(presence.Session) {
		if metrics != nil {
			metrics.PresenceEvents.WithLabelValues("superseded").Inc()
		}
	})
}
