package events

import (
	"github.com/rs/zerolog"

	"github.com/widechat/widechat/internal/observability"
	"github.com/widechat/widechat/internal/presence"
	"github.com/widechat/widechat/internal/protocol"
)

// Resolver is the registry surface the router needs: forward lookup for
// targeted emits and the full connection set for fan-out.
type Resolver interface {
	Resolve(userID string) (presence.Conn, bool)
	Conns() []presence.Conn
}

// Router delivers named events to the current connection of a user, if any.
// Delivery is fire-and-forget; an event addressed to a user with no live
// session is dropped, and callers must rely on persisted state instead.
type Router struct {
	resolver Resolver
	metrics  *observability.Metrics
	log      zerolog.Logger
}

func NewRouter(resolver Resolver, metrics *observability.Metrics, log zerolog.Logger) *Router {
	return &Router{resolver: resolver, metrics: metrics, log: log}
}

// Emit pushes event to targetUserID's connection. It reports whether a live
// target accepted the push; false means the event is permanently lost.
func (r *Router) Emit(targetUserID string, event any) bool {
	name := eventName(event)

	conn, ok := r.resolver.Resolve(targetUserID)
	if !ok {
		r.count(name, "no_target")
		r.log.Debug().Str("user_id", targetUserID).Str("event", name).Msg("emit dropped, no live session")
		return false
	}
	if !conn.Send(event) {
		r.count(name, "dropped")
		r.log.Warn().Str("user_id", targetUserID).Str("event", name).Msg("emit dropped, outbound queue full")
		return false
	}
	r.count(name, "delivered")
	return true
}

// BroadcastExcept fans event out to every live connection except the one
// identified by excludeConnID. Used for presence announcements so the
// originating connection does not echo to itself.
func (r *Router) BroadcastExcept(event any, excludeConnID string) {
	name := eventName(event)
	for _, conn := range r.resolver.Conns() {
		if conn.ID() == excludeConnID {
			continue
		}
		if conn.Send(event) {
			r.count(name, "delivered")
		} else {
			r.count(name, "dropped")
		}
	}
}

func (r *Router) count(name, outcome string) {
	if r.metrics != nil {
		r.metrics.EventsRouted.WithLabelValues(name, outcome).Inc()
	}
}

func eventName(event any) string {
	if t, ok := protocol.TypeOf(event); ok {
		return string(t)
	}
	return "unknown"
}
