package presence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Conn is the opaque transport handle for one live connection. Send pushes an
// event onto the connection's outbound queue without blocking; it reports
// whether the event was accepted.
type Conn interface {
	ID() string
	Send(event any) bool
}

// Session binds a user identity to its current live connection.
type Session struct {
	UserID        string
	Conn          Conn
	ConnectedAt   time.Time
	LastHeartbeat time.Time
}

// OfflineReason distinguishes an explicit disconnect from a heartbeat eviction.
type OfflineReason string

const (
	ReasonDisconnect OfflineReason = "disconnect"
	ReasonEvicted    OfflineReason = "evicted"
)

// Registry tracks which users are reachable on which connection. Forward
// (userID -> session) and reverse (connID -> userID) maps are mutated under
// the same mutex so they can never disagree.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	userByConn map[string]string
	threshold  time.Duration

	marker Marker
	log    zerolog.Logger

	onOnline     func(Session)
	onOffline    func(Session, OfflineReason, time.Time)
	onSuperseded func(Session)
}

// NewRegistry creates an empty registry. Sessions whose last heartbeat is
// older than threshold are reclaimed by the monitor.
func NewRegistry(threshold time.Duration, marker Marker, log zerolog.Logger) *Registry {
	if threshold <= 0 {
		threshold = 30 * time.Second
	}
	if marker == nil {
		marker = NewMemoryMarker()
	}
	return &Registry{
		sessions:   make(map[string]*Session),
		userByConn: make(map[string]string),
		threshold:  threshold,
		marker:     marker,
		log:        log,
	}
}

// SetOnlineHook registers a callback fired after a session is activated.
// Hooks run outside the registry lock.
func (r *Registry) SetOnlineHook(hook func(Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onOnline = hook
}

// SetOfflineHook registers a callback fired after a session is removed,
// whether by explicit disconnect or by eviction. The timestamp is the same
// lastSeen value written to the marker.
func (r *Registry) SetOfflineHook(hook func(Session, OfflineReason, time.Time)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onOffline = hook
}

// SetSupersededHook registers a callback fired when a reconnect replaces an
// existing session for the same user.
func (r *Registry) SetSupersededHook(hook func(Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSuperseded = hook
}

// Activate inserts or replaces the session for userID. A reconnect for the
// same user overwrites the previous handle last-writer-wins; the superseded
// connection is neither closed nor notified (matching the original product
// behavior, see DESIGN.md).
func (r *Registry) Activate(userID string, conn Conn) {
	now := time.Now().UTC()
	s := &Session{
		UserID:        userID,
		Conn:          conn,
		ConnectedAt:   now,
		LastHeartbeat: now,
	}

	r.mu.Lock()
	var superseded *Session
	if old, ok := r.sessions[userID]; ok && old.Conn.ID() != conn.ID() {
		superseded = cloneSession(old)
		delete(r.userByConn, old.Conn.ID())
	}
	r.sessions[userID] = s
	r.userByConn[conn.ID()] = userID
	onlineHook := r.onOnline
	supersededHook := r.onSuperseded
	r.mu.Unlock()

	r.log.Info().Str("user_id", userID).Str("conn_id", conn.ID()).Msg("session activated")

	if superseded != nil {
		r.log.Info().Str("user_id", userID).Str("old_conn_id", superseded.Conn.ID()).Msg("session superseded")
		if supersededHook != nil {
			supersededHook(*superseded)
		}
	}

	if err := r.marker.MarkOnline(context.Background(), userID, now); err != nil {
		r.log.Warn().Err(err).Str("user_id", userID).Msg("online marker write failed")
	}
	if onlineHook != nil {
		onlineHook(*s)
	}
}

// Touch refreshes the session's heartbeat. It reports false when the user has
// no live session.
func (r *Registry) Touch(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return false
	}
	s.LastHeartbeat = time.Now().UTC()
	return true
}

// Deactivate removes the session for userID if present. Removing an absent
// user is a no-op.
func (r *Registry) Deactivate(userID string) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	removed := cloneSession(s)
	delete(r.sessions, userID)
	delete(r.userByConn, s.Conn.ID())
	hook := r.onOffline
	r.mu.Unlock()

	r.finishOffline(*removed, ReasonDisconnect, hook)
}

// DeactivateConn handles a transport-level disconnect, which reports only the
// connection handle. It removes the session only when the handle still owns
// it, so a close racing with a reconnect cannot tear down the new session.
func (r *Registry) DeactivateConn(connID string) {
	r.mu.Lock()
	userID, ok := r.userByConn[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	s := r.sessions[userID]
	removed := cloneSession(s)
	delete(r.sessions, userID)
	delete(r.userByConn, connID)
	hook := r.onOffline
	r.mu.Unlock()

	r.finishOffline(*removed, ReasonDisconnect, hook)
}

// Resolve returns the live connection for userID, if any.
func (r *Registry) Resolve(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	if !ok {
		return nil, false
	}
	return s.Conn, true
}

// ResolveConn is the reverse lookup from connection handle to user identity.
func (r *Registry) ResolveConn(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.userByConn[connID]
	return userID, ok
}

// Get returns a copy of the session for userID.
func (r *Registry) Get(userID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return *cloneSession(s), true
}

// Conns returns every live connection. Used for fan-out broadcasts.
func (r *Registry) Conns() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Conn)
	}
	return out
}

// OnlineCount reports the number of live sessions.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StartMonitor launches the liveness sweep loop. It runs until ctx is
// cancelled, which normally means process shutdown.
func (r *Registry) StartMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
}

// sweep evicts every session whose heartbeat has expired. The lock is held
// only while collecting and removing entries; marker writes and offline
// broadcasts happen after release so a slow store cannot stall presence
// updates for other users.
func (r *Registry) sweep() {
	now := time.Now().UTC()
	var evicted []Session

	r.mu.Lock()
	for userID, s := range r.sessions {
		if now.Sub(s.LastHeartbeat) <= r.threshold {
			continue
		}
		evicted = append(evicted, *cloneSession(s))
		delete(r.sessions, userID)
		delete(r.userByConn, s.Conn.ID())
	}
	hook := r.onOffline
	r.mu.Unlock()

	for _, s := range evicted {
		r.log.Info().Str("user_id", s.UserID).Time("last_heartbeat", s.LastHeartbeat).Msg("session evicted")
		r.finishOffline(s, ReasonEvicted, hook)
	}
}

// finishOffline computes the lastSeen timestamp once so the marker and the
// offline hook can never disagree about when the user went away.
func (r *Registry) finishOffline(s Session, reason OfflineReason, hook func(Session, OfflineReason, time.Time)) {
	lastSeen := time.Now().UTC()
	if err := r.marker.MarkOffline(context.Background(), s.UserID, lastSeen); err != nil {
		// Presence eviction proceeds regardless; the in-memory state is
		// already consistent.
		r.log.Warn().Err(err).Str("user_id", s.UserID).Msg("offline marker write failed")
	}
	if hook != nil {
		hook(s, reason, lastSeen)
	}
}

func cloneSession(s *Session) *Session {
	c := *s
	return &c
}
