package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryStore keeps every collection in maps. Used when DATABASE_URL is
// unset and in tests.
type InMemoryStore struct {
	mu           sync.RWMutex
	users        map[string]User
	usersByEmail map[string]string
	chats        map[string]Chat
	messages     map[string]Message
	groups       map[string]Group
	calls        map[string]CallRecord
	requests     map[string]ChatRequest
	statuses     map[string][]StatusPost
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:        make(map[string]User),
		usersByEmail: make(map[string]string),
		chats:        make(map[string]Chat),
		messages:     make(map[string]Message),
		groups:       make(map[string]Group),
		calls:        make(map[string]CallRecord),
		requests:     make(map[string]ChatRequest),
		statuses:     make(map[string][]StatusPost),
	}
}

func (s *InMemoryStore) CreateUser(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByEmail[u.Email]; ok {
		return ErrDuplicate
	}
	s.users[u.ID] = u
	s.usersByEmail[u.Email] = u.ID
	return nil
}

func (s *InMemoryStore) UserByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *InMemoryStore) UserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByEmail[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.users[id], nil
}

func (s *InMemoryStore) SearchUsers(_ context.Context, usernamePrefix, excludeID string, limit int) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []User
	for _, u := range s.users {
		if u.ID == excludeID {
			continue
		}
		if strings.HasPrefix(strings.ToLower(u.Username), strings.ToLower(usernamePrefix)) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) UpdateProfile(_ context.Context, id string, upd ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.About != nil {
		u.About = *upd.About
	}
	if upd.ProfilePic != nil {
		u.ProfilePic = *upd.ProfilePic
	}
	s.users[id] = u
	return nil
}

func (s *InMemoryStore) SetUserOnline(_ context.Context, id string, online bool, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsOnline = online
	u.LastSeen = lastSeen
	s.users[id] = u
	return nil
}

func (s *InMemoryStore) EnsureChat(_ context.Context, c Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[c.ID]; ok {
		return nil
	}
	s.chats[c.ID] = c
	return nil
}

func (s *InMemoryStore) ChatByID(_ context.Context, id string) (Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[id]
	if !ok {
		return Chat{}, ErrNotFound
	}
	return c, nil
}

func (s *InMemoryStore) TouchChat(_ context.Context, id, lastMessage string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return ErrNotFound
	}
	c.LastMessage = lastMessage
	c.LastMessageTime = at
	s.chats[id] = c
	return nil
}

func (s *InMemoryStore) SaveMessage(_ context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.ID] = m
	return nil
}

func (s *InMemoryStore) MessageByID(_ context.Context, id string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return m, nil
}

func (s *InMemoryStore) EditMessage(_ context.Context, id, newText string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	m.Text = newText
	m.IsEdited = true
	m.EditedAt = at
	s.messages[id] = m
	return nil
}

func (s *InMemoryStore) DeleteMessageForEveryone(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	m.IsDeleted = true
	m.Text = MessageDeletedText
	s.messages[id] = m
	return nil
}

func (s *InMemoryStore) HideMessageFor(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	m.HiddenFor = appendUnique(m.HiddenFor, userID)
	s.messages[id] = m
	return nil
}

func (s *InMemoryStore) MarkMessageRead(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	m.ReadBy = appendUnique(m.ReadBy, userID)
	s.messages[id] = m
	return nil
}

func (s *InMemoryStore) CreateGroup(_ context.Context, g Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
	return nil
}

func (s *InMemoryStore) GroupByID(_ context.Context, id string) (Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	return g, nil
}

func (s *InMemoryStore) AddGroupMember(_ context.Context, groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return ErrNotFound
	}
	g.Members = appendUnique(g.Members, userID)
	s.groups[groupID] = g
	return nil
}

func (s *InMemoryStore) CreateCall(_ context.Context, c CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[c.ID] = c
	return nil
}

func (s *InMemoryStore) CallByID(_ context.Context, id string) (CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.calls[id]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return c, nil
}

func (s *InMemoryStore) UpdateCallStatus(_ context.Context, id string, status CallStatus, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	if !endedAt.IsZero() {
		c.EndedAt = endedAt
	}
	s.calls[id] = c
	return nil
}

func (s *InMemoryStore) CreateChatRequest(_ context.Context, r ChatRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = r
	return nil
}

func (s *InMemoryStore) ChatRequestByID(_ context.Context, id string) (ChatRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return ChatRequest{}, ErrNotFound
	}
	return r, nil
}

func (s *InMemoryStore) UpdateChatRequestStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	s.requests[id] = r
	return nil
}

func (s *InMemoryStore) SaveStatusPost(_ context.Context, p StatusPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[p.UserID] = append(s.statuses[p.UserID], p)
	return nil
}

func (s *InMemoryStore) ActiveStatusPosts(_ context.Context, userID string, now time.Time) ([]StatusPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []StatusPost
	for _, p := range s.statuses[userID] {
		if p.ExpiresAt.After(now) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
