package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Marker persists reachability transitions so other processes (and restarts)
// can answer "when was this user last seen". The in-memory registry never
// depends on it for correctness.
type Marker interface {
	MarkOnline(ctx context.Context, userID string, at time.Time) error
	MarkOffline(ctx context.Context, userID string, lastSeen time.Time) error
	Get(ctx context.Context, userID string) (Status, error)
}

// Status is the persisted presence marker for one user.
type Status struct {
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

// NewMarker creates a redis-backed marker when configured, otherwise in-memory.
func NewMarker(ctx context.Context, redisURL string, onlineTTL time.Duration) (Marker, error) {
	if strings.TrimSpace(redisURL) == "" {
		return NewMemoryMarker(), nil
	}
	return NewRedisMarker(ctx, redisURL, onlineTTL)
}

const markerKeyPrefix = "presence:"

// RedisMarker stores one marker per user under presence:<userID>. Online
// markers carry a TTL so a crashed process cannot leave users online forever;
// offline markers persist so last-seen survives.
type RedisMarker struct {
	client    *redis.Client
	onlineTTL time.Duration
}

func NewRedisMarker(ctx context.Context, redisURL string, onlineTTL time.Duration) (*RedisMarker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if onlineTTL <= 0 {
		onlineTTL = time.Minute
	}
	return &RedisMarker{client: client, onlineTTL: onlineTTL}, nil
}

func (m *RedisMarker) MarkOnline(ctx context.Context, userID string, at time.Time) error {
	return m.set(ctx, userID, Status{Online: true, LastSeen: at}, m.onlineTTL)
}

func (m *RedisMarker) MarkOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	return m.set(ctx, userID, Status{Online: false, LastSeen: lastSeen}, 0)
}

func (m *RedisMarker) set(ctx context.Context, userID string, st Status, ttl time.Duration) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal presence marker: %w", err)
	}
	if err := m.client.Set(ctx, markerKeyPrefix+userID, data, ttl).Err(); err != nil {
		return fmt.Errorf("set presence marker: %w", err)
	}
	return nil
}

func (m *RedisMarker) Get(ctx context.Context, userID string) (Status, error) {
	data, err := m.client.Get(ctx, markerKeyPrefix+userID).Result()
	if err == redis.Nil {
		// No marker means the user was never seen or the online TTL lapsed.
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("get presence marker: %w", err)
	}
	var st Status
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return Status{}, fmt.Errorf("unmarshal presence marker: %w", err)
	}
	return st, nil
}

func (m *RedisMarker) Close() error {
	return m.client.Close()
}

// MemoryMarker keeps markers in a map. Used when REDIS_URL is unset and in
// tests.
type MemoryMarker struct {
	mu      sync.RWMutex
	markers map[string]Status
}

func NewMemoryMarker() *MemoryMarker {
	return &MemoryMarker{markers: make(map[string]Status)}
}

func (m *MemoryMarker) MarkOnline(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[userID] = Status{Online: true, LastSeen: at}
	return nil
}

func (m *MemoryMarker) MarkOffline(_ context.Context, userID string, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[userID] = Status{Online: false, LastSeen: lastSeen}
	return nil
}

func (m *MemoryMarker) Get(_ context.Context, userID string) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.markers[userID], nil
}
