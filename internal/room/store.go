package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("room not found")

// Store persists room snapshots and the expiry index used to destroy rooms
// left without sessions across process restarts.
type Store interface {
	Save(ctx context.Context, r *Room) error
	Load(ctx context.Context, roomID string) (*Room, error)
	Delete(ctx context.Context, roomID string) error

	ScheduleExpiry(ctx context.Context, roomID string, at time.Time) error
	CancelExpiry(ctx context.Context, roomID string) error
	// DueExpiries lists rooms whose deadline is at or before now.
	DueExpiries(ctx context.Context, now time.Time) ([]string, error)
	// ClaimExpiry removes the deadline and reports whether this caller won it.
	ClaimExpiry(ctx context.Context, roomID string) (bool, error)
}

const expiryKey = "room_expiry"

func stateKey(roomID string) string {
	return "room:" + roomID + ":state"
}

// RedisStore keeps one JSON record per room under room:<id>:state and a
// sorted set of destruction deadlines.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, r *Room) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", r.ID, err)
	}
	return s.rdb.Set(ctx, stateKey(r.ID), data, s.ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context, roomID string) (*Room, error) {
	data, err := s.rdb.Get(ctx, stateKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}

	var r Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	if r.Scores == nil {
		r.Scores = New(roomID).Scores
	}
	return &r, nil
}

func (s *RedisStore) Delete(ctx context.Context, roomID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, stateKey(roomID))
	pipe.ZRem(ctx, expiryKey, roomID)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) ScheduleExpiry(ctx context.Context, roomID string, at time.Time) error {
	return s.rdb.ZAdd(ctx, expiryKey, redis.Z{Score: float64(at.Unix()), Member: roomID}).Err()
}

func (s *RedisStore) CancelExpiry(ctx context.Context, roomID string) error {
	return s.rdb.ZRem(ctx, expiryKey, roomID).Err()
}

func (s *RedisStore) DueExpiries(ctx context.Context, now time.Time) ([]string, error) {
	return s.rdb.ZRangeByScore(ctx, expiryKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
}

func (s *RedisStore) ClaimExpiry(ctx context.Context, roomID string) (bool, error) {
	removed, err := s.rdb.ZRem(ctx, expiryKey, roomID).Result()
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

// MemoryStore is an in-process Store for tests and single-node development
// runs without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	rooms   map[string][]byte
	expires map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:   make(map[string][]byte),
		expires: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Save(_ context.Context, r *Room) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.rooms[r.ID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, roomID string) (*Room, error) {
	s.mu.Lock()
	data, ok := s.rooms[roomID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	var r Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MemoryStore) Delete(_ context.Context, roomID string) error {
	s.mu.Lock()
	delete(s.rooms, roomID)
	delete(s.expires, roomID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ScheduleExpiry(_ context.Context, roomID string, at time.Time) error {
	s.mu.Lock()
	s.expires[roomID] = at
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) CancelExpiry(_ context.Context, roomID string) error {
	s.mu.Lock()
	delete(s.expires, roomID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DueExpiries(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []string
	for id, at := range s.expires {
		if !at.After(now) {
			due = append(due, id)
		}
	}
	sort.Strings(due)
	return due, nil
}

func (s *MemoryStore) ClaimExpiry(_ context.Context, roomID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expires[roomID]; !ok {
		return false, nil
	}
	delete(s.expires, roomID)
	return true, nil
}

// Has reports whether a snapshot exists; used by tests.
func (s *MemoryStore) Has(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[roomID]
	return ok
}
