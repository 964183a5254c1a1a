package room

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/flickfooty/backend/internal/logger"
)

// Manager addresses coordinators by room id. Rooms are independent and run
// concurrently; the manager only guards the id -> coordinator map.
type Manager struct {
	mu        sync.Mutex
	rooms     map[string]*Coordinator
	store     Store
	history   History
	transport Transport
	opts      Options
}

func NewManager(store Store, history History, transport Transport, opts Options) *Manager {
	return &Manager{
		rooms:     make(map[string]*Coordinator),
		store:     store,
		history:   history,
		transport: transport,
		opts:      opts,
	}
}

// Room returns the live coordinator for roomID, rehydrating it from the store
// or creating an empty room when the id was never seen.
func (m *Manager) Room(ctx context.Context, roomID string) (*Coordinator, error) {
	m.mu.Lock()
	c, ok := m.rooms[roomID]
	m.mu.Unlock()
	if ok {
		return c, nil
	}

	// The store may be remote; other rooms must not wait on this load.
	r, err := m.store.Load(ctx, roomID)
	created := false
	switch {
	case errors.Is(err, ErrNotFound):
		r, created = New(roomID), true
	case err != nil:
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rooms[roomID]; ok {
		return c, nil
	}
	if created {
		logger.Infof("[ROOM] %s created", roomID)
	} else {
		logger.Infof("[ROOM] %s rehydrated from store (status=%s players=%d)", roomID, r.Status, len(r.Players))
	}

	c = newCoordinator(r, m.transport, m.store, m.history, m.opts)
	c.onStop = m.release
	m.rooms[roomID] = c
	return c, nil
}

// Join attaches a session to roomID. A room that shut down between lookup
// and join is recreated once.
func (m *Manager) Join(ctx context.Context, roomID string, req JoinRequest) (*Coordinator, JoinResult, error) {
	for attempt := 0; attempt < 2; attempt++ {
		c, err := m.Room(ctx, roomID)
		if err != nil {
			return nil, JoinResult{}, err
		}
		res, err := c.Join(ctx, req)
		if errors.Is(err, ErrRoomClosed) {
			continue
		}
		return c, res, err
	}
	return nil, JoinResult{}, ErrRoomClosed
}

// Lookup returns the coordinator only if it is live in this process.
func (m *Manager) Lookup(roomID string) (*Coordinator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rooms[roomID]
	return c, ok
}

func (m *Manager) Live(roomID string) bool {
	_, ok := m.Lookup(roomID)
	return ok
}

// Check reports whether roomID exists (live or persisted) without creating it.
func (m *Manager) Check(ctx context.Context, roomID string) (bool, Status, error) {
	if c, ok := m.Lookup(roomID); ok {
		r, err := c.Snapshot(ctx)
		if err == nil {
			return true, r.Status, nil
		}
		if !errors.Is(err, ErrRoomClosed) {
			return false, "", err
		}
	}

	r, err := m.store.Load(ctx, roomID)
	if errors.Is(err, ErrNotFound) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return true, r.Status, nil
}

// Clear destroys roomID immediately, live or not.
func (m *Manager) Clear(ctx context.Context, roomID string) error {
	if c, ok := m.Lookup(roomID); ok {
		if err := c.Clear(ctx); err == nil || !errors.Is(err, ErrRoomClosed) {
			return err
		}
	}
	return m.store.Delete(ctx, roomID)
}

// Shutdown stops every coordinator, letting pending writes finish.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	live := make([]*Coordinator, 0, len(m.rooms))
	for _, c := range m.rooms {
		live = append(live, c)
	}
	m.mu.Unlock()

	for _, c := range live {
		if err := c.Shutdown(ctx); err != nil && !errors.Is(err, ErrRoomClosed) {
			logger.Warnf("[ROOM] %s shutdown: %v", c.ID(), err)
		}
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

func (m *Manager) release(c *Coordinator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rooms[c.id]; ok && cur == c {
		delete(m.rooms, c.id)
	}
}
