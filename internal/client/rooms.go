package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	ErrRoomGone     = errors.New("room no longer exists")
	ErrNoCachedRoom = errors.New("no cached room")
)

// RoomCache remembers the last joined room so a restarted client can try to
// resume it.
type RoomCache interface {
	Get() (string, bool)
	Set(roomID string) error
	Clear() error
}

type MemoryRoomCache struct {
	mu     sync.Mutex
	roomID string
}

func (c *MemoryRoomCache) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID, c.roomID != ""
}

func (c *MemoryRoomCache) Set(roomID string) error {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
	return nil
}

func (c *MemoryRoomCache) Clear() error {
	return c.Set("")
}

// FileRoomCache keeps the room id in a small file so it survives restarts.
type FileRoomCache struct {
	Path string
}

func (c FileRoomCache) Get() (string, bool) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(string(data))
	return id, id != ""
}

func (c FileRoomCache) Set(roomID string) error {
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.Path, []byte(roomID+"\n"), 0o600)
}

func (c FileRoomCache) Clear() error {
	err := os.Remove(c.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// RoomChecker asks the server whether a room still exists before the
// client attempts a socket reconnect.
type RoomChecker struct {
	baseURL    string
	httpClient *http.Client
	cache      RoomCache
}

func NewRoomChecker(baseURL string, cache RoomCache) *RoomChecker {
	return &RoomChecker{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      cache,
	}
}

type checkResponse struct {
	Exists bool   `json:"exists"`
	Status string `json:"status"`
}

// Check calls POST /api/room/check.
func (rc *RoomChecker) Check(ctx context.Context, roomID string) (bool, string, error) {
	body, _ := json.Marshal(map[string]string{"roomId": roomID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rc.baseURL+"/api/room/check", bytes.NewReader(body))
	if err != nil {
		return false, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := rc.httpClient.Do(req)
	if err != nil {
		return false, "", fmt.Errorf("check room %s: %w", roomID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, "", fmt.Errorf("check room %s: status %d", roomID, resp.StatusCode)
	}
	var out checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, "", fmt.Errorf("decode check response: %w", err)
	}
	return out.Exists, out.Status, nil
}

// Resume returns the cached room id if the server still has it. A room that
// is gone is removed from the cache and ErrRoomGone returned, so the caller
// can fall back to the lobby.
func (rc *RoomChecker) Resume(ctx context.Context) (string, string, error) {
	roomID, ok := rc.cache.Get()
	if !ok {
		return "", "", ErrNoCachedRoom
	}
	exists, status, err := rc.Check(ctx, roomID)
	if err != nil {
		return "", "", err
	}
	if !exists {
		if err := rc.cache.Clear(); err != nil {
			return "", "", fmt.Errorf("clear room cache: %w", err)
		}
		return "", "", ErrRoomGone
	}
	return roomID, status, nil
}

// Create asks the server for an unused room id.
func (rc *RoomChecker) Create(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rc.baseURL+"/api/room", nil)
	if err != nil {
		return "", err
	}
	resp, err := rc.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create room: status %d", resp.StatusCode)
	}
	var out struct {
		RoomID string `json:"roomId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	return out.RoomID, nil
}
