package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/flickfooty/backend/internal/logger"
	"github.com/flickfooty/backend/internal/protocol"
	"github.com/gorilla/websocket"
)

// Transport sends messages to the room. Implementations must be safe for
// use from the tick goroutine while a reader goroutine runs.
type Transport interface {
	Send(msg protocol.Message) error
}

type JoinParams struct {
	UserID   string
	Nickname string
	Avatar   string
	Token    string
}

const writeWait = 10 * time.Second

// WSTransport is a gorilla WebSocket connection to one room. Decoded
// inbound messages are delivered on Messages until the connection ends.
type WSTransport struct {
	conn     *websocket.Conn
	mu       sync.Mutex
	incoming chan protocol.Message
	done     chan struct{}
	err      error
}

// RoomURL builds the WebSocket URL for roomID from an http(s) base URL.
func RoomURL(baseURL, roomID string, p JoinParams) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/room/" + url.PathEscape(roomID) + "/websocket"

	q := url.Values{}
	q.Set("userId", p.UserID)
	if p.Nickname != "" {
		q.Set("nickname", p.Nickname)
	}
	if p.Avatar != "" {
		q.Set("avatar", p.Avatar)
	}
	if p.Token != "" {
		q.Set("token", p.Token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DialRoom connects to roomID and starts the read loop.
func DialRoom(ctx context.Context, baseURL, roomID string, p JoinParams) (*WSTransport, error) {
	if p.UserID == "" {
		return nil, errors.New("userId required")
	}
	target, err := RoomURL(baseURL, roomID, p)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial room %s: %w", roomID, err)
	}

	t := &WSTransport{
		conn:     conn,
		incoming: make(chan protocol.Message, 256),
		done:     make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *WSTransport) readLoop() {
	defer func() {
		close(t.incoming)
		close(t.done)
	}()
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.err = err
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			logger.Warnf("[CLIENT] dropping frame: %v", err)
			continue
		}
		t.incoming <- msg
	}
}

// Messages is closed when the connection ends; Err then reports why.
func (t *WSTransport) Messages() <-chan protocol.Message { return t.incoming }

// Done is closed after the read loop exits.
func (t *WSTransport) Done() <-chan struct{} { return t.done }

// Err returns the error that ended the read loop. Valid after Done.
func (t *WSTransport) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// CloseCode returns the close code sent by the server, or 0.
func (t *WSTransport) CloseCode() int {
	var ce *websocket.CloseError
	if errors.As(t.Err(), &ce) {
		return ce.Code
	}
	return 0
}

func (t *WSTransport) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal close frame and drops the connection.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	t.mu.Unlock()
	return t.conn.Close()
}
