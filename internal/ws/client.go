package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/flickfooty/backend/internal/logger"
	"github.com/flickfooty/backend/internal/protocol"
	"github.com/flickfooty/backend/internal/room"
	"github.com/gorilla/websocket"
)

// Settings tunes the connection pumps.
type Settings struct {
	ReadLimit  int64
	PongWait   time.Duration
	WriteWait  time.Duration
	PingPeriod time.Duration
	SendBuffer int
}

func (s Settings) withDefaults() Settings {
	if s.ReadLimit <= 0 {
		s.ReadLimit = 65536
	}
	if s.PongWait <= 0 {
		s.PongWait = 60 * time.Second
	}
	if s.WriteWait <= 0 {
		s.WriteWait = 10 * time.Second
	}
	if s.PingPeriod <= 0 || s.PingPeriod >= s.PongWait {
		s.PingPeriod = s.PongWait * 9 / 10
	}
	if s.SendBuffer <= 0 {
		s.SendBuffer = 256
	}
	return s
}

type outbound struct {
	data   []byte
	close  bool
	code   int
	reason string
}

// Client is one WebSocket connection bound to a session of a room.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	settings  Settings
	sessionID string
	userID    string
	roomID    string

	send chan outbound
	done chan struct{}
	once sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, settings Settings, sessionID, userID, roomID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		settings:  settings,
		sessionID: sessionID,
		userID:    userID,
		roomID:    roomID,
		send:      make(chan outbound, settings.SendBuffer),
		done:      make(chan struct{}),
	}
}

func (c *Client) enqueue(msg outbound) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	default:
		logger.Warnf("[WS] send buffer full for session %s (user=%s room=%s), dropping message", c.sessionID, c.userID, c.roomID)
	}
}

// closeWith asks the write pump to send a close frame. If the buffer is
// full the connection is dropped without one.
func (c *Client) closeWith(code int, reason string) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- outbound{close: true, code: code, reason: reason}:
	default:
		c.shutdown()
	}
}

func (c *Client) shutdown() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// writePump writes queued frames and pings to the connection. It is the
// only writer of conn.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.settings.PingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case <-c.done:
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if msg.close {
				if err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(msg.code, msg.reason)); err != nil {
					logger.Debugf("[WS] close frame for session %s: %v", c.sessionID, err)
				}
				logger.Infof("[WS] session %s closed by server (code=%d reason=%q)", c.sessionID, msg.code, msg.reason)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				logger.Warnf("[WS] write error for session %s: %v", c.sessionID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debugf("[WS] ping error for session %s: %v", c.sessionID, err)
				return
			}
		}
	}
}

// readPump decodes inbound frames and hands them to the room. A nil coord
// means the join was refused; frames are discarded until the close lands.
func (c *Client) readPump(coord *room.Coordinator) {
	defer func() {
		if coord != nil {
			if err := coord.Disconnect(c.sessionID); err != nil && !errors.Is(err, room.ErrRoomClosed) {
				logger.Warnf("[WS] disconnect session %s: %v", c.sessionID, err)
			}
		}
		c.hub.unregister(c)
		c.shutdown()
	}()

	c.conn.SetReadLimit(c.settings.ReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Warnf("[WS] unexpected close for session %s (user=%s): %v", c.sessionID, c.userID, err)
			} else {
				logger.Debugf("[WS] read ended for session %s: %v", c.sessionID, err)
			}
			return
		}
		if coord == nil {
			continue
		}

		msg, err := protocol.DecodeInbound(data)
		if err != nil {
			logger.Warnf("[WS] dropping frame from session %s: %v", c.sessionID, err)
			continue
		}
		if err := coord.Submit(c.sessionID, msg); err != nil {
			logger.Infof("[WS] room %s gone, ending session %s", c.roomID, c.sessionID)
			return
		}
	}
}
