package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/flickfooty/backend/internal/logger"
	"github.com/flickfooty/backend/internal/protocol"
	"github.com/flickfooty/backend/internal/room"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are checked by middleware.WebSocketCORSCheck
	},
}

// Handler upgrades room connections and attaches them to coordinators.
type Handler struct {
	hub      *Hub
	rooms    *room.Manager
	settings Settings
}

func NewHandler(hub *Hub, rooms *room.Manager, settings Settings) *Handler {
	return &Handler{hub: hub, rooms: rooms, settings: settings.withDefaults()}
}

// HandleRoom serves GET /api/room/:roomId/websocket?userId=&nickname=&avatar=&token=
func (h *Handler) HandleRoom(c *gin.Context) {
	roomID := c.Param("roomId")
	userID := c.Query("userId")
	if roomID == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roomId and userId required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[WS] Upgrade error: %v", err)
		return
	}

	client := newClient(h.hub, conn, h.settings, uuid.NewString(), userID, roomID)
	h.hub.register(client)
	go client.writePump()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	coord, res, err := h.rooms.Join(ctx, roomID, room.JoinRequest{
		SessionID:   client.sessionID,
		UserID:      userID,
		Nickname:    c.Query("nickname"),
		Avatar:      c.Query("avatar"),
		ResumeToken: c.Query("token"),
	})
	switch {
	case errors.Is(err, room.ErrRoomFull), errors.Is(err, room.ErrInvalidToken):
		// The coordinator already sent ERROR and the close frame.
		go client.readPump(nil)
		return
	case err != nil:
		logger.Errorf("[WS] join %s failed for user %s: %v", roomID, userID, err)
		if data, encErr := protocol.Encode(protocol.Error{Msg: "Room unavailable"}); encErr == nil {
			h.hub.Send(client.sessionID, data)
		}
		h.hub.Close(client.sessionID, websocket.CloseInternalServerErr, "room unavailable")
		go client.readPump(nil)
		return
	}

	logger.Infof("[WS] user %s connected to room %s as team %d (session=%s reconnect=%v)",
		userID, roomID, res.Player.TeamID, client.sessionID, res.Reconnect)
	go client.readPump(coord)
}
