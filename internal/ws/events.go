package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flickfooty/backend/internal/logger"
	"github.com/flickfooty/backend/internal/room"
	"github.com/redis/go-redis/v9"
)

const roomEventsChannel = "room_events"

const eventRoomCleared = "room_cleared"

type roomEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// PublishRoomCleared tells every server instance that roomID was cleared so
// any node still hosting it closes its sessions.
func PublishRoomCleared(ctx context.Context, rdb *redis.Client, roomID string) error {
	data, err := json.Marshal(roomEvent{Type: eventRoomCleared, RoomID: roomID})
	if err != nil {
		return err
	}
	if err := rdb.Publish(ctx, roomEventsChannel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", eventRoomCleared, err)
	}
	return nil
}

// StartRoomEventSubscriber listens on room_events until ctx is done. It
// returns once the subscription is confirmed.
func StartRoomEventSubscriber(ctx context.Context, rdb *redis.Client, rooms *room.Manager) error {
	if rdb == nil {
		logger.Infof("[WS] Redis client not set; room event subscriber not started")
		return nil
	}

	pubsub := rdb.Subscribe(ctx, roomEventsChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", roomEventsChannel, err)
	}

	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		logger.Infof("[WS] room_events subscriber started")
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handleRoomEvent(ctx, rooms, msg.Payload)
			}
		}
	}()
	return nil
}

func handleRoomEvent(ctx context.Context, rooms *room.Manager, payload string) {
	var ev roomEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		logger.Warnf("[WS] invalid room event payload: %v", err)
		return
	}

	switch ev.Type {
	case eventRoomCleared:
		c, ok := rooms.Lookup(ev.RoomID)
		if !ok {
			return
		}
		logger.Infof("[WS] room %s cleared elsewhere, closing local sessions", ev.RoomID)
		if err := c.Clear(ctx); err != nil {
			logger.Debugf("[WS] clear %s: %v", ev.RoomID, err)
		}
	default:
		logger.Warnf("[WS] unknown room event type: %s", ev.Type)
	}
}
