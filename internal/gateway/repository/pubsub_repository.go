package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"vehicle_marketplace_chat/internal/conversation/domain"
	"vehicle_marketplace_chat/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RoomPubSub fans appended messages out across gateway nodes so every socket
// joined to a room sees every message, whichever node persisted it.
type RoomPubSub interface {
	Publish(room string, msg domain.Message) error
	// Subscribe pushes every message published to the room into handler
	// until ctx is cancelled.
	Subscribe(ctx context.Context, room string, handler func(msg domain.Message)) error
}

// RedisPubSub redis-backed RoomPubSub
type RedisPubSub struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{
		client: client,
		ctx:    context.Background(),
	}
}

func channelFor(room string) string {
	return "chat:room:" + room
}

// Publish serialize the message and publish it on the room channel
func (r *RedisPubSub) Publish(room string, msg domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.client.Publish(r.ctx, channelFor(room), data).Err()
}

// Subscribe follow the room channel, handing each message to handler
func (r *RedisPubSub) Subscribe(ctx context.Context, room string, handler func(msg domain.Message)) error {
	sub := r.client.Subscribe(r.ctx, channelFor(room))
	go func() {
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var msg domain.Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					logger.Log.Error("room fanout payload unmarshal failed", zap.Error(err))
					continue
				}
				handler(msg)
			case <-ctx.Done():
				logger.Log.Info(fmt.Sprintf("%s , sub close", channelFor(room)))
				sub.Close()
				return
			}
		}
	}()
	return nil
}
