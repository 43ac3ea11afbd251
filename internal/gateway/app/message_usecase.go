package app

import (
	"context"
	"errors"
	"time"

	"vehicle_marketplace_chat/internal/conversation/domain"
	"vehicle_marketplace_chat/internal/gateway/repository"

	"github.com/google/uuid"
)

// MessageUseCase persists messages with authoritative ids and timestamps and
// fans them out to every joined socket.
type MessageUseCase struct {
	msgRepo    repository.MessageRepository
	markRepo   repository.WatermarkRepository
	roomFanout repository.RoomPubSub
}

// NewMessageUseCase init message use case
func NewMessageUseCase(
	msgRepo repository.MessageRepository,
	markRepo repository.WatermarkRepository,
	fanout repository.RoomPubSub,
) *MessageUseCase {
	return &MessageUseCase{
		msgRepo:    msgRepo,
		markRepo:   markRepo,
		roomFanout: fanout,
	}
}

// Append assigns the authoritative id and sent_at, persists the message and
// publishes it to the room, echo to the sender included. sent_at is clamped
// to max(now, last+1) so the per-room order is monotonic even when the wall
// clock is coarse or steps backward.
func (uc *MessageUseCase) Append(ctx context.Context, room, senderID string, senderRole domain.Role, body string) (domain.Message, error) {
	if body == "" {
		return domain.Message{}, errors.New("empty message body")
	}
	if _, _, err := domain.ParseRoom(room); err != nil {
		return domain.Message{}, err
	}

	last, err := uc.msgRepo.LastSentAt(ctx, room)
	if err != nil {
		return domain.Message{}, err
	}
	sentAt := time.Now().UnixMilli()
	if sentAt <= last {
		sentAt = last + 1
	}

	msg := domain.Message{
		ID:         uuid.New().String(),
		Room:       room,
		SenderRole: senderRole,
		SenderID:   senderID,
		Body:       body,
		SentAt:     sentAt,
		Delivery:   domain.DeliveryConfirmed,
	}

	if err := uc.msgRepo.Append(ctx, msg); err != nil {
		return domain.Message{}, err
	}

	if uc.roomFanout != nil {
		if err := uc.roomFanout.Publish(room, msg); err != nil {
			// the message is persisted; joined sockets recover it on the
			// next snapshot
			return msg, err
		}
	}
	return msg, nil
}

// History full persisted sequence for a room.
func (uc *MessageUseCase) History(ctx context.Context, room string) ([]domain.Message, error) {
	return uc.msgRepo.History(ctx, room)
}

// MarkRead advance the (room, role) watermark; never regresses.
func (uc *MessageUseCase) MarkRead(ctx context.Context, room string, role domain.Role, at int64) (int64, error) {
	return uc.markRepo.Advance(ctx, room, role, at)
}

// Watermark current (room, role) watermark, zero when unset.
func (uc *MessageUseCase) Watermark(ctx context.Context, room string, role domain.Role) (int64, error) {
	return uc.markRepo.Get(ctx, room, role)
}
