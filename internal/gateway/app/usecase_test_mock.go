package app

import (
	"context"

	"vehicle_marketplace_chat/internal/conversation/domain"

	"github.com/stretchr/testify/mock"
)

// MockMessageRepository mock repository.MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Append(ctx context.Context, msg domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) History(ctx context.Context, room string) ([]domain.Message, error) {
	args := m.Called(ctx, room)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessageRepository) LastSentAt(ctx context.Context, room string) (int64, error) {
	args := m.Called(ctx, room)
	return args.Get(0).(int64), args.Error(1)
}

// MockWatermarkRepository mock repository.WatermarkRepository
type MockWatermarkRepository struct {
	mock.Mock
}

func (m *MockWatermarkRepository) Get(ctx context.Context, room string, role domain.Role) (int64, error) {
	args := m.Called(ctx, room, role)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWatermarkRepository) Advance(ctx context.Context, room string, role domain.Role, at int64) (int64, error) {
	args := m.Called(ctx, room, role, at)
	return args.Get(0).(int64), args.Error(1)
}

// MockRoomPubSub mock repository.RoomPubSub
type MockRoomPubSub struct {
	mock.Mock
}

func (m *MockRoomPubSub) Publish(room string, msg domain.Message) error {
	args := m.Called(room, msg)
	return args.Error(0)
}

func (m *MockRoomPubSub) Subscribe(ctx context.Context, room string, handler func(msg domain.Message)) error {
	args := m.Called(ctx, room, handler)
	return args.Error(0)
}
