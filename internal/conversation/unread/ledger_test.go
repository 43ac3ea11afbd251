package unread

import (
	"context"
	"testing"

	"vehicle_marketplace_chat/internal/conversation/domain"

	"github.com/stretchr/testify/assert"
)

const testRoom = "conv:req-1:partner-1"

func msg(id string, sentAt int64, role domain.Role) domain.Message {
	return domain.Message{
		ID:         id,
		Room:       testRoom,
		SenderRole: role,
		Body:       "m",
		SentAt:     sentAt,
		Delivery:   domain.DeliveryConfirmed,
	}
}

func TestCountUnread_EmptyConversation(t *testing.T) {
	assert.Equal(t, 0, CountUnread(nil, domain.RolePartner, 0))
}

func TestCountUnread_OwnMessagesNeverCount(t *testing.T) {
	seq := []domain.Message{
		msg("m1", 100, domain.RoleRequester),
		msg("m2", 200, domain.RoleRequester),
	}
	assert.Equal(t, 0, CountUnread(seq, domain.RoleRequester, 0))
	assert.Equal(t, 2, CountUnread(seq, domain.RolePartner, 0))
}

func TestCountUnread_RespectsWatermark(t *testing.T) {
	seq := []domain.Message{
		msg("m1", 100, domain.RoleRequester),
		msg("m2", 200, domain.RoleRequester),
		msg("m3", 300, domain.RoleRequester),
	}
	assert.Equal(t, 1, CountUnread(seq, domain.RolePartner, 200))
	// watermark past everything: never negative
	assert.Equal(t, 0, CountUnread(seq, domain.RolePartner, 999))
}

func TestMarkRead_WatermarkMonotonic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWatermarkStore()
	ledger := NewLedger(store)

	for _, at := range []int64{300, 100, 250, 300} {
		assert.NoError(t, ledger.MarkRead(ctx, testRoom, domain.RolePartner, at))
	}

	mark, err := store.Get(ctx, testRoom, domain.RolePartner)
	assert.NoError(t, err)
	assert.Equal(t, int64(300), mark)
}

func TestUnreadCount_ZeroAfterMarkReadNow(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(NewMemoryWatermarkStore())
	seq := []domain.Message{
		msg("m1", 100, domain.RoleRequester),
		msg("m2", 200, domain.RoleRequester),
	}

	count, err := ledger.UnreadCount(ctx, seq, testRoom, domain.RolePartner)
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.NoError(t, ledger.MarkRead(ctx, testRoom, domain.RolePartner, 200))

	count, err = ledger.UnreadCount(ctx, seq, testRoom, domain.RolePartner)
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestWatermarks_IndependentPerRole(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWatermarkStore()
	ledger := NewLedger(store)

	assert.NoError(t, ledger.MarkRead(ctx, testRoom, domain.RolePartner, 500))

	mark, err := store.Get(ctx, testRoom, domain.RoleRequester)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), mark)
}
