package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"vehicle_marketplace_chat/internal/conversation/domain"
	"vehicle_marketplace_chat/internal/conversation/unread"
	"vehicle_marketplace_chat/pkg/chaterr"
	"vehicle_marketplace_chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestMain(m *testing.M) {
	logger.Log = logger.Initialize("inbox_test", os.TempDir())
	os.Exit(m.Run())
}

// MockDirectory mock Directory
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) ListConversationKeys(ctx context.Context, viewerID string, role domain.Role) ([]domain.DirectoryEntry, error) {
	args := m.Called(ctx, viewerID, role)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.DirectoryEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockProfiles mock Profiles
type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) ResolveDisplayLabel(ctx context.Context, participantID string) (string, error) {
	args := m.Called(ctx, participantID)
	return args.String(0), args.Error(1)
}

// MockSequencer mock Sequencer
type MockSequencer struct {
	mock.Mock
}

func (m *MockSequencer) Sequence(room string) []domain.Message {
	args := m.Called(room)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message)
	}
	return nil
}

func (m *MockSequencer) ReconcileOnJoin(ctx context.Context, room string) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func entry(requestID, partnerID string, createdAt int64) domain.DirectoryEntry {
	return domain.DirectoryEntry{
		Key: domain.ConversationKey{
			RequestID:   requestID,
			RequesterID: "requester-1",
			PartnerID:   partnerID,
		},
		RequestTitle:     "Tow for " + requestID,
		RequestCreatedAt: createdAt,
	}
}

func lastMessage(room string, sentAt int64) []domain.Message {
	return []domain.Message{{
		ID:         fmt.Sprintf("m-%s-%d", room, sentAt),
		Room:       room,
		SenderRole: domain.RolePartner,
		Body:       "latest in " + room,
		SentAt:     sentAt,
		Delivery:   domain.DeliveryConfirmed,
	}}
}

func TestListConversations_EnrichmentFailureDegradesOneRow(t *testing.T) {
	entries := make([]domain.DirectoryEntry, 0, 5)
	for i := 1; i <= 5; i++ {
		entries = append(entries, entry(fmt.Sprintf("req-%d", i), fmt.Sprintf("partner-%d", i), int64(i*100)))
	}

	directory := new(MockDirectory)
	directory.On("ListConversationKeys", mock.Anything, "requester-1", domain.RoleRequester).Return(entries, nil)

	profiles := new(MockProfiles)
	profiles.On("ResolveDisplayLabel", mock.Anything, "partner-3").Return("", errors.New("profile service 502"))
	profiles.On("ResolveDisplayLabel", mock.Anything, mock.Anything).Return("Giorgi's Garage", nil)

	sequences := new(MockSequencer)
	sequences.On("ReconcileOnJoin", mock.Anything, mock.Anything).Return(nil)
	for _, e := range entries {
		room := e.Key.Room()
		sequences.On("Sequence", room).Return(lastMessage(room, e.RequestCreatedAt+1000))
	}

	agg := NewAggregator(directory, profiles, sequences, unread.NewLedger(unread.NewMemoryWatermarkStore()))

	summaries, err := agg.ListConversations(context.Background(), "requester-1", domain.RoleRequester)

	assert.NoError(t, err)
	assert.Len(t, summaries, 5)

	placeholders := 0
	for _, s := range summaries {
		if s.CounterpartLabel == PlaceholderLabel {
			placeholders++
			assert.Equal(t, "partner-3", s.Key.PartnerID)
		} else {
			assert.Equal(t, "Giorgi's Garage", s.CounterpartLabel)
		}
		assert.NotEmpty(t, s.LastMessage)
	}
	assert.Equal(t, 1, placeholders)
}

func TestListConversations_OrderedByActivity(t *testing.T) {
	quiet := entry("req-quiet", "partner-1", 500) // engaged, no messages yet
	old := entry("req-old", "partner-2", 100)
	busy := entry("req-busy", "partner-3", 200)

	directory := new(MockDirectory)
	directory.On("ListConversationKeys", mock.Anything, "requester-1", domain.RoleRequester).
		Return([]domain.DirectoryEntry{quiet, old, busy}, nil)

	profiles := new(MockProfiles)
	profiles.On("ResolveDisplayLabel", mock.Anything, mock.Anything).Return("Partner", nil)

	sequences := new(MockSequencer)
	sequences.On("ReconcileOnJoin", mock.Anything, mock.Anything).Return(nil)
	sequences.On("Sequence", quiet.Key.Room()).Return(nil)
	sequences.On("Sequence", old.Key.Room()).Return(lastMessage(old.Key.Room(), 300))
	sequences.On("Sequence", busy.Key.Room()).Return(lastMessage(busy.Key.Room(), 900))

	agg := NewAggregator(directory, profiles, sequences, unread.NewLedger(unread.NewMemoryWatermarkStore()))

	summaries, err := agg.ListConversations(context.Background(), "requester-1", domain.RoleRequester)

	assert.NoError(t, err)
	// busy at 900, then the empty thread by request creation 500, then 300
	assert.Equal(t, []string{"req-busy", "req-quiet", "req-old"}, []string{
		summaries[0].Key.RequestID,
		summaries[1].Key.RequestID,
		summaries[2].Key.RequestID,
	})
	assert.Empty(t, summaries[1].LastMessage)
	assert.Zero(t, summaries[1].LastMessageAt)
}

func TestListConversations_HistoryMissDegrades(t *testing.T) {
	e := entry("req-1", "partner-1", 100)

	directory := new(MockDirectory)
	directory.On("ListConversationKeys", mock.Anything, "requester-1", domain.RoleRequester).
		Return([]domain.DirectoryEntry{e}, nil)

	profiles := new(MockProfiles)
	profiles.On("ResolveDisplayLabel", mock.Anything, mock.Anything).Return("Partner", nil)

	sequences := new(MockSequencer)
	sequences.On("ReconcileOnJoin", mock.Anything, e.Key.Room()).
		Return(chaterr.Wrap(chaterr.ErrHistoryFetchFailed, errors.New("timeout")))
	// reconciled state from an earlier pass still renders
	sequences.On("Sequence", e.Key.Room()).Return(lastMessage(e.Key.Room(), 250))

	agg := NewAggregator(directory, profiles, sequences, unread.NewLedger(unread.NewMemoryWatermarkStore()))

	summaries, err := agg.ListConversations(context.Background(), "requester-1", domain.RoleRequester)

	assert.NoError(t, err)
	assert.Len(t, summaries, 1)
	assert.Equal(t, int64(250), summaries[0].LastMessageAt)
}

type failingWatermarkStore struct{}

func (failingWatermarkStore) Get(ctx context.Context, room string, role domain.Role) (int64, error) {
	return 0, errors.New("watermark store down")
}

func (failingWatermarkStore) Advance(ctx context.Context, room string, role domain.Role, at int64) (int64, error) {
	return 0, errors.New("watermark store down")
}

func TestListConversations_UnreadDegradesToZero(t *testing.T) {
	e := entry("req-1", "partner-1", 100)

	directory := new(MockDirectory)
	directory.On("ListConversationKeys", mock.Anything, "requester-1", domain.RoleRequester).
		Return([]domain.DirectoryEntry{e}, nil)

	profiles := new(MockProfiles)
	profiles.On("ResolveDisplayLabel", mock.Anything, mock.Anything).Return("Partner", nil)

	sequences := new(MockSequencer)
	sequences.On("ReconcileOnJoin", mock.Anything, mock.Anything).Return(nil)
	sequences.On("Sequence", e.Key.Room()).Return(lastMessage(e.Key.Room(), 300))

	agg := NewAggregator(directory, profiles, sequences, unread.NewLedger(failingWatermarkStore{}))

	summaries, err := agg.ListConversations(context.Background(), "requester-1", domain.RoleRequester)

	assert.NoError(t, err)
	assert.Len(t, summaries, 1)
	assert.Zero(t, summaries[0].UnreadForViewer)
}
