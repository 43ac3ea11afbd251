package app

import (
	"context"
	"errors"
	"time"

	"vehicle_marketplace_chat/internal/conversation/domain"
	"vehicle_marketplace_chat/internal/conversation/inbox"
	"vehicle_marketplace_chat/internal/conversation/reconcile"
	"vehicle_marketplace_chat/internal/conversation/transport"
	"vehicle_marketplace_chat/internal/conversation/unread"
	"vehicle_marketplace_chat/pkg/chaterr"
	"vehicle_marketplace_chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RealtimeSession is the transport surface the client needs. Satisfied by
// *transport.Session.
type RealtimeSession interface {
	Connect(ctx context.Context) error
	JoinRoom(room string) error
	LeaveRoom(room string)
	Send(room, body string) error
	OnMessage(h transport.MessageHandler)
	OnHistorySnapshot(h transport.SnapshotHandler)
	Disconnect()
	Info() domain.SessionInfo
}

// MessageStore is the persisted message collaborator (REST).
type MessageStore interface {
	GetHistory(ctx context.Context, room string) ([]domain.Message, error)
	PostMessage(ctx context.Context, room, body string) (domain.Message, error)
}

// ChatClient ties the transport session, reconciler and unread ledger
// together for the screens. One ChatClient per signed-in viewer; every screen
// in the process shares it and re-derives its view on activation.
type ChatClient struct {
	viewerID string
	role     domain.Role

	session RealtimeSession
	rec     *reconcile.Reconciler
	ledger  *unread.Ledger
	store   MessageStore
}

// NewChatClient wires the facade and subscribes the reconciler to the
// session's multicast streams.
func NewChatClient(
	viewerID string,
	role domain.Role,
	session RealtimeSession,
	rec *reconcile.Reconciler,
	ledger *unread.Ledger,
	store MessageStore,
) *ChatClient {
	c := &ChatClient{
		viewerID: viewerID,
		role:     role,
		session:  session,
		rec:      rec,
		ledger:   ledger,
		store:    store,
	}
	session.OnHistorySnapshot(rec.ApplySnapshot)
	session.OnMessage(rec.ApplyAppend)
	return c
}

// Reconciler exposes the running sequences to the inbox aggregator.
func (c *ChatClient) Reconciler() *reconcile.Reconciler { return c.rec }

// Open connects the realtime channel. Retriable; a failure leaves screens on
// pull-only rendering.
func (c *ChatClient) Open(ctx context.Context) error {
	return c.session.Connect(ctx)
}

// Close tears the session down, releasing every room membership.
func (c *ChatClient) Close() {
	c.session.Disconnect()
}

// OpenConversation joins the room and reconciles push against pull: the join
// triggers the server's HistorySnapshot while the REST history is fetched in
// parallel semantics - whichever lands first, the merged result is the same.
// Returns the sequence to render; a history miss degrades to local state.
func (c *ChatClient) OpenConversation(ctx context.Context, key domain.ConversationKey) ([]domain.Message, error) {
	room := key.Room()
	if err := c.session.JoinRoom(room); err != nil {
		logger.Log.Warn("room join deferred", zap.String("room", room), zap.Error(err))
	}
	if err := c.rec.ReconcileOnJoin(ctx, room); err != nil {
		// soft failure: render what is reconciled, retry on next activation
		return c.rec.Sequence(room), err
	}
	return c.rec.Sequence(room), nil
}

// CloseConversation releases this screen's reference on the room.
func (c *ChatClient) CloseConversation(key domain.ConversationKey) {
	c.session.LeaveRoom(key.Room())
}

// Messages current reconciled sequence for the conversation.
func (c *ChatClient) Messages(key domain.ConversationKey) []domain.Message {
	return c.rec.Sequence(key.Room())
}

// Send composes an optimistic message and fires it at the channel. The local
// entry renders immediately as pending; the authoritative echo replaces it in
// place. When the socket is down the REST postMessage fallback is tried once;
// if that fails too the entry flips to failed and the user may retry.
func (c *ChatClient) Send(ctx context.Context, key domain.ConversationKey, body string) (domain.Message, error) {
	room := key.Room()
	local := domain.Message{
		ID:         "local-" + uuid.NewString(),
		Room:       room,
		SenderRole: c.role,
		SenderID:   c.viewerID,
		Body:       body,
		SentAt:     time.Now().UnixMilli(),
		Delivery:   domain.DeliveryPending,
	}
	c.rec.AddPending(local)

	err := c.session.Send(room, body)
	if err == nil {
		return local, nil
	}
	if !errors.Is(err, chaterr.ErrTransportUnavailable) {
		c.rec.MarkFailed(room, local.ID)
		return local, chaterr.Wrap(chaterr.ErrSendFailed, err)
	}

	persisted, postErr := c.store.PostMessage(ctx, room, body)
	if postErr != nil {
		c.rec.MarkFailed(room, local.ID)
		return local, chaterr.Wrap(chaterr.ErrSendFailed, postErr)
	}
	persisted.Delivery = domain.DeliveryConfirmed
	c.rec.ApplyAppend(persisted)
	// the REST result is the authoritative record; the optimistic entry
	// would otherwise linger next to it
	c.rec.Remove(room, local.ID)
	return persisted, nil
}

// RetrySend re-sends a failed message as a fresh optimistic entry.
func (c *ChatClient) RetrySend(ctx context.Context, key domain.ConversationKey, failedID string) (domain.Message, error) {
	room := key.Room()
	var body string
	found := false
	for _, m := range c.rec.Sequence(room) {
		if m.ID == failedID && m.Delivery == domain.DeliveryFailed {
			body = m.Body
			found = true
			break
		}
	}
	if !found {
		return domain.Message{}, chaterr.ErrSendFailed
	}
	c.rec.Remove(room, failedID)
	return c.Send(ctx, key, body)
}

// MarkRead advances the viewer's watermark after the conversation was viewed.
func (c *ChatClient) MarkRead(ctx context.Context, key domain.ConversationKey, at int64) error {
	return c.ledger.MarkRead(ctx, key.Room(), c.role, at)
}

// UnreadCount fresh unread derivation for one conversation.
func (c *ChatClient) UnreadCount(ctx context.Context, key domain.ConversationKey) (int, error) {
	room := key.Room()
	return c.ledger.UnreadCount(ctx, c.rec.Sequence(room), room, c.role)
}

// NewInbox builds an inbox aggregator view over this client's state.
func (c *ChatClient) NewInbox(directory inbox.Directory, profiles inbox.Profiles) *inbox.Aggregator {
	return inbox.NewAggregator(directory, profiles, c.rec, c.ledger)
}
