package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"vehicle_marketplace_chat/internal/conversation/domain"
	"vehicle_marketplace_chat/internal/gateway/repository"
	"vehicle_marketplace_chat/pkg/logger"
	"vehicle_marketplace_chat/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const pingPeriod = 10 * time.Minute

// ChatWebsocketHandler drives one realtime connection: room joins with
// snapshot push, message emit, and fan-out of appended messages.
type ChatWebsocketHandler struct {
	messageUC *MessageUseCase
	fanout    repository.RoomPubSub
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(messageUC *MessageUseCase, fanout repository.RoomPubSub) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		messageUC: messageUC,
		fanout:    fanout,
	}
}

// connState per-connection mutable state. Rooms map a joined room to its
// fan-out subscription cancel; all of them fire when the socket dies, which
// is the server-side grace for clients that never sent leave.
type connState struct {
	writeMu sync.Mutex
	rooms   map[string]context.CancelFunc
}

// HandleConnection is the websocket entry point.
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	viewerID, _ := conn.Locals(middlewares.TokenViewerID).(string)
	role, _ := conn.Locals(middlewares.TokenRole).(string)
	logger.Log.Info("websocket connected",
		zap.String("viewerID", viewerID), zap.String("role", role))

	state := &connState{rooms: make(map[string]context.CancelFunc)}
	ticker := time.NewTicker(pingPeriod)
	ctxClose, cancel := context.WithCancel(context.Background())

	defer func() {
		ticker.Stop()
		// implicit leave for every joined room, crash or not
		for room, cancelSub := range state.rooms {
			cancelSub()
			delete(state.rooms, room)
		}
		logger.Log.Info("websocket closed", zap.String("viewerID", viewerID))
		conn.Close()
		cancel()
	}()

	conn.SetPongHandler(func(appData string) error {
		return nil
	})
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(appData),
			time.Now().Add(time.Second),
		)
	})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
					logger.Log.Errorf("ping error:", err)
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Info("connection closed", zap.String("viewerID", viewerID))
			} else {
				logger.Log.Errorf("websocket read error:", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			h.sendError(conn, state, "", "unknown message type")
			continue
		}
		h.execCommand(ctx, conn, state, viewerID, domain.Role(role), message)
	}
}

func (h *ChatWebsocketHandler) execCommand(ctx context.Context, conn *websocket.Conn, state *connState, viewerID string, role domain.Role, raw []byte) {
	var cmd domain.ChannelCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		logger.Log.Errorf("command unmarshal error:", err)
		return
	}

	switch cmd.Action {
	case domain.ActionJoin:
		h.joinRoom(ctx, conn, state, cmd.Room)

	case domain.ActionLeave:
		if cancelSub, ok := state.rooms[cmd.Room]; ok {
			cancelSub()
			delete(state.rooms, cmd.Room)
		}

	case domain.ActionEmit:
		if _, err := h.messageUC.Append(ctx, cmd.Room, viewerID, role, cmd.Body); err != nil {
			logger.Log.Error("emit rejected",
				zap.String("viewerID", viewerID), zap.String("room", cmd.Room), zap.String("err", err.Error()))
			h.sendError(conn, state, cmd.Room, err.Error())
		}
		// no direct reply: the authoritative echo arrives via the room
		// fan-out like any other appended message

	default:
		h.sendError(conn, state, cmd.Room, "unknown action")
	}
}

// joinRoom pushes one HistorySnapshot and subscribes the socket to the room
// fan-out. Joining twice is a no-op.
func (h *ChatWebsocketHandler) joinRoom(ctx context.Context, conn *websocket.Conn, state *connState, room string) {
	if _, _, err := domain.ParseRoom(room); err != nil {
		h.sendError(conn, state, room, err.Error())
		return
	}
	if _, joined := state.rooms[room]; joined {
		// re-join after reconnect still re-sends the snapshot
		h.pushSnapshot(ctx, conn, state, room)
		return
	}

	subCtx, cancelSub := context.WithCancel(context.Background())
	err := h.fanout.Subscribe(subCtx, room, func(msg domain.Message) {
		h.sendEvent(conn, state, domain.ChannelEvent{
			Action:  domain.ActionMessageAppended,
			Room:    room,
			Message: &msg,
		})
	})
	if err != nil {
		cancelSub()
		h.sendError(conn, state, room, err.Error())
		return
	}
	state.rooms[room] = cancelSub

	h.pushSnapshot(ctx, conn, state, room)
}

func (h *ChatWebsocketHandler) pushSnapshot(ctx context.Context, conn *websocket.Conn, state *connState, room string) {
	msgs, err := h.messageUC.History(ctx, room)
	if err != nil {
		h.sendError(conn, state, room, err.Error())
		return
	}
	h.sendEvent(conn, state, domain.ChannelEvent{
		Action:   domain.ActionHistorySnapshot,
		Room:     room,
		Messages: msgs,
	})
}

// sendEvent writes one frame; fan-out goroutines and the command loop share
// the socket, so writes are serialized.
func (h *ChatWebsocketHandler) sendEvent(conn *websocket.Conn, state *connState, ev domain.ChannelEvent) {
	b, _ := json.Marshal(ev)
	state.writeMu.Lock()
	defer state.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Log.Errorf("write message error:", err)
	}
}

func (h *ChatWebsocketHandler) sendError(conn *websocket.Conn, state *connState, room, errMsg string) {
	h.sendEvent(conn, state, domain.ChannelEvent{
		Action: domain.ActionError,
		Room:   room,
		Error:  errMsg,
	})
}
