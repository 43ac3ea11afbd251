package transport

import (
	"context"
	"sync"
	"time"

	"vehicle_marketplace_chat/internal/conversation/domain"
	"vehicle_marketplace_chat/pkg/chaterr"
	"vehicle_marketplace_chat/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// MessageHandler consumes appended messages pushed over the channel.
type MessageHandler func(msg domain.Message)

// SnapshotHandler consumes the history snapshot pushed after a room join.
type SnapshotHandler func(room string, msgs []domain.Message)

// Session owns one realtime connection for one viewer. It is shared across
// every screen observing it in the process: handlers are multicast and room
// membership is reference-counted, so screen mount/unmount cycles compose
// without re-wiring raw listeners.
type Session struct {
	url       string
	authToken string
	dialer    Dialer
	viewerID  string
	role      domain.Role

	// newBackOff builds the reconnect policy; replaced in tests
	newBackOff func() backoff.BackOff

	mu           sync.Mutex
	writeMu      sync.Mutex
	state        domain.ConnectionState
	sock         Socket
	rooms        map[string]int // room -> screen refcount
	msgHandlers  []MessageHandler
	snapHandlers []SnapshotHandler
	cancel       context.CancelFunc
}

// NewSession builds a disconnected session for the viewer.
func NewSession(url, authToken string, dialer Dialer, viewerID string, role domain.Role) *Session {
	return &Session{
		url:        url,
		authToken:  authToken,
		dialer:     dialer,
		viewerID:   viewerID,
		role:       role,
		newBackOff: defaultBackOff,
		state:      domain.StateDisconnected,
		rooms:      make(map[string]int),
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // retry until the session is torn down
	return b
}

// Connect opens the channel. Idempotent: when already connecting or joined it
// returns the existing session state untouched. A dial failure is retriable,
// never fatal; callers get ErrTransportUnavailable and try again later.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != domain.StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = domain.StateConnecting
	s.mu.Unlock()

	sock, err := s.dialer.DialContext(ctx, s.url, s.authToken)
	if err != nil {
		s.mu.Lock()
		s.state = domain.StateDisconnected
		s.mu.Unlock()
		return chaterr.Wrap(chaterr.ErrTransportUnavailable, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.state != domain.StateConnecting {
		// torn down while the dial was in flight
		s.mu.Unlock()
		cancel()
		sock.Close()
		return nil
	}
	s.sock = sock
	s.cancel = cancel
	s.state = domain.StateJoined
	s.mu.Unlock()

	// rooms referenced while disconnected still owe the server a join frame
	s.rejoinRooms(sock)

	go s.readLoop(loopCtx, sock)
	return nil
}

// Info snapshot of the session for rendering a "reconnecting" indicator.
func (s *Session) Info() domain.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		rooms = append(rooms, room)
	}
	return domain.SessionInfo{
		ViewerID: s.viewerID,
		Role:     s.role,
		State:    s.state,
		Rooms:    rooms,
	}
}

// OnMessage registers an appended-message consumer. Multicast: every
// registered handler sees every event.
func (s *Session) OnMessage(h MessageHandler) {
	s.mu.Lock()
	s.msgHandlers = append(s.msgHandlers, h)
	s.mu.Unlock()
}

// OnHistorySnapshot registers a snapshot consumer.
func (s *Session) OnHistorySnapshot(h SnapshotHandler) {
	s.mu.Lock()
	s.snapHandlers = append(s.snapHandlers, h)
	s.mu.Unlock()
}

// JoinRoom requests server-side membership for the conversation room. Safe to
// call once per observing screen: only the first reference sends the join
// frame, the server answers it with a HistorySnapshot push. While disconnected
// the reference is recorded and the frame goes out on the next connect.
func (s *Session) JoinRoom(room string) error {
	s.mu.Lock()
	s.rooms[room]++
	first := s.rooms[room] == 1
	sock := s.sock
	connected := s.state == domain.StateJoined
	s.mu.Unlock()

	if !first || !connected || sock == nil {
		return nil
	}
	if err := s.writeCommand(sock, domain.ChannelCommand{Action: domain.ActionJoin, Room: room}); err != nil {
		return chaterr.Wrap(chaterr.ErrTransportUnavailable, err)
	}
	return nil
}

// LeaveRoom drops one screen's reference; the leave frame goes out only when
// the last reference is released.
func (s *Session) LeaveRoom(room string) {
	s.mu.Lock()
	if s.rooms[room] == 0 {
		s.mu.Unlock()
		return
	}
	s.rooms[room]--
	last := s.rooms[room] == 0
	if last {
		delete(s.rooms, room)
	}
	sock := s.sock
	connected := s.state == domain.StateJoined
	s.mu.Unlock()

	if !last || !connected || sock == nil {
		return
	}
	if err := s.writeCommand(sock, domain.ChannelCommand{Action: domain.ActionLeave, Room: room}); err != nil {
		logger.Log.Warn("leave frame dropped", zap.String("room", room), zap.Error(err))
	}
}

// Send fires the body at the room and forgets it. No message id comes back;
// the authoritative MessageAppended echo is the only confirmation.
func (s *Session) Send(room, body string) error {
	s.mu.Lock()
	sock := s.sock
	connected := s.state == domain.StateJoined
	s.mu.Unlock()

	if !connected || sock == nil {
		return chaterr.ErrTransportUnavailable
	}
	if err := s.writeCommand(sock, domain.ChannelCommand{Action: domain.ActionEmit, Room: room, Body: body}); err != nil {
		return chaterr.Wrap(chaterr.ErrTransportUnavailable, err)
	}
	return nil
}

// Disconnect releases every room membership and the underlying channel.
// Guaranteed on screen unmount / app background; the gateway additionally
// drops memberships server-side when the socket dies without it.
func (s *Session) Disconnect() {
	s.mu.Lock()
	cancel := s.cancel
	sock := s.sock
	s.cancel = nil
	s.sock = nil
	s.state = domain.StateDisconnected
	s.rooms = make(map[string]int)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sock != nil {
		sock.Close()
	}
}

func (s *Session) writeCommand(sock Socket, cmd domain.ChannelCommand) error {
	// gorilla connections allow a single writer at a time
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return sock.WriteJSON(cmd)
}

func (s *Session) readLoop(ctx context.Context, sock Socket) {
	for {
		var ev domain.ChannelEvent
		if err := sock.ReadJSON(&ev); err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			logger.Log.Warn("realtime channel dropped", zap.String("viewer", s.viewerID), zap.Error(err))
			s.reconnect(ctx)
			return
		}
		s.dispatch(ev)
	}
}

func (s *Session) dispatch(ev domain.ChannelEvent) {
	s.mu.Lock()
	msgHandlers := append([]MessageHandler(nil), s.msgHandlers...)
	snapHandlers := append([]SnapshotHandler(nil), s.snapHandlers...)
	s.mu.Unlock()

	switch ev.Action {
	case domain.ActionHistorySnapshot:
		for _, h := range snapHandlers {
			h(ev.Room, ev.Messages)
		}
	case domain.ActionMessageAppended:
		if ev.Message == nil {
			return
		}
		for _, h := range msgHandlers {
			h(*ev.Message)
		}
	case domain.ActionError:
		logger.Log.Warn("channel rejected command", zap.String("room", ev.Room), zap.String("err", ev.Error))
	}
}

// reconnect dials with exponential backoff and jitter, then re-joins every
// previously joined room. Each re-join makes the server push a fresh
// HistorySnapshot, covering messages missed while disconnected; delivery is
// at-least-once, the reconciler dedupes.
func (s *Session) reconnect(ctx context.Context) {
	s.mu.Lock()
	s.state = domain.StateConnecting
	s.sock = nil
	s.mu.Unlock()

	var sock Socket
	op := func() error {
		var err error
		sock, err = s.dialer.DialContext(ctx, s.url, s.authToken)
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(s.newBackOff(), ctx)); err != nil {
		s.mu.Lock()
		s.state = domain.StateDisconnected
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if s.state != domain.StateConnecting {
		// Disconnect won the race; the session stays torn down
		s.mu.Unlock()
		sock.Close()
		return
	}
	s.sock = sock
	s.state = domain.StateJoined
	s.mu.Unlock()

	s.rejoinRooms(sock)

	go s.readLoop(ctx, sock)
}

// rejoinRooms replays a join frame for every room still referenced. The server
// answers each with a fresh HistorySnapshot push.
func (s *Session) rejoinRooms(sock Socket) {
	s.mu.Lock()
	rooms := make([]string, 0, len(s.rooms))
	for room, refs := range s.rooms {
		if refs > 0 {
			rooms = append(rooms, room)
		}
	}
	s.mu.Unlock()

	for _, room := range rooms {
		if err := s.writeCommand(sock, domain.ChannelCommand{Action: domain.ActionJoin, Room: room}); err != nil {
			logger.Log.Warn("rejoin failed", zap.String("room", room), zap.Error(err))
		}
	}
}
