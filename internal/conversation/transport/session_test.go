package transport

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"vehicle_marketplace_chat/internal/conversation/domain"
	"vehicle_marketplace_chat/pkg/chaterr"
	"vehicle_marketplace_chat/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
)

const testRoom = "conv:req-1:partner-1"

func TestMain(m *testing.M) {
	logger.Log = logger.Initialize("transport_test", os.TempDir())
	os.Exit(m.Run())
}

// fakeSocket scripted channel endpoint: records frames written by the
// session and replays pushed events through ReadJSON.
type fakeSocket struct {
	mu        sync.Mutex
	writes    []domain.ChannelCommand
	writeErr  error
	events    chan domain.ChannelEvent
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		events: make(chan domain.ChannelEvent, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeSocket) ReadJSON(v interface{}) error {
	select {
	case ev := <-f.events:
		*(v.(*domain.ChannelEvent)) = ev
		return nil
	case <-f.closed:
		return errors.New("use of closed connection")
	}
}

func (f *fakeSocket) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, v.(domain.ChannelCommand))
	return nil
}

func (f *fakeSocket) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeSocket) push(ev domain.ChannelEvent) {
	f.events <- ev
}

func (f *fakeSocket) commands() []domain.ChannelCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChannelCommand(nil), f.writes...)
}

// fakeDialer hands out fake sockets, optionally refusing the first dials.
type fakeDialer struct {
	mu    sync.Mutex
	socks []*fakeSocket
	fails int
	dials int
}

func (d *fakeDialer) DialContext(ctx context.Context, url, authToken string) (Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.fails > 0 {
		d.fails--
		return nil, errors.New("dial refused")
	}
	sock := newFakeSocket()
	d.socks = append(d.socks, sock)
	return sock, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) socket(i int) *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.socks) {
		return nil
	}
	return d.socks[i]
}

func newTestSession(dialer Dialer) *Session {
	s := NewSession("ws://gateway/ws", "token", dialer, "requester-1", domain.RoleRequester)
	s.newBackOff = func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Millisecond)
	}
	return s
}

func TestConnect_Idempotent(t *testing.T) {
	dialer := &fakeDialer{}
	s := newTestSession(dialer)
	defer s.Disconnect()

	assert.NoError(t, s.Connect(context.Background()))
	assert.NoError(t, s.Connect(context.Background()))

	assert.Equal(t, 1, dialer.dialCount())
	assert.Equal(t, domain.StateJoined, s.Info().State)
}

func TestConnect_DialFailureIsRetriable(t *testing.T) {
	dialer := &fakeDialer{fails: 1}
	s := newTestSession(dialer)
	defer s.Disconnect()

	err := s.Connect(context.Background())
	assert.ErrorIs(t, err, chaterr.ErrTransportUnavailable)
	assert.Equal(t, domain.StateDisconnected, s.Info().State)

	// the same call succeeds once the network is back
	assert.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, domain.StateJoined, s.Info().State)
}

func TestJoinRoom_RefCounted(t *testing.T) {
	dialer := &fakeDialer{}
	s := newTestSession(dialer)
	defer s.Disconnect()
	assert.NoError(t, s.Connect(context.Background()))

	// two screens observe the same conversation
	assert.NoError(t, s.JoinRoom(testRoom))
	assert.NoError(t, s.JoinRoom(testRoom))

	sock := dialer.socket(0)
	assert.Equal(t, []domain.ChannelCommand{
		{Action: domain.ActionJoin, Room: testRoom},
	}, sock.commands())

	// first unmount keeps the membership alive
	s.LeaveRoom(testRoom)
	assert.Len(t, sock.commands(), 1)

	// last unmount releases it
	s.LeaveRoom(testRoom)
	cmds := sock.commands()
	assert.Len(t, cmds, 2)
	assert.Equal(t, domain.ActionLeave, cmds[1].Action)

	// leaving an unjoined room is a no-op
	s.LeaveRoom(testRoom)
	assert.Len(t, sock.commands(), 2)
}

func TestJoinRoom_BeforeConnectReplaysOnConnect(t *testing.T) {
	// screen opens while offline: the dial is refused, the room is still
	// referenced, and the retried connect owes the server the join frame
	dialer := &fakeDialer{fails: 1}
	s := newTestSession(dialer)
	defer s.Disconnect()

	assert.ErrorIs(t, s.Connect(context.Background()), chaterr.ErrTransportUnavailable)
	assert.NoError(t, s.JoinRoom(testRoom))
	assert.Contains(t, s.Info().Rooms, testRoom)

	assert.NoError(t, s.Connect(context.Background()))

	sock := dialer.socket(0)
	assert.Equal(t, []domain.ChannelCommand{
		{Action: domain.ActionJoin, Room: testRoom},
	}, sock.commands())
}

func TestJoinRoom_WriteFailureIsTransportUnavailable(t *testing.T) {
	dialer := &fakeDialer{}
	s := newTestSession(dialer)
	defer s.Disconnect()
	assert.NoError(t, s.Connect(context.Background()))

	sock := dialer.socket(0)
	sock.mu.Lock()
	sock.writeErr = errors.New("broken pipe")
	sock.mu.Unlock()

	assert.ErrorIs(t, s.JoinRoom(testRoom), chaterr.ErrTransportUnavailable)
}

func TestSend_WhileDisconnected(t *testing.T) {
	s := newTestSession(&fakeDialer{})

	err := s.Send(testRoom, "anyone there?")
	assert.ErrorIs(t, err, chaterr.ErrTransportUnavailable)
}

func TestSend_WritesEmitFrame(t *testing.T) {
	dialer := &fakeDialer{}
	s := newTestSession(dialer)
	defer s.Disconnect()
	assert.NoError(t, s.Connect(context.Background()))
	assert.NoError(t, s.JoinRoom(testRoom))

	assert.NoError(t, s.Send(testRoom, "tire is flat"))

	cmds := dialer.socket(0).commands()
	assert.Equal(t, domain.ChannelCommand{Action: domain.ActionEmit, Room: testRoom, Body: "tire is flat"}, cmds[len(cmds)-1])
}

func TestDispatch_MulticastHandlers(t *testing.T) {
	dialer := &fakeDialer{}
	s := newTestSession(dialer)
	defer s.Disconnect()

	var mu sync.Mutex
	var seenA, seenB []string
	var snaps []int
	s.OnMessage(func(msg domain.Message) {
		mu.Lock()
		seenA = append(seenA, msg.ID)
		mu.Unlock()
	})
	s.OnMessage(func(msg domain.Message) {
		mu.Lock()
		seenB = append(seenB, msg.ID)
		mu.Unlock()
	})
	s.OnHistorySnapshot(func(room string, msgs []domain.Message) {
		mu.Lock()
		snaps = append(snaps, len(msgs))
		mu.Unlock()
	})

	assert.NoError(t, s.Connect(context.Background()))
	sock := dialer.socket(0)

	sock.push(domain.ChannelEvent{
		Action: domain.ActionHistorySnapshot,
		Room:   testRoom,
		Messages: []domain.Message{
			{ID: "m1", Room: testRoom, SenderRole: domain.RolePartner, Body: "hi", SentAt: 100},
		},
	})
	sock.push(domain.ChannelEvent{
		Action:  domain.ActionMessageAppended,
		Room:    testRoom,
		Message: &domain.Message{ID: "m2", Room: testRoom, SenderRole: domain.RolePartner, Body: "there", SentAt: 200},
	})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seenA) == 1 && len(seenB) == 1 && len(snaps) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"m2"}, seenA)
	assert.Equal(t, []string{"m2"}, seenB)
	assert.Equal(t, []int{1}, snaps)
}

func TestReconnect_RejoinsRooms(t *testing.T) {
	// first dial succeeds, the replacement dial fails once before recovering
	dialer := &fakeDialer{}
	s := newTestSession(dialer)
	defer s.Disconnect()

	assert.NoError(t, s.Connect(context.Background()))
	assert.NoError(t, s.JoinRoom(testRoom))

	// socket dies under the session
	dialer.mu.Lock()
	dialer.fails = 1
	dialer.mu.Unlock()
	dialer.socket(0).Close()

	assert.Eventually(t, func() bool {
		return s.Info().State == domain.StateJoined && dialer.socket(1) != nil
	}, 2*time.Second, 10*time.Millisecond)

	// reconnect dialed through the failure and re-joined the room, which is
	// what makes the server re-push the history snapshot
	assert.GreaterOrEqual(t, dialer.dialCount(), 3)
	assert.Eventually(t, func() bool {
		cmds := dialer.socket(1).commands()
		return len(cmds) == 1 && cmds[0] == domain.ChannelCommand{Action: domain.ActionJoin, Room: testRoom}
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, s.Info().Rooms, testRoom)
}

// gatedDialer parks every dial after the first until the gate opens, letting
// a test order Disconnect against an in-flight reconnect dial.
type gatedDialer struct {
	fakeDialer
	gate chan struct{}
}

func (d *gatedDialer) DialContext(ctx context.Context, url, authToken string) (Socket, error) {
	d.mu.Lock()
	parked := d.dials >= 1
	d.mu.Unlock()
	if parked {
		<-d.gate
	}
	return d.fakeDialer.DialContext(ctx, url, authToken)
}

func TestDisconnect_DuringReconnectStaysDown(t *testing.T) {
	dialer := &gatedDialer{gate: make(chan struct{})}
	s := newTestSession(dialer)

	assert.NoError(t, s.Connect(context.Background()))
	assert.NoError(t, s.JoinRoom(testRoom))

	// socket dies; the replacement dial parks on the gate
	dialer.socket(0).Close()
	assert.Eventually(t, func() bool {
		return s.Info().State == domain.StateConnecting
	}, 2*time.Second, 10*time.Millisecond)

	s.Disconnect()
	close(dialer.gate)

	// the late dial completes but must not resurrect the session
	assert.Eventually(t, func() bool {
		sock := dialer.socket(1)
		if sock == nil {
			return false
		}
		select {
		case <-sock.closed:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	info := s.Info()
	assert.Equal(t, domain.StateDisconnected, info.State)
	assert.Empty(t, info.Rooms)
}

func TestDisconnect_ClearsMembership(t *testing.T) {
	dialer := &fakeDialer{}
	s := newTestSession(dialer)

	assert.NoError(t, s.Connect(context.Background()))
	assert.NoError(t, s.JoinRoom(testRoom))

	s.Disconnect()

	info := s.Info()
	assert.Equal(t, domain.StateDisconnected, info.State)
	assert.Empty(t, info.Rooms)

	// disconnected sends are refused, not queued
	assert.ErrorIs(t, s.Send(testRoom, "late"), chaterr.ErrTransportUnavailable)
}
