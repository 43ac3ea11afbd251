package unread

import (
	"context"
	"sync"

	"vehicle_marketplace_chat/internal/conversation/domain"
)

// WatermarkStore holds per-(room, role) read watermarks. The persisted store
// is the source of truth; the client only reads through it, fresh per screen
// activation, so independent inbox screens can never drift apart.
type WatermarkStore interface {
	// Get returns the watermark, zero when none exists yet.
	Get(ctx context.Context, room string, role domain.Role) (int64, error)
	// Advance moves the watermark to max(current, at) and returns the
	// effective value. Never regresses.
	Advance(ctx context.Context, room string, role domain.Role, at int64) (int64, error)
}

// CountUnread derives the unread count purely from (sequence, watermark):
// messages from the other side newer than the viewer's last read. Never
// negative; zero on an empty conversation with no watermark.
func CountUnread(seq []domain.Message, viewer domain.Role, lastReadAt int64) int {
	count := 0
	for _, m := range seq {
		if m.SenderRole == viewer {
			continue
		}
		if m.SentAt > lastReadAt {
			count++
		}
	}
	return count
}

// Ledger is the single place unread counts come from. Every screen derives
// its number here instead of counting raw message arrays itself.
type Ledger struct {
	store WatermarkStore
}

// NewLedger builds a ledger over the given watermark store.
func NewLedger(store WatermarkStore) *Ledger {
	return &Ledger{store: store}
}

// UnreadCount unread messages in seq for the viewer role.
func (l *Ledger) UnreadCount(ctx context.Context, seq []domain.Message, room string, viewer domain.Role) (int, error) {
	watermark, err := l.store.Get(ctx, room, viewer)
	if err != nil {
		return 0, err
	}
	return CountUnread(seq, viewer, watermark), nil
}

// MarkRead advances the viewer's watermark. Idempotent under repeated or
// stale calls: the stored value only ever moves forward.
func (l *Ledger) MarkRead(ctx context.Context, room string, viewer domain.Role, at int64) error {
	_, err := l.store.Advance(ctx, room, viewer, at)
	return err
}

type memoryKey struct {
	room string
	role domain.Role
}

// MemoryWatermarkStore in-process store, used by tests and as the transient
// cache when the persisted collaborator is unreachable.
type MemoryWatermarkStore struct {
	mu    sync.Mutex
	marks map[memoryKey]int64
}

// NewMemoryWatermarkStore empty in-memory store
func NewMemoryWatermarkStore() *MemoryWatermarkStore {
	return &MemoryWatermarkStore{marks: make(map[memoryKey]int64)}
}

// Get current watermark, zero when unset
func (s *MemoryWatermarkStore) Get(ctx context.Context, room string, role domain.Role) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marks[memoryKey{room, role}], nil
}

// Advance move watermark forward, never back
func (s *MemoryWatermarkStore) Advance(ctx context.Context, room string, role domain.Role, at int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memoryKey{room, role}
	if at > s.marks[k] {
		s.marks[k] = at
	}
	return s.marks[k], nil
}
