package reconcile

import (
	"context"
	"sync"
	"time"

	"vehicle_marketplace_chat/internal/conversation/domain"
	"vehicle_marketplace_chat/pkg/chaterr"
	"vehicle_marketplace_chat/pkg/logger"

	"go.uber.org/zap"
)

// HistoryFetcher pulls the persisted history for one room (cold truth).
type HistoryFetcher interface {
	GetHistory(ctx context.Context, room string) ([]domain.Message, error)
}

const defaultFetchTimeout = 10 * time.Second

// Reconciler keeps the authoritative per-conversation sequence the screens
// render. Realtime pushes and REST fetches feed the same Merge, so arrival
// order never changes the final sequence.
type Reconciler struct {
	fetcher      HistoryFetcher
	fetchTimeout time.Duration

	mu   sync.RWMutex
	seqs map[string][]domain.Message
}

// NewReconciler builds a reconciler over the given history source.
func NewReconciler(fetcher HistoryFetcher) *Reconciler {
	return &Reconciler{
		fetcher:      fetcher,
		fetchTimeout: defaultFetchTimeout,
		seqs:         make(map[string][]domain.Message),
	}
}

// ApplySnapshot merges a pushed HistorySnapshot into the running sequence.
func (r *Reconciler) ApplySnapshot(room string, msgs []domain.Message) {
	confirmed := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		m.Delivery = domain.DeliveryConfirmed
		confirmed[i] = m
	}
	r.mu.Lock()
	r.seqs[room] = Merge(r.seqs[room], confirmed)
	r.mu.Unlock()
}

// ApplyAppend merges one pushed MessageAppended event. Inbound messages are
// treated as potential duplicates; Merge dedupes by id.
func (r *Reconciler) ApplyAppend(msg domain.Message) {
	if msg.Delivery == "" {
		msg.Delivery = domain.DeliveryConfirmed
	}
	r.mu.Lock()
	r.seqs[msg.Room] = Merge(r.seqs[msg.Room], []domain.Message{msg})
	r.mu.Unlock()
}

// AddPending inserts an optimistic locally composed message.
func (r *Reconciler) AddPending(msg domain.Message) {
	msg.Delivery = domain.DeliveryPending
	r.mu.Lock()
	r.seqs[msg.Room] = Merge(r.seqs[msg.Room], []domain.Message{msg})
	r.mu.Unlock()
}

// MarkFailed flips a pending message to failed so the screen can show the
// retry affordance in place.
func (r *Reconciler) MarkFailed(room, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq := r.seqs[room]
	for i, m := range seq {
		if m.ID == id && m.Delivery == domain.DeliveryPending {
			seq[i].Delivery = domain.DeliveryFailed
			return
		}
	}
}

// Remove drops one message (used when a failed send is retried as a new
// pending entry).
func (r *Reconciler) Remove(room, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq := r.seqs[room]
	for i, m := range seq {
		if m.ID == id {
			r.seqs[room] = append(seq[:i:i], seq[i+1:]...)
			return
		}
	}
}

// Sequence returns a copy of the reconciled sequence for the room.
func (r *Reconciler) Sequence(room string) []domain.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Message(nil), r.seqs[room]...)
}

// Latest returns the newest reconciled message, if any.
func (r *Reconciler) Latest(room string) (domain.Message, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seq := r.seqs[room]
	if len(seq) == 0 {
		return domain.Message{}, false
	}
	return seq[len(seq)-1], true
}

// ReconcileOnJoin fetches the persisted history and merges it. The live
// HistorySnapshot push arrives independently; whichever lands first, Merge
// commutes. A fetch that misses the window is a soft failure: the caller
// falls back to whatever is already reconciled and retries later.
func (r *Reconciler) ReconcileOnJoin(ctx context.Context, room string) error {
	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	msgs, err := r.fetcher.GetHistory(fetchCtx, room)
	if err != nil {
		logger.Log.Warn("history fetch failed, rendering local state",
			zap.String("room", room), zap.Error(err))
		return chaterr.ErrHistoryFetchFailed
	}
	r.ApplySnapshot(room, msgs)
	return nil
}
