package inbox

import (
	"context"
	"errors"
	"sort"

	"vehicle_marketplace_chat/internal/conversation/domain"
	"vehicle_marketplace_chat/internal/conversation/unread"
	"vehicle_marketplace_chat/pkg/chaterr"
	"vehicle_marketplace_chat/pkg/logger"

	"go.uber.org/zap"
)

// PlaceholderLabel shown when the counterpart's display name can't be
// resolved. One bad lookup degrades one row, never the whole inbox.
const PlaceholderLabel = "Marketplace member"

// Directory resolves which (request, partner) conversations exist for a
// viewer. Owned by the request/offer collaborator.
type Directory interface {
	ListConversationKeys(ctx context.Context, viewerID string, role domain.Role) ([]domain.DirectoryEntry, error)
}

// Profiles resolves participant display labels for enrichment.
type Profiles interface {
	ResolveDisplayLabel(ctx context.Context, participantID string) (string, error)
}

// Sequencer is the reconciler surface the aggregator needs.
type Sequencer interface {
	Sequence(room string) []domain.Message
	ReconcileOnJoin(ctx context.Context, room string) error
}

// Aggregator builds the per-viewer inbox: every conversation the viewer
// participates in, enriched with counterpart label, request title, last
// message preview and unread count. Summaries are recomputed on every call,
// never cached across screen activations.
type Aggregator struct {
	directory Directory
	profiles  Profiles
	sequences Sequencer
	ledger    *unread.Ledger
}

// NewAggregator wires the aggregator's collaborators.
func NewAggregator(directory Directory, profiles Profiles, sequences Sequencer, ledger *unread.Ledger) *Aggregator {
	return &Aggregator{
		directory: directory,
		profiles:  profiles,
		sequences: sequences,
		ledger:    ledger,
	}
}

// ListConversations lists the viewer's conversations, newest activity first.
// A thread with no messages yet sorts by the request's creation time so a
// freshly engaged partner still shows up.
func (a *Aggregator) ListConversations(ctx context.Context, viewerID string, role domain.Role) ([]domain.ConversationSummary, error) {
	entries, err := a.directory.ListConversationKeys(ctx, viewerID, role)
	if err != nil {
		return nil, err
	}

	type ordered struct {
		summary domain.ConversationSummary
		sortAt  int64
	}
	rows := make([]ordered, 0, len(entries))

	for _, entry := range entries {
		room := entry.Key.Room()

		// pull fresh history; a miss degrades to whatever is reconciled
		if err := a.sequences.ReconcileOnJoin(ctx, room); err != nil && !errors.Is(err, chaterr.ErrHistoryFetchFailed) {
			logger.Log.Warn("inbox history reconcile failed", zap.String("room", room), zap.Error(err))
		}
		seq := a.sequences.Sequence(room)

		summary := domain.ConversationSummary{
			Key:          entry.Key,
			RequestTitle: entry.RequestTitle,
		}
		sortAt := entry.RequestCreatedAt

		if len(seq) > 0 {
			last := seq[len(seq)-1]
			summary.LastMessage = last.Body
			summary.LastMessageAt = last.SentAt
			sortAt = last.SentAt
		}

		count, err := a.ledger.UnreadCount(ctx, seq, room, role)
		if err != nil {
			logger.Log.Warn("unread count degraded to zero", zap.String("room", room), zap.Error(err))
			count = 0
		}
		summary.UnreadForViewer = count

		summary.CounterpartLabel = a.counterpartLabel(ctx, entry.Key, role)

		rows = append(rows, ordered{summary: summary, sortAt: sortAt})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].sortAt > rows[j].sortAt })

	summaries := make([]domain.ConversationSummary, len(rows))
	for i, row := range rows {
		summaries[i] = row.summary
	}
	return summaries, nil
}

func (a *Aggregator) counterpartLabel(ctx context.Context, key domain.ConversationKey, viewer domain.Role) string {
	label, err := a.profiles.ResolveDisplayLabel(ctx, key.CounterpartID(viewer))
	if err != nil || label == "" {
		logger.Log.Warn(chaterr.ErrEnrichmentFailed.Error(),
			zap.String("participant", key.CounterpartID(viewer)),
			zap.Error(err))
		return PlaceholderLabel
	}
	return label
}
