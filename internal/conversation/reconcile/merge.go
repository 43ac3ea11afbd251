package reconcile

import (
	"sort"

	"vehicle_marketplace_chat/internal/conversation/domain"
)

// OptimisticMatchWindow how far a server echo's sentAt may sit from the
// provisional client timestamp and still replace the pending entry. Wide
// enough for a send-then-drop race, narrow enough not to swallow a user
// genuinely repeating the same text.
const OptimisticMatchWindow = int64(2 * 60 * 1000) // milliseconds

// Merge unions two message sets into one ordered, deduplicated sequence.
// Deterministic and pure: union by id with last-write-wins on the full record
// (messages are immutable, so this only moves delivery state), then sort by
// (sentAt, id) ascending. A confirmed message whose id is unknown replaces the
// oldest pending entry with the same (room, sender, body) inside
// OptimisticMatchWindow instead of appending a duplicate.
//
// Properties relied on elsewhere: Merge(Merge(a,b), b) == Merge(a,b), and for
// full snapshots Merge(a,b) == Merge(b,a).
func Merge(existing, incoming []domain.Message) []domain.Message {
	byID := make(map[string]domain.Message, len(existing)+len(incoming))
	for _, m := range existing {
		byID[m.ID] = m
	}

	for _, in := range incoming {
		if _, known := byID[in.ID]; known {
			byID[in.ID] = in
			continue
		}
		if in.Confirmed() {
			if pendingID, ok := matchPending(byID, in); ok {
				delete(byID, pendingID)
			}
		}
		byID[in.ID] = in
	}

	merged := make([]domain.Message, 0, len(byID))
	for _, m := range byID {
		merged = append(merged, m)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Before(merged[j]) })
	return merged
}

// matchPending finds the oldest pending message the echo can stand in for.
// Matching is by content tuple plus time window, never by position.
func matchPending(byID map[string]domain.Message, echo domain.Message) (string, bool) {
	var (
		best      domain.Message
		bestFound bool
	)
	for _, m := range byID {
		if m.Delivery != domain.DeliveryPending {
			continue
		}
		if m.Room != echo.Room || m.SenderRole != echo.SenderRole || m.Body != echo.Body {
			continue
		}
		if delta := m.SentAt - echo.SentAt; delta > OptimisticMatchWindow || delta < -OptimisticMatchWindow {
			continue
		}
		if !bestFound || m.Before(best) {
			best = m
			bestFound = true
		}
	}
	if !bestFound {
		return "", false
	}
	return best.ID, true
}
