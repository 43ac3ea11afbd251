package domain

// DeliveryState client-side delivery tag for a message
type DeliveryState string

const (
	// DeliveryPending composed locally, no authoritative echo yet
	DeliveryPending DeliveryState = "pending"
	// DeliveryConfirmed persisted by the server with a real id and sent_at
	DeliveryConfirmed DeliveryState = "confirmed"
	// DeliveryFailed gave up on every delivery path, user may retry
	DeliveryFailed DeliveryState = "failed"
)

// Message one chat message. Immutable once confirmed; the id is the sole
// deduplication key. SentAt is authoritative only on confirmed messages,
// pending ones carry a provisional client timestamp until reconciled.
type Message struct {
	ID         string        `bson:"id" json:"id"`
	Room       string        `bson:"room" json:"room"`
	SenderRole Role          `bson:"sender_role" json:"sender_role"`
	SenderID   string        `bson:"sender_id" json:"sender_id"`
	Body       string        `bson:"body" json:"body"`
	SentAt     int64         `bson:"sent_at" json:"sent_at"` // unix milliseconds
	Delivery   DeliveryState `bson:"-" json:"-"`
}

// Confirmed whether the server has persisted this message
func (m Message) Confirmed() bool {
	return m.Delivery != DeliveryPending && m.Delivery != DeliveryFailed
}

// Before total order used everywhere a sequence is rendered:
// (sentAt, id) ascending, id breaking timestamp collisions.
func (m Message) Before(other Message) bool {
	if m.SentAt != other.SentAt {
		return m.SentAt < other.SentAt
	}
	return m.ID < other.ID
}
