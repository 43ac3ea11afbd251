package domain

// DirectoryEntry one conversation the viewer participates in, as reported by
// the request/offer directory.
type DirectoryEntry struct {
	Key              ConversationKey `json:"key"`
	RequestTitle     string          `json:"request_title"`
	RequestCreatedAt int64           `json:"request_created_at"`
}

// ConversationSummary derived inbox row. Never persisted: recomputed from the
// reconciled history plus the viewer's watermark on every pass.
type ConversationSummary struct {
	Key              ConversationKey
	RequestTitle     string
	CounterpartLabel string
	LastMessage      string
	LastMessageAt    int64
	UnreadForViewer  int
}

// ReadWatermark how far a viewer has read one conversation.
// LastReadAt never moves backward.
type ReadWatermark struct {
	Room       string `bson:"room" json:"room"`
	ViewerRole Role   `bson:"viewer_role" json:"viewer_role"`
	LastReadAt int64  `bson:"last_read_at" json:"last_read_at"`
}
