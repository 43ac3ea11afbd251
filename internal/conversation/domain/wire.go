package domain

// Action socket frame action
type Action string

const (
	// ActionJoin command join a conversation room
	ActionJoin Action = "join"
	// ActionLeave command leave a conversation room
	ActionLeave Action = "leave"
	// ActionEmit command send a message body to a room
	ActionEmit Action = "emit"

	// ActionHistorySnapshot event pushed once after a successful join
	ActionHistorySnapshot Action = "history_snapshot"
	// ActionMessageAppended event pushed for every persisted message,
	// including the sender's own echo
	ActionMessageAppended Action = "message_appended"
	// ActionError event for a rejected command
	ActionError Action = "error"
)

// ChannelCommand client -> server socket frame. Sender identity rides on the
// connection's token, never on the frame.
type ChannelCommand struct {
	Action Action `json:"action"`
	Room   string `json:"room"`
	Body   string `json:"body,omitempty"`
}

// ChannelEvent server -> client socket frame
type ChannelEvent struct {
	Action   Action    `json:"action"`
	Room     string    `json:"room"`
	Message  *Message  `json:"message,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	Error    string    `json:"error,omitempty"`
}
