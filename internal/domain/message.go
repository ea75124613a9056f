package domain

import "time"

// InboundEvent is one normalized user message extracted from a webhook batch.
type InboundEvent struct {
	Channel   string // originating channel name (currently always "messenger")
	PageID    string // page the message was sent to
	SenderID  string // platform-scoped user ID of the sender
	Text      string
	RequestID string // correlation ID for log lines across the pipeline
	Timestamp time.Time
}

// OutboundReply is one generated reply on its way back to the sender.
type OutboundReply struct {
	Channel     string
	PageID      string
	RecipientID string
	Text        string
}
