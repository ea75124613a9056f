package channel

// WebhookPayload is the top-level Messenger webhook batch. One POST can
// carry events for several pages.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the events addressed to one page.
type Entry struct {
	ID        string      `json:"id"` // page ID
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

// Messaging is one messaging event inside an entry.
type Messaging struct {
	Sender    Party    `json:"sender"`
	Recipient Party    `json:"recipient"`
	Timestamp int64    `json:"timestamp"`
	Message   *Message `json:"message,omitempty"`
}

type Party struct {
	ID string `json:"id"`
}

// Message is the message attachment of a messaging event. Echo events are
// the page's own outbound messages reflected back and must be ignored.
type Message struct {
	Mid    string `json:"mid"`
	Text   string `json:"text"`
	IsEcho bool   `json:"is_echo"`
}

// sendRequest is the Graph API body for a page reply.
type sendRequest struct {
	Recipient Party       `json:"recipient"`
	Message   sendMessage `json:"message"`
}

type sendMessage struct {
	Text string `json:"text"`
}
