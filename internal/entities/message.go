package entities

// Content is the body of a message.
type Content struct {
	Text string `json:"text"`
}

// Message is an immutable chat entry. The id is supplied by the caller.
type Message struct {
	ID      string  `json:"id"`
	Content Content `json:"content"`
	Owner   string  `json:"owner"`
}
