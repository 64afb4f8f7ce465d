package entities

// Channel is a named conversation. Messages are kept in delivery order and only grow.
type Channel struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Participants []string  `json:"participants"`
	Messages     []Message `json:"messages"`
}

// Clone returns a deep copy of c. Nil slices come back empty so they encode as [].
func (c Channel) Clone() Channel {
	participants := make([]string, len(c.Participants))
	copy(participants, c.Participants)
	messages := make([]Message, len(c.Messages))
	copy(messages, c.Messages)

	c.Participants = participants
	c.Messages = messages
	return c
}
