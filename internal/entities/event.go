package entities

// EventType names a state change pushed to connected clients.
type EventType string

// EventNewMessage is emitted once per successfully posted message.
const EventNewMessage EventType = "NEW_MESSAGE"

// Event is the envelope written to every live-update connection.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// MessagePosted is the NEW_MESSAGE payload: the message flattened with its channel id.
type MessagePosted struct {
	ChannelID string  `json:"channelId"`
	ID        string  `json:"id"`
	Content   Content `json:"content"`
	Owner     string  `json:"owner"`
}

// NewMessageEvent builds the NEW_MESSAGE event for m posted into channelID.
func NewMessageEvent(channelID string, m Message) Event {
	return Event{
		Type: EventNewMessage,
		Payload: MessagePosted{
			ChannelID: channelID,
			ID:        m.ID,
			Content:   m.Content,
			Owner:     m.Owner,
		},
	}
}
