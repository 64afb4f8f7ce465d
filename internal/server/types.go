package server

import (
	"strings"

	"github.com/Tyrowin/messenger/internal/directory"
	"github.com/Tyrowin/messenger/internal/entities"
)

// Messenger is the messaging service as seen by the HTTP handlers.
type Messenger interface {
	MessagePoster
	CreateChannel(id, name string, participantIDs []string) entities.Channel
	SetActiveChannel(userID, channelID string) error
	SetStatus(userID string, status entities.Status) error
	Channel(id string) (entities.Channel, bool)
	User(id string) (entities.User, bool)
	Snapshot() directory.Snapshot
}

// MessagePoster posts messages on behalf of WebSocket clients.
type MessagePoster interface {
	PostMessage(userID, channelID, messageID, text string) (entities.Message, error)
}

// SubmitMessage is the JSON frame a client sends to post a message over the socket.
type SubmitMessage struct {
	UserID    string `json:"userId"`
	ChannelID string `json:"channelId"`
	ID        string `json:"id"`
	Text      string `json:"text"`
}

// BroadcastMessage is an encoded event queued for fan-out.
type BroadcastMessage struct {
	Payload []byte
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
