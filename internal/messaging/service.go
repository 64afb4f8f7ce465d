//go:generate go run go.uber.org/mock/mockgen -source=service.go -destination=mocks/mock_broadcaster.go -package=mocks
// Package messaging applies channel, presence and message mutations to the
// directory and announces the resulting events.
package messaging

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/messenger/internal/directory"
	"github.com/Tyrowin/messenger/internal/entities"
)

// Broadcaster delivers events to every connected observer. Implementations must
// not block the caller.
type Broadcaster interface {
	Broadcast(event entities.Event)
}

// Service is the only writer of the directory.
type Service struct {
	// postMu keeps the order of stored messages and of NEW_MESSAGE events the same.
	postMu      sync.Mutex
	store       *directory.Store
	broadcaster Broadcaster
	validate    *validator.Validate
	log         zerolog.Logger
}

// New creates a Service over store that announces events through broadcaster.
func New(store *directory.Store, broadcaster Broadcaster, log zerolog.Logger) *Service {
	return &Service{
		store:       store,
		broadcaster: broadcaster,
		validate:    validator.New(),
		log:         log,
	}
}

// CreateChannel appends a new channel with no messages. Channel ids are not
// checked for uniqueness: creating the same id twice keeps both entries.
func (s *Service) CreateChannel(id, name string, participantIDs []string) entities.Channel {
	channel := entities.Channel{
		ID:           id,
		Name:         name,
		Participants: participantIDs,
		Messages:     nil,
	}.Clone()
	s.store.AppendChannel(channel)

	s.log.Info().
		Str("channel_id", id).
		Int("participants", len(participantIDs)).
		Msg("channel created")
	return channel
}

// SetActiveChannel records the channel the user is looking at. The channel id is
// stored as given, whether or not such a channel exists.
func (s *Service) SetActiveChannel(userID, channelID string) error {
	ok := s.store.UpdateUser(userID, func(u *entities.User) {
		u.ActiveChannel = &channelID
	})
	if !ok {
		return fmt.Errorf("set active channel for %q: %w", userID, entities.ErrUserNotFound)
	}

	s.log.Debug().Str("user_id", userID).Str("channel_id", channelID).Msg("active channel changed")
	return nil
}

// SetStatus changes a user's presence. The status is validated before the user is
// looked up, so an invalid status is reported even for unknown users.
func (s *Service) SetStatus(userID string, status entities.Status) error {
	if err := s.validateStatus(status); err != nil {
		return err
	}

	ok := s.store.UpdateUser(userID, func(u *entities.User) {
		u.Status = status
	})
	if !ok {
		return fmt.Errorf("set status for %q: %w", userID, entities.ErrUserNotFound)
	}

	s.log.Debug().Str("user_id", userID).Str("status", string(status)).Msg("status changed")
	return nil
}

func (s *Service) validateStatus(status entities.Status) error {
	if err := s.validate.Var(string(status), "required,oneof=ONLINE OFFLINE AWAY"); err != nil {
		return fmt.Errorf("%w %q", entities.ErrInvalidStatus, status)
	}
	return nil
}

// PostMessage appends a message to a channel and broadcasts NEW_MESSAGE. Nothing is
// stored or broadcast when the user or the channel does not exist. Message ids are
// not checked for uniqueness. Concurrent posts are broadcast in the order they are
// stored, which relies on Broadcast not blocking.
func (s *Service) PostMessage(userID, channelID, messageID, text string) (entities.Message, error) {
	if _, ok := s.store.FindUser(userID); !ok {
		return entities.Message{}, fmt.Errorf("post message as %q: %w", userID, entities.ErrUserNotFound)
	}

	message := entities.Message{
		ID:      messageID,
		Content: entities.Content{Text: text},
		Owner:   userID,
	}

	s.postMu.Lock()
	defer s.postMu.Unlock()

	if !s.store.AppendMessage(channelID, message) {
		return entities.Message{}, fmt.Errorf("post message to %q: %w", channelID, entities.ErrChannelNotFound)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("channel_id", channelID).
		Str("message_id", messageID).
		Msg("message posted")

	s.broadcaster.Broadcast(entities.NewMessageEvent(channelID, message))
	return message, nil
}

// Channel returns the first channel with the given id.
func (s *Service) Channel(id string) (entities.Channel, bool) {
	return s.store.FindChannel(id)
}

// User returns the user with the given id.
func (s *Service) User(id string) (entities.User, bool) {
	return s.store.FindUser(id)
}

// Users returns every user in seed order.
func (s *Service) Users() []entities.User {
	return s.store.Users()
}

// Snapshot returns the directory as it is at the instant of the call.
func (s *Service) Snapshot() directory.Snapshot {
	return s.store.Snapshot()
}
