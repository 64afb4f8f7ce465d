// Package directory holds the in-memory set of users and channels.
//
// The Store performs no validation. Every exported method takes the store lock,
// so each call is atomic relative to the others, and every value handed out is a
// copy that callers may keep or modify freely.
package directory

import (
	"sync"

	"github.com/samber/lo"

	"github.com/Tyrowin/messenger/internal/entities"
)

// Snapshot is a consistent copy of the whole directory.
type Snapshot struct {
	Users    []entities.User    `json:"users"`
	Channels []entities.Channel `json:"channels"`
}

// Store owns all users and channels. Lookups scan in insertion order and return the
// first match, so a channel created twice with the same id is shadowed by the first.
type Store struct {
	mu       sync.RWMutex
	users    []*entities.User
	channels []*entities.Channel
}

// New creates a Store seeded with copies of users.
func New(users []entities.User) *Store {
	s := &Store{
		users: make([]*entities.User, 0, len(users)),
	}
	for _, u := range users {
		u = u.Clone()
		s.users = append(s.users, &u)
	}
	return s
}

func (s *Store) findUser(id string) *entities.User {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (s *Store) findChannel(id string) *entities.Channel {
	for _, c := range s.channels {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// FindUser returns the user with the given id.
func (s *Store) FindUser(id string) (entities.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u := s.findUser(id)
	if u == nil {
		return entities.User{}, false
	}
	return u.Clone(), true
}

// FindChannel returns the first channel with the given id.
func (s *Store) FindChannel(id string) (entities.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.findChannel(id)
	if c == nil {
		return entities.Channel{}, false
	}
	return c.Clone(), true
}

// AppendChannel adds channel to the end of the channel list.
func (s *Store) AppendChannel(channel entities.Channel) {
	channel = channel.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = append(s.channels, &channel)
}

// UpdateUser applies mutate to the stored user while holding the write lock.
// It returns false, without calling mutate, when the user does not exist.
func (s *Store) UpdateUser(id string, mutate func(*entities.User)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.findUser(id)
	if u == nil {
		return false
	}
	mutate(u)
	return true
}

// AppendMessage appends message to the first channel with the given id.
// It returns false when the channel does not exist.
func (s *Store) AppendMessage(channelID string, message entities.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findChannel(channelID)
	if c == nil {
		return false
	}
	c.Messages = append(c.Messages, message)
	return true
}

// Users returns a copy of every user in seed order.
func (s *Store) Users() []entities.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usersCopy()
}

// Channels returns a copy of every channel in creation order, duplicates included.
func (s *Store) Channels() []entities.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channelsCopy()
}

// Snapshot returns users and channels as they are at the instant of the call.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Users:    s.usersCopy(),
		Channels: s.channelsCopy(),
	}
}

func (s *Store) usersCopy() []entities.User {
	return lo.Map(s.users, func(u *entities.User, _ int) entities.User {
		return u.Clone()
	})
}

func (s *Store) channelsCopy() []entities.Channel {
	return lo.Map(s.channels, func(c *entities.Channel, _ int) entities.Channel {
		return c.Clone()
	})
}
