// Package entities contains core messaging entities and errors.
package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced user or channel does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument signals failed input validation.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUserNotFound is returned when a user id does not resolve.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrChannelNotFound is returned when a channel id does not resolve.
	ErrChannelNotFound = fmt.Errorf("channel %w", ErrNotFound)
	// ErrInvalidStatus signals a status outside of ONLINE, OFFLINE and AWAY.
	ErrInvalidStatus = fmt.Errorf("%w: status", ErrInvalidArgument)
)
