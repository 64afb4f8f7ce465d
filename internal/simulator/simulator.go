// Package simulator generates background activity so a single viewer sees a
// lively demo. It is an ordinary client of the messaging service: every action
// goes through the same operations the HTTP handlers use.
package simulator

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/Tyrowin/messenger/internal/directory"
	"github.com/Tyrowin/messenger/internal/entities"
)

// Service is the subset of the messaging service the simulator drives.
type Service interface {
	PostMessage(userID, channelID, messageID, text string) (entities.Message, error)
	SetStatus(userID string, status entities.Status) error
	Snapshot() directory.Snapshot
}

// Action names what a Step did.
type Action string

const (
	ActionNone         Action = "none"
	ActionPostMessage  Action = "post_message"
	ActionChangeStatus Action = "change_status"
)

const (
	postMessageWeight  = 3
	changeStatusWeight = 1
)

var phrases = []string{
	"Has anyone looked at the build today?",
	"I pushed a fix for the flaky test.",
	"Lunch in ten minutes?",
	"The deploy went out without a hitch.",
	"Can someone review my change?",
	"I think the cache is stale again.",
	"Meeting moved to tomorrow morning.",
	"That benchmark looks much better now.",
}

// Simulator acts on behalf of every user except the one viewing the page.
type Simulator struct {
	svc           Service
	currentUserID string
	interval      time.Duration
	rng           *rand.Rand
	log           zerolog.Logger
}

// New creates a Simulator that acts every interval. rng may be nil for a randomly
// seeded source.
func New(svc Service, currentUserID string, interval time.Duration, rng *rand.Rand, log zerolog.Logger) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulator{
		svc:           svc,
		currentUserID: currentUserID,
		interval:      interval,
		rng:           rng,
		log:           log,
	}
}

// Run performs a Step every interval until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("simulator started")
	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("context done, stopping simulator")
			return nil
		case <-ticker.C:
			if _, err := s.Step(); err != nil {
				s.log.Warn().Err(err).Msg("simulated action failed")
			}
		}
	}
}

// Step performs one random action: usually a message from another participant
// into one of their channels, sometimes a presence change.
func (s *Simulator) Step() (Action, error) {
	if s.rng.IntN(postMessageWeight+changeStatusWeight) < postMessageWeight {
		if action, err := s.postMessage(); action != ActionNone || err != nil {
			return action, err
		}
	}
	return s.changeStatus()
}

func (s *Simulator) postMessage() (Action, error) {
	channels := s.svc.Snapshot().Channels
	candidates := lo.Filter(channels, func(c entities.Channel, _ int) bool {
		return len(s.others(c.Participants)) > 0
	})
	if len(candidates) == 0 {
		return ActionNone, nil
	}

	channel := candidates[s.rng.IntN(len(candidates))]
	others := s.others(channel.Participants)
	owner := others[s.rng.IntN(len(others))]
	text := phrases[s.rng.IntN(len(phrases))]

	if _, err := s.svc.PostMessage(owner, channel.ID, uuid.NewString(), text); err != nil {
		return ActionPostMessage, err
	}
	s.log.Debug().Str("user_id", owner).Str("channel_id", channel.ID).Msg("simulated message")
	return ActionPostMessage, nil
}

func (s *Simulator) changeStatus() (Action, error) {
	users := lo.Filter(s.svc.Snapshot().Users, func(u entities.User, _ int) bool {
		return u.ID != s.currentUserID
	})
	if len(users) == 0 {
		return ActionNone, nil
	}

	user := users[s.rng.IntN(len(users))]
	status := entities.Statuses[s.rng.IntN(len(entities.Statuses))]

	if err := s.svc.SetStatus(user.ID, status); err != nil {
		return ActionChangeStatus, err
	}
	s.log.Debug().Str("user_id", user.ID).Str("status", string(status)).Msg("simulated status change")
	return ActionChangeStatus, nil
}

func (s *Simulator) others(participants []string) []string {
	return lo.Without(participants, s.currentUserID)
}
