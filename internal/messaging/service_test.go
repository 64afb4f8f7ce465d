package messaging_test

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Tyrowin/messenger/internal/directory"
	"github.com/Tyrowin/messenger/internal/entities"
	"github.com/Tyrowin/messenger/internal/messaging"
	"github.com/Tyrowin/messenger/internal/messaging/mocks"
)

func newTestService(t *testing.T) (*messaging.Service, *mocks.MockBroadcaster) {
	t.Helper()
	ctrl := gomock.NewController(t)
	broadcaster := mocks.NewMockBroadcaster(ctrl)
	store := directory.New(directory.DefaultUsers())
	return messaging.New(store, broadcaster, zerolog.Nop()), broadcaster
}

func TestCreateChannel(t *testing.T) {
	svc, _ := newTestService(t)

	created := svc.CreateChannel("c1", "General", []string{"U1", "U2"})

	got, ok := svc.Channel("c1")
	require.True(t, ok)
	if diff := cmp.Diff(created, got); diff != "" {
		t.Errorf("Channel() mismatch (-created +got):\n%s", diff)
	}
	assert.Equal(t, "General", got.Name)
	assert.Equal(t, []string{"U1", "U2"}, got.Participants)
	assert.Empty(t, got.Messages)
}

func TestCreateChannel_DuplicateIDAccepted(t *testing.T) {
	svc, _ := newTestService(t)

	svc.CreateChannel("c1", "first", nil)
	svc.CreateChannel("c1", "second", nil)

	channels := svc.Snapshot().Channels
	require.Len(t, channels, 2)
	got, _ := svc.Channel("c1")
	assert.Equal(t, "first", got.Name)
}

func TestSetStatus(t *testing.T) {
	for _, status := range entities.Statuses {
		t.Run(string(status), func(t *testing.T) {
			svc, _ := newTestService(t)

			require.NoError(t, svc.SetStatus("U1", status))

			u, _ := svc.User("U1")
			assert.Equal(t, status, u.Status)
		})
	}
}

func TestSetStatus_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		status entities.Status
	}{
		{name: "unknown value", userID: "U1", status: "BUSY"},
		{name: "lower case", userID: "U1", status: "online"},
		{name: "empty", userID: "U1", status: ""},
		{name: "unknown user too", userID: "missing", status: "BUSY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			before := svc.Users()

			err := svc.SetStatus(tt.userID, tt.status)

			require.ErrorIs(t, err, entities.ErrInvalidArgument)
			assert.ErrorIs(t, err, entities.ErrInvalidStatus)
			assert.Equal(t, before, svc.Users())
		})
	}
}

func TestUnknownUserCausesNoMutation(t *testing.T) {
	svc, _ := newTestService(t)
	svc.CreateChannel("c1", "General", []string{"U1"})
	before := svc.Snapshot()

	err := svc.SetStatus("missing", entities.StatusAway)
	assert.ErrorIs(t, err, entities.ErrNotFound)

	err = svc.SetActiveChannel("missing", "c1")
	assert.ErrorIs(t, err, entities.ErrNotFound)

	_, err = svc.PostMessage("missing", "c1", "m1", "hello")
	assert.ErrorIs(t, err, entities.ErrUserNotFound)

	if diff := cmp.Diff(before, svc.Snapshot()); diff != "" {
		t.Errorf("state changed (-before +after):\n%s", diff)
	}
}

func TestSetActiveChannel(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.SetActiveChannel("U2", "C9"))

	u, _ := svc.User("U2")
	require.NotNil(t, u.ActiveChannel)
	assert.Equal(t, "C9", *u.ActiveChannel, "unknown channel ids are stored as given")
}

func TestPostMessage(t *testing.T) {
	svc, broadcaster := newTestService(t)
	svc.CreateChannel("c1", "General", []string{"U1", "U2"})

	gomock.InOrder(
		broadcaster.EXPECT().Broadcast(entities.NewMessageEvent("c1", entities.Message{
			ID: "m1", Content: entities.Content{Text: "first"}, Owner: "U1",
		})).Times(1),
		broadcaster.EXPECT().Broadcast(entities.NewMessageEvent("c1", entities.Message{
			ID: "m2", Content: entities.Content{Text: "second"}, Owner: "U2",
		})).Times(1),
	)

	m, err := svc.PostMessage("U1", "c1", "m1", "first")
	require.NoError(t, err)
	assert.Equal(t, entities.Message{ID: "m1", Content: entities.Content{Text: "first"}, Owner: "U1"}, m)

	_, err = svc.PostMessage("U2", "c1", "m2", "second")
	require.NoError(t, err)

	c, _ := svc.Channel("c1")
	require.Len(t, c.Messages, 2)
	assert.Equal(t, "m1", c.Messages[0].ID)
	assert.Equal(t, "m2", c.Messages[1].ID)
}

func TestPostMessage_OwnerNotCheckedAgainstParticipants(t *testing.T) {
	svc, broadcaster := newTestService(t)
	svc.CreateChannel("c1", "General", []string{"U1"})
	broadcaster.EXPECT().Broadcast(gomock.Any()).Times(1)

	_, err := svc.PostMessage("U5", "c1", "m1", "not a participant")
	require.NoError(t, err)
}

func TestPostMessage_DuplicateMessageIDAccepted(t *testing.T) {
	svc, broadcaster := newTestService(t)
	svc.CreateChannel("c1", "General", []string{"U1"})
	broadcaster.EXPECT().Broadcast(gomock.Any()).Times(2)

	_, err := svc.PostMessage("U1", "c1", "m1", "one")
	require.NoError(t, err)
	_, err = svc.PostMessage("U1", "c1", "m1", "two")
	require.NoError(t, err)

	c, _ := svc.Channel("c1")
	assert.Len(t, c.Messages, 2)
}

func TestPostMessage_UnknownChannel(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.PostMessage("U1", "nope", "m1", "hello")

	require.ErrorIs(t, err, entities.ErrNotFound)
	assert.ErrorIs(t, err, entities.ErrChannelNotFound)
	assert.Empty(t, svc.Snapshot().Channels)
}

func TestSnapshotReflectsLatestState(t *testing.T) {
	svc, _ := newTestService(t)

	svc.CreateChannel("c1", "General", []string{"U1"})
	snap := svc.Snapshot()

	require.Len(t, snap.Channels, 1)
	assert.Equal(t, "c1", snap.Channels[0].ID)
	assert.Equal(t, "General", snap.Channels[0].Name)
	assert.Len(t, snap.Users, len(directory.DefaultUsers()))
}

// recordingBroadcaster stores events in arrival order after a short random pause,
// the way Hub.Broadcast encodes before it enqueues.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []entities.Event
}

func (b *recordingBroadcaster) Broadcast(event entities.Event) {
	time.Sleep(time.Duration(rand.IntN(3)) * time.Microsecond)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func TestPostMessage_ConcurrentBroadcastOrderMatchesStorage(t *testing.T) {
	const (
		rounds  = 50
		posters = 16
	)

	for round := range rounds {
		broadcaster := &recordingBroadcaster{}
		svc := messaging.New(directory.New(directory.DefaultUsers()), broadcaster, zerolog.Nop())
		svc.CreateChannel("c1", "General", []string{"U1"})

		var wg sync.WaitGroup
		for i := range posters {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.PostMessage("U1", "c1", fmt.Sprintf("m%d", i), "hi")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		channel, ok := svc.Channel("c1")
		require.True(t, ok)
		require.Len(t, broadcaster.events, posters)

		for i, event := range broadcaster.events {
			posted, ok := event.Payload.(entities.MessagePosted)
			require.True(t, ok)
			require.Equal(t, channel.Messages[i].ID, posted.ID, "round %d position %d", round, i)
		}
	}
}
