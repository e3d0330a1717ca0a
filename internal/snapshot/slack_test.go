package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/presence-tracker/internal/presence"
)

type fakeSlackAPI struct {
	users       []slack.User
	usersErr    error
	presences   map[string]string
	presenceErr map[string]error
	dnd         map[string]slack.DNDStatus
	dndErr      error
	authErr     error
}

func (f *fakeSlackAPI) GetUsersContext(ctx context.Context, options ...slack.GetUsersOption) ([]slack.User, error) {
	return f.users, f.usersErr
}

func (f *fakeSlackAPI) GetUserPresenceContext(ctx context.Context, user string) (*slack.UserPresence, error) {
	if err := f.presenceErr[user]; err != nil {
		return nil, err
	}
	return &slack.UserPresence{Presence: f.presences[user]}, nil
}

func (f *fakeSlackAPI) GetDNDTeamInfoContext(ctx context.Context, users []string) (map[string]slack.DNDStatus, error) {
	return f.dnd, f.dndErr
}

func (f *fakeSlackAPI) AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &slack.AuthTestResponse{}, nil
}

func member(id, display string) slack.User {
	u := slack.User{ID: id, Name: id}
	u.Profile.DisplayName = display
	return u
}

func newTestSource(api SlackAPI) *SlackSource {
	s := newSlackSource(api, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestSnapshot_MapsPresence(t *testing.T) {
	api := &fakeSlackAPI{
		users:     []slack.User{member("U1", "Ann"), member("U2", "Ben")},
		presences: map[string]string{"U1": "active", "U2": "away"},
	}

	entities, err := newTestSource(api).Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 2)

	assert.Equal(t, "U1", entities[0].ID)
	assert.Equal(t, "Ann", entities[0].Name)
	assert.Equal(t, presence.StatusActive, entities[0].Status)
	assert.Equal(t, presence.StatusAway, entities[1].Status)
}

func TestSnapshot_SkipsBotsAndDeleted(t *testing.T) {
	bot := member("U9", "Bot")
	bot.IsBot = true
	gone := member("U8", "Gone")
	gone.Deleted = true

	api := &fakeSlackAPI{
		users:     []slack.User{member("U1", "Ann"), bot, gone, {ID: "USLACKBOT", Name: "slackbot"}},
		presences: map[string]string{"U1": "active"},
	}

	entities, err := newTestSource(api).Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "U1", entities[0].ID)
}

func TestSnapshot_DNDOverridesPresence(t *testing.T) {
	api := &fakeSlackAPI{
		users:     []slack.User{member("U1", "Ann")},
		presences: map[string]string{"U1": "active"},
		dnd: map[string]slack.DNDStatus{
			"U1": {SnoozeInfo: slack.SnoozeInfo{SnoozeEnabled: true}},
		},
	}

	entities, err := newTestSource(api).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, presence.StatusDND, entities[0].Status)
}

func TestSnapshot_DNDWindow(t *testing.T) {
	noon := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	inWindow := slack.DNDStatus{
		Enabled:            true,
		NextStartTimestamp: int(noon.Add(-time.Hour).Unix()),
		NextEndTimestamp:   int(noon.Add(time.Hour).Unix()),
	}
	pastWindow := slack.DNDStatus{
		Enabled:            true,
		NextStartTimestamp: int(noon.Add(-3 * time.Hour).Unix()),
		NextEndTimestamp:   int(noon.Add(-2 * time.Hour).Unix()),
	}

	assert.True(t, dndInEffect(inWindow, noon))
	assert.False(t, dndInEffect(pastWindow, noon))
	assert.False(t, dndInEffect(slack.DNDStatus{}, noon))
}

func TestSnapshot_PresenceErrorDegradesToOffline(t *testing.T) {
	api := &fakeSlackAPI{
		users:       []slack.User{member("U1", "Ann"), member("U2", "Ben")},
		presences:   map[string]string{"U2": "active"},
		presenceErr: map[string]error{"U1": errors.New("ratelimited")},
	}

	entities, err := newTestSource(api).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, presence.StatusOffline, entities[0].Status)
	assert.Equal(t, presence.StatusActive, entities[1].Status)
}

func TestSnapshot_DNDErrorNonFatal(t *testing.T) {
	api := &fakeSlackAPI{
		users:     []slack.User{member("U1", "Ann")},
		presences: map[string]string{"U1": "away"},
		dndErr:    errors.New("dnd unavailable"),
	}

	entities, err := newTestSource(api).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, presence.StatusAway, entities[0].Status)
}

func TestSnapshot_UsersListErrorIsFatal(t *testing.T) {
	api := &fakeSlackAPI{usersErr: errors.New("invalid_auth")}

	_, err := newTestSource(api).Snapshot(context.Background())
	assert.Error(t, err)
}

func TestDisplayName_Fallbacks(t *testing.T) {
	u := slack.User{ID: "U1", Name: "ann.k"}
	assert.Equal(t, "ann.k", displayName(u))

	u.RealName = "Ann K"
	assert.Equal(t, "Ann K", displayName(u))

	u.Profile.DisplayName = "ann"
	assert.Equal(t, "ann", displayName(u))
}

func TestNopSource_EmptySnapshot(t *testing.T) {
	entities, err := NopSource{}.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestAuthCheck(t *testing.T) {
	ok := newTestSource(&fakeSlackAPI{})
	assert.NoError(t, ok.AuthCheck(context.Background()))

	bad := newTestSource(&fakeSlackAPI{authErr: errors.New("invalid_auth")})
	assert.Error(t, bad.AuthCheck(context.Background()))
}
