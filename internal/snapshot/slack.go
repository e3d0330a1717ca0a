// Package snapshot acquires one read of all observed users and their live
// status from the external source. The sampler only depends on the Source
// interface; the Slack implementation lives here.
package snapshot

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/p-blackswan/presence-tracker/internal/apperr"
	"github.com/p-blackswan/presence-tracker/internal/presence"
)

// Source yields one snapshot of observed entities on demand. It must be
// cheap to call repeatedly; it is invoked once per sampling cycle.
type Source interface {
	Snapshot(ctx context.Context) ([]presence.Entity, error)
}

// SlackAPI abstracts the Slack client methods the source needs, for testing.
type SlackAPI interface {
	GetUsersContext(ctx context.Context, options ...slack.GetUsersOption) ([]slack.User, error)
	GetUserPresenceContext(ctx context.Context, user string) (*slack.UserPresence, error)
	GetDNDTeamInfoContext(ctx context.Context, users []string) (map[string]slack.DNDStatus, error)
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
}

// SlackSource reads workspace members and their presence via the Slack
// Web API: one users.list, one batched dnd.teamInfo, and a presence read
// per member.
type SlackSource struct {
	api    SlackAPI
	logger zerolog.Logger
	now    func() time.Time
}

// NewSlackSource creates a source backed by the given bot token.
func NewSlackSource(botToken string, logger zerolog.Logger) *SlackSource {
	return newSlackSource(slack.New(botToken), logger)
}

func newSlackSource(api SlackAPI, logger zerolog.Logger) *SlackSource {
	return &SlackSource{
		api:    api,
		logger: logger.With().Str("component", "snapshot").Logger(),
		now:    time.Now,
	}
}

// Snapshot reads every human, non-deleted member of the workspace. A
// presence or DND failure for a single user degrades that user to offline
// instead of failing the whole snapshot; only the users.list read is fatal.
func (s *SlackSource) Snapshot(ctx context.Context) ([]presence.Entity, error) {
	users, err := s.api.GetUsersContext(ctx)
	if err != nil {
		return nil, apperr.NewSourceError("users.list", err)
	}

	members := make([]slack.User, 0, len(users))
	ids := make([]string, 0, len(users))
	for _, u := range users {
		if u.Deleted || u.IsBot || u.ID == "USLACKBOT" {
			continue
		}
		members = append(members, u)
		ids = append(ids, u.ID)
	}

	dnd, err := s.api.GetDNDTeamInfoContext(ctx, ids)
	if err != nil {
		// Presence still works without DND info.
		s.logger.Warn().Err(err).Msg("dnd.teamInfo failed, skipping dnd detection")
		dnd = nil
	}

	now := s.now()
	entities := make([]presence.Entity, 0, len(members))
	for _, u := range members {
		e := entityFromUser(u)
		e.Status = s.statusFor(ctx, u.ID, dnd, now)
		entities = append(entities, e)
	}
	return entities, nil
}

func (s *SlackSource) statusFor(ctx context.Context, id string, dnd map[string]slack.DNDStatus, now time.Time) presence.Status {
	p, err := s.api.GetUserPresenceContext(ctx, id)
	if err != nil {
		s.logger.Debug().Err(err).Str("user", id).Msg("presence read failed")
		return presence.StatusOffline
	}
	if st, ok := dnd[id]; ok && dndInEffect(st, now) {
		return presence.StatusDND
	}
	switch p.Presence {
	case "active":
		return presence.StatusActive
	case "away":
		return presence.StatusAway
	default:
		return presence.StatusOffline
	}
}

// dndInEffect reports whether the user's do-not-disturb window or snooze
// covers now.
func dndInEffect(st slack.DNDStatus, now time.Time) bool {
	if st.SnoozeEnabled {
		return true
	}
	if !st.Enabled {
		return false
	}
	start := time.Unix(int64(st.NextStartTimestamp), 0)
	end := time.Unix(int64(st.NextEndTimestamp), 0)
	return !now.Before(start) && now.Before(end)
}

func entityFromUser(u slack.User) presence.Entity {
	e := presence.Entity{
		ID:          u.ID,
		Name:        displayName(u),
		Avatar:      u.Profile.Image48,
		StatusText:  u.Profile.StatusText,
		StatusEmoji: u.Profile.StatusEmoji,
	}
	for _, info := range u.Profile.StatusEmojiDisplayInfo {
		if e.StatusEmojiAlt == "" {
			e.StatusEmojiAlt = info.DisplayAlias
		}
		if e.StatusImageRef == "" {
			e.StatusImageRef = info.DisplayURL
		}
	}
	return e
}

func displayName(u slack.User) string {
	if u.Profile.DisplayName != "" {
		return u.Profile.DisplayName
	}
	if u.RealName != "" {
		return u.RealName
	}
	return u.Name
}

// AuthCheck verifies the bot token, for the readiness probe.
func (s *SlackSource) AuthCheck(ctx context.Context) error {
	_, err := s.api.AuthTestContext(ctx)
	if err != nil {
		return apperr.NewSourceError("auth.test", err)
	}
	return nil
}
