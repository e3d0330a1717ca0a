// Package presence holds the aggregated presence model: per-user records
// with hourly sample tallies, the merge and prune operations that maintain
// them, and the read-side derivations the API serves.
package presence

import (
	"encoding/json"
	"time"
)

// Status is the last raw status observed for a user.
type Status string

const (
	StatusActive  Status = "active"
	StatusAway    Status = "away"
	StatusDND     Status = "dnd"
	StatusOffline Status = "offline"
)

// NormalizeStatus maps arbitrary source values onto the closed enum.
// Anything unrecognized counts as offline so a new upstream value can
// never break a merge.
func NormalizeStatus(s string) Status {
	switch Status(s) {
	case StatusActive, StatusAway, StatusDND, StatusOffline:
		return Status(s)
	default:
		return StatusOffline
	}
}

// Entity is one observed user from a snapshot. Only ID is required;
// every other field may be empty on any given read.
type Entity struct {
	ID             string
	Name           string
	Avatar         string
	Status         Status
	StatusText     string
	StatusEmojiAlt string
	StatusEmoji    string // shortcode form, e.g. ":palm_tree:"
	StatusImageRef string
}

// HourTally counts samples observed within one hour bucket. Total counts
// every sample; at most one of Active/Away/DND is incremented per sample,
// so Active+Away+DND <= Total always holds. Tallies only grow; pruning
// removes them wholesale.
type HourTally struct {
	Active int `json:"active"`
	Away   int `json:"away"`
	DND    int `json:"dnd"`
	Total  int `json:"total"`
}

// Record is the aggregated presence history for one user.
type Record struct {
	ID             string                `json:"id"`
	Name           string                `json:"name,omitempty"`
	Avatar         string                `json:"avatar,omitempty"`
	LastStatus     Status                `json:"lastStatus"`
	LastActiveAt   *time.Time            `json:"lastActiveAt,omitempty"`
	StatusText     string                `json:"statusText,omitempty"`
	StatusEmojiAlt string                `json:"statusEmojiAlt,omitempty"`
	StatusEmoji    string                `json:"statusEmoji,omitempty"`
	StatusImageRef string                `json:"statusImageRef,omitempty"`
	Hourly         map[string]*HourTally `json:"hourly"`
}

// Store is the sole persisted aggregate: user id -> record. It is a plain
// value owned by the caller; all mutation goes through Merge, Prune and
// Clear on the owning side.
type Store struct {
	Records map[string]*Record `json:"records"`
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{Records: make(map[string]*Record)}
}

// Len returns the number of records.
func (s *Store) Len() int { return len(s.Records) }

// Get returns the record for id, or nil.
func (s *Store) Get(id string) *Record {
	return s.Records[id]
}

// MarshalJSON round-trips the store as its record map.
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Records)
}

// UnmarshalJSON accepts the record map form written by MarshalJSON.
func (s *Store) UnmarshalJSON(data []byte) error {
	m := make(map[string]*Record)
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for id, rec := range m {
		if rec.ID == "" {
			rec.ID = id
		}
		if rec.Hourly == nil {
			rec.Hourly = make(map[string]*HourTally)
		}
	}
	s.Records = m
	return nil
}
