package models

import "time"

type MatchState string

const (
	MatchStateNone     MatchState = "none"
	MatchStateOpen     MatchState = "open"
	MatchStateLocked   MatchState = "locked"
	MatchStateResolved MatchState = "resolved"
)

type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
)

// LockedTally is the vote count frozen at lock time.
type LockedTally struct {
	A int `json:"a"`
	B int `json:"b"`
}

// Match is the single active pairing. ID is assigned when the match opens and
// is what delayed tasks compare against; MessageID is the transport handle.
type Match struct {
	ID           string       `json:"id"`
	A            string       `json:"a"`
	B            string       `json:"b"`
	MessageID    string       `json:"message_id"`
	ChannelID    string       `json:"channel_id"`
	OpenedAt     time.Time    `json:"opened_at"`
	Locked       bool         `json:"locked"`
	LockedAt     *time.Time   `json:"locked_at"`
	LockedCounts *LockedTally `json:"locked_counts"`
	LockReason   *string      `json:"lock_reason"`
}

func (m *Match) State() MatchState {
	switch {
	case m == nil:
		return MatchStateNone
	case m.Locked:
		return MatchStateLocked
	default:
		return MatchStateOpen
	}
}

func (m Match) Clone() Match {
	c := m
	if m.LockedAt != nil {
		at := *m.LockedAt
		c.LockedAt = &at
	}
	if m.LockedCounts != nil {
		counts := *m.LockedCounts
		c.LockedCounts = &counts
	}
	if m.LockReason != nil {
		reason := *m.LockReason
		c.LockReason = &reason
	}
	return c
}

// MatchResult is immutable once appended to FinishedMatches.
type MatchResult struct {
	A      string `json:"a"`
	B      string `json:"b"`
	Winner string `json:"winner"`
	AVotes int    `json:"a_votes"`
	BVotes int    `json:"b_votes"`
}
