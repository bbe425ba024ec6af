package services

import (
	"context"
	"time"

	"github.com/Dosada05/popularity-cup/models"
)

// ChatTransport is the messaging surface matches are posted to and votes are
// read from.
type ChatTransport interface {
	PostMatch(ctx context.Context, channelID string, view MatchView) (string, error)
	EditMatch(ctx context.Context, channelID, messageID string, view MatchView) error
	Reactions(ctx context.Context, channelID, messageID string) ([]models.Reaction, error)
	Announce(ctx context.Context, channelID string, announcement models.Announcement) error
}

// MatchView is the rendered state of a match message.
type MatchView struct {
	MatchID    string    `json:"match_id"`
	Title      string    `json:"title"`
	Stage      string    `json:"stage"`
	A          string    `json:"a"`
	B          string    `json:"b"`
	EmojiA     string    `json:"emoji_a"`
	EmojiB     string    `json:"emoji_b"`
	AVotes     int       `json:"a_votes"`
	BVotes     int       `json:"b_votes"`
	VotersA    []string  `json:"voters_a"`
	VotersB    []string  `json:"voters_b"`
	Locked     bool      `json:"locked"`
	LockReason string    `json:"lock_reason,omitempty"`
	OpenedAt   time.Time `json:"opened_at"`
	ClosesAt   time.Time `json:"closes_at"`
}
