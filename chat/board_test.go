package chat

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/popularity-cup/brackets"
	"github.com/Dosada05/popularity-cup/models"
	"github.com/Dosada05/popularity-cup/services"
)

type recordingHub struct {
	mu     sync.Mutex
	events []brackets.WebSocketMessage
}

func (h *recordingHub) BroadcastToRoom(roomID string, message interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := message.(brackets.WebSocketMessage); ok {
		h.events = append(h.events, m)
	}
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestBoard() (*Board, *recordingHub) {
	hub := &recordingHub{}
	return NewBoard(hub, slog.New(slog.NewTextHandler(io.Discard, nil))), hub
}

func TestBoard_PostMatchSeedsBotReactions(t *testing.T) {
	b, hub := newTestBoard()
	ctx := context.Background()

	id, err := b.PostMatch(ctx, "cup", services.MatchView{A: "Pizza", B: "Tacos"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	reactions, err := b.Reactions(ctx, "cup", id)
	require.NoError(t, err)
	require.Len(t, reactions, 2)
	for _, r := range reactions {
		assert.True(t, r.Bot)
		assert.Equal(t, BotUserID, r.VoterID)
	}

	tally := brackets.CountVotes(brackets.VotesFromReactions(reactions))
	assert.Equal(t, 0, tally.CountA)
	assert.Equal(t, 0, tally.CountB)
	assert.Equal(t, []string{brackets.MessageMatchPosted}, hub.types())
}

func TestBoard_Reactions(t *testing.T) {
	b, hub := newTestBoard()
	ctx := context.Background()
	id, err := b.PostMatch(ctx, "cup", services.MatchView{A: "Pizza", B: "Tacos"})
	require.NoError(t, err)

	vote := models.Reaction{VoterID: "u1", DisplayName: "Ann", Emoji: models.EmojiVoteA}
	require.NoError(t, b.AddReaction(ctx, "cup", id, vote))
	// Повторная реакция не дублируется.
	require.NoError(t, b.AddReaction(ctx, "cup", id, vote))

	reactions, err := b.Reactions(ctx, "cup", id)
	require.NoError(t, err)
	assert.Len(t, reactions, 3)

	require.NoError(t, b.RemoveReaction(ctx, "cup", id, "u1", models.EmojiVoteA))
	reactions, err = b.Reactions(ctx, "cup", id)
	require.NoError(t, err)
	assert.Len(t, reactions, 2)

	assert.Equal(t, []string{
		brackets.MessageMatchPosted,
		brackets.MessageReaction,
		brackets.MessageReaction,
		brackets.MessageReaction,
	}, hub.types())
}

func TestBoard_Errors(t *testing.T) {
	b, _ := newTestBoard()
	ctx := context.Background()
	id, err := b.PostMatch(ctx, "cup", services.MatchView{})
	require.NoError(t, err)

	err = b.AddReaction(ctx, "cup", "missing", models.Reaction{VoterID: "u1", Emoji: models.EmojiVoteA})
	assert.ErrorIs(t, err, ErrMessageNotFound)

	// Сообщение из другого канала не находится.
	_, err = b.Reactions(ctx, "other", id)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	err = b.AddReaction(ctx, "cup", id, models.Reaction{VoterID: "u1"})
	assert.ErrorIs(t, err, ErrInvalidReaction)

	// Реакции бота нельзя подделать или снять.
	err = b.AddReaction(ctx, "cup", id, models.Reaction{VoterID: BotUserID, Emoji: models.EmojiVoteA})
	assert.ErrorIs(t, err, ErrInvalidReaction)
	err = b.AddReaction(ctx, "cup", id, models.Reaction{VoterID: "u1", Emoji: models.EmojiVoteA, Bot: true})
	assert.ErrorIs(t, err, ErrInvalidReaction)
	err = b.RemoveReaction(ctx, "cup", id, BotUserID, models.EmojiVoteA)
	assert.ErrorIs(t, err, ErrInvalidReaction)

	err = b.EditMatch(ctx, "cup", "missing", services.MatchView{})
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestBoard_EditAndAnnounce(t *testing.T) {
	b, hub := newTestBoard()
	ctx := context.Background()
	id, err := b.PostMatch(ctx, "cup", services.MatchView{A: "Pizza", B: "Tacos"})
	require.NoError(t, err)

	require.NoError(t, b.EditMatch(ctx, "cup", id, services.MatchView{A: "Pizza", B: "Tacos", AVotes: 3, Locked: true}))
	msg, err := b.Message("cup", id)
	require.NoError(t, err)
	require.NotNil(t, msg.Match)
	assert.Equal(t, 3, msg.Match.AVotes)
	assert.True(t, msg.Match.Locked)
	assert.NotNil(t, msg.EditedAt)

	require.NoError(t, b.Announce(ctx, "cup", models.Announcement{Kind: models.AnnouncementVotingClosed, Text: "closed"}))

	msgs := b.Messages("cup")
	require.Len(t, msgs, 2)
	assert.Equal(t, id, msgs[0].ID)
	require.NotNil(t, msgs[1].Announcement)
	assert.Equal(t, "closed", msgs[1].Announcement.Text)
	assert.Empty(t, b.Messages("other"))

	assert.Equal(t, []string{
		brackets.MessageMatchPosted,
		brackets.MessageMatchUpdated,
		brackets.MessageAnnouncement,
	}, hub.types())
}
