package brackets

import (
	"testing"

	"github.com/Dosada05/popularity-cup/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vote(id string, opt models.Option) models.Vote {
	return models.Vote{VoterID: id, DisplayName: "user-" + id, Option: opt}
}

// TestCountVotes_DoubleVoteNullifies verifies a voter on both sides counts for neither.
func TestCountVotes_DoubleVoteNullifies(t *testing.T) {
	tally := CountVotes([]models.Vote{
		vote("u1", models.OptionA),
		vote("u2", models.OptionA),
		vote("u2", models.OptionB),
		vote("u3", models.OptionB),
	})

	assert.Equal(t, 1, tally.CountA)
	assert.Equal(t, 1, tally.CountB)
	assert.Equal(t, map[string]string{"u1": "user-u1"}, tally.NamesA)
	assert.Equal(t, map[string]string{"u3": "user-u3"}, tally.NamesB)
	assert.Equal(t, 1, tally.Nullified)
}

// TestCountVotes_SetsStayDisjoint checks the disjointness invariant over a mixed input.
func TestCountVotes_SetsStayDisjoint(t *testing.T) {
	votes := []models.Vote{}
	for i, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		votes = append(votes, vote(id, models.OptionA))
		if i%2 == 0 {
			votes = append(votes, vote(id, models.OptionB))
		}
	}
	votes = append(votes, vote("z", models.OptionB))

	tally := CountVotes(votes)
	for id := range tally.NamesA {
		_, dup := tally.NamesB[id]
		assert.False(t, dup, "voter %s counted on both sides", id)
	}
	assert.Equal(t, 3, tally.CountA)
	assert.Equal(t, 1, tally.CountB)
	assert.Equal(t, 4, tally.Nullified)
}

// TestCountVotes_RepeatedReactionCountsOnce verifies set semantics per voter.
func TestCountVotes_RepeatedReactionCountsOnce(t *testing.T) {
	tally := CountVotes([]models.Vote{vote("u1", models.OptionA), vote("u1", models.OptionA)})
	assert.Equal(t, 1, tally.CountA)
	assert.Zero(t, tally.CountB)
}

// TestVotesFromReactions drops bots and non-vote emojis.
func TestVotesFromReactions(t *testing.T) {
	votes := VotesFromReactions([]models.Reaction{
		{VoterID: "u1", DisplayName: "Ann", Emoji: models.EmojiVoteA},
		{VoterID: "bot", DisplayName: "Cup Bot", Emoji: models.EmojiVoteA, Bot: true},
		{VoterID: "u2", DisplayName: "Ben", Emoji: "👍"},
		{VoterID: "u3", DisplayName: "Cat", Emoji: models.EmojiVoteB},
	})

	require.Len(t, votes, 2)
	assert.Equal(t, models.Vote{VoterID: "u1", DisplayName: "Ann", Option: models.OptionA}, votes[0])
	assert.Equal(t, models.OptionB, votes[1].Option)
}

func TestTally_VotersSorted(t *testing.T) {
	tally := CountVotes([]models.Vote{
		{VoterID: "2", DisplayName: "Zed", Option: models.OptionA},
		{VoterID: "1", DisplayName: "Amy", Option: models.OptionA},
	})
	assert.Equal(t, []string{"Amy", "Zed"}, tally.VotersA())
	assert.Empty(t, tally.VotersB())
	assert.Equal(t, models.LockedTally{A: 2, B: 0}, tally.Locked())
}
