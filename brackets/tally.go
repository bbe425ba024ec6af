package brackets

import (
	"sort"

	"github.com/Dosada05/popularity-cup/models"
)

// Tally is one evaluation of a match's votes. NamesA/NamesB map voter id to
// display name.
type Tally struct {
	CountA int               `json:"count_a"`
	CountB int               `json:"count_b"`
	NamesA map[string]string `json:"names_a"`
	NamesB map[string]string `json:"names_b"`
	// Nullified is how many voters picked both options and lost their vote.
	Nullified int `json:"nullified"`
}

// VotesFromReactions keeps only human reactions with one of the two vote emojis.
func VotesFromReactions(reactions []models.Reaction) []models.Vote {
	votes := make([]models.Vote, 0, len(reactions))
	for _, r := range reactions {
		if r.Bot || r.VoterID == "" {
			continue
		}
		var opt models.Option
		switch r.Emoji {
		case models.EmojiVoteA:
			opt = models.OptionA
		case models.EmojiVoteB:
			opt = models.OptionB
		default:
			continue
		}
		votes = append(votes, models.Vote{VoterID: r.VoterID, DisplayName: r.DisplayName, Option: opt})
	}
	return votes
}

// CountVotes partitions votes into two voter sets. A voter found on both sides
// is removed from both: a double vote nullifies, it is never resolved in
// favour of either option.
func CountVotes(votes []models.Vote) Tally {
	namesA := make(map[string]string)
	namesB := make(map[string]string)
	for _, v := range votes {
		switch v.Option {
		case models.OptionA:
			namesA[v.VoterID] = v.DisplayName
		case models.OptionB:
			namesB[v.VoterID] = v.DisplayName
		}
	}

	nullified := 0
	for id := range namesA {
		if _, dup := namesB[id]; dup {
			delete(namesA, id)
			delete(namesB, id)
			nullified++
		}
	}

	return Tally{
		CountA:    len(namesA),
		CountB:    len(namesB),
		NamesA:    namesA,
		NamesB:    namesB,
		Nullified: nullified,
	}
}

// Locked converts the tally into the frozen form stored on a match.
func (t Tally) Locked() models.LockedTally {
	return models.LockedTally{A: t.CountA, B: t.CountB}
}

func (t Tally) VotersA() []string { return sortedNames(t.NamesA) }

func (t Tally) VotersB() []string { return sortedNames(t.NamesB) }

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for _, n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
