// popularity-cup/brackets/single_elimination.go
package brackets

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Dosada05/popularity-cup/models"
)

// SingleElimination drives a fixed binary bracket over the tournament
// document. Seeding is a single shuffle at start; after that pairing is strict
// FIFO over CurrentRound and there is no reseeding between rounds. Byes are
// not supported: the pool must hold a power of two.
type SingleElimination struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSingleElimination creates an engine. A zero seed draws one from the clock.
func NewSingleElimination(seed uint64) *SingleElimination {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &SingleElimination{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *SingleElimination) GetName() string {
	return "SingleElimination"
}

// Seed resets bracket progress and fills CurrentRound with a shuffled copy of
// the pool. Items, scores, authorship and history are left untouched.
func (g *SingleElimination) Seed(t *models.Tournament, title string) {
	round := append([]string{}, t.Items...)
	g.mu.Lock()
	g.rng.Shuffle(len(round), func(i, j int) { round[i], round[j] = round[j], round[i] })
	g.mu.Unlock()

	t.Title = title
	t.CurrentRound = round
	t.NextRound = []string{}
	t.FinishedMatches = []models.MatchResult{}
	t.LastMatch = nil
	t.LastWinner = nil
	t.Running = true
	t.RoundStage = StageLabel(len(round))
}

// PopNextMatch takes the first two names of CurrentRound. With fewer than two
// entrants it does nothing and reports ok=false; an odd remainder is never paired.
func (g *SingleElimination) PopNextMatch(t *models.Tournament) (a, b string, ok bool) {
	if len(t.CurrentRound) < 2 {
		return "", "", false
	}
	a, b = t.CurrentRound[0], t.CurrentRound[1]
	t.CurrentRound = append([]string{}, t.CurrentRound[2:]...)
	return a, b, true
}

// PromoteRound moves the collected winners into CurrentRound. It requires an
// exhausted CurrentRound and at least one waiting winner. When a single item
// is promoted it is the champion: it is recorded as LastWinner and returned.
func (g *SingleElimination) PromoteRound(t *models.Tournament) (champion string, ok bool) {
	if len(t.CurrentRound) != 0 || len(t.NextRound) == 0 {
		return "", false
	}
	t.CurrentRound = append([]string{}, t.NextRound...)
	t.NextRound = []string{}
	t.RoundStage = StageLabel(len(t.CurrentRound))

	if len(t.CurrentRound) == 1 {
		winner := t.CurrentRound[0]
		t.LastWinner = &winner
		return winner, true
	}
	return "", true
}

// Champion returns the sole surviving item, or "" while matches remain.
func (g *SingleElimination) Champion(t *models.Tournament) string {
	if !t.Running || t.LastMatch != nil {
		return ""
	}
	switch {
	case len(t.CurrentRound) == 1 && len(t.NextRound) == 0:
		return t.CurrentRound[0]
	case len(t.CurrentRound) == 0 && len(t.NextRound) == 1:
		return t.NextRound[0]
	}
	return ""
}

// PickWinner applies the vote rule: strictly more votes wins, an exact tie is
// a uniform coin flip between the two.
func (g *SingleElimination) PickWinner(a, b string, aVotes, bVotes int) string {
	switch {
	case aVotes > bVotes:
		return a
	case bVotes > aVotes:
		return b
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rng.IntN(2) == 0 {
		return a
	}
	return b
}

// Remaining counts entrants still alive: queued in either round or in the open match.
func (g *SingleElimination) Remaining(t *models.Tournament) int {
	n := len(t.CurrentRound) + len(t.NextRound)
	if t.LastMatch != nil {
		n++
	}
	return n
}

// Upcoming lists the queued pairings of CurrentRound. A trailing odd entrant is
// returned alone.
func (g *SingleElimination) Upcoming(t *models.Tournament) [][]string {
	pairs := make([][]string, 0, (len(t.CurrentRound)+1)/2)
	for i := 0; i < len(t.CurrentRound); i += 2 {
		if i+1 < len(t.CurrentRound) {
			pairs = append(pairs, []string{t.CurrentRound[i], t.CurrentRound[i+1]})
		} else {
			pairs = append(pairs, []string{t.CurrentRound[i]})
		}
	}
	return pairs
}
