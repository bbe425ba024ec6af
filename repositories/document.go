package repositories

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Dosada05/popularity-cup/models"
)

// decodeTournament reads the document field by field. A missing or mistyped
// field keeps its default instead of failing the whole load.
func decodeTournament(content []byte) (*models.Tournament, error) {
	t := models.NewTournament()
	if len(bytes.TrimSpace(content)) == 0 {
		return t, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(content, &fields); err != nil {
		return nil, fmt.Errorf("tournament document is not a JSON object: %w", err)
	}

	decodeField(fields, "items", &t.Items)
	decodeField(fields, "scores", &t.Scores)
	decodeField(fields, "item_authors", &t.ItemAuthors)
	decodeField(fields, "user_items", &t.UserItems)
	decodeField(fields, "current_round", &t.CurrentRound)
	decodeField(fields, "next_round", &t.NextRound)
	decodeField(fields, "round_stage", &t.RoundStage)
	decodeField(fields, "running", &t.Running)
	decodeField(fields, "title", &t.Title)
	decodeField(fields, "last_match", &t.LastMatch)
	decodeField(fields, "last_winner", &t.LastWinner)
	decodeField(fields, "finished_matches", &t.FinishedMatches)
	decodeField(fields, "cup_history", &t.CupHistory)

	fillDefaults(t)
	return t, nil
}

func decodeField[T any](fields map[string]json.RawMessage, name string, dst *T) {
	raw, ok := fields[name]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return
	}
	*dst = v
}

// fillDefaults replaces nil collections decoded from JSON null.
func fillDefaults(t *models.Tournament) {
	if t.Items == nil {
		t.Items = []string{}
	}
	if t.Scores == nil {
		t.Scores = map[string]int{}
	}
	if t.ItemAuthors == nil {
		t.ItemAuthors = map[string]string{}
	}
	if t.UserItems == nil {
		t.UserItems = map[string]string{}
	}
	if t.CurrentRound == nil {
		t.CurrentRound = []string{}
	}
	if t.NextRound == nil {
		t.NextRound = []string{}
	}
	if t.FinishedMatches == nil {
		t.FinishedMatches = []models.MatchResult{}
	}
	if t.CupHistory == nil {
		t.CupHistory = []models.HistoryEntry{}
	}
	// A match without both sides cannot be voted on or resolved.
	if t.LastMatch != nil && (t.LastMatch.A == "" || t.LastMatch.B == "") {
		t.LastMatch = nil
	}
}
