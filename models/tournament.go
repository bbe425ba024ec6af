package models

// PoolSize is the number of items a tournament must start with.
const PoolSize = 32

// Tournament is the singleton document persisted as a whole.
// Running=false is the idle/reset state; CupHistory survives resets.
type Tournament struct {
	Items           []string          `json:"items"`
	Scores          map[string]int    `json:"scores"`
	ItemAuthors     map[string]string `json:"item_authors"` // item -> user id
	UserItems       map[string]string `json:"user_items"`   // user id -> item (non-staff submitters)
	CurrentRound    []string          `json:"current_round"`
	NextRound       []string          `json:"next_round"`
	RoundStage      string            `json:"round_stage"`
	Running         bool              `json:"running"`
	Title           string            `json:"title"`
	LastMatch       *Match            `json:"last_match"`
	LastWinner      *string           `json:"last_winner"`
	FinishedMatches []MatchResult     `json:"finished_matches"`
	CupHistory      []HistoryEntry    `json:"cup_history"`
}

// NewTournament returns the empty idle document.
func NewTournament() *Tournament {
	return &Tournament{
		Items:           []string{},
		Scores:          map[string]int{},
		ItemAuthors:     map[string]string{},
		UserItems:       map[string]string{},
		CurrentRound:    []string{},
		NextRound:       []string{},
		FinishedMatches: []MatchResult{},
		CupHistory:      []HistoryEntry{},
	}
}

// Clone returns a deep copy, so callers can mutate without touching the original.
func (t *Tournament) Clone() *Tournament {
	if t == nil {
		return nil
	}
	c := *t
	c.Items = append([]string{}, t.Items...)
	c.CurrentRound = append([]string{}, t.CurrentRound...)
	c.NextRound = append([]string{}, t.NextRound...)
	c.FinishedMatches = append([]MatchResult{}, t.FinishedMatches...)
	c.CupHistory = append([]HistoryEntry{}, t.CupHistory...)
	c.Scores = make(map[string]int, len(t.Scores))
	for k, v := range t.Scores {
		c.Scores[k] = v
	}
	c.ItemAuthors = make(map[string]string, len(t.ItemAuthors))
	for k, v := range t.ItemAuthors {
		c.ItemAuthors[k] = v
	}
	c.UserItems = make(map[string]string, len(t.UserItems))
	for k, v := range t.UserItems {
		c.UserItems[k] = v
	}
	if t.LastMatch != nil {
		m := t.LastMatch.Clone()
		c.LastMatch = &m
	}
	if t.LastWinner != nil {
		w := *t.LastWinner
		c.LastWinner = &w
	}
	return &c
}

// HasItem reports whether name is in the pool. Names are case-sensitive.
func (t *Tournament) HasItem(name string) bool {
	for _, it := range t.Items {
		if it == name {
			return true
		}
	}
	return false
}

// Item builds the Item view for name.
func (t *Tournament) Item(name string) Item {
	return Item{
		Name:     name,
		AuthorID: t.ItemAuthors[name],
		Score:    t.Scores[name],
	}
}

// Pool returns every item in submission order.
func (t *Tournament) Pool() []Item {
	items := make([]Item, 0, len(t.Items))
	for _, name := range t.Items {
		items = append(items, t.Item(name))
	}
	return items
}

// RemoveItem deletes name from the pool, cascading to scores and authorship.
func (t *Tournament) RemoveItem(name string) bool {
	idx := -1
	for i, it := range t.Items {
		if it == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	t.Items = append(t.Items[:idx], t.Items[idx+1:]...)
	delete(t.Scores, name)
	if author, ok := t.ItemAuthors[name]; ok {
		delete(t.ItemAuthors, name)
		if t.UserItems[author] == name {
			delete(t.UserItems, author)
		}
	}
	return true
}
