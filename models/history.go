package models

// HistoryEntry records a finished cup. It is never cleared by a reset.
type HistoryEntry struct {
	Title     string `json:"title"`
	Winner    string `json:"winner"`
	AuthorID  string `json:"author_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
