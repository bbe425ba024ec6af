package models

// Item is a pool entry. Name is the identity key.
type Item struct {
	Name     string `json:"name"`
	AuthorID string `json:"author_id,omitempty"`
	Score    int    `json:"score"`
}
