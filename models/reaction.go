package models

// Vote emojis. Any other reaction is not a vote.
const (
	EmojiVoteA = "🔴"
	EmojiVoteB = "🔵"
)

// Reaction is what the chat transport reports for a message.
type Reaction struct {
	VoterID     string `json:"voter_id"`
	DisplayName string `json:"display_name"`
	Emoji       string `json:"emoji"`
	Bot         bool   `json:"bot"`
}

// Vote is a reaction that survived boundary filtering.
type Vote struct {
	VoterID     string `json:"voter_id"`
	DisplayName string `json:"display_name"`
	Option      Option `json:"option"`
}
