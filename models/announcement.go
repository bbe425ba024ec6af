package models

type AnnouncementKind string

const (
	AnnouncementTournamentStarted AnnouncementKind = "tournament_started"
	AnnouncementNextFixture       AnnouncementKind = "next_fixture"
	AnnouncementMatchResult       AnnouncementKind = "match_result"
	AnnouncementRoundComplete     AnnouncementKind = "round_complete"
	AnnouncementVotingClosing     AnnouncementKind = "voting_closing"
	AnnouncementVotingClosed      AnnouncementKind = "voting_closed"
	AnnouncementChampion          AnnouncementKind = "champion"
)

// Announcement is relayed to the chat transport. ReplyTo, when set, is the
// message the announcement answers.
type Announcement struct {
	Kind         AnnouncementKind `json:"kind"`
	Text         string           `json:"text"`
	PingEveryone bool             `json:"ping_everyone"`
	ReplyTo      string           `json:"reply_to,omitempty"`
	Payload      interface{}      `json:"payload,omitempty"`
}
