package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Dosada05/popularity-cup/brackets"
	"github.com/Dosada05/popularity-cup/models"
	"github.com/Dosada05/popularity-cup/services"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidReaction = errors.New("invalid reaction")
)

// BotUserID is the author of board-generated reactions.
const BotUserID = "popularity-cup-bot"

// Broadcaster fans board events out to subscribers of a channel.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
}

type Message struct {
	ID           string               `json:"id"`
	ChannelID    string               `json:"channel_id"`
	Match        *services.MatchView  `json:"match,omitempty"`
	Announcement *models.Announcement `json:"announcement,omitempty"`
	Reactions    []models.Reaction    `json:"reactions"`
	CreatedAt    time.Time            `json:"created_at"`
	EditedAt     *time.Time           `json:"edited_at,omitempty"`
}

type reactionKey struct {
	voterID string
	emoji   string
}

type boardMessage struct {
	Message
	seq       uint64
	reactions map[reactionKey]models.Reaction
}

// Board is an in-process message board: the chat transport matches are posted
// to and votes are cast on.
type Board struct {
	mu       sync.RWMutex
	messages map[string]*boardMessage
	seq      uint64
	hub      Broadcaster
	now      func() time.Time
	logger   *slog.Logger
}

func NewBoard(hub Broadcaster, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		messages: make(map[string]*boardMessage),
		hub:      hub,
		now:      time.Now,
		logger:   logger,
	}
}

func (b *Board) PostMatch(ctx context.Context, channelID string, view services.MatchView) (string, error) {
	msg := b.newMessage(channelID)
	v := view
	msg.Match = &v
	// Seed both vote options the way a bot would; bot reactions never count.
	for _, emoji := range []string{models.EmojiVoteA, models.EmojiVoteB} {
		msg.reactions[reactionKey{BotUserID, emoji}] = models.Reaction{VoterID: BotUserID, DisplayName: "bot", Emoji: emoji, Bot: true}
	}

	b.mu.Lock()
	b.seq++
	msg.seq = b.seq
	b.messages[msg.ID] = msg
	snapshot := msg.snapshot()
	b.mu.Unlock()

	b.broadcast(channelID, brackets.MessageMatchPosted, snapshot)
	return msg.ID, nil
}

func (b *Board) EditMatch(ctx context.Context, channelID, messageID string, view services.MatchView) error {
	b.mu.Lock()
	msg, err := b.lookup(channelID, messageID)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	v := view
	now := b.now().UTC()
	msg.Match = &v
	msg.EditedAt = &now
	snapshot := msg.snapshot()
	b.mu.Unlock()

	b.broadcast(channelID, brackets.MessageMatchUpdated, snapshot)
	return nil
}

func (b *Board) Reactions(ctx context.Context, channelID, messageID string) ([]models.Reaction, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	msg, err := b.lookup(channelID, messageID)
	if err != nil {
		return nil, err
	}
	return msg.sortedReactions(), nil
}

func (b *Board) Announce(ctx context.Context, channelID string, announcement models.Announcement) error {
	msg := b.newMessage(channelID)
	a := announcement
	msg.Announcement = &a

	b.mu.Lock()
	b.seq++
	msg.seq = b.seq
	b.messages[msg.ID] = msg
	snapshot := msg.snapshot()
	b.mu.Unlock()

	b.broadcast(channelID, brackets.MessageAnnouncement, snapshot)
	return nil
}

// AddReaction records reaction on a message. Adding the same emoji twice is a no-op.
func (b *Board) AddReaction(ctx context.Context, channelID, messageID string, reaction models.Reaction) error {
	if reaction.VoterID == "" || reaction.Emoji == "" {
		return fmt.Errorf("%w: voter and emoji are required", ErrInvalidReaction)
	}
	if reaction.VoterID == BotUserID || reaction.Bot {
		return fmt.Errorf("%w: bot reactions are reserved", ErrInvalidReaction)
	}
	b.mu.Lock()
	msg, err := b.lookup(channelID, messageID)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	msg.reactions[reactionKey{reaction.VoterID, reaction.Emoji}] = reaction
	reactions := msg.sortedReactions()
	b.mu.Unlock()

	b.broadcast(channelID, brackets.MessageReaction, reactionEvent(messageID, reactions))
	return nil
}

func (b *Board) RemoveReaction(ctx context.Context, channelID, messageID, voterID, emoji string) error {
	if voterID == BotUserID {
		return fmt.Errorf("%w: bot reactions are reserved", ErrInvalidReaction)
	}
	b.mu.Lock()
	msg, err := b.lookup(channelID, messageID)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	delete(msg.reactions, reactionKey{voterID, emoji})
	reactions := msg.sortedReactions()
	b.mu.Unlock()

	b.broadcast(channelID, brackets.MessageReaction, reactionEvent(messageID, reactions))
	return nil
}

// Message returns a copy of a posted message.
func (b *Board) Message(channelID, messageID string) (Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	msg, err := b.lookup(channelID, messageID)
	if err != nil {
		return Message{}, err
	}
	return msg.snapshot(), nil
}

// Messages lists a channel's messages oldest first.
func (b *Board) Messages(channelID string) []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	found := make([]*boardMessage, 0)
	for _, msg := range b.messages {
		if msg.ChannelID == channelID {
			found = append(found, msg)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })
	out := make([]Message, 0, len(found))
	for _, msg := range found {
		out = append(out, msg.snapshot())
	}
	return out
}

func (b *Board) newMessage(channelID string) *boardMessage {
	return &boardMessage{
		Message: Message{
			ID:        uuid.NewString(),
			ChannelID: channelID,
			CreatedAt: b.now().UTC(),
		},
		reactions: make(map[reactionKey]models.Reaction),
	}
}

// lookup expects b.mu to be held.
func (b *Board) lookup(channelID, messageID string) (*boardMessage, error) {
	msg, ok := b.messages[messageID]
	if !ok || msg.ChannelID != channelID {
		return nil, fmt.Errorf("%w: %s/%s", ErrMessageNotFound, channelID, messageID)
	}
	return msg, nil
}

func (b *Board) broadcast(channelID, kind string, payload interface{}) {
	b.logger.Debug("board event", slog.String("channel_id", channelID), slog.String("type", kind))
	if b.hub == nil {
		return
	}
	b.hub.BroadcastToRoom(channelID, brackets.WebSocketMessage{
		Type:    kind,
		Payload: payload,
		RoomID:  channelID,
	})
}

func (m *boardMessage) snapshot() Message {
	out := m.Message
	out.Reactions = m.sortedReactions()
	return out
}

func (m *boardMessage) sortedReactions() []models.Reaction {
	out := make([]models.Reaction, 0, len(m.reactions))
	for _, r := range m.reactions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VoterID != out[j].VoterID {
			return out[i].VoterID < out[j].VoterID
		}
		return out[i].Emoji < out[j].Emoji
	})
	return out
}

func reactionEvent(messageID string, reactions []models.Reaction) map[string]interface{} {
	return map[string]interface{}{
		"message_id": messageID,
		"reactions":  reactions,
	}
}
