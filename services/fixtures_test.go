package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dosada05/popularity-cup/brackets"
	"github.com/Dosada05/popularity-cup/models"
	"github.com/Dosada05/popularity-cup/repositories"
	"github.com/Dosada05/popularity-cup/storage"
)

var (
	staff  = models.Actor{ID: "staff-1", DisplayName: "Mod", Role: models.RoleStaff}
	member = models.Actor{ID: "user-1", DisplayName: "Fan", Role: models.RoleMember}
)

// fakeTransport records everything sent to it and serves scripted reactions.
type fakeTransport struct {
	mu            sync.Mutex
	nextID        int
	reactions     map[string][]models.Reaction
	posts         []MatchView
	edits         []MatchView
	announcements []models.Announcement
	reactionCalls int
	failReactions error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{reactions: make(map[string][]models.Reaction)}
}

func (f *fakeTransport) PostMatch(ctx context.Context, channelID string, view MatchView) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.posts = append(f.posts, view)
	return fmt.Sprintf("msg-%d", f.nextID), nil
}

func (f *fakeTransport) EditMatch(ctx context.Context, channelID, messageID string, view MatchView) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, view)
	return nil
}

func (f *fakeTransport) Reactions(ctx context.Context, channelID, messageID string) ([]models.Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactionCalls++
	if f.failReactions != nil {
		return nil, f.failReactions
	}
	return append([]models.Reaction(nil), f.reactions[messageID]...), nil
}

func (f *fakeTransport) Announce(ctx context.Context, channelID string, a models.Announcement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announcements = append(f.announcements, a)
	return nil
}

// setVotes replaces the reactions on messageID with a votes for A and b votes
// for B from distinct voters, plus the bot's own reactions.
func (f *fakeTransport) setVotes(messageID string, a, b int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rs := []models.Reaction{
		{VoterID: "bot", Emoji: models.EmojiVoteA, Bot: true},
		{VoterID: "bot", Emoji: models.EmojiVoteB, Bot: true},
	}
	for i := 0; i < a; i++ {
		rs = append(rs, models.Reaction{VoterID: fmt.Sprintf("a-%d", i), DisplayName: fmt.Sprintf("A fan %d", i), Emoji: models.EmojiVoteA})
	}
	for i := 0; i < b; i++ {
		rs = append(rs, models.Reaction{VoterID: fmt.Sprintf("b-%d", i), DisplayName: fmt.Sprintf("B fan %d", i), Emoji: models.EmojiVoteB})
	}
	f.reactions[messageID] = rs
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reactionCalls
}

func (f *fakeTransport) announced(kind models.AnnouncementKind) []models.Announcement {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Announcement
	for _, a := range f.announcements {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// recordingScheduler stands in for AutoLockScheduler where timers are not under test.
type recordingScheduler struct {
	mu      sync.Mutex
	matches []models.Match
}

func (r *recordingScheduler) Schedule(ctx context.Context, m models.Match) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches = append(r.matches, m)
	return true
}

type fixture struct {
	store      *storage.MemoryStore
	repo       repositories.TournamentRepository
	transport  *fakeTransport
	scheduler  *recordingScheduler
	matches    MatchService
	tournament TournamentService
	items      ItemService
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := testLogger()
	store := storage.NewMemoryStore()
	repo := repositories.NewTournamentRepository(store, "", 3, logger)
	engine := brackets.NewSingleElimination(42)
	transport := newFakeTransport()
	sched := &recordingScheduler{}
	matches := NewMatchService(repo, engine, transport, MatchServiceConfig{ChannelID: "cup"}, logger)
	return &fixture{
		store:      store,
		repo:       repo,
		transport:  transport,
		scheduler:  sched,
		matches:    matches,
		tournament: NewTournamentService(repo, engine, matches, sched, transport, "cup", logger),
		items:      NewItemService(repo, logger),
	}
}

func (f *fixture) fillPool(t *testing.T) {
	t.Helper()
	names := make([]string, 0, models.PoolSize)
	for i := 1; i <= models.PoolSize; i++ {
		names = append(names, fmt.Sprintf("Item %02d", i))
	}
	raw := ""
	for i, n := range names {
		if i > 0 {
			raw += ","
		}
		raw += n
	}
	added, _, err := f.items.AddItems(context.Background(), raw, staff)
	require.NoError(t, err)
	require.Len(t, added, models.PoolSize)
}

func (f *fixture) load(t *testing.T) (*models.Tournament, string) {
	t.Helper()
	doc, version, err := f.repo.Load(context.Background())
	require.NoError(t, err)
	return doc, version
}

func (f *fixture) start(t *testing.T) *models.Match {
	t.Helper()
	f.fillPool(t)
	m, err := f.tournament.Start(context.Background(), "Snacks", staff)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
