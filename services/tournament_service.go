package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/popularity-cup/brackets"
	"github.com/Dosada05/popularity-cup/models"
	"github.com/Dosada05/popularity-cup/repositories"
)

type AdvanceOutcome string

const (
	AdvanceResolved      AdvanceOutcome = "resolved"
	AdvanceFinalResolved AdvanceOutcome = "final_resolved"
	AdvancePromoted      AdvanceOutcome = "promoted"
	AdvanceOpened        AdvanceOutcome = "opened"
	AdvanceNothing       AdvanceOutcome = "nothing"
)

type AdvanceResult struct {
	Outcome   AdvanceOutcome      `json:"outcome"`
	Result    *models.MatchResult `json:"result,omitempty"`
	Stage     string              `json:"stage"`
	Champion  string              `json:"champion,omitempty"`
	NextMatch *models.Match       `json:"next_match,omitempty"`
}

type UpcomingPair struct {
	A           string `json:"a"`
	B           string `json:"b,omitempty"`
	AutoAdvance bool   `json:"auto_advance"`
}

type CurrentMatchView struct {
	ID         string `json:"id"`
	A          string `json:"a"`
	B          string `json:"b"`
	AVotes     int    `json:"a_votes"`
	BVotes     int    `json:"b_votes"`
	Locked     bool   `json:"locked"`
	LockReason string `json:"lock_reason,omitempty"`
}

type Scoreboard struct {
	Title     string               `json:"title"`
	Stage     string               `json:"stage"`
	Running   bool                 `json:"running"`
	Finished  []models.MatchResult `json:"finished"`
	Current   *CurrentMatchView    `json:"current"`
	Upcoming  []UpcomingPair       `json:"upcoming"`
	Waiting   []string             `json:"waiting"`
	Remaining int                  `json:"remaining"`
}

// MatchScheduler receives every newly opened match.
type MatchScheduler interface {
	Schedule(ctx context.Context, m models.Match) bool
}

type TournamentService interface {
	Start(ctx context.Context, title string, actor models.Actor) (*models.Match, error)
	Advance(ctx context.Context, actor models.Actor) (*AdvanceResult, error)
	CloseMatch(ctx context.Context, actor models.Actor) (models.LockedTally, error)
	End(ctx context.Context, actor models.Actor) (*models.HistoryEntry, error)
	Reset(ctx context.Context, actor models.Actor) error
	Scoreboard(ctx context.Context) (*Scoreboard, error)
	History(ctx context.Context) ([]models.HistoryEntry, error)
	DeleteHistory(ctx context.Context, title string, actor models.Actor) (int, error)
	RefreshMatch(ctx context.Context, channelID, messageID string) error
}

type tournamentService struct {
	repo      repositories.TournamentRepository
	engine    *brackets.SingleElimination
	matches   MatchService
	scheduler MatchScheduler
	transport ChatTransport
	channelID string
	now       func() time.Time
	logger    *slog.Logger
}

func NewTournamentService(
	repo repositories.TournamentRepository,
	engine *brackets.SingleElimination,
	matches MatchService,
	scheduler MatchScheduler,
	transport ChatTransport,
	channelID string,
	logger *slog.Logger,
) TournamentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &tournamentService{
		repo:      repo,
		engine:    engine,
		matches:   matches,
		scheduler: scheduler,
		transport: transport,
		channelID: channelID,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *tournamentService) Start(ctx context.Context, title string, actor models.Actor) (*models.Match, error) {
	if !actor.IsStaff() {
		return nil, ErrForbiddenOperation
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidationFailed)
	}

	doc, _, err := s.repo.Update(ctx, func(t *models.Tournament) error {
		if t.Running {
			return ErrTournamentRunning
		}
		if len(t.Items) != models.PoolSize {
			return fmt.Errorf("%w: have %d", ErrInvalidPoolSize, len(t.Items))
		}
		s.engine.Seed(t, title)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "tournament started",
		slog.String("title", title), slog.String("by", actor.ID), slog.String("stage", doc.RoundStage))

	s.announce(ctx, models.Announcement{
		Kind:         models.AnnouncementTournamentStarted,
		Text:         fmt.Sprintf("The World Cup of %s is starting - cast your votes!", title),
		PingEveryone: true,
	})
	return s.openNext(ctx)
}

// Advance resolves the current match, or promotes a finished round, and opens
// whatever comes next.
func (s *tournamentService) Advance(ctx context.Context, actor models.Actor) (*AdvanceResult, error) {
	if !actor.IsStaff() {
		return nil, ErrForbiddenOperation
	}
	doc, _, err := s.repo.LoadStrict(ctx)
	if err != nil {
		return nil, err
	}
	if !doc.Running {
		return nil, ErrTournamentNotRunning
	}
	if s.engine.Champion(doc) != "" {
		return nil, ErrNoRoundsLeft
	}

	switch {
	case doc.LastMatch != nil:
		return s.resolveCurrent(ctx, doc.LastMatch)
	case len(doc.CurrentRound) == 0 && len(doc.NextRound) > 0:
		return s.promote(ctx, doc.RoundStage)
	case len(doc.CurrentRound) >= 2:
		// Recovery: a previous open was interrupted before posting.
		next, err := s.openNext(ctx)
		if err != nil {
			return nil, err
		}
		return &AdvanceResult{Outcome: AdvanceOpened, Stage: doc.RoundStage, NextMatch: next}, nil
	}
	return &AdvanceResult{Outcome: AdvanceNothing, Stage: doc.RoundStage}, nil
}

func (s *tournamentService) resolveCurrent(ctx context.Context, m *models.Match) (*AdvanceResult, error) {
	votes, err := s.matches.Snapshot(ctx, m)
	if err != nil {
		return nil, err
	}

	var result models.MatchResult
	var champion string
	doc, _, err := s.repo.Update(ctx, func(t *models.Tournament) error {
		current := t.LastMatch
		if current == nil || current.ID != m.ID {
			return ErrStaleMatch
		}
		// A lock that landed after our snapshot wins over live counts.
		counts := votes
		if current.Locked && current.LockedCounts != nil {
			counts = *current.LockedCounts
		}
		result = s.matches.Resolve(t, counts)
		champion = ""
		if len(t.CurrentRound) == 0 && len(t.NextRound) == 1 {
			champion, _ = s.engine.PromoteRound(t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	recordResolved(result)
	s.logger.InfoContext(ctx, "match resolved",
		slog.String("match_id", m.ID), slog.String("winner", result.Winner),
		slog.Int("a_votes", result.AVotes), slog.Int("b_votes", result.BVotes))

	if champion != "" {
		s.logger.InfoContext(ctx, "final match resolved", slog.String("champion", champion))
		return &AdvanceResult{
			Outcome:  AdvanceFinalResolved,
			Result:   &result,
			Stage:    doc.RoundStage,
			Champion: champion,
		}, nil
	}

	s.announce(ctx, models.Announcement{
		Kind:         models.AnnouncementNextFixture,
		Text:         fmt.Sprintf("The next fixture in the World Cup of %s is ready - cast your votes below!", doc.Title),
		PingEveryone: true,
	})
	s.announce(ctx, models.Announcement{
		Kind: models.AnnouncementMatchResult,
		Text: fmt.Sprintf("%s won the previous match!\n%s %s: %d\n%s %s: %d",
			result.Winner, models.EmojiVoteA, result.A, result.AVotes, models.EmojiVoteB, result.B, result.BVotes),
		Payload: result,
	})

	out := &AdvanceResult{Outcome: AdvanceResolved, Result: &result, Stage: doc.RoundStage}
	if len(doc.CurrentRound) >= 2 {
		next, err := s.openNext(ctx)
		if err != nil {
			return out, err
		}
		out.NextMatch = next
	}
	return out, nil
}

func (s *tournamentService) promote(ctx context.Context, previousStage string) (*AdvanceResult, error) {
	var champion string
	doc, _, err := s.repo.Update(ctx, func(t *models.Tournament) error {
		if t.LastMatch != nil {
			return ErrMatchAlreadyOpen
		}
		var ok bool
		champion, ok = s.engine.PromoteRound(t)
		if !ok {
			return ErrNoRoundsLeft
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "round promoted",
		slog.String("from", previousStage), slog.String("to", doc.RoundStage), slog.Int("entrants", len(doc.CurrentRound)))

	s.announce(ctx, models.Announcement{
		Kind: models.AnnouncementRoundComplete,
		Text: fmt.Sprintf("%s complete! Now entering %s.\nRemaining: %s",
			previousStage, doc.RoundStage, strings.Join(doc.CurrentRound, ", ")),
		Payload: doc.CurrentRound,
	})

	out := &AdvanceResult{Outcome: AdvancePromoted, Stage: doc.RoundStage, Champion: champion}
	if len(doc.CurrentRound) >= 2 {
		next, err := s.openNext(ctx)
		if err != nil {
			return out, err
		}
		out.NextMatch = next
	}
	return out, nil
}

func (s *tournamentService) openNext(ctx context.Context) (*models.Match, error) {
	m, err := s.matches.Open(ctx)
	if err != nil || m == nil {
		return m, err
	}
	if s.scheduler != nil && !s.scheduler.Schedule(ctx, *m) {
		s.logger.WarnContext(ctx, "auto-lock not scheduled", slog.String("match_id", m.ID))
	}
	return m, nil
}

func (s *tournamentService) CloseMatch(ctx context.Context, actor models.Actor) (models.LockedTally, error) {
	if !actor.IsStaff() {
		return models.LockedTally{}, ErrForbiddenOperation
	}
	name := actor.DisplayName
	if name == "" {
		name = actor.ID
	}
	return s.matches.Lock(ctx, "", "Closed by "+name, false)
}

func (s *tournamentService) End(ctx context.Context, actor models.Actor) (*models.HistoryEntry, error) {
	if !actor.IsStaff() {
		return nil, ErrForbiddenOperation
	}

	var entry models.HistoryEntry
	_, _, err := s.repo.Update(ctx, func(t *models.Tournament) error {
		if !t.Running {
			return ErrTournamentNotRunning
		}
		winner := s.engine.Champion(t)
		if winner == "" {
			return ErrNoChampion
		}
		title := t.Title
		if title == "" {
			title = "Untitled"
		}
		entry = models.HistoryEntry{
			Title:     title,
			Winner:    winner,
			AuthorID:  t.ItemAuthors[winner],
			Timestamp: s.now().Unix(),
		}
		t.CupHistory = append(t.CupHistory, entry)
		t.Running = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "tournament ended",
		slog.String("title", entry.Title), slog.String("winner", entry.Winner))

	addedBy := "Unknown"
	if entry.AuthorID != "" {
		addedBy = "<@" + entry.AuthorID + ">"
	}
	s.announce(ctx, models.Announcement{
		Kind:         models.AnnouncementChampion,
		Text:         fmt.Sprintf("We have a World Cup Winner! %s wins the World Cup of %s!\nAdded by: %s", entry.Winner, entry.Title, addedBy),
		PingEveryone: true,
		Payload:      entry,
	})
	return &entry, nil
}

func (s *tournamentService) Reset(ctx context.Context, actor models.Actor) error {
	if !actor.IsStaff() {
		return ErrForbiddenOperation
	}
	_, _, err := s.repo.Update(ctx, func(t *models.Tournament) error {
		history := t.CupHistory
		*t = *models.NewTournament()
		t.CupHistory = history
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "tournament reset", slog.String("by", actor.ID))
	return nil
}

func (s *tournamentService) Scoreboard(ctx context.Context) (*Scoreboard, error) {
	doc, _, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}

	board := &Scoreboard{
		Title:     doc.Title,
		Stage:     doc.RoundStage,
		Running:   doc.Running,
		Finished:  doc.FinishedMatches,
		Waiting:   doc.NextRound,
		Remaining: s.engine.Remaining(doc),
		Upcoming:  []UpcomingPair{},
	}
	for _, pair := range s.engine.Upcoming(doc) {
		if len(pair) == 2 {
			board.Upcoming = append(board.Upcoming, UpcomingPair{A: pair[0], B: pair[1]})
		} else {
			board.Upcoming = append(board.Upcoming, UpcomingPair{A: pair[0], AutoAdvance: true})
		}
	}

	if m := doc.LastMatch; m != nil {
		current := &CurrentMatchView{ID: m.ID, A: m.A, B: m.B, Locked: m.Locked}
		if m.LockReason != nil {
			current.LockReason = *m.LockReason
		}
		votes, err := s.matches.Snapshot(ctx, m)
		if err != nil {
			// Live counts are informational here.
			s.logger.WarnContext(ctx, "scoreboard without live votes", slog.Any("error", err))
		} else {
			current.AVotes, current.BVotes = votes.A, votes.B
		}
		board.Current = current
	}
	return board, nil
}

// History returns completed cups, newest first.
func (s *tournamentService) History(ctx context.Context) ([]models.HistoryEntry, error) {
	doc, _, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	history := make([]models.HistoryEntry, 0, len(doc.CupHistory))
	for i := len(doc.CupHistory) - 1; i >= 0; i-- {
		history = append(history, doc.CupHistory[i])
	}
	return history, nil
}

func (s *tournamentService) DeleteHistory(ctx context.Context, title string, actor models.Actor) (int, error) {
	if !actor.IsStaff() {
		return 0, ErrForbiddenOperation
	}
	removed := 0
	_, _, err := s.repo.Update(ctx, func(t *models.Tournament) error {
		kept := make([]models.HistoryEntry, 0, len(t.CupHistory))
		removed = 0
		for _, h := range t.CupHistory {
			if h.Title == title {
				removed++
				continue
			}
			kept = append(kept, h)
		}
		if removed == 0 {
			return ErrHistoryNotFound
		}
		t.CupHistory = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *tournamentService) RefreshMatch(ctx context.Context, channelID, messageID string) error {
	err := s.matches.Refresh(ctx, channelID, messageID)
	if errors.Is(err, repositories.ErrTransportUnavailable) {
		s.logger.WarnContext(ctx, "match refresh skipped", slog.String("message_id", messageID), slog.Any("error", err))
		return nil
	}
	return err
}

func (s *tournamentService) announce(ctx context.Context, a models.Announcement) {
	if err := s.transport.Announce(ctx, s.channelID, a); err != nil {
		s.logger.WarnContext(ctx, "failed to send announcement",
			slog.String("kind", string(a.Kind)), slog.Any("error", err))
	}
}
