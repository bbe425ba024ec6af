package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Dosada05/popularity-cup/brackets"
	"github.com/Dosada05/popularity-cup/models"
	"github.com/Dosada05/popularity-cup/repositories"
)

const (
	DefaultWarnAfter = 23 * time.Hour
	DefaultLockAfter = 24 * time.Hour

	AutoLockReason = "Auto-locked after 24h"
)

var (
	errNothingToOpen = errors.New("fewer than two entrants in the current round")
	errAlreadyLocked = errors.New("match already locked")
	errNoChange      = errors.New("nothing to change")
)

// MatchService drives a single match through OPEN -> LOCKED -> RESOLVED.
type MatchService interface {
	// Open pops the next pair and posts it. It returns a nil match when the
	// current round has fewer than two entrants.
	Open(ctx context.Context) (*models.Match, error)
	Refresh(ctx context.Context, channelID, messageID string) error
	// Lock freezes the tally of matchID, or of the current match when matchID
	// is empty. Locking an already locked match returns the frozen tally.
	Lock(ctx context.Context, matchID, reason string, pingEveryone bool) (models.LockedTally, error)
	Snapshot(ctx context.Context, m *models.Match) (models.LockedTally, error)
	Resolve(t *models.Tournament, votes models.LockedTally) models.MatchResult
	Warn(ctx context.Context, matchID string) error
}

type MatchServiceConfig struct {
	ChannelID string
	LockAfter time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type matchService struct {
	repo      repositories.TournamentRepository
	engine    *brackets.SingleElimination
	transport ChatTransport
	cfg       MatchServiceConfig
	logger    *slog.Logger
}

func NewMatchService(
	repo repositories.TournamentRepository,
	engine *brackets.SingleElimination,
	transport ChatTransport,
	cfg MatchServiceConfig,
	logger *slog.Logger,
) MatchService {
	if cfg.LockAfter <= 0 {
		cfg.LockAfter = DefaultLockAfter
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &matchService{
		repo:      repo,
		engine:    engine,
		transport: transport,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *matchService) Open(ctx context.Context) (*models.Match, error) {
	var opened models.Match
	doc, _, err := s.repo.Update(ctx, func(t *models.Tournament) error {
		if !t.Running {
			return ErrTournamentNotRunning
		}
		if t.LastMatch != nil {
			return ErrMatchAlreadyOpen
		}
		a, b, ok := s.engine.PopNextMatch(t)
		if !ok {
			return errNothingToOpen
		}
		opened = models.Match{
			ID:        uuid.NewString(),
			A:         a,
			B:         b,
			ChannelID: s.cfg.ChannelID,
			OpenedAt:  s.cfg.Now().UTC(),
		}
		t.LastMatch = &opened
		return nil
	})
	if err != nil {
		if errors.Is(err, errNothingToOpen) {
			return nil, nil
		}
		return nil, err
	}
	matchesOpened.Inc()

	view := s.view(doc, &opened, brackets.Tally{})
	messageID, err := s.transport.PostMatch(ctx, opened.ChannelID, view)
	if err != nil {
		// The match stays open without a message; it can still be locked and resolved.
		s.logger.ErrorContext(ctx, "failed to post match",
			slog.String("match_id", opened.ID), slog.Any("error", err))
		return &opened, nil
	}

	_, _, err = s.repo.Update(ctx, func(t *models.Tournament) error {
		if t.LastMatch == nil || t.LastMatch.ID != opened.ID {
			return ErrStaleMatch
		}
		t.LastMatch.MessageID = messageID
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record match message id",
			slog.String("match_id", opened.ID), slog.String("message_id", messageID), slog.Any("error", err))
		return &opened, nil
	}
	opened.MessageID = messageID

	s.logger.InfoContext(ctx, "match opened",
		slog.String("match_id", opened.ID), slog.String("a", opened.A), slog.String("b", opened.B),
		slog.String("stage", doc.RoundStage))
	return &opened, nil
}

func (s *matchService) Refresh(ctx context.Context, channelID, messageID string) error {
	doc, _, err := s.repo.LoadStrict(ctx)
	if err != nil {
		return err
	}
	m := doc.LastMatch
	if m == nil || m.MessageID == "" || m.MessageID != messageID || m.ChannelID != channelID || m.Locked {
		return nil
	}

	tally, err := s.liveTally(ctx, m)
	if err != nil {
		return err
	}
	if err := s.transport.EditMatch(ctx, m.ChannelID, m.MessageID, s.view(doc, m, tally)); err != nil {
		s.logger.WarnContext(ctx, "failed to refresh match message",
			slog.String("match_id", m.ID), slog.Any("error", err))
	}
	return nil
}

func (s *matchService) Lock(ctx context.Context, matchID, reason string, pingEveryone bool) (models.LockedTally, error) {
	doc, _, err := s.repo.LoadStrict(ctx)
	if err != nil {
		return models.LockedTally{}, err
	}
	m := doc.LastMatch
	if m == nil {
		return models.LockedTally{}, ErrNoActiveMatch
	}
	if matchID != "" && m.ID != matchID {
		return models.LockedTally{}, ErrStaleMatch
	}
	if m.Locked {
		return frozenCounts(m), nil
	}

	tally, err := s.liveTally(ctx, m)
	if err != nil {
		return models.LockedTally{}, err
	}
	counts := tally.Locked()

	var frozen models.LockedTally
	doc, _, err = s.repo.Update(ctx, func(t *models.Tournament) error {
		current := t.LastMatch
		if current == nil {
			return ErrNoActiveMatch
		}
		if current.ID != m.ID {
			return ErrStaleMatch
		}
		if current.Locked {
			frozen = frozenCounts(current)
			return errAlreadyLocked
		}
		now := s.cfg.Now().UTC()
		lockReason := reason
		current.Locked = true
		current.LockedAt = &now
		current.LockedCounts = &models.LockedTally{A: counts.A, B: counts.B}
		current.LockReason = &lockReason
		return nil
	})
	if err != nil {
		if errors.Is(err, errAlreadyLocked) {
			return frozen, nil
		}
		return models.LockedTally{}, err
	}

	trigger := "manual"
	if pingEveryone {
		trigger = "auto"
	}
	matchesLocked.WithLabelValues(trigger).Inc()
	nullifiedVotes.Add(float64(tally.Nullified))
	s.logger.InfoContext(ctx, "match locked",
		slog.String("match_id", m.ID), slog.String("reason", reason),
		slog.Int("a_votes", counts.A), slog.Int("b_votes", counts.B), slog.Int("nullified", tally.Nullified))

	locked := doc.LastMatch
	if locked != nil && locked.MessageID != "" {
		if err := s.transport.EditMatch(ctx, locked.ChannelID, locked.MessageID, s.view(doc, locked, tally)); err != nil {
			s.logger.WarnContext(ctx, "failed to mark match message as closed",
				slog.String("match_id", m.ID), slog.Any("error", err))
		}
	}
	s.announce(ctx, m.ChannelID, models.Announcement{
		Kind:         models.AnnouncementVotingClosed,
		Text:         fmt.Sprintf("Voting is now closed. (%s)", reason),
		PingEveryone: pingEveryone,
		ReplyTo:      m.MessageID,
		Payload:      counts,
	})
	return counts, nil
}

func (s *matchService) Snapshot(ctx context.Context, m *models.Match) (models.LockedTally, error) {
	if m == nil {
		return models.LockedTally{}, ErrNoActiveMatch
	}
	if m.Locked && m.LockedCounts != nil {
		return frozenCounts(m), nil
	}
	tally, err := s.liveTally(ctx, m)
	if err != nil {
		return models.LockedTally{}, err
	}
	return tally.Locked(), nil
}

// Resolve settles the current match of t with votes and clears it. The
// caller persists t and records the outcome once the write succeeds.
func (s *matchService) Resolve(t *models.Tournament, votes models.LockedTally) models.MatchResult {
	m := t.LastMatch
	winner := s.engine.PickWinner(m.A, m.B, votes.A, votes.B)
	result := models.MatchResult{
		A:      m.A,
		B:      m.B,
		Winner: winner,
		AVotes: votes.A,
		BVotes: votes.B,
	}
	t.FinishedMatches = append(t.FinishedMatches, result)
	if t.Scores == nil {
		t.Scores = map[string]int{}
	}
	t.Scores[winner]++
	t.NextRound = append(t.NextRound, winner)
	t.LastWinner = &winner
	t.LastMatch = nil

	return result
}

func (s *matchService) Warn(ctx context.Context, matchID string) error {
	doc, _, err := s.repo.LoadStrict(ctx)
	if err != nil {
		return err
	}
	m := doc.LastMatch
	if m == nil {
		return ErrNoActiveMatch
	}
	if m.ID != matchID || m.Locked {
		return ErrStaleMatch
	}
	s.announce(ctx, m.ChannelID, models.Announcement{
		Kind:         models.AnnouncementVotingClosing,
		Text:         fmt.Sprintf("Voting closes soon! (auto-lock at %s)", shortDuration(s.cfg.LockAfter)),
		PingEveryone: true,
		ReplyTo:      m.MessageID,
	})
	return nil
}

func (s *matchService) liveTally(ctx context.Context, m *models.Match) (brackets.Tally, error) {
	if m.MessageID == "" {
		return brackets.CountVotes(nil), nil
	}
	reactions, err := s.transport.Reactions(ctx, m.ChannelID, m.MessageID)
	if err != nil {
		return brackets.Tally{}, fmt.Errorf("%w: reading votes for match %s: %v", repositories.ErrTransportUnavailable, m.ID, err)
	}
	return brackets.CountVotes(brackets.VotesFromReactions(reactions)), nil
}

func (s *matchService) announce(ctx context.Context, channelID string, a models.Announcement) {
	if err := s.transport.Announce(ctx, channelID, a); err != nil {
		s.logger.WarnContext(ctx, "failed to send announcement",
			slog.String("kind", string(a.Kind)), slog.Any("error", err))
	}
}

func (s *matchService) view(t *models.Tournament, m *models.Match, tally brackets.Tally) MatchView {
	v := MatchView{
		MatchID:  m.ID,
		Title:    t.Title,
		Stage:    t.RoundStage,
		A:        m.A,
		B:        m.B,
		EmojiA:   models.EmojiVoteA,
		EmojiB:   models.EmojiVoteB,
		AVotes:   tally.CountA,
		BVotes:   tally.CountB,
		VotersA:  tally.VotersA(),
		VotersB:  tally.VotersB(),
		Locked:   m.Locked,
		OpenedAt: m.OpenedAt,
		ClosesAt: m.OpenedAt.Add(s.cfg.LockAfter),
	}
	if m.Locked && m.LockedCounts != nil {
		v.AVotes, v.BVotes = m.LockedCounts.A, m.LockedCounts.B
	}
	if m.LockReason != nil {
		v.LockReason = *m.LockReason
	}
	return v
}

func frozenCounts(m *models.Match) models.LockedTally {
	if m.LockedCounts == nil {
		return models.LockedTally{}
	}
	return *m.LockedCounts
}

func shortDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return d.String()
}
