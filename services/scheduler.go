package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/popularity-cup/models"
	"github.com/Dosada05/popularity-cup/repositories"
)

// MatchLocker is the part of MatchService the scheduler acts through.
type MatchLocker interface {
	Lock(ctx context.Context, matchID, reason string, pingEveryone bool) (models.LockedTally, error)
	Warn(ctx context.Context, matchID string) error
}

const (
	DefaultRetryBackoff    = time.Second
	DefaultMaxRetryBackoff = time.Minute
)

type AutoLockConfig struct {
	WarnAfter time.Duration
	LockAfter time.Duration
	// RetryBackoff is the first wait after a storage or chat outage; it
	// doubles up to MaxRetryBackoff until the task can act.
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	Now             func() time.Time
}

// AutoLockScheduler warns and then locks every opened match after a fixed
// window. Tasks hold no authority of their own: on waking each one reloads the
// document and acts only if the same match is still current and unlocked.
type AutoLockScheduler struct {
	repo     repositories.TournamentRepository
	matches  MatchLocker
	cfg      AutoLockConfig
	requests chan models.Match
	done     chan struct{}
	wg       sync.WaitGroup
	logger   *slog.Logger
}

func NewAutoLockScheduler(repo repositories.TournamentRepository, matches MatchLocker, cfg AutoLockConfig, logger *slog.Logger) *AutoLockScheduler {
	if cfg.WarnAfter <= 0 {
		cfg.WarnAfter = DefaultWarnAfter
	}
	if cfg.LockAfter <= 0 {
		cfg.LockAfter = DefaultLockAfter
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.MaxRetryBackoff < cfg.RetryBackoff {
		cfg.MaxRetryBackoff = DefaultMaxRetryBackoff
		if cfg.MaxRetryBackoff < cfg.RetryBackoff {
			cfg.MaxRetryBackoff = cfg.RetryBackoff
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoLockScheduler{
		repo:     repo,
		matches:  matches,
		cfg:      cfg,
		requests: make(chan models.Match, 16),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Run starts tasks for scheduled matches until ctx is done. Pending timers are
// abandoned on shutdown; Resume picks the open match up again on next start.
func (s *AutoLockScheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "auto-lock scheduler started",
		slog.Duration("warn_after", s.cfg.WarnAfter), slog.Duration("lock_after", s.cfg.LockAfter))
	for {
		select {
		case <-ctx.Done():
			close(s.done)
			s.wg.Wait()
			s.logger.Info("auto-lock scheduler stopped")
			return nil
		case m := <-s.requests:
			s.wg.Add(2)
			go s.runTask(ctx, m, "warn", s.cfg.WarnAfter, func(ctx context.Context) error {
				return s.matches.Warn(ctx, m.ID)
			})
			go s.runTask(ctx, m, "lock", s.cfg.LockAfter, func(ctx context.Context) error {
				_, err := s.matches.Lock(ctx, m.ID, AutoLockReason, true)
				return err
			})
		}
	}
}

// Schedule queues warn and lock tasks for m. It reports false when the
// scheduler has stopped or ctx ends first.
func (s *AutoLockScheduler) Schedule(ctx context.Context, m models.Match) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.requests <- m:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Resume re-schedules the persisted open match, if any, after a restart.
func (s *AutoLockScheduler) Resume(ctx context.Context) error {
	doc, _, err := s.repo.LoadStrict(ctx)
	if err != nil {
		return err
	}
	m := doc.LastMatch
	if !doc.Running || m == nil || m.Locked {
		return nil
	}
	s.logger.InfoContext(ctx, "resuming auto-lock for open match",
		slog.String("match_id", m.ID), slog.Time("opened_at", m.OpenedAt))
	s.Schedule(ctx, *m)
	return nil
}

func (s *AutoLockScheduler) runTask(ctx context.Context, m models.Match, kind string, after time.Duration, act func(context.Context) error) {
	defer s.wg.Done()

	delay := m.OpenedAt.Add(after).Sub(s.cfg.Now())
	if delay < 0 {
		delay = 0
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	backoff := s.cfg.RetryBackoff
	for {
		err := s.attempt(ctx, m.ID, act)
		switch {
		case err == nil:
			schedulerTasks.WithLabelValues(kind, "done").Inc()
			return
		case errors.Is(err, errStaleTask), errors.Is(err, ErrStaleMatch), errors.Is(err, ErrNoActiveMatch):
			schedulerTasks.WithLabelValues(kind, "stale").Inc()
			s.logger.DebugContext(ctx, "scheduled task skipped for stale match",
				slog.String("kind", kind), slog.String("match_id", m.ID))
			return
		case errors.Is(err, repositories.ErrTransportUnavailable):
			// Таймер не теряется: ждём и пробуем снова.
			schedulerTasks.WithLabelValues(kind, "retry").Inc()
			s.logger.WarnContext(ctx, "scheduled task postponed, storage or chat unavailable",
				slog.String("kind", kind), slog.String("match_id", m.ID),
				slog.Duration("retry_in", backoff), slog.Any("error", err))
		default:
			schedulerTasks.WithLabelValues(kind, "failed").Inc()
			s.logger.ErrorContext(ctx, "scheduled task failed",
				slog.String("kind", kind), slog.String("match_id", m.ID), slog.Any("error", err))
			return
		}

		retry := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			retry.Stop()
			return
		case <-retry.C:
		}
		backoff *= 2
		if backoff > s.cfg.MaxRetryBackoff {
			backoff = s.cfg.MaxRetryBackoff
		}
	}
}

var errStaleTask = errors.New("match is no longer current")

// attempt runs act only if matchID is still the current unlocked match.
func (s *AutoLockScheduler) attempt(ctx context.Context, matchID string, act func(context.Context) error) error {
	doc, _, err := s.repo.LoadStrict(ctx)
	if err != nil {
		return err
	}
	m := doc.LastMatch
	if !doc.Running || m == nil || m.ID != matchID || m.Locked {
		return errStaleTask
	}
	return act(ctx)
}
