package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/popularity-cup/brackets"
	"github.com/Dosada05/popularity-cup/models"
)

// schedulerFixture wires a real AutoLockScheduler with short windows.
func schedulerFixture(t *testing.T, warnAfter, lockAfter time.Duration) (*fixture, *AutoLockScheduler, context.CancelFunc) {
	t.Helper()
	f := newFixture(t)
	sched := NewAutoLockScheduler(f.repo, f.matches, AutoLockConfig{
		WarnAfter:       warnAfter,
		LockAfter:       lockAfter,
		RetryBackoff:    10 * time.Millisecond,
		MaxRetryBackoff: 40 * time.Millisecond,
	}, testLogger())
	f.tournament = NewTournamentService(f.repo, brackets.NewSingleElimination(7), f.matches, sched, f.transport, "cup", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sched.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return f, sched, cancel
}

func (f *fixture) currentMatch(t *testing.T) *models.Match {
	t.Helper()
	doc, _ := f.load(t)
	return doc.LastMatch
}

// TestScheduler_WarnsThenLocks verifies both tasks fire for an untouched match.
func TestScheduler_WarnsThenLocks(t *testing.T) {
	f, _, _ := schedulerFixture(t, 20*time.Millisecond, 60*time.Millisecond)
	m := f.start(t)
	f.transport.setVotes(m.MessageID, 2, 1)

	require.Eventually(t, func() bool {
		cur := f.currentMatch(t)
		return cur != nil && cur.Locked
	}, 2*time.Second, 10*time.Millisecond)

	cur := f.currentMatch(t)
	assert.Equal(t, m.ID, cur.ID)
	assert.Equal(t, AutoLockReason, *cur.LockReason)
	assert.Equal(t, models.LockedTally{A: 2, B: 1}, *cur.LockedCounts)

	warnings := f.transport.announced(models.AnnouncementVotingClosing)
	require.Len(t, warnings, 1)
	closed := f.transport.announced(models.AnnouncementVotingClosed)
	require.Len(t, closed, 1)
	assert.True(t, closed[0].PingEveryone)
}

// TestScheduler_SurvivesStorageOutage verifies warn and lock tasks that wake
// while storage is down keep retrying and act once it recovers.
func TestScheduler_SurvivesStorageOutage(t *testing.T) {
	f, _, _ := schedulerFixture(t, 50*time.Millisecond, 100*time.Millisecond)
	m := f.start(t)
	f.transport.setVotes(m.MessageID, 1, 3)

	// Both deadlines pass while every storage call fails.
	f.store.SetFailure(errors.New("bucket unreachable"))
	time.Sleep(180 * time.Millisecond)

	f.store.SetFailure(nil)
	require.Eventually(t, func() bool {
		cur := f.currentMatch(t)
		return cur != nil && cur.Locked
	}, 2*time.Second, 10*time.Millisecond)

	cur := f.currentMatch(t)
	assert.Equal(t, m.ID, cur.ID)
	assert.Equal(t, AutoLockReason, *cur.LockReason)
	assert.Equal(t, models.LockedTally{A: 1, B: 3}, *cur.LockedCounts)
	assert.Len(t, f.transport.announced(models.AnnouncementVotingClosed), 1)
}

// TestScheduler_SkipsManuallyClosedMatch verifies a stale lock task exits
// without touching the manual lock.
func TestScheduler_SkipsManuallyClosedMatch(t *testing.T) {
	f, _, _ := schedulerFixture(t, 30*time.Millisecond, 80*time.Millisecond)
	ctx := context.Background()
	m := f.start(t)
	f.transport.setVotes(m.MessageID, 1, 0)

	_, err := f.tournament.CloseMatch(ctx, staff)
	require.NoError(t, err)
	calls := f.transport.calls()

	time.Sleep(200 * time.Millisecond)

	cur := f.currentMatch(t)
	require.NotNil(t, cur)
	assert.Equal(t, "Closed by Mod", *cur.LockReason)
	assert.Equal(t, calls, f.transport.calls())
	assert.Empty(t, f.transport.announced(models.AnnouncementVotingClosing))
	assert.Len(t, f.transport.announced(models.AnnouncementVotingClosed), 1)
}

// TestScheduler_SkipsStaleIdentity verifies overdue tasks for a match that is
// no longer current exit without acting on the current one.
func TestScheduler_SkipsStaleIdentity(t *testing.T) {
	f, sched, _ := schedulerFixture(t, time.Hour, 2*time.Hour)
	ctx := context.Background()
	m := f.start(t)

	require.True(t, sched.Schedule(ctx, models.Match{
		ID:       "resolved-long-ago",
		A:        m.A,
		B:        m.B,
		OpenedAt: time.Now().Add(-48 * time.Hour),
	}))

	time.Sleep(100 * time.Millisecond)
	cur := f.currentMatch(t)
	require.NotNil(t, cur)
	assert.Equal(t, m.ID, cur.ID)
	assert.False(t, cur.Locked)
	assert.Empty(t, f.transport.announced(models.AnnouncementVotingClosing))
	assert.Empty(t, f.transport.announced(models.AnnouncementVotingClosed))
}

// TestScheduler_Resume verifies an open match persisted before a restart is
// locked with the time it has left.
func TestScheduler_Resume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.start(t)

	// Pretend the match opened a day ago.
	_, _, err := f.repo.Update(ctx, func(d *models.Tournament) error {
		d.LastMatch.OpenedAt = time.Now().Add(-25 * time.Hour)
		return nil
	})
	require.NoError(t, err)

	sched := NewAutoLockScheduler(f.repo, f.matches, AutoLockConfig{}, testLogger())
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sched.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, sched.Resume(ctx))
	require.Eventually(t, func() bool {
		cur := f.currentMatch(t)
		return cur != nil && cur.Locked
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, m.ID, f.currentMatch(t).ID)
}

// TestScheduler_StopsCleanly verifies Schedule reports false after shutdown.
func TestScheduler_StopsCleanly(t *testing.T) {
	f := newFixture(t)
	sched := NewAutoLockScheduler(f.repo, f.matches, AutoLockConfig{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- sched.Run(ctx) }()
	assert.True(t, sched.Schedule(context.Background(), models.Match{ID: "m", OpenedAt: time.Now()}))

	cancel()
	require.NoError(t, <-done)
	assert.False(t, sched.Schedule(context.Background(), models.Match{ID: "late"}))
}
