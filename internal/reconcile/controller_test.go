package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timeremap/internal/codec"
	"github.com/roach88/timeremap/internal/timemap"
)

type recorder struct {
	mu      sync.Mutex
	commits []Commit
	err     error
}

func (r *recorder) Commit(_ context.Context, c Commit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.commits = append(r.commits, c)
	return nil
}

func (r *recorder) all() []Commit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Commit, len(r.commits))
	copy(out, r.commits)
	return out
}

func setup(t *testing.T) (*Controller, *ManualClock, *recorder) {
	t.Helper()
	c, err := codec.New(25, codec.WithPadLastFrame(false))
	require.NoError(t, err)
	clock := NewManualClock()
	rec := &recorder{}
	return NewController(c, rec, WithClock(clock)), clock, rec
}

func snapshot(t *testing.T, entries ...timemap.Entry) Snapshot {
	t.Helper()
	m, err := timemap.FromEntries(0, 100, entries)
	require.NoError(t, err)
	return Snapshot{Map: m, Flags: codec.DefaultFlags()}
}

func TestController_StartsIdle(t *testing.T) {
	ctl, _, rec := setup(t)

	assert.Equal(t, StateIdle, ctl.State())
	_, pending := ctl.Deadline()
	assert.False(t, pending)

	fired, err := ctl.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Empty(t, rec.all())
}

func TestController_DebouncesBurst(t *testing.T) {
	ctx := context.Background()
	ctl, clock, rec := setup(t)

	// A drag: ten mutations 100ms apart, each resetting the window.
	for i := 1; i <= 10; i++ {
		ctl.Touch(snapshot(t, timemap.Entry{Source: 0, Output: 0}, timemap.Entry{Source: 99, Output: 90 + i}))
		clock.Advance(100)
		fired, err := ctl.Tick(ctx)
		require.NoError(t, err)
		require.False(t, fired, "window must restart on every touch")
	}
	assert.Equal(t, StatePendingCommit, ctl.State())

	deadline, pending := ctl.Deadline()
	require.True(t, pending)
	assert.Equal(t, int64(900+DefaultWindow), deadline)

	clock.Advance(399)
	fired, err := ctl.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, fired)

	clock.Advance(1)
	fired, err = ctl.Tick(ctx)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, StateIdle, ctl.State())

	commits := rec.all()
	require.Len(t, commits, 1, "one commit per burst")
	assert.Equal(t, int64(1), commits[0].Seq)
	assert.Equal(t, ReasonDebounce, commits[0].Reason)
	assert.Equal(t, "00:00:00.000=0;00:00:04.000=3.96", commits[0].TimeMap, "last write wins")
	assert.Equal(t, 101, commits[0].Duration)
	assert.Equal(t, int64(1400), commits[0].At)

	// Nothing more fires once idle.
	clock.Advance(10_000)
	fired, err = ctl.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestController_SnapshotIsCopied(t *testing.T) {
	ctx := context.Background()
	ctl, _, rec := setup(t)

	snap := snapshot(t, timemap.Entry{Source: 0, Output: 0}, timemap.Entry{Source: 25, Output: 25})
	ctl.Touch(snap)
	require.NoError(t, snap.Map.Insert(50, 50))

	_, err := ctl.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, "00:00:00.000=0;00:00:01.000=1", rec.all()[0].TimeMap)
}

func TestController_Flush(t *testing.T) {
	ctx := context.Background()
	ctl, _, rec := setup(t)

	flushed, err := ctl.Flush(ctx)
	require.NoError(t, err)
	assert.False(t, flushed)

	ctl.Touch(snapshot(t, timemap.Entry{Source: 0, Output: 0}))
	flushed, err = ctl.Flush(ctx)
	require.NoError(t, err)
	assert.True(t, flushed)
	assert.Equal(t, StateIdle, ctl.State())
	assert.Equal(t, ReasonFlush, rec.all()[0].Reason)
}

func TestController_ResizeIsImmediateAndSupersedes(t *testing.T) {
	ctx := context.Background()
	ctl, clock, rec := setup(t)

	ctl.Touch(snapshot(t, timemap.Entry{Source: 0, Output: 0}, timemap.Entry{Source: 50, Output: 60}))

	next, err := ctl.Resize(ctx, timemap.Identity(0, 100), 150, codec.DefaultFlags())
	require.NoError(t, err)
	assert.Equal(t, "[(0,0),(149,149)]", next.String())
	assert.Equal(t, StateIdle, ctl.State())

	commits := rec.all()
	require.Len(t, commits, 1)
	assert.Equal(t, ReasonResize, commits[0].Reason)
	assert.Equal(t, 150, commits[0].Duration)

	// The superseded edit never fires.
	clock.Advance(DefaultWindow)
	fired, err := ctl.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Len(t, rec.all(), 1)
}

func TestController_ResizeRejectsInvalidDuration(t *testing.T) {
	ctl, _, rec := setup(t)

	_, err := ctl.Resize(context.Background(), timemap.Identity(0, 100), 0, codec.DefaultFlags())
	assert.True(t, timemap.IsOutOfRange(err))
	assert.Empty(t, rec.all())
}

func TestController_CommitFailureReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	ctl, clock, rec := setup(t)
	rec.err = errors.New("engine unavailable")

	ctl.Touch(snapshot(t, timemap.Entry{Source: 0, Output: 0}))
	clock.Advance(DefaultWindow)

	fired, err := ctl.Tick(ctx)
	assert.True(t, fired)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine unavailable")
	assert.Equal(t, StateIdle, ctl.State())
}

func TestController_SequenceResumes(t *testing.T) {
	c, err := codec.New(25)
	require.NoError(t, err)
	rec := &recorder{}
	ctl := NewController(c, rec, WithSequence(NewSequenceAt(41)), WithWindow(10))

	ctl.Touch(snapshot(t, timemap.Entry{Source: 0, Output: 0}))
	_, err = ctl.Expire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(42), rec.all()[0].Seq)
	assert.Equal(t, int64(42), ctl.LastSeq())
}

func TestCommit_Hash(t *testing.T) {
	a := Commit{Seq: 1, TimeMap: "00:00:00.000=0", Flags: codec.DefaultFlags(), Duration: 10, At: 5}
	b := a
	b.Seq, b.At, b.Reason = 9, 900, ReasonResize

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	b.Flags.PitchCompensate = true
	hc, err := b.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)

	assert.Equal(t, "blend", a.Properties()["image_mode"])
}

func TestWallDebouncer(t *testing.T) {
	ctx := context.Background()
	c, err := codec.New(25, codec.WithPadLastFrame(false))
	require.NoError(t, err)
	rec := &recorder{}
	ctl := NewController(c, rec)

	w := NewWallDebouncer(ctx, ctl, 20*time.Millisecond, nil, nil)
	for i := 0; i < 5; i++ {
		w.Touch(snapshot(t, timemap.Entry{Source: 0, Output: 0}, timemap.Entry{Source: 25, Output: 25 + i}))
	}

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, ReasonDebounce, rec.all()[0].Reason)
	assert.Equal(t, "00:00:00.000=0;00:00:01.160=1", rec.all()[0].TimeMap)
	assert.Equal(t, StateIdle, ctl.State())
}

func TestManualClock(t *testing.T) {
	clock := NewManualClock()
	assert.Equal(t, int64(0), clock.Now())
	assert.Equal(t, int64(250), clock.Advance(250))
	assert.Equal(t, int64(250), clock.Advance(-100))
	clock.Reset()
	assert.Equal(t, int64(0), clock.Now())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "pending_commit", StatePendingCommit.String())
}
