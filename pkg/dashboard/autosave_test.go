package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTimer lets tests fire the debounce deterministically.
type manualTimer struct {
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := t.stopped
	t.stopped = true
	return !was
}

type timerCtl struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (tc *timerCtl) factory(_ time.Duration, fn func()) Timer {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	t := &manualTimer{fn: fn}
	tc.timers = append(tc.timers, t)
	return t
}

// fire runs the most recently armed timer that was not stopped.
func (tc *timerCtl) fire(t *testing.T) {
	t.Helper()
	tc.mu.Lock()
	var latest *manualTimer
	for _, tm := range tc.timers {
		if !tm.stopped {
			latest = tm
		}
	}
	tc.mu.Unlock()
	require.NotNil(t, latest, "no armed timer to fire")
	latest.fn()
}

type recordingSaver struct {
	mu      sync.Mutex
	batches [][]ScoreUpdate
	err     error
}

func (r *recordingSaver) save(_ context.Context, updates []ScoreUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]ScoreUpdate, len(updates))
	copy(cp, updates)
	r.batches = append(r.batches, cp)
	return r.err
}

func (r *recordingSaver) batch(i int) []ScoreUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[i]
}

func (r *recordingSaver) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func upd(criterion string, team int, v float64) ScoreUpdate {
	return ScoreUpdate{CriterionID: criterion, TeamNumber: team, Value: &v}
}

func TestAutosaverCoalescesEditsPerCell(t *testing.T) {
	rec := &recordingSaver{}
	tc := &timerCtl{}
	a := NewAutosaver(rec.save)
	a.newTimer = tc.factory

	a.Queue(upd("c1", 1, 5))
	a.Queue(upd("c1", 1, 6))
	a.Queue(upd("c1", 1, 7)) // same cell three times
	a.Queue(upd("c2", 1, 8))

	assert.Equal(t, StatePending, a.State())
	assert.Equal(t, 2, a.PendingCount())

	tc.fire(t)

	require.Equal(t, 1, rec.calls())
	batch := rec.batch(0)
	require.Len(t, batch, 2)
	assert.Equal(t, "c1", batch[0].CriterionID)
	assert.Equal(t, 7.0, *batch[0].Value) // last edit wins
	assert.Equal(t, "c2", batch[1].CriterionID)
	assert.Equal(t, StateIdle, a.State())
}

func TestAutosaverEveryEditExtendsTheWindow(t *testing.T) {
	rec := &recordingSaver{}
	tc := &timerCtl{}
	a := NewAutosaver(rec.save)
	a.newTimer = tc.factory

	a.Queue(upd("c1", 1, 5))
	a.Queue(upd("c1", 2, 5))
	a.Queue(upd("c1", 3, 5))

	tc.mu.Lock()
	armed := 0
	for _, tm := range tc.timers {
		if !tm.stopped {
			armed++
		}
	}
	total := len(tc.timers)
	tc.mu.Unlock()

	assert.Equal(t, 3, total)  // one per edit
	assert.Equal(t, 1, armed)  // earlier ones were cancelled
	tc.fire(t)
	assert.Equal(t, 1, rec.calls())
}

func TestAutosaverKeepsEditsMadeDuringSave(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var rec recordingSaver
	blockingSave := func(ctx context.Context, updates []ScoreUpdate) error {
		err := rec.save(ctx, updates)
		if rec.calls() == 1 {
			close(started)
			<-release
		}
		return err
	}

	tc := &timerCtl{}
	a := NewAutosaver(blockingSave)
	a.newTimer = tc.factory

	a.Queue(upd("c1", 1, 7))

	done := make(chan error, 1)
	go func() { done <- a.Flush(context.Background()) }()

	<-started
	assert.Equal(t, StateSaving, a.State())
	a.Queue(upd("c1", 2, 8)) // lands while the first batch is in flight
	close(release)
	require.NoError(t, <-done)

	// the mid-flight edit is queued, not dropped
	assert.Equal(t, StatePending, a.State())
	assert.Equal(t, 1, a.PendingCount())

	require.NoError(t, a.Flush(context.Background()))
	require.Equal(t, 2, rec.calls())
	second := rec.batch(1)
	require.Len(t, second, 1)
	assert.Equal(t, 2, second[0].TeamNumber)
	assert.Equal(t, StateIdle, a.State())
}

func TestAutosaverRequeuesFailedBatch(t *testing.T) {
	rec := &recordingSaver{err: errors.New("503")}
	tc := &timerCtl{}
	var gotErr error
	a := NewAutosaver(rec.save, WithErrorFunc(func(err error) { gotErr = err }))
	a.newTimer = tc.factory

	a.Queue(upd("c1", 1, 6))
	err := a.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, err, gotErr)
	assert.Equal(t, err, a.LastError())

	// the edit is back in the queue, but nothing retries on its own:
	// no timer may be armed until the user edits or flushes again
	assert.Equal(t, StatePending, a.State())
	assert.Equal(t, 1, a.PendingCount())
	tc.mu.Lock()
	for _, tm := range tc.timers {
		assert.True(t, tm.stopped, "failed batch must not re-arm the debounce")
	}
	tc.mu.Unlock()

	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()

	require.NoError(t, a.Flush(context.Background()))
	assert.Equal(t, StateIdle, a.State())
	assert.Nil(t, a.LastError())
	assert.Equal(t, 2, rec.calls())
}

func TestAutosaverNewerEditBeatsFailedOne(t *testing.T) {
	fail := errors.New("timeout")
	var rec recordingSaver
	firstFails := func(ctx context.Context, updates []ScoreUpdate) error {
		_ = rec.save(ctx, updates)
		if rec.calls() == 1 {
			return fail
		}
		return nil
	}
	tc := &timerCtl{}
	a := NewAutosaver(firstFails)
	a.newTimer = tc.factory

	a.Queue(upd("c1", 1, 5))
	require.Error(t, a.Flush(context.Background()))

	a.Queue(upd("c1", 1, 9)) // user already typed a new value
	require.NoError(t, a.Flush(context.Background()))

	second := rec.batch(1)
	require.Len(t, second, 1)
	assert.Equal(t, 9.0, *second[0].Value)
}

func TestAutosaverFlushWithoutEditsIsANoop(t *testing.T) {
	rec := &recordingSaver{}
	a := NewAutosaver(rec.save)

	require.NoError(t, a.Flush(context.Background()))
	assert.Equal(t, StateIdle, a.State())
	assert.Equal(t, 0, rec.calls())
}

func TestAutosaverRoundsToWholeScores(t *testing.T) {
	rec := &recordingSaver{}
	tc := &timerCtl{}
	a := NewAutosaver(rec.save)
	a.newTimer = tc.factory

	a.Queue(upd("c1", 1, 7.49))
	a.Queue(upd("c2", 1, 6.5))
	tc.fire(t)

	batch := rec.batch(0)
	assert.Equal(t, 7.0, *batch[0].Value)
	assert.Equal(t, 7.0, *batch[1].Value)
}

func TestAutosaverReportsStateTransitions(t *testing.T) {
	rec := &recordingSaver{}
	tc := &timerCtl{}
	var states []SaveState
	a := NewAutosaver(rec.save, WithStateFunc(func(s SaveState) { states = append(states, s) }))
	a.newTimer = tc.factory

	a.Queue(upd("c1", 1, 7))
	tc.fire(t)

	assert.Equal(t, []SaveState{StatePending, StateSaving, StateIdle}, states)
}
