package dashboard

import (
	"context"
	"sync"
	"time"
)

// SaveState is where the autosaver is in its cycle. The UI renders it
// directly ("", "wijzigingen...", "opslaan...").
type SaveState int

const (
	// StateIdle: nothing queued, nothing in flight.
	StateIdle SaveState = iota
	// StatePending: edits queued, debounce timer running.
	StatePending
	// StateSaving: a batch is on the wire.
	StateSaving
)

func (s SaveState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSaving:
		return "saving"
	default:
		return "idle"
	}
}

// SaveFunc persists a batch of cell updates, typically
// Client.BatchUpdateScores wrapped with the assessment id.
type SaveFunc func(ctx context.Context, updates []ScoreUpdate) error

// Timer abstracts time.AfterFunc so tests can fire the debounce
// deterministically.
type Timer interface{ Stop() bool }

type timerFactory func(d time.Duration, fn func()) Timer

type cellKey struct {
	criterionID string
	teamNumber  int
	studentID   string
}

// Autosaver debounces score edits and saves them in batches. Edits to
// the same cell coalesce (last one wins); edits made while a save is in
// flight are queued for the next cycle, never dropped. A failed batch
// returns to the queue but is never resent on its own: the next edit or
// a manual Flush resubmits it. Cells edited again after a failure keep
// the newer edit.
type Autosaver struct {
	save     SaveFunc
	delay    time.Duration
	newTimer timerFactory

	onState func(SaveState)
	onError func(error)

	// saveMu serializes the actual save calls so batches arrive in order
	saveMu sync.Mutex

	mu      sync.Mutex
	state   SaveState
	pending map[cellKey]ScoreUpdate
	order   []cellKey
	timer   Timer
	lastErr error
}

type AutosaverOption func(*Autosaver)

// WithSaveDelay changes the debounce window (default 2s).
func WithSaveDelay(d time.Duration) AutosaverOption {
	return func(a *Autosaver) { a.delay = d }
}

// WithStateFunc is called on every state transition, outside locks.
func WithStateFunc(fn func(SaveState)) AutosaverOption {
	return func(a *Autosaver) { a.onState = fn }
}

// WithErrorFunc is called when a batch fails, outside locks.
func WithErrorFunc(fn func(error)) AutosaverOption {
	return func(a *Autosaver) { a.onError = fn }
}

func NewAutosaver(save SaveFunc, opts ...AutosaverOption) *Autosaver {
	a := &Autosaver{
		save:    save,
		delay:   2 * time.Second,
		pending: map[cellKey]ScoreUpdate{},
		newTimer: func(d time.Duration, fn func()) Timer {
			return time.AfterFunc(d, fn)
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Autosaver) State() SaveState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// LastError reports the most recent batch failure; nil after a
// successful save.
func (a *Autosaver) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// PendingCount is how many cells are waiting for the next batch.
func (a *Autosaver) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Queue records one cell edit and (re)arms the debounce timer. Values
// are rounded to the nearest whole score, matching what the cell
// editor submits.
func (a *Autosaver) Queue(u ScoreUpdate) {
	u = roundUpdate(u)
	k := cellKey{criterionID: u.CriterionID, teamNumber: u.TeamNumber, studentID: u.StudentID}

	a.mu.Lock()
	if _, ok := a.pending[k]; !ok {
		a.order = append(a.order, k)
	}
	a.pending[k] = u

	var notify func(SaveState)
	switch a.state {
	case StateIdle:
		a.state = StatePending
		a.resetTimerLocked()
		notify = a.onState
	case StatePending:
		// every keystroke extends the window
		a.resetTimerLocked()
	case StateSaving:
		// picked up when the in-flight save finishes
	}
	a.mu.Unlock()

	if notify != nil {
		notify(StatePending)
	}
}

func (a *Autosaver) resetTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = a.newTimer(a.delay, func() {
		_ = a.Flush(context.Background())
	})
}

// Flush saves everything queued right now and blocks until done. When a
// save is already in flight it waits for that save first, then sends
// what accumulated behind it.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if len(a.pending) == 0 {
		changed := a.state != StateIdle
		a.state = StateIdle
		notify := a.onState
		a.mu.Unlock()
		if changed && notify != nil {
			notify(StateIdle)
		}
		return nil
	}
	batch := make([]ScoreUpdate, 0, len(a.pending))
	for _, k := range a.order {
		batch = append(batch, a.pending[k])
	}
	a.pending = map[cellKey]ScoreUpdate{}
	a.order = nil
	a.state = StateSaving
	notify := a.onState
	a.mu.Unlock()

	if notify != nil {
		notify(StateSaving)
	}

	err := a.save(ctx, batch)

	a.mu.Lock()
	if err != nil {
		a.lastErr = err
		// failed cells return to the queue unless edited again meanwhile
		for _, u := range batch {
			k := cellKey{criterionID: u.CriterionID, teamNumber: u.TeamNumber, studentID: u.StudentID}
			if _, ok := a.pending[k]; !ok {
				a.pending[k] = u
				a.order = append(a.order, k)
			}
		}
	} else {
		a.lastErr = nil
	}
	next := StateIdle
	if len(a.pending) > 0 {
		next = StatePending
		// Re-arm only after a successful save: a failed batch stays
		// queued until the next edit or a manual Flush resubmits it.
		if err == nil {
			a.resetTimerLocked()
		}
	}
	a.state = next
	notify = a.onState
	onErr := a.onError
	a.mu.Unlock()

	if notify != nil {
		notify(next)
	}
	if err != nil && onErr != nil {
		onErr(err)
	}
	return err
}

// Close flushes whatever is still queued. Call it when the scoring
// screen unmounts.
func (a *Autosaver) Close() error {
	return a.Flush(context.Background())
}
