// Package table owns running games: each Table serializes every mutation of its game session and
// drives auto games with timers.
package table

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/janpfeifer/GoOracle/internal/game"
	"k8s.io/klog/v2"
)

var (
	ErrClosed         = errors.New("table is closed")
	ErrUnknownCommand = errors.New("unknown command")
)

// SubscriberBuffer is the number of updates a subscriber can lag behind before updates are dropped.
const SubscriberBuffer = 256

// Command is one of Start, Reveal, Place or SetSpeed.
type Command interface {
	isCommand()
}

// Start replaces the current game, if any, by a new one in the given mode. Question is optional.
type Start struct {
	Mode     game.Mode
	Question string
}

// Reveal turns the top card of Group face up (manual games).
type Reveal struct{ Group int }

// Place moves the revealed card; Group is the group the player clicked (manual games).
type Place struct{ Group int }

// SetSpeed changes the cadence of auto games. Speed must be 1 or 2.
type SetSpeed struct{ Speed int }

func (Start) isCommand()    {}
func (Reveal) isCommand()   {}
func (Place) isCommand()    {}
func (SetSpeed) isCommand() {}

// Update is sent to subscribers after every committed change.
type Update struct {
	Snapshot game.Snapshot
	Events   []game.Event

	// Result is set exactly once per game, on the update that finishes it.
	Result *game.Result
}

// FinishFunc is called exactly once per game, when it reaches game.PhaseFinished.
type FinishFunc func(tableID string, mode game.Mode, result game.Result)

// Options configure new tables.
type Options struct {
	Strict   bool
	Speed    game.Speed
	NewRNG   func() game.RNG
	OnFinish FinishFunc

	// Deck, if set, is dealt as is instead of a freshly shuffled deck.
	Deck game.Deck
}

// Table owns one game session at a time. It is safe for concurrent use: all mutations are
// serialized by its mutex, and scheduled auto steps are discarded if the game they were scheduled
// for has been replaced or stopped.
type Table struct {
	ID        string
	CreatedAt time.Time

	opts Options

	mu          sync.Mutex
	session     *game.Session
	speed       game.Speed
	generation  uint64
	timer       *time.Timer
	reported    bool
	closed      bool
	subscribers map[int]chan Update
	nextSubID   int
}

// New creates a table with no game. Dispatch a Start command to deal one.
func New(id string, opts Options) *Table {
	if opts.Speed == 0 {
		opts.Speed = game.SpeedNormal
	}
	if opts.NewRNG == nil {
		opts.NewRNG = game.SystemRNG
	}
	return &Table{
		ID:          id,
		CreatedAt:   time.Now(),
		opts:        opts,
		speed:       opts.Speed,
		subscribers: make(map[int]chan Update),
	}
}

// Dispatch applies a command and returns the resulting snapshot.
//
// Manual commands issued out of turn, and any command that does not apply to the current game, are
// ignored: the current snapshot is returned without error.
func (t *Table) Dispatch(cmd Command) (game.Snapshot, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return game.Snapshot{}, ErrClosed
	}

	var err error
	changed := false
	switch c := cmd.(type) {
	case Start:
		err = t.startLocked(c)
		changed = err == nil
	case Reveal:
		changed = t.session != nil && t.session.Reveal(c.Group)
	case Place:
		changed = t.session != nil && t.session.Place(c.Group)
	case SetSpeed:
		var speed game.Speed
		speed, err = game.ParseSpeed(c.Speed)
		if err == nil {
			t.speed = speed
			if t.session != nil {
				t.session.SetSpeed(speed)
				changed = true
			}
		}
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}

	var finished *finishedGame
	if changed {
		finished = t.publishLocked()
	}
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.report(finished)
	return snap, err
}

func (t *Table) startLocked(start Start) error {
	mode := start.Mode
	if mode != game.ModeAuto && mode != game.ModeManual {
		return fmt.Errorf("%w: %q", game.ErrInvalidMode, mode)
	}
	question, err := game.ParseQuestion(start.Question)
	if err != nil {
		return err
	}
	// Invalidate anything scheduled for the previous game.
	t.generation++
	t.stopTimerLocked()

	s := game.NewSession(t.ID, mode, t.opts.NewRNG(), game.WithStrict(t.opts.Strict),
		game.WithSpeed(t.speed), game.WithQuestion(question))
	if t.opts.Deck != nil {
		err = s.StartWithDeck(t.opts.Deck)
	} else {
		err = s.Start()
	}
	if err != nil {
		return fmt.Errorf("failed to start game: %w", err)
	}
	t.session = s
	t.reported = false
	klog.Infof("Table %s: new %s game (generation %d)", t.ID, mode, t.generation)

	if mode == game.ModeAuto {
		t.scheduleLocked(game.TimingsFor(t.speed).TurnPeriod(), t.autoStep)
	}
	return nil
}

// Snapshot returns the current state of the table's game.
func (t *Table) Snapshot() game.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Table) snapshotLocked() game.Snapshot {
	if t.session == nil {
		return game.Snapshot{ID: t.ID, Speed: t.speed, CompletedGroups: []int{}}
	}
	return t.session.Snapshot()
}

// Subscribe registers a listener for updates. The returned cancel function unregisters it; the
// channel is also closed when the table closes.
func (t *Table) Subscribe() (<-chan Update, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan Update, SubscriberBuffer)
	if t.closed {
		close(ch)
		return ch, func() {}
	}
	id := t.nextSubID
	t.nextSubID++
	t.subscribers[id] = ch
	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if sub, found := t.subscribers[id]; found {
			delete(t.subscribers, id)
			close(sub)
		}
	}
}

// Close stops the game: pending auto steps become no-ops and subscribers are released.
func (t *Table) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.generation++
	t.stopTimerLocked()
	for id, ch := range t.subscribers {
		close(ch)
		delete(t.subscribers, id)
	}
	klog.Infof("Table %s: closed", t.ID)
}

// scheduleLocked runs fn after d, passing the generation current at scheduling time.
func (t *Table) scheduleLocked(d time.Duration, fn func(generation uint64)) {
	t.stopTimerLocked()
	gen := t.generation
	t.timer = time.AfterFunc(d, func() { fn(gen) })
}

func (t *Table) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// staleLocked reports whether a step scheduled at generation gen must be discarded.
func (t *Table) staleLocked(gen uint64, phase game.Phase) bool {
	return t.closed || gen != t.generation || t.session == nil ||
		t.session.Mode() != game.ModeAuto || t.session.Phase() != phase
}

func (t *Table) autoStep(gen uint64) {
	t.mu.Lock()
	if t.staleLocked(gen, game.PhasePlaying) {
		t.mu.Unlock()
		klog.V(2).Infof("Table %s: discarding stale auto step (generation %d)", t.ID, gen)
		return
	}
	t.session.Step()

	timings := game.TimingsFor(t.speed)
	switch t.session.Phase() {
	case game.PhasePlaying:
		t.scheduleLocked(timings.TurnPeriod(), t.autoStep)
	case game.PhaseChecking:
		delay := timings.Step
		if r := t.session.Outcome(); r != nil && r.Reason == game.ReasonBlocked {
			delay = timings.Blocking
		}
		t.scheduleLocked(delay, t.conclude)
	}
	finished := t.publishLocked()
	t.mu.Unlock()
	t.report(finished)
}

func (t *Table) conclude(gen uint64) {
	t.mu.Lock()
	if t.staleLocked(gen, game.PhaseChecking) {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.session.Conclude()
	finished := t.publishLocked()
	t.mu.Unlock()
	t.report(finished)
}

// finishedGame is what the finish hook is called with.
type finishedGame struct {
	mode   game.Mode
	result game.Result
}

// publishLocked fans the pending events out to subscribers. It returns the finished game if this
// update is the one reporting the end of the game.
func (t *Table) publishLocked() *finishedGame {
	if t.session == nil {
		return nil
	}
	u := Update{
		Snapshot: t.session.Snapshot(),
		Events:   t.session.Events(),
	}
	if r := t.session.Result(); r != nil && !t.reported {
		t.reported = true
		u.Result = r
	}
	for id, ch := range t.subscribers {
		select {
		case ch <- u:
		default:
			klog.Warningf("Table %s: subscriber %d is not keeping up, dropping update", t.ID, id)
		}
	}
	if u.Result == nil {
		return nil
	}
	return &finishedGame{mode: t.session.Mode(), result: *u.Result}
}

// report runs the finish hook, outside of the table lock.
func (t *Table) report(f *finishedGame) {
	if f == nil || t.opts.OnFinish == nil {
		return
	}
	t.opts.OnFinish(t.ID, f.mode, f.result)
}
