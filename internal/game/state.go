package game

import (
	"errors"
	"fmt"
	"slices"

	"k8s.io/klog/v2"
)

// OrderedArea is the pseudo group index of the ordered cards area, offered to the player as a
// placement target when the revealed card goes home.
const OrderedArea = -1

var ErrAlreadyStarted = errors.New("session already started")

// ManualState is the turn sub-state of a manual game.
type ManualState struct {
	WaitingForReveal    bool  `json:"waiting_for_reveal"`
	WaitingForPlacement bool  `json:"waiting_for_placement"`
	Revealed            *Card `json:"revealed,omitempty"` // Revealed but not yet placed.
	Allowed             []int `json:"allowed"`            // Groups the player may click.
}

// EventKind identifies what an Event reports.
type EventKind string

const (
	EventPhase  EventKind = "phase"
	EventReveal EventKind = "reveal"
	EventMove   EventKind = "move"
	EventResult EventKind = "result"
)

// Event is emitted for every committed change, so adapters can animate and play cues at their own pace.
type Event struct {
	Kind   EventKind `json:"kind"`
	Phase  Phase     `json:"phase,omitempty"`
	Card   *Card     `json:"card,omitempty"`
	Group  int       `json:"group"` // Pile the card was revealed from, for reveal events.
	Move   *Move     `json:"move,omitempty"`
	Result *Result   `json:"result,omitempty"`
}

// Snapshot is a read-only copy of a session, for rendering.
type Snapshot struct {
	ID              string       `json:"id"`
	Question        string       `json:"question,omitempty"`
	Phase           Phase        `json:"phase"`
	Mode            Mode         `json:"mode"`
	Speed           Speed        `json:"speed"`
	Groups          Groups       `json:"groups"`
	Ordered         Groups       `json:"ordered"`
	CurrentGroup    int          `json:"current_group"`
	Step            int          `json:"step"`
	CompletedGroups []int        `json:"completed_groups"`
	OrderedGroups   int          `json:"ordered_groups"` // Number of complete ordered groups.
	Revealed        *Card        `json:"revealed,omitempty"`
	Manual          *ManualState `json:"manual,omitempty"`
	Result          *Result      `json:"result,omitempty"`
}

// Option configures a Session.
type Option func(s *Session)

// WithStrict makes invariant violations panic instead of aborting the session.
func WithStrict(strict bool) Option {
	return func(s *Session) { s.strict = strict }
}

// WithQuestion sets the question the reading answers. It is reported in snapshots and in the result.
func WithQuestion(question string) Option {
	return func(s *Session) { s.question = question }
}

// WithSpeed sets the initial speed reported in snapshots.
func WithSpeed(speed Speed) Option {
	return func(s *Session) { s.speed = speed }
}

// Session is the game state machine: shuffling → distributing → playing → (checking →) finished.
//
// A Session is not safe for concurrent use: all calls must be serialized by its owner.
type Session struct {
	id     string
	mode   Mode
	speed  Speed
	rng    RNG
	strict bool

	question string

	started bool
	phase   Phase
	board   Board

	revealed *Card
	manual   ManualState
	pending  *RevealOutcome // Manual reveal awaiting its placement.

	result *Result
	events []Event
}

// NewSession creates a session that has not dealt any card yet.
func NewSession(id string, mode Mode, rng RNG, opts ...Option) *Session {
	s := &Session{
		id:    id,
		mode:  mode,
		speed: SpeedNormal,
		rng:   rng,
		phase: PhaseShuffling,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Mode() Mode   { return s.mode }
func (s *Session) Phase() Phase { return s.phase }

func (s *Session) Question() string { return s.question }

// Result is nil until the session reaches PhaseFinished.
func (s *Session) Result() *Result {
	if s.phase != PhaseFinished {
		return nil
	}
	r := *s.result
	return &r
}

// Outcome is the recorded result as soon as the game is decided, including while the session is
// still contemplating it in PhaseChecking.
func (s *Session) Outcome() *Result {
	if s.result == nil {
		return nil
	}
	r := *s.result
	return &r
}

// SetSpeed records the speed shown in snapshots. The cadence itself belongs to the driver.
func (s *Session) SetSpeed(speed Speed) {
	s.speed = speed
}

// Start builds a new deck, shuffles it and deals it.
func (s *Session) Start() error {
	if s.started {
		return ErrAlreadyStarted
	}
	deck := Shuffle(NewDeck(), s.rng)
	return s.deal(deck)
}

// StartWithDeck deals the given deck as is, without shuffling.
func (s *Session) StartWithDeck(deck Deck) error {
	if s.started {
		return ErrAlreadyStarted
	}
	if err := deck.Validate(); err != nil {
		return err
	}
	return s.deal(deck.Clone())
}

func (s *Session) deal(deck Deck) error {
	s.started = true
	s.emit(Event{Kind: EventPhase, Phase: PhaseShuffling})
	s.setPhase(PhaseDistributing)
	s.board = NewBoard(deck)
	s.setPhase(PhasePlaying)
	if s.mode == ModeManual {
		s.manual = ManualState{WaitingForReveal: true, Allowed: []int{s.board.Current}}
	}
	klog.V(1).Infof("session %s: dealt, mode=%s", s.id, s.mode)
	s.checkInvariants()
	return nil
}

// Step runs one auto turn. It returns false, doing nothing, unless the session is an auto game in
// PhasePlaying.
func (s *Session) Step() bool {
	if s.phase != PhasePlaying || s.mode != ModeAuto {
		return false
	}
	out := ResolveTurn(&s.board)
	if out.Reveal.Kind == Continue || out.Reveal.Result.Reason == ReasonBlocked {
		s.revealEvent(out.Reveal)
	}
	s.commit(out)
	return true
}

// Reveal is the manual command that turns the top card of a pile face up. It is ignored unless the
// session awaits a reveal on that group.
func (s *Session) Reveal(group int) bool {
	if s.phase != PhasePlaying || s.mode != ModeManual || !s.manual.WaitingForReveal ||
		!slices.Contains(s.manual.Allowed, group) {
		return false
	}
	rev := Reveal(&s.board)
	if rev.Kind != Continue {
		if rev.Result.Reason == ReasonBlocked {
			s.revealEvent(rev)
		}
		s.board.Current = rev.Source
		s.finish(rev.Result)
		return true
	}

	s.revealEvent(rev)
	s.pending = &rev
	s.board.Current = rev.Source
	allowed := []int{rev.Target}
	if rev.Home {
		allowed = append(allowed, OrderedArea)
	}
	s.manual = ManualState{WaitingForPlacement: true, Revealed: &rev.Card, Allowed: allowed}
	return true
}

// Place is the manual command that moves the revealed card. The group clicked must be one of the
// allowed ones, but the destination is always decided by the rules.
func (s *Session) Place(group int) bool {
	if s.phase != PhasePlaying || s.mode != ModeManual || !s.manual.WaitingForPlacement ||
		s.pending == nil || !slices.Contains(s.manual.Allowed, group) {
		return false
	}
	out := Apply(&s.board, *s.pending)
	s.pending = nil
	s.commit(out)
	if s.phase == PhasePlaying {
		s.manual = ManualState{WaitingForReveal: true, Allowed: []int{s.board.Current}}
	}
	return true
}

// Conclude ends the "contemplating" pause of an auto game, moving it from PhaseChecking to
// PhaseFinished.
func (s *Session) Conclude() bool {
	if s.phase != PhaseChecking {
		return false
	}
	s.setPhase(PhaseFinished)
	s.emit(Event{Kind: EventResult, Result: s.Result()})
	return true
}

// Events returns the events emitted since the last call, and clears them.
func (s *Session) Events() []Event {
	events := s.events
	s.events = nil
	return events
}

// Snapshot returns a deep copy of the session state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:              s.id,
		Question:        s.question,
		Phase:           s.phase,
		Mode:            s.mode,
		Speed:           s.speed,
		Groups:          s.board.Groups.Clone(),
		Ordered:         s.board.Ordered.Clone(),
		CurrentGroup:    s.board.Current,
		Step:            s.board.Step,
		CompletedGroups: CompletedPiles(&s.board.Groups),
		OrderedGroups:   CountCompletedOrdered(&s.board.Ordered),
	}
	if s.revealed != nil {
		c := *s.revealed
		snap.Revealed = &c
	}
	if s.mode == ModeManual && s.started {
		m := s.manual
		m.Allowed = slices.Clone(s.manual.Allowed)
		if m.Allowed == nil {
			m.Allowed = []int{}
		}
		if s.manual.Revealed != nil {
			c := *s.manual.Revealed
			m.Revealed = &c
		}
		snap.Manual = &m
	}
	snap.Result = s.Result()
	return snap
}

func (s *Session) commit(out TurnOutcome) {
	s.board = out.Board
	if out.Move != nil {
		s.revealed = nil
		s.emit(Event{Kind: EventMove, Move: out.Move})
		klog.V(2).Infof("session %s: step %d moved %s %d -> %d (home=%t)",
			s.id, out.Move.Step, out.Move.Card, out.Move.From, out.Move.To, out.Move.Home)
	}
	if !s.checkInvariants() {
		return
	}
	if out.Kind != Continue {
		s.finish(out.Result)
	}
}

func (s *Session) revealEvent(rev RevealOutcome) {
	c := rev.Card
	s.revealed = &c
	s.emit(Event{Kind: EventReveal, Card: &c, Group: rev.Source})
}

// finish records the result. Auto games pause in PhaseChecking until Conclude.
func (s *Session) finish(r *Result) {
	if s.phase == PhaseChecking || s.phase == PhaseFinished {
		return
	}
	result := *r
	result.Message = FinalPhrase(result.Success, s.rng)
	result.Question = s.question
	s.result = &result
	s.pending = nil
	s.manual = ManualState{Allowed: []int{}}
	klog.Infof("session %s: game over after %d steps: success=%t reason=%s (%s)",
		s.id, result.Steps, result.Success, result.Reason, result.Detail)
	if s.mode == ModeAuto {
		s.setPhase(PhaseChecking)
		return
	}
	s.setPhase(PhaseFinished)
	s.emit(Event{Kind: EventResult, Result: s.Result()})
}

// checkInvariants verifies the board after a mutation. On violation it panics in strict mode, or
// aborts the session otherwise. It returns whether the board is valid.
func (s *Session) checkInvariants() bool {
	err := s.board.CheckConservation()
	if err == nil {
		return true
	}
	if s.strict {
		panic(fmt.Sprintf("session %s: %v", s.id, err))
	}
	klog.Errorf("session %s: aborting: %v", s.id, err)
	s.finish(internalResult(&s.board, err.Error()))
	if s.phase == PhaseChecking {
		s.Conclude()
	}
	return false
}

func (s *Session) setPhase(p Phase) {
	s.phase = p
	s.emit(Event{Kind: EventPhase, Phase: p})
}

func (s *Session) emit(e Event) {
	s.events = append(s.events, e)
}
