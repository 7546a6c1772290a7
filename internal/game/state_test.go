package game

import (
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"
)

// runAuto steps an auto session until it leaves PhasePlaying, checking the board after every turn.
func runAuto(t *testing.T, s *Session) {
	t.Helper()
	for i := 0; s.Phase() == PhasePlaying; i++ {
		if i > 10*DeckSize {
			t.Fatalf("Auto game did not end after %d steps", i)
		}
		if !s.Step() {
			t.Fatalf("Step refused while playing")
		}
		if err := s.board.CheckConservation(); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
	if s.Phase() != PhaseChecking {
		t.Fatalf("Auto game should pause in %q, got %q", PhaseChecking, s.Phase())
	}
	if !s.Conclude() {
		t.Fatalf("Conclude refused in checking phase")
	}
}

// runManual plays a manual session by always clicking the first allowed group.
func runManual(t *testing.T, s *Session) {
	t.Helper()
	for i := 0; s.Phase() == PhasePlaying; i++ {
		if i > 20*DeckSize {
			t.Fatalf("Manual game did not end after %d commands", i)
		}
		m := s.Snapshot().Manual
		if m == nil || len(m.Allowed) == 0 {
			t.Fatalf("No allowed group while playing: %+v", m)
		}
		var ok bool
		switch {
		case m.WaitingForReveal:
			ok = s.Reveal(m.Allowed[0])
		case m.WaitingForPlacement:
			ok = s.Place(m.Allowed[0])
		}
		if !ok {
			t.Fatalf("Command refused in state %+v", m)
		}
		if err := s.board.CheckConservation(); err != nil {
			t.Fatalf("Command %d: %v", i, err)
		}
	}
}

func TestOrderedDeckWins(t *testing.T) {
	s := NewSession("ordered", ModeAuto, NewRNG(1), WithStrict(true))
	if err := s.StartWithDeck(NewDeck()); err != nil {
		t.Fatalf("StartWithDeck: %v", err)
	}
	runAuto(t, s)

	r := s.Result()
	if r == nil || !r.Success || r.Reason != ReasonCompleteOrder {
		t.Fatalf("Expected victory, got %+v", r)
	}
	if r.Steps != DeckSize || r.CompletedGroups != NumGroups {
		t.Errorf("Expected %d steps and %d groups, got %+v", DeckSize, NumGroups, r)
	}
	snap := s.Snapshot()
	if snap.Phase != PhaseFinished || snap.OrderedGroups != NumGroups || snap.Ordered.Count() != DeckSize {
		t.Errorf("Unexpected final snapshot: phase=%s ordered=%d", snap.Phase, snap.Ordered.Count())
	}
	if r.Message == "" {
		t.Errorf("Expected a closing phrase")
	}
}

func TestFourKingsInCentralGroupBlocks(t *testing.T) {
	// Swap the four aces dealt to the central group with the four kings.
	deck := NewDeck()
	for j := range 4 {
		a, k := j*NumGroups, j*NumGroups+12
		deck[a], deck[k] = deck[k], deck[a]
	}
	s := NewSession("kings", ModeAuto, NewRNG(1))
	if err := s.StartWithDeck(deck); err != nil {
		t.Fatalf("StartWithDeck: %v", err)
	}
	before := s.Snapshot()
	if !s.Step() {
		t.Fatalf("Step refused")
	}
	if s.Phase() != PhaseChecking {
		t.Fatalf("Expected checking phase, got %s", s.Phase())
	}
	s.Conclude()
	r := s.Result()
	if r.Success || r.Reason != ReasonBlocked || r.Group != 0 || r.Rank != King || r.Steps != 0 {
		t.Errorf("Unexpected result %+v", r)
	}
	after := s.Snapshot()
	if !reflect.DeepEqual(before.Groups, after.Groups) || !reflect.DeepEqual(before.Ordered, after.Ordered) {
		t.Errorf("Blocking mutated the board")
	}
	if after.Revealed == nil || after.Revealed.ID != "spades-13" {
		t.Errorf("Blocking card should stay revealed, got %+v", after.Revealed)
	}
}

func TestConservationOverManyGames(t *testing.T) {
	wins := 0
	for seed := range uint64(200) {
		s := NewSession("random", ModeAuto, NewRNG(seed), WithStrict(true))
		if err := s.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
		runAuto(t, s)
		r := s.Result()
		if r == nil {
			t.Fatalf("Seed %d: no result", seed)
		}
		switch r.Reason {
		case ReasonCompleteOrder:
			wins++
			if !r.Success {
				t.Errorf("Seed %d: victory without success", seed)
			}
		case ReasonBlocked, ReasonTargetExhausted, ReasonIncompleteOrder:
			if r.Success {
				t.Errorf("Seed %d: loss with success", seed)
			}
		default:
			t.Errorf("Seed %d: unexpected reason %s", seed, r.Reason)
		}
		if r.Steps != s.Snapshot().Step {
			t.Errorf("Seed %d: result steps %d, board steps %d", seed, r.Steps, s.Snapshot().Step)
		}
	}
	t.Logf("%d wins out of 200 games", wins)
}

func TestManualAutoEquivalence(t *testing.T) {
	for seed := range uint64(30) {
		deck := Shuffle(NewDeck(), NewRNG(seed))

		auto := NewSession("auto", ModeAuto, NewRNG(100+seed), WithStrict(true))
		if err := auto.StartWithDeck(deck); err != nil {
			t.Fatal(err)
		}
		runAuto(t, auto)

		manual := NewSession("manual", ModeManual, NewRNG(100+seed), WithStrict(true))
		if err := manual.StartWithDeck(deck); err != nil {
			t.Fatal(err)
		}
		runManual(t, manual)

		if manual.Phase() != PhaseFinished {
			t.Fatalf("Seed %d: manual game ended in phase %s", seed, manual.Phase())
		}
		if !reflect.DeepEqual(auto.Result(), manual.Result()) {
			t.Errorf("Seed %d: results differ: auto=%+v manual=%+v", seed, auto.Result(), manual.Result())
		}
		a, m := auto.Snapshot(), manual.Snapshot()
		if !reflect.DeepEqual(a.Groups, m.Groups) || !reflect.DeepEqual(a.Ordered, m.Ordered) {
			t.Errorf("Seed %d: final boards differ", seed)
		}
	}
}

func TestManualCommandsOutOfTurnAreIgnored(t *testing.T) {
	s := NewSession("manual", ModeManual, NewRNG(5))
	if s.Reveal(0) {
		t.Errorf("Reveal accepted before start")
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != ErrAlreadyStarted {
		t.Errorf("Second Start: got %v, want ErrAlreadyStarted", err)
	}
	snap := s.Snapshot()
	if snap.Manual == nil || !snap.Manual.WaitingForReveal || !slices.Equal(snap.Manual.Allowed, []int{0}) {
		t.Fatalf("Manual game should start waiting for a reveal of group 0: %+v", snap.Manual)
	}
	_ = s.Events()

	if s.Place(0) {
		t.Errorf("Place accepted while waiting for a reveal")
	}
	if s.Reveal(3) {
		t.Errorf("Reveal accepted on a group that is not allowed")
	}
	if s.Step() {
		t.Errorf("Auto step accepted in a manual game")
	}
	if !reflect.DeepEqual(snap, s.Snapshot()) {
		t.Errorf("Ignored commands changed the session")
	}
	if len(s.Events()) != 0 {
		t.Errorf("Ignored commands emitted events")
	}

	if !s.Reveal(0) {
		t.Fatalf("Reveal of group 0 refused")
	}
	if s.Phase() != PhasePlaying {
		t.Skipf("Game ended on the first reveal")
	}
	m := s.Snapshot().Manual
	if !m.WaitingForPlacement || m.Revealed == nil || !m.Revealed.FaceUp {
		t.Fatalf("Expected a revealed card awaiting placement: %+v", m)
	}
	target := TargetGroupIndex(*m.Revealed)
	if !slices.Equal(m.Allowed, []int{target, OrderedArea}) {
		t.Errorf("Allowed after reveal = %v, want [%d %d]", m.Allowed, target, OrderedArea)
	}
	if s.Reveal(0) {
		t.Errorf("Second reveal accepted while waiting for placement")
	}
	wrong := (target + 1) % NumGroups
	if s.Place(wrong) {
		t.Errorf("Place accepted on group %d, allowed %v", wrong, m.Allowed)
	}

	// Clicking the ordered area places the card exactly like clicking its group.
	if !s.Place(OrderedArea) {
		t.Fatalf("Place on the ordered area refused")
	}
	snap = s.Snapshot()
	if snap.Step != 1 || snap.CurrentGroup != target {
		t.Errorf("Expected step 1 on group %d, got step %d on group %d", target, snap.Step, snap.CurrentGroup)
	}
	if s.Phase() == PhasePlaying && !slices.Equal(snap.Manual.Allowed, []int{target}) {
		t.Errorf("Allowed after placement = %v, want [%d]", snap.Manual.Allowed, target)
	}
}

func TestSnapshotIsIdempotentAndDetached(t *testing.T) {
	s := NewSession("snap", ModeAuto, NewRNG(9))
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	a, b := s.Snapshot(), s.Snapshot()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("Two snapshots without mutation differ")
	}
	a.Groups[0][0] = MustCard(Hearts, 1)
	a.Groups[1] = nil
	if !reflect.DeepEqual(b, s.Snapshot()) {
		t.Errorf("Mutating a snapshot changed the session")
	}
}

func TestSessionEvents(t *testing.T) {
	s := NewSession("events", ModeAuto, NewRNG(2))
	if err := s.StartWithDeck(NewDeck()); err != nil {
		t.Fatal(err)
	}
	var phases []Phase
	for _, e := range s.Events() {
		if e.Kind == EventPhase {
			phases = append(phases, e.Phase)
		}
	}
	if !slices.Equal(phases, []Phase{PhaseShuffling, PhaseDistributing, PhasePlaying}) {
		t.Errorf("Unexpected phase events %v", phases)
	}

	s.Step()
	events := s.Events()
	if len(events) != 2 || events[0].Kind != EventReveal || events[1].Kind != EventMove {
		t.Fatalf("Expected reveal and move events, got %+v", events)
	}
	if events[0].Card.ID != "spades-1" || events[0].Group != 0 || events[1].Move.To != 1 {
		t.Errorf("Unexpected events %+v %+v", events[0], events[1].Move)
	}
	if len(s.Events()) != 0 {
		t.Errorf("Events were not drained")
	}

	runAuto(t, s)
	events = s.Events()
	last := events[len(events)-1]
	if last.Kind != EventResult || last.Result == nil || !last.Result.Success {
		t.Errorf("Expected the final event to carry the result, got %+v", last)
	}
}

func TestInvariantViolation(t *testing.T) {
	start := func(strict bool) *Session {
		s := NewSession("broken", ModeAuto, NewRNG(4), WithStrict(strict))
		if err := s.StartWithDeck(NewDeck()); err != nil {
			t.Fatal(err)
		}
		// Lose a card of a pile that is not drawn from next.
		s.board.Groups[7] = s.board.Groups[7][1:]
		return s
	}

	t.Run("lenient", func(t *testing.T) {
		s := start(false)
		s.Step()
		if s.Phase() != PhaseFinished {
			t.Fatalf("Expected the session to be aborted, phase %s", s.Phase())
		}
		if r := s.Result(); r.Success || r.Reason != ReasonInternalInconsistency {
			t.Errorf("Unexpected result %+v", r)
		}
		if s.Step() {
			t.Errorf("Step accepted after abort")
		}
	})

	t.Run("strict", func(t *testing.T) {
		s := start(true)
		defer func() {
			if recover() == nil {
				t.Errorf("Expected a panic in strict mode")
			}
		}()
		s.Step()
	})
}

func TestTimings(t *testing.T) {
	normal, fast := TimingsFor(SpeedNormal), TimingsFor(SpeedFast)
	if normal.CardReveal.Milliseconds() != 1500 || normal.Step.Milliseconds() != 2000 || normal.Blocking.Milliseconds() != 3000 {
		t.Errorf("Unexpected normal timings %+v", normal)
	}
	if fast.CardReveal.Milliseconds() != 900 || fast.Movement.Milliseconds() != 900 ||
		fast.Step.Milliseconds() != 1200 || fast.Blocking.Milliseconds() != 1800 {
		t.Errorf("Unexpected fast timings %+v", fast)
	}
	if fast.TurnPeriod() >= normal.TurnPeriod() {
		t.Errorf("Fast should be faster")
	}
	if _, err := ParseSpeed(3); err == nil {
		t.Errorf("Speed 3 should be rejected")
	}
}

func TestParseQuestion(t *testing.T) {
	for _, tc := range []struct {
		in, want string
		err      error
	}{
		{"", "", nil},
		{"  Will it rain tomorrow?\n", "Will it rain tomorrow?", nil},
		{strings.Repeat("ñ", MaxQuestionLength), strings.Repeat("ñ", MaxQuestionLength), nil},
		{strings.Repeat("?", MaxQuestionLength+1), "", ErrQuestionTooLong},
	} {
		got, err := ParseQuestion(tc.in)
		if !errors.Is(err, tc.err) || got != tc.want {
			t.Errorf("ParseQuestion(%q) = %q, %v; want %q, %v", tc.in, got, err, tc.want, tc.err)
		}
	}
}

func TestQuestionReachesTheResult(t *testing.T) {
	const question = "Will the bridge hold?"
	s := NewSession("question", ModeManual, NewRNG(5), WithStrict(true), WithQuestion(question))
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.Snapshot().Question; got != question {
		t.Errorf("Snapshot question = %q, want %q", got, question)
	}
	runManual(t, s)
	r := s.Result()
	if r == nil || r.Question != question {
		t.Errorf("Result should carry the question, got %+v", r)
	}
}

func TestPhaseMessage(t *testing.T) {
	rng := NewRNG(3)
	for _, phase := range []Phase{PhaseShuffling, PhaseDistributing, PhaseChecking} {
		if msg := PhaseMessage(phase, rng); msg == "" || slices.Contains(OraclePhrases, msg) {
			t.Errorf("Phase %s should have its own message, got %q", phase, msg)
		}
	}
	for range 20 {
		if msg := PhaseMessage(PhasePlaying, rng); !slices.Contains(OraclePhrases, msg) {
			t.Fatalf("Playing message %q is not one of the oracle phrases", msg)
		}
	}
}
