package game

import "fmt"

// Reason tags the way a game ended.
type Reason string

const (
	ReasonCompleteOrder         Reason = "complete-order"
	ReasonBlocked               Reason = "blocked"
	ReasonIncompleteOrder       Reason = "incomplete-order"
	ReasonTargetExhausted       Reason = "target-exhausted"
	ReasonInternalInconsistency Reason = "internal-inconsistency"
)

// Result is the final payload of a game.
type Result struct {
	Success         bool   `json:"success"`
	Reason          Reason `json:"reason"`
	Detail          string `json:"detail"`
	Message         string `json:"message,omitempty"`
	Question        string `json:"question,omitempty"`
	Steps           int    `json:"steps"`
	CompletedGroups int    `json:"completed_groups"`

	// Group and Rank that caused a blocked or target-exhausted loss, -1 and 0 otherwise.
	Group int  `json:"group"`
	Rank  Rank `json:"rank,omitempty"`
}

// OutcomeKind is the variant of a turn outcome.
type OutcomeKind int

const (
	Continue OutcomeKind = iota
	Win
	Loss
)

func (k OutcomeKind) String() string {
	switch k {
	case Continue:
		return "continue"
	case Win:
		return "win"
	case Loss:
		return "loss"
	default:
		return "?"
	}
}

// Move describes one committed card movement.
type Move struct {
	Card Card `json:"card"`
	From int  `json:"from"`
	To   int  `json:"to"`
	Home bool `json:"home"` // Card went to the ordered group To, otherwise under pile To.
	Step int  `json:"step"` // Step count after the move.
}

// RevealOutcome is the result of the first half of a turn: finding the pile to draw from and
// looking at its top card.
//
// Kind is Continue when the card can be placed; Win or Loss (with Result) when the game ended
// before any card moved.
type RevealOutcome struct {
	Kind   OutcomeKind
	Source int
	Card   Card
	Target int
	Home   bool
	Result *Result
}

// TurnOutcome is the result of a full turn. Board is always a fresh copy: the input board is never
// modified.
type TurnOutcome struct {
	Kind   OutcomeKind
	Board  Board
	Reveal RevealOutcome
	Move   *Move
	Result *Result
}

// Reveal runs the first half of a turn (steps 1 to 4) without modifying the board.
func Reveal(b *Board) RevealOutcome {
	source := b.Current
	if len(b.Groups[source]) == 0 {
		next, found := NextGroupWithCards(&b.Groups, source)
		if !found {
			if b.Remaining() > 0 {
				return RevealOutcome{Kind: Loss, Source: source, Result: internalResult(b,
					fmt.Sprintf("no pile with cards found while %d cards remain", b.Remaining()))}
			}
			if IsTotalVictory(&b.Ordered) {
				return RevealOutcome{Kind: Win, Source: source, Result: victoryResult(b)}
			}
			return RevealOutcome{Kind: Loss, Source: source, Result: &Result{
				Reason:          ReasonIncompleteOrder,
				Detail:          "no cards remaining, incomplete order",
				Steps:           b.Step,
				CompletedGroups: CountCompletedOrdered(&b.Ordered),
				Group:           -1,
			}}
		}
		source = next
	}

	pile := b.Groups[source]
	top := pile[len(pile)-1].Revealed()
	target := TargetGroupIndex(top)
	rev := RevealOutcome{
		Kind:   Continue,
		Source: source,
		Card:   top,
		Target: target,
		Home:   IsHomeMove(top, target),
	}
	if IsBlocked(top, b.Groups[target]) {
		rank := ExpectedRank(target)
		count := CountHomeRank(b.Groups[target], target)
		rev.Kind = Loss
		rev.Result = &Result{
			Reason:          ReasonBlocked,
			Detail:          fmt.Sprintf("group %d blocked with %d cards of rank %s", target, count, rank.Display()),
			Steps:           b.Step,
			CompletedGroups: CountCompletedOrdered(&b.Ordered),
			Group:           target,
			Rank:            rank,
		}
	}
	return rev
}

// Apply runs the second half of a turn (steps 5 to 7) for a revealed card that can be placed.
// It returns the new board and, if the move ended the game, the result.
func Apply(b *Board, rev RevealOutcome) TurnOutcome {
	next := b.Clone()
	pile := next.Groups[rev.Source]
	card := pile[len(pile)-1]
	next.Groups[rev.Source] = pile[:len(pile)-1]

	if rev.Home {
		next.Ordered[rev.Target] = append(next.Ordered[rev.Target], card.Revealed())
	} else {
		next.Groups[rev.Target] = append([]Card{card.Hidden()}, next.Groups[rev.Target]...)
	}
	next.Step++
	next.Current = rev.Target

	out := TurnOutcome{
		Kind:   Continue,
		Board:  next,
		Reveal: rev,
		Move: &Move{
			Card: card.Revealed(),
			From: rev.Source,
			To:   rev.Target,
			Home: rev.Home,
			Step: next.Step,
		},
	}
	if !rev.Home {
		return out
	}

	// Victory takes priority over an exhausted target: the 52nd card always wins.
	if len(next.Ordered[rev.Target]) == CardsPerGroup && IsTotalVictory(&next.Ordered) {
		out.Kind = Win
		out.Result = victoryResult(&next)
		return out
	}
	if len(next.Groups[rev.Target]) == 0 {
		out.Kind = Loss
		out.Result = &Result{
			Reason:          ReasonTargetExhausted,
			Detail:          fmt.Sprintf("group %d has no card to continue the chain", rev.Target),
			Steps:           next.Step,
			CompletedGroups: CountCompletedOrdered(&next.Ordered),
			Group:           rev.Target,
			Rank:            ExpectedRank(rev.Target),
		}
	}
	return out
}

// ResolveTurn runs a full turn: reveal, then apply when the revealed card can be placed.
func ResolveTurn(b *Board) TurnOutcome {
	rev := Reveal(b)
	if rev.Kind != Continue {
		next := b.Clone()
		next.Current = rev.Source
		return TurnOutcome{Kind: rev.Kind, Board: next, Reveal: rev, Result: rev.Result}
	}
	return Apply(b, rev)
}

func victoryResult(b *Board) *Result {
	return &Result{
		Success:         true,
		Reason:          ReasonCompleteOrder,
		Detail:          "all groups completed in order",
		Steps:           b.Step,
		CompletedGroups: CountCompletedOrdered(&b.Ordered),
		Group:           -1,
	}
}

func internalResult(b *Board, detail string) *Result {
	return &Result{
		Reason:          ReasonInternalInconsistency,
		Detail:          detail,
		Steps:           b.Step,
		CompletedGroups: CountCompletedOrdered(&b.Ordered),
		Group:           -1,
	}
}
