package game

import (
	"errors"
	"fmt"
)

// ErrInvariant is returned when the board no longer holds exactly the 52 cards of the deck.
var ErrInvariant = errors.New("board invariant violated")

// Board is the live card layout of a game: the piles still in play, the ordered groups, the pile
// currently drawn from and the number of moves committed so far.
type Board struct {
	Groups  Groups
	Ordered Groups
	Current int
	Step    int
}

// NewBoard deals the deck into a fresh board, drawing first from the central group.
func NewBoard(deck Deck) Board {
	b := Board{Groups: Distribute(deck)}
	for i := range b.Ordered {
		b.Ordered[i] = make([]Card, 0, CardsPerGroup)
	}
	return b
}

// Clone returns a deep copy of the board.
func (b *Board) Clone() Board {
	return Board{
		Groups:  b.Groups.Clone(),
		Ordered: b.Ordered.Clone(),
		Current: b.Current,
		Step:    b.Step,
	}
}

// Remaining is the number of cards still in the piles.
func (b *Board) Remaining() int {
	return b.Groups.Count()
}

// CheckConservation verifies that piles and ordered groups together hold each card of the deck
// exactly once, and that ordered groups only hold cards of their own rank.
func (b *Board) CheckConservation() error {
	total := b.Groups.Count() + b.Ordered.Count()
	if total != DeckSize {
		return fmt.Errorf("%w: %d cards on the board, expected %d", ErrInvariant, total, DeckSize)
	}
	seen := make(map[string]bool, DeckSize)
	for _, groups := range []*Groups{&b.Groups, &b.Ordered} {
		for _, stack := range groups {
			for _, c := range stack {
				if seen[c.ID] {
					return fmt.Errorf("%w: card %s appears twice", ErrInvariant, c.ID)
				}
				seen[c.ID] = true
			}
		}
	}
	for i, stack := range b.Ordered {
		if len(stack) > CardsPerGroup || CountHomeRank(stack, i) != len(stack) {
			return fmt.Errorf("%w: ordered group %d holds %v", ErrInvariant, i, stack)
		}
	}
	if b.Current < 0 || b.Current >= NumGroups {
		return fmt.Errorf("%w: current group %d out of range", ErrInvariant, b.Current)
	}
	return nil
}
