package game

import (
	"errors"
	"fmt"
)

// DeckSize is the number of cards in a standard deck.
const DeckSize = 52

var ErrInvalidDeck = errors.New("invalid deck")

// Deck is an ordered sequence of cards. The first card is the one dealt first.
type Deck []Card

// NewDeck creates the standard 52 card deck, suit-major (hearts, diamonds, clubs, spades) and
// rank-ascending within each suit. All cards are face down.
func NewDeck() Deck {
	deck := make(Deck, 0, DeckSize)
	for _, suit := range Suits {
		for rank := Ace; rank <= King; rank++ {
			deck = append(deck, MustCard(suit, rank))
		}
	}
	return deck
}

// Validate checks that the deck holds each of the 52 suit/rank combinations exactly once.
func (d Deck) Validate() error {
	if len(d) != DeckSize {
		return fmt.Errorf("%w: %d cards, expected %d", ErrInvalidDeck, len(d), DeckSize)
	}
	seen := make(map[string]bool, DeckSize)
	for i, c := range d {
		if !c.Suit.Valid() || !c.Rank.Valid() || c.ID != CardID(c.Suit, c.Rank) {
			return fmt.Errorf("%w: malformed card %+v at position %d", ErrInvalidDeck, c, i)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate card %s at position %d", ErrInvalidDeck, c.ID, i)
		}
		seen[c.ID] = true
	}
	return nil
}

// Clone returns a copy of the deck that shares no memory with the original.
func (d Deck) Clone() Deck {
	return append(Deck(nil), d...)
}
