package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidSuit = errors.New("invalid suit")
	ErrInvalidRank = errors.New("invalid rank")
)

// Suit of a card. It is a closed set: only the four constants below are valid.
type Suit int

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

// Suits in the order they are used to build a new deck.
var Suits = [4]Suit{Hearts, Diamonds, Clubs, Spades}

func (s Suit) Valid() bool {
	return s >= Hearts && s <= Spades
}

func (s Suit) String() string {
	switch s {
	case Hearts:
		return "hearts"
	case Diamonds:
		return "diamonds"
	case Clubs:
		return "clubs"
	case Spades:
		return "spades"
	default:
		return "?"
	}
}

// Symbol returns the unicode suit symbol, used by the frontend.
func (s Suit) Symbol() string {
	switch s {
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Spades:
		return "♠"
	default:
		return "?"
	}
}

// ParseSuit is the inverse of Suit.String.
func ParseSuit(name string) (Suit, error) {
	for _, s := range Suits {
		if s.String() == strings.ToLower(name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSuit, name)
}

func (s Suit) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSuit, int(s))
	}
	return json.Marshal(s.String())
}

func (s *Suit) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSuit(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Rank of a card, from 1 (Ace) to 13 (King).
type Rank int

const (
	Ace   Rank = 1
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
)

func (r Rank) Valid() bool {
	return r >= Ace && r <= King
}

// Display returns the short label printed on the card: A, 2..10, J, Q, K.
func (r Rank) Display() string {
	switch r {
	case Ace:
		return "A"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	}
	if r.Valid() {
		return strconv.Itoa(int(r))
	}
	return "?"
}

// Card is an immutable playing card. Two cards are the same card iff their IDs are equal.
type Card struct {
	ID     string `json:"id"`
	Suit   Suit   `json:"suit"`
	Rank   Rank   `json:"rank"`
	FaceUp bool   `json:"face_up"`
}

// NewCard creates a face down card, validating the suit and rank.
func NewCard(suit Suit, rank Rank) (Card, error) {
	if !suit.Valid() {
		return Card{}, fmt.Errorf("%w: %d", ErrInvalidSuit, int(suit))
	}
	if !rank.Valid() {
		return Card{}, fmt.Errorf("%w: %d", ErrInvalidRank, int(rank))
	}
	return Card{
		ID:   CardID(suit, rank),
		Suit: suit,
		Rank: rank,
	}, nil
}

// MustCard is like NewCard but panics on invalid input. Meant for tests and constants.
func MustCard(suit Suit, rank Rank) Card {
	c, err := NewCard(suit, rank)
	if err != nil {
		panic(err)
	}
	return c
}

// CardID is the identity of the card of the given suit and rank, e.g. "hearts-1".
func CardID(suit Suit, rank Rank) string {
	return fmt.Sprintf("%s-%d", suit, int(rank))
}

// Revealed returns a face up copy of the card.
func (c Card) Revealed() Card {
	c.FaceUp = true
	return c
}

// Hidden returns a face down copy of the card.
func (c Card) Hidden() Card {
	c.FaceUp = false
	return c
}

func (c Card) String() string {
	return c.Rank.Display() + c.Suit.Symbol()
}

// Phase of a game session.
type Phase string

const (
	PhaseShuffling    Phase = "shuffling"
	PhaseDistributing Phase = "distributing"
	PhasePlaying      Phase = "playing"
	PhaseChecking     Phase = "checking" // Contemplating the final result (auto mode only).
	PhaseFinished     Phase = "finished"
)

// Mode selects which driver moves the cards.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

var ErrInvalidMode = errors.New("invalid mode")

// ParseMode accepts "auto" and "manual". An empty string defaults to auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeAuto, "":
		return ModeAuto, nil
	case ModeManual:
		return ModeManual, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// MaxQuestionLength is the maximum number of characters of a question.
const MaxQuestionLength = 200

var ErrQuestionTooLong = errors.New("question longer than 200 characters")

// ParseQuestion trims the question asked to the oracle. A question is optional, so the empty string
// is valid.
func ParseQuestion(q string) (string, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) > MaxQuestionLength {
		return "", ErrQuestionTooLong
	}
	return q, nil
}
