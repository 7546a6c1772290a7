package game

import (
	"math/rand/v2"
	"time"
)

// RNG is the source of randomness used to shuffle. *rand.Rand from math/rand/v2 implements it.
type RNG interface {
	IntN(n int) int
	Float64() float64
}

// NewRNG returns a reproducible RNG: the same seed always produces the same shuffles.
func NewRNG(seed uint64) RNG {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// SystemRNG returns an RNG seeded from the system clock and the runtime's random source.
func SystemRNG() RNG {
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
}

const (
	riffleRounds   = 3
	overhandRounds = 2

	// Each riffle draw favors one half by up to ±riffleJitter around an even coin.
	riffleJitter = 0.15

	maxOverhandChunk = 6
)

// Shuffle mimics a casino shuffle: three riffles, two overhand passes and a final cut.
// The returned deck is a permutation of the input; the input is not modified.
func Shuffle(deck Deck, rng RNG) Deck {
	shuffled := deck.Clone()
	for range riffleRounds {
		shuffled = Riffle(shuffled, rng)
	}
	for range overhandRounds {
		shuffled = Overhand(shuffled, rng)
	}
	return Cut(shuffled, rng)
}

// Riffle splits the deck at its midpoint and interleaves both halves, like an imperfect human riffle:
// at every draw the chance of taking from the left half is 0.5 perturbed by up to ±0.15.
func Riffle(deck Deck, rng RNG) Deck {
	mid := len(deck) / 2
	left, right := deck[:mid], deck[mid:]
	result := make(Deck, 0, len(deck))

	var l, r int
	for l < len(left) || r < len(right) {
		leftChance := 0.5 + (rng.Float64()-0.5)*2*riffleJitter
		if l < len(left) && (r >= len(right) || rng.Float64() < leftChance) {
			result = append(result, left[l])
			l++
		} else {
			result = append(result, right[r])
			r++
		}
	}
	return result
}

// Overhand repeatedly peels 1 to 6 cards off the front of the remaining deck and puts them on top of
// the result, so the last chunk peeled ends up at the very front.
func Overhand(deck Deck, rng RNG) Deck {
	result := make(Deck, len(deck))
	remaining := deck
	end := len(result)
	for len(remaining) > 0 {
		size := min(rng.IntN(maxOverhandChunk)+1, len(remaining))
		// Chunks fill the result from the back: the first chunk peeled lands last.
		copy(result[end-size:end], remaining[:size])
		end -= size
		remaining = remaining[size:]
	}
	return result
}

// Cut picks a cut point uniformly in [0.3n, 0.7n) and moves the cards before it to the end.
func Cut(deck Deck, rng RNG) Deck {
	n := len(deck)
	if n == 0 {
		return Deck{}
	}
	lo := n * 3 / 10
	span := n * 4 / 10
	cut := lo
	if span > 0 {
		cut += rng.IntN(span)
	}
	result := make(Deck, 0, n)
	result = append(result, deck[cut:]...)
	return append(result, deck[:cut]...)
}
