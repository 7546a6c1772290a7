package game

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Version of the game.
// Bumping this number will eventually make clients reload the WASM.
//
// If you set this to an empty string, a random version number will be
// used, and force the reload of the WASM on every restart (the reload
// still only happens after the first page is loaded, so there is a delay).
// This is useful during development.
var Version = "v0.2.0"

// Speed multiplier of the auto driver. Only 1 and 2 are valid.
type Speed int

const (
	SpeedNormal Speed = 1
	SpeedFast   Speed = 2
)

var ErrInvalidSpeed = errors.New("invalid speed, must be 1 or 2")

// ParseSpeed validates a speed multiplier.
func ParseSpeed(v int) (Speed, error) {
	switch Speed(v) {
	case SpeedNormal, SpeedFast:
		return Speed(v), nil
	}
	return 0, fmt.Errorf("%w: %d", ErrInvalidSpeed, v)
}

// Label is the text shown on the speed toggle.
func (s Speed) Label() string {
	if s == SpeedFast {
		return "2x Fast"
	}
	return "1x Normal"
}

// Timings paces the presentation of a game. They never affect the outcome.
type Timings struct {
	CardReveal time.Duration
	Movement   time.Duration
	Step       time.Duration
	Blocking   time.Duration
}

// TimingsFor returns the timings at the given speed: 2x uses 60% of the normal durations, with floors
// so cards remain readable.
func TimingsFor(s Speed) Timings {
	m := 1.0
	if s == SpeedFast {
		m = 0.6
	}
	scaled := func(base, floor float64) time.Duration {
		return time.Duration(math.Max(base*m, floor)) * time.Millisecond
	}
	return Timings{
		CardReveal: scaled(1500, 900),
		Movement:   scaled(1500, 500),
		Step:       scaled(2000, 800),
		Blocking:   scaled(3000, 1500),
	}
}

// TurnPeriod is the delay between two auto turns: pause, reveal then move.
func (t Timings) TurnPeriod() time.Duration {
	return t.Step + t.CardReveal + t.Movement
}
