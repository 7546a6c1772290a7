package game

import "time"

// OraclePhrases are whispered by the oracle while the cards move. Adapters rotate them every
// PhraseInterval during PhasePlaying.
var OraclePhrases = []string{
	"The paths of fate are mysterious.",
	"Your wish sails among the shadows of chance.",
	"The cards murmur an ancient secret.",
	"Patience… the oracle speaks in its own time.",
	"Today fate may smile on you… or not.",
	"The stars whisper secrets to the cards.",
	"Time reveals what the heart desires.",
	"Each card carries a fragment of your destiny.",
	"Fortune dances to the rhythm of the elements.",
	"The numbers speak an ancestral language.",
	"Your question echoes in hidden dimensions.",
	"Chance is just another form of magic.",
}

// PhraseInterval is how long an oracle phrase stays up before the next one.
const PhraseInterval = 4 * time.Second

var phaseMessages = map[Phase]string{
	PhaseShuffling:    "The cards dance in the wind of destiny...",
	PhaseDistributing: "The thirteen sacred circles prepare to receive the wisdom...",
	PhaseChecking:     "The oracle contemplates the order of the cards...",
}

// PhaseMessage is the oracle's message for a phase: a fixed line for shuffling, distributing and
// checking, a random one of OraclePhrases otherwise.
func PhaseMessage(phase Phase, rng RNG) string {
	if msg, found := phaseMessages[phase]; found {
		return msg
	}
	return RandomPhrase(OraclePhrases, rng)
}

var (
	successPhrases = []string{
		"The stars have aligned in your favor!",
		"The oracle smiles... your destiny is prosperous.",
		"The gods of chance have heard your call.",
		"Your energy has ordered the universal chaos.",
		"Fortune blesses you at this moment!",
	}
	failurePhrases = []string{
		"Fate keeps its secrets for now.",
		"The cosmic forces are not aligned... yet.",
		"The oracle needs more time to reveal the truth.",
		"Your path calls for more reflection and patience.",
		"Not all is lost... the universe has other plans.",
	}
)

// FinalPhrase picks the closing phrase of a reading.
func FinalPhrase(success bool, rng RNG) string {
	phrases := failurePhrases
	if success {
		phrases = successPhrases
	}
	return RandomPhrase(phrases, rng)
}

// RandomPhrase picks one of the phrases, or "" if there are none.
func RandomPhrase(phrases []string, rng RNG) string {
	if len(phrases) == 0 {
		return ""
	}
	return phrases[rng.IntN(len(phrases))]
}
