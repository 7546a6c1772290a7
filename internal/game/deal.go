package game

// NumGroups is the number of positional groups: 0 is the central (King) group, 1..12 the clock.
const NumGroups = 13

// CardsPerGroup is the number of cards dealt to each group, and the size of a complete ordered group.
const CardsPerGroup = 4

// Groups holds one stack of cards per position. The last card of a stack is its top.
type Groups [NumGroups][]Card

// Distribute deals the deck round-robin: card i goes to group i mod 13, preserving deck order within
// each group. Every dealt card is face down.
func Distribute(deck Deck) Groups {
	var groups Groups
	for i := range groups {
		groups[i] = make([]Card, 0, CardsPerGroup)
	}
	for i, c := range deck {
		groups[i%NumGroups] = append(groups[i%NumGroups], c.Hidden())
	}
	return groups
}

// Clone returns a deep copy of the groups.
func (g *Groups) Clone() Groups {
	var out Groups
	for i, stack := range g {
		out[i] = append(make([]Card, 0, len(stack)+1), stack...)
	}
	return out
}

// Count returns the total number of cards across all groups.
func (g *Groups) Count() int {
	total := 0
	for _, stack := range g {
		total += len(stack)
	}
	return total
}
