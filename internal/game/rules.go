package game

// TargetGroupIndex is the group a card is sent to: Kings to the central group 0, Aces to 1,
// every other rank to the group of the same number.
func TargetGroupIndex(c Card) int {
	switch c.Rank {
	case King:
		return 0
	case Ace:
		return 1
	default:
		return int(c.Rank)
	}
}

// ExpectedRank is the rank a group collects: King for the central group, the index otherwise.
func ExpectedRank(groupIndex int) Rank {
	if groupIndex == 0 {
		return King
	}
	return Rank(groupIndex)
}

// IsHomeMove reports whether the card belongs to the group it is being placed on.
func IsHomeMove(c Card, groupIndex int) bool {
	return c.Rank == ExpectedRank(groupIndex)
}

// CountHomeRank counts the cards of a pile whose rank is the one its group collects.
func CountHomeRank(pile []Card, groupIndex int) int {
	expected := ExpectedRank(groupIndex)
	n := 0
	for _, c := range pile {
		if c.Rank == expected {
			n++
		}
	}
	return n
}

// IsBlocked reports the dead end: the target pile already holds 3 or more cards of the rank its
// group collects and the drawn card is of that rank too.
func IsBlocked(c Card, targetPile []Card) bool {
	target := TargetGroupIndex(c)
	return c.Rank == ExpectedRank(target) && CountHomeRank(targetPile, target) >= CardsPerGroup-1
}

// IsTotalVictory reports whether every ordered group holds its 4 cards.
func IsTotalVictory(ordered *Groups) bool {
	total := 0
	for _, g := range ordered {
		if len(g) != CardsPerGroup {
			return false
		}
		total += len(g)
	}
	return total == DeckSize
}

// CountCompletedOrdered counts the ordered groups holding 4 cards.
func CountCompletedOrdered(ordered *Groups) int {
	n := 0
	for _, g := range ordered {
		if len(g) == CardsPerGroup {
			n++
		}
	}
	return n
}

// CompletedPiles lists the piles holding exactly 4 cards, all of the rank their group collects.
// This is the "visual" completion of a pile, unrelated to the ordered groups.
func CompletedPiles(groups *Groups) []int {
	completed := []int{}
	for i, pile := range groups {
		if len(pile) == CardsPerGroup && CountHomeRank(pile, i) == CardsPerGroup {
			completed = append(completed, i)
		}
	}
	return completed
}

// NextGroupWithCards scans forward from current (wrapping around, current itself last) for a
// non-empty pile.
func NextGroupWithCards(groups *Groups, current int) (int, bool) {
	next := current
	for range NumGroups {
		next = (next + 1) % NumGroups
		if len(groups[next]) > 0 {
			return next, true
		}
	}
	return -1, false
}
