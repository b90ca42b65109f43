package cards

import "fmt"

const groupFilePrefix = "TAG-"

// Group is a contiguous range of card indices sharing one video file.
type Group struct {
	Index     int
	FirstCard int
	LastCard  int
	FileName  string
}

// Contains reports whether cardIndex belongs to the group.
func (g Group) Contains(cardIndex int) bool {
	return cardIndex >= g.FirstCard && cardIndex <= g.LastCard
}

// ResolveGroup buckets a 1-based card index into groups of cardsPerGroup cards.
func ResolveGroup(cardIndex, cardsPerGroup int) (Group, error) {
	if cardsPerGroup <= 0 {
		return Group{}, fmt.Errorf("%w: cards per group must be positive, got %d", ErrBadConfiguration, cardsPerGroup)
	}
	if cardIndex <= 0 {
		return Group{}, fmt.Errorf("%w: card index must be positive, got %d", ErrBadConfiguration, cardIndex)
	}

	groupIndex := (cardIndex + cardsPerGroup - 1) / cardsPerGroup
	return Group{
		Index:     groupIndex,
		FirstCard: (groupIndex-1)*cardsPerGroup + 1,
		LastCard:  groupIndex * cardsPerGroup,
		FileName:  fmt.Sprintf("%s%d.mp4", groupFilePrefix, groupIndex),
	}, nil
}
