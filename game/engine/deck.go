package engine

import (
	"fmt"
	"math/rand/v2"
)

// BuildDeck deals a shuffled deck for the given board size.
//
// Without custom images the faces come from DefaultIcons: the icons are
// shuffled, the first NumPairs are kept, duplicated and shuffled again.
// Custom images must supply exactly one image per pair; each image becomes
// both the identifier and the image URL of its two cards.
func BuildDeck(size BoardSize, customImages []string, rng *rand.Rand) ([]MemoryCard, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBoardSize, int(size))
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	pairs := size.NumPairs()
	var cards []MemoryCard

	if customImages == nil {
		if pairs > len(DefaultIcons) {
			return nil, fmt.Errorf("board %s needs %d icons, only %d available", size, pairs, len(DefaultIcons))
		}
		icons := append([]string(nil), DefaultIcons...)
		rng.Shuffle(len(icons), func(i, j int) { icons[i], icons[j] = icons[j], icons[i] })
		icons = icons[:pairs]

		cards = make([]MemoryCard, 0, pairs*2)
		for _, icon := range append(icons, icons...) {
			cards = append(cards, MemoryCard{Identifier: icon})
		}
	} else {
		if len(customImages) != pairs {
			return nil, fmt.Errorf("%w: board %s needs %d images, got %d", ErrInvalidCardSet, size, pairs, len(customImages))
		}
		cards = make([]MemoryCard, 0, pairs*2)
		for _, image := range append(append([]string(nil), customImages...), customImages...) {
			cards = append(cards, MemoryCard{Identifier: image, ImageURL: image})
		}
	}

	rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	return cards, nil
}
