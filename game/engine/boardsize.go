package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BoardSize enumerates the fixed grid dimensions of a memory board
type BoardSize int

const (
	Easy BoardSize = iota
	Medium
	Hard
)

var (
	ErrUnknownBoardSize = errors.New("unknown board size")
)

type boardSpec struct {
	name     string
	numCards int
	width    int
}

var boardSpecs = map[BoardSize]boardSpec{
	Easy:   {name: "easy", numCards: 8, width: 2},
	Medium: {name: "medium", numCards: 18, width: 3},
	Hard:   {name: "hard", numCards: 24, width: 4},
}

// AllBoardSizes returns every board size from smallest to largest
func AllBoardSizes() []BoardSize {
	return []BoardSize{Easy, Medium, Hard}
}

// NumCards returns the number of cards on the board
func (b BoardSize) NumCards() int {
	return boardSpecs[b].numCards
}

// NumPairs returns the number of pairs that must be found to win
func (b BoardSize) NumPairs() int {
	return b.NumCards() / 2
}

// Width returns the number of columns
func (b BoardSize) Width() int {
	return boardSpecs[b].width
}

// Height returns the number of rows
func (b BoardSize) Height() int {
	w := b.Width()
	if w == 0 {
		return 0
	}
	return b.NumCards() / w
}

// Valid reports whether b is one of the defined sizes
func (b BoardSize) Valid() bool {
	_, ok := boardSpecs[b]
	return ok
}

func (b BoardSize) String() string {
	if spec, ok := boardSpecs[b]; ok {
		return spec.name
	}
	return fmt.Sprintf("BoardSize(%d)", int(b))
}

// ParseBoardSize maps a case-insensitive name (easy, medium, hard) to a size
func ParseBoardSize(name string) (BoardSize, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for size, spec := range boardSpecs {
		if spec.name == n {
			return size, nil
		}
	}
	return Easy, fmt.Errorf("%w: %q", ErrUnknownBoardSize, name)
}

// BoardSizeByValue maps a card count to the board size holding that many cards
func BoardSizeByValue(numCards int) (BoardSize, error) {
	for _, size := range AllBoardSizes() {
		if size.NumCards() == numCards {
			return size, nil
		}
	}
	return Easy, fmt.Errorf("%w: no board holds %d cards", ErrUnknownBoardSize, numCards)
}

// MarshalJSON encodes the size as its lower-case name
func (b BoardSize) MarshalJSON() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBoardSize, int(b))
	}
	return json.Marshal(b.String())
}

// UnmarshalJSON accepts either the name or the card count
func (b *BoardSize) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		size, err := ParseBoardSize(name)
		if err != nil {
			return err
		}
		*b = size
		return nil
	}

	var numCards int
	if err := json.Unmarshal(data, &numCards); err != nil {
		return fmt.Errorf("board size must be a name or card count: %w", err)
	}
	size, err := BoardSizeByValue(numCards)
	if err != nil {
		return err
	}
	*b = size
	return nil
}
