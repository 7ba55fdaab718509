package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCardSet = errors.New("invalid card set")
)

// NormalizeGameName trims the surrounding whitespace a user typed around a
// game name. Card sets are stored and looked up under the normalized name.
func NormalizeGameName(name string) string {
	return strings.TrimSpace(name)
}

// ValidateGameName checks a normalized game name a custom card set is stored under
func ValidateGameName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCardSet)
	}
	if trimmed != name {
		return fmt.Errorf("%w: name must not start or end with whitespace", ErrInvalidCardSet)
	}
	if n := len([]rune(name)); n < MinGameNameLength || n > MaxGameNameLength {
		return fmt.Errorf("%w: name must be between %d and %d characters, got %d",
			ErrInvalidCardSet, MinGameNameLength, MaxGameNameLength, n)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: name must not contain path separators", ErrInvalidCardSet)
	}
	return nil
}

// ValidateCardSet validates a card set document for playability
func ValidateCardSet(set *CardSet) error {
	if set == nil {
		return fmt.Errorf("%w: card set is nil", ErrInvalidCardSet)
	}
	if err := ValidateGameName(set.Name); err != nil {
		return err
	}
	if _, err := set.BoardSize(); err != nil {
		return fmt.Errorf("%w: %d images do not fill any board (want 4, 9 or 12)", ErrInvalidCardSet, len(set.Images))
	}

	seen := make(map[string]bool, len(set.Images))
	for i, image := range set.Images {
		if strings.TrimSpace(image) == "" {
			return fmt.Errorf("%w: image %d is empty", ErrInvalidCardSet, i+1)
		}
		if seen[image] {
			return fmt.Errorf("%w: image %d duplicates an earlier image", ErrInvalidCardSet, i+1)
		}
		seen[image] = true
	}
	return nil
}

// BoardSize returns the board a card set fills: two cards per image
func (c *CardSet) BoardSize() (BoardSize, error) {
	return BoardSizeByValue(len(c.Images) * 2)
}
