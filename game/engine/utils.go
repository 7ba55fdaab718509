package engine

import "strings"

// Board cell markers used by RenderBoard
const (
	FaceDownMarker = "?"
	MatchedMarker  = "✓"
)

// CountMatched counts the cards that have been matched
func CountMatched(cards []MemoryCard) int {
	count := 0
	for _, card := range cards {
		if card.Matched {
			count++
		}
	}
	return count
}

// CountFaceUp counts the cards currently showing, matched or not
func CountFaceUp(cards []MemoryCard) int {
	count := 0
	for _, card := range cards {
		if card.FaceUp {
			count++
		}
	}
	return count
}

// ShortLabel returns a compact label for a card face. Custom card sets use
// image URLs as identifiers, so only the last path element is kept.
func ShortLabel(identifier string) string {
	label := identifier
	if i := strings.LastIndex(label, "/"); i >= 0 && i < len(label)-1 {
		label = label[i+1:]
	}
	if i := strings.IndexAny(label, "?#"); i > 0 {
		label = label[:i]
	}
	if len(label) > 10 {
		label = label[:10]
	}
	return label
}

// RenderBoard renders the cards as one string per row
func RenderBoard(state *GameState) []string {
	if state == nil || state.Width == 0 {
		return nil
	}

	rows := make([]string, 0, state.Height)
	for start := 0; start < len(state.Cards); start += state.Width {
		end := min(start+state.Width, len(state.Cards))
		cells := make([]string, 0, state.Width)
		for _, card := range state.Cards[start:end] {
			switch {
			case card.Matched:
				cells = append(cells, MatchedMarker)
			case card.FaceUp:
				cells = append(cells, ShortLabel(card.Identifier))
			default:
				cells = append(cells, FaceDownMarker)
			}
		}
		rows = append(rows, strings.Join(cells, " "))
	}
	return rows
}

// Clone returns a deep copy of the state
func (gs *GameState) Clone() *GameState {
	if gs == nil {
		return nil
	}
	c := *gs
	c.Cards = append([]MemoryCard(nil), gs.Cards...)
	c.FlipHistory = append([]FlipHistoryEntry{}, gs.FlipHistory...)
	c.Board = append([]string(nil), gs.Board...)
	if gs.PendingFlip != nil {
		p := *gs.PendingFlip
		c.PendingFlip = &p
	}
	if gs.Mismatched != nil {
		m := *gs.Mismatched
		c.Mismatched = &m
	}
	if gs.FinishedAt != nil {
		f := *gs.FinishedAt
		c.FinishedAt = &f
	}
	return &c
}

// Masked returns a copy of the state with the faces of hidden cards blanked,
// so clients only learn what the player has seen
func (gs *GameState) Masked() *GameState {
	c := gs.Clone()
	if c == nil {
		return nil
	}
	for i := range c.Cards {
		if !c.Cards[i].FaceUp && !c.Cards[i].Matched {
			c.Cards[i].Identifier = ""
			c.Cards[i].ImageURL = ""
		}
	}
	return c
}
