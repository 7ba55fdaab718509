package solver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
)

var (
	ErrNoMoves   = errors.New("no flippable card left")
	ErrFlipLimit = errors.New("flip limit reached before winning")
)

// Board is anything a player can flip cards on: a local engine or a remote session
type Board interface {
	GetState() *engine.GameState
	FlipCard(position int) (*engine.FlipResult, error)
}

// Concealer is implemented by boards that leave mismatched pairs face up
// until told to hide them
type Concealer interface {
	ConcealMismatch() *engine.Pair
}

// Player plays with perfect memory of every card it has seen.
// It only learns identifiers from its own flip results, never from face-down cards.
type Player struct {
	seen   map[int]string // position -> identifier
	logger *slog.Logger
}

// NewPlayer creates a player with an empty memory
func NewPlayer(logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		seen:   make(map[int]string),
		logger: logger.With("component", "solver"),
	}
}

// Observe records the identifier revealed by a flip
func (p *Player) Observe(result *engine.FlipResult) {
	if result == nil {
		return
	}
	p.seen[result.Position] = result.Identifier
}

// Forget clears the player's memory, used after the board is re-dealt
func (p *Player) Forget() {
	p.seen = make(map[int]string)
}

// NextFlip picks the next position to flip.
//
// With a pending card it flips the remembered partner if known, otherwise an
// unseen card. Without one it starts a remembered pair if any, otherwise the
// first unseen card.
func (p *Player) NextFlip(state *engine.GameState) (int, error) {
	flippable := func(i int) bool {
		return i >= 0 && i < len(state.Cards) && !state.Cards[i].FaceUp && !state.Cards[i].Matched
	}

	if state.PendingFlip != nil {
		pending := *state.PendingFlip
		if id, ok := p.seen[pending]; ok {
			for pos, other := range p.seen {
				if pos != pending && other == id && flippable(pos) {
					return pos, nil
				}
			}
		}
	} else if a, b, ok := p.knownPair(flippable); ok {
		p.logger.Debug("starting known pair", "first", a, "second", b)
		return a, nil
	}

	for i := range state.Cards {
		if _, known := p.seen[i]; !known && flippable(i) {
			return i, nil
		}
	}
	// Everything is remembered but nothing pairs up with the pending card;
	// any face-down card keeps the game moving
	for i := range state.Cards {
		if flippable(i) {
			return i, nil
		}
	}
	return -1, ErrNoMoves
}

func (p *Player) knownPair(flippable func(int) bool) (int, int, bool) {
	first := make(map[string]int)
	best := [2]int{-1, -1}
	for pos, id := range p.seen {
		if !flippable(pos) {
			continue
		}
		if other, ok := first[id]; ok {
			a, b := min(pos, other), max(pos, other)
			// Lowest position wins so play does not depend on map order
			if best[0] == -1 || a < best[0] {
				best = [2]int{a, b}
			}
			continue
		}
		first[id] = pos
	}
	return best[0], best[1], best[0] != -1
}

// PlayToWin drives the board until the game is won and returns the number of moves.
// maxFlips <= 0 means four flips per card.
func (p *Player) PlayToWin(board Board, maxFlips int) (int, error) {
	state := board.GetState()
	if maxFlips <= 0 {
		maxFlips = 4 * len(state.Cards)
	}

	for flips := 0; !state.Won; flips++ {
		if flips >= maxFlips {
			return state.NumMoves, fmt.Errorf("%w: %d flips", ErrFlipLimit, flips)
		}

		pos, err := p.NextFlip(state)
		if err != nil {
			return state.NumMoves, err
		}
		result, err := board.FlipCard(pos)
		if err != nil {
			return state.NumMoves, fmt.Errorf("flip %d: %w", pos, err)
		}
		p.Observe(result)

		if result.Mismatch != nil {
			if c, ok := board.(Concealer); ok {
				c.ConcealMismatch()
			}
		}
		state = board.GetState()
	}

	p.logger.Info("game won", "moves", state.NumMoves, "flips", state.NumCardFlips)
	return state.NumMoves, nil
}
