package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

var (
	ErrInvalidPosition = errors.New("position out of range")
	ErrCardFaceUp      = errors.New("card is already face up")
	ErrCardMatched     = errors.New("card is already matched")
	ErrGameWon         = errors.New("game already won")
)

// Engine provides the main interface for game operations
type Engine interface {
	// Game state management
	GetState() *GameState
	SetState(state *GameState) error
	Reset() *GameState
	HaveWonGame() bool
	GetNumMoves() int
	GetNumPairsFound() int
	GetBoardSize() BoardSize

	// Card operations
	FlipCard(position int) (*FlipResult, error)
	IsCardFaceUp(position int) bool
	ConcealMismatch() *Pair
	GetCards() []MemoryCard
	GetFaceDownPositions() []int

	// Card set
	GetCardSet() *CardSet

	// History
	GetFlipHistory() []FlipHistoryEntry
	GetLastFlip() *FlipHistoryEntry
}

// Option configures a GameEngine
type Option func(*GameEngine)

// WithRand sets the random source used to deal cards
func WithRand(rng *rand.Rand) Option {
	return func(e *GameEngine) {
		e.rng = rng
	}
}

// WithClock overrides time.Now for timestamps
func WithClock(now func() time.Time) Option {
	return func(e *GameEngine) {
		e.now = now
	}
}

// GameEngine implements the Engine interface
type GameEngine struct {
	state   *GameState
	size    BoardSize
	cardSet *CardSet
	rng     *rand.Rand
	now     func() time.Time
}

// NewEngine deals a new board. customImages may be nil for the built-in icons.
func NewEngine(size BoardSize, customImages []string, opts ...Option) (*GameEngine, error) {
	var set *CardSet
	if customImages != nil {
		set = &CardSet{Images: customImages}
	}
	return newEngine(size, set, opts...)
}

// NewEngineFromCardSet deals a board sized by the card set's image count
func NewEngineFromCardSet(set *CardSet, opts ...Option) (*GameEngine, error) {
	if err := ValidateCardSet(set); err != nil {
		return nil, err
	}
	size, _ := set.BoardSize()
	return newEngine(size, set, opts...)
}

func newEngine(size BoardSize, set *CardSet, opts ...Option) (*GameEngine, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBoardSize, int(size))
	}

	e := &GameEngine{
		size:    size,
		cardSet: set,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	state, err := e.deal()
	if err != nil {
		return nil, err
	}
	e.state = state
	return e, nil
}

// deal builds a fresh state for the engine's size and card set
func (e *GameEngine) deal() (*GameState, error) {
	var images []string
	name := ""
	if e.cardSet != nil {
		images = e.cardSet.Images
		name = e.cardSet.Name
	}

	cards, err := BuildDeck(e.size, images, e.rng)
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Find all %d pairs!", e.size.NumPairs())
	if name != "" {
		message = fmt.Sprintf("You're now playing '%s'! Find all %d pairs!", name, e.size.NumPairs())
	}

	return &GameState{
		BoardSize:   e.size,
		Width:       e.size.Width(),
		Height:      e.size.Height(),
		CardSetName: name,
		Cards:       cards,
		TotalPairs:  e.size.NumPairs(),
		Message:     message,
		StartedAt:   e.now(),
		FlipHistory: []FlipHistoryEntry{},
	}, nil
}

// GetState returns the current game state
func (e *GameEngine) GetState() *GameState {
	return e.state
}

// SetState sets the game state (used for persistence loading)
func (e *GameEngine) SetState(state *GameState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.BoardSize != e.size {
		return fmt.Errorf("state board size %s does not match engine board size %s", state.BoardSize, e.size)
	}
	if len(state.Cards) != e.size.NumCards() {
		return fmt.Errorf("state has %d cards, board %s needs %d", len(state.Cards), e.size, e.size.NumCards())
	}
	if state.PendingFlip != nil && !e.inRange(*state.PendingFlip) {
		return fmt.Errorf("pending flip %d: %w", *state.PendingFlip, ErrInvalidPosition)
	}
	if state.NumPairsFound > e.size.NumPairs() {
		return fmt.Errorf("state has %d pairs found, board %s only has %d", state.NumPairsFound, e.size, e.size.NumPairs())
	}
	if state.FlipHistory == nil {
		state.FlipHistory = []FlipHistoryEntry{}
	}
	e.state = state
	return nil
}

// Reset deals a new board of the same size and card set
func (e *GameEngine) Reset() *GameState {
	// Preserve cumulative history and totals across resets
	prevHistory := e.state.FlipHistory
	prevTotal := e.state.TotalFlips

	state, err := e.deal()
	if err != nil {
		// The size and card set were valid when the engine was created
		panic(fmt.Sprintf("engine: re-deal failed: %v", err))
	}
	state.FlipHistory = prevHistory
	state.TotalFlips = prevTotal
	e.state = state

	return e.state
}

// HaveWonGame reports whether every pair has been found
func (e *GameEngine) HaveWonGame() bool {
	return e.state.NumPairsFound == e.size.NumPairs()
}

// GetNumMoves returns the number of completed pair attempts
func (e *GameEngine) GetNumMoves() int {
	return e.state.NumMoves
}

// GetNumPairsFound returns the number of matched pairs
func (e *GameEngine) GetNumPairsFound() int {
	return e.state.NumPairsFound
}

// GetBoardSize returns the board size
func (e *GameEngine) GetBoardSize() BoardSize {
	return e.size
}

// GetCardSet returns the custom card set, or nil for the built-in icons
func (e *GameEngine) GetCardSet() *CardSet {
	return e.cardSet
}

// GetCards returns the cards in board order
func (e *GameEngine) GetCards() []MemoryCard {
	return e.state.Cards
}

// IsCardFaceUp returns whether the card at position is showing.
// Out-of-range positions report false.
func (e *GameEngine) IsCardFaceUp(position int) bool {
	if !e.inRange(position) {
		return false
	}
	return e.state.Cards[position].FaceUp
}

// GetFaceDownPositions returns every position that can currently be flipped
func (e *GameEngine) GetFaceDownPositions() []int {
	var positions []int
	for i, card := range e.state.Cards {
		if !card.FaceUp && !card.Matched {
			positions = append(positions, i)
		}
	}
	return positions
}

// FlipCard turns over the card at position.
//
// The first card of an attempt becomes the pending flip. The second card is
// compared with it: a match marks both cards matched, a mismatch leaves both
// face up until ConcealMismatch is called or the next attempt starts.
// Rejected flips return an error and leave the state untouched.
func (e *GameEngine) FlipCard(position int) (*FlipResult, error) {
	if err := e.checkFlip(position); err != nil {
		return nil, err
	}

	gs := e.state
	result := &FlipResult{Position: position}

	if gs.PendingFlip == nil {
		result.Concealed = e.ConcealMismatch()
		p := position
		gs.PendingFlip = &p
		gs.Cards[position].FaceUp = true
		gs.Message = "Pick a second card"
	} else {
		first := *gs.PendingFlip
		gs.PendingFlip = nil
		gs.Cards[position].FaceUp = true

		if gs.Cards[first].Identifier == gs.Cards[position].Identifier {
			gs.Cards[first].Matched = true
			gs.Cards[position].Matched = true
			gs.NumPairsFound++
			result.Matched = true
			gs.Message = fmt.Sprintf("Found a match! Pairs: %d / %d", gs.NumPairsFound, gs.TotalPairs)
		} else {
			pair := &Pair{First: first, Second: position}
			gs.Mismatched = pair
			result.Mismatch = &Pair{First: first, Second: position}
			gs.Message = "No match, try again"
		}
	}

	gs.NumCardFlips++
	gs.NumMoves = gs.NumCardFlips / 2
	gs.Progress = float64(gs.NumPairsFound) / float64(gs.TotalPairs)

	if e.HaveWonGame() {
		gs.Won = true
		finished := e.now()
		gs.FinishedAt = &finished
		gs.Message = fmt.Sprintf("You have won! Congratulations. %d pairs in %d moves", gs.TotalPairs, gs.NumMoves)
	}

	result.Identifier = gs.Cards[position].Identifier
	result.Won = gs.Won
	result.PairsFound = gs.NumPairsFound
	result.Moves = gs.NumMoves

	e.addFlipToHistory(result)
	return result, nil
}

// ConcealMismatch flips a mismatched pair back face down.
// It returns the concealed pair, or nil when nothing was waiting.
func (e *GameEngine) ConcealMismatch() *Pair {
	gs := e.state
	if gs.Mismatched == nil {
		return nil
	}
	pair := gs.Mismatched
	gs.Mismatched = nil
	for _, pos := range []int{pair.First, pair.Second} {
		if e.inRange(pos) && !gs.Cards[pos].Matched {
			gs.Cards[pos].FaceUp = false
		}
	}
	return pair
}

// GetFlipHistory returns the complete flip history
func (e *GameEngine) GetFlipHistory() []FlipHistoryEntry {
	return e.state.FlipHistory
}

// GetLastFlip returns the last flip made, or nil if no flips
func (e *GameEngine) GetLastFlip() *FlipHistoryEntry {
	if len(e.state.FlipHistory) == 0 {
		return nil
	}
	return &e.state.FlipHistory[len(e.state.FlipHistory)-1]
}

func (e *GameEngine) checkFlip(position int) error {
	if e.HaveWonGame() {
		return ErrGameWon
	}
	if !e.inRange(position) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidPosition, position, len(e.state.Cards))
	}
	card := e.state.Cards[position]
	if card.Matched {
		return fmt.Errorf("%w: position %d", ErrCardMatched, position)
	}
	if card.FaceUp {
		return fmt.Errorf("%w: position %d", ErrCardFaceUp, position)
	}
	return nil
}

func (e *GameEngine) inRange(position int) bool {
	return position >= 0 && position < len(e.state.Cards)
}

func (e *GameEngine) addFlipToHistory(result *FlipResult) {
	gs := e.state
	entry := FlipHistoryEntry{
		Position:   result.Position,
		Identifier: result.Identifier,
		Matched:    result.Matched,
		Mismatch:   result.Mismatch != nil,
		Moves:      result.Moves,
		PairsFound: result.PairsFound,
		Timestamp:  e.now().Unix(),
		FlipNumber: gs.TotalFlips + 1,
	}
	// Cumulative history is never cleared by reset
	gs.FlipHistory = append(gs.FlipHistory, entry)
	gs.TotalFlips++
	gs.CurrentFlipsCount++
}
