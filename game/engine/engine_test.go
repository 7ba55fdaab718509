package engine

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"
)

func newTestEngine(t *testing.T, size BoardSize) *GameEngine {
	t.Helper()
	engine, err := NewEngine(size, nil, WithRand(rand.New(rand.NewPCG(1, 2))))
	if err != nil {
		t.Fatalf("Failed to create new engine: %v", err)
	}
	return engine
}

// findPair returns two positions holding the same identifier, skipping matched cards
func findPair(t *testing.T, cards []MemoryCard) (int, int) {
	t.Helper()
	seen := map[string]int{}
	for i, card := range cards {
		if card.Matched {
			continue
		}
		if j, ok := seen[card.Identifier]; ok {
			return j, i
		}
		seen[card.Identifier] = i
	}
	t.Fatal("no unmatched pair on the board")
	return -1, -1
}

// findMismatch returns two unmatched positions with different identifiers
func findMismatch(t *testing.T, cards []MemoryCard) (int, int) {
	t.Helper()
	for i := range cards {
		for j := i + 1; j < len(cards); j++ {
			if !cards[i].Matched && !cards[j].Matched && cards[i].Identifier != cards[j].Identifier {
				return i, j
			}
		}
	}
	t.Fatal("no mismatching positions on the board")
	return -1, -1
}

func TestNewEngine(t *testing.T) {
	for _, size := range AllBoardSizes() {
		engine := newTestEngine(t, size)
		state := engine.GetState()

		if len(state.Cards) != size.NumCards() {
			t.Errorf("%s: expected %d cards, got %d", size, size.NumCards(), len(state.Cards))
		}
		if state.TotalPairs != size.NumPairs() {
			t.Errorf("%s: expected %d total pairs, got %d", size, size.NumPairs(), state.TotalPairs)
		}
		if state.Width*state.Height != len(state.Cards) {
			t.Errorf("%s: width %d x height %d != %d cards", size, state.Width, state.Height, len(state.Cards))
		}
		if engine.GetNumMoves() != 0 || engine.GetNumPairsFound() != 0 {
			t.Errorf("%s: expected fresh counters", size)
		}
		if engine.HaveWonGame() {
			t.Errorf("%s: expected game not to be won initially", size)
		}
		if state.PendingFlip != nil {
			t.Errorf("%s: expected no pending flip", size)
		}
		for i, card := range state.Cards {
			if card.FaceUp || card.Matched {
				t.Errorf("%s: card %d should start face down and unmatched", size, i)
			}
		}
	}
}

func TestNewEngine_InvalidBoardSize(t *testing.T) {
	_, err := NewEngine(BoardSize(42), nil)
	if !errors.Is(err, ErrUnknownBoardSize) {
		t.Errorf("Expected ErrUnknownBoardSize, got %v", err)
	}
}

func TestNewEngine_CustomImages(t *testing.T) {
	images := []string{"https://img/a.jpg", "https://img/b.jpg", "https://img/c.jpg", "https://img/d.jpg"}
	engine, err := NewEngine(Easy, images)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	counts := map[string]int{}
	for _, card := range engine.GetCards() {
		if card.ImageURL != card.Identifier {
			t.Errorf("Expected image URL %q to equal identifier", card.ImageURL)
		}
		counts[card.Identifier]++
	}
	for _, image := range images {
		if counts[image] != 2 {
			t.Errorf("Expected image %s twice, got %d", image, counts[image])
		}
	}

	if _, err := NewEngine(Medium, images); !errors.Is(err, ErrInvalidCardSet) {
		t.Errorf("Expected ErrInvalidCardSet for wrong image count, got %v", err)
	}
}

func TestNewEngineFromCardSet(t *testing.T) {
	set := &CardSet{
		Name:   "vacation",
		Images: []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8", "u9"},
	}
	engine, err := NewEngineFromCardSet(set)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	if engine.GetBoardSize() != Medium {
		t.Errorf("Expected medium board for 9 images, got %s", engine.GetBoardSize())
	}
	if engine.GetState().CardSetName != "vacation" {
		t.Errorf("Expected card set name to be recorded, got %q", engine.GetState().CardSetName)
	}
	if engine.GetCardSet() != set {
		t.Error("Expected engine to keep the card set")
	}

	set.Images = set.Images[:5]
	if _, err := NewEngineFromCardSet(set); !errors.Is(err, ErrInvalidCardSet) {
		t.Errorf("Expected ErrInvalidCardSet for 5 images, got %v", err)
	}
}

func TestEngine_FlipMatch(t *testing.T) {
	engine := newTestEngine(t, Easy)
	a, b := findPair(t, engine.GetCards())

	result, err := engine.FlipCard(a)
	if err != nil {
		t.Fatalf("First flip failed: %v", err)
	}
	if result.Matched || result.Mismatch != nil {
		t.Error("First flip should not report a match outcome")
	}
	if !engine.IsCardFaceUp(a) {
		t.Error("Expected first card to be face up")
	}
	if p := engine.GetState().PendingFlip; p == nil || *p != a {
		t.Errorf("Expected pending flip %d, got %v", a, p)
	}

	result, err = engine.FlipCard(b)
	if err != nil {
		t.Fatalf("Second flip failed: %v", err)
	}
	if !result.Matched {
		t.Error("Expected flip to report a match")
	}

	state := engine.GetState()
	if !state.Cards[a].Matched || !state.Cards[b].Matched {
		t.Error("Expected both cards to be matched")
	}
	if state.NumPairsFound != 1 {
		t.Errorf("Expected 1 pair found, got %d", state.NumPairsFound)
	}
	if state.NumMoves != 1 {
		t.Errorf("Expected 1 move, got %d", state.NumMoves)
	}
	if state.PendingFlip != nil {
		t.Error("Expected pending flip to be cleared")
	}
}

func TestEngine_FlipMismatch(t *testing.T) {
	engine := newTestEngine(t, Easy)
	a, b := findMismatch(t, engine.GetCards())

	if _, err := engine.FlipCard(a); err != nil {
		t.Fatalf("First flip failed: %v", err)
	}
	result, err := engine.FlipCard(b)
	if err != nil {
		t.Fatalf("Second flip failed: %v", err)
	}
	if result.Matched {
		t.Error("Expected no match")
	}
	if result.Mismatch == nil || result.Mismatch.First != a || result.Mismatch.Second != b {
		t.Errorf("Expected mismatch pair {%d %d}, got %+v", a, b, result.Mismatch)
	}

	// Both stay visible until concealed
	if !engine.IsCardFaceUp(a) || !engine.IsCardFaceUp(b) {
		t.Error("Expected mismatched cards to stay face up before concealment")
	}

	concealed := engine.ConcealMismatch()
	if concealed == nil {
		t.Fatal("Expected a pair to be concealed")
	}
	if engine.IsCardFaceUp(a) || engine.IsCardFaceUp(b) {
		t.Error("Expected mismatched cards to be face down after concealment")
	}
	if engine.GetNumMoves() != 1 {
		t.Errorf("Expected 1 move, got %d", engine.GetNumMoves())
	}
	if engine.GetNumPairsFound() != 0 {
		t.Errorf("Expected no pairs, got %d", engine.GetNumPairsFound())
	}
	if engine.ConcealMismatch() != nil {
		t.Error("Expected second conceal to be a no-op")
	}
}

func TestEngine_NextFlipConcealsMismatch(t *testing.T) {
	engine := newTestEngine(t, Easy)
	a, b := findMismatch(t, engine.GetCards())

	engine.FlipCard(a)
	engine.FlipCard(b)

	var next int
	for i := range engine.GetCards() {
		if i != a && i != b {
			next = i
			break
		}
	}

	result, err := engine.FlipCard(next)
	if err != nil {
		t.Fatalf("Flip failed: %v", err)
	}
	if result.Concealed == nil {
		t.Error("Expected the pending mismatch to be concealed by the next flip")
	}
	if engine.IsCardFaceUp(a) || engine.IsCardFaceUp(b) {
		t.Error("Expected previous mismatch to be face down")
	}
	if !engine.IsCardFaceUp(next) {
		t.Error("Expected new card to be face up")
	}
}

func TestEngine_RejectedFlips(t *testing.T) {
	engine := newTestEngine(t, Easy)

	if _, err := engine.FlipCard(-1); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("Expected ErrInvalidPosition for -1, got %v", err)
	}
	if _, err := engine.FlipCard(8); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("Expected ErrInvalidPosition for 8, got %v", err)
	}
	if engine.IsCardFaceUp(99) {
		t.Error("Expected out of range position to report face down")
	}

	// Same position twice in a row must not double count
	engine.FlipCard(0)
	if _, err := engine.FlipCard(0); !errors.Is(err, ErrCardFaceUp) {
		t.Errorf("Expected ErrCardFaceUp, got %v", err)
	}
	if engine.GetState().NumCardFlips != 1 {
		t.Errorf("Expected 1 counted flip, got %d", engine.GetState().NumCardFlips)
	}
	if engine.GetNumMoves() != 0 {
		t.Errorf("Expected 0 moves, got %d", engine.GetNumMoves())
	}

	// Matched cards cannot be flipped
	engine2 := newTestEngine(t, Easy)
	a, b := findPair(t, engine2.GetCards())
	engine2.FlipCard(a)
	engine2.FlipCard(b)
	if _, err := engine2.FlipCard(a); !errors.Is(err, ErrCardMatched) {
		t.Errorf("Expected ErrCardMatched, got %v", err)
	}
}

func TestEngine_VictoryScenario(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	engine, err := NewEngine(Easy, nil, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	var last *FlipResult
	for i := 0; i < Easy.NumPairs(); i++ {
		a, b := findPair(t, engine.GetCards())
		engine.FlipCard(a)
		last, err = engine.FlipCard(b)
		if err != nil {
			t.Fatalf("Flip failed: %v", err)
		}
	}

	if !last.Won || !engine.HaveWonGame() {
		t.Fatal("Expected game to be won")
	}
	state := engine.GetState()
	if state.NumMoves != Easy.NumPairs() {
		t.Errorf("Expected %d moves for a perfect game, got %d", Easy.NumPairs(), state.NumMoves)
	}
	if state.FinishedAt == nil || !state.FinishedAt.Equal(now) {
		t.Errorf("Expected finish time %v, got %v", now, state.FinishedAt)
	}
	if state.Progress != 1 {
		t.Errorf("Expected progress 1, got %f", state.Progress)
	}

	if _, err := engine.FlipCard(0); !errors.Is(err, ErrGameWon) {
		t.Errorf("Expected ErrGameWon after winning, got %v", err)
	}
}

func TestEngine_Invariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	for _, size := range AllBoardSizes() {
		engine, err := NewEngine(size, nil, WithRand(rng))
		if err != nil {
			t.Fatalf("Failed to create engine: %v", err)
		}

		matched := map[int]bool{}
		for step := 0; step < 2000 && !engine.HaveWonGame(); step++ {
			pos := rng.IntN(size.NumCards())
			engine.FlipCard(pos) // rejected flips are part of the walk

			state := engine.GetState()
			if state.NumPairsFound > state.TotalPairs {
				t.Fatalf("%s: pairs found %d exceeds total %d", size, state.NumPairsFound, state.TotalPairs)
			}
			if engine.HaveWonGame() != (state.NumPairsFound == state.TotalPairs) {
				t.Fatalf("%s: HaveWonGame disagrees with pair count", size)
			}
			if state.NumMoves != state.NumCardFlips/2 {
				t.Fatalf("%s: moves %d != flips %d / 2", size, state.NumMoves, state.NumCardFlips)
			}
			for i, card := range state.Cards {
				if matched[i] && (!card.Matched || !card.FaceUp) {
					t.Fatalf("%s: matched card %d went back face down", size, i)
				}
				if card.Matched {
					matched[i] = true
				}
			}
			if CountMatched(state.Cards) != state.NumPairsFound*2 {
				t.Fatalf("%s: %d matched cards for %d pairs", size, CountMatched(state.Cards), state.NumPairsFound)
			}
		}
	}
}

func TestEngine_Reset(t *testing.T) {
	engine := newTestEngine(t, Medium)
	a, b := findPair(t, engine.GetCards())
	engine.FlipCard(a)
	engine.FlipCard(b)

	state := engine.Reset()
	if state.NumMoves != 0 || state.NumPairsFound != 0 || state.NumCardFlips != 0 {
		t.Error("Expected counters to reset")
	}
	if state.BoardSize != Medium || len(state.Cards) != Medium.NumCards() {
		t.Error("Expected reset to keep the board size")
	}
	if CountFaceUp(state.Cards) != 0 {
		t.Error("Expected every card face down after reset")
	}
	// Cumulative history survives
	if state.TotalFlips != 2 || len(state.FlipHistory) != 2 {
		t.Errorf("Expected 2 cumulative flips, got %d (%d entries)", state.TotalFlips, len(state.FlipHistory))
	}
	if state.CurrentFlipsCount != 0 {
		t.Errorf("Expected current flips count 0, got %d", state.CurrentFlipsCount)
	}
}

func TestEngine_FlipHistory(t *testing.T) {
	engine := newTestEngine(t, Easy)
	if engine.GetLastFlip() != nil {
		t.Error("Expected no last flip initially")
	}

	a, b := findPair(t, engine.GetCards())
	engine.FlipCard(a)
	engine.FlipCard(b)

	history := engine.GetFlipHistory()
	if len(history) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(history))
	}
	if history[0].FlipNumber != 1 || history[1].FlipNumber != 2 {
		t.Errorf("Expected flip numbers 1 and 2, got %d and %d", history[0].FlipNumber, history[1].FlipNumber)
	}
	last := engine.GetLastFlip()
	if last == nil || !last.Matched || last.Position != b || last.PairsFound != 1 {
		t.Errorf("Unexpected last flip: %+v", last)
	}
}

func TestEngine_SetState(t *testing.T) {
	engine := newTestEngine(t, Easy)
	other := newTestEngine(t, Easy)
	other.FlipCard(0)

	if err := engine.SetState(other.GetState().Clone()); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	if !engine.IsCardFaceUp(0) {
		t.Error("Expected restored state to have card 0 face up")
	}

	if err := engine.SetState(nil); err == nil {
		t.Error("Expected error for nil state")
	}

	hard := newTestEngine(t, Hard)
	if err := engine.SetState(hard.GetState()); err == nil {
		t.Error("Expected error for mismatched board size")
	}
}

func TestEngine_GetFaceDownPositions(t *testing.T) {
	engine := newTestEngine(t, Easy)
	if n := len(engine.GetFaceDownPositions()); n != 8 {
		t.Errorf("Expected 8 face down positions, got %d", n)
	}
	a, b := findPair(t, engine.GetCards())
	engine.FlipCard(a)
	engine.FlipCard(b)
	for _, pos := range engine.GetFaceDownPositions() {
		if pos == a || pos == b {
			t.Errorf("Matched position %d reported as face down", pos)
		}
	}
}
