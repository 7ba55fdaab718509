package solver

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
)

func TestPlayToWin(t *testing.T) {
	for _, size := range engine.AllBoardSizes() {
		for seed := uint64(1); seed <= 5; seed++ {
			e, err := engine.NewEngine(size, nil, engine.WithRand(rand.New(rand.NewPCG(seed, seed))))
			require.NoError(t, err)

			moves, err := NewPlayer(nil).PlayToWin(e, 0)
			require.NoError(t, err, "size %s seed %d", size, seed)

			assert.True(t, e.HaveWonGame())
			assert.GreaterOrEqual(t, moves, size.NumPairs())
			// Perfect memory never needs more than two moves per pair
			assert.LessOrEqual(t, moves, 2*size.NumPairs())
		}
	}
}

func TestNextFlip_FinishesKnownPartner(t *testing.T) {
	pending := 2
	state := &engine.GameState{
		Cards: []engine.MemoryCard{
			{Identifier: "leaf"},
			{Identifier: "home"},
			{Identifier: "leaf", FaceUp: true},
			{Identifier: "home"},
		},
		PendingFlip: &pending,
	}

	p := NewPlayer(nil)
	p.Observe(&engine.FlipResult{Position: 0, Identifier: "leaf"})
	p.Observe(&engine.FlipResult{Position: 2, Identifier: "leaf"})

	pos, err := p.NextFlip(state)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
}

func TestNextFlip_StartsKnownPair(t *testing.T) {
	state := &engine.GameState{
		Cards: []engine.MemoryCard{
			{Identifier: "leaf"},
			{Identifier: "home"},
			{Identifier: "pizza"},
			{Identifier: "home"},
		},
	}

	p := NewPlayer(nil)
	p.Observe(&engine.FlipResult{Position: 1, Identifier: "home"})
	p.Observe(&engine.FlipResult{Position: 3, Identifier: "home"})

	pos, err := p.NextFlip(state)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
}

func TestNextFlip_ExploresUnseen(t *testing.T) {
	state := &engine.GameState{
		Cards: []engine.MemoryCard{
			{Identifier: "leaf", FaceUp: true, Matched: true},
			{Identifier: "leaf", FaceUp: true, Matched: true},
			{Identifier: "home"},
			{Identifier: "home"},
		},
	}

	p := NewPlayer(nil)
	pos, err := p.NextFlip(state)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
}

func TestNextFlip_NoMoves(t *testing.T) {
	state := &engine.GameState{
		Cards: []engine.MemoryCard{
			{Identifier: "leaf", FaceUp: true, Matched: true},
			{Identifier: "leaf", FaceUp: true, Matched: true},
		},
	}

	_, err := NewPlayer(nil).NextFlip(state)
	assert.True(t, errors.Is(err, ErrNoMoves))
}

func TestPlayToWin_FlipLimit(t *testing.T) {
	e, err := engine.NewEngine(engine.Hard, nil, engine.WithRand(rand.New(rand.NewPCG(9, 9))))
	require.NoError(t, err)

	_, err = NewPlayer(nil).PlayToWin(e, 3)
	assert.ErrorIs(t, err, ErrFlipLimit)
	assert.False(t, e.HaveWonGame())
}
