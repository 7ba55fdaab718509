// Package engine provides the core game logic for the memory matching game.
//
// The engine package implements the game mechanics including:
//   - Board sizes and their grid dimensions
//   - Dealing shuffled decks from built-in icons or custom card sets
//   - Flip, match and win detection
//   - Game state management and persistence
//
// Core Types:
//
// The Engine interface defines the main contract for game operations,
// implemented by GameEngine. GameState represents the current board, while
// CardSet is the custom game document a board can be dealt from.
//
// Usage:
//
//	gameEngine, err := engine.NewEngine(engine.Medium, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := gameEngine.FlipCard(0)
//	if err != nil {
//		// rejected flip, nothing changed
//	}
//	state := gameEngine.GetState()
//
// Game Rules:
//
// Cards are dealt face down in pairs. A move is two flips: when both cards
// show the same face they stay matched, otherwise they are turned back face
// down. The game is won when every pair has been found.
package engine
