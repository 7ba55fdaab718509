// Package mcp exposes the memory game to AI agents over the Model Context
// Protocol.
//
// The Client is a thin proxy: every tool calls the REST API, so agents see
// exactly what HTTP clients see, including hidden faces on face-down cards.
//
// MCP Tools:
//   - create_session, get_session, list_sessions
//   - game_state: board as a position:label grid (? face down, ✓ matched)
//   - flip_card: flip one card, with an intent note
//   - conceal_mismatch: turn a showing mismatch face down
//   - reset_game: re-deal the board
//   - flip_history: paginated flips
//   - list_card_sets, get_card_set: custom games
//   - leaderboard: best finished games
//   - game_instructions: rules and strategy
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: POST /mcp on the main server forwards the JSON-RPC body to
//     GetMCPServer().HandleMessage
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
