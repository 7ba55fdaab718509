// Package api provides HTTP REST API handlers for the memory game.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session ({"board_size": "easy"|8, "card_set": "pets", "player": "ana"})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get one session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Current board
//   - POST /api/sessions/{id}/flip - Flip a card ({"position": 3})
//   - POST /api/sessions/{id}/conceal - Turn a showing mismatch face down
//   - POST /api/sessions/{id}/reset - Re-deal the board
//   - GET /api/sessions/{id}/history - Flip history (?page=1&limit=20&order=desc)
//
// Custom games:
//   - GET /api/board-sizes - Supported boards
//   - GET /api/cardsets - List stored card sets
//   - POST /api/cardsets - Create a card set from a multipart upload
//     (name, board_size, images[]) or JSON with hosted image URLs
//   - GET /api/cardsets/{name} - The {images:[url]} document for a game
//
// Misc:
//   - GET /api/leaderboard - Best finished games (?difficulty=easy&limit=10)
//   - GET /api/health
//   - GET /ws?session={id} - WebSocket state pushes
//   - GET /images/... - Uploaded card images
//
// Cards that are face down are returned without identifier or image, so a
// client only learns a card by flipping it.
//
// Errors are returned as JSON with a matching status code:
//
//	{"error": "illegal flip: card is already face up"}
//
// Usage:
//
//	srv := api.NewServer(gameService, hub, api.Options{ImagesRoot: "data/blobs"})
//	http.ListenAndServe(":8080", srv)
package api
