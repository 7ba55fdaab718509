// Package websocket provides WebSocket transport for the memory game server.
//
// The websocket package implements:
//   - Session-aware WebSocket connections
//   - Push of every state change made through REST, MCP or timers
//   - Connection lifecycle management
//
// Architecture:
//
// A central Hub owns all connections. Registration, removal and broadcast go
// through channels into the Run goroutine, so the session map has a single
// owner. Each client has a write pump and a read pump goroutine.
//
// The Hub implements service.StateListener. Register it as the game service's
// listener and every flip, reset and concealment reaches the session's
// clients.
//
// Message Protocol:
//
// Clients connect with ?session=<id> and only listen. Outgoing messages are
// JSON documents:
//
//	{"session_id": "ab12", "event": "state_update", "game_state": {...}, "detail": {...}}
//
// The event is "mismatch_concealed" or "victory" for those transitions and
// "state_update" otherwise. detail carries the service event.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//	svc := service.NewGameService(sessions, service.Options{Listener: hub})
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"), nil)
//	})
package websocket
