// Package session provides session management for the memory game server.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Optional JSON file persistence with lazy reloads
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager is the session manager behind service.SessionManager. Each
// service.Session owns its own engine, so boards never share state.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs unless the caller supplies one. Lookups
// are case-insensitive, and IDs must be usable as file names.
//
// Persistence:
//
// FilePersistence writes one JSON document per session. Sessions dealt from
// a custom card set record the set's name; on load the set is fetched again
// from the card set store, or rebuilt from the saved board when the store no
// longer has it.
//
// Usage:
//
//	store, _ := cardset.NewFileStore("cardsets", logger)
//	persistence, _ := session.NewFilePersistence("sessions", store)
//	manager := session.NewManagerWithPersistence(persistence)
//	s, err := manager.Create("", engine.Medium, nil)
package session
