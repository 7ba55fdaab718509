// Package service provides the business logic layer for the memory game.
//
// The service package implements:
//   - Multi-session game management
//   - Flip processing with match, mismatch and victory events
//   - Delayed concealment of mismatched pairs
//   - Custom card sets: upload, storage and download
//   - Flip history and the leaderboard
//
// Core Interfaces:
//
// GameService is the main service interface used by every transport.
// SessionManager, CardSetStore, ImageUploader and Leaderboard are the
// collaborators it is built from; their implementations live in the
// session, cardset, images and leaderboard packages.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the game engine. Each session owns its own engine. Every state change is
// reported to the optional StateListener, which is how the WebSocket hub
// learns about flips made over REST or MCP and about timed concealments.
//
// Usage:
//
//	svc := service.NewGameService(session.NewManager(), service.Options{
//		CardSets:     store,
//		Uploader:     images.NewUploader(blobs, logger),
//		Leaderboard:  leaderboard.New(),
//		ConcealDelay: time.Second,
//		Listener:     hub,
//	})
//	info, err := svc.CreateSession(ctx, service.CreateSessionOptions{BoardSize: engine.Medium})
//	resp, err := svc.FlipCard(ctx, info.ID, 0)
package service
