package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
	"github.com/wricardo/mcp-training/memorymatch/game/leaderboard"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, opts CreateSessionOptions) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	FlipCard(ctx context.Context, sessionID string, position int) (*FlipResponse, error)
	ConcealMismatch(ctx context.Context, sessionID string) (*engine.GameState, error)
	Reset(ctx context.Context, sessionID string) (*ResetResponse, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetFlipHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Card Sets
	ListCardSets(ctx context.Context) ([]*CardSetInfo, error)
	GetCardSet(ctx context.Context, name string) (*engine.CardSet, error)
	CreateCardSet(ctx context.Context, req CreateCardSetRequest) (*CardSetInfo, error)

	// Leaderboard
	GetLeaderboard(ctx context.Context, difficulty string, limit int) ([]leaderboard.Entry, error)
}

// StateListener is notified when a session's state changes outside a request,
// such as a delayed mismatch concealment
type StateListener interface {
	OnStateChange(sessionID string, event GameEvent, state *engine.GameState)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, size engine.BoardSize, set *engine.CardSet) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// CardSetStore is the document store of custom card sets, keyed by game name
type CardSetStore interface {
	Get(ctx context.Context, name string) (*engine.CardSet, error)
	// Create stores the set only if no set with that name exists
	Create(ctx context.Context, set *engine.CardSet) error
	List(ctx context.Context) ([]*CardSetInfo, error)
	Delete(ctx context.Context, name string) error
}

// ImageUploader processes and stores card images, returning their URLs in input order
type ImageUploader interface {
	// UploadAll removes whatever it stored when it fails
	UploadAll(ctx context.Context, gameName string, images [][]byte, progress func(done, total int)) ([]string, error)
	// Discard removes images returned by an earlier UploadAll
	Discard(ctx context.Context, gameName string, urls []string) error
}

// Leaderboard records finished games
type Leaderboard interface {
	Record(entry leaderboard.Entry) leaderboard.Entry
	Top(difficulty string, n int) ([]leaderboard.Entry, error)
}

// Session represents an active game session
type Session struct {
	ID             string
	Engine         *engine.GameEngine
	BoardSize      engine.BoardSize
	CardSet        *engine.CardSet
	Player         string
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
