package service

import (
	"time"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
)

// CreateSessionOptions selects the board for a new session.
// A non-empty CardSet overrides BoardSize with the size the set fills.
type CreateSessionOptions struct {
	BoardSize engine.BoardSize `json:"board_size"`
	CardSet   string           `json:"card_set,omitempty"`
	Player    string           `json:"player,omitempty"`
}

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string            `json:"id"`
	BoardSize      engine.BoardSize  `json:"board_size"`
	CardSetName    string            `json:"card_set,omitempty"`
	Player         string            `json:"player,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	GameState      *engine.GameState `json:"game_state"`
}

// FlipResponse contains the result of a flip
type FlipResponse struct {
	Result    *engine.FlipResult `json:"result"`
	GameState *engine.GameState  `json:"game_state"`
	Message   string             `json:"message"`
	Events    []GameEvent        `json:"events,omitempty"`
}

// ResetResponse contains the re-dealt board. Abandoned is set when a game in
// progress was thrown away.
type ResetResponse struct {
	GameState *engine.GameState `json:"game_state"`
	Abandoned bool              `json:"abandoned"`
}

// Event types
const (
	EventFlip              = "flip"
	EventMatch             = "match"
	EventMismatch          = "mismatch"
	EventMismatchConcealed = "mismatch_concealed"
	EventVictory           = "victory"
	EventReset             = "reset"
)

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	Type      string       `json:"type"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
	Positions []int        `json:"positions,omitempty"`
	Pair      *engine.Pair `json:"pair,omitempty"`
}

// HistoryOptions configures flip history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated flip history
type HistoryResponse struct {
	Flips       []engine.FlipHistoryEntry `json:"flips"`
	TotalFlips  int                       `json:"total_flips"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// CardSetInfo summarises a stored card set
type CardSetInfo struct {
	Name      string           `json:"name"`
	BoardSize engine.BoardSize `json:"board_size"`
	NumImages int              `json:"num_images"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewCardSetInfo summarises set. Sets that fill no board are reported as easy.
func NewCardSetInfo(set *engine.CardSet) *CardSetInfo {
	size, _ := set.BoardSize()
	return &CardSetInfo{
		Name:      set.Name,
		BoardSize: size,
		NumImages: len(set.Images),
		CreatedAt: set.CreatedAt,
	}
}

// CreateCardSetRequest carries a new custom game. Either Images (raw uploads)
// or ImageURLs (already hosted) must hold exactly one entry per pair.
type CreateCardSetRequest struct {
	Name      string
	BoardSize engine.BoardSize
	Images    [][]byte
	ImageURLs []string
	// Progress is called after each image upload
	Progress func(done, total int)
}
