package session

import (
	"time"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
	"github.com/wricardo/mcp-training/memorymatch/game/service"
)

// SessionPersistence stores sessions so games survive a restart.
// Load rebuilds the engine from the saved board, so a restored game keeps
// its deal, flips and pending card.
type SessionPersistence interface {
	Save(session *service.Session) error
	Load(id string) (*service.Session, error)
	Delete(id string) error
	// ListAll returns the ids of every stored session
	ListAll() ([]string, error)
	Exists(id string) bool
}

// PersistedSessionData is the on-disk form of a session
type PersistedSessionData struct {
	ID             string            `json:"id"`
	BoardSize      engine.BoardSize  `json:"board_size"`
	CardSetName    string            `json:"card_set,omitempty"`
	Player         string            `json:"player,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	GameState      *engine.GameState `json:"game_state"`
}
