package engine

import "time"

const (
	// Card set validation constants
	MinGameNameLength = 3
	MaxGameNameLength = 14

	// Image processing constants
	ScaledImageHeight = 250
	JPEGQuality       = 60

	WebSocketBufferSize = 256
)

// DefaultIcons are the built-in card faces used when no custom card set is chosen
var DefaultIcons = []string{
	"baby",
	"face",
	"flower",
	"headset",
	"home",
	"leaf",
	"pizza",
	"plane",
	"puzzle",
	"run",
	"walk",
	"trophy",
}

// MemoryCard is a single card on the board
type MemoryCard struct {
	Identifier string `json:"identifier"`
	ImageURL   string `json:"image_url,omitempty"` // Set for custom card sets
	FaceUp     bool   `json:"face_up"`
	Matched    bool   `json:"matched"`
}

// CardSet is a custom game document: a name mapped to image URLs, one per pair
type CardSet struct {
	Name      string    `json:"name"`
	Images    []string  `json:"images"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Pair holds two board positions
type Pair struct {
	First  int `json:"first"`
	Second int `json:"second"`
}

// GameState represents the complete game state
type GameState struct {
	BoardSize   BoardSize    `json:"board_size"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	CardSetName string       `json:"card_set_name,omitempty"`
	Cards       []MemoryCard `json:"cards"`

	NumCardFlips  int    `json:"num_card_flips"`
	NumMoves      int    `json:"num_moves"`
	NumPairsFound int    `json:"num_pairs_found"`
	TotalPairs    int    `json:"total_pairs"`
	PendingFlip   *int   `json:"pending_flip,omitempty"`
	Mismatched    *Pair  `json:"mismatched,omitempty"` // Face-up pair waiting to be concealed
	Won           bool   `json:"won"`
	Message       string `json:"message"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// FlipHistory is cumulative across resets; CurrentFlips covers the current board only.
	FlipHistory       []FlipHistoryEntry `json:"flip_history"`
	TotalFlips        int                `json:"total_flips"`
	CurrentFlipsCount int                `json:"current_flips_count"`

	// Computed helper views (not required for core game logic)
	Progress float64  `json:"progress"`
	Board    []string `json:"board,omitempty"`
}

// FlipResult describes the outcome of an accepted flip
type FlipResult struct {
	Position   int    `json:"position"`
	Identifier string `json:"identifier"`
	Matched    bool   `json:"matched"`
	Mismatch   *Pair  `json:"mismatch,omitempty"`
	Concealed  *Pair  `json:"concealed,omitempty"` // Previous mismatch flipped down by this flip
	Won        bool   `json:"won"`
	PairsFound int    `json:"pairs_found"`
	Moves      int    `json:"moves"`
}

// FlipHistoryEntry represents a single accepted flip
type FlipHistoryEntry struct {
	Position   int    `json:"position"`
	Identifier string `json:"identifier"`
	Matched    bool   `json:"matched"`
	Mismatch   bool   `json:"mismatch"`
	Moves      int    `json:"moves"`
	PairsFound int    `json:"pairs_found"`
	Timestamp  int64  `json:"timestamp"`
	FlipNumber int    `json:"flip_number"`
}
