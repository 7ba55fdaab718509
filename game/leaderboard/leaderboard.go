package leaderboard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
)

const (
	// DefaultLimit is used when Top is asked for n <= 0 entries
	DefaultLimit = 10
	// AllDifficulties selects entries of every board size
	AllDifficulties = "all"

	baseScore      = 1000
	extraMoveCost  = 10
	maxKeptPerSize = 100
)

var ErrUnknownDifficulty = errors.New("unknown difficulty")

// Entry is one finished game
type Entry struct {
	ID              string           `json:"id"`
	SessionID       string           `json:"session_id"`
	Player          string           `json:"player"`
	Difficulty      engine.BoardSize `json:"difficulty"`
	CardSet         string           `json:"card_set,omitempty"`
	Moves           int              `json:"moves"`
	DurationSeconds int              `json:"duration_seconds"`
	Score           int              `json:"score"`
	FinishedAt      time.Time        `json:"finished_at"`
}

// Score rewards few extra moves and a quick finish.
// A perfect game takes one move per pair.
func Score(moves, pairs, durationSeconds int) int {
	extra := max(moves-pairs, 0)
	return max(baseScore-extraMoveCost*extra-durationSeconds, 0)
}

// NewEntry builds an entry from a won game state
func NewEntry(sessionID, player string, state *engine.GameState) Entry {
	finished := time.Now()
	if state.FinishedAt != nil {
		finished = *state.FinishedAt
	}
	duration := int(finished.Sub(state.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}
	if player == "" {
		player = "anonymous"
	}
	return Entry{
		SessionID:       sessionID,
		Player:          player,
		Difficulty:      state.BoardSize,
		CardSet:         state.CardSetName,
		Moves:           state.NumMoves,
		DurationSeconds: duration,
		Score:           Score(state.NumMoves, state.TotalPairs, duration),
		FinishedAt:      finished,
	}
}

// Board keeps the best results per board size in memory
type Board struct {
	entries map[engine.BoardSize][]Entry
	mu      sync.RWMutex
}

// New creates an empty leaderboard
func New() *Board {
	return &Board{
		entries: make(map[engine.BoardSize][]Entry),
	}
}

// Record stores an entry, assigning its ID, and returns it
func (b *Board) Record(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	list := append(b.entries[entry.Difficulty], entry)
	sortEntries(list)
	if len(list) > maxKeptPerSize {
		list = list[:maxKeptPerSize]
	}
	b.entries[entry.Difficulty] = list
	return entry
}

// Top returns the best n entries for a difficulty name, or across every
// difficulty for "all"
func (b *Board) Top(difficulty string, n int) ([]Entry, error) {
	if n <= 0 {
		n = DefaultLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Entry
	if d := strings.ToLower(strings.TrimSpace(difficulty)); d == "" || d == AllDifficulties {
		for _, list := range b.entries {
			result = append(result, list...)
		}
	} else {
		size, err := engine.ParseBoardSize(d)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDifficulty, difficulty)
		}
		result = append(result, b.entries[size]...)
	}

	sortEntries(result)
	if len(result) > n {
		result = result[:n]
	}
	if result == nil {
		result = []Entry{}
	}
	return result, nil
}

func sortEntries(list []Entry) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		if list[i].Moves != list[j].Moves {
			return list[i].Moves < list[j].Moves
		}
		return list[i].FinishedAt.Before(list[j].FinishedAt)
	})
}
