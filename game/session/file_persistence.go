package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
	"github.com/wricardo/mcp-training/memorymatch/game/service"
)

const cardSetLookupTimeout = 5 * time.Second

// FilePersistence implements SessionPersistence using file system storage
type FilePersistence struct {
	sessionsDir string
	cardSets    service.CardSetStore
}

// NewFilePersistence creates a new file-based session persistence layer.
// cardSets may be nil; custom boards are then rebuilt from the saved cards.
func NewFilePersistence(sessionsDir string, cardSets service.CardSetStore) (*FilePersistence, error) {
	// Create sessions directory if it doesn't exist
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	return &FilePersistence{
		sessionsDir: sessionsDir,
		cardSets:    cardSets,
	}, nil
}

// Save persists a session to a JSON file
func (fp *FilePersistence) Save(session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	data := PersistedSessionData{
		ID:             session.ID,
		BoardSize:      session.BoardSize,
		Player:         session.Player,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		GameState:      session.Engine.GetState(),
	}
	if session.CardSet != nil {
		data.CardSetName = session.CardSet.Name
	}

	// Marshal to JSON with indentation for readability
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	// Write through a temp file so a crash never leaves half a session
	filePath := fp.getFilePath(session.ID)
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// Load retrieves a session from a JSON file
func (fp *FilePersistence) Load(id string) (*service.Session, error) {
	jsonData, err := os.ReadFile(fp.getFilePath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var data PersistedSessionData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	if data.GameState == nil {
		return nil, fmt.Errorf("session %s has no game state", id)
	}

	var set *engine.CardSet
	if data.CardSetName != "" {
		set, err = fp.loadCardSet(data.CardSetName, data.GameState)
		if err != nil {
			return nil, err
		}
	}

	var gameEngine *engine.GameEngine
	if set != nil {
		gameEngine, err = engine.NewEngineFromCardSet(set)
	} else {
		gameEngine, err = engine.NewEngine(data.BoardSize, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create game engine: %w", err)
	}

	// Set the restored state to the engine
	if err := gameEngine.SetState(data.GameState); err != nil {
		return nil, fmt.Errorf("failed to set game state: %w", err)
	}

	return &service.Session{
		ID:             data.ID,
		Engine:         gameEngine,
		BoardSize:      gameEngine.GetBoardSize(),
		CardSet:        set,
		Player:         data.Player,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}, nil
}

// loadCardSet fetches the named set, falling back to the images on the saved
// board when the store no longer has it
func (fp *FilePersistence) loadCardSet(name string, state *engine.GameState) (*engine.CardSet, error) {
	if fp.cardSets != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cardSetLookupTimeout)
		defer cancel()
		set, err := fp.cardSets.Get(ctx, name)
		if err == nil {
			return set, nil
		}
		if !errors.Is(err, service.ErrCardSetNotFound) {
			return nil, fmt.Errorf("failed to load card set '%s': %w", name, err)
		}
	}
	return cardSetFromState(name, state), nil
}

func cardSetFromState(name string, state *engine.GameState) *engine.CardSet {
	seen := make(map[string]bool)
	set := &engine.CardSet{Name: name}
	for _, card := range state.Cards {
		if !seen[card.Identifier] {
			seen[card.Identifier] = true
			set.Images = append(set.Images, card.Identifier)
		}
	}
	return set
}

// Delete removes a session file
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	if err := os.Remove(fp.getFilePath(id)); err != nil {
		return fmt.Errorf("failed to remove session file: %w", err)
	}

	return nil
}

// ListAll returns all persisted session IDs
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessionIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			sessionIDs = append(sessionIDs, strings.TrimSuffix(name, ".json"))
		}
	}

	return sessionIDs, nil
}

// Exists checks if a session file exists
func (fp *FilePersistence) Exists(id string) bool {
	_, err := os.Stat(fp.getFilePath(id))
	return err == nil
}

// getFilePath returns the full file path for a session ID
func (fp *FilePersistence) getFilePath(id string) string {
	return filepath.Join(fp.sessionsDir, fmt.Sprintf("%s.json", id))
}
