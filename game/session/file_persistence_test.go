package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/memorymatch/game/cardset"
	"github.com/wricardo/mcp-training/memorymatch/game/engine"
	"github.com/wricardo/mcp-training/memorymatch/game/service"
)

func newTestSession(t *testing.T, id string, size engine.BoardSize, set *engine.CardSet) *service.Session {
	t.Helper()
	var (
		eng *engine.GameEngine
		err error
	)
	if set != nil {
		eng, err = engine.NewEngineFromCardSet(set)
	} else {
		eng, err = engine.NewEngine(size, nil)
	}
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return &service.Session{
		ID:             id,
		Engine:         eng,
		BoardSize:      eng.GetBoardSize(),
		CardSet:        set,
		Player:         "tester",
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}
}

func TestFilePersistence(t *testing.T) {
	tempDir := t.TempDir()

	persistence, err := NewFilePersistence(tempDir, nil)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	session := newTestSession(t, "test1", engine.Medium, nil)

	t.Run("Save and Load Session", func(t *testing.T) {
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}
		if !persistence.Exists("test1") {
			t.Error("Session file should exist after save")
		}

		loaded, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		if loaded.ID != session.ID {
			t.Errorf("Expected ID %s, got %s", session.ID, loaded.ID)
		}
		if loaded.BoardSize != engine.Medium {
			t.Errorf("Expected medium board, got %s", loaded.BoardSize)
		}
		if loaded.Player != "tester" {
			t.Errorf("Expected player tester, got %s", loaded.Player)
		}
		for i, card := range loaded.Engine.GetCards() {
			if card.Identifier != session.Engine.GetCards()[i].Identifier {
				t.Fatalf("Card %d not persisted correctly", i)
			}
		}
	})

	t.Run("Save State Changes", func(t *testing.T) {
		if _, err := session.Engine.FlipCard(3); err != nil {
			t.Fatalf("Flip failed: %v", err)
		}
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save updated session: %v", err)
		}

		loaded, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load updated session: %v", err)
		}
		if !loaded.Engine.IsCardFaceUp(3) {
			t.Error("Face up card not persisted correctly")
		}
		if p := loaded.Engine.GetState().PendingFlip; p == nil || *p != 3 {
			t.Errorf("Pending flip not persisted correctly: %v", p)
		}
		if len(loaded.Engine.GetFlipHistory()) != 1 {
			t.Errorf("Flip history not persisted correctly")
		}
	})

	t.Run("List All Sessions", func(t *testing.T) {
		if err := persistence.Save(newTestSession(t, "test2", engine.Easy, nil)); err != nil {
			t.Fatalf("Failed to save second session: %v", err)
		}
		// Non-session files are ignored
		os.WriteFile(filepath.Join(tempDir, "notes.txt"), []byte("x"), 0644)

		ids, err := persistence.ListAll()
		if err != nil {
			t.Fatalf("Failed to list sessions: %v", err)
		}
		if len(ids) != 2 {
			t.Errorf("Expected 2 sessions, got %d: %v", len(ids), ids)
		}
	})

	t.Run("Delete Session", func(t *testing.T) {
		if err := persistence.Delete("test2"); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}
		if persistence.Exists("test2") {
			t.Error("Session file should not exist after delete")
		}
		if err := persistence.Delete("test2"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Load Missing Session", func(t *testing.T) {
		if _, err := persistence.Load("missing"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestFilePersistence_CardSetSessions(t *testing.T) {
	store, err := cardset.NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Failed to create card set store: %v", err)
	}
	set := createTestCardSet()
	if err := store.Create(context.Background(), set); err != nil {
		t.Fatalf("Failed to store card set: %v", err)
	}

	persistence, err := NewFilePersistence(t.TempDir(), store)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	session := newTestSession(t, "cs01", engine.Easy, set)
	if err := persistence.Save(session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	loaded, err := persistence.Load("cs01")
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}
	if loaded.CardSet == nil || loaded.CardSet.Name != "pets" {
		t.Fatalf("Expected card set pets, got %+v", loaded.CardSet)
	}

	// Removing the set from the store still lets the board reload
	if err := store.Delete(context.Background(), "pets"); err != nil {
		t.Fatalf("Failed to delete card set: %v", err)
	}
	loaded, err = persistence.Load("cs01")
	if err != nil {
		t.Fatalf("Failed to load session after card set removal: %v", err)
	}
	if len(loaded.CardSet.Images) != 4 {
		t.Errorf("Expected card set rebuilt from board, got %d images", len(loaded.CardSet.Images))
	}
}

func TestFilePersistenceFileStructure(t *testing.T) {
	tempDir := t.TempDir()
	persistence, err := NewFilePersistence(tempDir, nil)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	session := newTestSession(t, "struct1", engine.Hard, nil)
	if err := persistence.Save(session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(tempDir, "struct1.json"))
	if err != nil {
		t.Fatalf("Failed to read session file: %v", err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("Session file is not valid JSON: %v", err)
	}
	for _, field := range []string{"id", "board_size", "created_at", "last_accessed_at", "game_state"} {
		if _, ok := data[field]; !ok {
			t.Errorf("Expected field %s in session file", field)
		}
	}
	if data["board_size"] != "hard" {
		t.Errorf("Expected board_size hard, got %v", data["board_size"])
	}
	if _, err := os.Stat(filepath.Join(tempDir, "struct1.json.tmp")); !os.IsNotExist(err) {
		t.Error("Expected temp file to be renamed away")
	}
}
