package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
)

func createTestCardSet() *engine.CardSet {
	return &engine.CardSet{
		Name:   "pets",
		Images: []string{"http://img/cat.jpg", "http://img/dog.jpg", "http://img/fish.jpg", "http://img/bird.jpg"},
	}
}

func TestManager_Create(t *testing.T) {
	manager := NewManager()

	session, err := manager.Create("test1", engine.Medium, nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if session.ID != "test1" {
		t.Errorf("Expected ID test1, got %s", session.ID)
	}
	if session.BoardSize != engine.Medium {
		t.Errorf("Expected medium board, got %s", session.BoardSize)
	}
	if session.Engine == nil {
		t.Fatal("Expected engine to be created")
	}
	if len(session.Engine.GetCards()) != 18 {
		t.Errorf("Expected 18 cards, got %d", len(session.Engine.GetCards()))
	}
	if session.CreatedAt.IsZero() || session.LastAccessedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}

	// Duplicate IDs are rejected case-insensitively
	if _, err := manager.Create("TEST1", engine.Easy, nil); !errors.Is(err, ErrSessionAlreadyExists) {
		t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
	}

	// Generated IDs
	generated, err := manager.Create("", engine.Easy, nil)
	if err != nil {
		t.Fatalf("Failed to create session with generated ID: %v", err)
	}
	if len(generated.ID) != 4 {
		t.Errorf("Expected 4 character ID, got %q", generated.ID)
	}

	if _, err := manager.Create("../escape", engine.Easy, nil); !errors.Is(err, ErrInvalidSessionID) {
		t.Errorf("Expected ErrInvalidSessionID, got %v", err)
	}
	if _, err := manager.Create("bad", engine.BoardSize(7), nil); err == nil {
		t.Error("Expected error for unknown board size")
	}
}

func TestManager_CreateWithCardSet(t *testing.T) {
	manager := NewManager()
	set := createTestCardSet()

	// The card set decides the board size
	session, err := manager.Create("custom", engine.Hard, set)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if session.BoardSize != engine.Easy {
		t.Errorf("Expected easy board for 4 images, got %s", session.BoardSize)
	}
	if session.CardSet != set {
		t.Error("Expected card set to be attached to session")
	}
	if session.Engine.GetState().CardSetName != "pets" {
		t.Errorf("Expected card set name on state, got %q", session.Engine.GetState().CardSetName)
	}
}

func TestManager_Get(t *testing.T) {
	manager := NewManager()
	manager.Create("AbCd", engine.Easy, nil)

	for _, id := range []string{"AbCd", "abcd", "ABCD"} {
		session, err := manager.Get(id)
		if err != nil {
			t.Errorf("Get(%s) failed: %v", id, err)
			continue
		}
		if session.ID != "AbCd" {
			t.Errorf("Expected original ID AbCd, got %s", session.ID)
		}
	}

	if _, err := manager.Get("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager()
	manager.Create("del1", engine.Easy, nil)

	if err := manager.Delete("DEL1"); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}
	if _, err := manager.Get("del1"); !errors.Is(err, ErrSessionNotFound) {
		t.Error("Expected session to be gone after delete")
	}
	if err := manager.Delete("del1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestManager_List(t *testing.T) {
	manager := NewManager()
	if len(manager.List()) != 0 {
		t.Error("Expected empty list")
	}

	for i := 0; i < 3; i++ {
		manager.Create(fmt.Sprintf("s%d", i), engine.Easy, nil)
		time.Sleep(time.Millisecond)
	}

	sessions := manager.List()
	if len(sessions) != 3 {
		t.Fatalf("Expected 3 sessions, got %d", len(sessions))
	}
	for i, session := range sessions {
		if session.ID != fmt.Sprintf("s%d", i) {
			t.Errorf("Expected sessions oldest first, got %s at %d", session.ID, i)
		}
	}
	if manager.Count() != 3 {
		t.Errorf("Expected count 3, got %d", manager.Count())
	}
}

func TestManager_CleanupExpired(t *testing.T) {
	manager := NewManager()
	old, _ := manager.Create("old1", engine.Easy, nil)
	manager.Create("new1", engine.Easy, nil)

	old.LastAccessedAt = time.Now().Add(-2 * time.Hour)

	removed := manager.CleanupExpiredSessions(time.Hour)
	if removed != 1 {
		t.Errorf("Expected 1 removed session, got %d", removed)
	}
	if _, err := manager.Get("old1"); err == nil {
		t.Error("Expected expired session to be removed")
	}
	if _, err := manager.Get("new1"); err != nil {
		t.Error("Expected fresh session to remain")
	}
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := NewManager()
	session, _ := manager.Create("touch", engine.Easy, nil)
	before := session.LastAccessedAt

	time.Sleep(5 * time.Millisecond)
	if err := manager.UpdateLastAccessed("TOUCH"); err != nil {
		t.Fatalf("UpdateLastAccessed failed: %v", err)
	}
	if !session.LastAccessedAt.After(before) {
		t.Error("Expected last accessed time to move forward")
	}

	if err := manager.UpdateLastAccessed("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := NewManager()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			if _, err := manager.Create(id, engine.Easy, nil); err != nil {
				t.Errorf("Create %s failed: %v", id, err)
				return
			}
			if _, err := manager.Get(id); err != nil {
				t.Errorf("Get %s failed: %v", id, err)
			}
			manager.UpdateLastAccessed(id)
			manager.List()
		}(i)
	}
	wg.Wait()

	if manager.Count() != 20 {
		t.Errorf("Expected 20 sessions, got %d", manager.Count())
	}
}

func TestManager_SessionIsolation(t *testing.T) {
	manager := NewManager()
	s1, _ := manager.Create("iso1", engine.Easy, nil)
	s2, _ := manager.Create("iso2", engine.Easy, nil)

	if _, err := s1.Engine.FlipCard(0); err != nil {
		t.Fatalf("Flip failed: %v", err)
	}

	if !s1.Engine.IsCardFaceUp(0) {
		t.Error("Expected flipped card in first session")
	}
	if s2.Engine.IsCardFaceUp(0) {
		t.Error("Expected second session to be unaffected")
	}
}

func TestManager_SessionIDGeneration(t *testing.T) {
	manager := NewManager()
	ids := make(map[string]bool)

	for i := 0; i < 100; i++ {
		session, err := manager.Create("", engine.Easy, nil)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if ids[session.ID] {
			t.Fatalf("Duplicate generated ID %s", session.ID)
		}
		ids[session.ID] = true
	}
}
