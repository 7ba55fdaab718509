package cardset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
	"github.com/wricardo/mcp-training/memorymatch/game/service"
)

// FileStore keeps one JSON document per card set in a directory
type FileStore struct {
	dir    string
	sets   map[string]*engine.CardSet
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewFileStore creates a file-backed store, creating dir if needed
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create card set directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		dir:    dir,
		sets:   make(map[string]*engine.CardSet),
		logger: logger.With("component", "cardset", "backend", "file"),
	}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Get loads a card set by name
func (s *FileStore) Get(ctx context.Context, name string) (*engine.CardSet, error) {
	s.mu.RLock()
	// Check cache first
	if set, exists := s.sets[name]; exists {
		s.mu.RUnlock()
		return set, nil
	}
	s.mu.RUnlock()

	if err := engine.ValidateGameName(name); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrCardSetNotFound, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if set, exists := s.sets[name]; exists {
		return set, nil
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrCardSetNotFound, name)
		}
		return nil, fmt.Errorf("failed to read card set file: %w", err)
	}

	var set engine.CardSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse card set %s: %w", name, err)
	}
	// The file name is the key
	set.Name = name

	s.sets[name] = &set
	return &set, nil
}

// Create writes a new card set document, failing if the name is taken
func (s *FileStore) Create(ctx context.Context, set *engine.CardSet) error {
	if err := engine.ValidateCardSet(set); err != nil {
		return err
	}
	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal card set: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// O_EXCL makes the existence check and the write one step
	f, err := os.OpenFile(s.path(set.Name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %q", ErrCardSetExists, set.Name)
		}
		return fmt.Errorf("failed to create card set file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("failed to write card set file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close card set file: %w", err)
	}

	s.sets[set.Name] = set
	s.logger.Info("card set created", "name", set.Name, "images", len(set.Images))
	return nil
}

// List returns every readable card set, sorted by name
func (s *FileStore) List(ctx context.Context) ([]*service.CardSetInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read card set directory: %w", err)
	}

	var infos []*service.CardSetInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")

		set, err := s.Get(ctx, name)
		if err != nil {
			// Skip unreadable documents
			s.logger.Warn("skipping card set", "file", entry.Name(), "error", err)
			continue
		}
		infos = append(infos, service.NewCardSetInfo(set))
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Delete removes a card set document
func (s *FileStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sets, name)
	if err := os.Remove(s.path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %q", ErrCardSetNotFound, name)
		}
		return fmt.Errorf("failed to delete card set file: %w", err)
	}
	return nil
}

// RefreshCache drops cached documents so the next read goes to disk
func (s *FileStore) RefreshCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = make(map[string]*engine.CardSet)
}

// Close implements Store
func (s *FileStore) Close() error {
	return nil
}
