package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
	"github.com/wricardo/mcp-training/memorymatch/game/leaderboard"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Options configures the optional collaborators of the game service
type Options struct {
	// CardSets stores custom games; nil disables them
	CardSets CardSetStore
	// Uploader stores raw image uploads; nil accepts only pre-hosted URLs
	Uploader ImageUploader
	// Leaderboard records won games; nil disables recording
	Leaderboard Leaderboard
	// ConcealDelay flips a mismatched pair back after the delay. Zero leaves
	// the pair up until the next flip or an explicit conceal.
	ConcealDelay time.Duration
	// Listener is told about every state change of every session
	Listener StateListener
	Logger   *slog.Logger
}

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions    SessionManager
	cardSets    CardSetStore
	uploader    ImageUploader
	leaderboard Leaderboard
	listener    StateListener
	delay       time.Duration
	logger      *slog.Logger

	mu     sync.RWMutex
	timers map[string]*time.Timer
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, opts Options) GameService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &gameServiceImpl{
		sessions:    sessions,
		cardSets:    opts.CardSets,
		uploader:    opts.Uploader,
		leaderboard: opts.Leaderboard,
		listener:    opts.Listener,
		delay:       opts.ConcealDelay,
		logger:      logger.With("component", "service"),
		timers:      make(map[string]*time.Timer),
	}
}

// CreateSession deals a new board, from a stored card set when one is named
func (s *gameServiceImpl) CreateSession(ctx context.Context, opts CreateSessionOptions) (*SessionInfo, error) {
	var set *engine.CardSet
	if opts.CardSet != "" {
		var err error
		set, err = s.GetCardSet(ctx, opts.CardSet)
		if err != nil {
			return nil, err
		}
	} else if !opts.BoardSize.Valid() {
		return nil, fmt.Errorf("%w: %d", engine.ErrUnknownBoardSize, int(opts.BoardSize))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Create("", opts.BoardSize, set)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if opts.Player != "" {
		sess.Player = opts.Player
		s.save(sess.ID)
	}

	s.logger.Info("session created", "session", sess.ID, "board_size", sess.BoardSize.String(), "card_set", opts.CardSet)
	return s.sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	// Lookups touch the last-accessed time
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return s.sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimer(sessionID)
	if err := s.sessions.Delete(sessionID); err != nil {
		return err
	}
	s.logger.Info("session deleted", "session", sessionID)
	return nil
}

// FlipCard turns over one card and reports what happened
func (s *gameServiceImpl) FlipCard(ctx context.Context, sessionID string, position int) (*FlipResponse, error) {
	s.mu.Lock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	result, err := sess.Engine.FlipCard(position)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrIllegalFlip, err)
	}

	now := time.Now()
	events := make([]GameEvent, 0, 3)
	if result.Concealed != nil {
		s.stopTimer(sessionID)
		events = append(events, GameEvent{
			Type:      EventMismatchConcealed,
			Message:   "Mismatched cards turned back over",
			Timestamp: now,
			Positions: []int{result.Concealed.First, result.Concealed.Second},
			Pair:      result.Concealed,
		})
	}
	events = append(events, GameEvent{
		Type:      EventFlip,
		Message:   fmt.Sprintf("Flipped card %d", position),
		Timestamp: now,
		Positions: []int{position},
	})

	state := sess.Engine.GetState()
	switch {
	case result.Matched:
		first := position
		if last := lastMatchPartner(state, position); last >= 0 {
			first = last
		}
		events = append(events, GameEvent{
			Type:      EventMatch,
			Message:   state.Message,
			Timestamp: now,
			Positions: []int{first, position},
			Pair:      &engine.Pair{First: first, Second: position},
		})
	case result.Mismatch != nil:
		events = append(events, GameEvent{
			Type:      EventMismatch,
			Message:   state.Message,
			Timestamp: now,
			Positions: []int{result.Mismatch.First, result.Mismatch.Second},
			Pair:      result.Mismatch,
		})
		s.scheduleConceal(sess.ID, *result.Mismatch)
	}

	if result.Won {
		events = append(events, GameEvent{
			Type:      EventVictory,
			Message:   state.Message,
			Timestamp: now,
		})
		s.recordWin(sess, state)
	}

	s.save(sess.ID)
	snapshot := snapshotState(sess)
	s.mu.Unlock()

	s.notify(sess.ID, events[len(events)-1], snapshot)

	return &FlipResponse{
		Result:    result,
		GameState: snapshot,
		Message:   snapshot.Message,
		Events:    events,
	}, nil
}

// ConcealMismatch turns a face-up mismatched pair back over. A board with no
// mismatch showing is returned unchanged.
func (s *gameServiceImpl) ConcealMismatch(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.Lock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	pair := sess.Engine.ConcealMismatch()
	if pair != nil {
		s.stopTimer(sess.ID)
		s.save(sess.ID)
	}
	snapshot := snapshotState(sess)
	s.mu.Unlock()

	if pair != nil {
		s.notify(sess.ID, concealedEvent(*pair), snapshot)
	}
	return snapshot, nil
}

// Reset deals a fresh board with the same size and card set
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*ResetResponse, error) {
	s.mu.Lock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	abandoned := sess.Engine.GetNumMoves() > 0 && !sess.Engine.HaveWonGame()
	s.stopTimer(sess.ID)
	sess.Engine.Reset()
	s.save(sess.ID)
	snapshot := snapshotState(sess)
	s.mu.Unlock()

	if abandoned {
		s.logger.Info("game abandoned", "session", sess.ID)
	}
	s.notify(sess.ID, GameEvent{
		Type:      EventReset,
		Message:   "Game reset with a new deal",
		Timestamp: time.Now(),
	}, snapshot)

	return &ResetResponse{GameState: snapshot, Abandoned: abandoned}, nil
}

// GetGameState retrieves the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return snapshotState(sess), nil
}

// GetFlipHistory returns paginated flip history
func (s *gameServiceImpl) GetFlipHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	history := sess.Engine.GetFlipHistory()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultHistoryLimit
	}
	if opts.Limit > maxHistoryLimit {
		opts.Limit = maxHistoryLimit
	}
	if opts.Order != "asc" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := min(start+opts.Limit, total)

	flips := []engine.FlipHistoryEntry{}
	if start < total {
		if opts.Order == "desc" {
			// Most recent first
			for i := total - 1 - start; i >= total-end; i-- {
				flips = append(flips, history[i])
			}
		} else {
			flips = append(flips, history[start:end]...)
		}
	}

	return &HistoryResponse{
		Flips:       flips,
		TotalFlips:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListCardSets summarises every stored custom game
func (s *gameServiceImpl) ListCardSets(ctx context.Context) ([]*CardSetInfo, error) {
	if s.cardSets == nil {
		return []*CardSetInfo{}, nil
	}
	sets, err := s.cardSets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list card sets: %w", err)
	}
	if sets == nil {
		sets = []*CardSetInfo{}
	}
	return sets, nil
}

// GetCardSet downloads a custom game by name. The board size follows from
// the number of images.
func (s *gameServiceImpl) GetCardSet(ctx context.Context, name string) (*engine.CardSet, error) {
	if s.cardSets == nil {
		return nil, ErrCardSetsDisabled
	}

	name = engine.NormalizeGameName(name)
	set, err := s.cardSets.Get(ctx, name)
	if err != nil {
		if errors.Is(err, ErrCardSetNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load card set '%s': %w", name, err)
	}
	if err := engine.ValidateCardSet(set); err != nil {
		return nil, fmt.Errorf("stored card set '%s' is unplayable: %w", name, err)
	}
	return set, nil
}

// CreateCardSet uploads a custom game's images and stores their URLs under
// the game name. Names are first come, first served.
func (s *gameServiceImpl) CreateCardSet(ctx context.Context, req CreateCardSetRequest) (*CardSetInfo, error) {
	if s.cardSets == nil {
		return nil, ErrCardSetsDisabled
	}
	req.Name = engine.NormalizeGameName(req.Name)
	if err := engine.ValidateGameName(req.Name); err != nil {
		return nil, err
	}
	if !req.BoardSize.Valid() {
		return nil, fmt.Errorf("%w: unknown board size %d", ErrInvalidCardSet, int(req.BoardSize))
	}
	if len(req.Images) > 0 && len(req.ImageURLs) > 0 {
		return nil, fmt.Errorf("%w: send either image uploads or image URLs, not both", ErrInvalidCardSet)
	}
	count := max(len(req.Images), len(req.ImageURLs))
	if want := req.BoardSize.NumPairs(); count != want {
		return nil, fmt.Errorf("%w: a %s board needs %d images, got %d", ErrInvalidCardSet, req.BoardSize, want, count)
	}

	// Refuse taken names before spending time on uploads
	if _, err := s.cardSets.Get(ctx, req.Name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrCardSetExists, req.Name)
	} else if !errors.Is(err, ErrCardSetNotFound) {
		return nil, fmt.Errorf("failed to check card set '%s': %w", req.Name, err)
	}

	urls := req.ImageURLs
	uploaded := false
	if len(req.Images) > 0 {
		if s.uploader == nil {
			return nil, fmt.Errorf("%w: image uploads are not configured", ErrUploadFailed)
		}
		var err error
		urls, err = s.uploader.UploadAll(ctx, req.Name, req.Images, req.Progress)
		if err != nil {
			if errors.Is(err, ErrInvalidCardSet) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}
		uploaded = true
	}

	set := &engine.CardSet{
		Name:      req.Name,
		Images:    urls,
		CreatedAt: time.Now().UTC(),
	}
	if err := engine.ValidateCardSet(set); err != nil {
		if uploaded {
			s.discardImages(req.Name, urls)
		}
		return nil, err
	}

	// Another creator may have taken the name while this one uploaded;
	// only this request's images are discarded then
	if err := s.cardSets.Create(ctx, set); err != nil {
		if uploaded {
			s.discardImages(req.Name, urls)
		}
		if errors.Is(err, ErrCardSetExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to store card set '%s': %w", req.Name, err)
	}

	s.logger.Info("card set created", "name", set.Name, "images", len(set.Images), "uploaded", uploaded)
	return NewCardSetInfo(set), nil
}

// GetLeaderboard returns the best finished games for a difficulty or "all"
func (s *gameServiceImpl) GetLeaderboard(ctx context.Context, difficulty string, limit int) ([]leaderboard.Entry, error) {
	if s.leaderboard == nil {
		return []leaderboard.Entry{}, nil
	}
	return s.leaderboard.Top(difficulty, limit)
}

// getSession looks up a session and marks it accessed. Callers hold s.mu
// for writing, since LastAccessedAt is read under s.mu elsewhere.
func (s *gameServiceImpl) getSession(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

func (s *gameServiceImpl) save(sessionID string) {
	if err := s.sessions.Save(sessionID); err != nil {
		s.logger.Warn("failed to persist session", "session", sessionID, "error", err)
	}
}

func (s *gameServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	info := &SessionInfo{
		ID:             sess.ID,
		BoardSize:      sess.BoardSize,
		Player:         sess.Player,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      snapshotState(sess),
	}
	if sess.CardSet != nil {
		info.CardSetName = sess.CardSet.Name
	}
	return info
}

func (s *gameServiceImpl) recordWin(sess *Session, state *engine.GameState) {
	if s.leaderboard == nil {
		return
	}
	entry := s.leaderboard.Record(leaderboard.NewEntry(sess.ID, sess.Player, state))
	s.logger.Info("game won", "session", sess.ID, "moves", entry.Moves, "seconds", entry.DurationSeconds, "score", entry.Score)
}

func (s *gameServiceImpl) discardImages(name string, urls []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.uploader.Discard(ctx, name, urls); err != nil {
		s.logger.Warn("failed to remove uploaded images", "name", name, "error", err)
	}
}

// scheduleConceal arms the delayed concealment of pair. Callers hold s.mu.
func (s *gameServiceImpl) scheduleConceal(sessionID string, pair engine.Pair) {
	if s.delay <= 0 {
		return
	}
	key := strings.ToLower(sessionID)
	s.stopTimer(sessionID)
	s.timers[key] = time.AfterFunc(s.delay, func() {
		s.autoConceal(sessionID, pair)
	})
}

// stopTimer cancels a pending concealment. Callers hold s.mu.
func (s *gameServiceImpl) stopTimer(sessionID string) {
	key := strings.ToLower(sessionID)
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

func (s *gameServiceImpl) autoConceal(sessionID string, pair engine.Pair) {
	s.mu.Lock()
	delete(s.timers, strings.ToLower(sessionID))

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		s.mu.Unlock()
		return
	}
	// The player may have moved on already
	current := sess.Engine.GetState().Mismatched
	if current == nil || *current != pair {
		s.mu.Unlock()
		return
	}

	sess.Engine.ConcealMismatch()
	s.save(sess.ID)
	snapshot := snapshotState(sess)
	s.mu.Unlock()

	s.logger.Debug("mismatch concealed", "session", sess.ID, "first", pair.First, "second", pair.Second)
	s.notify(sess.ID, concealedEvent(pair), snapshot)
}

func (s *gameServiceImpl) notify(sessionID string, event GameEvent, state *engine.GameState) {
	if s.listener == nil {
		return
	}
	s.listener.OnStateChange(sessionID, event, state)
}

func concealedEvent(pair engine.Pair) GameEvent {
	return GameEvent{
		Type:      EventMismatchConcealed,
		Message:   "Mismatched cards turned back over",
		Timestamp: time.Now(),
		Positions: []int{pair.First, pair.Second},
		Pair:      &pair,
	}
}

// snapshotState copies the session's state with the board rendered
func snapshotState(sess *Session) *engine.GameState {
	state := sess.Engine.GetState().Clone()
	state.Board = engine.RenderBoard(state)
	return state
}

// lastMatchPartner finds the other card of the pair just matched at position
func lastMatchPartner(state *engine.GameState, position int) int {
	id := state.Cards[position].Identifier
	for i, card := range state.Cards {
		if i != position && card.Identifier == id {
			return i
		}
	}
	return -1
}
