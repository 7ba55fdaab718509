package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
	"github.com/wricardo/mcp-training/memorymatch/game/leaderboard"
	"github.com/wricardo/mcp-training/memorymatch/game/service"
	"github.com/wricardo/mcp-training/memorymatch/transport/websocket"
)

const defaultMaxUploadBytes = 32 << 20

// Options configures optional parts of the server
type Options struct {
	// ImagesRoot is served under /images/; empty disables it
	ImagesRoot string
	// StaticDir is served at /; empty disables it
	StaticDir      string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Server represents the REST API server
type Server struct {
	service        service.GameService
	hub            *websocket.Hub
	router         *mux.Router
	validate       *validator.Validate
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewServer creates a new API server. hub may be nil to disable /ws.
func NewServer(gameService service.GameService, hub *websocket.Hub, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{
		service:        gameService,
		hub:            hub,
		router:         mux.NewRouter(),
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         logger.With("component", "api"),
	}

	s.setupRoutes(opts)
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes(opts Options) {
	s.router.Use(s.logRequests)

	api := s.router.PathPrefix("/api").Subrouter()

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Game operations
	api.HandleFunc("/sessions/{id}/state", s.handleGetGameState).Methods("GET")
	api.HandleFunc("/sessions/{id}/flip", s.handleFlip).Methods("POST")
	api.HandleFunc("/sessions/{id}/conceal", s.handleConceal).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset", s.handleReset).Methods("POST")
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods("GET")

	// Boards and custom games
	api.HandleFunc("/board-sizes", s.handleBoardSizes).Methods("GET")
	api.HandleFunc("/cardsets", s.handleListCardSets).Methods("GET")
	api.HandleFunc("/cardsets", s.handleCreateCardSet).Methods("POST")
	api.HandleFunc("/cardsets/{name}", s.handleGetCardSet).Methods("GET")

	api.HandleFunc("/leaderboard", s.handleLeaderboard).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Uploaded card images are stored under images/ in the blob root
	if opts.ImagesRoot != "" {
		s.router.PathPrefix("/images/").Handler(http.FileServer(http.Dir(opts.ImagesRoot)))
	}
	if opts.StaticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(opts.StaticDir)))
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack keeps WebSocket upgrades working through the recorder
func (r *statusRecorder) Hijack() (conn net.Conn, rw *bufio.ReadWriter, err error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors onto HTTP status codes
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	respondError(w, status, err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrCardSetNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrIllegalFlip),
		errors.Is(err, service.ErrCardSetExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidCardSet),
		errors.Is(err, engine.ErrUnknownBoardSize),
		errors.Is(err, leaderboard.ErrUnknownDifficulty):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUploadFailed):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrCardSetsDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeAndValidate reads a JSON body into v and runs its validate tags
func (s *Server) decodeAndValidate(r *http.Request, v any, allowEmpty bool) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return fmt.Errorf("invalid request body: %w", err)
		}
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// sessionResponse hides the faces of cards the player has not seen
func sessionResponse(info *service.SessionInfo) *service.SessionInfo {
	masked := *info
	masked.GameState = info.GameState.Masked()
	return &masked
}

// parseBoardSize accepts a name (easy, medium, hard) or a card count
func parseBoardSize(value string) (engine.BoardSize, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return engine.BoardSizeByValue(n)
	}
	return engine.ParseBoardSize(value)
}

// boardSizeParam takes a board size as a JSON string or number
type boardSizeParam string

func (p *boardSizeParam) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*p = boardSizeParam(strconv.Itoa(n))
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("board_size must be a name or a card count")
	}
	*p = boardSizeParam(name)
	return nil
}

// Session Handlers

type createSessionRequest struct {
	BoardSize boardSizeParam `json:"board_size" validate:"omitempty,max=8"`
	CardSet   string         `json:"card_set" validate:"omitempty,min=3,max=14"`
	Player    string         `json:"player" validate:"omitempty,max=32"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := s.decodeAndValidate(r, &req, true); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := service.CreateSessionOptions{
		BoardSize: engine.Medium,
		CardSet:   req.CardSet,
		Player:    req.Player,
	}
	if req.BoardSize != "" {
		size, err := parseBoardSize(string(req.BoardSize))
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.BoardSize = size
	}

	info, err := s.service.CreateSession(r.Context(), opts)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, sessionResponse(info))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	// Parse query parameters
	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of sessions to return

	if sortBy != "created" {
		sortBy = "accessed"
	}
	if order != "asc" {
		order = "desc"
	}

	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(sessions)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			sessions = sessions[:l]
		}
	}

	masked := make([]*service.SessionInfo, 0, len(sessions))
	for _, info := range sessions {
		masked = append(masked, sessionResponse(info))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(masked),
		"total":    total,
		"sessions": masked,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sessionResponse(info))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Game Operation Handlers

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetGameState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state.Masked())
}

type flipRequest struct {
	Position *int `json:"position" validate:"required,min=0"`
}

func (s *Server) handleFlip(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req flipRequest
	if err := s.decodeAndValidate(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.service.FlipCard(r.Context(), sessionID, *req.Position)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	resp.GameState = resp.GameState.Masked()

	s.logger.Info("flip",
		"session", sessionID,
		"position", *req.Position,
		"matched", resp.Result.Matched,
		"mismatch", resp.Result.Mismatch != nil,
		"pairs", resp.Result.PairsFound,
		"moves", resp.Result.Moves,
		"won", resp.Result.Won)

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConceal(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.ConcealMismatch(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state.Masked())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	resp, err := s.service.Reset(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":   "Game reset successfully",
		"abandoned": resp.Abandoned,
		"state":     resp.GameState.Masked(),
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	opts := service.HistoryOptions{
		Page:  1,
		Limit: 20,
		Order: "desc",
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			opts.Page = p
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			opts.Limit = l
		}
	}
	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	history, err := s.service.GetFlipHistory(r.Context(), mux.Vars(r)["id"], opts)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// Board and Card Set Handlers

type boardSizeInfo struct {
	Name   string `json:"name"`
	Cards  int    `json:"cards"`
	Pairs  int    `json:"pairs"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (s *Server) handleBoardSizes(w http.ResponseWriter, r *http.Request) {
	sizes := make([]boardSizeInfo, 0, 3)
	for _, size := range engine.AllBoardSizes() {
		sizes = append(sizes, boardSizeInfo{
			Name:   size.String(),
			Cards:  size.NumCards(),
			Pairs:  size.NumPairs(),
			Width:  size.Width(),
			Height: size.Height(),
		})
	}
	respondJSON(w, http.StatusOK, sizes)
}

func (s *Server) handleListCardSets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.service.ListCardSets(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sets)
}

func (s *Server) handleGetCardSet(w http.ResponseWriter, r *http.Request) {
	set, err := s.service.GetCardSet(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	size, _ := set.BoardSize()
	respondJSON(w, http.StatusOK, map[string]any{
		"name":       set.Name,
		"images":     set.Images,
		"board_size": size,
		"created_at": set.CreatedAt,
	})
}

type createCardSetRequest struct {
	Name      string         `json:"name" validate:"required,min=3,max=14"`
	BoardSize boardSizeParam `json:"board_size" validate:"required"`
	Images    []string       `json:"images" validate:"required,min=1,dive,url"`
}

func (s *Server) handleCreateCardSet(w http.ResponseWriter, r *http.Request) {
	var (
		req       service.CreateCardSetRequest
		sizeField string
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
		if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid upload: %v", err))
			return
		}
		images, err := readUploadedImages(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Name = r.FormValue("name")
		req.Images = images
		sizeField = r.FormValue("board_size")
	} else {
		var body createCardSetRequest
		if err := s.decodeAndValidate(r, &body, false); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Name = body.Name
		req.ImageURLs = body.Images
		sizeField = string(body.BoardSize)
	}

	size, err := parseBoardSize(sizeField)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.BoardSize = size
	req.Progress = func(done, total int) {
		s.logger.Debug("card set upload progress", "name", req.Name, "done", done, "total", total)
	}

	info, err := s.service.CreateCardSet(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, info)
}

// readUploadedImages collects the files sent as images or images[]
func readUploadedImages(r *http.Request) ([][]byte, error) {
	var images [][]byte
	for _, key := range []string{"images", "images[]"} {
		for _, fh := range r.MultipartForm.File[key] {
			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
			}
			images = append(images, data)
		}
	}
	if len(images) == 0 {
		return nil, errors.New("no images uploaded")
	}
	return images, nil
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := leaderboard.DefaultLimit
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 {
		limit = l
	}

	entries, err := s.service.GetLeaderboard(r.Context(), query.Get("difficulty"), limit)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusNotFound, "websocket updates are disabled")
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session parameter required")
		return
	}

	info, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.hub.ServeWS(w, r, info.ID, info.GameState.Masked())
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
