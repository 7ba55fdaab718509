package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
	"github.com/wricardo/mcp-training/memorymatch/game/service"
)

// RemoteBoard plays a session over the REST API. It satisfies solver.Board
// and solver.Concealer, caching the last state the server returned.
type RemoteBoard struct {
	baseURL   string
	sessionID string
	client    *http.Client
	ctx       context.Context

	state *engine.GameState
	err   error // last transport error from a method without an error return
}

// NewRemoteBoard creates a client for the server at baseURL
func NewRemoteBoard(ctx context.Context, baseURL string) *RemoteBoard {
	return &RemoteBoard{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		ctx: ctx,
	}
}

// SessionID returns the session being played
func (c *RemoteBoard) SessionID() string {
	return c.sessionID
}

// Err reports the last error swallowed by GetState or ConcealMismatch
func (c *RemoteBoard) Err() error {
	return c.err
}

func (c *RemoteBoard) do(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(c.ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *RemoteBoard) send(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s failed: %s - %s", req.Method, req.URL.Path, resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s %s failed: %s - %s", req.Method, req.URL.Path, resp.Status, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// CreateSession starts a new game
func (c *RemoteBoard) CreateSession(size, cardSet string) (*service.SessionInfo, error) {
	req := map[string]string{}
	if size != "" {
		req["board_size"] = size
	}
	if cardSet != "" {
		req["card_set"] = cardSet
	}

	var info service.SessionInfo
	if err := c.do(http.MethodPost, "/api/sessions", req, &info); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.sessionID = info.ID
	c.state = info.GameState
	return &info, nil
}

// Resume attaches to an existing session
func (c *RemoteBoard) Resume(sessionID string) (*service.SessionInfo, error) {
	c.sessionID = sessionID
	var info service.SessionInfo
	if err := c.do(http.MethodGet, c.sessionPath(""), nil, &info); err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}
	c.state = info.GameState
	return &info, nil
}

// Reset re-deals the board
func (c *RemoteBoard) Reset() (*engine.GameState, error) {
	var resp struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}
	if err := c.do(http.MethodPost, c.sessionPath("/reset"), nil, &resp); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	c.state = resp.State
	return resp.State, nil
}

// GetState returns the cached state, fetching it when none is held yet
func (c *RemoteBoard) GetState() *engine.GameState {
	if c.state != nil {
		return c.state
	}
	var state engine.GameState
	if err := c.do(http.MethodGet, c.sessionPath("/state"), nil, &state); err != nil {
		c.err = err
		return &engine.GameState{}
	}
	c.state = &state
	return c.state
}

// FlipCard flips the card at position
func (c *RemoteBoard) FlipCard(position int) (*engine.FlipResult, error) {
	var resp service.FlipResponse
	if err := c.do(http.MethodPost, c.sessionPath("/flip"), map[string]int{"position": position}, &resp); err != nil {
		return nil, err
	}
	c.state = resp.GameState
	return resp.Result, nil
}

// ConcealMismatch turns a face-up mismatch back over
func (c *RemoteBoard) ConcealMismatch() *engine.Pair {
	var pair *engine.Pair
	if c.state != nil {
		pair = c.state.Mismatched
	}

	var state engine.GameState
	if err := c.do(http.MethodPost, c.sessionPath("/conceal"), nil, &state); err != nil {
		c.err = err
		return nil
	}
	c.state = &state
	return pair
}

func (c *RemoteBoard) sessionPath(suffix string) string {
	return "/api/sessions/" + c.sessionID + suffix
}

// UploadCardSet posts image files as a new card set
func (c *RemoteBoard) UploadCardSet(name, size string, files []string) (*service.CardSetInfo, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("name", name); err != nil {
		return nil, err
	}
	if err := form.WriteField("board_size", size); err != nil {
		return nil, err
	}
	for _, path := range files {
		if err := attachFile(form, path); err != nil {
			return nil, err
		}
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, c.baseURL+"/api/cardsets", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var info service.CardSetInfo
	if err := c.send(req, &info); err != nil {
		return nil, fmt.Errorf("upload card set: %w", err)
	}
	return &info, nil
}

func attachFile(form *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := form.CreateFormFile("images", filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}
