package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
	"github.com/wricardo/mcp-training/memorymatch/game/leaderboard"
	"github.com/wricardo/mcp-training/memorymatch/game/service"
)

const (
	serverName    = "Memory Match"
	serverVersion = "1.0.0"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Memory Match - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Find every pair of matching cards. Flip two cards per move; a match stays
face up, a mismatch is turned back face down.

AVAILABLE TOOLS:
- create_session: Start a game (board_size easy|medium|hard, optional card_set)
- game_state: Show the board
- flip_card: Flip the card at a position - requires intent explanation
- conceal_mismatch: Turn a showing mismatch face down
- reset_game: Re-deal the board
- flip_history: View past flips
- get_session / list_sessions: Session details
- list_card_sets / get_card_set: Custom games
- leaderboard: Best finished games
- game_instructions: Rules and strategy

NOTE: The 'intent' parameter on flip_card serves as rubber duck debugging - explain your reasoning!`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"board_size": map[string]any{
					"type":        "string",
					"enum":        []string{"easy", "medium", "hard"},
					"description": "Board size (default medium)",
				},
				"card_set": map[string]any{
					"type":        "string",
					"description": "Name of a custom card set (optional, overrides board_size)",
				},
				"player": map[string]any{
					"type":        "string",
					"description": "Player name for the leaderboard (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current board",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "flip_card",
		Description: "Flip the face-down card at a board position (0-based, row by row)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"position": map[string]any{
					"type":        "integer",
					"description": "Board position to flip",
				},
				"intent": map[string]any{
					"type":        "string",
					"description": "Brief explanation of the intent behind this flip (serves as a rubber duck to help explain your reasoning)",
				},
			},
			Required: []string{"session_id", "position"},
		},
	}, c.handleFlipCard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "conceal_mismatch",
		Description: "Turn the two cards of a showing mismatch face down",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleConceal)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_game",
		Description: "Re-deal the board and start over",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "flip_history",
		Description: "Get flip history for a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"page": map[string]any{
					"type":        "integer",
					"description": "Page number",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Items per page",
				},
				"order": map[string]any{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Oldest or newest first (default desc)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleFlipHistory)

	// Custom games
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_card_sets",
		Description: "List the custom card sets available for new sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListCardSets)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_card_set",
		Description: "Get the images of a custom card set",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Card set name",
				},
			},
			Required: []string{"name"},
		},
	}, c.handleGetCardSet)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "leaderboard",
		Description: "Show the best finished games",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"difficulty": map[string]any{
					"type":        "string",
					"enum":        []string{"easy", "medium", "hard"},
					"description": "Only games on this board (optional)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Number of entries",
				},
			},
		},
	}, c.handleLeaderboard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get game instructions and rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func sessionPath(sessionID string, parts ...string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + strings.Join(parts, "")
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{}
	for _, key := range []string{"board_size", "card_set", "player"} {
		if v := request.GetString(key, ""); v != "" {
			body[key] = v
		}
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Created " + formatSessionInfo(&session)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		status := "in progress"
		if s.GameState != nil {
			if s.GameState.Won {
				status = "won"
			}
			status = fmt.Sprintf("%s, %d/%d pairs", status, s.GameState.NumPairsFound, s.GameState.TotalPairs)
		}
		fmt.Fprintf(&b, "- %s (%s board, %s, Created: %s)\n",
			s.ID, s.BoardSize, status, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleFlipCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	position, err := request.RequireInt("position")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// Intent is for the caller's benefit only
	_ = request.GetString("intent", "")

	var response service.FlipResponse
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/flip"), map[string]int{"position": position}, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatFlipResponse(&response)), nil
}

func (c *Client) handleConceal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var state engine.GameState
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/conceal"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response struct {
		Message   string            `json:"message"`
		Abandoned bool              `json:"abandoned"`
		State     *engine.GameState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	message := response.Message
	if response.Abandoned {
		message += " (previous game abandoned)"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", message, formatGameState(response.State))), nil
}

func (c *Client) handleFlipHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	query := url.Values{}
	if page := request.GetInt("page", 0); page > 0 {
		query.Set("page", fmt.Sprint(page))
	}
	if limit := request.GetInt("limit", 0); limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	if order := request.GetString("order", ""); order != "" {
		query.Set("order", order)
	}

	path := sessionPath(sessionID, "/history")
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListCardSets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sets []service.CardSetInfo
	if err := c.apiCall(ctx, "GET", "/api/cardsets", nil, &sets); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(sets) == 0 {
		return mcp.NewToolResultText("No custom card sets yet. Sessions use the built-in icons."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Card Sets (%d):\n\n", len(sets))
	for _, set := range sets {
		fmt.Fprintf(&b, "- %s (%s board, %d images)\n", set.Name, set.BoardSize, set.NumImages)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetCardSet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var set struct {
		Name      string           `json:"name"`
		Images    []string         `json:"images"`
		BoardSize engine.BoardSize `json:"board_size"`
	}
	if err := c.apiCall(ctx, "GET", "/api/cardsets/"+url.PathEscape(name), nil, &set); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Card set %s (%s board)\n", set.Name, set.BoardSize)
	for i, image := range set.Images {
		fmt.Fprintf(&b, "%d. %s\n", i+1, image)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleLeaderboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := url.Values{}
	if difficulty := request.GetString("difficulty", ""); difficulty != "" {
		query.Set("difficulty", difficulty)
	}
	if limit := request.GetInt("limit", 0); limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}

	path := "/api/leaderboard"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var entries []leaderboard.Entry
	if err := c.apiCall(ctx, "GET", path, nil, &entries); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatLeaderboard(entries)), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `🃏 Memory Match - Complete Instructions

GAME OBJECTIVE:
All cards start face down. Each face appears on exactly two cards. Find every pair.

BOARDS:
• easy: 2 x 4 cards (4 pairs)
• medium: 3 x 6 cards (9 pairs)
• hard: 4 x 6 cards (12 pairs)
Positions are numbered from 0, left to right, top to bottom.

GAME MECHANICS:
• A move is two flips
• If both cards show the same face they are matched and stay face up (✓)
• Otherwise both stay visible until the mismatch is concealed, either by
  conceal_mismatch, by the server after a short delay, or by your next flip
• Face-down and matched cards cannot be flipped again
• You win when every pair is matched

BOARD LEGEND:
• ?      face down
• label  face up (image name for custom card sets)
• ✓      matched

STRATEGY:
1. Remember every face you have seen and where it was
2. On a first flip, prefer a card whose partner you already know
3. If you know no pair, flip an unseen card first; if its partner was seen,
   flip the partner next
4. Otherwise flip another unseen card to learn more
A perfect game takes one move per pair.

SCORING:
Finished games go on the leaderboard. Fewer moves and a faster finish score higher.

Good luck!`

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	header := fmt.Sprintf("Session: %s\nBoard: %s\n", session.ID, session.BoardSize)
	if session.CardSetName != "" {
		header += fmt.Sprintf("Card set: %s\n", session.CardSetName)
	}
	if session.Player != "" {
		header += fmt.Sprintf("Player: %s\n", session.Player)
	}
	return fmt.Sprintf("%sCreated: %s\n\n%s",
		header,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		formatGameState(session.GameState))
}

func formatGameState(state *engine.GameState) string {
	if state == nil {
		return "No game state available"
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Moves: %d | Pairs: %d/%d | Flips: %d\n\n",
		state.NumMoves, state.NumPairsFound, state.TotalPairs, state.CurrentFlipsCount)

	result.WriteString(formatGrid(state))

	if state.PendingFlip != nil {
		fmt.Fprintf(&result, "\nWaiting for second flip (first card at %d)", *state.PendingFlip)
	}
	if state.Mismatched != nil {
		fmt.Fprintf(&result, "\nMismatch showing at %d and %d", state.Mismatched.First, state.Mismatched.Second)
	}
	if state.Won {
		result.WriteString("\n🎉 VICTORY!")
	}
	if state.Message != "" {
		fmt.Fprintf(&result, "\nMessage: %s", state.Message)
	}

	return result.String()
}

// formatGrid prints each card as position:label, one board row per line
func formatGrid(state *engine.GameState) string {
	if state.Width <= 0 {
		return ""
	}

	cells := make([]string, len(state.Cards))
	width := 0
	for i, card := range state.Cards {
		label := engine.FaceDownMarker
		switch {
		case card.Matched:
			label = engine.MatchedMarker
		case card.FaceUp:
			label = engine.ShortLabel(card.Identifier)
		}
		cells[i] = fmt.Sprintf("%2d:%s", i, label)
		width = max(width, len([]rune(cells[i])))
	}

	var b strings.Builder
	for i, cell := range cells {
		b.WriteString(cell)
		if (i+1)%state.Width == 0 || i == len(cells)-1 {
			b.WriteString("\n")
			continue
		}
		b.WriteString(strings.Repeat(" ", width-len([]rune(cell))+2))
	}
	return b.String()
}

func formatFlipResponse(response *service.FlipResponse) string {
	var b strings.Builder
	if r := response.Result; r != nil {
		fmt.Fprintf(&b, "✓ Flipped %d: %s\n", r.Position, engine.ShortLabel(r.Identifier))
		if r.Concealed != nil {
			fmt.Fprintf(&b, "Previous mismatch at %d and %d turned face down\n", r.Concealed.First, r.Concealed.Second)
		}
		switch {
		case r.Matched:
			b.WriteString("It's a match!\n")
		case r.Mismatch != nil:
			fmt.Fprintf(&b, "No match: %d and %d\n", r.Mismatch.First, r.Mismatch.Second)
		}
	}
	if response.Message != "" {
		fmt.Fprintf(&b, "%s\n", response.Message)
	}
	b.WriteString("\n")
	b.WriteString(formatGameState(response.GameState))
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Flip History (page %d/%d, %d flips total):\n\n", history.Page, max(history.TotalPages, 1), history.TotalFlips)
	for _, entry := range history.Flips {
		outcome := ""
		switch {
		case entry.Matched:
			outcome = " match"
		case entry.Mismatch:
			outcome = " mismatch"
		}
		fmt.Fprintf(&b, "#%d pos %d %s%s (moves %d, pairs %d)\n",
			entry.FlipNumber, entry.Position, engine.ShortLabel(entry.Identifier), outcome, entry.Moves, entry.PairsFound)
	}
	if history.HasNext {
		fmt.Fprintf(&b, "\nMore on page %d", history.Page+1)
	}
	return b.String()
}

func formatLeaderboard(entries []leaderboard.Entry) string {
	if len(entries) == 0 {
		return "No finished games yet."
	}
	var b strings.Builder
	b.WriteString("Leaderboard:\n\n")
	for i, e := range entries {
		player := e.Player
		if player == "" {
			player = "anonymous"
		}
		fmt.Fprintf(&b, "%d. %s - %d points (%s, %d moves, %ds)\n",
			i+1, player, e.Score, e.Difficulty, e.Moves, e.DurationSeconds)
	}
	return b.String()
}
