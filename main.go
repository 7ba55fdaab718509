// Command memorymatch starts the Memory Match game server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Configuration comes from appconfig (defaults, memorymatch.yaml, MEMORYMATCH_*
// environment, .env); command-line flags override it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/memorymatch/api"
	"github.com/wricardo/mcp-training/memorymatch/appconfig"
	"github.com/wricardo/mcp-training/memorymatch/game/cardset"
	"github.com/wricardo/mcp-training/memorymatch/game/images"
	"github.com/wricardo/mcp-training/memorymatch/game/leaderboard"
	"github.com/wricardo/mcp-training/memorymatch/game/service"
	"github.com/wricardo/mcp-training/memorymatch/game/session"
	"github.com/wricardo/mcp-training/memorymatch/logging"
	"github.com/wricardo/mcp-training/memorymatch/transport/mcp"
	"github.com/wricardo/mcp-training/memorymatch/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Memory Match Server"
)

const defaultExternalAPI = "http://localhost:8080"

func main() {
	// Load .env file if it exists
	if err := appconfig.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Flags are inherited by subcommands.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "memorymatch",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file (default ./memorymatch.yaml if present)", Sources: cli.EnvVars("MEMORYMATCH_CONFIG")},
			&cli.StringFlag{Name: "host", Usage: "HTTP server host"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "HTTP server port"},
			&cli.StringFlag{Name: "data-dir", Usage: "directory for sessions, card sets and uploaded images"},
			&cli.StringFlag{Name: "cardset-backend", Usage: "card set store: file, redis or postgres"},
			&cli.DurationFlag{Name: "conceal-delay", Usage: "hide a mismatch after this long (0 waits for the next flip)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
			&cli.BoolFlag{Name: "debug", Usage: "shorthand for --log-level debug"},
			&cli.BoolFlag{Name: "ngrok", Usage: "enable ngrok tunnel"},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token (or NGROK_AUTHTOKEN)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain"},
		},
		Action: runServerCommand,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint (default)",
				Action:  runServerCommand,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server, reusing a running API or starting an internal one",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "api-url", Value: defaultExternalAPI, Usage: "external API to reuse when reachable"},
				},
				Action: runStdioCommand,
			},
		},
	}
}

// loadConfig reads appconfig and applies flag overrides
func loadConfig(cmd *cli.Command) (*appconfig.Config, error) {
	cfg, err := appconfig.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = cmd.Int("port")
	}
	if cmd.IsSet("data-dir") {
		cfg.Storage.DataDir = cmd.String("data-dir")
		cfg.Storage.SessionsDir, cfg.Storage.BlobsDir, cfg.CardSets.Dir = "", "", ""
	}
	if cmd.IsSet("cardset-backend") {
		cfg.CardSets.Backend = cmd.String("cardset-backend")
	}
	if cmd.IsSet("conceal-delay") {
		cfg.Game.ConcealDelay = cmd.Duration("conceal-delay")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.Bool("debug") {
		cfg.Log.Level = "debug"
	}
	if cmd.IsSet("log-format") {
		cfg.Log.Format = cmd.String("log-format")
	}
	if cmd.Bool("ngrok") {
		cfg.Ngrok.Enabled = true
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.Ngrok.AuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}

	// Image URLs must be reachable through the tunnel when one is configured
	if cfg.Server.PublicURL == "" && cfg.Ngrok.Enabled && cfg.Ngrok.Domain != "" {
		cfg.Server.PublicURL = "https://" + cfg.Ngrok.Domain
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads configuration, installs the logger (always on stderr, stdout
// belongs to the MCP stdio transport) and wires services
func setup(ctx context.Context, cmd *cli.Command) (*services, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}
	logger.Info("starting", "app", AppName, "version", Version, "command", cmd.Name)

	return initializeServices(ctx, cfg, logger)
}

func runServerCommand(ctx context.Context, cmd *cli.Command) error {
	svc, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	return runHTTPServer(ctx, svc)
}

func runStdioCommand(ctx context.Context, cmd *cli.Command) error {
	svc, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	return runStdioMCPWithInternalServer(ctx, svc, cmd.String("api-url"))
}

// services holds everything the transports need
type services struct {
	cfg         *appconfig.Config
	logger      *slog.Logger
	sessions    *session.Manager
	persistence *session.FilePersistence
	cardSets    cardset.Store
	blobs       *images.FileBlobStore
	hub         *websocket.Hub
	game        service.GameService
}

// initializeServices wires stores, the session manager and the game service.
// Background routines (hub, session cleanup, filesystem sync) stop with ctx.
func initializeServices(ctx context.Context, cfg *appconfig.Config, logger *slog.Logger) (*services, error) {
	cardSets, err := cardset.Open(ctx, cardset.Options{
		Backend:     cfg.CardSets.Backend,
		Dir:         cfg.CardSets.Dir,
		RedisURL:    cfg.CardSets.RedisURL,
		DatabaseURL: cfg.CardSets.DatabaseURL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open card set store: %w", err)
	}

	blobs, err := images.NewFileBlobStore(cfg.Storage.BlobsDir, cfg.BaseURL())
	if err != nil {
		cardSets.Close()
		return nil, err
	}

	persistence, err := session.NewFilePersistence(cfg.Storage.SessionsDir, cardSets)
	if err != nil {
		cardSets.Close()
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(persistence)
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		logger.Warn("failed to load persisted sessions", "error", err)
	}

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	gameService := service.NewGameService(sessionManager, service.Options{
		CardSets:     cardSets,
		Uploader:     images.NewUploader(blobs, logger),
		Leaderboard:  leaderboard.New(),
		ConcealDelay: cfg.Game.ConcealDelay,
		Listener:     hub,
		Logger:       logger,
	})

	svc := &services{
		cfg:         cfg,
		logger:      logger,
		sessions:    sessionManager,
		persistence: persistence,
		cardSets:    cardSets,
		blobs:       blobs,
		hub:         hub,
		game:        gameService,
	}

	go svc.sessionCleanupRoutine(ctx)
	go svc.filesystemSyncRoutine(ctx)

	logger.Info("services ready",
		"sessions", sessionManager.Count(),
		"cardset_backend", cfg.CardSets.Backend,
		"conceal_delay", cfg.Game.ConcealDelay)

	return svc, nil
}

// Close flushes sessions and releases the card set store
func (s *services) Close() {
	if err := s.sessions.SaveAllSessions(); err != nil {
		s.logger.Warn("failed to save sessions", "error", err)
	}
	if err := s.cardSets.Close(); err != nil {
		s.logger.Warn("failed to close card set store", "error", err)
	}
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed within the session TTL
func (s *services) sessionCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Game.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.sessions.CleanupExpiredSessions(s.cfg.Game.SessionTTL); removed > 0 {
				s.logger.Info("cleaned up expired sessions", "count", removed)
			}
		}
	}
}

// filesystemSyncRoutine drops in-memory sessions whose files were deleted
func (s *services) filesystemSyncRoutine(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Game.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := s.sessions.PruneDeleted(); pruned > 0 {
				s.logger.Info("filesystem sync pruned orphaned sessions", "count", pruned)
			}
		}
	}
}

// newAPIServer builds the REST server over the wired services
func (s *services) newAPIServer() *api.Server {
	opts := api.Options{
		ImagesRoot:     s.blobs.Root(),
		MaxUploadBytes: s.cfg.MaxUploadBytes(),
		Logger:         s.logger,
	}
	if info, err := os.Stat(s.cfg.Server.StaticDir); err == nil && info.IsDir() {
		opts.StaticDir = s.cfg.Server.StaticDir
	}
	return api.NewServer(s.game, s.hub, opts)
}

// mcpHTTPHandler serves single JSON-RPC messages posted to /mcp
func mcpHTTPHandler(mcpServer *server.MCPServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpServer.HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newRouter combines the API and the /mcp endpoint. The MCP client calls the
// API at apiBaseURL.
func (s *services) newRouter(apiBaseURL string) http.Handler {
	mcpClient := mcp.NewClient(apiBaseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", s.newAPIServer())
	mainRouter.HandleFunc("/mcp", mcpHTTPHandler(mcpClient.GetMCPServer()))
	return mainRouter
}

// runHTTPServer serves the API, WebSocket hub and /mcp until ctx is done.
// With ngrok enabled it also serves through a public tunnel.
func runHTTPServer(ctx context.Context, svc *services) error {
	addr := svc.cfg.Addr()
	handler := svc.newRouter("http://" + addr)
	logger := svc.logger

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening",
			"addr", addr,
			"api", "http://"+addr+"/api",
			"websocket", "ws://"+addr+"/ws?session=<session_id>",
			"mcp", "http://"+addr+"/mcp")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	if svc.cfg.Ngrok.Enabled {
		g.Go(func() error {
			runNgrokTunnel(gctx, svc.cfg.Ngrok, handler, logger)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown error", "error", err)
		}
		return nil
	})

	err := g.Wait()
	logger.Info("server stopped")
	return err
}

// runNgrokTunnel serves handler through an ngrok endpoint until ctx is done.
// Tunnel failures are logged; the local server keeps running.
func runNgrokTunnel(ctx context.Context, cfg appconfig.NgrokConfig, handler http.Handler, logger *slog.Logger) {
	if cfg.AuthToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	logger.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
		logger.Info("using custom ngrok domain", "domain", cfg.Domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "error", err)
		return
	}

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established",
		"url", ngrokURL,
		"api", ngrokURL+"/api",
		"websocket", ngrokURL+"/ws?session=<session_id>",
		"mcp", ngrokURL+"/mcp")

	tunnelServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		tunnelServer.Close()
	}()

	if err := tunnelServer.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("ngrok server error", "error", err)
	}
	logger.Info("ngrok tunnel closed")
}

// externalAPIAvailable reports whether a memory match API answers at baseURL
func externalAPIAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// startInternalAPI serves the API on a random loopback port and returns its URL
func startInternalAPI(ctx context.Context, svc *services) (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to get available port: %w", err)
	}
	baseURL := "http://" + listener.Addr().String()

	httpServer := &http.Server{Handler: svc.newAPIServer()}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			svc.logger.Error("internal HTTP server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	return baseURL, nil
}

// runStdioMCPWithInternalServer runs an MCP stdio server. It reuses the API at
// externalURL when it answers; otherwise it starts an internal API on a
// random loopback port.
func runStdioMCPWithInternalServer(ctx context.Context, svc *services, externalURL string) error {
	logger := svc.logger

	baseURL := externalURL
	if externalAPIAvailable(ctx, externalURL) {
		logger.Info("external API server found, using it for MCP", "url", externalURL)
	} else {
		var err error
		baseURL, err = startInternalAPI(ctx, svc)
		if err != nil {
			return err
		}
		logger.Info("no external API server found, started internal HTTP server", "url", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready", "api", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
