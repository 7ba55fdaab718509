// Command cardsets checks, lists and uploads card sets, and measures how
// boards play with a perfect-memory player, locally or against a running server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/memorymatch/appconfig"
	"github.com/wricardo/mcp-training/memorymatch/game/cardset"
	"github.com/wricardo/mcp-training/memorymatch/game/engine"
	"github.com/wricardo/mcp-training/memorymatch/game/solver"
	"github.com/wricardo/mcp-training/memorymatch/logging"
)

func main() {
	if err := appconfig.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "cardsets",
		Usage: "Card set tooling for the memory match server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("MEMORYMATCH_LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			validateCommand(out),
			listCommand(out),
			simulateCommand(out),
			playCommand(out),
			uploadCommand(out),
		},
	}
}

func commandLogger(cmd *cli.Command) (*slog.Logger, error) {
	return logging.New(cmd.String("log-level"), "text", os.Stderr)
}

func validateCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check card set JSON documents",
		ArgsUsage: "<file or directory>...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			paths := cmd.Args().Slice()
			if len(paths) == 0 {
				paths = []string{"data/cardsets"}
			}
			files, err := collectFiles(paths)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return errors.New("no card set files found")
			}

			failed := 0
			for _, file := range files {
				result := validateCardSetFile(file)
				if result.Valid {
					fmt.Fprintf(out, "✅ %s\n", result.File)
				} else {
					failed++
					fmt.Fprintf(out, "❌ %s\n", result.File)
				}
				for _, msg := range result.Messages {
					fmt.Fprintf(out, "   %s\n", msg)
				}
			}

			fmt.Fprintf(out, "\n%d file(s), %d invalid\n", len(files), failed)
			if failed > 0 {
				return fmt.Errorf("%d invalid card set file(s)", failed)
			}
			return nil
		},
	}
}

func listCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored card sets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "backend",
				Value:   cardset.BackendFile,
				Usage:   "Card set store (file, redis, postgres)",
				Sources: cli.EnvVars("MEMORYMATCH_CARDSETS_BACKEND"),
			},
			&cli.StringFlag{
				Name:  "dir",
				Value: "data/cardsets",
				Usage: "Directory of the file store",
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL",
				Sources: cli.EnvVars("MEMORYMATCH_CARDSETS_REDIS_URL", "REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Postgres connection URL",
				Sources: cli.EnvVars("MEMORYMATCH_CARDSETS_DATABASE_URL", "DATABASE_URL"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := commandLogger(cmd)
			if err != nil {
				return err
			}
			store, err := cardset.Open(ctx, cardset.Options{
				Backend:     cmd.String("backend"),
				Dir:         cmd.String("dir"),
				RedisURL:    cmd.String("redis-url"),
				DatabaseURL: cmd.String("database-url"),
			}, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			sets, err := store.List(ctx)
			if err != nil {
				return err
			}
			if len(sets) == 0 {
				fmt.Fprintln(out, "No card sets stored")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tBOARD\tIMAGES\tCREATED")
			for _, s := range sets {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.Name, s.BoardSize, s.NumImages, s.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func simulateCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "Play boards locally and report move counts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "size",
				Usage: "Board size to simulate (all sizes when empty)",
			},
			&cli.IntFlag{
				Name:  "games",
				Value: 100,
				Usage: "Games per board size",
			},
			&cli.IntFlag{
				Name:  "seed",
				Value: 1,
				Usage: "Seed for dealing boards",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := commandLogger(cmd)
			if err != nil {
				return err
			}
			games := cmd.Int("games")
			if games <= 0 {
				return errors.New("--games must be positive")
			}

			sizes := engine.AllBoardSizes()
			if name := cmd.String("size"); name != "" {
				size, err := engine.ParseBoardSize(name)
				if err != nil {
					return err
				}
				sizes = []engine.BoardSize{size}
			}

			for _, size := range sizes {
				report, err := simulate(ctx, size, nil, games, uint64(cmd.Int("seed")), logger)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, report)
			}
			return nil
		},
	}
}

func playCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Play a session on a running server until it is won",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://localhost:8080",
				Usage:   "Server base URL",
				Sources: cli.EnvVars("MEMORYMATCH_API_URL"),
			},
			&cli.StringFlag{
				Name:  "size",
				Value: "medium",
				Usage: "Board size for a new session",
			},
			&cli.StringFlag{
				Name:  "card-set",
				Usage: "Custom card set for a new session",
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "Resume this session instead of creating one",
			},
			&cli.IntFlag{
				Name:  "max-flips",
				Usage: "Give up after this many flips (0 for four per card)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := commandLogger(cmd)
			if err != nil {
				return err
			}
			board := NewRemoteBoard(ctx, cmd.String("url"))

			if id := cmd.String("session"); id != "" {
				if _, err := board.Resume(id); err != nil {
					return err
				}
				// Face-down cards are masked, so the player starts from a fresh deal
				if _, err := board.Reset(); err != nil {
					return err
				}
			} else {
				if _, err := board.CreateSession(cmd.String("size"), cmd.String("card-set")); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "Playing session %s\n", board.SessionID())

			moves, err := solver.NewPlayer(logger).PlayToWin(board, cmd.Int("max-flips"))
			if err == nil {
				err = board.Err()
			}
			if err != nil {
				return fmt.Errorf("session %s: %w", board.SessionID(), err)
			}

			state := board.GetState()
			fmt.Fprintf(out, "🎉 Won in %d moves (%d flips)\n", moves, state.NumCardFlips)
			for _, row := range engine.RenderBoard(state) {
				fmt.Fprintln(out, row)
			}
			return nil
		},
	}
}

func uploadCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Create a card set on a running server from image files",
		ArgsUsage: "<image>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://localhost:8080",
				Usage:   "Server base URL",
				Sources: cli.EnvVars("MEMORYMATCH_API_URL"),
			},
			&cli.StringFlag{
				Name:     "name",
				Required: true,
				Usage:    "Game name of the new card set",
			},
			&cli.StringFlag{
				Name:  "size",
				Usage: "Board size (derived from the image count when empty)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files := cmd.Args().Slice()
			if len(files) == 0 {
				return errors.New("no image files given")
			}

			size := cmd.String("size")
			if size == "" {
				s, err := engine.BoardSizeByValue(2 * len(files))
				if err != nil {
					return fmt.Errorf("%d images fill no board: %w", len(files), err)
				}
				size = s.String()
			}

			info, err := NewRemoteBoard(ctx, cmd.String("url")).UploadCardSet(cmd.String("name"), size, files)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Created card set %s (%s, %d images)\n", info.Name, info.BoardSize, info.NumImages)
			return nil
		},
	}
}
