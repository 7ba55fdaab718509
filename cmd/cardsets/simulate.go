package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
	"github.com/wricardo/mcp-training/memorymatch/game/solver"
)

// SimulationReport summarises solver runs on one board size
type SimulationReport struct {
	BoardSize engine.BoardSize
	Games     int
	MinMoves  int
	MaxMoves  int
	AvgMoves  float64
}

func (r SimulationReport) String() string {
	return fmt.Sprintf("%-6s games=%d moves min=%d avg=%.1f max=%d (perfect=%d)",
		r.BoardSize, r.Games, r.MinMoves, r.AvgMoves, r.MaxMoves, r.BoardSize.NumPairs())
}

// simulate plays games boards of the given size with a perfect-memory player.
// Game i is dealt from seed and i, so a run is reproducible.
func simulate(ctx context.Context, size engine.BoardSize, images []string, games int, seed uint64, logger *slog.Logger) (*SimulationReport, error) {
	moves := make([]int, games)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range games {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(seed, uint64(i)))
			board, err := engine.NewEngine(size, images, engine.WithRand(rng))
			if err != nil {
				return err
			}
			n, err := solver.NewPlayer(logger).PlayToWin(board, 0)
			if err != nil {
				return fmt.Errorf("game %d: %w", i, err)
			}
			moves[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &SimulationReport{BoardSize: size, Games: games, MinMoves: moves[0], MaxMoves: moves[0]}
	total := 0
	for _, n := range moves {
		report.MinMoves = min(report.MinMoves, n)
		report.MaxMoves = max(report.MaxMoves, n)
		total += n
	}
	report.AvgMoves = float64(total) / float64(games)
	return report, nil
}
