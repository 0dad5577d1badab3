package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tesela-ai/tesela/board"
	"github.com/tesela-ai/tesela/engine"
	"github.com/tesela-ai/tesela/game"
	"github.com/tesela-ai/tesela/stats"
)

var (
	autoplayGames int
	autoplaySize  int

	autoplayCmd = &cobra.Command{
		Use:   "autoplay",
		Short: "Play full games with the engine choosing every move, then report score statistics",
		RunE:  runAutoplay,
	}

	hintBoard string

	hintCmd = &cobra.Command{
		Use:   "hint",
		Short: "Print the best move for a board given as JSON rows",
		RunE:  runHint,
	}

	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Time the engine over a fixed set of positions",
		RunE:  runBench,
	}
)

func init() {
	autoplayCmd.Flags().IntVar(&autoplayGames, "games", 10, "number of games to play")
	autoplayCmd.Flags().IntVar(&autoplaySize, "size", 4, "board dimension")
	hintCmd.Flags().StringVar(&hintBoard, "board", "", `board rows as JSON, e.g. '[[2,0,0,2],[0,4,0,0],[0,0,8,0],[2,0,0,16]]'`)
	hintCmd.MarkFlagRequired("board")
}

func runAutoplay(cmd *cobra.Command, args []string) error {
	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}

	scores := make([]float64, 0, autoplayGames)
	scoreStat := &stats.Statistic{}
	moveStat := &stats.Statistic{}
	wins := 0
	bestTile := 0

	for i := 0; i < autoplayGames; i++ {
		g, err := game.New(autoplaySize)
		if err != nil {
			return err
		}
		for !g.Over() {
			dir, ok, err := eng.BestMove(cmd.Context(), g.Board())
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if err := g.Move(dir); err != nil {
				return err
			}
		}
		tile, _, _ := g.Board().MaxTile()
		if tile > bestTile {
			bestTile = tile
		}
		if g.Won() {
			wins++
		}
		scores = append(scores, float64(g.Score()))
		scoreStat.Push(float64(g.Score()))
		moveStat.Push(float64(g.Moves()))
		log.Info().
			Int("game", i+1).
			Int("score", g.Score()).
			Int("moves", g.Moves()).
			Int("max-tile", tile).
			Bool("won", g.Won()).
			Msg("game-finished")
	}

	hist := histogram.Hist(10, scores)
	if err := histogram.Fprint(os.Stdout, hist, histogram.Linear(40)); err != nil {
		return err
	}
	fmt.Printf("games %d  wins %d  best tile %d\n", autoplayGames, wins, bestTile)
	fmt.Printf("score mean %.1f  stdev %.1f  min %.0f  max %.0f\n",
		scoreStat.Mean(), scoreStat.Stdev(), scoreStat.Min(), scoreStat.Max())
	fmt.Printf("moves mean %.1f\n", moveStat.Mean())
	st := eng.Stats()
	fmt.Printf("nodes evaluated %d  cache hits %d\n", st.NodesEvaluated, st.CacheHits)
	return nil
}

func runHint(cmd *cobra.Command, args []string) error {
	var rows [][]int
	if err := json.Unmarshal([]byte(hintBoard), &rows); err != nil {
		return fmt.Errorf("parsing board: %w", err)
	}
	b, err := board.FromRows(rows)
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}
	dir, ok, err := eng.Hint(cmd.Context(), b)
	if err != nil {
		return err
	}
	out := map[string]any{"game_over": !ok}
	if ok {
		out["move"] = dir.String()
	}
	return json.NewEncoder(os.Stdout).Encode(out)
}

// benchPositions cover the phases a search meets in play: an open early
// board, a cramped midgame, and a nearly dead endgame.
var benchPositions = [][][]int{
	{
		{2, 0, 0, 2},
		{0, 4, 0, 0},
		{0, 0, 8, 0},
		{2, 0, 0, 16},
	},
	{
		{4, 16, 4, 2},
		{32, 64, 8, 0},
		{128, 16, 2, 0},
		{256, 4, 2, 0},
	},
	{
		{2, 4, 2, 4},
		{4, 2, 4, 2},
		{2, 4, 2, 0},
		{4, 2, 4, 2},
	},
}

func runBench(cmd *cobra.Command, args []string) error {
	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}

	durStat := &stats.Statistic{}
	for i, rows := range benchPositions {
		b, err := board.FromRows(rows)
		if err != nil {
			return err
		}
		start := time.Now()
		dir, ok, err := eng.BestMove(cmd.Context(), b)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)
		durStat.Push(float64(elapsed.Milliseconds()))
		nodes := eng.Stats().NodesEvaluated
		fmt.Printf("position %d: move=%v ok=%v elapsed=%v nodes=%d\n", i+1, dir, ok, elapsed, nodes)
	}
	fmt.Printf("difficulty %s  mean %.1fms  stdev %.1fms\n", cfg.Difficulty, durStat.Mean(), durStat.Stdev())
	return nil
}
