// Package engine is the embedder-facing façade: one Engine owns a
// configured solver and hands out move decisions. All state lives behind
// it; callers never touch the search internals.
package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tesela-ai/tesela/board"
	"github.com/tesela-ai/tesela/config"
	"github.com/tesela-ai/tesela/eval"
	"github.com/tesela-ai/tesela/expectimax"
)

// ErrSearchBusy is returned when a decision is requested while another
// search on the same engine is still running.
var ErrSearchBusy = errors.New("a search is already in progress on this engine")

// Stats is a read-only snapshot of engine counters. Node and cache counts
// accumulate across searches until the cache is cleared.
type Stats struct {
	NodesEvaluated     uint64
	CacheHits          uint64
	CacheSize          uint64
	LastSearchDuration time.Duration
}

type Engine struct {
	cfg    *config.Config
	solver *expectimax.Solver

	searching    atomic.Bool
	lastDuration atomic.Int64
}

// New builds an engine from cfg. The config's Difficulty names the initial
// profile.
func New(cfg *config.Config) (*Engine, error) {
	solver, err := expectimax.NewSolver(eval.New(cfg.Weights), cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, solver: solver}, nil
}

// BestMove returns the best direction for the board at the current
// difficulty. ok is false when the board has no legal move. Only one search
// may run at a time; a concurrent call gets ErrSearchBusy. If ctx is
// canceled mid-search the result must be discarded.
func (e *Engine) BestMove(ctx context.Context, b board.Board) (board.Direction, bool, error) {
	if !e.searching.CompareAndSwap(false, true) {
		return 0, false, ErrSearchBusy
	}
	defer e.searching.Store(false)

	start := time.Now()
	dir, ok, err := e.solver.Solve(ctx, b)
	e.lastDuration.Store(int64(time.Since(start)))
	return dir, ok, err
}

// Hint is BestMove under the name interactive callers use: a suggestion for
// the player's board that the caller is free to ignore.
func (e *Engine) Hint(ctx context.Context, b board.Board) (board.Direction, bool, error) {
	return e.BestMove(ctx, b)
}

// SetDifficulty switches to the named profile and clears the cache, since
// cached values are only meaningful under one depth regime. Unknown levels
// are rejected; mid-search calls get ErrSearchBusy.
func (e *Engine) SetDifficulty(level string) error {
	if !e.searching.CompareAndSwap(false, true) {
		return ErrSearchBusy
	}
	defer e.searching.Store(false)

	profile, err := e.cfg.ProfileFor(level)
	if err != nil {
		return err
	}
	e.cfg.Difficulty = strings.ToLower(level)
	e.solver.SetProfile(profile)
	log.Info().Str("difficulty", e.cfg.Difficulty).Msg("difficulty-changed")
	return nil
}

// Difficulty returns the active profile name.
func (e *Engine) Difficulty() string {
	return e.cfg.Difficulty
}

// ClearCache drops all memoized search state. Never call it while a search
// is running.
func (e *Engine) ClearCache() {
	e.solver.ClearCache()
}

// Stats snapshots the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		NodesEvaluated:     e.solver.Nodes(),
		CacheHits:          e.solver.CacheHits(),
		CacheSize:          e.solver.CacheSize(),
		LastSearchDuration: time.Duration(e.lastDuration.Load()),
	}
}

// SetYield installs a cooperative suspension hook on the underlying search.
func (e *Engine) SetYield(fn func()) {
	e.solver.SetYield(fn)
}

// SetLogStream directs per-depth search iteration logs to w.
func (e *Engine) SetLogStream(w io.Writer) {
	e.solver.SetLogStream(w)
}
