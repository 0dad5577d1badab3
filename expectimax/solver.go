// Package expectimax implements the depth-bounded look-ahead search that
// picks moves. The player's layers are maximizing nodes with alpha-beta
// pruning; tile spawns are chance layers whose value is an expectation over
// (cell, value) outcomes. Pruning across chance nodes compares bounds
// against expectations rather than guaranteed values, which is not formally
// sound; it is kept deliberately as a performance heuristic, matching the
// behavior this engine was tuned around.
package expectimax

import (
	"context"
	"errors"
	"io"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
	"lukechampine.com/frand"

	"github.com/tesela-ai/tesela/board"
	"github.com/tesela-ai/tesela/config"
	"github.com/tesela-ai/tesela/eval"
	"github.com/tesela-ai/tesela/montecarlo"
	"github.com/tesela-ai/tesela/zobrist"
)

var spawnOutcomes = [2]struct {
	value int
	prob  float64
}{
	{2, 0.9},
	{4, 0.1},
}

// Solver owns one search: its evaluator, transposition table, zobrist
// hasher, and difficulty profile. It is not safe for concurrent Solve
// calls; the engine façade guards against re-entrancy.
type Solver struct {
	evaluator *eval.Evaluator
	zobrist   *zobrist.Zobrist
	ttable    *TranspositionTable
	screener  *montecarlo.Screener

	profile         config.Profile
	cacheFraction   float64
	yieldInterval   uint64
	rootParallelism int
	yieldFn         func()

	nodes atomic.Uint64

	logStream io.Writer
}

// NewSolver builds a solver from config. The transposition table is sized
// once here; SetProfile and ClearCache clear it wholesale.
func NewSolver(ev *eval.Evaluator, cfg *config.Config) (*Solver, error) {
	profile, err := cfg.ProfileFor(cfg.Difficulty)
	if err != nil {
		return nil, err
	}
	s := &Solver{
		evaluator:       ev,
		zobrist:         &zobrist.Zobrist{},
		ttable:          &TranspositionTable{},
		profile:         profile,
		cacheFraction:   cfg.CacheFraction,
		yieldInterval:   uint64(cfg.YieldInterval),
		rootParallelism: cfg.RootParallelism,
	}
	if s.rootParallelism > 1 {
		s.ttable.SetMultiThreadedMode()
	} else {
		s.ttable.SetSingleThreadedMode()
	}
	s.ttable.Reset(s.cacheFraction)
	s.screener = montecarlo.NewScreener(ev, profile.ScreenRollouts, profile.ScreenHorizon)
	return s, nil
}

// SetProfile switches the difficulty profile and invalidates the cache,
// since depth semantics in the cache key change.
func (s *Solver) SetProfile(p config.Profile) {
	s.profile = p
	s.screener = montecarlo.NewScreener(s.evaluator, p.ScreenRollouts, p.ScreenHorizon)
	s.ttable.Reset(s.cacheFraction)
	s.nodes.Store(0)
}

// ClearCache drops all memoized entries and zeroes the node counter.
func (s *Solver) ClearCache() {
	s.ttable.Reset(s.cacheFraction)
	s.nodes.Store(0)
}

// SetYield installs a cooperative suspension hook, invoked at the same
// node-count cadence as the cancellation check. The caller's scheduler
// decides inside fn when the search resumes.
func (s *Solver) SetYield(fn func()) {
	s.yieldFn = fn
}

// SetLogStream directs per-depth yaml iteration logs to w.
func (s *Solver) SetLogStream(w io.Writer) {
	s.logStream = w
}

// Nodes returns the number of nodes evaluated since construction.
func (s *Solver) Nodes() uint64 { return s.nodes.Load() }

// CacheHits returns transposition table hits since the last reset.
func (s *Solver) CacheHits() uint64 { return s.ttable.Hits() }

// CacheSize returns entries stored since the last reset.
func (s *Solver) CacheSize() uint64 { return s.ttable.Size() }

type rootMove struct {
	dir   board.Direction
	board board.Board
	value float64
}

type depthLog struct {
	Ply   int            `yaml:"ply"`
	Moves []depthLogMove `yaml:"moves"`
}

type depthLogMove struct {
	Move  string  `yaml:"move"`
	Value float64 `yaml:"value"`
}

// Solve returns the best direction for the board, or ok=false when no legal
// move exists (the game is over). A canceled context returns the context
// error; any result from a canceled search must be discarded by the caller,
// since the underlying board has presumably changed.
func (s *Solver) Solve(ctx context.Context, b board.Board) (board.Direction, bool, error) {
	s.ensureZobrist(b.Dim())

	moves := s.rootMoves(b)
	if len(moves) == 0 {
		return 0, false, nil
	}
	if len(moves) == 1 {
		log.Debug().Str("move", moves[0].dir.String()).Msg("single-legal-move")
		return moves[0].dir, true, nil
	}

	if s.profile.Screening && s.profile.ScreenKeep > 0 && len(moves) > s.profile.ScreenKeep {
		screened, err := s.screener.Rank(ctx, b, lo.Map(moves, func(m rootMove, _ int) board.Direction {
			return m.dir
		}))
		if err != nil {
			return 0, false, err
		}
		keep := make(map[board.Direction]bool, s.profile.ScreenKeep)
		for _, sm := range screened[:s.profile.ScreenKeep] {
			keep[sm.Dir] = true
		}
		moves = lo.Filter(moves, func(m rootMove, _ int) bool { return keep[m.dir] })
	}

	tstart := time.Now()

	g := &errgroup.Group{}
	done := make(chan bool)
	g.Go(func() error {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		var lastNodes uint64
		for {
			select {
			case <-done:
				return nil
			case <-ticker.C:
				nodes := s.Nodes()
				log.Debug().Uint64("nps", nodes-lastNodes).Msg("nodes-per-second")
				lastNodes = nodes
			}
		}
	})

	var bestDir board.Direction
	var haveResult bool
	var completedDepth int
	var searchErr error

	g.Go(func() error {
		defer close(done)
		bestDir, haveResult, completedDepth, searchErr = s.deepen(ctx, moves)
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, false, err
	}
	if searchErr != nil {
		return 0, false, searchErr
	}
	if !haveResult {
		// The budget ran out before even depth 1 completed. Degrade to a
		// one-ply static choice rather than returning nothing.
		bestDir = s.staticChoice(moves)
		completedDepth = 0
	}

	log.Info().
		Str("move", bestDir.String()).
		Int("depth", completedDepth).
		Uint64("ttable-created", s.ttable.Size()).
		Uint64("ttable-lookups", s.ttable.Lookups()).
		Uint64("ttable-hits", s.ttable.Hits()).
		Float64("time-elapsed-sec", time.Since(tstart).Seconds()).
		Msg("solve-returning")
	return bestDir, true, nil
}

// deepen runs iterative deepening (or a single fixed-depth pass) and
// returns the choice of the deepest fully completed depth.
func (s *Solver) deepen(ctx context.Context, moves []rootMove) (board.Direction, bool, int, error) {
	target := s.profile.Depth
	if target > zobrist.MaxDepth {
		target = zobrist.MaxDepth
	}
	start := 1
	if !s.profile.IterativeDeepening {
		start = target
	}
	// the budget binds either way; a fixed-depth search that blows it
	// degrades to the static fallback in Solve
	searchCtx := ctx
	if s.profile.TimeBudgetMs > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, time.Duration(s.profile.TimeBudgetMs)*time.Millisecond)
		defer cancel()
	}

	var bestDir board.Direction
	haveResult := false
	completed := 0
	for d := start; d <= target; d++ {
		dir, err := s.searchRoot(searchCtx, moves, d)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				// the budget, not the caller, cut us off; the previous
				// completed depth stands
				log.Debug().Int("abandoned-depth", d).Msg("time-budget-exhausted")
				return bestDir, haveResult, completed, nil
			}
			return 0, false, 0, err
		}
		bestDir = dir
		haveResult = true
		completed = d
		log.Debug().Int("ply", d).Str("best", dir.String()).Msg("deepening-iteratively")
		s.writeDepthLog(d, moves)
		// order root moves by value for the next iteration
		sort.SliceStable(moves, func(i, j int) bool {
			return moves[i].value > moves[j].value
		})
	}
	return bestDir, haveResult, completed, nil
}

// searchRoot evaluates every root move at the given depth and picks the
// best, optionally jittered by the profile's randomness factor to vary play
// among near-ties at low difficulty.
func (s *Solver) searchRoot(ctx context.Context, moves []rootMove, depth int) (board.Direction, error) {
	if s.rootParallelism > 1 {
		if err := s.searchRootParallel(ctx, moves, depth); err != nil {
			return 0, err
		}
	} else {
		α := math.Inf(-1)
		β := math.Inf(1)
		for i := range moves {
			key := s.zobrist.Hash(moves[i].board, depth-1, zobrist.KindChance)
			v, err := s.chanceNode(ctx, key, moves[i].board, depth-1, α, β)
			if err != nil {
				return 0, err
			}
			moves[i].value = v
			α = math.Max(α, v)
		}
	}

	best := moves[0]
	bestJittered := math.Inf(-1)
	for _, m := range moves {
		jv := m.value
		if s.profile.RandomnessFactor > 0 {
			jv += (frand.Float64() - 0.5) * 2 * s.profile.RandomnessFactor * math.Abs(m.value)
		}
		if jv > bestJittered {
			bestJittered = jv
			best = m
		}
	}
	return best.dir, nil
}

// searchRootParallel evaluates root moves concurrently. Sibling move
// evaluations are independent pure functions of their board snapshots, so
// order does not matter; each goroutine starts with an open window (no
// cross-sibling alpha sharing).
func (s *Solver) searchRootParallel(ctx context.Context, moves []rootMove, depth int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.rootParallelism)
	var mu sync.Mutex
	for i := range moves {
		g.Go(func() error {
			key := s.zobrist.Hash(moves[i].board, depth-1, zobrist.KindChance)
			v, err := s.chanceNode(gctx, key, moves[i].board, depth-1, math.Inf(-1), math.Inf(1))
			if err != nil {
				return err
			}
			mu.Lock()
			moves[i].value = v
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// maxNode is the player's turn: take the best chance-node value across all
// legal moves. A node with no legal moves is terminal (game over in this
// branch) and evaluates statically.
func (s *Solver) maxNode(ctx context.Context, key uint64, b board.Board, depth int, α, β float64) (float64, error) {
	if err := s.visitNode(ctx); err != nil {
		return 0, err
	}
	if depth == 0 {
		return s.evaluator.Evaluate(b), nil
	}

	alphaOrig := α
	entry := s.ttable.lookup(key)
	if entry.valid() && int(entry.depth) == depth {
		score := float64(entry.score)
		switch entry.flag {
		case TTExact:
			return score, nil
		case TTLower:
			α = math.Max(α, score)
		case TTUpper:
			β = math.Min(β, score)
		}
		if α >= β {
			return score, nil
		}
	}

	moved := false
	best := math.Inf(-1)
	for _, dir := range board.Directions {
		res := b.Apply(dir)
		if !res.Moved {
			continue
		}
		moved = true
		childKey := s.zobrist.Hash(res.Board, depth-1, zobrist.KindChance)
		v, err := s.chanceNode(ctx, childKey, res.Board, depth-1, α, β)
		if err != nil {
			return 0, err
		}
		if v > best {
			best = v
		}
		α = math.Max(α, best)
		if best >= β {
			break // beta cut-off; see the package comment on soundness
		}
	}
	if !moved {
		return s.evaluator.Evaluate(b), nil
	}

	s.storeEntry(key, best, depth, alphaOrig, β)
	return best, nil
}

// chanceNode is the environment's turn: the expectation over tile spawns.
// Boards with many empty cells optionally branch on only the most
// strategically relevant subset, a deliberate fidelity/performance
// trade-off; the expectation is normalized by the cells actually
// considered.
func (s *Solver) chanceNode(ctx context.Context, key uint64, b board.Board, depth int, α, β float64) (float64, error) {
	if err := s.visitNode(ctx); err != nil {
		return 0, err
	}
	if depth == 0 {
		return s.evaluator.Evaluate(b), nil
	}

	alphaOrig := α
	entry := s.ttable.lookup(key)
	if entry.valid() && int(entry.depth) == depth {
		score := float64(entry.score)
		switch entry.flag {
		case TTExact:
			return score, nil
		case TTLower:
			α = math.Max(α, score)
		case TTUpper:
			β = math.Min(β, score)
		}
		if α >= β {
			return score, nil
		}
	}

	cells := b.EmptyCells()
	if len(cells) == 0 {
		return s.evaluator.Evaluate(b), nil
	}
	if s.profile.MaxChanceCells > 0 && len(cells) > s.profile.MaxChanceCells {
		cells = s.selectChanceCells(b, cells, s.profile.MaxChanceCells)
	}

	expected := 0.0
	for _, cell := range cells {
		for _, o := range spawnOutcomes {
			child := b.Spawn(cell[0], cell[1], o.value)
			childKey := s.zobrist.Rekey(
				s.zobrist.AddTile(key, cell[0], cell[1], o.value),
				depth, zobrist.KindChance, depth-1, zobrist.KindMax)
			v, err := s.maxNode(ctx, childKey, child, depth-1, α, β)
			if err != nil {
				return 0, err
			}
			expected += o.prob * v
		}
	}
	expected /= float64(len(cells))

	s.storeEntry(key, expected, depth, alphaOrig, β)
	return expected, nil
}

func (s *Solver) storeEntry(key uint64, score float64, depth int, alphaOrig, β float64) {
	entry := TableEntry{
		score: float32(score),
		depth: uint8(depth),
	}
	switch {
	case score <= alphaOrig:
		entry.flag = TTUpper
	case score >= β:
		entry.flag = TTLower
	default:
		entry.flag = TTExact
	}
	s.ttable.store(key, entry)
}

// selectChanceCells scores empty cells by the largest neighboring tile and
// keeps the top limit cells, so spawns next to big tiles (the dangerous
// ones) are always modeled. Ties break in row-major order, keeping the
// search deterministic.
func (s *Solver) selectChanceCells(b board.Board, cells [][2]int, limit int) [][2]int {
	n := b.Dim()
	type scoredCell struct {
		cell  [2]int
		score int
		order int
	}
	scored := make([]scoredCell, len(cells))
	for i, cell := range cells {
		r, c := cell[0], cell[1]
		maxNeighbor := 0
		for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			nr, nc := r+d[0], c+d[1]
			if nr < 0 || nr >= n || nc < 0 || nc >= n {
				continue
			}
			if v := b.Get(nr, nc); v > maxNeighbor {
				maxNeighbor = v
			}
		}
		scored[i] = scoredCell{cell: cell, score: maxNeighbor, order: r*n + c}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].order < scored[j].order
	})
	out := make([][2]int, limit)
	for i := 0; i < limit; i++ {
		out[i] = scored[i].cell
	}
	return out
}

// visitNode counts a node evaluation and, at the configured cadence, checks
// for cancellation and yields to the caller. The cadence is a node count
// rather than a wall-clock tick so identical searches behave identically.
func (s *Solver) visitNode(ctx context.Context) error {
	n := s.nodes.Add(1)
	if s.yieldInterval > 0 && n%s.yieldInterval == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.yieldFn != nil {
			s.yieldFn()
		}
	}
	return nil
}

func (s *Solver) rootMoves(b board.Board) []rootMove {
	var moves []rootMove
	for _, dir := range board.Directions {
		res := b.Apply(dir)
		if res.Moved {
			moves = append(moves, rootMove{dir: dir, board: res.Board})
		}
	}
	return moves
}

// staticChoice picks the root move with the best immediate heuristic value.
// Only used when the time budget dies before any depth completes.
func (s *Solver) staticChoice(moves []rootMove) board.Direction {
	best := moves[0].dir
	bestVal := math.Inf(-1)
	for _, m := range moves {
		if v := s.evaluator.Evaluate(m.board); v > bestVal {
			bestVal = v
			best = m.dir
		}
	}
	return best
}

func (s *Solver) ensureZobrist(dim int) {
	if s.zobrist.BoardDim() != dim {
		log.Debug().Int("dim", dim).Msg("initializing-zobrist")
		s.zobrist.Initialize(dim)
		// old keys are meaningless under the new tables
		s.ClearCache()
	}
}

func (s *Solver) writeDepthLog(ply int, moves []rootMove) {
	if s.logStream == nil {
		return
	}
	dl := depthLog{
		Ply: ply,
		Moves: lo.Map(moves, func(m rootMove, _ int) depthLogMove {
			return depthLogMove{Move: m.dir.String(), Value: m.value}
		}),
	}
	out, err := yaml.Marshal([]depthLog{dl})
	if err != nil {
		log.Err(err).Msg("marshaling-depth-log")
		return
	}
	if _, err := s.logStream.Write(out); err != nil {
		log.Err(err).Msg("writing-depth-log")
	}
}
