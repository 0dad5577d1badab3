// Package montecarlo implements cheap rollout screening for root moves.
// When several moves look roughly equal, a handful of random playouts per
// move produces a ranking that focuses full-depth search effort on the most
// promising candidates. Screening is purely a performance optimization; it
// never changes final semantics when the full search budget is available.
package montecarlo

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/tesela-ai/tesela/board"
	"github.com/tesela-ai/tesela/eval"
	"github.com/tesela-ai/tesela/stats"
)

// ScreenedMove is a candidate root move with its rollout statistics.
type ScreenedMove struct {
	Dir   board.Direction
	Stats stats.Statistic
}

// Screener ranks root moves by simulating random legal play to a fixed
// horizon and scoring the terminal boards.
type Screener struct {
	evaluator *eval.Evaluator

	// Rollouts is the number of playouts per candidate move.
	Rollouts int
	// Horizon is the number of (move, spawn) steps per playout.
	Horizon int
}

func NewScreener(ev *eval.Evaluator, rollouts, horizon int) *Screener {
	return &Screener{evaluator: ev, Rollouts: rollouts, Horizon: horizon}
}

// stopConfidence is the confidence level at which a trailing candidate is
// considered statistically unable to catch the leader.
const stopConfidence = 95

// minRolloutsBeforeCutoff is how many samples every candidate gets before
// the standard error is trusted for cut-off decisions.
const minRolloutsBeforeCutoff = 8

// Rank plays each candidate move once, then rolls out randomly from the
// resulting positions in rounds. Once a candidate's confidence interval
// can no longer reach the leader's it stops receiving rollouts. Results
// come back sorted best-first by mean score; the ranking is stable under
// near-ties only up to rollout noise.
func (s *Screener) Rank(ctx context.Context, b board.Board, candidates []board.Direction) ([]ScreenedMove, error) {
	screened := make([]ScreenedMove, 0, len(candidates))
	boards := make([]board.Board, 0, len(candidates))
	for _, dir := range candidates {
		res := b.Apply(dir)
		if !res.Moved {
			continue
		}
		screened = append(screened, ScreenedMove{Dir: dir})
		boards = append(boards, res.Board)
	}

	z := stats.ZVal(stopConfidence)
	cut := make([]bool, len(screened))
	active := len(screened)
	for i := 0; i < s.Rollouts && active > 1; i++ {
		for j := range screened {
			if cut[j] {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			screened[j].Stats.Push(s.rollout(boards[j]))
		}
		if i+1 < minRolloutsBeforeCutoff {
			continue
		}
		active -= cutoffLaggards(screened, cut, z)
	}

	sort.SliceStable(screened, func(i, j int) bool {
		return screened[i].Stats.Mean() > screened[j].Stats.Mean()
	})
	if len(screened) > 1 {
		// how separated are the top two? useful when tuning rollout counts
		lead := screened[0].Stats.Mean() - screened[1].Stats.Mean()
		sep := screened[0].Stats.StandardError() + screened[1].Stats.StandardError()
		log.Debug().
			Float64("lead", lead).
			Float64("stderr-sum", sep).
			Int("active", active).
			Str("best", screened[0].Dir.String()).
			Msg("screening-ranked")
	}
	return screened, nil
}

// cutoffLaggards marks candidates whose upper confidence bound sits below
// the leader's lower bound at the given z value and returns how many were
// newly cut. The leader itself is never cut.
func cutoffLaggards(screened []ScreenedMove, cut []bool, z float64) int {
	leader := -1
	for j := range screened {
		if cut[j] {
			continue
		}
		if leader < 0 || screened[j].Stats.Mean() > screened[leader].Stats.Mean() {
			leader = j
		}
	}
	if leader < 0 {
		return 0
	}
	μ := screened[leader].Stats.Mean()
	e := z * screened[leader].Stats.StandardError()

	newCut := 0
	for j := range screened {
		if j == leader || cut[j] {
			continue
		}
		μj := screened[j].Stats.Mean()
		ej := z * screened[j].Stats.StandardError()
		if μ-e > μj+ej {
			cut[j] = true
			newCut++
		}
	}
	if newCut > 0 {
		log.Debug().Int("new-cut", newCut).Msg("screening-cut-off")
	}
	return newCut
}

// rollout simulates random legal play with random spawns from b and returns
// the heuristic score of the final position.
func (s *Screener) rollout(b board.Board) float64 {
	cur := b
	for step := 0; step < s.Horizon; step++ {
		// the move just played leaves at least one empty cell
		cur = spawnRandom(cur)
		legal := cur.LegalMoves()
		if len(legal) == 0 {
			break
		}
		dir := legal[frand.Intn(len(legal))]
		cur = cur.Apply(dir).Board
	}
	return s.evaluator.Evaluate(cur)
}

func spawnRandom(b board.Board) board.Board {
	empty := b.EmptyCells()
	if len(empty) == 0 {
		return b
	}
	cell := empty[frand.Intn(len(empty))]
	value := 2
	if frand.Float64() < 0.1 {
		value = 4
	}
	return b.Spawn(cell[0], cell[1], value)
}
