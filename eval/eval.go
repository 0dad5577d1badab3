// Package eval scores board positions for the look-ahead search. The
// evaluator combines several weighted sub-heuristics; all terms that care
// about tile magnitude work in log2 space so that a 1024-vs-2048 adjacency
// is penalized the same as a 2-vs-4 adjacency.
package eval

import (
	"math"
	"sync"

	"github.com/tesela-ai/tesela/board"
)

// Weights are the coefficients of the sub-heuristics. They are tunable
// parameters, constant for the lifetime of one Evaluator.
type Weights struct {
	Empty          float64 `mapstructure:"empty"`
	Monotonicity   float64 `mapstructure:"monotonicity"`
	Smoothness     float64 `mapstructure:"smoothness"`
	MergePotential float64 `mapstructure:"merge-potential"`
	CornerGradient float64 `mapstructure:"corner-gradient"`
	Snake          float64 `mapstructure:"snake"`
	MaxTile        float64 `mapstructure:"max-tile"`
	LossPenalty    float64 `mapstructure:"loss-penalty"`
}

// DefaultWeights returns the stock tuning.
func DefaultWeights() Weights {
	return Weights{
		Empty:          2.7,
		Monotonicity:   1.0,
		Smoothness:     0.1,
		MergePotential: 0.4,
		CornerGradient: 0.35,
		Snake:          0.25,
		MaxTile:        1.0,
		LossPenalty:    1e6,
	}
}

// Evaluator is a deterministic, pure position scorer. It is total over all
// valid boards, including empty and full ones. Safe for concurrent use;
// parallel root searches share one instance.
type Evaluator struct {
	weights Weights
	// serpentine weight matrices keyed by board dimension, built on first use
	mu     sync.RWMutex
	snakes map[int][][]float64
}

func New(w Weights) *Evaluator {
	return &Evaluator{weights: w, snakes: make(map[int][][]float64)}
}

// Evaluate returns the heuristic value of a board. Higher is better for the
// player.
func (e *Evaluator) Evaluate(b board.Board) float64 {
	empty := b.CountEmpty()

	score := 0.0
	// Super-linear reward for open space; empty cells are the scarcest
	// resource on the board.
	score += e.weights.Empty * float64(empty) * math.Log2(float64(empty)+2)
	score += e.weights.Monotonicity * monotonicity(b)
	score += e.weights.Smoothness * smoothness(b)
	score += e.weights.MergePotential * mergePotential(b)
	score += e.weights.CornerGradient * cornerGradient(b)
	score += e.weights.Snake * e.snakeScore(b)

	if maxVal, _, _ := b.MaxTile(); maxVal > 0 {
		score += e.weights.MaxTile * math.Log2(float64(maxVal))
	}
	if empty == 0 && b.GameOver() {
		score -= e.weights.LossPenalty
	}
	return score
}

func tileLog(v int) float64 {
	if v == 0 {
		return 0
	}
	return math.Log2(float64(v))
}

// monotonicity measures, for every row and column, how close the sequence
// of log values is to non-increasing or non-decreasing. For each axis only
// the better of the two orientations counts, so a board whose values flow
// toward any one edge scores high.
func monotonicity(b board.Board) float64 {
	n := b.Dim()
	var incH, decH, incV, decV float64

	for r := 0; r < n; r++ {
		prev := -1
		for c := 0; c < n; c++ {
			v := b.Get(r, c)
			if v == 0 {
				continue
			}
			if prev >= 0 {
				cur, last := tileLog(v), tileLog(prev)
				if last > cur {
					decH += cur - last
				} else if cur > last {
					incH += last - cur
				}
			}
			prev = v
		}
	}
	for c := 0; c < n; c++ {
		prev := -1
		for r := 0; r < n; r++ {
			v := b.Get(r, c)
			if v == 0 {
				continue
			}
			if prev >= 0 {
				cur, last := tileLog(v), tileLog(prev)
				if last > cur {
					decV += cur - last
				} else if cur > last {
					incV += last - cur
				}
			}
			prev = v
		}
	}
	return math.Max(incH, decH) + math.Max(incV, decV)
}

// smoothness penalizes large log-magnitude jumps between adjacent non-empty
// tiles. Returns a value <= 0.
func smoothness(b board.Board) float64 {
	n := b.Dim()
	penalty := 0.0
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			v := b.Get(r, c)
			if v == 0 {
				continue
			}
			lv := tileLog(v)
			if c+1 < n {
				if right := b.Get(r, c+1); right != 0 {
					penalty -= math.Abs(lv - tileLog(right))
				}
			}
			if r+1 < n {
				if down := b.Get(r+1, c); down != 0 {
					penalty -= math.Abs(lv - tileLog(down))
				}
			}
		}
	}
	return penalty
}

// mergePotential rewards adjacent equal tiles, plus a smaller bonus for
// longer same-value runs along a line (chain merges).
func mergePotential(b board.Board) float64 {
	n := b.Dim()
	score := 0.0
	for r := 0; r < n; r++ {
		run := 1
		for c := 0; c < n; c++ {
			v := b.Get(r, c)
			if v == 0 {
				run = 1
				continue
			}
			if c+1 < n && b.Get(r, c+1) == v {
				score += tileLog(v)
				run++
				if run > 2 {
					score += 0.5 * tileLog(v)
				}
			} else {
				run = 1
			}
		}
	}
	for c := 0; c < n; c++ {
		run := 1
		for r := 0; r < n; r++ {
			v := b.Get(r, c)
			if v == 0 {
				run = 1
				continue
			}
			if r+1 < n && b.Get(r+1, c) == v {
				score += tileLog(v)
				run++
				if run > 2 {
					score += 0.5 * tileLog(v)
				}
			} else {
				run = 1
			}
		}
	}
	return score
}

// cornerGradient locates the max tile and rewards it sitting on a corner
// (or, less so, an edge), plus a smooth falloff of values radiating from
// it. An idealized gradient field anchored at the max tile.
func cornerGradient(b board.Board) float64 {
	n := b.Dim()
	maxVal, mr, mc := b.MaxTile()
	if maxVal == 0 {
		return 0
	}
	maxLog := tileLog(maxVal)

	score := 0.0
	onRowEdge := mr == 0 || mr == n-1
	onColEdge := mc == 0 || mc == n-1
	switch {
	case onRowEdge && onColEdge:
		score += maxLog
	case onRowEdge || onColEdge:
		score += maxLog / 2
	}

	// reward cells whose value falls off with distance from the max tile
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			v := b.Get(r, c)
			if v == 0 || (r == mr && c == mc) {
				continue
			}
			dist := math.Abs(float64(r-mr)) + math.Abs(float64(c-mc))
			ideal := maxLog - dist
			score -= math.Abs(tileLog(v)-ideal) / (2 * dist)
		}
	}
	return score
}

// snakeScore is the dot product of log tile values against four serpentine
// weight matrices (one per starting corner), taking the best. It captures
// how well the board is organized along an optimal snake path regardless of
// which corner the player is building toward.
func (e *Evaluator) snakeScore(b board.Board) float64 {
	n := b.Dim()
	mats := e.snakeMats(n)
	best := math.Inf(-1)
	for _, m := range mats {
		s := 0.0
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				if v := b.Get(r, c); v > 0 {
					s += m[r*n+c] * tileLog(v)
				}
			}
		}
		if s > best {
			best = s
		}
	}
	// normalize so the term does not dwarf the others on big boards
	return best / float64(n*n)
}

func (e *Evaluator) snakeMats(n int) [][]float64 {
	e.mu.RLock()
	mats, ok := e.snakes[n]
	e.mu.RUnlock()
	if ok {
		return mats
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if mats, ok = e.snakes[n]; !ok {
		mats = snakeMatrices(n)
		e.snakes[n] = mats
	}
	return mats
}
