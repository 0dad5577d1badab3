// Package game runs the playable loop around the move engine: it owns the
// board, the score, the random tile spawns, and a bounded undo history.
package game

import (
	"errors"

	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/tesela-ai/tesela/board"
)

const (
	// WinTile is the tile value that marks a won game. Play may continue
	// past it.
	WinTile = 2048
	// HistoryLimit bounds the undo stack.
	HistoryLimit = 16
)

var (
	ErrIllegalMove = errors.New("move does not change the board")
	ErrGameOver    = errors.New("no legal moves remain")
	ErrNoHistory   = errors.New("nothing to undo")
)

type snapshot struct {
	board board.Board
	score int
}

// Game is a single playthrough. It is not safe for concurrent use.
type Game struct {
	board   board.Board
	score   int
	moves   int
	history []snapshot
}

// New starts a game on an empty n×n board with two spawned tiles, the way
// every playthrough begins.
func New(n int) (*Game, error) {
	b, err := board.New(n)
	if err != nil {
		return nil, err
	}
	g := &Game{board: b}
	g.spawn()
	g.spawn()
	return g, nil
}

// Resume continues from an existing position with the given score. Used to
// pick up serialized games and to seed test positions.
func Resume(b board.Board, score int) *Game {
	return &Game{board: b, score: score}
}

// Board returns a copy of the current position.
func (g *Game) Board() board.Board {
	return g.board.Copy()
}

func (g *Game) Score() int { return g.score }

func (g *Game) Moves() int { return g.moves }

// Move applies dir, spawns a tile on success, and updates the score by the
// merge delta. A direction that does not change the board returns
// ErrIllegalMove and spawns nothing.
func (g *Game) Move(dir board.Direction) error {
	if g.board.GameOver() {
		return ErrGameOver
	}
	res := g.board.Apply(dir)
	if !res.Moved {
		return ErrIllegalMove
	}

	g.pushHistory()
	g.board = res.Board
	g.score += res.ScoreDelta
	g.moves++
	g.spawn()
	log.Debug().
		Str("move", dir.String()).
		Int("score-delta", res.ScoreDelta).
		Int("score", g.score).
		Msg("move-applied")
	return nil
}

// Undo restores the position before the last move, including its spawn.
func (g *Game) Undo() error {
	if len(g.history) == 0 {
		return ErrNoHistory
	}
	last := g.history[len(g.history)-1]
	g.history = g.history[:len(g.history)-1]
	g.board = last.board
	g.score = last.score
	g.moves--
	return nil
}

// Won reports whether the winning tile has been reached.
func (g *Game) Won() bool {
	v, _, _ := g.board.MaxTile()
	return v >= WinTile
}

// Over reports whether no legal move remains.
func (g *Game) Over() bool {
	return g.board.GameOver()
}

func (g *Game) pushHistory() {
	if len(g.history) == HistoryLimit {
		copy(g.history, g.history[1:])
		g.history = g.history[:HistoryLimit-1]
	}
	g.history = append(g.history, snapshot{board: g.board, score: g.score})
}

// spawn places a 2 (90%) or 4 (10%) on a uniformly random empty cell.
func (g *Game) spawn() {
	cells := g.board.EmptyCells()
	if len(cells) == 0 {
		return
	}
	cell := cells[frand.Intn(len(cells))]
	value := 2
	if frand.Float64() < 0.1 {
		value = 4
	}
	g.board = g.board.Spawn(cell[0], cell[1], value)
}
