package board

// MoveResult is the outcome of applying a direction to a board. When Moved
// is false the board is bit-for-bit identical to the input and ScoreDelta
// is zero.
type MoveResult struct {
	Board      Board
	ScoreDelta int
	Moved      bool
}

// Apply slides and merges the board in the given direction. It is a pure
// function: it never spawns tiles (the caller's game loop owns spawning,
// and the search needs an exact probability model rather than a sample).
//
// All four directions reduce to a single slide-left primitive: Up and Down
// transpose first, Down and Right mirror each row first, and the inverse
// transforms are composed after merging.
func (b Board) Apply(dir Direction) MoveResult {
	var slid Board
	var delta int
	switch dir {
	case DirectionLeft:
		slid, delta = b.slideLeft()
	case DirectionRight:
		slid, delta = b.Mirror().slideLeft()
		slid = slid.Mirror()
	case DirectionUp:
		slid, delta = b.Transpose().slideLeft()
		slid = slid.Transpose()
	case DirectionDown:
		slid, delta = b.Transpose().Mirror().slideLeft()
		slid = slid.Mirror().Transpose()
	default:
		return MoveResult{Board: b.Copy()}
	}
	if slid.Equal(b) {
		return MoveResult{Board: b.Copy()}
	}
	return MoveResult{Board: slid, ScoreDelta: delta, Moved: true}
}

func (b Board) slideLeft() (Board, int) {
	nb := Board{n: b.n, cells: make([]int, len(b.cells))}
	total := 0
	for r := 0; r < b.n; r++ {
		delta := mergeLine(b.cells[r*b.n:(r+1)*b.n], nb.cells[r*b.n:(r+1)*b.n])
		total += delta
	}
	return nb, total
}

// mergeLine compacts a line leftward and merges equal neighbors in a single
// left-to-right pass, writing the result into out (already zeroed). A tile
// born from a merge never participates in a second merge within the same
// pass. Returns the sum of all newly created tile values.
func mergeLine(line, out []int) int {
	// compaction: drop zeros, preserve relative order
	compact := make([]int, 0, len(line))
	for _, v := range line {
		if v != 0 {
			compact = append(compact, v)
		}
	}
	delta := 0
	w := 0
	for i := 0; i < len(compact); i++ {
		if i+1 < len(compact) && compact[i] == compact[i+1] {
			merged := compact[i] * 2
			out[w] = merged
			delta += merged
			i++ // the partner tile is consumed; the merged tile is final
		} else {
			out[w] = compact[i]
		}
		w++
	}
	return delta
}

// LegalMoves returns the directions that would change the board.
func (b Board) LegalMoves() []Direction {
	var legal []Direction
	for _, d := range Directions {
		if b.Apply(d).Moved {
			legal = append(legal, d)
		}
	}
	return legal
}

// GameOver reports whether no direction changes the board.
func (b Board) GameOver() bool {
	return len(b.LegalMoves()) == 0
}

// Spawn returns a copy of the board with value placed at (row, col). It
// panics if the cell is occupied; spawning onto a tile is always a bug in
// the caller.
func (b Board) Spawn(row, col, value int) Board {
	if b.Get(row, col) != 0 {
		panic("spawn onto an occupied cell")
	}
	return b.Set(row, col, value)
}
