// Package board implements the sliding-tile merge board and its move
// primitives. A Board is an immutable value; every operation that would
// change it returns a new Board. The search explores many hypothetical
// futures from the same ancestor position, so nothing in this package may
// mutate a board another caller still holds.
package board

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash"
)

// Direction is one of the four swipe directions. It is a closed enumeration;
// no other values are valid.
type Direction int

const (
	DirectionUp Direction = iota
	DirectionDown
	DirectionLeft
	DirectionRight
)

// Directions lists all four directions in a stable order, for iteration.
var Directions = []Direction{DirectionUp, DirectionDown, DirectionLeft, DirectionRight}

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// MinDim is the smallest supported board dimension.
const MinDim = 3

// MaxExponent bounds the representable tile magnitude (2^17 = 131072, which
// is beyond what is reachable on boards up to 6x6).
const MaxExponent = 17

// Board is an n x n grid of tile values. A cell holds 0 (empty) or a power
// of two >= 2.
type Board struct {
	n     int
	cells []int
}

// New returns an empty n x n board.
func New(n int) (Board, error) {
	if n < MinDim {
		return Board{}, fmt.Errorf("board dimension %d is below the minimum of %d", n, MinDim)
	}
	return Board{n: n, cells: make([]int, n*n)}, nil
}

// FromRows builds a board from row-major cell values, validating shape and
// cell contents. Malformed input is a programmer error; it is rejected
// rather than coerced.
func FromRows(rows [][]int) (Board, error) {
	n := len(rows)
	if n < MinDim {
		return Board{}, fmt.Errorf("board has %d rows; the minimum dimension is %d", n, MinDim)
	}
	b := Board{n: n, cells: make([]int, n*n)}
	for r, row := range rows {
		if len(row) != n {
			return Board{}, fmt.Errorf("board is not square: row %d has %d cells, want %d", r, len(row), n)
		}
		for c, v := range row {
			if !validCell(v) {
				return Board{}, fmt.Errorf("cell (%d,%d) holds %d; cells must be 0 or a power of two >= 2", r, c, v)
			}
			b.cells[r*n+c] = v
		}
	}
	return b, nil
}

func validCell(v int) bool {
	if v == 0 {
		return true
	}
	if v < 2 || v&(v-1) != 0 {
		return false
	}
	return tileExponent(v) <= MaxExponent
}

func tileExponent(v int) int {
	e := 0
	for v > 1 {
		v >>= 1
		e++
	}
	return e
}

// Dim returns the board dimension n.
func (b Board) Dim() int {
	return b.n
}

// Get returns the value at (row, col).
func (b Board) Get(row, col int) int {
	return b.cells[row*b.n+col]
}

// Set returns a copy of the board with (row, col) set to v.
func (b Board) Set(row, col, v int) Board {
	nb := b.Copy()
	nb.cells[row*b.n+col] = v
	return nb
}

// Copy returns a deep copy of the board.
func (b Board) Copy() Board {
	cells := make([]int, len(b.cells))
	copy(cells, b.cells)
	return Board{n: b.n, cells: cells}
}

// Equal reports element-wise equality.
func (b Board) Equal(o Board) bool {
	if b.n != o.n {
		return false
	}
	for i := range b.cells {
		if b.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// EmptyCells returns the coordinates of all empty cells in row-major order.
func (b Board) EmptyCells() [][2]int {
	var empty [][2]int
	for r := 0; r < b.n; r++ {
		for c := 0; c < b.n; c++ {
			if b.cells[r*b.n+c] == 0 {
				empty = append(empty, [2]int{r, c})
			}
		}
	}
	return empty
}

// CountEmpty returns the number of empty cells without allocating.
func (b Board) CountEmpty() int {
	ct := 0
	for _, v := range b.cells {
		if v == 0 {
			ct++
		}
	}
	return ct
}

// MaxTile returns the largest tile value and its position. An empty board
// returns (0, 0, 0).
func (b Board) MaxTile() (val, row, col int) {
	for r := 0; r < b.n; r++ {
		for c := 0; c < b.n; c++ {
			if v := b.cells[r*b.n+c]; v > val {
				val, row, col = v, r, c
			}
		}
	}
	return val, row, col
}

// Rows returns the cell values as a fresh row-major slice of slices.
func (b Board) Rows() [][]int {
	rows := make([][]int, b.n)
	for r := 0; r < b.n; r++ {
		rows[r] = make([]int, b.n)
		copy(rows[r], b.cells[r*b.n:(r+1)*b.n])
	}
	return rows
}

// Transpose returns the board mirrored across its main diagonal.
func (b Board) Transpose() Board {
	nb := Board{n: b.n, cells: make([]int, len(b.cells))}
	for r := 0; r < b.n; r++ {
		for c := 0; c < b.n; c++ {
			nb.cells[c*b.n+r] = b.cells[r*b.n+c]
		}
	}
	return nb
}

// Mirror returns the board with each row reversed.
func (b Board) Mirror() Board {
	nb := Board{n: b.n, cells: make([]int, len(b.cells))}
	for r := 0; r < b.n; r++ {
		for c := 0; c < b.n; c++ {
			nb.cells[r*b.n+(b.n-1-c)] = b.cells[r*b.n+c]
		}
	}
	return nb
}

// Fingerprint returns a canonical 64-bit digest of the board contents.
// Structurally identical boards always produce the same fingerprint.
func (b Board) Fingerprint() uint64 {
	buf := make([]byte, 1+len(b.cells))
	buf[0] = byte(b.n)
	for i, v := range b.cells {
		if v != 0 {
			buf[1+i] = byte(tileExponent(v))
		}
	}
	return xxhash.Sum64(buf)
}

// String renders the board as an ASCII grid.
func (b Board) String() string {
	var sb strings.Builder
	rule := strings.Repeat("+------", b.n) + "+\n"
	sb.WriteString(rule)
	for r := 0; r < b.n; r++ {
		sb.WriteString("|")
		for c := 0; c < b.n; c++ {
			v := b.cells[r*b.n+c]
			if v == 0 {
				sb.WriteString("      |")
			} else {
				fmt.Fprintf(&sb, "%5d |", v)
			}
		}
		sb.WriteString("\n")
		sb.WriteString(rule)
	}
	return sb.String()
}
