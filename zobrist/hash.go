// Package zobrist hashes search-node signatures for the transposition
// table. https://en.wikipedia.org/wiki/Zobrist_hashing
package zobrist

import (
	"lukechampine.com/frand"

	"github.com/tesela-ai/tesela/board"
)

const bignum = 1<<63 - 2

// MaxDepth bounds the remaining-depth component of a node signature.
const MaxDepth = 31

// NodeKind distinguishes the two search layers. Two structurally identical
// boards at different layers must not share a key.
type NodeKind uint8

const (
	KindMax NodeKind = iota
	KindChance
)

// Zobrist hashes (board, remaining depth, node kind) triples. One instance
// serves a single board dimension.
type Zobrist struct {
	posTable   [][]uint64
	depthTable [MaxDepth + 1]uint64
	chanceKey  uint64

	boardDim int
}

// Initialize builds the random tables for the given board dimension.
func (z *Zobrist) Initialize(boardDim int) {
	z.boardDim = boardDim
	z.posTable = make([][]uint64, boardDim*boardDim)
	for i := 0; i < boardDim*boardDim; i++ {
		z.posTable[i] = make([]uint64, board.MaxExponent+1)
		// index 0 (empty cell) stays 0 so empty squares do not XOR in
		for j := 1; j <= board.MaxExponent; j++ {
			z.posTable[i][j] = frand.Uint64n(bignum) + 1
		}
	}
	for i := 0; i <= MaxDepth; i++ {
		z.depthTable[i] = frand.Uint64n(bignum) + 1
	}
	z.chanceKey = frand.Uint64n(bignum) + 1
}

func (z *Zobrist) BoardDim() int {
	return z.boardDim
}

// Hash returns the node key for a board at the given remaining depth and
// node kind.
func (z *Zobrist) Hash(b board.Board, depth int, kind NodeKind) uint64 {
	key := uint64(0)
	n := b.Dim()
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			v := b.Get(r, c)
			if v == 0 {
				continue
			}
			key ^= z.posTable[r*n+c][exponent(v)]
		}
	}
	key ^= z.depthTable[depth]
	if kind == KindChance {
		key ^= z.chanceKey
	}
	return key
}

// AddTile incrementally updates a key for a single tile placed on an empty
// cell, without rehashing the whole board. Depth and kind components are
// unchanged; use Rekey to move between layers.
func (z *Zobrist) AddTile(key uint64, row, col, value int) uint64 {
	return key ^ z.posTable[row*z.boardDim+col][exponent(value)]
}

// Rekey moves a key from one (depth, kind) signature to another.
func (z *Zobrist) Rekey(key uint64, fromDepth int, fromKind NodeKind, toDepth int, toKind NodeKind) uint64 {
	key ^= z.depthTable[fromDepth]
	key ^= z.depthTable[toDepth]
	if fromKind != toKind {
		key ^= z.chanceKey
	}
	return key
}

func exponent(v int) int {
	e := 0
	for v > 1 {
		v >>= 1
		e++
	}
	return e
}
