package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFromRows(t *testing.T, rows [][]int) Board {
	t.Helper()
	b, err := FromRows(rows)
	require.NoError(t, err)
	return b
}

func TestFromRowsValidation(t *testing.T) {
	_, err := FromRows([][]int{{2, 4}, {0, 0}})
	assert.Error(t, err, "2x2 board is below the minimum dimension")

	_, err = FromRows([][]int{{2, 4, 8}, {0, 0}, {0, 0, 0}})
	assert.Error(t, err, "ragged rows are not square")

	_, err = FromRows([][]int{{2, 4, 3}, {0, 0, 0}, {0, 0, 0}})
	assert.Error(t, err, "3 is not a power of two")

	_, err = FromRows([][]int{{2, 4, 1}, {0, 0, 0}, {0, 0, 0}})
	assert.Error(t, err, "1 is not a legal tile")

	_, err = FromRows([][]int{{2, 4, -4}, {0, 0, 0}, {0, 0, 0}})
	assert.Error(t, err, "negative values are not legal tiles")

	b, err := FromRows([][]int{{2, 4, 8}, {16, 32, 64}, {0, 0, 131072}})
	require.NoError(t, err)
	assert.Equal(t, 3, b.Dim())
	assert.Equal(t, 131072, b.Get(2, 2))
}

func TestValueSemantics(t *testing.T) {
	b := mustFromRows(t, [][]int{
		{2, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	b2 := b.Set(1, 1, 4)
	assert.Equal(t, 0, b.Get(1, 1), "Set must not mutate the receiver")
	assert.Equal(t, 4, b2.Get(1, 1))

	rows := b.Rows()
	rows[0][0] = 1024
	assert.Equal(t, 2, b.Get(0, 0), "Rows must return a copy")
}

func TestFingerprint(t *testing.T) {
	b1 := mustFromRows(t, [][]int{
		{2, 4, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	b2 := b1.Copy()
	assert.Equal(t, b1.Fingerprint(), b2.Fingerprint())

	b3 := b1.Set(0, 2, 2)
	assert.NotEqual(t, b1.Fingerprint(), b3.Fingerprint())

	// transposing a non-symmetric board changes the fingerprint
	assert.NotEqual(t, b1.Fingerprint(), b1.Transpose().Fingerprint())
}

func TestTransposeMirrorInvolutions(t *testing.T) {
	b := mustFromRows(t, [][]int{
		{2, 4, 8, 0},
		{0, 16, 0, 2},
		{0, 0, 32, 0},
		{4, 0, 0, 64},
	})
	assert.True(t, b.Transpose().Transpose().Equal(b))
	assert.True(t, b.Mirror().Mirror().Equal(b))
	assert.Equal(t, b.Get(0, 1), b.Transpose().Get(1, 0))
	assert.Equal(t, b.Get(0, 0), b.Mirror().Get(0, 3))
}

func TestApplyLeftMerges(t *testing.T) {
	b := mustFromRows(t, [][]int{
		{2, 2, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	res := b.Apply(DirectionLeft)
	want := mustFromRows(t, [][]int{
		{4, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	assert.True(t, res.Moved)
	assert.Equal(t, 4, res.ScoreDelta)
	assert.True(t, res.Board.Equal(want))
}

func TestApplyIllegalMoveIsIdentity(t *testing.T) {
	b := mustFromRows(t, [][]int{
		{2, 4, 8, 16},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	res := b.Apply(DirectionLeft)
	assert.False(t, res.Moved)
	assert.Equal(t, 0, res.ScoreDelta)
	assert.True(t, res.Board.Equal(b))
}

func TestNoDoubleMerge(t *testing.T) {
	// 4 2 2 0 -> 4 4 0 0, NOT 8 0 0 0
	b := mustFromRows(t, [][]int{
		{4, 2, 2, 0},
		{2, 2, 4, 0},
		{2, 2, 2, 2},
		{0, 0, 0, 0},
	})
	res := b.Apply(DirectionLeft)
	want := mustFromRows(t, [][]int{
		{4, 4, 0, 0},
		{4, 4, 0, 0},
		{4, 4, 0, 0},
		{0, 0, 0, 0},
	})
	assert.True(t, res.Board.Equal(want))
	// row 0: one merge of 4; row 1: one merge of 4; row 2: two merges of 4
	assert.Equal(t, 4+4+8, res.ScoreDelta)
}

func TestMergePrefersLeftmostPair(t *testing.T) {
	// 2 2 2 0 -> leftmost pair merges: 4 2 0 0
	b := mustFromRows(t, [][]int{
		{2, 2, 2, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	res := b.Apply(DirectionLeft)
	assert.Equal(t, 4, res.Board.Get(0, 0))
	assert.Equal(t, 2, res.Board.Get(0, 1))
	assert.Equal(t, 0, res.Board.Get(0, 2))
}

func TestMergeConservation(t *testing.T) {
	boards := [][][]int{
		{{2, 2, 4, 4}, {8, 8, 8, 8}, {2, 0, 2, 0}, {4, 4, 4, 0}},
		{{2, 0, 0, 2}, {0, 4, 4, 0}, {16, 16, 2, 2}, {0, 0, 0, 2}},
	}
	for _, rows := range boards {
		b := mustFromRows(t, rows)
		before := 0
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				before += b.Get(r, c)
			}
		}
		res := b.Apply(DirectionLeft)
		after := 0
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				after += res.Board.Get(r, c)
			}
		}
		assert.Equal(t, before, after, "tile sum is conserved across a move")
	}
}

func TestDirectionalSymmetry(t *testing.T) {
	b := mustFromRows(t, [][]int{
		{2, 2, 4, 0},
		{0, 8, 8, 2},
		{4, 0, 4, 4},
		{2, 0, 0, 2},
	})

	right := b.Apply(DirectionRight)
	viaMirror := b.Mirror().Apply(DirectionLeft)
	assert.True(t, right.Board.Equal(viaMirror.Board.Mirror()))
	assert.Equal(t, right.ScoreDelta, viaMirror.ScoreDelta)
	assert.Equal(t, right.Moved, viaMirror.Moved)

	up := b.Apply(DirectionUp)
	viaTranspose := b.Transpose().Apply(DirectionLeft)
	assert.True(t, up.Board.Equal(viaTranspose.Board.Transpose()))
	assert.Equal(t, up.ScoreDelta, viaTranspose.ScoreDelta)

	down := b.Apply(DirectionDown)
	viaBoth := b.Transpose().Apply(DirectionRight)
	assert.True(t, down.Board.Equal(viaBoth.Board.Transpose()))
	assert.Equal(t, down.ScoreDelta, viaBoth.ScoreDelta)
}

func TestLegalMovesAndGameOver(t *testing.T) {
	// full board, no equal adjacent pairs: dead
	dead := mustFromRows(t, [][]int{
		{2, 4, 2, 4},
		{4, 2, 4, 2},
		{2, 4, 2, 4},
		{4, 2, 4, 2},
	})
	assert.Empty(t, dead.LegalMoves())
	assert.True(t, dead.GameOver())

	// full board with one mergeable pair: alive
	alive := dead.Set(0, 0, 4)
	assert.False(t, alive.GameOver())

	b := mustFromRows(t, [][]int{
		{2, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	legal := b.LegalMoves()
	// the tile is already in the top-left corner; only down and right move it
	assert.ElementsMatch(t, []Direction{DirectionDown, DirectionRight}, legal)
}

func TestEmptyCellsAndMaxTile(t *testing.T) {
	b := mustFromRows(t, [][]int{
		{0, 0, 0},
		{0, 128, 0},
		{0, 0, 2},
	})
	assert.Equal(t, 7, len(b.EmptyCells()))
	assert.Equal(t, 7, b.CountEmpty())
	v, r, c := b.MaxTile()
	assert.Equal(t, 128, v)
	assert.Equal(t, 1, r)
	assert.Equal(t, 1, c)
}

func TestSpawn(t *testing.T) {
	b := mustFromRows(t, [][]int{
		{2, 0, 0},
		{0, 0, 0},
		{0, 0, 0},
	})
	nb := b.Spawn(2, 2, 4)
	assert.Equal(t, 4, nb.Get(2, 2))
	assert.Equal(t, 0, b.Get(2, 2))
	assert.Panics(t, func() { b.Spawn(0, 0, 2) })
}

func TestFiveByFiveMoves(t *testing.T) {
	b := mustFromRows(t, [][]int{
		{2, 2, 2, 2, 2},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
	})
	res := b.Apply(DirectionLeft)
	// pairs merge left to right: 4 4 2 0 0
	assert.Equal(t, 4, res.Board.Get(0, 0))
	assert.Equal(t, 4, res.Board.Get(0, 1))
	assert.Equal(t, 2, res.Board.Get(0, 2))
	assert.Equal(t, 8, res.ScoreDelta)
}
