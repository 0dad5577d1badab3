package expectimax

import (
	"testing"

	"github.com/matryer/is"
)

func TestTTableEntry(t *testing.T) {
	is := is.New(t)
	tt := &TranspositionTable{}
	tt.SetSingleThreadedMode()
	// Assure minimum size of 2<<24 elems
	tt.Reset(0)
	tentry := TableEntry{
		score: 12.5,
		flag:  TTUpper,
		depth: 23,
	}
	tt.store(9409641586937047728, tentry)

	is.True(tt.sizePowerOf2 >= 24)

	te := tt.lookup(9409641586937047728)
	is.True(te.valid())
	is.Equal(te.depth, uint8(23))
	is.Equal(te.flag, uint8(TTUpper))
	is.Equal(te.score, float32(12.5))
	is.Equal(te.top4bytes, uint32(2190852907))
	is.Equal(te.fifthbyte, uint8(61))

	is.Equal(tt.t2collisions.Load(), uint64(0))
	// create a collision: same bottom 3 bytes, different upper bytes
	te = tt.lookup(9409641586937047728 + (1 << 24))
	is.Equal(te, TableEntry{})
	is.Equal(tt.t2collisions.Load(), uint64(1))

	// another lookup, but this isn't a collision. collision count should not go up.
	te = tt.lookup(9409641586937047728 + 1)
	is.Equal(te, TableEntry{})
	is.Equal(tt.lookups.Load(), uint64(3))
	is.Equal(tt.hits.Load(), uint64(1))
	is.Equal(tt.t2collisions.Load(), uint64(1))
}

func TestTTableReset(t *testing.T) {
	is := is.New(t)
	tt := &TranspositionTable{}
	tt.SetSingleThreadedMode()
	tt.Reset(0)
	tt.store(42, TableEntry{score: 1, flag: TTExact, depth: 2})
	is.Equal(tt.Size(), uint64(1))

	tt.Reset(0)
	is.Equal(tt.Size(), uint64(0))
	is.Equal(tt.Lookups(), uint64(0))
	te := tt.lookup(42)
	is.Equal(te, TableEntry{})
}
