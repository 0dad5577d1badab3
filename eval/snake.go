package eval

// snakeMatrices precomputes the four monotone serpentine numberings of an
// n x n board, one anchored at each corner. Cell weights run from n*n-1
// down to 0 along the path.
func snakeMatrices(n int) [][]float64 {
	base := make([]float64, n*n)
	w := float64(n*n - 1)
	for r := 0; r < n; r++ {
		if r%2 == 0 {
			for c := 0; c < n; c++ {
				base[r*n+c] = w
				w--
			}
		} else {
			for c := n - 1; c >= 0; c-- {
				base[r*n+c] = w
				w--
			}
		}
	}
	return [][]float64{
		base,
		mirrorMatrix(base, n),
		flipMatrix(base, n),
		mirrorMatrix(flipMatrix(base, n), n),
	}
}

func mirrorMatrix(m []float64, n int) []float64 {
	out := make([]float64, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			out[r*n+(n-1-c)] = m[r*n+c]
		}
	}
	return out
}

func flipMatrix(m []float64, n int) []float64 {
	out := make([]float64, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			out[(n-1-r)*n+c] = m[r*n+c]
		}
	}
	return out
}
