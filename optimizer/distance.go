package optimizer

import "github.com/viterin/vek/vek32"

// distanceBlock keeps every partial sum of absolute byte differences below
// 2^24, where float32 still represents every integer exactly.
const distanceBlock = 1 << 15

// ChunkDistance returns the sum of absolute differences of the bytes of two
// chunks. The shorter chunk is treated as padded with zeros.
func ChunkDistance(a, b []byte) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	return vectorDistance(toVector(a, n), toVector(b, n), make([]float32, n))
}

// toVector widens a chunk into float32s, zero padding it to length n.
func toVector(chunk []byte, n int) []float32 {
	ret := make([]float32, n)
	for i, b := range chunk {
		ret[i] = float32(b)
	}
	return ret
}

// vectorDistance is the L1 distance of two equally long vectors; tmp is
// scratch of the same length.
func vectorDistance(a, b, tmp []float32) int {
	total := 0
	for i := 0; i < len(a); i += distanceBlock {
		j := i + distanceBlock
		if j > len(a) {
			j = len(a)
		}
		d := vek32.Sub_Into(tmp[i:j], a[i:j], b[i:j])
		vek32.Abs_Inplace(d)
		total += int(vek32.Sum(d))
	}
	return total
}

// distanceMatrix computes the pairwise distances of the chunks once, so the
// greedy walks from every start do not recompute them.
func distanceMatrix(chunks [][]byte) [][]int {
	n := 0
	for _, c := range chunks {
		if len(c) > n {
			n = len(c)
		}
	}
	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		vectors[i] = toVector(c, n)
	}
	tmp := make([]float32, n)
	ret := make([][]int, len(chunks))
	for i := range ret {
		ret[i] = make([]int, len(chunks))
	}
	for i := range chunks {
		for j := i + 1; j < len(chunks); j++ {
			d := vectorDistance(vectors[i], vectors[j], tmp)
			ret[i][j] = d
			ret[j][i] = d
		}
	}
	return ret
}
