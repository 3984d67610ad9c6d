package optimizer

import (
	"sync"

	"github.com/wavesabre/sabre"
)

type candidate struct {
	order []int
	size  int
	err   error
}

// GreedyOrder returns a nearest neighbour ordering of the chunks starting
// from chunks[start]: the next chunk is always the unused one closest to the
// previous one, by ChunkDistance. Ties go to the lowest index.
func GreedyOrder(chunks [][]byte, start int) []int {
	return greedyOrder(distanceMatrix(chunks), start)
}

func greedyOrder(dist [][]int, start int) []int {
	n := len(dist)
	used := make([]bool, n)
	ret := make([]int, 0, n)
	ret = append(ret, start)
	used[start] = true
	for cur := start; len(ret) < n; {
		next := -1
		for j := 0; j < n; j++ {
			if used[j] {
				continue
			}
			if next == -1 || dist[cur][j] < dist[cur][next] {
				next = j
			}
		}
		ret = append(ret, next)
		used[next] = true
		cur = next
	}
	return ret
}

// OrderDevices orders chunks of the same device type so that the final
// compressor finds the most redundancy. A greedy nearest neighbour ordering
// is built from every possible start, and the one whose concatenated chunks
// the oracle compresses smallest wins; on ties, the lowest start wins.
//
// If the oracle fails, the candidate is ranked by its uncompressed length and
// a single warning is logged. With workers > 1, candidates are evaluated
// concurrently; the result does not depend on workers.
func OrderDevices(chunks [][]byte, oracle sabre.CompressionOracle, workers int, log sabre.Logger) []int {
	n := len(chunks)
	if n <= 1 {
		ret := make([]int, n)
		for i := range ret {
			ret[i] = i
		}
		return ret
	}
	dist := distanceMatrix(chunks)
	candidates := make([]candidate, n)
	evaluate := func(start int) {
		order := greedyOrder(dist, start)
		data := concat(chunks, order)
		size, err := oracle.CompressedSize(data)
		if err != nil {
			size = len(data)
		}
		candidates[start] = candidate{order: order, size: size, err: err}
	}
	if workers <= 1 {
		for start := 0; start < n; start++ {
			evaluate(start)
		}
	} else {
		var wg sync.WaitGroup
		starts := make(chan int)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for start := range starts {
					evaluate(start)
				}
			}()
		}
		for start := 0; start < n; start++ {
			starts <- start
		}
		close(starts)
		wg.Wait()
	}
	best := 0
	warned := false
	for i, c := range candidates {
		if c.err != nil && !warned {
			log.Warnf("compression oracle failed, ranking device orders by uncompressed size: %v", c.err)
			warned = true
		}
		if c.size < candidates[best].size {
			best = i
		}
	}
	return candidates[best].order
}

func concat(chunks [][]byte, order []int) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	ret := make([]byte, 0, total)
	for _, i := range order {
		ret = append(ret, chunks[i]...)
	}
	return ret
}
