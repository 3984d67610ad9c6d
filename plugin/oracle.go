package plugin

import (
	"math/bits"

	"github.com/ulikunitz/xz/lzma"
)

type (
	// LZMA is a CompressionOracle that compresses the data with LZMA and
	// reports the size of the result. The executable packers used for
	// 64k intros are context-mixing LZ coders, so LZMA ranks orderings
	// much like they do.
	LZMA struct{}

	// LZCost is a CompressionOracle that does not compress at all: it finds
	// an optimal parse of the data into literals and LZ matches and sums the
	// bit costs of an exp-Golomb coding of them. It is much faster than LZMA
	// and good enough for ranking.
	LZCost struct {
		// Window is the largest match distance considered; 0 means 65535.
		Window int
	}

	countingWriter struct {
		n int
	}
)

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}

func (LZMA) CompressedSize(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	counter := &countingWriter{}
	w, err := lzma.NewWriter(counter)
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(data); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return counter.n, nil
}

const (
	kLen          = 2
	kDist         = 2
	literalBits   = 9 // flag + byte
	matchFlagBits = 1
	minMatch      = 2
	maxMatch      = 256
	maxCandidates = 16
)

func gammaBits(n int) int {
	return 2*bits.Len(uint(n+1)) - 1
}

func expGolombBits(n, k int) int {
	return gammaBits(n>>k) + k
}

func (o LZCost) CompressedSize(data []byte) (int, error) {
	n := len(data)
	if n == 0 {
		return 0, nil
	}
	window := o.Window
	if window <= 0 {
		window = 65535
	}
	// positions of every byte pair, most recent last
	pairs := map[int][]int{}
	prev := make([][]int, n)
	for i := 0; i+1 < n; i++ {
		key := int(data[i])<<8 | int(data[i+1])
		prev[i] = pairs[key]
		pairs[key] = append(pairs[key], i)
	}
	cost := make([]int, n+1)
	for pos := n - 1; pos >= 0; pos-- {
		best := literalBits + cost[pos+1]
		candidates := prev[pos]
		if len(candidates) > maxCandidates {
			candidates = candidates[len(candidates)-maxCandidates:]
		}
		for c := len(candidates) - 1; c >= 0; c-- {
			src := candidates[c]
			dist := pos - src
			if dist > window {
				break
			}
			length := 0
			for pos+length < n && length < maxMatch && data[src+length] == data[pos+length] {
				length++
			}
			base := matchFlagBits + expGolombBits(dist-1, kDist)
			for l := minMatch; l <= length; l++ {
				if total := base + expGolombBits(l-minMatch, kLen) + cost[pos+l]; total < best {
					best = total
				}
			}
		}
		cost[pos] = best
	}
	return (cost[0] + 7) / 8, nil
}
