package density

import (
	"context"
	"math"
	"math/rand"
)

// isoNode is one node of an isolation tree.
type isoNode struct {
	feature int
	split   float64
	left    *isoNode
	right   *isoNode
	size    int
	leaf    bool
}

// Forest is an isolation forest: an ensemble of random trees where points
// that isolate in few splits are anomalous. A fixed seed makes the fitted
// ensemble, and therefore every score, reproducible.
type Forest struct {
	trees      []*isoNode
	numTrees   int
	maxSamples int
	sampleSize int
	maxDepth   int
	rng        *rand.Rand
}

// NewForest prepares an unfitted forest. Each tree is grown on a
// sub-sample of at most maxSamples rows.
func NewForest(numTrees, maxSamples int, seed int64) *Forest {
	return &Forest{
		numTrees:   numTrees,
		maxSamples: maxSamples,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Fit grows the trees on data (rows x features).
func (f *Forest) Fit(ctx context.Context, data [][]float64) error {
	n := len(data)
	if n == 0 {
		return nil
	}
	f.sampleSize = f.maxSamples
	if f.sampleSize <= 0 || f.sampleSize > n {
		f.sampleSize = n
	}
	f.maxDepth = int(math.Ceil(math.Log2(math.Max(float64(f.sampleSize), 2))))
	f.trees = make([]*isoNode, 0, f.numTrees)
	idx := make([]int, n)
	for t := 0; t < f.numTrees; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range idx {
			idx[i] = i
		}
		// Partial Fisher-Yates: the first sampleSize slots are a uniform
		// sample without replacement.
		for i := 0; i < f.sampleSize; i++ {
			j := i + f.rng.Intn(n-i)
			idx[i], idx[j] = idx[j], idx[i]
		}
		sample := make([]int, f.sampleSize)
		copy(sample, idx[:f.sampleSize])
		f.trees = append(f.trees, f.build(data, sample, 0))
	}
	return nil
}

func (f *Forest) build(data [][]float64, rows []int, depth int) *isoNode {
	if len(rows) <= 1 || depth >= f.maxDepth {
		return &isoNode{size: len(rows), leaf: true}
	}
	// Only features that still vary inside this node can split it.
	dims := len(data[rows[0]])
	var candidates []int
	for j := 0; j < dims; j++ {
		lo, hi := featureRange(data, rows, j)
		if hi > lo {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &isoNode{size: len(rows), leaf: true}
	}
	feature := candidates[f.rng.Intn(len(candidates))]
	lo, hi := featureRange(data, rows, feature)
	split := lo + f.rng.Float64()*(hi-lo)

	var left, right []int
	for _, r := range rows {
		if data[r][feature] < split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isoNode{size: len(rows), leaf: true}
	}
	return &isoNode{
		feature: feature,
		split:   split,
		left:    f.build(data, left, depth+1),
		right:   f.build(data, right, depth+1),
		size:    len(rows),
	}
}

func featureRange(data [][]float64, rows []int, j int) (lo, hi float64) {
	lo, hi = data[rows[0]][j], data[rows[0]][j]
	for _, r := range rows[1:] {
		v := data[r][j]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Score returns s(x) = 2^(-E[h(x)]/c(psi)) in (0, 1]; higher is more
// anomalous.
func (f *Forest) Score(x []float64) float64 {
	if len(f.trees) == 0 {
		return 0.5
	}
	var total float64
	for _, t := range f.trees {
		total += pathLength(t, x, 0)
	}
	avg := total / float64(len(f.trees))
	c := averagePathLength(f.sampleSize)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -avg/c)
}

func pathLength(n *isoNode, x []float64, depth int) float64 {
	for !n.leaf {
		if x[n.feature] < n.split {
			n = n.left
		} else {
			n = n.right
		}
		depth++
	}
	return float64(depth) + averagePathLength(n.size)
}

// averagePathLength is c(n), the mean depth of an unsuccessful search in a
// binary search tree of n points: 2H(n-1) - 2(n-1)/n.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	return 2*harmonic(n-1) - 2*float64(n-1)/float64(n)
}

// harmonic approximates H(n) with ln(n) + the Euler-Mascheroni constant.
func harmonic(n int) float64 {
	return math.Log(float64(n)) + 0.5772156649
}
