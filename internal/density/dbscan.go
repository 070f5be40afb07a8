package density

import (
	"context"
	"math"
)

// Noise is the DBSCAN label of points that belong to no cluster.
const Noise = -1

// maxGridDims bounds the grid index; inputs wider than this are reduced
// by PCA before clustering.
const maxGridDims = 5

type cellKey [maxGridDims]int64

// grid buckets points into eps-wide cells so a radius query only visits
// the 3^d neighbouring cells.
type grid struct {
	eps     float64
	dims    int
	points  [][]float64
	cells   map[cellKey][]int
	offsets [][maxGridDims]int64
}

func newGrid(points [][]float64, eps float64) *grid {
	g := &grid{eps: eps, points: points, cells: make(map[cellKey][]int)}
	if len(points) > 0 {
		g.dims = len(points[0])
	}
	for i, p := range points {
		k := g.key(p)
		g.cells[k] = append(g.cells[k], i)
	}
	g.offsets = [][maxGridDims]int64{{}}
	for d := 0; d < g.dims; d++ {
		var next [][maxGridDims]int64
		for _, o := range g.offsets {
			for _, step := range []int64{-1, 0, 1} {
				n := o
				n[d] = step
				next = append(next, n)
			}
		}
		g.offsets = next
	}
	return g
}

func (g *grid) key(p []float64) cellKey {
	var k cellKey
	for d := 0; d < g.dims; d++ {
		k[d] = int64(math.Floor(p[d] / g.eps))
	}
	return k
}

// neighbors returns the indices within eps of point i, i included.
func (g *grid) neighbors(i int, buf []int) []int {
	buf = buf[:0]
	p := g.points[i]
	base := g.key(p)
	eps2 := g.eps * g.eps
	for _, o := range g.offsets {
		var k cellKey
		for d := 0; d < g.dims; d++ {
			k[d] = base[d] + o[d]
		}
		for _, j := range g.cells[k] {
			if sqDist(p, g.points[j]) <= eps2 {
				buf = append(buf, j)
			}
		}
	}
	return buf
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// dbscan labels points with cluster ids starting at 0, or Noise. A point
// is core when at least minPts points (itself included) lie within eps.
// Clusters are numbered in the order their first core point appears.
func dbscan(ctx context.Context, points [][]float64, eps float64, minPts int) ([]int, error) {
	n := len(points)
	g := newGrid(points, eps)
	core := make([]bool, n)
	var buf []int
	for i := 0; i < n; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		buf = g.neighbors(i, buf)
		core[i] = len(buf) >= minPts
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	label := 0
	var stack []int
	for i := 0; i < n; i++ {
		if labels[i] != Noise || !core[i] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if labels[p] != Noise {
				continue
			}
			labels[p] = label
			if !core[p] {
				continue
			}
			buf = g.neighbors(p, buf)
			for _, q := range buf {
				if labels[q] == Noise {
					stack = append(stack, q)
				}
			}
		}
		label++
	}
	return labels, nil
}
