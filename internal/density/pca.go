package density

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var errPCA = errors.New("principal component decomposition failed")

// project reduces rows x d data to its first k principal components and
// reports the share of variance they keep.
func project(data [][]float64, k int) ([][]float64, float64, error) {
	n := len(data)
	if n == 0 {
		return nil, 0, errors.New("no rows to project")
	}
	d := len(data[0])
	flat := make([]float64, 0, n*d)
	for _, row := range data {
		flat = append(flat, row...)
	}
	x := mat.NewDense(n, d, flat)

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, 0, errPCA
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, avail := vecs.Dims()
	if k > avail {
		k = avail
	}
	vars := pc.VarsTo(nil)

	// Center before projecting so the scores match the decomposition.
	means := make([]float64, d)
	for j := 0; j < d; j++ {
		means[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}
	centered := mat.NewDense(n, d, nil)
	centered.Apply(func(_, j int, v float64) float64 { return v - means[j] }, x)

	var scores mat.Dense
	scores.Mul(centered, vecs.Slice(0, d, 0, k))

	out := make([][]float64, n)
	for i := range out {
		out[i] = mat.Row(nil, i, &scores)
	}

	var kept, total float64
	for i, v := range vars {
		total += v
		if i < k {
			kept += v
		}
	}
	ratio := 0.0
	if total > 0 {
		ratio = kept / total
	}
	return out, ratio, nil
}
