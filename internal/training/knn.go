package training

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// KNNRegressor averages the targets of the K nearest training rows by
// Euclidean distance.
type KNNRegressor struct {
	K int         `json:"k"`
	X [][]float64 `json:"x"`
	Y []float64   `json:"y"`
}

func (m *KNNRegressor) Fit(X mat.Matrix, y []float64) error {
	r, _ := X.Dims()
	if r != len(y) {
		return fmt.Errorf("knn: %d rows but %d targets", r, len(y))
	}
	if m.K <= 0 || m.K > r {
		return fmt.Errorf("knn: k=%d invalid for %d rows", m.K, r)
	}
	m.X = rowsOf(X)
	m.Y = append([]float64(nil), y...)
	return nil
}

func (m *KNNRegressor) Predict(X mat.Matrix) []float64 {
	rows := rowsOf(X)
	out := make([]float64, len(rows))

	idx := make([]int, len(m.X))
	dist := make([]float64, len(m.X))
	for i, row := range rows {
		for j, train := range m.X {
			idx[j] = j
			dist[j] = floats.Distance(row, train, 2)
		}
		sort.SliceStable(idx, func(a, b int) bool { return dist[idx[a]] < dist[idx[b]] })

		var sum float64
		for _, j := range idx[:m.K] {
			sum += m.Y[j]
		}
		out[i] = sum / float64(m.K)
	}
	return out
}
