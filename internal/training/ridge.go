package training

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RidgeRegressor is L2-penalised least squares with an unpenalised intercept.
type RidgeRegressor struct {
	Alpha     float64   `json:"alpha"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func (m *RidgeRegressor) Fit(X mat.Matrix, y []float64) error {
	r, c := X.Dims()
	if r != len(y) {
		return fmt.Errorf("ridge: %d rows but %d targets", r, len(y))
	}
	if r == 0 {
		return ErrEmptyDataset
	}

	means := make([]float64, c)
	col := make([]float64, r)
	for j := range means {
		mat.Col(col, j, X)
		means[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(r, c, nil)
	xc.Apply(func(i, j int, v float64) float64 { return v - means[j] }, X)
	yc := mat.NewVecDense(r, nil)
	for i, v := range y {
		yc.SetVec(i, v-yMean)
	}

	var gram mat.Dense
	gram.Mul(xc.T(), xc)
	for j := 0; j < c; j++ {
		gram.Set(j, j, gram.At(j, j)+m.Alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(xc.T(), yc)

	var w mat.VecDense
	if err := w.SolveVec(&gram, &rhs); err != nil {
		return fmt.Errorf("ridge: solve: %w", err)
	}

	m.Coef = make([]float64, c)
	for j := range m.Coef {
		m.Coef[j] = w.AtVec(j)
	}
	m.Intercept = yMean - floats.Dot(m.Coef, means)
	return nil
}

func (m *RidgeRegressor) Predict(X mat.Matrix) []float64 {
	rows := rowsOf(X)
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = m.Intercept + floats.Dot(m.Coef, row)
	}
	return out
}
