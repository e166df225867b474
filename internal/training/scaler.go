package training

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler centres each column and divides by its population
// standard deviation. Constant columns keep a scale of 1.
type StandardScaler struct {
	Features []string  `json:"features,omitempty"`
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
}

func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 {
		return ErrEmptyDataset
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, variance := stat.PopMeanVariance(col, nil)
		s.Mean[j] = mean
		std := math.Sqrt(variance)
		if std == 0 {
			std = 1
		}
		s.Scale[j] = std
	}
	return nil
}

func (s *StandardScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	r, c := X.Dims()
	if c != len(s.Mean) {
		return nil, errors.New("scaler: column count does not match fit")
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return out, nil
}

func (s *StandardScaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}
