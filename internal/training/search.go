package training

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Fold holds the row indices of one cross-validation split.
type Fold struct {
	Train []int
	Test  []int
}

// KFold splits n rows into k contiguous folds without shuffling. The first
// n%k folds carry one extra row.
func KFold(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("k-fold needs at least 2 folds, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("cannot make %d folds from %d rows", k, n)
	}

	folds := make([]Fold, 0, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		end := start + size

		fold := Fold{Test: make([]int, 0, size), Train: make([]int, 0, n-size)}
		for i := 0; i < n; i++ {
			if i >= start && i < end {
				fold.Test = append(fold.Test, i)
			} else {
				fold.Train = append(fold.Train, i)
			}
		}
		folds = append(folds, fold)
		start = end
	}
	return folds, nil
}

func MeanSquaredError(want, got []float64) float64 {
	if len(want) == 0 || len(want) != len(got) {
		return math.NaN()
	}
	var sum float64
	for i := range want {
		d := want[i] - got[i]
		sum += d * d
	}
	return sum / float64(len(want))
}

type CVResult struct {
	Name    string             `json:"name"`
	Params  map[string]float64 `json:"params"`
	Scaled  bool               `json:"scaled"`
	MeanMSE float64            `json:"mean_mse"`
	FoldMSE []float64          `json:"fold_mse"`
}

func CrossValidate(ctx context.Context, c Candidate, X mat.Matrix, y []float64, folds []Fold) (CVResult, error) {
	res := CVResult{Name: c.Name, Params: c.Params, Scaled: c.Scaled}
	for i, f := range folds {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		model := c.New()
		if err := model.Fit(selectRows(X, f.Train), selectValues(y, f.Train)); err != nil {
			return res, fmt.Errorf("%s fold %d: %w", c.Name, i, err)
		}
		mse := MeanSquaredError(selectValues(y, f.Test), model.Predict(selectRows(X, f.Test)))
		res.FoldMSE = append(res.FoldMSE, mse)
		res.MeanMSE += mse
	}
	res.MeanMSE /= float64(len(folds))
	return res, nil
}

// GridSearch cross-validates every candidate on raw or scaled features as
// each one asks, and returns all results plus the index of the lowest mean MSE.
func GridSearch(ctx context.Context, candidates []Candidate, raw, scaled mat.Matrix, y []float64, k int) ([]CVResult, int, error) {
	if len(candidates) == 0 {
		return nil, -1, errors.New("grid search needs at least one candidate")
	}

	folds, err := KFold(len(y), k)
	if err != nil {
		return nil, -1, err
	}

	results := make([]CVResult, 0, len(candidates))
	best := -1
	for _, c := range candidates {
		X := raw
		if c.Scaled {
			X = scaled
		}
		res, err := CrossValidate(ctx, c, X, y, folds)
		if err != nil {
			return nil, -1, err
		}
		results = append(results, res)
		if best < 0 || res.MeanMSE < results[best].MeanMSE {
			best = len(results) - 1
		}
	}
	return results, best, nil
}
