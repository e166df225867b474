package training

import "gonum.org/v1/gonum/mat"

// Regressor is the common surface of every candidate model.
type Regressor interface {
	Fit(X mat.Matrix, y []float64) error
	Predict(X mat.Matrix) []float64
}

// Candidate is one point in the hyperparameter grid.
type Candidate struct {
	Name   string             `json:"name"`
	Params map[string]float64 `json:"params"`
	// Scaled candidates are searched and fitted on standardised features.
	Scaled bool             `json:"scaled"`
	New    func() Regressor `json:"-"`
}

// DefaultCandidates is the grid searched by the train command.
func DefaultCandidates(seed uint64) []Candidate {
	var out []Candidate

	for _, k := range []int{3, 5, 7} {
		out = append(out, Candidate{
			Name:   "knn",
			Params: map[string]float64{"n_neighbors": float64(k)},
			Scaled: true,
			New:    func() Regressor { return &KNNRegressor{K: k} },
		})
	}

	for _, alpha := range []float64{0.1, 1, 10} {
		out = append(out, Candidate{
			Name:   "ridge",
			Params: map[string]float64{"alpha": alpha},
			Scaled: true,
			New:    func() Regressor { return &RidgeRegressor{Alpha: alpha} },
		})
	}

	for _, n := range []int{100, 200} {
		for _, depth := range []int{5, 10} {
			out = append(out, Candidate{
				Name:   "random_forest",
				Params: map[string]float64{"n_estimators": float64(n), "max_depth": float64(depth)},
				New: func() Regressor {
					return &RandomForestRegressor{NEstimators: n, MaxDepth: depth, Seed: seed}
				},
			})
		}
	}

	return out
}
