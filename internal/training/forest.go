package training

import (
	"fmt"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

type treeNode struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

// RegressionTree is a CART tree split on squared error. MaxDepth <= 0
// grows until leaves are pure or hold a single row.
type RegressionTree struct {
	MaxDepth int        `json:"max_depth"`
	Nodes    []treeNode `json:"nodes"`
}

func (t *RegressionTree) fit(X [][]float64, y []float64, idx []int) {
	t.Nodes = t.Nodes[:0]
	t.build(X, y, idx, 0)
}

func (t *RegressionTree) build(X [][]float64, y []float64, idx []int, depth int) int {
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	node := len(t.Nodes)
	t.Nodes = append(t.Nodes, treeNode{Leaf: true, Value: sum / float64(len(idx))})

	if len(idx) < 2 || (t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return node
	}

	feature, threshold, ok := bestSplit(X, y, idx)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := t.build(X, y, left, depth+1)
	r := t.build(X, y, right, depth+1)
	t.Nodes[node] = treeNode{
		Value:     t.Nodes[node].Value,
		Feature:   feature,
		Threshold: threshold,
		Left:      l,
		Right:     r,
	}
	return node
}

// bestSplit scans every feature for the threshold that minimises the summed
// squared error of the two children.
func bestSplit(X [][]float64, y []float64, idx []int) (int, float64, bool) {
	n := len(idx)
	var total, totalSq float64
	for _, i := range idx {
		total += y[i]
		totalSq += y[i] * y[i]
	}
	parent := totalSq - total*total/float64(n)

	var (
		bestFeature   int
		bestThreshold float64
		bestCost      = parent
		found         bool
	)

	order := make([]int, n)
	for f := range X[idx[0]] {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			v := y[order[k]]
			leftSum += v
			leftSq += v * v

			cur, next := X[order[k]][f], X[order[k+1]][f]
			if cur == next {
				continue
			}

			nl, nr := float64(k+1), float64(n-k-1)
			rightSum, rightSq := total-leftSum, totalSq-leftSq
			cost := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if cost < bestCost-1e-12 {
				bestCost = cost
				bestFeature = f
				bestThreshold = (cur + next) / 2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func (t *RegressionTree) predictRow(row []float64) float64 {
	n := 0
	for !t.Nodes[n].Leaf {
		if row[t.Nodes[n].Feature] <= t.Nodes[n].Threshold {
			n = t.Nodes[n].Left
		} else {
			n = t.Nodes[n].Right
		}
	}
	return t.Nodes[n].Value
}

// RandomForestRegressor averages bootstrap-trained regression trees. Each
// tree draws its bootstrap from a generator seeded by (Seed, tree index), so
// a fit is reproducible regardless of scheduling.
type RandomForestRegressor struct {
	NEstimators int              `json:"n_estimators"`
	MaxDepth    int              `json:"max_depth"`
	Seed        uint64           `json:"seed"`
	Trees       []RegressionTree `json:"trees"`
}

func (m *RandomForestRegressor) Fit(X mat.Matrix, y []float64) error {
	r, _ := X.Dims()
	if r != len(y) {
		return fmt.Errorf("forest: %d rows but %d targets", r, len(y))
	}
	if r == 0 {
		return ErrEmptyDataset
	}
	if m.NEstimators <= 0 {
		return fmt.Errorf("forest: n_estimators=%d must be positive", m.NEstimators)
	}

	rows := rowsOf(X)
	m.Trees = make([]RegressionTree, m.NEstimators)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := range m.Trees {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(m.Seed, uint64(t)))
			sample := make([]int, r)
			for i := range sample {
				sample[i] = rng.IntN(r)
			}
			m.Trees[t].MaxDepth = m.MaxDepth
			m.Trees[t].fit(rows, y, sample)
			return nil
		})
	}
	return g.Wait()
}

func (m *RandomForestRegressor) Predict(X mat.Matrix) []float64 {
	rows := rowsOf(X)
	out := make([]float64, len(rows))
	for i, row := range rows {
		var sum float64
		for t := range m.Trees {
			sum += m.Trees[t].predictRow(row)
		}
		out[i] = sum / float64(len(m.Trees))
	}
	return out
}
