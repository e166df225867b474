package training

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

type Split struct {
	XTrain *mat.Dense
	XTest  *mat.Dense
	YTrain []float64
	YTest  []float64
}

// TrainTestSplit shuffles rows with a seeded generator and holds out
// ceil(testSize*n) of them.
func TrainTestSplit(X *mat.Dense, y []float64, testSize float64, seed uint64) (*Split, error) {
	n := len(y)
	if testSize <= 0 || testSize >= 1 {
		return nil, fmt.Errorf("test size %.3f must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest == 0 || nTest >= n {
		return nil, fmt.Errorf("cannot split %d rows with test size %.3f", n, testSize)
	}

	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	testIdx, trainIdx := perm[:nTest], perm[nTest:]

	return &Split{
		XTrain: selectRows(X, trainIdx),
		XTest:  selectRows(X, testIdx),
		YTrain: selectValues(y, trainIdx),
		YTest:  selectValues(y, testIdx),
	}, nil
}

func selectRows(X mat.Matrix, idx []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		for j := 0; j < c; j++ {
			out.Set(i, j, X.At(r, j))
		}
	}
	return out
}

func selectValues(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}

func rowsOf(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	out := make([][]float64, r)
	for i := range out {
		row := make([]float64, c)
		for j := range row {
			row[j] = X.At(i, j)
		}
		out[i] = row
	}
	return out
}
