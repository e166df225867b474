// Package training fits residuary-resistance regressors offline and writes
// the scaler and winning model to disk. Nothing in the service reads them.
package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmptyDataset  = errors.New("dataset has no rows")
	ErrMissingColumn = errors.New("dataset is missing a required column")
)

// FeatureColumns are read in this order; TargetColumn is the regression target.
var FeatureColumns = []string{"LC", "PC", "LD", "BDr", "LB", "Fr"}

const TargetColumn = "Rr"

type Dataset struct {
	X        *mat.Dense
	Y        []float64
	Features []string
}

func (d *Dataset) Len() int {
	return len(d.Y)
}

func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	cols := make([]int, 0, len(FeatureColumns)+1)
	for _, name := range append(append([]string{}, FeatureColumns...), TargetColumn) {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		cols = append(cols, i)
	}

	var (
		data []float64
		y    []float64
		line = 1
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		for j, col := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, header[col], err)
			}
			if j < len(FeatureColumns) {
				data = append(data, v)
			} else {
				y = append(y, v)
			}
		}
	}

	if len(y) == 0 {
		return nil, ErrEmptyDataset
	}

	return &Dataset{
		X:        mat.NewDense(len(y), len(FeatureColumns), data),
		Y:        y,
		Features: append([]string{}, FeatureColumns...),
	}, nil
}
