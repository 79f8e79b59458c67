// Package model implements the tree-based learners behind the prediction
// service: a standard scaler, CART regression trees, a bagged forest and a
// gradient boosted ensemble, all persistable as JSON artifacts.
package model

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes columns to zero mean and unit variance using
// statistics fitted on the training split only.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes per-column mean and standard deviation. Constant
// columns get a standard deviation of 1 so transforming them is a no-op
// shift instead of a division by zero.
func FitScaler(samples [][]float64) (*Scaler, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("fit scaler: no samples")
	}
	cols := len(samples[0])
	s := &Scaler{Mean: make([]float64, cols), Std: make([]float64, cols)}

	col := make([]float64, len(samples))
	for j := 0; j < cols; j++ {
		for i, row := range samples {
			if len(row) != cols {
				return nil, fmt.Errorf("fit scaler: row %d has %d columns, want %d", i, len(row), cols)
			}
			col[i] = row[j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || len(samples) < 2 {
			std = 1
		}
		s.Mean[j], s.Std[j] = mean, std
	}
	return s, nil
}

// Transform returns a standardized copy of one sample.
func (s *Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}

// TransformAll standardizes every sample.
func (s *Scaler) TransformAll(samples [][]float64) [][]float64 {
	out := make([][]float64, len(samples))
	for i, x := range samples {
		out[i] = s.Transform(x)
	}
	return out
}
