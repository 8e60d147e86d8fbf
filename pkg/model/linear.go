package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const kindLinear = "linear"

// Scaler standardizes inputs as (x - mean) / scale before the linear step.
type Scaler struct {
	Mean  []float64 `json:"mean" yaml:"mean"`
	Scale []float64 `json:"scale" yaml:"scale"`
}

// Linear is a fitted linear regression: y = intercept + w . x.
type Linear struct {
	info      Info
	intercept float64
	weights   *mat.VecDense
	scaler    *Scaler
}

// NewLinear creates a linear model over the named features.
func NewLinear(info Info, intercept float64, coefficients []float64, scaler *Scaler) (*Linear, error) {
	if len(coefficients) == 0 {
		return nil, errors.New("linear model requires coefficients")
	}
	if len(info.Features) != 0 && len(info.Features) != len(coefficients) {
		return nil, fmt.Errorf("model lists %d features for %d coefficients", len(info.Features), len(coefficients))
	}
	if scaler != nil {
		if len(scaler.Mean) != len(coefficients) || len(scaler.Scale) != len(coefficients) {
			return nil, fmt.Errorf("scaler size does not match %d coefficients", len(coefficients))
		}
		for i, s := range scaler.Scale {
			if s == 0 {
				return nil, fmt.Errorf("scaler has zero scale at position %d", i)
			}
		}
	}

	w := make([]float64, len(coefficients))
	copy(w, coefficients)

	info.Kind = kindLinear
	return &Linear{
		info:      info,
		intercept: intercept,
		weights:   mat.NewVecDense(len(w), w),
		scaler:    scaler,
	}, nil
}

// Info returns the artifact identity.
func (m *Linear) Info() Info {
	return m.info
}

// Predict returns one prediction per row of X.
func (m *Linear) Predict(X [][]float64) ([]float64, error) {
	if len(X) == 0 {
		return []float64{}, nil
	}

	n := m.weights.Len()
	data := make([]float64, 0, len(X)*n)
	for i, row := range X {
		if len(row) != n {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("input contains NaN or infinity at row %d, column %d", i, j)
			}
			if m.scaler != nil {
				v = (v - m.scaler.Mean[j]) / m.scaler.Scale[j]
			}
			data = append(data, v)
		}
	}

	x := mat.NewDense(len(X), n, data)
	var y mat.VecDense
	y.MulVec(x, m.weights)

	out := make([]float64, len(X))
	for i := range out {
		out[i] = y.AtVec(i) + m.intercept
	}
	return out, nil
}
