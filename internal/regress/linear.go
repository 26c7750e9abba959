package regress

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Linear is ordinary least squares regression with an intercept,
// solved in closed form.
type Linear struct {
	Weights   []float64
	Intercept float64
}

// NewLinear returns an unfitted OLS model.
func NewLinear() *Linear { return &Linear{} }

// Fit solves the least-squares system for X with an appended intercept
// column.
func (m *Linear) Fit(X [][]float64, y []float64) error {
	n, p, err := checkXY(X, y)
	if err != nil {
		return err
	}

	a := mat.NewDense(n, p+1, nil)
	for i, row := range X {
		for j, v := range row {
			a.Set(i, j, v)
		}
		a.Set(i, p, 1) // intercept column
	}
	b := mat.NewVecDense(n, y)

	var coef mat.VecDense
	if err := coef.SolveVec(a, b); err != nil {
		// A Condition error flags ill-conditioning but still carries a
		// usable least-squares solution.
		if _, ok := err.(mat.Condition); !ok {
			return fmt.Errorf("regress: least squares solve: %w", err)
		}
	}

	m.Weights = make([]float64, p)
	for j := 0; j < p; j++ {
		m.Weights[j] = coef.AtVec(j)
	}
	m.Intercept = coef.AtVec(p)
	return nil
}

// Predict returns the fitted hyperplane's value for each row.
func (m *Linear) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		sum := m.Intercept
		for j, v := range row {
			sum += m.Weights[j] * v
		}
		out[i] = sum
	}
	return out
}
