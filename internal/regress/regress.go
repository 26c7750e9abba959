// Package regress implements the regression models and model-selection
// machinery: OLS linear regression, CART regression trees, bootstrap-
// aggregated forests and gradient boosting, plus R²/RMSE metrics and
// deterministic k-fold splitting.
package regress

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// Regressor is a trainable scalar-target regression model.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) []float64
}

// checkXY validates a design matrix and target vector.
func checkXY(X [][]float64, y []float64) (rows, cols int, err error) {
	if len(X) == 0 {
		return 0, 0, errors.New("regress: empty design matrix")
	}
	if len(y) != len(X) {
		return 0, 0, fmt.Errorf("regress: %d rows but %d targets", len(X), len(y))
	}
	cols = len(X[0])
	for i, row := range X {
		if len(row) != cols {
			return 0, 0, fmt.Errorf("regress: ragged matrix at row %d", i)
		}
	}
	return len(X), cols, nil
}

// KFold returns k folds of row indices from a seeded shuffle. The same
// (n, k, seed) always yields the same folds.
func KFold(n, k int, seed int64) [][]int {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)
	folds := make([][]int, k)
	for i, idx := range perm {
		folds[i%k] = append(folds[i%k], idx)
	}
	return folds
}

// TrainTestSplit returns a seeded shuffle split of n row indices with
// the given held-out fraction.
func TrainTestSplit(n int, testFraction float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)
	nTest := int(float64(n) * testFraction)
	return perm[nTest:], perm[:nTest]
}

// CrossValidate computes the mean and population standard deviation of the
// R² score across k folds. newModel must return a fresh, unfitted model;
// each fold trains from scratch.
func CrossValidate(newModel func() Regressor, X [][]float64, y []float64, k int, seed int64) (mean, std float64, err error) {
	n, _, err := checkXY(X, y)
	if err != nil {
		return 0, 0, err
	}
	if k < 2 || k > n {
		return 0, 0, fmt.Errorf("regress: invalid fold count %d for %d rows", k, n)
	}

	folds := KFold(n, k, seed)
	scores := make([]float64, 0, k)
	for fi, holdout := range folds {
		inFold := make([]bool, n)
		for _, idx := range holdout {
			inFold[idx] = true
		}
		var trX, teX [][]float64
		var trY, teY []float64
		for i := 0; i < n; i++ {
			if inFold[i] {
				teX = append(teX, X[i])
				teY = append(teY, y[i])
			} else {
				trX = append(trX, X[i])
				trY = append(trY, y[i])
			}
		}

		m := newModel()
		if err := m.Fit(trX, trY); err != nil {
			return 0, 0, fmt.Errorf("regress: fold %d fit: %w", fi, err)
		}
		scores = append(scores, R2(teY, m.Predict(teX)))
	}

	return stat.Mean(scores, nil), stat.PopStdDev(scores, nil), nil
}

// R2 is the coefficient of determination of predictions against truth.
func R2(yTrue, yPred []float64) float64 {
	return stat.RSquaredFrom(yPred, yTrue, nil)
}

// RMSE is the root mean squared prediction error.
func RMSE(yTrue, yPred []float64) float64 {
	s := 0.0
	for i := range yTrue {
		d := yPred[i] - yTrue[i]
		s += d * d
	}
	return math.Sqrt(s / float64(len(yTrue)))
}
