package regress

import (
	"math"
	"testing"
)

func TestLinearRecoversExactRelationship(t *testing.T) {
	// y = 2*x1 - 3*x2 + 5, noise-free.
	X := [][]float64{
		{1, 0}, {0, 1}, {1, 1}, {2, 1}, {3, 5}, {4, 2}, {0, 0},
	}
	y := make([]float64, len(X))
	for i, row := range X {
		y[i] = 2*row[0] - 3*row[1] + 5
	}

	m := NewLinear()
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if math.Abs(m.Weights[0]-2) > 1e-9 || math.Abs(m.Weights[1]+3) > 1e-9 {
		t.Fatalf("weights = %v, want [2 -3]", m.Weights)
	}
	if math.Abs(m.Intercept-5) > 1e-9 {
		t.Fatalf("intercept = %v, want 5", m.Intercept)
	}

	pred := m.Predict([][]float64{{10, 10}})
	if math.Abs(pred[0]-(-5)) > 1e-9 {
		t.Fatalf("Predict = %v, want -5", pred[0])
	}
}

func TestLinearRejectsMismatchedInput(t *testing.T) {
	m := NewLinear()
	if err := m.Fit([][]float64{{1}, {2}}, []float64{1}); err == nil {
		t.Fatal("expected error for mismatched X/y lengths")
	}
	if err := m.Fit(nil, nil); err == nil {
		t.Fatal("expected error for empty X")
	}
}

func TestMetrics(t *testing.T) {
	yTrue := []float64{1, 2, 3, 4}
	if r2 := R2(yTrue, yTrue); math.Abs(r2-1) > 1e-12 {
		t.Fatalf("perfect R2 = %v, want 1", r2)
	}
	yPred := []float64{2, 3, 4, 5} // constant offset of 1
	if rmse := RMSE(yTrue, yPred); math.Abs(rmse-1) > 1e-12 {
		t.Fatalf("RMSE = %v, want 1", rmse)
	}
}
