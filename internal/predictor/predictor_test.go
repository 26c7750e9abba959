package predictor

import (
	"errors"
	"testing"

	"github.com/crimson-sun/appraise/internal/artifact"
	"github.com/crimson-sun/appraise/internal/feature"
	"github.com/crimson-sun/appraise/internal/regress"
)

// testPackage builds a small fitted package over a subset of the serving
// features, with a known linear relationship.
func testPackage(t *testing.T) *artifact.Package {
	t.Helper()
	names := []string{"bedrooms", "sqft_living", "total_sqft", "city"}
	// Rough housing-like training points in that column order.
	X := [][]float64{
		{2, 900, 900, 0},
		{3, 1800, 2000, 1},
		{4, 2600, 3000, 1},
		{5, 3400, 4000, 0},
	}
	y := []float64{200000, 400000, 600000, 800000}

	var sc feature.StandardScaler
	if err := sc.Fit(X); err != nil {
		t.Fatalf("scaler fit: %v", err)
	}
	scaled, err := sc.Transform(X)
	if err != nil {
		t.Fatalf("scaler transform: %v", err)
	}
	m := regress.NewLinear()
	if err := m.Fit(scaled, y); err != nil {
		t.Fatalf("model fit: %v", err)
	}

	return &artifact.Package{
		Model:     m,
		ModelName: "LinearRegression",
		Scaler:    &sc,
		Encoders: map[string]*feature.LabelEncoder{
			"city": feature.FitEncoder([]string{"Bellevue", "Seattle"}),
		},
		FeatureNames: names,
	}
}

func seattleInput() Input {
	return Input{
		Bedrooms: 3, Bathrooms: 2.0, SqftLiving: 1800, SqftLot: 5000,
		Floors: 2.0, Waterfront: false, View: 2, Condition: 3,
		SqftAbove: 1600, SqftBasement: 200,
		City: "Seattle", StateZip: "WA 98101", Country: "USA",
	}
}

func TestPredictScenario(t *testing.T) {
	pkg := testPackage(t)
	res, err := Predict(pkg, seattleInput())
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Price <= 0 {
		t.Fatalf("predicted price = %v, want > 0", res.Price)
	}
	if res.ModelName != pkg.ModelName {
		t.Fatalf("model name = %q, want %q", res.ModelName, pkg.ModelName)
	}
}

func TestPredictUnavailable(t *testing.T) {
	_, err := Predict(nil, seattleInput())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPredictFloorsLowOutput(t *testing.T) {
	pkg := testPackage(t)
	// A degenerate model that always predicts far below the floor.
	pkg.Model = &regress.Linear{Weights: make([]float64, len(pkg.FeatureNames)), Intercept: -1e6}

	res, err := Predict(pkg, seattleInput())
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Price != FloorPrice {
		t.Fatalf("price = %v, want exactly %v", res.Price, float64(FloorPrice))
	}
}

func TestPredictUnseenCityDegrades(t *testing.T) {
	pkg := testPackage(t)
	in := seattleInput()
	in.City = "Portland" // never seen in training

	if _, err := Predict(pkg, in); err != nil {
		t.Fatalf("unseen category must not fail prediction: %v", err)
	}
}

func TestPredictInvalidInput(t *testing.T) {
	pkg := testPackage(t)
	in := seattleInput()
	in.View = 9

	_, err := Predict(pkg, in)
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if perr.Input.View != 9 {
		t.Fatalf("error did not capture the offending input: %+v", perr.Input)
	}
}

func TestApplyDefaults(t *testing.T) {
	in := Input{Condition: 3}
	in.ApplyDefaults()
	if in.City != "Seattle" || in.StateZip != "WA 98101" || in.Country != "USA" {
		t.Fatalf("defaults not applied: %+v", in)
	}
}

func TestHolderSwap(t *testing.T) {
	h := NewHolder(nil)
	if h.Loaded() {
		t.Fatal("empty holder reports loaded")
	}
	_, _, err := h.Predict(seattleInput())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from empty holder, got %v", err)
	}

	pkg := testPackage(t)
	h.Swap(pkg)
	if !h.Loaded() {
		t.Fatal("holder not loaded after Swap")
	}
	res, latency, err := h.Predict(seattleInput())
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.ModelName != pkg.ModelName {
		t.Fatalf("model name = %q", res.ModelName)
	}
	if latency < 0 {
		t.Fatalf("negative latency %v", latency)
	}
}
