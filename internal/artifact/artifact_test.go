package artifact

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/crimson-sun/appraise/internal/feature"
	"github.com/crimson-sun/appraise/internal/regress"
)

func fittedPackage(t *testing.T) *Package {
	t.Helper()
	X := [][]float64{{1, 2}, {2, 3}, {3, 5}, {4, 4}, {5, 8}}
	y := []float64{10, 20, 30, 40, 50}

	m := regress.NewLinear()
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	var sc feature.StandardScaler
	if err := sc.Fit(X); err != nil {
		t.Fatalf("scaler fit: %v", err)
	}

	return &Package{
		Model:        m,
		ModelName:    "LinearRegression",
		Scaler:       &sc,
		Encoders:     map[string]*feature.LabelEncoder{"city": feature.FitEncoder([]string{"Bellevue", "Seattle"})},
		FeatureNames: []string{"a", "b"},
		Performance: Performance{
			R2Test:   0.91,
			RMSETest: 1234.5,
			CVScores: map[string]CVScore{"LinearRegression": {Mean: 0.9, Std: 0.01}},
		},
		TrainedAt: time.Now().UTC(),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	pkg := fittedPackage(t)
	path := filepath.Join(t.TempDir(), "models", "model.gob")

	if err := Save(pkg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.ModelName != pkg.ModelName {
		t.Fatalf("ModelName = %q, want %q", loaded.ModelName, pkg.ModelName)
	}
	if !reflect.DeepEqual(loaded.FeatureNames, pkg.FeatureNames) {
		t.Fatalf("FeatureNames = %v, want %v", loaded.FeatureNames, pkg.FeatureNames)
	}
	if loaded.Performance.R2Test != pkg.Performance.R2Test {
		t.Fatalf("R2Test = %v, want %v", loaded.Performance.R2Test, pkg.Performance.R2Test)
	}
	if got := loaded.Encoders["city"].Code("Seattle"); got != 1 {
		t.Fatalf("loaded encoder Code(Seattle) = %d, want 1", got)
	}

	// Identical predictions for fixed probes, bit-exact for a linear model.
	probes := [][]float64{{1, 1}, {2.5, 4.5}, {10, -3}}
	before := pkg.Model.Predict(probes)
	after := loaded.Model.Predict(probes)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("predictions changed across round-trip: %v vs %v", before, after)
	}
}

func TestSaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.gob")

	first := fittedPackage(t)
	if err := Save(first, path); err != nil {
		t.Fatalf("Save first: %v", err)
	}

	second := fittedPackage(t)
	second.ModelName = "RandomForestRegressor"
	if err := Save(second, path); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ModelName != "RandomForestRegressor" {
		t.Fatalf("expected replacement package, got %q", loaded.ModelName)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.gob"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRoundTripEnsembleModel(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}, {6}, {7}, {8}, {9}}
	y := []float64{10, 10, 10, 10, 100, 100, 100, 100}
	f := regress.NewForest(10, 42)
	if err := f.Fit(X, y); err != nil {
		t.Fatalf("forest fit: %v", err)
	}

	pkg := fittedPackage(t)
	pkg.Model = f
	pkg.ModelName = "RandomForestRegressor"
	path := filepath.Join(t.TempDir(), "model.gob")
	if err := Save(pkg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	probes := [][]float64{{2.5}, {7.5}}
	if !reflect.DeepEqual(f.Predict(probes), loaded.Model.Predict(probes)) {
		t.Fatal("forest predictions changed across round-trip")
	}
}
