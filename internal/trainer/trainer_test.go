package trainer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/crimson-sun/appraise/internal/artifact"
	"github.com/crimson-sun/appraise/internal/audit"
	"github.com/crimson-sun/appraise/internal/config"
	"github.com/crimson-sun/appraise/internal/dataset"
	"github.com/crimson-sun/appraise/internal/predictor"
)

// syntheticCSV builds a dataset whose price is an exact linear function of
// the numeric features, so LinearRegression wins selection deterministically.
func syntheticCSV(rows int) string {
	var b strings.Builder
	b.WriteString(strings.Join(dataset.RequiredColumns, ","))
	b.WriteByte('\n')
	cities := []string{"Seattle", "Bellevue", "Tacoma", "Renton"}
	zips := []string{"WA 98101", "WA 98004", "WA 98402", "WA 98055"}
	for i := 0; i < rows; i++ {
		bedrooms := 2 + i%4
		sqftLiving := 900 + 137*i
		sqftLot := 3000 + 211*i
		sqftAbove := sqftLiving - 100
		basement := 100 + (i%3)*150
		yrBuilt := 1950 + i
		yrRenovated := 0
		if i%5 == 0 {
			yrRenovated = 2000 + i%20
		}
		price := 250*sqftLiving + 90*basement + 12000*bedrooms + 75000
		fmt.Fprintf(&b, "2014-05-%02d,%d,%d,%1.1f,%d,%d,%1.1f,%d,%d,%d,%d,%d,%d,%d,%s,%s,USA\n",
			1+i%28, price, bedrooms, 1.0+float64(i%3)*0.5, sqftLiving, sqftLot,
			1.0+float64(i%2), i%7/6, i%5, 1+i%5, sqftAbove, basement,
			yrBuilt, yrRenovated, cities[i%4], zips[i%4])
	}
	return b.String()
}

func writeDataset(t *testing.T, rows int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "output.csv")
	if err := os.WriteFile(path, []byte(syntheticCSV(rows)), 0644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func testConfig(t *testing.T, dataFile string) config.Config {
	t.Helper()
	return config.Config{
		Data:  config.DataConfig{File: dataFile, Target: "price", TestSize: 0.2},
		Train: config.TrainConfig{Seed: 42, Folds: 5, ModelPath: filepath.Join(t.TempDir(), "model.gob")},
	}
}

func TestPreprocess(t *testing.T) {
	tbl, err := dataset.Load(writeDataset(t, 40))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	prep, err := Preprocess(tbl, "price")
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}

	wantNames := []string{
		"bedrooms", "bathrooms", "sqft_living", "sqft_lot", "floors",
		"waterfront", "view", "condition", "sqft_above", "sqft_basement",
		"city", "statezip", "country",
		"house_age", "is_renovated", "total_sqft",
	}
	if !reflect.DeepEqual(prep.FeatureNames, wantNames) {
		t.Fatalf("feature names = %v, want %v", prep.FeatureNames, wantNames)
	}
	if len(prep.X) != 40 || len(prep.Y) != 40 {
		t.Fatalf("matrix dims = %dx?, y=%d, want 40", len(prep.X), len(prep.Y))
	}
	if len(prep.X[0]) != len(wantNames) {
		t.Fatalf("row width = %d, want %d", len(prep.X[0]), len(wantNames))
	}
	if len(prep.Encoders) != 3 {
		t.Fatalf("expected 3 encoders, got %d", len(prep.Encoders))
	}

	// Row 0: yr_built=1950 so house_age = reference − 1950; renovated.
	idx := map[string]int{}
	for i, n := range wantNames {
		idx[n] = i
	}
	if got := prep.X[0][idx["house_age"]]; got != 74 {
		t.Fatalf("house_age = %v, want 74", got)
	}
	if got := prep.X[0][idx["is_renovated"]]; got != 1 {
		t.Fatalf("is_renovated = %v, want 1", got)
	}
	if got := prep.X[0][idx["total_sqft"]]; got != 900+100 {
		t.Fatalf("total_sqft = %v, want 1000", got)
	}
}

func TestPreprocessRejectsMalformedCell(t *testing.T) {
	csv := syntheticCSV(10)
	csv = strings.Replace(csv, "2,1.0,900", "abc,1.0,900", 1) // bedrooms → "abc"
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := dataset.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := Preprocess(tbl, "price"); !errors.Is(err, dataset.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for malformed cell, got %v", err)
	}
}

func TestPreprocessImputesEmptyCell(t *testing.T) {
	csv := syntheticCSV(10)
	csv = strings.Replace(csv, ",3000,", ",,", 1) // blank a sqft_lot cell
	path := filepath.Join(t.TempDir(), "gap.csv")
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := dataset.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := Preprocess(tbl, "price"); err != nil {
		t.Fatalf("empty cell should be imputed, got %v", err)
	}
}

func TestSelectBestDeterministic(t *testing.T) {
	tbl, err := dataset.Load(writeDataset(t, 50))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	prep, err := Preprocess(tbl, "price")
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}

	_, name1, scores1, err := SelectBest(prep.X, prep.Y, 5, 42)
	if err != nil {
		t.Fatalf("SelectBest: %v", err)
	}
	_, name2, scores2, err := SelectBest(prep.X, prep.Y, 5, 42)
	if err != nil {
		t.Fatalf("SelectBest: %v", err)
	}

	if name1 != name2 {
		t.Fatalf("winner differs across runs: %q vs %q", name1, name2)
	}
	if !reflect.DeepEqual(scores1, scores2) {
		t.Fatalf("CV scores differ across runs:\n%v\n%v", scores1, scores2)
	}
	if len(scores1) != 3 {
		t.Fatalf("expected scores for 3 candidates, got %d", len(scores1))
	}
	// The target is an exact linear function of the features.
	if name1 != "LinearRegression" {
		t.Fatalf("expected LinearRegression to win on exact linear data, got %q", name1)
	}
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t, writeDataset(t, 50))
	sink := audit.NewMemory()

	pkg, err := Run(context.Background(), cfg, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pkg.ModelName == "" || pkg.Model == nil {
		t.Fatalf("incomplete package: %+v", pkg)
	}
	if len(pkg.FeatureNames) != 16 {
		t.Fatalf("feature count = %d, want 16", len(pkg.FeatureNames))
	}
	if pkg.Performance.R2Test < 0.9 {
		t.Fatalf("test R2 = %v, want >= 0.9 on synthetic linear data", pkg.Performance.R2Test)
	}
	if pkg.TrainedAt.IsZero() {
		t.Fatal("TrainedAt not set")
	}

	// Artifact is on disk and serves predictions.
	loaded, err := artifact.Load(cfg.Train.ModelPath)
	if err != nil {
		t.Fatalf("artifact load: %v", err)
	}
	res, err := predictor.Predict(loaded, predictor.Input{
		Bedrooms: 3, Bathrooms: 2.0, SqftLiving: 1800, SqftLot: 5000,
		Floors: 2.0, View: 2, Condition: 3, SqftAbove: 1600, SqftBasement: 200,
		City: "Seattle", StateZip: "WA 98101", Country: "USA",
	})
	if err != nil {
		t.Fatalf("predict from trained artifact: %v", err)
	}
	if res.Price <= 0 {
		t.Fatalf("price = %v, want > 0", res.Price)
	}
	if res.ModelName != pkg.ModelName {
		t.Fatalf("model name mismatch: %q vs %q", res.ModelName, pkg.ModelName)
	}

	// Training was audited.
	events := sink.Events()
	if len(events) != 1 || events[0].EventType != audit.TypeTraining {
		t.Fatalf("expected one training audit event, got %+v", events)
	}
	if events[0].DatasetSize != 50 || events[0].FeatureCount != 16 {
		t.Fatalf("audit payload wrong: %+v", events[0])
	}
}

func TestRunMissingDataset(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "absent.csv"))
	if _, err := Run(context.Background(), cfg, nil); !errors.Is(err, dataset.ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
}

func TestRunInvalidDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "narrow.csv")
	if err := os.WriteFile(path, []byte("price,bedrooms\n100,2\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := testConfig(t, path)
	if _, err := Run(context.Background(), cfg, nil); !errors.Is(err, dataset.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}
