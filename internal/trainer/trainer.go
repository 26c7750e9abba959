// Package trainer implements the batch training pipeline: load and validate
// the dataset, derive features, fit encoders and scaler, select the best
// regressor by cross-validation, evaluate on the held-out split, and persist
// the Model Package.
package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/crimson-sun/appraise/internal/artifact"
	"github.com/crimson-sun/appraise/internal/audit"
	"github.com/crimson-sun/appraise/internal/config"
	"github.com/crimson-sun/appraise/internal/dataset"
	"github.com/crimson-sun/appraise/internal/feature"
	"github.com/crimson-sun/appraise/internal/regress"
)

// Candidate is one model in the selection pool. The slice order is the
// tie-break: when two candidates reach the same CV score, the earlier one
// stays selected.
type Candidate struct {
	Name string
	New  func(seed int64) regress.Regressor
}

// Candidates is the fixed selection pool: a linear baseline plus two tree
// ensembles, mirroring the reference hyperparameters (100 trees, depth-3
// boosting stages, shrinkage 0.1).
func Candidates() []Candidate {
	return []Candidate{
		{Name: "LinearRegression", New: func(int64) regress.Regressor { return regress.NewLinear() }},
		{Name: "RandomForestRegressor", New: func(seed int64) regress.Regressor { return regress.NewForest(100, seed) }},
		{Name: "GradientBoostingRegressor", New: func(seed int64) regress.Regressor { return regress.NewBoosting(seed) }},
	}
}

// Prepared is the preprocessed dataset: the frozen feature order and
// encoders plus the numeric design matrix and target.
type Prepared struct {
	FeatureNames []string
	Encoders     map[string]*feature.LabelEncoder
	X            [][]float64
	Y            []float64
}

// Preprocess derives the engineered columns, fits the categorical encoders,
// imputes missing numerics with column medians, and assembles the design
// matrix in the frozen feature order.
func Preprocess(tbl *dataset.Table, target string) (*Prepared, error) {
	drop := make(map[string]bool, len(feature.DropColumns))
	for _, c := range feature.DropColumns {
		drop[c] = true
	}
	categorical := make(map[string]bool, len(feature.CategoricalColumns))
	for _, c := range feature.CategoricalColumns {
		categorical[c] = true
	}

	// Numeric columns, parsed with NaN for empty cells. A cell that is
	// present but unparseable is a hard error: silent coercion here would
	// poison the fit.
	numeric := make(map[string][]float64)
	for _, name := range tbl.Header {
		if categorical[name] || name == "date" || name == "street" {
			continue
		}
		col, err := tbl.Column(name)
		if err != nil {
			return nil, err
		}
		vals := make([]float64, len(col))
		for i, cell := range col {
			if cell == "" {
				vals[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: column %q row %d: %q is not numeric",
					dataset.ErrInvalid, name, i+1, cell)
			}
			vals[i] = v
		}
		feature.Impute(vals)
		numeric[name] = vals
	}

	if _, ok := numeric[target]; !ok {
		return nil, fmt.Errorf("%w: target column %q not numeric", dataset.ErrInvalid, target)
	}

	// Frozen feature order: table header order minus dropped columns and
	// the target, with the derived columns appended.
	var names []string
	for _, name := range tbl.Header {
		if drop[name] || name == target {
			continue
		}
		names = append(names, name)
	}
	names = append(names, "house_age", "is_renovated", "total_sqft")

	encoders := make(map[string]*feature.LabelEncoder, len(feature.CategoricalColumns))
	catCols := make(map[string][]string)
	for _, name := range feature.CategoricalColumns {
		if !tbl.HasColumn(name) {
			continue
		}
		col, err := tbl.Column(name)
		if err != nil {
			return nil, err
		}
		encoders[name] = feature.FitEncoder(col)
		catCols[name] = col
	}

	yrBuilt := numeric["yr_built"]
	yrRenovated := numeric["yr_renovated"]

	n := tbl.Len()
	X := make([][]float64, n)
	for i := 0; i < n; i++ {
		rec := feature.Record{
			Numeric:     make(map[string]float64, len(numeric)+3),
			Categorical: make(map[string]string, len(catCols)),
		}
		for name, col := range numeric {
			rec.Numeric[name] = col[i]
		}
		for name, col := range catCols {
			rec.Categorical[name] = col[i]
		}
		feature.Derive(rec.Numeric, &feature.Years{Built: yrBuilt[i], Renovated: yrRenovated[i]})

		vec, err := feature.Vector(rec, encoders, names)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", dataset.ErrInvalid, i+1, err)
		}
		X[i] = vec
	}

	y := make([]float64, n)
	copy(y, numeric[target])

	return &Prepared{FeatureNames: names, Encoders: encoders, X: X, Y: y}, nil
}

// SelectBest cross-validates every candidate on the training split, fits
// each on the full split, and returns the fitted winner: highest mean CV
// R², first-seen wins on ties (strict greater-than against the running
// best). Test data never enters this function.
func SelectBest(X [][]float64, y []float64, folds int, seed int64) (regress.Regressor, string, map[string]artifact.CVScore, error) {
	var (
		best     regress.Regressor
		bestName string
	)
	bestScore := math.Inf(-1)
	scores := make(map[string]artifact.CVScore)

	for _, c := range Candidates() {
		slog.Info("training candidate", "model", c.Name)

		mean, std, err := regress.CrossValidate(func() regress.Regressor { return c.New(seed) }, X, y, folds, seed)
		if err != nil {
			return nil, "", nil, fmt.Errorf("trainer: cross-validate %s: %w", c.Name, err)
		}

		m := c.New(seed)
		if err := m.Fit(X, y); err != nil {
			return nil, "", nil, fmt.Errorf("trainer: fit %s: %w", c.Name, err)
		}

		scores[c.Name] = artifact.CVScore{Mean: mean, Std: std}
		slog.Info("candidate scored", "model", c.Name, "cv_r2_mean", mean, "cv_r2_std", std)

		if mean > bestScore {
			bestScore = mean
			best = m
			bestName = c.Name
		}
	}

	slog.Info("best model selected", "model", bestName, "cv_r2", bestScore)
	return best, bestName, scores, nil
}

// Run executes the full training pipeline and saves the Model Package
// atomically to cfg.Train.ModelPath.
func Run(ctx context.Context, cfg config.Config, sink audit.Sink) (*artifact.Package, error) {
	start := time.Now()
	slog.Info("training started", "dataset", cfg.Data.File)

	tbl, err := dataset.Load(cfg.Data.File)
	if err != nil {
		return nil, err
	}
	slog.Info("dataset loaded", "rows", tbl.Len(), "columns", len(tbl.Header))

	prep, err := Preprocess(tbl, cfg.Data.Target)
	if err != nil {
		return nil, err
	}

	trainIdx, testIdx := regress.TrainTestSplit(len(prep.X), cfg.Data.TestSize, cfg.Train.Seed)
	trainX, trainY := take(prep.X, prep.Y, trainIdx)
	testX, testY := take(prep.X, prep.Y, testIdx)

	var scaler feature.StandardScaler
	if err := scaler.Fit(trainX); err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}
	trainScaled, err := scaler.Transform(trainX)
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}
	testScaled, err := scaler.Transform(testX)
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}

	model, name, scores, err := SelectBest(trainScaled, trainY, cfg.Train.Folds, cfg.Train.Seed)
	if err != nil {
		return nil, err
	}

	// Held-out evaluation: observability only, never feeds selection.
	testPred := model.Predict(testScaled)
	r2 := regress.R2(testY, testPred)
	rmse := regress.RMSE(testY, testPred)
	slog.Info("test performance", "model", name, "r2", r2, "rmse", rmse)

	pkg := &artifact.Package{
		Model:        model,
		ModelName:    name,
		Scaler:       &scaler,
		Encoders:     prep.Encoders,
		FeatureNames: prep.FeatureNames,
		Performance: artifact.Performance{
			R2Test:   r2,
			RMSETest: rmse,
			CVScores: scores,
		},
		TrainedAt: time.Now().UTC(),
	}
	if err := artifact.Save(pkg, cfg.Train.ModelPath); err != nil {
		return nil, err
	}

	if sink != nil {
		event := audit.Training(name, tbl.Len(), len(prep.FeatureNames), r2, rmse, time.Since(start))
		if err := sink.Write(ctx, event); err != nil {
			slog.Warn("audit write failed", "error", err)
		}
	}

	slog.Info("training finished", "model", name, "elapsed", time.Since(start).Round(time.Millisecond), "artifact", cfg.Train.ModelPath)
	return pkg, nil
}

func take(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	outX := make([][]float64, len(idx))
	outY := make([]float64, len(idx))
	for i, j := range idx {
		outX[i] = X[j]
		outY[i] = y[j]
	}
	return outX, outY
}
