// Package feature is the shared feature-preparation core. Training and
// serving both go through Derive and Vector, so the engineered columns can
// never drift between fit time and inference time.
package feature

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ReferenceYear anchors house_age at training time.
const ReferenceYear = 2024

// ServingHouseAge is the fixed house_age used at serving time, because the
// serving contract carries no yr_built field. The value (2025−1990) is a
// deliberate carry-over of the original behavior: training and serving
// house_age distributions differ, and changing that silently would change
// every prediction. See DESIGN.md.
const ServingHouseAge = 35

// DropColumns are identifier and raw-year columns removed after derivation;
// they never become model features.
var DropColumns = []string{"date", "street", "yr_built", "yr_renovated"}

// CategoricalColumns are the columns that go through a LabelEncoder.
var CategoricalColumns = []string{"city", "statezip", "country"}

// Years carries the training-only year fields used to derive house_age and
// is_renovated. A nil Years means serving time, where the constants apply.
type Years struct {
	Built     float64
	Renovated float64
}

// Derive adds the three engineered fields to a record's numeric map:
// house_age, is_renovated and total_sqft. It is the single derivation used
// by both training and serving.
func Derive(numeric map[string]float64, years *Years) {
	if years != nil {
		numeric["house_age"] = ReferenceYear - years.Built
		if years.Renovated > 0 {
			numeric["is_renovated"] = 1
		} else {
			numeric["is_renovated"] = 0
		}
	} else {
		numeric["house_age"] = ServingHouseAge
		numeric["is_renovated"] = 0
	}
	numeric["total_sqft"] = numeric["sqft_living"] + numeric["sqft_basement"]
}

// Record is one observation after numeric parsing, keyed by column name.
type Record struct {
	Numeric     map[string]float64
	Categorical map[string]string
}

// Vector assembles the model input in the exact order given by featureNames.
// Column order is part of the artifact contract: the scaler and model were
// fit against it, and any permutation silently corrupts predictions.
// Categorical columns are resolved through their encoder (unseen → fallback
// 0, a missing encoder likewise → 0); numeric columns must be present and
// finite or the call fails fast.
func Vector(rec Record, encoders map[string]*LabelEncoder, featureNames []string) ([]float64, error) {
	out := make([]float64, len(featureNames))
	for i, name := range featureNames {
		if enc, ok := encoders[name]; ok {
			out[i] = float64(enc.Code(rec.Categorical[name]))
			continue
		}
		v, ok := rec.Numeric[name]
		if !ok {
			return nil, fmt.Errorf("feature: missing numeric field %q", name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("feature: field %q is not a finite number", name)
		}
		out[i] = v
	}
	return out, nil
}

// Median returns the median of the finite values in a column. Used for
// training-time imputation; NaN entries are ignored.
func Median(values []float64) float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0
	}
	sort.Float64s(finite)
	return stat.Quantile(0.5, stat.Empirical, finite, nil)
}

// Impute replaces NaN entries in a column with the column median, returning
// the median used.
func Impute(values []float64) float64 {
	m := Median(values)
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = m
		}
	}
	return m
}
