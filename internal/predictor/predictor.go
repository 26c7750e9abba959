// Package predictor runs inference against a loaded Model Package: the
// shared feature derivation, the frozen encoders and scaler, the persisted
// model, and the price floor.
package predictor

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/crimson-sun/appraise/internal/artifact"
	"github.com/crimson-sun/appraise/internal/feature"
)

// FloorPrice is the minimum price ever returned. Unconstrained regressors
// can output negative or implausibly low values on out-of-distribution
// input; those are clamped, not surfaced.
const FloorPrice = 50000

// ErrUnavailable indicates no Model Package is loaded. This is a service
// condition, not a prediction failure.
var ErrUnavailable = errors.New("model not loaded")

// Error is a failed prediction. It carries the offending input for the
// audit trail and wraps the underlying cause.
type Error struct {
	Input Input
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("prediction failed: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Input is one raw serving record — the request shape of the prediction
// contract, independent of transport.
type Input struct {
	Bedrooms     int     `json:"bedrooms"`
	Bathrooms    float64 `json:"bathrooms"`
	SqftLiving   int     `json:"sqft_living"`
	SqftLot      int     `json:"sqft_lot"`
	Floors       float64 `json:"floors"`
	Waterfront   bool    `json:"waterfront"`
	View         int     `json:"view"`
	Condition    int     `json:"condition"`
	SqftAbove    int     `json:"sqft_above"`
	SqftBasement int     `json:"sqft_basement"`
	City         string  `json:"city"`
	StateZip     string  `json:"statezip"`
	Country      string  `json:"country"`
}

// ApplyDefaults fills the location fields the way the original request
// schema defaulted them.
func (in *Input) ApplyDefaults() {
	if in.City == "" {
		in.City = "Seattle"
	}
	if in.StateZip == "" {
		in.StateZip = "WA 98101"
	}
	if in.Country == "" {
		in.Country = "USA"
	}
}

// Validate rejects values outside the declared request contract.
func (in Input) Validate() error {
	if in.Bedrooms < 0 || in.Bathrooms < 0 || in.Floors < 0 {
		return errors.New("negative room or floor count")
	}
	if in.SqftLiving < 0 || in.SqftLot < 0 || in.SqftAbove < 0 || in.SqftBasement < 0 {
		return errors.New("negative square footage")
	}
	if in.View < 0 || in.View > 4 {
		return fmt.Errorf("view %d outside 0-4", in.View)
	}
	if in.Condition < 1 || in.Condition > 5 {
		return fmt.Errorf("condition %d outside 1-5", in.Condition)
	}
	return nil
}

// record converts the input to a feature record with the serving-time
// derived fields applied.
func (in Input) record() feature.Record {
	waterfront := 0.0
	if in.Waterfront {
		waterfront = 1
	}
	numeric := map[string]float64{
		"bedrooms":      float64(in.Bedrooms),
		"bathrooms":     in.Bathrooms,
		"sqft_living":   float64(in.SqftLiving),
		"sqft_lot":      float64(in.SqftLot),
		"floors":        in.Floors,
		"waterfront":    waterfront,
		"view":          float64(in.View),
		"condition":     float64(in.Condition),
		"sqft_above":    float64(in.SqftAbove),
		"sqft_basement": float64(in.SqftBasement),
	}
	feature.Derive(numeric, nil) // serving: constants for house_age/is_renovated
	return feature.Record{
		Numeric: numeric,
		Categorical: map[string]string{
			"city":     in.City,
			"statezip": in.StateZip,
			"country":  in.Country,
		},
	}
}

// Result is a successful prediction.
type Result struct {
	Price     float64
	ModelName string
}

// Predict runs one inference: engineer with the package's frozen encoders
// and feature order, transform with the frozen scaler, invoke the model,
// clamp to FloorPrice. Returns ErrUnavailable when pkg is nil and *Error
// for any per-request failure.
func Predict(pkg *artifact.Package, in Input) (Result, error) {
	if pkg == nil {
		return Result{}, ErrUnavailable
	}
	if err := in.Validate(); err != nil {
		return Result{}, &Error{Input: in, Err: err}
	}

	vec, err := feature.Vector(in.record(), pkg.Encoders, pkg.FeatureNames)
	if err != nil {
		return Result{}, &Error{Input: in, Err: err}
	}
	scaled, err := pkg.Scaler.TransformRow(vec)
	if err != nil {
		return Result{}, &Error{Input: in, Err: err}
	}

	preds := pkg.Model.Predict([][]float64{scaled})
	if len(preds) != 1 {
		return Result{}, &Error{Input: in, Err: fmt.Errorf("model returned %d predictions", len(preds))}
	}

	price := preds[0]
	if price < FloorPrice {
		price = FloorPrice
	}
	return Result{Price: price, ModelName: pkg.ModelName}, nil
}

// Holder owns the currently loaded Model Package. Reads are lock-free; a
// retrain swaps the pointer atomically so in-flight requests keep the
// package they started with.
type Holder struct {
	pkg atomic.Pointer[artifact.Package]
}

// NewHolder returns a Holder, optionally pre-loaded.
func NewHolder(pkg *artifact.Package) *Holder {
	h := &Holder{}
	if pkg != nil {
		h.pkg.Store(pkg)
	}
	return h
}

// Swap replaces the loaded package.
func (h *Holder) Swap(pkg *artifact.Package) { h.pkg.Store(pkg) }

// Get returns the loaded package, or nil when none is loaded.
func (h *Holder) Get() *artifact.Package { return h.pkg.Load() }

// Loaded reports whether a package is available.
func (h *Holder) Loaded() bool { return h.pkg.Load() != nil }

// Predict runs inference against the currently loaded package, reporting
// the wall-clock latency of the attempt.
func (h *Holder) Predict(in Input) (Result, time.Duration, error) {
	start := time.Now()
	res, err := Predict(h.Get(), in)
	return res, time.Since(start), err
}
