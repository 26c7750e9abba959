// Package artifact defines the Model Package — the immutable bundle a
// training run produces and every serving process loads — and its on-disk
// persistence.
package artifact

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/crimson-sun/appraise/internal/feature"
	"github.com/crimson-sun/appraise/internal/regress"
)

// ErrNotFound indicates no artifact exists at the given path. Serving treats
// this as "model unavailable", not as a prediction error.
var ErrNotFound = errors.New("model artifact not found")

// CVScore is one candidate's cross-validation result.
type CVScore struct {
	Mean float64
	Std  float64
}

// Performance is the training run's evaluation record. Test metrics are
// observability only; selection used the CV scores.
type Performance struct {
	R2Test   float64
	RMSETest float64
	CVScores map[string]CVScore
}

// Package bundles everything inference needs. It is created atomically by
// one training run, loaded read-only by serving, and never mutated in
// place; a retrain replaces the file wholesale.
type Package struct {
	Model        regress.Regressor
	ModelName    string
	Scaler       *feature.StandardScaler
	Encoders     map[string]*feature.LabelEncoder
	FeatureNames []string // defines column order for every future inference
	Performance  Performance
	TrainedAt    time.Time
}

func init() {
	// Concrete regressor types behind the Model interface.
	gob.Register(&regress.Linear{})
	gob.Register(&regress.Tree{})
	gob.Register(&regress.Forest{})
	gob.Register(&regress.Boosting{})
}

// Save writes the package to path atomically: encode to a temp file in the
// same directory, fsync, then rename over the destination so a concurrent
// reader sees either the old artifact or the new one, never a torn write.
func Save(pkg *Package, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("artifact: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".model-*.gob")
	if err != nil {
		return fmt.Errorf("artifact: temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after successful rename

	if err := gob.NewEncoder(tmp).Encode(pkg); err != nil {
		tmp.Close()
		return fmt.Errorf("artifact: encode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("artifact: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("artifact: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("artifact: rename: %w", err)
	}
	return nil
}

// Load reads a package from path. Returns ErrNotFound when the file does
// not exist.
func Load(path string) (*Package, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("artifact: open %s: %w", path, err)
	}
	defer f.Close()

	var pkg Package
	if err := gob.NewDecoder(f).Decode(&pkg); err != nil {
		return nil, fmt.Errorf("artifact: decode %s: %w", path, err)
	}
	return &pkg, nil
}
