package regress

import (
	"errors"
	"math/rand"
	"sync"
)

// Forest is a bootstrap-aggregated ensemble of regression trees.
// Prediction is the mean of the tree predictions. Each tree gets a seed
// derived from the forest seed, so a fixed seed gives a fixed forest.
type Forest struct {
	NEstimators    int
	MaxDepth       int // 0 => unlimited
	MinSamplesLeaf int
	MaxFeatures    int // features considered per split; 0 => all
	Seed           int64

	Trees []*Tree
}

// NewForest returns a forest with the given size and seed; trees are
// depth-unlimited with a minimum leaf size of one and every feature
// considered at each split, matching the reference hyperparameters
// (RandomForestRegressor defaults to all features for regression).
func NewForest(nEstimators int, seed int64) *Forest {
	return &Forest{NEstimators: nEstimators, MinSamplesLeaf: 1, Seed: seed}
}

// Fit trains all trees on independent bootstrap samples. Trees are fit
// concurrently; the bootstrap draw for each tree depends only on its own
// derived seed, so concurrency does not affect the result.
func (f *Forest) Fit(X [][]float64, y []float64) error {
	n, _, err := checkXY(X, y)
	if err != nil {
		return err
	}
	if f.NEstimators <= 0 {
		return errors.New("regress: forest needs at least one tree")
	}

	f.Trees = make([]*Tree, f.NEstimators)
	errs := make([]error, f.NEstimators)
	var wg sync.WaitGroup
	for t := 0; t < f.NEstimators; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			treeSeed := f.Seed + int64(t)
			rng := rand.New(rand.NewSource(treeSeed))
			sample := make([]int, n)
			for j := range sample {
				sample[j] = rng.Intn(n)
			}
			tree := &Tree{
				MaxDepth:       f.MaxDepth,
				MinSamplesLeaf: f.MinSamplesLeaf,
				MaxFeatures:    f.MaxFeatures,
				Seed:           treeSeed,
			}
			if err := tree.FitIndices(X, y, sample); err != nil {
				errs[t] = err
				return
			}
			f.Trees[t] = tree
		}(t)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Predict averages the tree predictions for each row.
func (f *Forest) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	if len(f.Trees) == 0 {
		return out
	}
	for _, tree := range f.Trees {
		for i, p := range tree.Predict(X) {
			out[i] += p
		}
	}
	for i := range out {
		out[i] /= float64(len(f.Trees))
	}
	return out
}
