package regress

// Boosting is gradient boosting for squared loss: a sequence of shallow
// regression trees, each fit to the residuals of the ensemble so far, summed
// with shrinkage. The initial prediction is the target mean.
type Boosting struct {
	NEstimators  int
	LearningRate float64
	MaxDepth     int
	Seed         int64

	Init  float64
	Trees []*Tree
}

// NewBoosting returns a boosted ensemble with 100 depth-3 stages and
// shrinkage 0.1, the reference defaults.
func NewBoosting(seed int64) *Boosting {
	return &Boosting{NEstimators: 100, LearningRate: 0.1, MaxDepth: 3, Seed: seed}
}

// Fit runs the boosting stages. Stages are inherently sequential: each tree
// sees the residuals left by its predecessors.
func (b *Boosting) Fit(X [][]float64, y []float64) error {
	n, _, err := checkXY(X, y)
	if err != nil {
		return err
	}

	sum := 0.0
	for _, v := range y {
		sum += v
	}
	b.Init = sum / float64(n)

	current := make([]float64, n)
	for i := range current {
		current[i] = b.Init
	}
	residual := make([]float64, n)

	b.Trees = make([]*Tree, 0, b.NEstimators)
	for stage := 0; stage < b.NEstimators; stage++ {
		for i := range residual {
			residual[i] = y[i] - current[i]
		}
		tree := &Tree{
			MaxDepth:       b.MaxDepth,
			MinSamplesLeaf: 1,
			Seed:           b.Seed + int64(stage),
		}
		if err := tree.Fit(X, residual); err != nil {
			return err
		}
		b.Trees = append(b.Trees, tree)
		for i, p := range tree.Predict(X) {
			current[i] += b.LearningRate * p
		}
	}
	return nil
}

// Predict sums the shrunken stage predictions on top of the initial mean.
func (b *Boosting) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range out {
		out[i] = b.Init
	}
	for _, tree := range b.Trees {
		for i, p := range tree.Predict(X) {
			out[i] += b.LearningRate * p
		}
	}
	return out
}
