package regress

import (
	"math/rand"
	"sort"
)

// Tree is a CART-style regression tree. Splits minimize the weighted sum of
// squared errors of the children; leaves predict the mean target of their
// samples.
type Tree struct {
	MaxDepth       int // 0 => no depth limit
	MinSamplesLeaf int // minimum samples required in each leaf
	MaxFeatures    int // 0 => consider all features at each split
	Seed           int64

	Root *TreeNode
}

// TreeNode holds one node of a fitted tree. Fields are exported for gob.
type TreeNode struct {
	IsLeaf    bool
	Feature   int
	Threshold float64 // x <= Threshold goes left
	Value     float64 // leaf prediction (mean target)
	N         int
	Left      *TreeNode
	Right     *TreeNode
}

// NewTree returns a regression tree with the given depth limit and a
// minimum of one sample per leaf.
func NewTree(maxDepth int, seed int64) *Tree {
	return &Tree{MaxDepth: maxDepth, MinSamplesLeaf: 1, Seed: seed}
}

// Fit trains the tree on all rows of X.
func (t *Tree) Fit(X [][]float64, y []float64) error {
	n, _, err := checkXY(X, y)
	if err != nil {
		return err
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return t.FitIndices(X, y, idx)
}

// FitIndices trains the tree on a subset of rows, given by index. Forests
// pass bootstrap samples through here without copying the data.
func (t *Tree) FitIndices(X [][]float64, y []float64, idx []int) error {
	if _, _, err := checkXY(X, y); err != nil {
		return err
	}
	if t.MinSamplesLeaf < 1 {
		t.MinSamplesLeaf = 1
	}
	rng := rand.New(rand.NewSource(t.Seed))
	t.Root = t.build(X, y, idx, 0, rng)
	return nil
}

// Predict walks each row down the tree.
func (t *Tree) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = t.predictOne(row)
	}
	return out
}

func (t *Tree) predictOne(x []float64) float64 {
	node := t.Root
	if node == nil {
		return 0
	}
	for !node.IsLeaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

type valueIndex struct {
	v float64
	i int
}

func (t *Tree) build(X [][]float64, y []float64, idx []int, depth int, rng *rand.Rand) *TreeNode {
	node := &TreeNode{N: len(idx), Value: meanAt(y, idx)}

	if len(idx) < 2*t.MinSamplesLeaf || (t.MaxDepth > 0 && depth >= t.MaxDepth) {
		node.IsLeaf = true
		return node
	}

	p := len(X[0])
	feats := make([]int, p)
	for j := range feats {
		feats[j] = j
	}
	if t.MaxFeatures > 0 && t.MaxFeatures < p {
		rng.Shuffle(p, func(a, b int) { feats[a], feats[b] = feats[b], feats[a] })
		feats = feats[:t.MaxFeatures]
		sort.Ints(feats) // stable scan order regardless of shuffle outcome
	}

	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0
	parentSSE := sseAt(y, idx, node.Value)

	pairs := make([]valueIndex, len(idx))
	for _, f := range feats {
		for k, ii := range idx {
			pairs[k] = valueIndex{X[ii][f], ii}
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].v < pairs[b].v })

		// Prefix sums over the sorted order let each candidate threshold be
		// scored in O(1).
		sumLeft, sqLeft := 0.0, 0.0
		sumTotal, sqTotal := 0.0, 0.0
		for _, pv := range pairs {
			sumTotal += y[pv.i]
			sqTotal += y[pv.i] * y[pv.i]
		}
		for s := 1; s < len(pairs); s++ {
			yi := y[pairs[s-1].i]
			sumLeft += yi
			sqLeft += yi * yi
			if pairs[s].v == pairs[s-1].v {
				continue
			}
			nL, nR := float64(s), float64(len(pairs)-s)
			if s < t.MinSamplesLeaf || len(pairs)-s < t.MinSamplesLeaf {
				continue
			}
			sseL := sqLeft - sumLeft*sumLeft/nL
			sumRight := sumTotal - sumLeft
			sseR := (sqTotal - sqLeft) - sumRight*sumRight/nR
			gain := parentSSE - (sseL + sseR)
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (pairs[s-1].v + pairs[s].v) / 2
			}
		}
	}

	if bestFeature < 0 {
		node.IsLeaf = true
		return node
	}

	var leftIdx, rightIdx []int
	for _, ii := range idx {
		if X[ii][bestFeature] <= bestThreshold {
			leftIdx = append(leftIdx, ii)
		} else {
			rightIdx = append(rightIdx, ii)
		}
	}
	node.Feature = bestFeature
	node.Threshold = bestThreshold
	node.Left = t.build(X, y, leftIdx, depth+1, rng)
	node.Right = t.build(X, y, rightIdx, depth+1, rng)
	return node
}

func meanAt(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	s := 0.0
	for _, i := range idx {
		s += y[i]
	}
	return s / float64(len(idx))
}

func sseAt(y []float64, idx []int, mean float64) float64 {
	s := 0.0
	for _, i := range idx {
		d := y[i] - mean
		s += d * d
	}
	return s
}
