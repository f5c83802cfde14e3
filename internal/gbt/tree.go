// Package gbt is a small gradient-boosted regression-tree ensemble, built
// by hand the way the monorepo's forecasting service hand-rolls its ARIMA
// and LSTM models rather than reaching for a third-party ML library (there
// is none in this stack's dependency surface).
package gbt

import (
	"math"
	"math/rand"
	"sort"
)

// Config mirrors pricingmodel.TrainConfig's shape but stays local to this
// package so gbt has no dependency on the domain model.
type Config struct {
	NEstimators     int
	LearningRate    float64
	MaxDepth        int
	Subsample       float64
	ColsampleByTree float64
	Seed            int64
}

// node is one node of a regression tree. Leaves have Feature == -1.
type node struct {
	Feature     int     `json:"f"`
	Threshold   float64 `json:"t"`
	Value       float64 `json:"v"`
	Left        *node   `json:"l,omitempty"`
	Right       *node   `json:"r,omitempty"`
}

func (n *node) isLeaf() bool { return n.Feature < 0 }

func (n *node) predict(row []float64) float64 {
	cur := n
	for !cur.isLeaf() {
		if row[cur.Feature] <= cur.Threshold {
			cur = cur.Left
		} else {
			cur = cur.Right
		}
	}
	return cur.Value
}

// Ensemble is a trained additive sequence of shallow regression trees.
type Ensemble struct {
	Trees        []*node `json:"trees"`
	LearningRate float64 `json:"learning_rate"`
	Init         float64 `json:"init"`
	NFeatures    int     `json:"n_features"`
	FeatureGain  []float64 `json:"feature_gain"`
}

// Predict evaluates the ensemble on a single feature row.
func (e *Ensemble) Predict(row []float64) float64 {
	out := e.Init
	for _, t := range e.Trees {
		out += e.LearningRate * t.predict(row)
	}
	return out
}

// FeatureImportance returns the accumulated split gain per feature index,
// normalized to sum to 1 (0 if the ensemble has no splits).
func (e *Ensemble) FeatureImportance() []float64 {
	total := 0.0
	for _, g := range e.FeatureGain {
		total += g
	}
	if total <= 0 {
		return make([]float64, e.NFeatures)
	}
	out := make([]float64, len(e.FeatureGain))
	for i, g := range e.FeatureGain {
		out[i] = g / total
	}
	return out
}

// Fit trains a squared-error gradient-boosted ensemble over X (rows by
// feature index) and y (targets), in the style of a minimal sklearn-like
// GBM: each stage fits a regression tree to the current residuals, scaled
// by the learning rate, with row and column subsampling per stage.
func Fit(cfg Config, X [][]float64, y []float64) *Ensemble {
	n := len(y)
	nFeatures := 0
	if n > 0 {
		nFeatures = len(X[0])
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	init := mean(y)
	residual := make([]float64, n)
	for i := range y {
		residual[i] = y[i] - init
	}

	ens := &Ensemble{
		LearningRate: cfg.LearningRate,
		Init:         init,
		NFeatures:    nFeatures,
		FeatureGain:  make([]float64, nFeatures),
	}

	for stage := 0; stage < cfg.NEstimators; stage++ {
		rowIdx := sampleRows(rng, n, cfg.Subsample)
		colIdx := sampleCols(rng, nFeatures, cfg.ColsampleByTree)
		if len(rowIdx) == 0 || len(colIdx) == 0 {
			continue
		}

		tree, gains := fitTree(X, residual, rowIdx, colIdx, cfg.MaxDepth)
		for f, g := range gains {
			ens.FeatureGain[f] += g
		}
		ens.Trees = append(ens.Trees, tree)

		for i := 0; i < n; i++ {
			residual[i] -= cfg.LearningRate * tree.predict(X[i])
		}
	}

	return ens
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func sampleRows(rng *rand.Rand, n int, subsample float64) []int {
	if subsample >= 1.0 || subsample <= 0 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	k := int(math.Round(float64(n) * subsample))
	if k < 1 {
		k = 1
	}
	perm := rng.Perm(n)
	idx := perm[:k]
	sort.Ints(idx)
	return idx
}

func sampleCols(rng *rand.Rand, nFeatures int, colsample float64) []int {
	if colsample >= 1.0 || colsample <= 0 {
		idx := make([]int, nFeatures)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	k := int(math.Round(float64(nFeatures) * colsample))
	if k < 1 {
		k = 1
	}
	perm := rng.Perm(nFeatures)
	idx := perm[:k]
	sort.Ints(idx)
	return idx
}

// fitTree grows one regression tree by greedy squared-error-reduction
// splits, restricted to rowIdx/colIdx, down to maxDepth.
func fitTree(X [][]float64, residual []float64, rowIdx, colIdx []int, maxDepth int) (*node, map[int]float64) {
	gains := make(map[int]float64)
	root := growNode(X, residual, rowIdx, colIdx, maxDepth, gains)
	return root, gains
}

const minLeafSize = 2

func growNode(X [][]float64, residual []float64, rowIdx, colIdx []int, depth int, gains map[int]float64) *node {
	leafValue := mean(gather(residual, rowIdx))

	if depth <= 0 || len(rowIdx) < 2*minLeafSize {
		return &node{Feature: -1, Value: leafValue}
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 0.0
	var bestLeft, bestRight []int

	parentSSE := sse(residual, rowIdx, leafValue)

	for _, f := range colIdx {
		sortedRows := append([]int(nil), rowIdx...)
		sort.Slice(sortedRows, func(i, j int) bool {
			return X[sortedRows[i]][f] < X[sortedRows[j]][f]
		})

		for cut := minLeafSize; cut <= len(sortedRows)-minLeafSize; cut++ {
			left := sortedRows[:cut]
			right := sortedRows[cut:]
			if X[left[len(left)-1]][f] == X[right[0]][f] {
				continue
			}
			threshold := (X[left[len(left)-1]][f] + X[right[0]][f]) / 2.0

			leftMean := mean(gather(residual, left))
			rightMean := mean(gather(residual, right))
			childSSE := sse(residual, left, leftMean) + sse(residual, right, rightMean)
			gain := parentSSE - childSSE
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = threshold
				bestLeft = append([]int(nil), left...)
				bestRight = append([]int(nil), right...)
			}
		}
	}

	if bestFeature < 0 {
		return &node{Feature: -1, Value: leafValue}
	}

	gains[bestFeature] += bestGain

	return &node{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      growNode(X, residual, bestLeft, colIdx, depth-1, gains),
		Right:     growNode(X, residual, bestRight, colIdx, depth-1, gains),
	}
}

func gather(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}

func sse(residual []float64, idx []int, mean float64) float64 {
	s := 0.0
	for _, i := range idx {
		d := residual[i] - mean
		s += d * d
	}
	return s
}

// RMSE computes root-mean-squared-error between predictions and targets.
func RMSE(pred, actual []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	s := 0.0
	for i := range pred {
		d := pred[i] - actual[i]
		s += d * d
	}
	return math.Sqrt(s / float64(len(pred)))
}

// MAE computes mean-absolute-error between predictions and targets.
func MAE(pred, actual []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	s := 0.0
	for i := range pred {
		s += math.Abs(pred[i] - actual[i])
	}
	return s / float64(len(pred))
}
