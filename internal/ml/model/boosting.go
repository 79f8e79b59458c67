package model

import (
	"fmt"
	"math"
)

// MaxBoostingRows is the largest training set the boosted classifier
// accepts. Beyond it the trainer falls back to the forest.
const MaxBoostingRows = 50000

// GradientBoosting is a boosted ensemble of shallow regression trees for
// binary classification with logistic loss.
type GradientBoosting struct {
	Trees        []*Tree `json:"trees"`
	LearningRate float64 `json:"learning_rate"`
	InitScore    float64 `json:"init_score"`
	MaxDepth     int     `json:"max_depth"`
}

// BoostingParams tunes training. Zero values take the defaults.
type BoostingParams struct {
	NumTrees     int
	MaxDepth     int
	LearningRate float64
}

func (p BoostingParams) withDefaults() BoostingParams {
	if p.NumTrees <= 0 {
		p.NumTrees = 80
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 3
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 0.1
	}
	return p
}

// FitBoosting trains with logistic loss: each round fits a tree to the
// residual y - p and converts leaf means to Newton-step values.
func FitBoosting(samples [][]float64, targets []float64, params BoostingParams) (*GradientBoosting, error) {
	n := len(samples)
	if n == 0 || n != len(targets) {
		return nil, fmt.Errorf("fit boosting: %d samples, %d targets", n, len(targets))
	}
	if n > MaxBoostingRows {
		return nil, fmt.Errorf("fit boosting: %d rows exceeds supported size %d", n, MaxBoostingRows)
	}
	params = params.withDefaults()

	var pos float64
	for _, y := range targets {
		pos += y
	}
	// Clamp the prior away from 0 and 1 so the initial log-odds is finite.
	prior := math.Min(math.Max(pos/float64(n), 1e-4), 1-1e-4)

	g := &GradientBoosting{
		Trees:        make([]*Tree, 0, params.NumTrees),
		LearningRate: params.LearningRate,
		InitScore:    math.Log(prior / (1 - prior)),
		MaxDepth:     params.MaxDepth,
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = g.InitScore
	}
	residuals := make([]float64, n)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	cfg := treeConfig{maxDepth: params.MaxDepth, minSamplesLeaf: 5}
	for round := 0; round < params.NumTrees; round++ {
		for i := range samples {
			residuals[i] = targets[i] - sigmoid(scores[i])
		}
		tree := fitTree(samples, residuals, idx, cfg)
		newtonLeaves(tree.Root, samples, targets, scores, idx)

		for i, x := range samples {
			scores[i] += params.LearningRate * tree.Predict(x)
		}
		g.Trees = append(g.Trees, tree)
	}
	return g, nil
}

// newtonLeaves replaces each leaf's residual mean with the Newton step
// sum(y - p) / sum(p * (1 - p)) over the rows that land in the leaf.
func newtonLeaves(node *TreeNode, samples [][]float64, targets, scores []float64, idx []int) {
	if node.Leaf {
		var num, den float64
		for _, i := range idx {
			p := sigmoid(scores[i])
			num += targets[i] - p
			den += p * (1 - p)
		}
		if den < 1e-9 {
			node.Value = 0
		} else {
			node.Value = num / den
		}
		return
	}
	var left, right []int
	for _, i := range idx {
		if samples[i][node.Feature] <= node.Threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	newtonLeaves(node.Left, samples, targets, scores, left)
	newtonLeaves(node.Right, samples, targets, scores, right)
}

// Predict returns the positive-class probability for one sample.
func (g *GradientBoosting) Predict(x []float64) float64 {
	score := g.InitScore
	for _, t := range g.Trees {
		score += g.LearningRate * t.Predict(x)
	}
	return sigmoid(score)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
