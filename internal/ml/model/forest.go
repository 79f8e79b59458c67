package model

import (
	"fmt"
	"math"
	"math/rand"
)

// RandomForest is a bagged ensemble of CART trees. Predictions average the
// trees, so with 0/1 targets the output is a probability.
type RandomForest struct {
	Trees          []*Tree `json:"trees"`
	NumTrees       int     `json:"num_trees"`
	MaxDepth       int     `json:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
}

// ForestParams tunes training. Zero values take the defaults.
type ForestParams struct {
	NumTrees       int
	MaxDepth       int
	MinSamplesLeaf int
	Seed           int64
}

func (p ForestParams) withDefaults() ForestParams {
	if p.NumTrees <= 0 {
		p.NumTrees = 50
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 8
	}
	if p.MinSamplesLeaf <= 0 {
		p.MinSamplesLeaf = 2
	}
	return p
}

// FitForest trains on bootstrap resamples with sqrt(d) features per split.
func FitForest(samples [][]float64, targets []float64, params ForestParams) (*RandomForest, error) {
	if len(samples) == 0 || len(samples) != len(targets) {
		return nil, fmt.Errorf("fit forest: %d samples, %d targets", len(samples), len(targets))
	}
	params = params.withDefaults()
	rng := rand.New(rand.NewSource(params.Seed))
	maxFeatures := int(math.Sqrt(float64(len(samples[0]))))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	f := &RandomForest{
		Trees:          make([]*Tree, 0, params.NumTrees),
		NumTrees:       params.NumTrees,
		MaxDepth:       params.MaxDepth,
		MinSamplesLeaf: params.MinSamplesLeaf,
	}
	n := len(samples)
	for t := 0; t < params.NumTrees; t++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		cfg := treeConfig{
			maxDepth:       params.MaxDepth,
			minSamplesLeaf: params.MinSamplesLeaf,
			maxFeatures:    maxFeatures,
			rng:            rng,
		}
		f.Trees = append(f.Trees, fitTree(samples, targets, idx, cfg))
	}
	return f, nil
}

// Predict averages the ensemble for one sample.
func (f *RandomForest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.Trees))
}
