package model

import (
	"math/rand"
	"sort"
)

// Tree is a CART regression tree. With 0/1 targets its leaf means are class
// probabilities, so the same structure serves classification ensembles.
type Tree struct {
	Root *TreeNode `json:"root"`
}

// TreeNode is one split or leaf. Leaves carry only Value.
type TreeNode struct {
	Leaf      bool      `json:"leaf"`
	Value     float64   `json:"value"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
}

// Predict walks the tree for one sample.
func (t *Tree) Predict(x []float64) float64 {
	node := t.Root
	for !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

type treeConfig struct {
	maxDepth       int
	minSamplesLeaf int
	// maxFeatures limits the features considered per split; 0 means all.
	maxFeatures int
	rng         *rand.Rand
}

// fitTree grows a tree over the rows named by idx, minimizing squared error.
func fitTree(samples [][]float64, targets []float64, idx []int, cfg treeConfig) *Tree {
	return &Tree{Root: growNode(samples, targets, idx, 0, cfg)}
}

func growNode(samples [][]float64, targets []float64, idx []int, depth int, cfg treeConfig) *TreeNode {
	mean := meanAt(targets, idx)
	if depth >= cfg.maxDepth || len(idx) < 2*cfg.minSamplesLeaf || pure(targets, idx) {
		return &TreeNode{Leaf: true, Value: mean}
	}

	feat, threshold, ok := bestSplit(samples, targets, idx, cfg)
	if !ok {
		return &TreeNode{Leaf: true, Value: mean}
	}

	var left, right []int
	for _, i := range idx {
		if samples[i][feat] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < cfg.minSamplesLeaf || len(right) < cfg.minSamplesLeaf {
		return &TreeNode{Leaf: true, Value: mean}
	}

	return &TreeNode{
		Feature:   feat,
		Threshold: threshold,
		Left:      growNode(samples, targets, left, depth+1, cfg),
		Right:     growNode(samples, targets, right, depth+1, cfg),
	}
}

// bestSplit scans candidate features for the threshold with the lowest
// weighted sum of squared errors.
func bestSplit(samples [][]float64, targets []float64, idx []int, cfg treeConfig) (int, float64, bool) {
	nFeatures := len(samples[idx[0]])
	candidates := featureCandidates(nFeatures, cfg)

	bestScore := parentSSE(targets, idx)
	var bestFeat int
	var bestThreshold float64
	found := false

	for _, feat := range candidates {
		thresholds := splitPoints(samples, idx, feat)
		for _, th := range thresholds {
			var (
				nL, nR         float64
				sumL, sumR     float64
				sumSqL, sumSqR float64
			)
			for _, i := range idx {
				y := targets[i]
				if samples[i][feat] <= th {
					nL++
					sumL += y
					sumSqL += y * y
				} else {
					nR++
					sumR += y
					sumSqR += y * y
				}
			}
			if nL == 0 || nR == 0 {
				continue
			}
			sse := (sumSqL - sumL*sumL/nL) + (sumSqR - sumR*sumR/nR)
			if sse < bestScore-1e-12 {
				bestScore, bestFeat, bestThreshold, found = sse, feat, th, true
			}
		}
	}
	return bestFeat, bestThreshold, found
}

func featureCandidates(nFeatures int, cfg treeConfig) []int {
	if cfg.maxFeatures <= 0 || cfg.maxFeatures >= nFeatures || cfg.rng == nil {
		all := make([]int, nFeatures)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return cfg.rng.Perm(nFeatures)[:cfg.maxFeatures]
}

// maxSplitCandidates bounds thresholds tried per feature so split search
// stays linear-ish on large continuous columns.
const maxSplitCandidates = 32

// splitPoints returns midpoints between consecutive distinct values of one
// feature over the working set, thinned to maxSplitCandidates.
func splitPoints(samples [][]float64, idx []int, feat int) []float64 {
	seen := make(map[float64]struct{}, len(idx))
	values := make([]float64, 0, len(idx))
	for _, i := range idx {
		v := samples[i][feat]
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			values = append(values, v)
		}
	}
	if len(values) < 2 {
		return nil
	}
	sort.Float64s(values)
	points := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		points = append(points, (values[i-1]+values[i])/2)
	}
	if len(points) > maxSplitCandidates {
		thinned := make([]float64, 0, maxSplitCandidates)
		step := float64(len(points)) / maxSplitCandidates
		for i := 0; i < maxSplitCandidates; i++ {
			thinned = append(thinned, points[int(float64(i)*step)])
		}
		points = thinned
	}
	return points
}

func parentSSE(targets []float64, idx []int) float64 {
	var n, sum, sumSq float64
	for _, i := range idx {
		y := targets[i]
		n++
		sum += y
		sumSq += y * y
	}
	return sumSq - sum*sum/n
}

func meanAt(targets []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += targets[i]
	}
	return sum / float64(len(idx))
}

func pure(targets []float64, idx []int) bool {
	first := targets[idx[0]]
	for _, i := range idx[1:] {
		if targets[i] != first {
			return false
		}
	}
	return true
}
