// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package changepoint

import (
	"math"
	"math/rand"

	"github.com/cloud-bulldozer/orion-go/internal/stat"
	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

// Default tunables, matching pkg/algorithms/isolationforest/isolationForest.py.
const (
	defaultAnomalyWindow     = 5
	defaultMinAnomalyPercent = 10.0
)

type isolationForest struct {
	window            int
	minAnomalyPercent float64
	numTrees          int
	sampleSize        int
	seed              int64
}

// NewIsolationForest constructs the isolation-forest-with-moving-average
// Analyzer. A window <= 0 or percent <= 0 falls back to the original's
// defaults (5, 10).
func NewIsolationForest(window int, minAnomalyPercent float64) Analyzer {
	if window <= 0 {
		window = defaultAnomalyWindow
	}
	if minAnomalyPercent <= 0 {
		minAnomalyPercent = defaultMinAnomalyPercent
	}
	return &isolationForest{window: window, minAnomalyPercent: minAnomalyPercent, numTrees: 100, sampleSize: 256, seed: 42}
}

func (f *isolationForest) Analyze(table *schema.Table, metrics []schema.MetricSpec) (map[string][]schema.ChangePoint, error) {
	if err := normalizeTimestamps(table); err != nil {
		return nil, err
	}

	columns := make([]string, len(metrics))
	for i, m := range metrics {
		columns[i] = m.ColumnName()
	}

	// Isolation-forest path: null cells break the model, drop null
	// rows before fitting (spec §4.2 edge cases).
	complete := make([]int, 0, len(table.Rows))
	samples := make([][]float64, 0, len(table.Rows))
	for i, row := range table.Rows {
		vec := make([]float64, len(columns))
		ok := true
		for j, col := range columns {
			v, present := row.Value(col)
			if !present {
				ok = false
				break
			}
			vec[j] = v
		}
		if ok {
			complete = append(complete, i)
			samples = append(samples, vec)
		}
	}

	result := make(map[string][]schema.ChangePoint, len(metrics))
	for _, m := range metrics {
		result[m.ColumnName()] = nil
	}
	if len(samples) == 0 {
		return result, nil
	}

	forest := fitForest(samples, f.numTrees, f.sampleSize, f.seed)
	anomalyScore := make([]float64, len(samples))
	isAnomaly := make([]bool, len(samples))
	for i, sample := range samples {
		score := forest.score(sample)
		anomalyScore[i] = score
		isAnomaly[i] = score > anomalyThreshold
	}

	for colIdx, spec := range metrics {
		col := columns[colIdx]
		series := make([]float64, len(table.Rows))
		present := make([]bool, len(table.Rows))
		for i, row := range table.Rows {
			if v, ok := row.Value(col); ok {
				series[i] = v
				present[i] = true
			}
		}
		movingAvg := movingAverage(series, present, f.window)

		var points []schema.ChangePoint
		for sampleIdx, rowIdx := range complete {
			if !isAnomaly[sampleIdx] {
				continue
			}
			avg := movingAvg[rowIdx]
			if math.IsNaN(avg) || avg == 0 {
				continue
			}
			value := series[rowIdx]
			pctChange := stat.PercentChange(avg, value)
			if math.Abs(pctChange) <= f.minAnomalyPercent {
				continue
			}
			dir := float64(spec.Direction)
			if dir != 0 && pctChange*dir <= 0 {
				continue
			}
			points = append(points, schema.ChangePoint{
				Metric: col,
				Index:  rowIdx,
				Time:   table.Rows[rowIdx].Timestamp,
				Stats: schema.Stats{
					MeanBefore: avg,
					MeanAfter:  value,
					StdBefore:  0,
					StdAfter:   0,
					PValue:     1,
				},
			})
		}
		result[col] = points
	}
	return result, nil
}

// movingAverage returns the trailing window-average of series at each
// index, using only present, preceding values (inclusive), matching
// pandas' rolling(window).mean() NaN-until-filled behavior.
func movingAverage(series []float64, present []bool, window int) []float64 {
	out := make([]float64, len(series))
	for i := range out {
		out[i] = math.NaN()
	}
	for i := range series {
		if i+1 < window {
			continue
		}
		windowValues := make([]float64, 0, window)
		complete := true
		for j := i - window + 1; j <= i; j++ {
			if !present[j] {
				complete = false
				break
			}
			windowValues = append(windowValues, series[j])
		}
		if complete {
			if mean, err := stat.Mean(windowValues); err == nil {
				out[i] = mean
			}
		}
	}
	return out
}

// --- minimal isolation forest, no external ML dependency appears
// anywhere in the example pack for this shape, so it is hand-rolled
// following the standard isolation-forest construction (random
// axis-aligned splits, path-length anomaly score). ---

const anomalyThreshold = 0.6

type isoNode struct {
	splitFeature int
	splitValue   float64
	left, right  *isoNode
	size         int
	isLeaf       bool
}

type isoTree struct {
	root       *isoNode
	heightLimit int
}

type isoForest struct {
	trees      []*isoTree
	sampleSize int
}

func fitForest(samples [][]float64, numTrees, sampleSize int, seed int64) *isoForest {
	rng := rand.New(rand.NewSource(seed))
	if sampleSize > len(samples) {
		sampleSize = len(samples)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(max(sampleSize, 2)))))
	forest := &isoForest{sampleSize: sampleSize}
	for t := 0; t < numTrees; t++ {
		subset := sampleRows(samples, sampleSize, rng)
		tree := &isoTree{heightLimit: heightLimit}
		tree.root = buildIsoNode(subset, 0, heightLimit, rng)
		forest.trees = append(forest.trees, tree)
	}
	return forest
}

func sampleRows(samples [][]float64, n int, rng *rand.Rand) [][]float64 {
	idx := rng.Perm(len(samples))[:n]
	out := make([][]float64, n)
	for i, j := range idx {
		out[i] = samples[j]
	}
	return out
}

func buildIsoNode(rows [][]float64, depth, heightLimit int, rng *rand.Rand) *isoNode {
	if depth >= heightLimit || len(rows) <= 1 {
		return &isoNode{isLeaf: true, size: len(rows)}
	}
	numFeatures := len(rows[0])
	feature := rng.Intn(numFeatures)
	minV, maxV := rows[0][feature], rows[0][feature]
	for _, r := range rows {
		if r[feature] < minV {
			minV = r[feature]
		}
		if r[feature] > maxV {
			maxV = r[feature]
		}
	}
	if minV == maxV {
		return &isoNode{isLeaf: true, size: len(rows)}
	}
	splitValue := minV + rng.Float64()*(maxV-minV)
	var left, right [][]float64
	for _, r := range rows {
		if r[feature] < splitValue {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isoNode{isLeaf: true, size: len(rows)}
	}
	return &isoNode{
		splitFeature: feature,
		splitValue:   splitValue,
		left:         buildIsoNode(left, depth+1, heightLimit, rng),
		right:        buildIsoNode(right, depth+1, heightLimit, rng),
	}
}

func pathLength(n *isoNode, sample []float64, depth int) float64 {
	if n.isLeaf {
		return float64(depth) + averagePathLength(n.size)
	}
	if sample[n.splitFeature] < n.splitValue {
		return pathLength(n.left, sample, depth+1)
	}
	return pathLength(n.right, sample, depth+1)
}

// averagePathLength is the expected unsuccessful-search path length of
// a binary search tree with n nodes, the standard isolation-forest
// normalization constant c(n).
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	return 2*(math.Log(float64(n-1))+euler) - 2*float64(n-1)/float64(n)
}

const euler = 0.5772156649

func (f *isoForest) score(sample []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range f.trees {
		sum += pathLength(t.root, sample, 0)
	}
	avg := sum / float64(len(f.trees))
	cn := averagePathLength(f.sampleSize)
	if cn == 0 {
		return 0
	}
	return math.Pow(2, -avg/cn)
}
