// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package stat

import (
	"fmt"
	"math"
)

func Mean(input []float64) (float64, error) {
	if len(input) == 0 {
		return math.NaN(), fmt.Errorf("input array is empty: %#v", input)
	}
	sum := 0.0
	for _, n := range input {
		sum += n
	}
	return sum / float64(len(input)), nil
}

// StdDev returns the population standard deviation of input around mean.
func StdDev(input []float64, mean float64) float64 {
	if len(input) == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range input {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(input)))
}

// PercentChange returns the percentage change from base to next. The
// caller must guard against base == 0.
func PercentChange(base, next float64) float64 {
	return (next - base) / base * 100
}
