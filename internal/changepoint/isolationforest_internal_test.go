// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package changepoint

import (
	"math"
	"testing"
)

func TestMovingAverage(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5}
	present := []bool{true, true, true, true, true}
	got := movingAverage(series, present, 3)

	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Fatalf("expected NaN before the window fills, got %v, %v", got[0], got[1])
	}
	if got[2] != 2 {
		t.Fatalf("movingAverage[2] = %v, want 2 (mean of 1,2,3)", got[2])
	}
	if got[4] != 4 {
		t.Fatalf("movingAverage[4] = %v, want 4 (mean of 3,4,5)", got[4])
	}
}

func TestMovingAverageSkipsWindowsWithGaps(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5}
	present := []bool{true, false, true, true, true}
	got := movingAverage(series, present, 3)

	if !math.IsNaN(got[2]) {
		t.Fatalf("expected NaN when the window spans a missing value, got %v", got[2])
	}
	if got[4] != 4 {
		t.Fatalf("movingAverage[4] = %v, want 4", got[4])
	}
}
